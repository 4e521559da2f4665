// Package ledger implements the hash-chained dispatch ledger: sealing blocks,
// verifying a chain, and a thin service over a pluggable block store.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"qsteel/internal/model"
)

// GenesisHash is the prevHash of the first block in every chain.
const GenesisHash = "GENESIS"

// sealed is the hashed view of a block: every field except the hash itself.
type sealed struct {
	model.LedgerEntry
	PrevHash string `json:"prevHash"`
	TS       int64  `json:"ts"`
}

// ComputeHash returns the hex SHA-256 of the block's JSON form without its hash.
func ComputeHash(b model.LedgerBlock) string {
	data, _ := json.Marshal(sealed{LedgerEntry: b.LedgerEntry, PrevHash: b.PrevHash, TS: b.TS})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seal links an entry to prevHash at ts (unix ms) and fills in its hash.
func Seal(entry model.LedgerEntry, prevHash string, ts int64) model.LedgerBlock {
	if prevHash == "" {
		prevHash = GenesisHash
	}
	b := model.LedgerBlock{LedgerEntry: entry, PrevHash: prevHash, TS: ts}
	b.Hash = ComputeHash(b)
	return b
}

// Verification is the outcome of replaying a chain.
type Verification struct {
	OK     bool   `json:"ok"`
	Length int    `json:"length"`
	Index  *int   `json:"index,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	ErrPrevHashMismatch = "prevHash mismatch"
	ErrHashMismatch     = "hash mismatch"
)

// Verify replays the chain and reports the first broken link. It never repairs.
func Verify(blocks []model.LedgerBlock) Verification {
	for i, b := range blocks {
		expectedPrev := GenesisHash
		if i > 0 {
			expectedPrev = blocks[i-1].Hash
		}
		if b.PrevHash != expectedPrev {
			idx := i
			return Verification{OK: false, Length: len(blocks), Index: &idx, Error: ErrPrevHashMismatch}
		}
		if ComputeHash(b) != b.Hash {
			idx := i
			return Verification{OK: false, Length: len(blocks), Index: &idx, Error: ErrHashMismatch}
		}
	}
	return Verification{OK: true, Length: len(blocks)}
}

package archive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsteel/internal/ledger"
	"qsteel/internal/model"
)

func TestEncodeSnapshot(t *testing.T) {
	at := time.Date(2025, 9, 20, 6, 30, 0, 0, time.UTC)
	b1 := ledger.Seal(model.LedgerEntry{Type: model.EventDispatch, RakeID: "RK001", Tonnage: 800}, "", 1)
	b2 := ledger.Seal(model.LedgerEntry{Type: model.EventDispatch, RakeID: "RK002", Tonnage: 600}, b1.Hash, 2)

	body, snap, err := encode([]model.LedgerBlock{b1, b2}, at)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Length)
	assert.Equal(t, b2.Hash, snap.TipHash)
	assert.True(t, snap.Verified)
	assert.Equal(t, int64(len(body)), snap.Size)
	assert.Equal(t, "ledger/2025/09/20/1758349800000-"+b2.Hash[:12]+".json", snap.Object)

	var doc document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, []model.LedgerBlock{b1, b2}, doc.Chain)
	assert.True(t, ledger.Verify(doc.Chain).OK)
}

func TestEncodeEmptyAndBrokenChains(t *testing.T) {
	at := time.Unix(0, 0).UTC()
	_, snap, err := encode(nil, at)
	require.NoError(t, err)
	assert.Equal(t, ledger.GenesisHash, snap.TipHash)
	assert.True(t, snap.Verified)
	assert.Equal(t, "ledger/1970/01/01/0-GENESIS.json", snap.Object)

	b := ledger.Seal(model.LedgerEntry{Type: model.EventDispatch, RakeID: "RK001"}, "", 1)
	b.Cargo = "Ore"
	_, snap, err = encode([]model.LedgerBlock{b}, at)
	require.NoError(t, err)
	assert.False(t, snap.Verified)
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

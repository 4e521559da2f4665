package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qsteel/internal/metrics"
	"qsteel/internal/model"
)

// Store persists sealed blocks. AppendBlock must read the tip, seal and write
// atomically with respect to other appends so the chain stays linear.
type Store interface {
	AppendBlock(ctx context.Context, entry model.LedgerEntry, ts int64) (model.LedgerBlock, error)
	ListBlocks(ctx context.Context) ([]model.LedgerBlock, error)
}

var ErrMissingRakeID = errors.New("rakeId required")

type Ledger struct {
	store Store
	now   func() time.Time
}

func New(s Store) *Ledger {
	return &Ledger{store: s, now: time.Now}
}

// WithClock overrides the timestamp source (tests).
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Append seals entry onto the current tip.
func (l *Ledger) Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerBlock, error) {
	if strings.TrimSpace(entry.RakeID) == "" {
		return model.LedgerBlock{}, ErrMissingRakeID
	}
	if entry.Type == "" {
		entry.Type = model.EventDispatch
	}
	b, err := l.store.AppendBlock(ctx, entry, l.now().UnixMilli())
	if err != nil {
		return model.LedgerBlock{}, fmt.Errorf("append ledger block: %w", err)
	}
	metrics.LedgerAppends.WithLabelValues(entry.Type).Inc()
	return b, nil
}

func (l *Ledger) List(ctx context.Context) ([]model.LedgerBlock, error) {
	return l.store.ListBlocks(ctx)
}

func (l *Ledger) Verify(ctx context.Context) (Verification, error) {
	blocks, err := l.store.ListBlocks(ctx)
	if err != nil {
		return Verification{}, err
	}
	v := Verify(blocks)
	if !v.OK {
		metrics.LedgerVerifyFailures.Inc()
	}
	return v, nil
}

// Tip returns the hash new blocks will link to.
func (l *Ledger) Tip(ctx context.Context) (string, error) {
	blocks, err := l.store.ListBlocks(ctx)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return GenesisHash, nil
	}
	return blocks[len(blocks)-1].Hash, nil
}

package store

import (
    "context"
    "sync"

    "qsteel/internal/ledger"
    "qsteel/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu         sync.Mutex
    blocks     []model.LedgerBlock
    dispatches []model.DispatchRecord
}

func NewMemory() *Memory {
    return &Memory{}
}

// AppendBlock seals entry onto the current tip under the store lock.
func (m *Memory) AppendBlock(ctx context.Context, entry model.LedgerEntry, ts int64) (model.LedgerBlock, error) {
    if err := ctx.Err(); err != nil { return model.LedgerBlock{}, err }
    m.mu.Lock(); defer m.mu.Unlock()
    prev := ledger.GenesisHash
    if n := len(m.blocks); n > 0 { prev = m.blocks[n-1].Hash }
    b := ledger.Seal(entry, prev, ts)
    m.blocks = append(m.blocks, b)
    return b, nil
}

func (m *Memory) ListBlocks(ctx context.Context) ([]model.LedgerBlock, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.LedgerBlock, len(m.blocks))
    copy(out, m.blocks)
    return out, nil
}

func (m *Memory) RecordDispatch(ctx context.Context, rec model.DispatchRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.dispatches = append(m.dispatches, rec)
    return nil
}

// ListDispatches returns the newest records first.
func (m *Memory) ListDispatches(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
    limit = clampLimit(limit)
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.DispatchRecord{}
    for i := len(m.dispatches) - 1; i >= 0 && len(out) < limit; i-- {
        out = append(out, m.dispatches[i])
    }
    return out, nil
}

func (m *Memory) LatestDispatch(ctx context.Context, rakeID string) (model.DispatchRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for i := len(m.dispatches) - 1; i >= 0; i-- {
        if m.dispatches[i].RakeID == rakeID { return m.dispatches[i], nil }
    }
    return model.DispatchRecord{}, ErrNotFound
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                  { return nil }


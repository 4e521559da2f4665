package store

import (
    "context"
    "errors"

    "qsteel/internal/ledger"
    "qsteel/internal/model"
)

// Store is the persistence interface used by the API server: the ledger
// chain plus its relational dispatch mirror.
type Store interface {
    ledger.Store

    // Dispatches
    RecordDispatch(ctx context.Context, rec model.DispatchRecord) error
    ListDispatches(ctx context.Context, limit int) ([]model.DispatchRecord, error)
    LatestDispatch(ctx context.Context, rakeID string) (model.DispatchRecord, error)

    Ping(ctx context.Context) error
    Close() error
}

var ErrNotFound = errors.New("not found")

const defaultListLimit = 50

func clampLimit(limit int) int {
    if limit <= 0 || limit > 500 {
        return defaultListLimit
    }
    return limit
}

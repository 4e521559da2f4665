package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "io/fs"
    "sort"
    "strings"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"

    "qsteel/db/migrations"
    "qsteel/internal/ledger"
    "qsteel/internal/model"
)

// ledgerLockKey serializes appends across every process sharing the database.
const ledgerLockKey int64 = 0x51535445454c

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                  { return p.db.Close() }

// Migrate applies embedded migrations that have not run yet.
func (p *Postgres) Migrate(ctx context.Context) error {
    if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
        return err
    }
    files, err := listMigrationFiles(migrations.Files)
    if err != nil { return err }
    for _, file := range files {
        var applied bool
        if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, file).Scan(&applied); err != nil {
            return err
        }
        if applied { continue }
        if err := p.applyMigration(ctx, file); err != nil { return err }
    }
    return nil
}

func (p *Postgres) applyMigration(ctx context.Context, file string) error {
    body, err := migrations.Files.ReadFile(file)
    if err != nil { return err }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, string(body)); err != nil {
        return fmt.Errorf("apply migration %s: %w", file, err)
    }
    if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, file, time.Now().UTC()); err != nil {
        return fmt.Errorf("record migration %s: %w", file, err)
    }
    return tx.Commit()
}

func listMigrationFiles(migFS fs.FS) ([]string, error) {
    entries, err := fs.ReadDir(migFS, ".")
    if err != nil { return nil, err }
    files := make([]string, 0, len(entries))
    for _, e := range entries {
        if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") { continue }
        files = append(files, e.Name())
    }
    sort.Strings(files)
    return files, nil
}

// AppendBlock reads the tip and inserts the sealed block inside one
// transaction holding an advisory lock, so concurrent writers never fork the chain.
func (p *Postgres) AppendBlock(ctx context.Context, entry model.LedgerEntry, ts int64) (model.LedgerBlock, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.LedgerBlock{}, err }
    defer func() { _ = tx.Rollback() }()

    if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
        return model.LedgerBlock{}, fmt.Errorf("lock ledger: %w", err)
    }
    prev := ledger.GenesisHash
    err = tx.QueryRowContext(ctx, `SELECT hash FROM ledger_blocks ORDER BY seq DESC LIMIT 1`).Scan(&prev)
    if err != nil && !errors.Is(err, sql.ErrNoRows) {
        return model.LedgerBlock{}, fmt.Errorf("read tip: %w", err)
    }

    b := ledger.Seal(entry, prev, ts)
    _, err = tx.ExecContext(ctx, `INSERT INTO ledger_blocks (type, rake_id, from_plant, to_plant, cargo, tonnage, actor, prev_hash, ts, hash) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
        b.Type, b.RakeID, b.From, b.To, b.Cargo, b.Tonnage, b.Actor, b.PrevHash, b.TS, b.Hash)
    if err != nil { return model.LedgerBlock{}, fmt.Errorf("insert block: %w", err) }
    if err := tx.Commit(); err != nil { return model.LedgerBlock{}, err }
    return b, nil
}

func (p *Postgres) ListBlocks(ctx context.Context) ([]model.LedgerBlock, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT type, rake_id, from_plant, to_plant, cargo, tonnage, actor, prev_hash, ts, hash FROM ledger_blocks ORDER BY seq`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.LedgerBlock{}
    for rows.Next() {
        var b model.LedgerBlock
        if err := rows.Scan(&b.Type, &b.RakeID, &b.From, &b.To, &b.Cargo, &b.Tonnage, &b.Actor, &b.PrevHash, &b.TS, &b.Hash); err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

func (p *Postgres) RecordDispatch(ctx context.Context, rec model.DispatchRecord) error {
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now().UTC() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO dispatches (id, rake_id, from_plant, to_plant, cargo, tonnage, hash, prev_hash, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
        rec.ID, rec.RakeID, rec.From, rec.To, rec.Cargo, rec.Tonnage, rec.Hash, rec.PrevHash, rec.CreatedAt)
    return err
}

const dispatchCols = `id::text, rake_id, from_plant, to_plant, cargo, tonnage, hash, prev_hash, created_at`

func scanDispatch(row interface{ Scan(...any) error }) (model.DispatchRecord, error) {
    var d model.DispatchRecord
    err := row.Scan(&d.ID, &d.RakeID, &d.From, &d.To, &d.Cargo, &d.Tonnage, &d.Hash, &d.PrevHash, &d.CreatedAt)
    return d, err
}

func (p *Postgres) ListDispatches(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+dispatchCols+` FROM dispatches ORDER BY created_at DESC LIMIT $1`, clampLimit(limit))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.DispatchRecord{}
    for rows.Next() {
        d, err := scanDispatch(rows)
        if err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) LatestDispatch(ctx context.Context, rakeID string) (model.DispatchRecord, error) {
    d, err := scanDispatch(p.db.QueryRowContext(ctx, `SELECT `+dispatchCols+` FROM dispatches WHERE rake_id=$1 ORDER BY created_at DESC LIMIT 1`, rakeID))
    if errors.Is(err, sql.ErrNoRows) { return d, ErrNotFound }
    return d, err
}

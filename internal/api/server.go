package api

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "qsteel/internal/archive"
    "qsteel/internal/auth"
    "qsteel/internal/cache"
    "qsteel/internal/config"
    "qsteel/internal/ledger"
    "qsteel/internal/model"
    "qsteel/internal/opt"
    "qsteel/internal/store"
    "qsteel/internal/webhooks"
)

// Archiver uploads ledger snapshots. Nil on the Server when object storage
// is not configured.
type Archiver interface {
    Archive(ctx context.Context, blocks []model.LedgerBlock) (archive.Snapshot, error)
}

type Server struct {
    Log      *zap.Logger
    Store    store.Store
    Ledger   *ledger.Ledger
    Planner  *opt.Planner
    Cache    cache.Cache
    CacheTTL time.Duration
    Broker   EventBroker
    Archiver Archiver
    Webhooks *webhooks.Worker
    Auth     *auth.Verifier
    Limiter  *rate.Limiter

    cfg     config.Config
    now     func() time.Time
    closers []io.Closer
}

// NewServer wires backends from cfg. Without DATABASE_URL the ledger lives in
// memory; without REDIS_URL cache and broker are in-process.
func NewServer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
    if log == nil {
        log = zap.NewNop()
    }
    s := &Server{Log: log, cfg: cfg, CacheTTL: cfg.CacheTTL, now: time.Now}

    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s.Store = store.NewMemory()
    } else {
        pg, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, fmt.Errorf("open postgres: %w", err)
        }
        if cfg.DBMigrate {
            if err := pg.Migrate(ctx); err != nil {
                _ = pg.Close()
                return nil, fmt.Errorf("migrate: %w", err)
            }
        }
        s.Store = pg
    }
    s.closers = append(s.closers, s.Store)
    s.Ledger = ledger.New(s.Store)

    if cfg.RedisURL != "" {
        rc, err := cache.NewRedis(cfg.RedisURL, "qsteel:")
        if err != nil {
            s.Close()
            return nil, fmt.Errorf("redis cache: %w", err)
        }
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil {
            _ = rc.Close()
            s.Close()
            return nil, fmt.Errorf("redis broker: %w", err)
        }
        s.Cache, s.Broker = rc, rb
        s.closers = append(s.closers, rc, rb)
    } else {
        s.Cache = cache.NewMemory()
        s.Broker = NewBroker()
    }

    if cfg.MinIO.Enabled() {
        a, err := archive.New(archive.Config{
            Endpoint:  cfg.MinIO.Endpoint,
            AccessKey: cfg.MinIO.AccessKey,
            SecretKey: cfg.MinIO.SecretKey,
            Bucket:    cfg.MinIO.Bucket,
            UseSSL:    cfg.MinIO.UseSSL,
        })
        if err != nil {
            s.Close()
            return nil, fmt.Errorf("archive: %w", err)
        }
        s.Archiver = a
    }

    if len(cfg.Webhooks.URLs) > 0 {
        wh := webhooks.NewWorker(cfg.Webhooks.URLs, cfg.Webhooks.Secret, cfg.Webhooks.MaxAttempts, log.Named("webhooks"))
        wh.Start(context.Background())
        s.Webhooks = wh
        s.closers = append(s.closers, wh)
    }

    cons := cfg.PlannerConstraints()
    s.Planner = opt.NewPlanner(cons, opt.DefaultNetwork(), opt.GenerateFleet(cfg.Fleet.Seed, cfg.Fleet.Size, cons.Plants()))
    s.Auth = auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret, cfg.Auth.JWKSURL)
    if cfg.Rate.RPS > 0 {
        s.Limiter = rate.NewLimiter(rate.Limit(cfg.Rate.RPS), cfg.Rate.Burst)
    }
    log.Info("server initialised",
        zap.Bool("postgres", cfg.DatabaseURL != ""),
        zap.Bool("redis", cfg.RedisURL != ""),
        zap.Bool("archive", s.Archiver != nil),
        zap.Int("webhooks", len(cfg.Webhooks.URLs)),
        zap.String("auth_mode", s.Auth.Mode),
        zap.Int("fleet_size", cfg.Fleet.Size),
    )
    return s, nil
}

// Close releases backend connections in reverse order of creation.
func (s *Server) Close() {
    for i := len(s.closers) - 1; i >= 0; i-- {
        if err := s.closers[i].Close(); err != nil {
            s.Log.Warn("close backend", zap.Error(err))
        }
    }
    s.closers = nil
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
    mux := http.NewServeMux()

    // Optimization
    mux.HandleFunc("/optimize/rake-formation", s.RakeFormationHandler)
    mux.HandleFunc("/optimize/simulate-scenario", s.SimulateScenarioHandler)
    mux.HandleFunc("/optimize/status", s.OptimizeStatusHandler)
    mux.HandleFunc("/optimize/constraints", s.ConstraintsHandler)
    mux.HandleFunc("/optimize/production-alignment", s.ProductionAlignmentHandler)
    mux.HandleFunc("/optimize/dispatch-plan", s.DispatchPlanHandler)

    // Ledger
    mux.HandleFunc("/ledger", s.LedgerHandler)
    mux.HandleFunc("/ledger/dispatch", s.LedgerDispatchHandler)
    mux.HandleFunc("/ledger/verify", s.LedgerVerifyHandler)
    mux.HandleFunc("/ledger/archive", s.LedgerArchiveHandler)
    mux.HandleFunc("/ledger/dispatches", s.DispatchesHandler)

    // Yard
    mux.HandleFunc("/yard/rakes/", s.YardRakeHandler) // {code}/confirm-loading, {code}/dispatch

    // Alerts
    mux.HandleFunc("/ws/alerts", s.AlertsWSHandler)
    mux.HandleFunc("/alerts/stream", s.AlertsStreamHandler)

    // Ops
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", MetricsHandler())
    mux.HandleFunc("/debug/info", s.DebugJSON)

    // Docs
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    return mux
}

// Handler is the routed mux wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
    return s.recoverMiddleware(s.logMiddleware(metricsMiddleware(s.rateLimit(s.Routes()))))
}

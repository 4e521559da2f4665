package api

import (
    "context"
    "net/http"
    "time"

    "qsteel/internal/buildinfo"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler pings the ledger store and the cache.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Store.Ping(ctx); err != nil {
        writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store: "+err.Error(), r.URL.Path)
        return
    }
    if err := s.Cache.Ping(ctx); err != nil {
        writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "cache: "+err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// DebugJSON reports build info and the effective (secret-free) configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    if _, ok := s.requireRole(w, r, RoleAdmin); !ok {
        return
    }
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  s.now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":             s.cfg.Port,
            "AUTH_MODE":        s.cfg.Auth.Mode,
            "RATE_RPS":         s.cfg.Rate.RPS,
            "RATE_BURST":       s.cfg.Rate.Burst,
            "CACHE_TTL":        s.CacheTTL.String(),
            "FLEET_SEED":       s.cfg.Fleet.Seed,
            "FLEET_SIZE":       s.cfg.Fleet.Size,
            "HAS_DATABASE_URL": s.cfg.DatabaseURL != "",
            "HAS_REDIS_URL":    s.cfg.RedisURL != "",
            "HAS_ARCHIVE":      s.Archiver != nil,
            "WEBHOOKS":         len(s.cfg.Webhooks.URLs),
        },
    }
    writeJSON(w, http.StatusOK, info)
}

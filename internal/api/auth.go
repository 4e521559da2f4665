// Package api implements HTTP handlers and helpers for the QSTEEL service.
package api

import (
    "net/http"
    "strings"
)

const (
    RoleAdmin      = "admin"
    RoleManager    = "manager"
    RoleYard       = "yard"
    RoleSupervisor = "supervisor"
    RoleCMO        = "cmo"
    RoleCustomer   = "customer"
    RoleCrew       = "crew"
)

type Principal struct {
    Role  string
    Email string
}

// getPrincipal extracts role and email from the bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac/jwks).
// - Else, in dev mode only, falls back to X-Role / X-User-Email (default admin).
// ok is false when a token was presented but failed verification, or when
// no credentials were given outside dev mode.
func (s *Server) getPrincipal(r *http.Request) (Principal, bool) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        pr, err := s.Auth.Verify(tok)
        if err != nil {
            return Principal{}, false
        }
        return Principal{Role: pr.Role, Email: pr.Email}, true
    }
    if s.Auth != nil && s.Auth.Mode != "dev" {
        return Principal{}, false
    }
    role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
    if role == "" {
        role = RoleAdmin
    }
    return Principal{Role: role, Email: r.Header.Get("X-User-Email")}, true
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Has reports whether p may act as any of roles. Admin passes every check.
func (p Principal) Has(roles ...string) bool {
    if p.IsAdmin() || len(roles) == 0 {
        return true
    }
    for _, r := range roles {
        if p.Role == r {
            return true
        }
    }
    return false
}

// requireRole writes 401/403 and returns false when the caller may not proceed.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (Principal, bool) {
    p, ok := s.getPrincipal(r)
    if !ok {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
        return Principal{}, false
    }
    if !p.Has(roles...) {
        writeProblem(w, http.StatusForbidden, "Forbidden", strings.Join(roles, " or ")+" role required", r.URL.Path)
        return Principal{}, false
    }
    return p, true
}

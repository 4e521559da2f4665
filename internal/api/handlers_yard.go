package api

import (
	"net/http"
	"strings"

	"qsteel/internal/model"
)

// YardRakeHandler handles /yard/rakes/{code}/confirm-loading and
// /yard/rakes/{code}/dispatch for yard staff.
func (s *Server) YardRakeHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/yard/rakes/")
	code, action, _ := strings.Cut(rest, "/")
	if code == "" || action == "" || strings.Contains(action, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch action {
	case "confirm-loading", "dispatch":
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := s.requireRole(w, r, RoleYard)
	if !ok {
		return
	}

	if action == "confirm-loading" {
		block, err := s.Ledger.Append(r.Context(), model.LedgerEntry{
			Type:   model.EventLoadingConfirmed,
			RakeID: code,
			Actor:  p.Email,
		})
		if err != nil {
			s.writeLedgerError(w, r, err)
			return
		}
		s.publish(Alert{Type: AlertLoadingConfirmed, RakeID: code, Message: "Loading confirmed for rake " + code, Level: "info"})
		writeJSON(w, http.StatusOK, block)
		return
	}

	var req dispatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	req.RakeID = code
	if err := validateDispatch(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	block, err := s.dispatch(r.Context(), req, p.Email)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

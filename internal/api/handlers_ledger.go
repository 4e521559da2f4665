package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qsteel/internal/ledger"
	"qsteel/internal/metrics"
	"qsteel/internal/model"
	"qsteel/internal/store"
)

type dispatchRequest struct {
	RakeID  string  `json:"rakeId"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Cargo   string  `json:"cargo"`
	Tonnage float64 `json:"tonnage"`
}

// dispatch appends a DISPATCH block, mirrors it into the dispatch table and
// raises a rake_dispatched alert. Only the ledger append can fail the call.
func (s *Server) dispatch(ctx context.Context, req dispatchRequest, actor string) (model.LedgerBlock, error) {
	block, err := s.Ledger.Append(ctx, model.LedgerEntry{
		Type:    model.EventDispatch,
		RakeID:  req.RakeID,
		From:    req.From,
		To:      req.To,
		Cargo:   req.Cargo,
		Tonnage: req.Tonnage,
		Actor:   actor,
	})
	if err != nil {
		return model.LedgerBlock{}, err
	}

	rec := model.DispatchRecord{
		ID:       uuid.NewString(),
		RakeID:   block.RakeID,
		From:     block.From,
		To:       block.To,
		Cargo:    block.Cargo,
		Tonnage:  block.Tonnage,
		Hash:     block.Hash,
		PrevHash: block.PrevHash,
	}
	if err := s.Store.RecordDispatch(ctx, rec); err != nil {
		metrics.DispatchWriteFailures.Inc()
		s.Log.Warn("dispatch record write failed, ledger only",
			zap.String("rake_id", block.RakeID), zap.String("hash", block.Hash), zap.Error(err))
	}

	s.publish(Alert{
		Type:    AlertRakeDispatched,
		RakeID:  block.RakeID,
		Message: dispatchMessage(block),
		Level:   "info",
	})
	return block, nil
}

func dispatchMessage(b model.LedgerBlock) string {
	parts := []string{"Rake", b.RakeID, "dispatched"}
	if b.From != "" {
		parts = append(parts, "from", b.From)
	}
	if b.To != "" {
		parts = append(parts, "to", b.To)
	}
	return strings.Join(parts, " ")
}

// LedgerDispatchHandler handles POST /ledger/dispatch
func (s *Server) LedgerDispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := s.requireRole(w, r)
	if !ok {
		return
	}
	var req dispatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
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

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ledger.ErrMissingRakeID) {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	s.Log.Error("ledger append failed", zap.Error(err))
	writeProblem(w, http.StatusInternalServerError, "Ledger append failed", err.Error(), r.URL.Path)
}

// LedgerHandler handles GET /ledger
func (s *Server) LedgerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	chain, err := s.Ledger.List(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List ledger failed", err.Error(), r.URL.Path)
		return
	}
	if chain == nil {
		chain = []model.LedgerBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"length": len(chain), "chain": chain})
}

// LedgerVerifyHandler handles GET /ledger/verify. A broken chain is still a
// 200; the body carries ok=false with the first failing index.
func (s *Server) LedgerVerifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	v, err := s.Ledger.Verify(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if !v.OK {
		s.Log.Warn("ledger verification failed", zap.Intp("index", v.Index), zap.String("error", v.Error))
		s.publish(Alert{Type: AlertLedgerBroken, Message: "Ledger verification failed: " + v.Error, Level: "critical", Meta: map[string]any{"index": v.Index}})
	}
	writeJSON(w, http.StatusOK, v)
}

// LedgerArchiveHandler handles POST /ledger/archive (admin)
func (s *Server) LedgerArchiveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := s.requireRole(w, r, RoleAdmin); !ok {
		return
	}
	if s.Archiver == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Archive unavailable", "object storage is not configured", r.URL.Path)
		return
	}
	chain, err := s.Ledger.List(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List ledger failed", err.Error(), r.URL.Path)
		return
	}
	snap, err := s.Archiver.Archive(r.Context(), chain)
	if err != nil {
		s.Log.Error("ledger archive failed", zap.Error(err))
		writeProblem(w, http.StatusBadGateway, "Archive failed", err.Error(), r.URL.Path)
		return
	}
	s.Log.Info("ledger archived", zap.String("object", snap.Object), zap.Int("length", snap.Length), zap.Bool("verified", snap.Verified))
	writeJSON(w, http.StatusCreated, snap)
}

// DispatchesHandler handles GET /ledger/dispatches[?limit=][&rakeId=]
func (s *Server) DispatchesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	q := r.URL.Query()
	if rakeID := q.Get("rakeId"); rakeID != "" {
		rec, err := s.Store.LatestDispatch(r.Context(), rakeID)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Dispatch not found", "no dispatch recorded for "+rakeID, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get dispatch failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		limit = n
	}
	recs, err := s.Store.ListDispatches(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List dispatches failed", err.Error(), r.URL.Path)
		return
	}
	if recs == nil {
		recs = []model.DispatchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

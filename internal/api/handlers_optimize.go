package api

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qsteel/internal/metrics"
	"qsteel/internal/model"
	"qsteel/internal/opt"
)

const (
	cacheKeyLatest = "optimization:latest"
	cacheKeyRun    = "optimization:run:"
)

type optimizeRequest struct {
	Orders      []model.Order     `json:"orders"`
	Inventories model.Inventories `json:"inventories"`
	Options     opt.Options       `json:"options"`
}

type scenarioRequest struct {
	Orders      []model.Order     `json:"orders"`
	Inventories model.Inventories `json:"inventories"`
	Disruptions *opt.Disruptions  `json:"disruptions"`
	Options     opt.Options       `json:"options"`
}

// Run is a completed optimization as cached and returned to callers.
type Run struct {
	Success   bool       `json:"success"`
	RunID     string     `json:"runId"`
	Result    opt.Result `json:"result"`
	Timestamp time.Time  `json:"timestamp"`
	ComputeMs int64      `json:"computeMs"`
}

// RakeFormationHandler handles POST /optimize/rake-formation
func (s *Server) RakeFormationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	if req.Orders == nil {
		req.Orders = opt.SampleOrders()
	}
	if req.Inventories == nil {
		req.Inventories = opt.SampleInventories()
	}

	start := s.now()
	res, err := s.Planner.Optimize(r.Context(), req.Orders, req.Inventories, req.Options)
	elapsed := time.Since(start)
	metrics.OptimizerDuration.WithLabelValues("optimize").Observe(elapsed.Seconds())
	if err != nil {
		metrics.OptimizerRuns.WithLabelValues("optimize", "error").Inc()
		s.Log.Error("optimization failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "Optimization failed", err.Error(), r.URL.Path)
		return
	}
	metrics.OptimizerRuns.WithLabelValues("optimize", "ok").Inc()
	for _, u := range res.Unallocated {
		metrics.UnallocatedGroups.WithLabelValues(u.Reason).Inc()
	}

	run := Run{
		Success:   true,
		RunID:     uuid.NewString(),
		Result:    res,
		Timestamp: s.now().UTC(),
		ComputeMs: elapsed.Milliseconds(),
	}
	s.storeRun(r.Context(), run)
	s.Log.Info("optimization complete",
		zap.String("run_id", run.RunID),
		zap.Int("rakes", len(res.Primary)),
		zap.Int("unallocated", len(res.Unallocated)),
		zap.Int64("compute_ms", run.ComputeMs),
	)
	s.publish(Alert{
		Type:    AlertOptimization,
		Message: fmt.Sprintf("Optimization %s formed %d rakes", run.RunID[:8], len(res.Primary)),
		Level:   "info",
		Meta:    map[string]any{"runId": run.RunID, "totalCost": res.Summary.TotalCost},
	})
	if len(res.Unallocated) > 0 {
		s.publish(Alert{
			Type:    AlertUnallocated,
			Message: fmt.Sprintf("%d order groups could not be allocated", len(res.Unallocated)),
			Level:   "warning",
			Meta:    map[string]any{"runId": run.RunID, "unallocated": res.Unallocated},
		})
	}
	writeJSON(w, http.StatusOK, run)
}

// storeRun caches run as the latest and under its id. Cache failures only
// cost status lookups, so they are logged and swallowed.
func (s *Server) storeRun(ctx context.Context, run Run) {
	for _, key := range []string{cacheKeyLatest, cacheKeyRun + run.RunID} {
		if err := s.Cache.Set(ctx, key, run, s.CacheTTL); err != nil {
			s.Log.Warn("cache optimization", zap.String("key", key), zap.Error(err))
		}
	}
}

// latestRun loads a cached run; runID "" means the most recent one.
func (s *Server) latestRun(ctx context.Context, runID string) (Run, bool, error) {
	key := cacheKeyLatest
	if runID != "" {
		key = cacheKeyRun + runID
	}
	var run Run
	ok, err := s.Cache.Get(ctx, key, &run)
	return run, ok, err
}

// SimulateScenarioHandler handles POST /optimize/simulate-scenario
func (s *Server) SimulateScenarioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	var req scenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateScenarioRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	if req.Orders == nil {
		req.Orders = opt.SampleOrders()
	}
	if req.Inventories == nil {
		req.Inventories = opt.SampleInventories()
	}
	d := opt.SampleDisruptions()
	if req.Disruptions != nil {
		d = *req.Disruptions
	}

	start := s.now()
	sc, err := s.Planner.Simulate(r.Context(), req.Orders, req.Inventories, d, req.Options)
	metrics.OptimizerDuration.WithLabelValues("simulate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OptimizerRuns.WithLabelValues("simulate", "error").Inc()
		if errors.Is(err, opt.ErrInvalidDisruption) {
			writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
			return
		}
		s.Log.Error("scenario simulation failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "Scenario simulation failed", err.Error(), r.URL.Path)
		return
	}
	metrics.OptimizerRuns.WithLabelValues("simulate", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"scenario":  sc,
		"timestamp": s.now().UTC(),
	})
}

// OptimizeStatusHandler handles GET /optimize/status[?runId=]
func (s *Server) OptimizeStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	runID := r.URL.Query().Get("runId")
	run, ok, err := s.latestRun(r.Context(), runID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Cache unavailable", err.Error(), r.URL.Path)
		return
	}
	if !ok {
		if runID != "" {
			writeProblem(w, http.StatusNotFound, "Run not found", "run "+runID+" is unknown or expired", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_recent_optimization", "message": "Run optimization first"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "completed",
		"runId":     run.RunID,
		"result":    run.Result,
		"timestamp": run.Timestamp,
	})
}

// ConstraintsHandler handles GET /optimize/constraints
func (s *Server) ConstraintsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	st := opt.Stats(s.Planner.Fleet())
	writeJSON(w, http.StatusOK, map[string]any{
		"constraints":     s.Planner.Constraints(),
		"availableWagons": st.Available,
		"totalWagons":     st.Total,
		"wagonsByType":    st.ByType,
		"routes":          s.Planner.Network().Routes(),
	})
}

// ProductionAlignmentHandler handles GET /optimize/production-alignment
func (s *Server) ProductionAlignmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	run, ok, err := s.latestRun(r.Context(), r.URL.Query().Get("runId"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Cache unavailable", err.Error(), r.URL.Path)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"recommendations": []opt.Recommendation{}, "message": "No recent optimization data"})
		return
	}
	writeJSON(w, http.StatusOK, opt.ProductionAlignment(run.Result))
}

var dispatchCSVHeader = []string{"Rake_ID", "Cargo", "Loading_Point", "Destinations", "Wagons", "Tonnage", "Cost", "Time_Hrs", "SLA_Flag", "Priority", "Emissions_tCO2"}

// DispatchPlanHandler handles GET /optimize/dispatch-plan[?format=csv]
func (s *Server) DispatchPlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	run, ok, err := s.latestRun(r.Context(), r.URL.Query().Get("runId"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Cache unavailable", err.Error(), r.URL.Path)
		return
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, "No optimization data available", "run an optimization first", r.URL.Path)
		return
	}
	rows := opt.DispatchPlan(run.Result)
	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, map[string]any{
			"runId":        run.RunID,
			"dispatchPlan": rows,
			"summary":      run.Result.Summary,
			"kpis":         run.Result.KPIs,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="dispatch-plan.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(dispatchCSVHeader)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, row := range rows {
		_ = cw.Write([]string{
			row.RakeID, row.Cargo, row.LoadingPoint, row.Destination, strconv.Itoa(row.Wagons),
			f(row.Tonnage), f(row.EstimatedCost), f(row.EstimatedTime), row.SLAFlag, f(row.Priority), f(row.Emissions),
		})
	}
	cw.Flush()
}

func (s *Server) publish(a Alert) {
	if a.TS == 0 {
		a.TS = s.now().UnixMilli()
	}
	if s.Broker != nil {
		s.Broker.Publish(TopicAlerts, a)
	}
	if s.Webhooks != nil {
		s.Webhooks.Emit(a.Type, a)
	}
}

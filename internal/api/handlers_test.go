package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qsteel/internal/archive"
	"qsteel/internal/config"
	"qsteel/internal/ledger"
	"qsteel/internal/model"
	"qsteel/internal/opt"
	"qsteel/internal/store"
	"qsteel/internal/webhooks"
)

func newTestServerWith(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestServer(t *testing.T) *Server { return newTestServerWith(t, nil) }

type header map[string]string

func do(t *testing.T, s *Server, method, path string, body any, h header) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func wagons(prefix, loc, typ string, n int, capacity float64) []model.Wagon {
	out := make([]model.Wagon, n)
	for i := range out {
		out[i] = model.Wagon{ID: prefix + string(rune('A'+i/26)) + string(rune('a'+i%26)), Type: typ, Capacity: capacity, Location: loc, Status: model.WagonAvailable}
	}
	return out
}

// withFixedFleet swaps in a planner whose only wagons are 20 BOXN at BKSC.
func withFixedFleet(s *Server) {
	s.Planner = opt.NewPlanner(opt.DefaultConstraints(), opt.DefaultNetwork(), wagons("W", "BKSC", "BOXN", 20, 60))
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
}

func TestRakeFormationDefaultsAndStatus(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/optimize/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no_recent_optimization", decode[map[string]any](t, rr)["status"])

	rr = do(t, s, http.MethodPost, "/optimize/rake-formation", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decode[Run](t, rr)
	assert.True(t, run.Success)
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, len(run.Result.Primary)+len(run.Result.Unallocated))
	assert.InDelta(t, 1.0, opt.DefaultWeights.Sum(), 1e-9)

	rr = do(t, s, http.MethodGet, "/optimize/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[struct {
		Status string     `json:"status"`
		RunID  string     `json:"runId"`
		Result opt.Result `json:"result"`
	}](t, rr)
	assert.Equal(t, "completed", st.Status)
	assert.Equal(t, run.RunID, st.RunID)
	assert.Equal(t, len(run.Result.Primary), len(st.Result.Primary))

	rr = do(t, s, http.MethodGet, "/optimize/status?runId="+run.RunID, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodGet, "/optimize/status?runId=nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRakeFormationWithOrders(t *testing.T) {
	s := newTestServer(t)
	withFixedFleet(s)

	body := map[string]any{
		"orders": []map[string]any{
			{"id": "O1", "destination": "DGR", "product": "TMT Bars", "quantity": 800, "priority": "High", "dueDate": "2025-09-25"},
		},
		"inventories": map[string]any{"BKSC": map[string]float64{"TMT Bars": 2000}},
		"options":     map[string]any{"costWeight": 2, "slaWeight": 2},
	}
	rr := do(t, s, http.MethodPost, "/optimize/rake-formation", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decode[Run](t, rr)
	require.Len(t, run.Result.Primary, 1)
	rake := run.Result.Primary[0]
	assert.Equal(t, "BKSC", rake.Source)
	assert.Equal(t, "DGR", rake.Destination)
	assert.Equal(t, 800.0, rake.TotalTons)
	assert.InDelta(t, 1.0, run.Result.Weights.Sum(), 1e-9)
	assert.InDelta(t, run.Result.Weights.Cost, run.Result.Weights.SLA, 1e-9)

	rr = do(t, s, http.MethodGet, "/optimize/dispatch-plan", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plan := decode[struct {
		DispatchPlan []opt.DispatchRow `json:"dispatchPlan"`
	}](t, rr)
	require.Len(t, plan.DispatchPlan, 1)
	assert.Equal(t, "BKSC", plan.DispatchPlan[0].LoadingPoint)
	assert.Equal(t, "TMT Bars", plan.DispatchPlan[0].Cargo)

	rr = do(t, s, http.MethodGet, "/optimize/dispatch-plan?format=csv", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Rake_ID,Cargo,Loading_Point,Destinations,Wagons,Tonnage,Cost,Time_Hrs,SLA_Flag,Priority,Emissions_tCO2", lines[0])
	assert.Contains(t, lines[1], "BKSC,DGR,")

	rr = do(t, s, http.MethodGet, "/optimize/production-alignment", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	al := decode[opt.Alignment](t, rr)
	assert.Empty(t, al.Recommendations)
	assert.Equal(t, run.Result.Summary.TotalCost, al.CostComparison.Rail)
}

func TestRakeFormationValidation(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name string
		body any
	}{
		{"bad json", `{"orders":`},
		{"negative quantity", map[string]any{"orders": []map[string]any{{"id": "O1", "destination": "DGR", "product": "Coils", "quantity": -5}}}},
		{"missing id", map[string]any{"orders": []map[string]any{{"destination": "DGR", "product": "Coils", "quantity": 5}}}},
		{"duplicate id", map[string]any{"orders": []map[string]any{
			{"id": "O1", "destination": "DGR", "product": "Coils", "quantity": 5},
			{"id": "O1", "destination": "ROU", "product": "Coils", "quantity": 5},
		}}},
		{"bad priority", map[string]any{"orders": []map[string]any{{"id": "O1", "destination": "DGR", "product": "Coils", "quantity": 5, "priority": "Urgent"}}}},
		{"negative weight", map[string]any{"options": map[string]any{"costWeight": -1}}},
		{"negative stock", map[string]any{"inventories": map[string]any{"BKSC": map[string]float64{"Coils": -1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/optimize/rake-formation", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}

	rr := do(t, s, http.MethodGet, "/optimize/rake-formation", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
}

func TestNoRunYet(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/optimize/dispatch-plan", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodGet, "/optimize/production-alignment", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recommendations":[],"message":"No recent optimization data"}`, rr.Body.String())
}

func TestSimulateScenario(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/optimize/simulate-scenario", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[struct {
		Success  bool         `json:"success"`
		Scenario opt.Scenario `json:"scenario"`
	}](t, rr)
	assert.True(t, out.Success)
	assert.InDelta(t, 0.10, out.Scenario.Disruptions.DemandChange, 1e-9)
	sc := out.Scenario
	assert.InDelta(t, sc.Disrupted.Summary.TotalCost-sc.Baseline.Summary.TotalCost, sc.Impact.CostDelta, 1e-6)

	rr = do(t, s, http.MethodPost, "/optimize/simulate-scenario", map[string]any{"disruptions": map[string]any{"demandChange": -2}}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, s, http.MethodPost, "/optimize/simulate-scenario", map[string]any{"disruptions": map[string]any{"wagonAvailability": 3}}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConstraintsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/optimize/constraints", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode[struct {
		Constraints  opt.Constraints `json:"constraints"`
		Total        int             `json:"totalWagons"`
		Available    int             `json:"availableWagons"`
		WagonsByType map[string]int  `json:"wagonsByType"`
		Routes       []model.Route   `json:"routes"`
	}](t, rr)
	assert.Equal(t, 120, out.Total)
	assert.LessOrEqual(t, out.Available, out.Total)
	assert.Len(t, out.Routes, 12)
	assert.Equal(t, 500.0, out.Constraints.MinRakeTons)
	sum := 0
	for _, n := range out.WagonsByType {
		sum += n
	}
	assert.Equal(t, 120, sum)
}

func TestLedgerDispatchFlow(t *testing.T) {
	s := newTestServer(t)
	alerts := s.Broker.Subscribe(TopicAlerts)
	defer s.Broker.Unsubscribe(TopicAlerts, alerts)

	rr := do(t, s, http.MethodPost, "/ledger/dispatch", map[string]any{"from": "BKSC"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	prob := decode[Problem](t, rr)
	assert.Equal(t, "rakeId required", prob.Error)
	assert.Equal(t, prob.Detail, prob.Error)

	rr = do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK001", From: "BKSC", To: "DGR", Cargo: "TMT Bars", Tonnage: 1100}, header{"X-User-Email": "m@qsteel.test"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[model.LedgerBlock](t, rr)
	assert.Equal(t, ledger.GenesisHash, first.PrevHash)
	assert.Equal(t, model.EventDispatch, first.Type)
	assert.Equal(t, "m@qsteel.test", first.Actor)
	assert.Equal(t, ledger.ComputeHash(first), first.Hash)

	select {
	case a := <-alerts:
		assert.Equal(t, AlertRakeDispatched, a.Type)
		assert.Equal(t, "Rake RK001 dispatched from BKSC to DGR", a.Message)
		assert.NotZero(t, a.TS)
	case <-time.After(time.Second):
		t.Fatal("no rake_dispatched alert")
	}

	rr = do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK002", To: "ROU"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[model.LedgerBlock](t, rr)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.Equal(t, "Rake RK002 dispatched to ROU", (<-alerts).Message)

	rr = do(t, s, http.MethodGet, "/ledger", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	chain := decode[struct {
		Length int                 `json:"length"`
		Chain  []model.LedgerBlock `json:"chain"`
	}](t, rr)
	assert.Equal(t, 2, chain.Length)
	assert.Equal(t, []model.LedgerBlock{first, second}, chain.Chain)

	rr = do(t, s, http.MethodGet, "/ledger/verify", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"length":2}`, rr.Body.String())

	rr = do(t, s, http.MethodGet, "/ledger/dispatches?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Items []model.DispatchRecord `json:"items"`
	}](t, rr)
	assert.Len(t, list.Items, 2)

	rr = do(t, s, http.MethodGet, "/ledger/dispatches?rakeId=RK001", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[model.DispatchRecord](t, rr)
	assert.Equal(t, first.Hash, rec.Hash)
	assert.Equal(t, ledger.GenesisHash, rec.PrevHash)

	rr = do(t, s, http.MethodGet, "/ledger/dispatches?rakeId=RK999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, s, http.MethodGet, "/ledger/dispatches?limit=x", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLedgerEmpty(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/ledger", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"length":0,"chain":[]}`, rr.Body.String())
	rr = do(t, s, http.MethodGet, "/ledger/verify", nil, nil)
	assert.JSONEq(t, `{"ok":true,"length":0}`, rr.Body.String())
}

// tamperStore rewrites the tonnage of the first block on read.
type tamperStore struct{ *store.Memory }

func (t tamperStore) ListBlocks(ctx context.Context) ([]model.LedgerBlock, error) {
	blocks, err := t.Memory.ListBlocks(ctx)
	if len(blocks) > 0 {
		blocks[0].Tonnage++
	}
	return blocks, err
}

func TestLedgerVerifyBrokenChainIsOK200(t *testing.T) {
	s := newTestServer(t)
	ts := tamperStore{store.NewMemory()}
	s.Store, s.Ledger = ts, ledger.New(ts)
	alerts := s.Broker.Subscribe(TopicAlerts)
	defer s.Broker.Unsubscribe(TopicAlerts, alerts)

	rr := do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK1", Tonnage: 100}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	<-alerts

	rr = do(t, s, http.MethodGet, "/ledger/verify", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":false,"length":1,"index":0,"error":"hash mismatch"}`, rr.Body.String())
	assert.Equal(t, AlertLedgerBroken, (<-alerts).Type)
}

// failingDispatchStore keeps the chain but refuses dispatch rows.
type failingDispatchStore struct{ *store.Memory }

func (failingDispatchStore) RecordDispatch(context.Context, model.DispatchRecord) error {
	return errors.New("dispatch table unavailable")
}

func TestDispatchRowFailureIsBestEffort(t *testing.T) {
	s := newTestServer(t)
	fs := failingDispatchStore{store.NewMemory()}
	s.Store, s.Ledger = fs, ledger.New(fs)

	rr := do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK1"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	blocks, err := fs.ListBlocks(context.Background())
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
	recs, err := fs.ListDispatches(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDispatchAlertIsForwardedToWebhook(t *testing.T) {
	type delivery struct {
		valid bool
		event webhooks.Event
	}
	got := make(chan delivery, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev webhooks.Event
		_ = json.Unmarshal(body, &ev)
		got <- delivery{valid: webhooks.Verify("hook-secret", body, r.Header.Get(webhooks.SignatureHeader)), event: ev}
	}))
	defer hook.Close()

	s := newTestServerWith(t, func(c *config.Config) {
		c.Webhooks = config.WebhookConfig{URLs: []string{hook.URL}, Secret: "hook-secret", MaxAttempts: 1}
	})
	require.NotNil(t, s.Webhooks)

	rr := do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK9", From: "BKSC", To: "DGR"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	select {
	case d := <-got:
		assert.True(t, d.valid)
		assert.Equal(t, AlertRakeDispatched, d.event.Type)
		data, ok := d.event.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "RK9", data["rakeId"])
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestYardEndpoints(t *testing.T) {
	s := newTestServer(t)
	yard := header{"X-Role": "yard", "X-User-Email": "yard@qsteel.test"}

	rr := do(t, s, http.MethodPost, "/yard/rakes/RK7/confirm-loading", nil, header{"X-Role": "customer"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, s, http.MethodPost, "/yard/rakes/RK7/confirm-loading", nil, yard)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode[model.LedgerBlock](t, rr)
	assert.Equal(t, model.EventLoadingConfirmed, b.Type)
	assert.Equal(t, "RK7", b.RakeID)
	assert.Equal(t, "yard@qsteel.test", b.Actor)

	rr = do(t, s, http.MethodPost, "/yard/rakes/RK7/dispatch", map[string]any{"rakeId": "OTHER", "from": "BKSC", "to": "DGR", "tonnage": 900}, yard)
	require.Equal(t, http.StatusOK, rr.Code)
	d := decode[model.LedgerBlock](t, rr)
	assert.Equal(t, model.EventDispatch, d.Type)
	assert.Equal(t, "RK7", d.RakeID)
	assert.Equal(t, b.Hash, d.PrevHash)

	rr = do(t, s, http.MethodPost, "/yard/rakes/RK7/dispatch", nil, header{"X-Role": "admin"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, s, http.MethodGet, "/yard/rakes/RK7/dispatch", nil, yard)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "Method Not Allowed", decode[Problem](t, rr).Error)
	rr = do(t, s, http.MethodPost, "/yard/rakes/RK7/unload", nil, yard)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, s, http.MethodPost, "/yard/rakes//dispatch", nil, yard)
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)

	rr = httptest.NewRecorder()
	s.YardRakeHandler(rr, httptest.NewRequest(http.MethodPost, "/yard/rakes//dispatch", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type fakeArchiver struct{ got []model.LedgerBlock }

func (f *fakeArchiver) Archive(_ context.Context, blocks []model.LedgerBlock) (archive.Snapshot, error) {
	f.got = blocks
	return archive.Snapshot{Bucket: "b", Object: "ledger/x.json", Length: len(blocks), Verified: true}, nil
}

func TestLedgerArchive(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/ledger/archive", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	fa := &fakeArchiver{}
	s.Archiver = fa
	rr = do(t, s, http.MethodPost, "/ledger/archive", nil, header{"X-Role": "manager"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	do(t, s, http.MethodPost, "/ledger/dispatch", dispatchRequest{RakeID: "RK1"}, nil)
	rr = do(t, s, http.MethodPost, "/ledger/archive", nil, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Len(t, fa.got, 1)
	assert.Equal(t, "ledger/x.json", decode[archive.Snapshot](t, rr).Object)
}

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	seg := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	input := seg(map[string]any{"alg": "HS256", "typ": "JWT"}) + "." + seg(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return input + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestHMACAuthMode(t *testing.T) {
	s := newTestServerWith(t, func(c *config.Config) {
		c.Auth.Mode = "hmac"
		c.Auth.HMACSecret = "s3cret"
	})

	rr := do(t, s, http.MethodGet, "/ledger", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(t, s, http.MethodGet, "/ledger", nil, header{"X-Role": "admin"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(t, s, http.MethodGet, "/ledger", nil, header{"Authorization": "Bearer " + signHS256(t, "wrong", map[string]any{"role": "admin"})})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	yardTok := "Bearer " + signHS256(t, "s3cret", map[string]any{"role": "yard", "email": "y@qsteel.test"})
	rr = do(t, s, http.MethodGet, "/ledger", nil, header{"Authorization": yardTok})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodPost, "/yard/rakes/RK1/confirm-loading", nil, header{"Authorization": yardTok})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "y@qsteel.test", decode[model.LedgerBlock](t, rr).Actor)
	rr = do(t, s, http.MethodPost, "/ledger/archive", nil, header{"Authorization": yardTok})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, s, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServerWith(t, func(c *config.Config) { c.Rate = config.RateConfig{RPS: 0.001, Burst: 1} })
	rr := do(t, s, http.MethodGet, "/ledger", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodGet, "/ledger", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	rr = do(t, s, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsAndDebug(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/yard/rakes/RK1/confirm-loading", nil, nil)

	rr := do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `path="/yard/rakes/{code}/confirm-loading"`)
	assert.Contains(t, body, `ledger_appends_total{type="LOADING_CONFIRMED"}`)

	rr = do(t, s, http.MethodGet, "/debug/info", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[map[string]any](t, rr)
	assert.Contains(t, info, "build")
	assert.Equal(t, "dev", info["config"].(map[string]any)["AUTH_MODE"])

	rr = do(t, s, http.MethodGet, "/debug/info", nil, header{"X-Role": "crew"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/yard/rakes/{code}/dispatch", routeLabel("/yard/rakes/RK9/dispatch"))
	assert.Equal(t, "/yard/rakes/{code}", routeLabel("/yard/rakes/RK9"))
	assert.Equal(t, "/ledger", routeLabel("/ledger"))
}

func TestRecoverMiddleware(t *testing.T) {
	s := newTestServer(t)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qsteel/internal/api"
	"qsteel/internal/config"
	"qsteel/internal/opt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QSTEEL_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("WEBHOOK_URLS", "")
	color.NoColor = true

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "qsteel "), out)
}

func TestOptimizeSampleTable(t *testing.T) {
	out, err := run(t, "optimize", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Primary plan:")
	assert.Contains(t, out, "Total cost")
}

func TestOptimizeJSONFromFile(t *testing.T) {
	in := map[string]any{
		"orders": []map[string]any{
			{"id": "O1", "destination": "DGR", "product": "Steel", "quantity": 900, "priority": 7, "dueDate": "2025-09-25"},
		},
		"inventories": map[string]map[string]float64{"BKSC": {"Steel": 5000}},
		"options":     map[string]any{"maxRakes": 1},
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	out, err := run(t, "optimize", "--input", path, "--json")
	require.NoError(t, err)
	var res opt.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.LessOrEqual(t, len(res.Primary), 1)
	assert.Equal(t, len(res.Primary), res.Summary.TotalRakes)
	for _, r := range res.Primary {
		assert.Equal(t, "DGR", r.Destination)
	}
}

func TestOptimizeSimulateJSON(t *testing.T) {
	out, err := run(t, "optimize", "--simulate", "--json")
	require.NoError(t, err)
	var sc opt.Scenario
	require.NoError(t, json.Unmarshal([]byte(out), &sc), out)
	assert.InDelta(t, 0.10, sc.Disruptions.DemandChange, 1e-9)
	assert.Equal(t, len(sc.Disrupted.Primary)-len(sc.Baseline.Primary), sc.Impact.RakeCountDelta)
}

func TestOptimizeBadInput(t *testing.T) {
	_, err := run(t, "optimize", "--input", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLedgerCommandsNeedDatabase(t *testing.T) {
	_, err := run(t, "ledger", "verify")
	assert.ErrorIs(t, err, errNoDatabase)
	_, err = run(t, "migrate")
	assert.ErrorIs(t, err, errNoDatabase)
	_, err = run(t, "ledger", "archive")
	assert.ErrorContains(t, err, "MINIO_ENDPOINT")
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"localhost:8080":       "ws://localhost:8080/ws/alerts",
		"http://api.local/":    "ws://api.local/ws/alerts",
		"https://api.local/qs": "wss://api.local/qs/ws/alerts",
		"ws://127.0.0.1:9000":  "ws://127.0.0.1:9000/ws/alerts",
	}
	for in, want := range cases {
		got, err := wsURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := wsURL("ftp://x")
	assert.Error(t, err)
}

func TestTailAlerts(t *testing.T) {
	color.NoColor = true
	s, err := api.NewServer(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	broker := s.Broker.(*api.Broker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- tailAlerts(ctx, &out, tailOptions{addr: srv.URL, types: []string{api.AlertRakeDispatched}, role: "manager", count: 1})
	}()

	require.Eventually(t, func() bool { return broker.Subscribers(api.TopicAlerts) > 0 }, 2*time.Second, 10*time.Millisecond)
	broker.Publish(api.TopicAlerts, api.Alert{Type: api.AlertLoadingConfirmed, RakeID: "RK0", Message: "skipped", TS: time.Now().UnixMilli()})
	broker.Publish(api.TopicAlerts, api.Alert{Type: api.AlertRakeDispatched, RakeID: "RK1", Message: "Rake RK1 dispatched from BKSC to DGR", Level: "info", TS: time.Now().UnixMilli()})

	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "rake_dispatched")
	assert.Contains(t, out.String(), "Rake RK1 dispatched from BKSC to DGR")
	assert.NotContains(t, out.String(), "skipped")
}

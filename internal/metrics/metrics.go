package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizerRuns counts optimizer invocations by kind (optimize, simulate) and outcome
	OptimizerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_total", Help: "Rake formation optimizer runs."},
		[]string{"kind", "status"},
	)
	OptimizerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimizer_run_duration_seconds", Help: "Optimizer run duration in seconds.", Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5}},
		[]string{"kind"},
	)
	// UnallocatedGroups counts order groups that could not form a rake, by reason
	UnallocatedGroups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_unallocated_groups_total", Help: "Order groups without a feasible rake."},
		[]string{"reason"},
	)

	LedgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ledger_appends_total", Help: "Ledger blocks appended by event type."},
		[]string{"type"},
	)
	LedgerVerifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ledger_verify_failures_total", Help: "Ledger verifications that found a broken chain."},
	)
	// DispatchWriteFailures counts dispatch rows that failed to persist after the ledger append succeeded
	DispatchWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_write_failures_total", Help: "Dispatch records not persisted."},
	)
)

// RegisterDefault registers collectors to the API registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizerRuns)
		Registry.MustRegister(OptimizerDuration)
		Registry.MustRegister(UnallocatedGroups)
		Registry.MustRegister(LedgerAppends)
		Registry.MustRegister(LedgerVerifyFailures)
		Registry.MustRegister(DispatchWriteFailures)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

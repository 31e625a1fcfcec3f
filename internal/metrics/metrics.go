package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AccountsPending tracks token accounts discovered but not yet finished in the current run
	AccountsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletpnl_accounts_pending",
		Help: "The number of token accounts waiting to be processed",
	})

	// WorkersActive tracks the number of account workers busy
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletpnl_workers_active",
		Help: "The number of account workers currently running",
	})

	// RPCRequestsTotal tracks RPC requests by method and status
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletpnl_rpc_requests_total",
			Help: "The total number of RPC requests",
		},
		[]string{"method", "status"},
	)

	// RunSeconds tracks the duration of a full wallet run
	RunSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walletpnl_run_seconds",
		Help:    "Time taken to ingest a wallet in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
	})

	// TransactionsProcessed tracks transactions by classification outcome
	TransactionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletpnl_transactions_processed_total",
			Help: "The total number of transactions processed",
		},
		[]string{"status"}, // buy, sell, unclassifiable, fetch_failed, errored, foreign_signer
	)

	// AccountsProcessed tracks terminal account states
	AccountsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletpnl_accounts_processed_total",
			Help: "The total number of token accounts reaching a terminal state",
		},
		[]string{"outcome"}, // persisted, duplicate, empty, abandoned
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletpnl_database_operations_total",
			Help: "The total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// RPCEndpointsAvailable tracks endpoints neither unhealthy nor in cooldown
	RPCEndpointsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletpnl_rpc_endpoints_available",
		Help: "The number of RPC endpoints ready to serve requests",
	})

	// RPCEndpointHealth tracks RPC endpoint health
	RPCEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walletpnl_rpc_endpoint_health",
			Help: "Health status of RPC endpoints (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// WorkerTaskDuration tracks how long workers spend on tasks
	WorkerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletpnl_worker_task_duration_seconds",
			Help:    "Time taken by workers to complete tasks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	// ExternalLookups tracks market data lookups by service and result
	ExternalLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletpnl_external_lookups_total",
			Help: "The total number of market data lookups",
		},
		[]string{"service", "result"}, // hit, miss, error, cached
	)
)

// Handler exposes the registered collectors
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRPCRequest records an RPC request with the given status
func RecordRPCRequest(method, status string) {
	RPCRequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordRun records the time taken by a wallet run
func RecordRun(duration float64) {
	RunSeconds.Observe(duration)
}

// RecordTransactionProcessed records a processed transaction
func RecordTransactionProcessed(status string) {
	TransactionsProcessed.WithLabelValues(status).Inc()
}

// RecordAccountProcessed records an account reaching a terminal state
func RecordAccountProcessed(outcome string) {
	AccountsProcessed.WithLabelValues(outcome).Inc()
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string) {
	DatabaseOperations.WithLabelValues(operation, status).Inc()
}

// SetRPCEndpointHealth sets the health status of an RPC endpoint
func SetRPCEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	RPCEndpointHealth.WithLabelValues(endpoint).Set(value)
}

// RecordWorkerTaskDuration records the time taken by a worker to complete a task
func RecordWorkerTaskDuration(taskType string, duration float64) {
	WorkerTaskDuration.WithLabelValues(taskType).Observe(duration)
}

// RecordExternalLookup records a market data lookup
func RecordExternalLookup(service, result string) {
	ExternalLookups.WithLabelValues(service, result).Inc()
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the node.
type Metrics struct {
	// Runtime metrics
	TransactionsTotal   *prometheus.CounterVec
	InstructionsTotal   *prometheus.CounterVec
	ProgramErrors       *prometheus.CounterVec
	TransactionLatency  prometheus.Histogram
	CommitLatency       prometheus.Histogram
	AccountsWritten     prometheus.Counter
	CurrentSlot         prometheus.Gauge
	VersionConflicts    prometheus.Counter
	SignatureRejections prometheus.Counter

	// RPC metrics
	RPCRequests     *prometheus.CounterVec
	RPCCallLatency  *prometheus.HistogramVec
	WSSubscriptions prometheus.Gauge
	WSNotifications prometheus.Counter

	// Storage metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCommitTimestamp prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fit_token"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "transactions_total",
			Help:      "Total number of executed transactions by status",
		}, []string{"status"}),
		InstructionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instructions_total",
			Help:      "Total number of top-level instructions by program",
		}, []string{"program"}),
		ProgramErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "program_errors_total",
			Help:      "Total number of failed transactions by error name",
		}, []string{"error"}),
		TransactionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "transaction_latency_seconds",
			Help:      "Transaction execution latency in seconds, locks included",
			Buckets:   prometheus.DefBuckets,
		}),
		CommitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "commit_latency_seconds",
			Help:      "Account store commit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AccountsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "accounts_written_total",
			Help:      "Total number of account writes committed",
		}),
		CurrentSlot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "current_slot",
			Help:      "Slot of the last executed transaction",
		}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "version_conflicts_total",
			Help:      "Total number of commits rejected by the store on version mismatch",
		}),
		SignatureRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "signature_rejections_total",
			Help:      "Total number of transactions rejected before execution",
		}),

		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests by method and outcome",
		}, []string{"method", "outcome"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_subscriptions",
			Help:      "Current number of WebSocket log subscriptions",
		}),
		WSNotifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_notifications_total",
			Help:      "Total number of log notifications delivered",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastCommitTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_commit_timestamp",
			Help:      "Unix timestamp of the last committed transaction",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTransaction records an executed transaction.
func RecordTransaction(status string, seconds float64) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TransactionLatency.Observe(seconds)
}

// RecordInstruction increments the top-level instruction counter.
func RecordInstruction(program string) {
	DefaultMetrics.InstructionsTotal.WithLabelValues(program).Inc()
}

// RecordProgramError records a failed transaction by error name.
func RecordProgramError(name string) {
	DefaultMetrics.ProgramErrors.WithLabelValues(name).Inc()
}

// RecordCommit records a successful account store commit.
func RecordCommit(accounts int, seconds float64, unixTime int64) {
	DefaultMetrics.CommitLatency.Observe(seconds)
	DefaultMetrics.AccountsWritten.Add(float64(accounts))
	DefaultMetrics.LastCommitTimestamp.Set(float64(unixTime))
}

// RecordVersionConflict increments the version conflict counter.
func RecordVersionConflict() {
	DefaultMetrics.VersionConflicts.Inc()
}

// RecordRejected increments the pre-execution rejection counter.
func RecordRejected() {
	DefaultMetrics.SignatureRejections.Inc()
}

// UpdateSlot updates the current slot gauge.
func UpdateSlot(slot uint64) {
	DefaultMetrics.CurrentSlot.Set(float64(slot))
}

// RecordRPCCall records JSON-RPC call metrics.
func RecordRPCCall(method string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.RPCRequests.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// UpdateWSSubscriptions updates the subscription gauge.
func UpdateWSSubscriptions(n int) {
	DefaultMetrics.WSSubscriptions.Set(float64(n))
}

// RecordWSNotification increments the delivered notification counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

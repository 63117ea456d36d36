// Package metrics exposes Prometheus collectors for the server.
package metrics

import (
	"database/sql"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "settleup_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	rpcRequests *prometheus.CounterVec
	rpcLatency  *prometheus.HistogramVec

	webhookRequests *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec

	reconcileTransactions *prometheus.CounterVec

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec
)

// Init registers collectors with the default registry. db may be nil.
// Safe to call more than once.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		rpcRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rpc_requests_total",
				Help: "Total RPC requests by procedure and result",
			},
			[]string{"procedure", "result"},
		)
		rpcLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rpc_latency_seconds",
				Help:    "RPC latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		)

		webhookRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "webhook_requests_total",
				Help: "Total bank webhook deliveries by result",
			},
			[]string{"result"},
		)
		webhookLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "webhook_latency_seconds",
				Help:    "Bank webhook handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reconcileTransactions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_transactions_total",
				Help: "Bank transactions processed by outcome",
			},
			[]string{"outcome"},
		)

		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "debt_report_total",
				Help: "Total debt report computations by result",
			},
			[]string{"result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "debt_report_latency_seconds",
				Help:    "Debt report computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			rpcRequests,
			rpcLatency,
			webhookRequests,
			webhookLatency,
			reconcileTransactions,
			reportTotal,
			reportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRPC records one RPC call. code is the connect error code, or "" on success.
func ObserveRPC(procedure, code string, duration time.Duration) {
	if code == "" {
		code = resultSuccess
	}
	if rpcRequests != nil {
		rpcRequests.WithLabelValues(procedure, code).Inc()
	}
	if rpcLatency != nil {
		rpcLatency.WithLabelValues(procedure).Observe(duration.Seconds())
	}
}

// ObserveWebhook records a webhook delivery.
func ObserveWebhook(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if webhookRequests != nil {
		webhookRequests.WithLabelValues(result).Inc()
	}
	if webhookLatency != nil {
		webhookLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReconcileOutcome counts one processed bank transaction.
func IncReconcileOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if reconcileTransactions != nil {
		reconcileTransactions.WithLabelValues(outcome).Inc()
	}
}

// ObserveReport records a debt report computation.
func ObserveReport(err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if reportTotal != nil {
		reportTotal.WithLabelValues(result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

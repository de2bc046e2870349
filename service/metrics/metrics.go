package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// A single instance is built at startup and handed to every component that
// records metrics. Components accept a nil *Metrics and skip recording.
type Metrics struct {
	// Solana RPC
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitHits     *prometheus.CounterVec
	solanaRPCRetries           *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Ingestion
	transactionsFetchedTotal    *prometheus.CounterVec
	transactionsClassifiedTotal *prometheus.CounterVec
	transactionsInsertedTotal   *prometheus.CounterVec
	transactionsSkippedTotal    *prometheus.CounterVec

	// Sync
	syncDuration        *prometheus.HistogramVec
	syncExecutionsTotal *prometheus.CounterVec

	// Workflow
	syncActivityDuration *prometheus.HistogramVec

	// Alerts
	notificationsTotal *prometheus.CounterVec
	deliveriesTotal    *prometheus.CounterVec

	// Database
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures returned per getSignaturesForAddress call",
				Buckets: []float64{1, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),

		transactionsFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_transactions_fetched_total",
				Help: "Total number of raw transactions fetched from the chain",
			},
			[]string{"wallet_address"},
		),
		transactionsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_transactions_classified_total",
				Help: "Total number of classification results by category (unparsable included)",
			},
			[]string{"category"},
		),
		transactionsInsertedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_transactions_inserted_total",
				Help: "Total number of new transactions stored",
			},
			[]string{"wallet_address"},
		),
		transactionsSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_transactions_skipped_total",
				Help: "Total number of transactions not stored, by reason",
			},
			[]string{"wallet_address", "reason"},
		),

		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solwatch_sync_duration_seconds",
				Help:    "Duration of wallet syncs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		syncExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_sync_executions_total",
				Help: "Total number of wallet syncs by outcome",
			},
			[]string{"status"},
		),

		syncActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solwatch_sync_activity_duration_seconds",
				Help:    "Duration of sync activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity"},
		),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_notifications_total",
				Help: "Total number of rule matches by rule type and outcome",
			},
			[]string{"rule_type", "status"},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_notification_deliveries_total",
				Help: "Total number of notification deliveries by channel and outcome",
			},
			[]string{"channel", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// RecordTransactionsFetched records raw transactions fetched for a wallet.
func (m *Metrics) RecordTransactionsFetched(walletAddress string, count int) {
	m.transactionsFetchedTotal.WithLabelValues(walletAddress).Add(float64(count))
}

// RecordTransactionClassified records one classification outcome. Use
// "unparsable" for transactions the classifier rejected.
func (m *Metrics) RecordTransactionClassified(category string) {
	m.transactionsClassifiedTotal.WithLabelValues(category).Inc()
}

// RecordTransactionsInserted records newly stored transactions.
func (m *Metrics) RecordTransactionsInserted(walletAddress string, count int) {
	m.transactionsInsertedTotal.WithLabelValues(walletAddress).Add(float64(count))
}

// RecordTransactionsSkipped records transactions that were not stored.
func (m *Metrics) RecordTransactionsSkipped(walletAddress, reason string, count int) {
	m.transactionsSkippedTotal.WithLabelValues(walletAddress, reason).Add(float64(count))
}

// RecordSync records the outcome and duration of a wallet sync.
func (m *Metrics) RecordSync(status string, duration float64) {
	m.syncDuration.WithLabelValues(status).Observe(duration)
	m.syncExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.syncActivityDuration.WithLabelValues(activity).Observe(duration)
}

// RecordNotification records a rule match outcome ("created" or "error").
func (m *Metrics) RecordNotification(ruleType, status string) {
	m.notificationsTotal.WithLabelValues(ruleType, status).Inc()
}

// RecordDelivery records a notification hand-off to an outbound channel.
func (m *Metrics) RecordDelivery(channel, status string) {
	m.deliveriesTotal.WithLabelValues(channel, status).Inc()
}

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

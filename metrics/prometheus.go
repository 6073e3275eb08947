package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Transaction metrics
	txs        *prometheus.CounterVec
	txDuration *prometheus.HistogramVec
	batchKeys  prometheus.Histogram
	batchLoad  prometheus.Histogram

	// Bootstrap option metrics
	options *prometheus.CounterVec

	// Ledger metrics
	ledgerVersion  prometheus.Gauge
	commitDuration prometheus.Histogram
	queries        *prometheus.CounterVec

	// Lookup API metrics
	lookups *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with its
// own registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_total",
				Help:      "Transactions processed, by phase and result code",
			},
			[]string{"phase", "code"},
		),
		txDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tx_duration_seconds",
				Help:      "Time spent checking or delivering a transaction",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"phase"},
		),
		batchKeys: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_load_keys",
				Help:      "Number of entities loaded per delivered transaction",
				Buckets:   prometheus.LinearBuckets(1, 2, 8),
			},
		),
		batchLoad: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_load_seconds",
				Help:      "Time spent loading the entities of a transaction",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		options: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "options_total",
				Help:      "Bootstrap options received, by result",
			},
			[]string{"result"},
		),
		ledgerVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_version",
				Help:      "Last committed ledger version",
			},
		),
		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time spent committing the ledger",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Ledger queries, by result",
			},
			[]string{"result"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_requests_total",
				Help:      "Lookup API requests, by route and HTTP status",
			},
			[]string{"route", "status"},
		),
	}

	registry.MustRegister(
		m.txs,
		m.txDuration,
		m.batchKeys,
		m.batchLoad,
		m.options,
		m.ledgerVersion,
		m.commitDuration,
		m.queries,
		m.lookups,
	)

	return m
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) IncTxs(phase, code string) {
	m.txs.WithLabelValues(phase, code).Inc()
}

func (m *PrometheusMetrics) ObserveTxDuration(phase string, d time.Duration) {
	m.txDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *PrometheusMetrics) ObserveBatchLoad(keys int, d time.Duration) {
	m.batchKeys.Observe(float64(keys))
	m.batchLoad.Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncOptions(result string) {
	m.options.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) SetLedgerVersion(version int64) {
	m.ledgerVersion.Set(float64(version))
}

func (m *PrometheusMetrics) ObserveCommitDuration(d time.Duration) {
	m.commitDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncQueries(result string) {
	m.queries.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncLookups(route string, status int) {
	m.lookups.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// HTTPHandler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

var _ Metrics = (*PrometheusMetrics)(nil)

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Normalization metrics
	ContractsNormalized *prometheus.CounterVec
	NormalizationErrors *prometheus.CounterVec
	EmbeddingFailures   prometheus.Counter

	// Bond-builder metrics
	ProbesScanned    prometheus.Counter
	CandidatesScored prometheus.Counter
	VetoesTriggered  *prometheus.CounterVec
	BondsUpserted    *prometheus.CounterVec
	BondsRetired     *prometheus.CounterVec
	DecisionsLogged  prometheus.Counter

	// Bond-validation metrics
	BondsValidated     *prometheus.CounterVec
	ValidationAccuracy *prometheus.GaugeVec

	// Price-updater metrics
	PriceCycles        *prometheus.CounterVec
	PricesUpdated      *prometheus.CounterVec
	PriceFetchErrors   *prometheus.CounterVec
	StaleContractsSeen prometheus.Counter

	// Arbitrage-monitor metrics
	ScansTotal              prometheus.Counter
	CrossOpportunitiesOpen  prometheus.Gauge
	CrossOpportunitiesFound prometheus.Counter
	IntraOpportunitiesFound prometheus.Counter
	OpportunitiesEvicted    *prometheus.CounterVec

	// Exchange client metrics
	UpstreamCallLatency *prometheus.HistogramVec
	UpstreamCallErrors  *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan        prometheus.Gauge
	LastSuccessfulPriceUpdate prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketbond"
	}

	return &Metrics{
		// Normalization metrics
		ContractsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "contracts_total",
			Help:      "Total number of contracts normalized by platform",
		}, []string{"platform"}),
		NormalizationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "errors_total",
			Help:      "Total number of raw records skipped by platform",
		}, []string{"platform"}),
		EmbeddingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "embedding_failures_total",
			Help:      "Total number of contracts stored without an embedding",
		}),

		// Bond-builder metrics
		ProbesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "probes_total",
			Help:      "Total number of probe contracts scanned",
		}),
		CandidatesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "candidates_scored_total",
			Help:      "Total number of candidate pairs scored",
		}),
		VetoesTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "vetoes_total",
			Help:      "Total number of hard-constraint vetoes by rule",
		}, []string{"rule"}),
		BondsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "bonds_upserted_total",
			Help:      "Total number of bond upserts by tier",
		}, []string{"tier"}),
		BondsRetired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "bonds_retired_total",
			Help:      "Total number of bonds retired by cause",
		}, []string{"cause"}),
		DecisionsLogged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bondbuilder",
			Name:      "decisions_logged_total",
			Help:      "Total number of scorer decisions recorded",
		}),

		// Bond-validation metrics
		BondsValidated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "bonds_validated_total",
			Help:      "Total number of resolved bonds re-checked, by tier and result",
		}, []string{"tier", "result"}),
		ValidationAccuracy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "accuracy",
			Help:      "Share of validated bonds whose two markets resolved identically, by tier",
		}, []string{"tier"}),

		// Price-updater metrics
		PriceCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cycles_total",
			Help:      "Total number of price-update cycles by status",
		}, []string{"status"}),
		PricesUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "contracts_updated_total",
			Help:      "Total number of contract price refreshes by platform",
		}, []string{"platform"}),
		PriceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream price fetch failures by platform",
		}, []string{"platform"}),
		StaleContractsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "stale_contracts_total",
			Help:      "Total number of stale price readings rejected downstream",
		}),

		// Arbitrage-monitor metrics
		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "scans_total",
			Help:      "Total number of arbitrage scans",
		}),
		CrossOpportunitiesOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cross_opportunities_open",
			Help:      "Currently tracked cross-exchange opportunities",
		}),
		CrossOpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cross_opportunities_total",
			Help:      "Total number of cross-exchange opportunities detected",
		}),
		IntraOpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "intra_opportunities_total",
			Help:      "Total number of intra-exchange opportunities detected",
		}),
		OpportunitiesEvicted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "opportunities_evicted_total",
			Help:      "Total number of tracked opportunities evicted by cause",
		}, []string{"cause"}),

		// Exchange client metrics
		UpstreamCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_latency_seconds",
			Help:      "Upstream exchange call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform", "operation"}),
		UpstreamCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_errors_total",
			Help:      "Total number of upstream exchange call failures",
		}, []string{"platform", "operation"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last completed arbitrage scan",
		}),
		LastSuccessfulPriceUpdate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_price_update_timestamp",
			Help:      "Unix timestamp of the last completed price cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVeto increments the veto counter for the given rule.
func RecordVeto(rule string) {
	DefaultMetrics.VetoesTriggered.WithLabelValues(rule).Inc()
}

// RecordBondUpserted increments the bond upsert counter for the tier.
func RecordBondUpserted(tier string) {
	DefaultMetrics.BondsUpserted.WithLabelValues(tier).Inc()
}

// RecordBondRetired increments the bond retirement counter for the cause.
func RecordBondRetired(cause string) {
	DefaultMetrics.BondsRetired.WithLabelValues(cause).Inc()
}

// RecordBondValidated increments the validation counter for the tier.
func RecordBondValidated(tier, result string) {
	DefaultMetrics.BondsValidated.WithLabelValues(tier, result).Inc()
}

// RecordNormalized increments the normalized-contract counter.
func RecordNormalized(platform string) {
	DefaultMetrics.ContractsNormalized.WithLabelValues(platform).Inc()
}

// RecordNormalizationError increments the skipped-record counter.
func RecordNormalizationError(platform string) {
	DefaultMetrics.NormalizationErrors.WithLabelValues(platform).Inc()
}

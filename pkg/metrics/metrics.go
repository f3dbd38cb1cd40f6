// Package metrics holds the Prometheus instrumentation of the refresh pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "holdings_tracker"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeNoData  = "no_data"
)

// Upstream source label values.
const (
	SourceSolanaRPC   = "solana_rpc"
	SourceDEXScreener = "dexscreener"
	SourceScoreAPI    = "score_api"
)

// Metrics groups every collector exported by the service.
type Metrics struct {
	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	LastRefreshSuccess prometheus.Gauge
	HoldingsCount      prometheus.Gauge
	PortfolioValueUSD  prometheus.Gauge

	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	CacheLookups     *prometheus.CounterVec
	CacheErrors      *prometheus.CounterVec
	ScoreCacheHits   prometheus.Counter
	ScoreCacheMisses prometheus.Counter
	ScoreStoreSize   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them on reg. A nil reg gets a fresh registry,
// which keeps tests independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		LastRefreshSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		HoldingsCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "holdings",
			Help:      "Number of holdings in the last computed snapshot.",
		}),
		PortfolioValueUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value_usd",
			Help:      "Total USD value of the last computed snapshot.",
		}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream calls (single RPC queries or API batches) by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Holdings cache lookups by result (fresh, stale, miss).",
		}, []string{"result"}),
		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache and score store backend errors by operation.",
		}, []string{"operation"}),
		ScoreCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_cache_hits_total",
			Help:      "Addresses whose trust score came from the store.",
		}),
		ScoreCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_cache_misses_total",
			Help:      "Addresses that had to be sent to the score API.",
		}),
		ScoreStoreSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_store_entries",
			Help:      "Scores known after the last lookup.",
		}),
		registry: reg,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MustRegisterRuntime adds the Go runtime and process collectors to the registry.
func (m *Metrics) MustRegisterRuntime() {
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}

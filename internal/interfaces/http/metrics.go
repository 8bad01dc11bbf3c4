package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/tokensentry/tokensentry/internal/providers"
)

// MetricsRegistry holds the Prometheus metrics for the scanning service.
// Each registry owns its own collector registry so tests can build as many
// instances as they like.
type MetricsRegistry struct {
	registry *prometheus.Registry

	ScanDuration *prometheus.HistogramVec
	StepDuration *prometheus.HistogramVec
	ScansTotal   prometheus.Counter
	ActiveScans  prometheus.Gauge
	ScanErrors   *prometheus.CounterVec
	OverallScore prometheus.Histogram
	Degraded     *prometheus.CounterVec
	FetchesTotal *prometheus.CounterVec

	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	ProviderHealthy *prometheus.GaugeVec
	BreakerOpen     *prometheus.GaugeVec
	WSSubscribers   prometheus.Gauge
}

// NewMetricsRegistry creates and registers all service metrics.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokensentry_scan_duration_seconds",
				Help:    "Duration of full report builds in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
			},
			[]string{"result"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokensentry_step_duration_seconds",
				Help:    "Duration of individual scan steps in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokensentry_scans_total",
			Help: "Total number of scans started",
		}),
		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tokensentry_active_scans",
			Help: "Number of scans currently in flight",
		}),
		ScanErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokensentry_scan_errors_total",
				Help: "Total number of failed scans by error kind",
			},
			[]string{"kind"},
		),
		OverallScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokensentry_overall_score",
			Help:    "Distribution of overall risk scores",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		Degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokensentry_degraded_facts_total",
				Help: "Total number of fact fetches that fell back to defaults",
			},
			[]string{"source"},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokensentry_fetches_total",
				Help: "Total number of upstream call attempts by source and result",
			},
			[]string{"source", "result"},
		),

		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tokensentry_cache_hit_ratio",
			Help: "Current fact cache hit ratio (0.0 to 1.0)",
		}),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokensentry_cache_hits_total",
				Help: "Total number of fact cache hits by category",
			},
			[]string{"category"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokensentry_cache_misses_total",
				Help: "Total number of fact cache misses by category",
			},
			[]string{"category"},
		),

		ProviderHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokensentry_provider_healthy",
				Help: "Whether each fact source is currently healthy (1) or not (0)",
			},
			[]string{"source"},
		),
		BreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokensentry_breaker_open",
				Help: "Whether each source's circuit breaker is open (1) or not (0)",
			},
			[]string{"source"},
		),
		WSSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tokensentry_ws_subscribers",
			Help: "Number of connected websocket subscribers",
		}),
	}

	m.registry.MustRegister(
		m.ScanDuration,
		m.StepDuration,
		m.ScansTotal,
		m.ActiveScans,
		m.ScanErrors,
		m.OverallScore,
		m.Degraded,
		m.FetchesTotal,
		m.CacheHitRatio,
		m.CacheHits,
		m.CacheMisses,
		m.ProviderHealthy,
		m.BreakerOpen,
		m.WSSubscribers,
	)
	return m
}

// ScanTimer times one report build from start to finish.
type ScanTimer struct {
	metrics *MetricsRegistry
	start   time.Time
}

// StartScanTimer marks a scan as in flight.
func (m *MetricsRegistry) StartScanTimer() *ScanTimer {
	m.ScansTotal.Inc()
	m.ActiveScans.Inc()
	return &ScanTimer{metrics: m, start: time.Now()}
}

// Stop records the scan outcome.
func (st *ScanTimer) Stop(result string) {
	st.metrics.ActiveScans.Dec()
	duration := time.Since(st.start)
	st.metrics.ScanDuration.WithLabelValues(result).Observe(duration.Seconds())

	log.Debug().
		Str("result", result).
		Dur("duration", duration).
		Msg("scan completed")
}

// StepTimer times one step inside a scan.
type StepTimer struct {
	metrics *MetricsRegistry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a named step.
func (m *MetricsRegistry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop completes the step timing and records the metric.
func (st *StepTimer) Stop(result string) {
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(time.Since(st.start).Seconds())
}

// RecordScanError counts a failed scan by kind.
func (m *MetricsRegistry) RecordScanError(kind string) {
	m.ScanErrors.WithLabelValues(kind).Inc()
}

// ObserveFetch counts one upstream call attempt. It matches the provider
// fetch observer signature.
func (m *MetricsRegistry) ObserveFetch(source string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.FetchesTotal.WithLabelValues(source, result).Inc()
}

// ObserveStep records a finished build step. It matches the assembler
// step observer signature.
func (m *MetricsRegistry) ObserveStep(step, result string, elapsed time.Duration) {
	m.StepDuration.WithLabelValues(step, result).Observe(elapsed.Seconds())
}

// RecordDegraded counts each source that fell back to its default.
func (m *MetricsRegistry) RecordDegraded(sources []string) {
	for _, source := range sources {
		m.Degraded.WithLabelValues(source).Inc()
	}
}

// ObserveOverall records a report's overall score.
func (m *MetricsRegistry) ObserveOverall(score float64) {
	m.OverallScore.Observe(score)
}

// RecordCacheHit records a fact cache hit for the category.
func (m *MetricsRegistry) RecordCacheHit(category string) {
	m.CacheHits.WithLabelValues(category).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a fact cache miss for the category.
func (m *MetricsRegistry) RecordCacheMiss(category string) {
	m.CacheMisses.WithLabelValues(category).Inc()
	m.updateCacheHitRatio()
}

// ObserveCache matches the provider cache observer signature, so the
// registry can be handed to the provider set as a method value.
func (m *MetricsRegistry) ObserveCache(category string, hit bool) {
	if hit {
		m.RecordCacheHit(category)
		return
	}
	m.RecordCacheMiss(category)
}

var cacheCategories = []string{
	providers.SourceSupply,
	providers.SourceHolders,
	providers.SourceMetadata,
	providers.SourceLiquidity,
}

// updateCacheHitRatio recomputes the ratio gauge by reading the hit and
// miss counters back out of the registry.
func (m *MetricsRegistry) updateCacheHitRatio() {
	var reading dto.Metric
	totalHits := 0.0
	totalMisses := 0.0

	for _, category := range cacheCategories {
		if hits, err := m.CacheHits.GetMetricWithLabelValues(category); err == nil {
			if err := hits.Write(&reading); err == nil {
				totalHits += reading.GetCounter().GetValue()
			}
		}
		if misses, err := m.CacheMisses.GetMetricWithLabelValues(category); err == nil {
			if err := misses.Write(&reading); err == nil {
				totalMisses += reading.GetCounter().GetValue()
			}
		}
	}

	if total := totalHits + totalMisses; total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// SyncProviders refreshes the per-source health and breaker gauges from
// the current snapshots.
func (m *MetricsRegistry) SyncProviders(health map[string]providers.HealthSnapshot, breakers map[string]string) {
	for source, snap := range health {
		m.ProviderHealthy.WithLabelValues(source).Set(boolGauge(snap.Healthy))
	}
	for source, state := range breakers {
		m.BreakerOpen.WithLabelValues(source).Set(boolGauge(state == "open"))
	}
}

// SetWSSubscribers tracks the live subscriber count.
func (m *MetricsRegistry) SetWSSubscribers(n int) {
	m.WSSubscribers.Set(float64(n))
}

// MetricsHandler serves this registry in the Prometheus text format.
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

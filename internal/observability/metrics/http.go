package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal        *prometheus.CounterVec
	searchDuration     *prometheus.HistogramVec
	searchResultCount  *prometheus.HistogramVec
	searchFallback     *prometheus.CounterVec
	cacheLookupsTotal  *prometheus.CounterVec
	judgeVerdictsTotal *prometheus.CounterVec
	judgeOverall       *prometheus.HistogramVec
	refinementsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowmind",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flowmind",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed transcript searches by strategy.",
		},
		[]string{"service", "strategy"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowmind",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	searchResultCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowmind",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Distribution of returned transcript segments per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"service", "strategy"},
	)
	searchFallback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "search",
			Name:      "fallback_total",
			Help:      "Total searches answered by the degraded direct-embedding path.",
		},
		[]string{"service"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Answer cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	judgeVerdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "judge",
			Name:      "verdicts_total",
			Help:      "Answer evaluations by verdict.",
		},
		[]string{"service", "verdict"},
	)
	judgeOverall := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowmind",
			Subsystem: "judge",
			Name:      "overall_score",
			Help:      "Distribution of overall judge scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"service"},
	)
	refinementsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowmind",
			Subsystem: "judge",
			Name:      "refinements_total",
			Help:      "Total answer refinement iterations triggered by failing evaluations.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResultCount,
		searchFallback,
		cacheLookupsTotal,
		judgeVerdictsTotal,
		judgeOverall,
		refinementsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		searchTotal:        searchTotal,
		searchDuration:     searchDuration,
		searchResultCount:  searchResultCount,
		searchFallback:     searchFallback,
		cacheLookupsTotal:  cacheLookupsTotal,
		judgeVerdictsTotal: judgeVerdictsTotal,
		judgeOverall:       judgeOverall,
		refinementsTotal:   refinementsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordSearch(service, strategy string, resultCount int, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.searchTotal.WithLabelValues(service, strategy).Inc()
	m.searchDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
	m.searchResultCount.WithLabelValues(service, strategy).Observe(float64(resultCount))
}

func (m *HTTPServerMetrics) RecordFallback(service string) {
	m.searchFallback.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordCacheLookup(service string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordJudgeVerdict(service string, passed bool, overall float64) {
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	m.judgeVerdictsTotal.WithLabelValues(service, verdict).Inc()
	m.judgeOverall.WithLabelValues(service).Observe(overall)
}

// RecordRefinements adds the refinement iterations one answer consumed.
func (m *HTTPServerMetrics) RecordRefinements(service string, count int) {
	if count <= 0 {
		return
	}
	m.refinementsTotal.WithLabelValues(service).Add(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

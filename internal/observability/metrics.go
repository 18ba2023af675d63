package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the service on a dedicated registry.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RankBatchesTotal   prometheus.Counter
	RankItemsTotal     *prometheus.CounterVec
	RankSkipsTotal     *prometheus.CounterVec
	RankBatchDuration  prometheus.Histogram
	CompositeScoreHist prometheus.Histogram

	OracleCallsTotal    *prometheus.CounterVec
	OracleFailuresTotal *prometheus.CounterVec
	OracleDuration      *prometheus.HistogramVec
	OracleCacheTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"route", "method"},
		),
		RankBatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rank_batches_total",
			Help: "Total number of ranking batches",
		}),
		RankItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_items_total",
				Help: "Postings evaluated by risk level",
			},
			[]string{"risk_level"},
		),
		RankSkipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_skips_total",
				Help: "Postings dropped from a batch by reason",
			},
			[]string{"reason"},
		),
		RankBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rank_batch_duration_seconds",
			Help:    "Ranking batch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		CompositeScoreHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rank_composite_score",
			Help:    "Distribution of composite_score ([0,100])",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		OracleCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_calls_total",
				Help: "Similarity oracle calls by backend",
			},
			[]string{"backend"},
		),
		OracleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_failures_total",
				Help: "Similarity oracle failures by backend",
			},
			[]string{"backend"},
		),
		OracleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "similarity_duration_seconds",
				Help:    "Similarity oracle latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"backend"},
		),
		OracleCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_cache_total",
				Help: "Similarity cache lookups by result",
			},
			[]string{"result"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RankBatchesTotal,
		m.RankItemsTotal,
		m.RankSkipsTotal,
		m.RankBatchDuration,
		m.CompositeScoreHist,
		m.OracleCallsTotal,
		m.OracleFailuresTotal,
		m.OracleDuration,
		m.OracleCacheTotal,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveBatch records one finished ranking batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.RankBatchesTotal.Inc()
	m.RankBatchDuration.Observe(d.Seconds())
}

// ObserveEvaluation records one evaluated posting.
func (m *Metrics) ObserveEvaluation(riskLevel string, composite float64) {
	if m == nil {
		return
	}
	m.RankItemsTotal.WithLabelValues(riskLevel).Inc()
	m.CompositeScoreHist.Observe(composite)
}

// ObserveSkip records a posting dropped from a batch.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.RankSkipsTotal.WithLabelValues(reason).Inc()
}

// ObserveOracle records one similarity call.
func (m *Metrics) ObserveOracle(backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.OracleCallsTotal.WithLabelValues(backend).Inc()
	m.OracleDuration.WithLabelValues(backend).Observe(d.Seconds())
	if err != nil {
		m.OracleFailuresTotal.WithLabelValues(backend).Inc()
	}
}

// ObserveCache records a similarity cache lookup ("hit", "miss" or "error").
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.OracleCacheTotal.WithLabelValues(result).Inc()
}

// HTTPMiddleware records request count and latency per route pattern.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

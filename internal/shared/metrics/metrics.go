package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	analysisStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "symptoms",
		Name:      "analysis_started_total",
		Help:      "Total symptom analyses that entered processing.",
	})
	analysisCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symptoms",
		Name:      "analysis_completed_total",
		Help:      "Total symptom analyses completed.",
	}, []string{"fallback"})
	analysisFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symptoms",
		Name:      "analysis_failed_total",
		Help:      "Total symptom analyses failed, by error code.",
	}, []string{"code"})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "symptoms",
		Name:      "analysis_duration_ms",
		Help:      "Symptom analysis duration in milliseconds.",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 90000},
	})
	llmRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llm",
		Name:      "retries_total",
		Help:      "Total provider retries after transport failures.",
	})
	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "notify",
		Name:      "connected_clients",
		Help:      "Currently connected progress stream clients.",
	})
	droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "dropped_events_total",
		Help:      "Progress events dropped because a client buffer was full.",
	})
)

func init() {
	Registry.MustRegister(
		analysisStarted,
		analysisCompleted,
		analysisFailed,
		analysisDuration,
		llmRetries,
		rateLimited,
		connectedClients,
		droppedEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStarted.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted(fallback bool) {
	label := "false"
	if fallback {
		label = "true"
	}
	analysisCompleted.WithLabelValues(label).Inc()
}

// IncAnalysisFailed increments the failed counter for the given error code.
func IncAnalysisFailed(code string) {
	analysisFailed.WithLabelValues(code).Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

func IncLLMRetry() {
	llmRetries.Inc()
}

func IncRateLimited(limiter string) {
	rateLimited.WithLabelValues(limiter).Inc()
}

func ClientConnected() {
	connectedClients.Inc()
}

func ClientDisconnected() {
	connectedClients.Dec()
}

func IncDroppedEvent() {
	droppedEvents.Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}


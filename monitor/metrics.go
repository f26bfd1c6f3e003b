package monitor

import (
	"net/http"
	"strconv"
	"time"

	"officer-review-api/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and workflow collectors. It satisfies the services
// Observer interface.
type Metrics struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transitions     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	summaries       *prometheus.CounterVec
	summaryDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_project_transitions_total",
				Help: "Assessment project status transitions.",
			},
			[]string{"from", "to"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_notifications_total",
				Help: "Notification deliveries by kind and result.",
			},
			[]string{"kind", "result"},
		),
		summaries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_summaries_total",
				Help: "Generated review summaries by source.",
			},
			[]string{"source"},
		),
		summaryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "review_summary_duration_seconds",
			Help:    "Time spent generating a review summary.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	reg.MustRegister(
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.transitions, m.notifications, m.summaries, m.summaryDuration,
	)
	return m
}

// TransitionApplied counts one project status change.
func (m *Metrics) TransitionApplied(from, to models.AssessmentStatus) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// NotificationDelivered counts one delivery attempt.
func (m *Metrics) NotificationDelivered(kind models.NotificationKind, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

// SummaryGenerated counts one summary and records how long it took.
func (m *Metrics) SummaryGenerated(fallback bool, elapsed time.Duration) {
	source := "summarizer"
	if fallback {
		source = "fallback"
	}
	m.summaries.WithLabelValues(source).Inc()
	m.summaryDuration.Observe(elapsed.Seconds())
}

// Instrument measures request rate, latency and in-flight requests. Paths are
// labelled by route template to keep label cardinality bounded.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.httpInFlight.Inc()
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpInFlight.Dec()
	}
}

// Handler serves the collectors registered in gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total number of HTTP requests processed by the control API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	sessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_session_state",
			Help: "Current session state (0=disconnected, 1=connecting, 2=connected).",
		},
	)
	sessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_session_events_total",
			Help: "Total number of session lifecycle events.",
		},
		[]string{"event"},
	)
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_stream_events_total",
			Help: "Total number of inbound stream events by kind.",
		},
		[]string{"kind"},
	)
	reconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_reconcile_runs_total",
			Help: "Total number of reconciliation runs by collection and outcome.",
		},
		[]string{"collection", "outcome"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_reconcile_duration_seconds",
			Help:    "Reconciliation run latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		sessionState,
		sessionEventsTotal,
		streamEventsTotal,
		reconcileRunsTotal,
		reconcileDuration,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func SetSessionState(state int) {
	sessionState.Set(float64(state))
}

func IncSessionEvent(event string) {
	sessionEventsTotal.WithLabelValues(event).Inc()
}

func IncStreamEvent(kind string) {
	streamEventsTotal.WithLabelValues(kind).Inc()
}

func ObserveReconcile(collection, outcome string, elapsed time.Duration) {
	reconcileRunsTotal.WithLabelValues(collection, outcome).Inc()
	reconcileDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

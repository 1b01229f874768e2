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
			Name: "delivery_http_requests_total",
			Help: "Total number of HTTP requests processed by the delivery service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	directPushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_direct_pushes_total",
			Help: "Messages pushed straight to a live connection at dispatch time.",
		},
	)
	bufferedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_buffered_total",
			Help: "Messages diverted to the retry queue and offline mailbox.",
		},
		[]string{"reason"},
	)
	redeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_redeliveries_total",
			Help: "Redelivery attempts, by path.",
		},
		[]string{"path"},
	)
	retryExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retry_exhausted_total",
			Help: "Messages whose automatic retry budget ran out.",
		},
	)
	mailboxFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_mailbox_flushes_total",
			Help: "Offline mailbox flushes served to reconnecting users.",
		},
	)
	readStatusPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_read_status_pruned_total",
			Help: "Read-status rows soft-deleted by the retention job.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		directPushesTotal,
		bufferedTotal,
		redeliveriesTotal,
		retryExhaustedTotal,
		mailboxFlushesTotal,
		readStatusPrunedTotal,
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

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncDirectPush() {
	directPushesTotal.Inc()
}

func IncBuffered(reason string) {
	bufferedTotal.WithLabelValues(reason).Inc()
}

func IncRedelivery(path string) {
	redeliveriesTotal.WithLabelValues(path).Inc()
}

func IncRetryExhausted() {
	retryExhaustedTotal.Inc()
}

func IncMailboxFlush() {
	mailboxFlushesTotal.Inc()
}

func AddReadStatusPruned(n int64) {
	readStatusPrunedTotal.Add(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

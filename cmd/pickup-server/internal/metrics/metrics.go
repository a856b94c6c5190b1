// Package metrics exports Prometheus metrics for the pickup server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/webhook"
)

// Metrics holds every collector of the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	MessagesStored  *prometheus.CounterVec
	WebhookTotal    *prometheus.CounterVec
	WebhookAttempts prometheus.Histogram
}

var (
	_ pickup.Observer  = (*Metrics)(nil)
	_ webhook.Observer = (*Metrics)(nil)
)

// New creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pickup_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_dispatch_total",
				Help: "Inbound pickup messages by kind and error code",
			},
			[]string{"kind", "result"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pickup_dispatch_duration_seconds",
				Help:    "Time spent handling one inbound pickup message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		MessagesStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_messages_stored_total",
				Help: "Store operations by result",
			},
			[]string{"result"},
		),
		WebhookTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_webhook_deliveries_total",
				Help: "Webhook deliveries by topic and result",
			},
			[]string{"topic", "result"},
		),
		WebhookAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pickup_webhook_attempts",
				Help:    "Attempts needed per webhook delivery",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch implements pickup.Observer.
func (m *Metrics) ObserveDispatch(kind message.Kind, elapsed time.Duration, err error) {
	m.DispatchTotal.WithLabelValues(kind.String(), result(err)).Inc()
	m.DispatchDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// ObserveWebhook implements webhook.Observer.
func (m *Metrics) ObserveWebhook(topic string, attempts int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.WebhookTotal.WithLabelValues(topic, outcome).Inc()
	m.WebhookAttempts.Observe(float64(attempts))
}

// ObserveStore counts a store operation.
func (m *Metrics) ObserveStore(err error) {
	m.MessagesStored.WithLabelValues(result(err)).Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// result maps err to a low-cardinality label: "ok", a pickup error code,
// or "error".
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := pickup.ErrorCode(err); code != "" {
		return code
	}
	return "error"
}

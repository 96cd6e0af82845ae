package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/energizer-project/pulse/internal/events"
)

const metricsNamespace = "pulse"

// Metrics holds the Prometheus collectors fed from the event bus.
type Metrics struct {
	registry *prometheus.Registry

	serverOnline  prometheus.Gauge
	playersOnline prometheus.Gauge
	playersMax    prometheus.Gauge
	lastPoll      prometheus.Gauge
	pollsTotal    prometheus.Counter
	pollDuration  prometheus.Histogram
	queryFailures prometheus.Counter
	alertsTotal   *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		serverOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "server_online",
			Help:      "1 when the last poll reached the server",
		}),
		playersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "players_online",
			Help:      "Players online at the last poll",
		}),
		playersMax: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "players_max",
			Help:      "Player capacity reported at the last poll",
		}),
		lastPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last completed poll",
		}),
		pollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "polls_total",
			Help:      "Completed poll cycles",
		}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a poll cycle in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		queryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "query_failures_total",
			Help:      "Polls where the ping succeeded but the query failed",
		}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_total",
			Help:      "Lifecycle alerts published, by type",
		}, []string{"type"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status",
		}, []string{"method", "route", "status"}),
	}
}

// Attach subscribes the collectors to the bus.
func (m *Metrics) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventVariablesUpdated, "metrics.variables", m.onVariables)
	bus.Subscribe(events.EventPollCompleted, "metrics.poll", m.onPollCompleted)
	bus.SubscribeMany(events.AlertTypes, "metrics.alert", m.onAlert)
}

func (m *Metrics) onVariables(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.VariablesPayload)
	if !ok {
		return nil
	}
	if online, ok := p.Variables["online"].(bool); ok {
		m.serverOnline.Set(boolGauge(online))
	}
	if n, ok := p.Variables["players_online"].(int); ok {
		m.playersOnline.Set(float64(n))
	}
	if n, ok := p.Variables["players_max"].(int); ok {
		m.playersMax.Set(float64(n))
	}
	return nil
}

func (m *Metrics) onPollCompleted(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.PollCompletedPayload)
	if !ok {
		return nil
	}
	m.pollsTotal.Inc()
	m.pollDuration.Observe(p.Duration.Seconds())
	m.lastPoll.Set(float64(p.PolledAt.Unix()))
	if p.QueryFailed {
		m.queryFailures.Inc()
	}
	return nil
}

func (m *Metrics) onAlert(ctx context.Context, e events.Event) error {
	m.alertsTotal.WithLabelValues(string(e.Type)).Inc()
	return nil
}

// Middleware counts API requests by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

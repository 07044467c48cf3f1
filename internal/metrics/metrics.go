// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emargement/internal/events"
)

type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
	entries  *prometheus.GaugeVec
	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emargement_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emargement_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emargement_domain_events_total",
			Help: "Domain events published, by type.",
		}, []string{"type"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "emargement_presence_entries",
			Help: "Stored presence entries by status, as of the last stats refresh.",
		}, []string{"status"}),
		gatherer: prometheus.DefaultGatherer,
	}
	reg.MustRegister(m.requests, m.duration, m.events, m.entries)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the registry m was built on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records one sample per request. Unmatched routes share the
// "unmatched" label so random paths cannot blow up cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// EventCounter is a bus sink counting events by type.
func (m *Metrics) EventCounter() events.Sink {
	return events.SinkFunc(func(_ context.Context, evt events.Event) error {
		m.events.WithLabelValues(string(evt.Type)).Inc()
		return nil
	})
}

// SetEntries publishes the latest per-status totals.
func (m *Metrics) SetEntries(present, late, absent int) {
	m.entries.WithLabelValues("present").Set(float64(present))
	m.entries.WithLabelValues("late").Set(float64(late))
	m.entries.WithLabelValues("absent").Set(float64(absent))
}

// Package metrics exposes Prometheus collectors for monitoring rounds and
// summarises overviews.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"projectmonitor/internal/models"
)

const namespace = "projectmonitor"

// Collector holds the monitor's metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	roundsTotal   prometheus.Counter
	roundDuration prometheus.Histogram
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	projectUp     *prometheus.GaugeVec
	running       prometheus.Gauge
}

// NewCollector creates and registers all collectors.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.roundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Completed monitoring rounds.",
	})
	c.roundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "round_duration_seconds",
		Help:      "Wall time of a monitoring round, from token refresh to snapshot.",
		Buckets:   prometheus.DefBuckets,
	})
	c.checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checks_total",
		Help:      "Executed health checks by project and result.",
	}, []string{"project", "result"})
	c.checkDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "check_duration_seconds",
		Help:      "Latency of health check calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"project"})
	c.projectUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "project_up",
		Help:      "1 when the project was up in the latest round.",
	}, []string{"project"})
	c.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monitor_running",
		Help:      "1 while a monitoring session is running.",
	})

	c.registry.MustRegister(
		c.roundsTotal,
		c.roundDuration,
		c.checksTotal,
		c.checkDuration,
		c.projectUp,
		c.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveCheck records one executed health check.
func (c *Collector) ObserveCheck(projectName string, up bool, elapsed time.Duration) {
	result := "down"
	if up {
		result = "up"
	}
	c.checksTotal.WithLabelValues(projectName, result).Inc()
	c.checkDuration.WithLabelValues(projectName).Observe(elapsed.Seconds())
}

// ObserveRound records a completed round and its overview.
func (c *Collector) ObserveRound(elapsed time.Duration, overview models.StatusOverview) {
	c.roundsTotal.Inc()
	c.roundDuration.Observe(elapsed.Seconds())
	for _, summary := range Summarize(overview) {
		value := 0.0
		if summary.Up {
			value = 1
		}
		c.projectUp.WithLabelValues(summary.Name).Set(value)
	}
}

// SetRunning flags whether a session is running.
func (c *Collector) SetRunning(running bool) {
	if running {
		c.running.Set(1)
		return
	}
	c.running.Set(0)
	c.projectUp.Reset()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

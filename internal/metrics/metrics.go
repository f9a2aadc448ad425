// Package metrics exposes the Prometheus instruments of the alert pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deadlinemaster"

// Metrics is safe to use through a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	alertsFired      *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	dropped          prometheus.Counter
	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	notifiedKeys     prometheus.Gauge
	assignments      *prometheus.GaugeVec
	queueDepth       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_fired_total",
			Help: "Alerts emitted by the scheduler, by threshold.",
		}, []string{"threshold"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alert_deliveries_total",
			Help: "Alert deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "alert_delivery_seconds",
			Help:    "Time spent delivering one alert.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_dropped_total",
			Help: "Alerts rejected because the delivery queue was full or stopped.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_ticks_total",
			Help: "Evaluation ticks run.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scheduler_tick_seconds",
			Help:    "Duration of one evaluation tick.",
			Buckets: prometheus.DefBuckets,
		}),
		notifiedKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "notified_keys",
			Help: "Size of the alert suppression set.",
		}),
		assignments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "assignments",
			Help: "Assignments held in memory, by state.",
		}, []string{"state"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "delivery_queue_depth",
			Help: "Alerts waiting for a delivery worker.",
		}),
	}
	reg.MustRegister(
		m.alertsFired, m.deliveries, m.deliveryDuration, m.dropped,
		m.ticks, m.tickDuration, m.notifiedKeys, m.assignments, m.queueDepth,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AlertFired(threshold string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(threshold).Inc()
}

func (m *Metrics) Delivery(channel string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
	m.deliveryDuration.WithLabelValues(channel).Observe(took.Seconds())
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) Tick(took time.Duration, notified int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.notifiedKeys.Set(float64(notified))
}

func (m *Metrics) Assignments(active, completed int) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues("active").Set(float64(active))
	m.assignments.WithLabelValues("completed").Set(float64(completed))
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

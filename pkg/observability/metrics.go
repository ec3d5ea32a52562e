package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// Metrics holds the instrument set shared by producer and consumer.
type Metrics struct {
	Reservations *prometheus.CounterVec
	Heartbeats   prometheus.Counter
	RunDuration  prometheus.Histogram
	EventsLogged *prometheus.CounterVec
}

// NewMetrics creates and registers the instruments on the given
// registerer. Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kleio_reservations_total",
			Help: "Trial reservation attempts by outcome.",
		}, []string{"outcome"}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kleio_heartbeats_total",
			Help: "Heartbeats written by running consumers.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kleio_run_duration_seconds",
			Help:    "Wall-clock duration of consumed trials.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		EventsLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kleio_events_logged_total",
			Help: "Events appended to trial streams by attribute.",
		}, []string{"attribute"}),
	}
	reg.MustRegister(m.Reservations, m.Heartbeats, m.RunDuration, m.EventsLogged)
	return m
}

// ObserveRun records the duration of one consumed trial.
func (m *Metrics) ObserveRun(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}

// statusDesc describes the per-status trial gauge.
var statusDesc = prometheus.NewDesc(
	"kleio_trials",
	"Number of trials per status.",
	[]string{"status"}, nil,
)

// StatusCollector emits a gauge of trials per status, read from the
// report store at scrape time.
type StatusCollector struct {
	store ports.TrialStore
}

// NewStatusCollector builds a collector over the given store.
func NewStatusCollector(store ports.TrialStore) *StatusCollector {
	return &StatusCollector{store: store}
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- statusDesc
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	reports, err := c.store.ListReports(context.Background(), nil)
	if err != nil {
		return
	}

	counts := map[domain.Status]int{}
	for _, report := range reports {
		counts[report.Registry.Status]++
	}
	for _, status := range domain.AllStatuses {
		ch <- prometheus.MustNewConstMetric(
			statusDesc, prometheus.GaugeValue,
			float64(counts[status]), string(status),
		)
	}
}

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blackwell-systems/gitpm/internal/ledger"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	dispatchedTotal *prometheus.CounterVec
	failedTotal     *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	pendingAdds     prometheus.Gauge
	pendingRemoves  prometheus.Gauge
	seenLinks       prometheus.Gauge
	dependencies    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpm_operations_dispatched_total",
				Help: "Number of package service operations dispatched, by kind.",
			},
			[]string{"op"},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpm_operations_failed_total",
				Help: "Number of package service operations that completed with a failure, by kind.",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gitpm_operation_duration_seconds",
				Help:    "Time from dispatch to observed completion of an operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		pendingAdds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gitpm_pending_adds",
				Help: "Number of install requests waiting in the queue.",
			},
		),
		pendingRemoves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gitpm_pending_removes",
				Help: "Number of remove requests waiting in the queue.",
			},
		),
		seenLinks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gitpm_seen_links",
				Help: "Number of distinct links requested without force this session.",
			},
		),
		dependencies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gitpm_gitdependencies_discovered_total",
				Help: "Total number of gitdependencies found in installed package descriptors.",
			},
		),
	}

	reg.MustRegister(
		m.dispatchedTotal,
		m.failedTotal,
		m.duration,
		m.pendingAdds,
		m.pendingRemoves,
		m.seenLinks,
		m.dependencies,
	)
	return m
}

func (m *Metrics) dispatched(op string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) observe(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.failedTotal.WithLabelValues(op).Inc()
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) setQueueDepth(q *ledger.Queue) {
	if m == nil {
		return
	}
	m.pendingAdds.Set(float64(q.PendingAdds()))
	m.pendingRemoves.Set(float64(q.PendingRemoves()))
	m.seenLinks.Set(float64(q.Ledger().SeenCount()))
}

func (m *Metrics) dependenciesDiscovered(n int) {
	if m == nil {
		return
	}
	m.dependencies.Add(float64(n))
}

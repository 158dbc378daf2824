package ledgersync

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the sync engine's Prometheus collectors
type Metrics struct {
	rowsPushed    *prometheus.CounterVec
	rowsDeleted   *prometheus.CounterVec
	rowsPulled    *prometheus.CounterVec
	pushFailures  *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "rows_pushed_total",
			Help:      "Rows accepted by the remote ledger.",
		}, []string{"table"}),
		rowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "rows_deleted_total",
			Help:      "Local deletes applied to the remote ledger.",
		}, []string{"table"}),
		rowsPulled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "rows_pulled_total",
			Help:      "Remote rows written to the local store.",
		}, []string{"table"}),
		pushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "push_failures_total",
			Help:      "Failed remote writes by reason.",
		}, []string{"reason"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "escalations_total",
			Help:      "Conflicts and schema mismatches that need an operator.",
		}, []string{"code", "table"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brewery",
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that finished without a network failure.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rowsPushed, m.rowsDeleted, m.rowsPulled, m.pushFailures,
			m.escalations, m.cycleDuration, m.lastSuccess)
	}
	return m
}

func (m *Metrics) observe(r *CycleReport) {
	for _, t := range r.Tables {
		if t.Pushed > 0 {
			m.rowsPushed.WithLabelValues(t.Table).Add(float64(t.Pushed))
		}
		if t.Deleted > 0 {
			m.rowsDeleted.WithLabelValues(t.Table).Add(float64(t.Deleted))
		}
		if t.Pulled > 0 {
			m.rowsPulled.WithLabelValues(t.Table).Add(float64(t.Pulled))
		}
	}
	for _, e := range r.Escalations {
		m.escalations.WithLabelValues(e.Code, e.Table).Inc()
	}
	m.cycleDuration.Observe(r.Duration().Seconds())
	if r.Err == nil {
		m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	}
}

func (m *Metrics) pushFailed(reason string) {
	m.pushFailures.WithLabelValues(reason).Inc()
}

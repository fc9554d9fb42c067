package gateway

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	attemptsTotal   *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	creditsConsumed prometheus.Counter
	archivedTotal   prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	m := &metrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enhancegate_attempts_total",
			Help: "Total enhancement attempts by final audit status.",
		}, []string{"status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "enhancegate_call_duration_seconds",
			Help: "Wall-clock duration of the remote enhancement call.",
			Buckets: []float64{
				0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
			},
		}, []string{"status"}),
		creditsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enhancegate_credits_consumed_total",
			Help: "Total credits consumed by successful enhancements.",
		}),
		archivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enhancegate_outputs_archived_total",
			Help: "Total enhanced outputs copied to the archive bucket.",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.attemptsTotal,
			m.callDuration,
			m.creditsConsumed,
			m.archivedTotal,
		)
	}
	return m
}

package matchmaker

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	sessions prometheus.Gauge
	waiting  prometheus.Gauge
	matches  prometheus.Counter
	rejects  *prometheus.CounterVec
	signals  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainmeet", Name: "active_sessions", Help: "Live participant sessions.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainmeet", Name: "waiting_pool", Help: "Sessions searching for a partner.",
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainmeet", Name: "matches_total", Help: "Pairings made.",
		}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainmeet", Name: "admission_rejects_total", Help: "Admission guard rejections.",
		}, []string{"reason"}),
		signals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainmeet", Name: "signals_relayed_total", Help: "Handshake envelopes forwarded.",
		}),
	}
	reg.MustRegister(m.sessions, m.waiting, m.matches, m.rejects, m.signals)
	return m
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal  *prometheus.CounterVec
	DenialsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_ratelimit_checks_total",
			Help: "Total admission checks by operation class",
		}, []string{"class"}),
		DenialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_ratelimit_denials_total",
			Help: "Total throttling denials by operation class",
		}, []string{"class"}),
	}
}

func (m *Metrics) RecordCheck(class string) {
	m.ChecksTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordDenial(class string) {
	m.DenialsTotal.WithLabelValues(class).Inc()
}

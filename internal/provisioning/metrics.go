package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa las métricas del flujo de provisioning. Un *Metrics nil no registra nada.
type Metrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
	partial  *prometheus.CounterVec
	races    prometheus.Counter
}

// NewMetrics crea y registra las métricas en reg (prometheus.DefaultRegisterer si es nil).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioning_outcomes_total",
			Help: "Resultados de provisioning por flujo y tipo de error",
		}, []string{"path", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provisioning_duration_seconds",
			Help:    "Duración de ClassifyAndProvision",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "provisioning_retries_total",
			Help: "Reintentos por fallas transitorias del directorio",
		}),
		partial: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioning_partial_failures_total",
			Help: "Cuentas registradas en el directorio sin fila local",
		}, []string{"provider"}),
		races: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "provisioning_registration_races_total",
			Help: "Registros duplicados resueltos por reclasificación",
		}),
	}
	for _, c := range []prometheus.Collector{m.outcomes, m.duration, m.retries, m.partial, m.races} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(path State, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(path.String(), Kind(err)).Inc()
	m.duration.WithLabelValues(path.String()).Observe(d.Seconds())
}

func (m *Metrics) retried() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) partialFailure(provider string) {
	if m != nil {
		m.partial.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) raced() {
	if m != nil {
		m.races.Inc()
	}
}

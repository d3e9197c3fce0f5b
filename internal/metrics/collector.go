package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/sim"
)

// Collector exports step statistics to Prometheus. It is a
// sim.FailureObserver.
type Collector struct {
	steps      prometheus.Counter
	failures   *prometheus.CounterVec
	iterations prometheus.Histogram
	residual   prometheus.Gauge
	simTime    prometheus.Gauge
}

var _ sim.FailureObserver = (*Collector)(nil)

// NewCollector registers the collector's series with reg. A nil reg uses
// the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		steps: f.NewCounter(prometheus.CounterOpts{
			Name: "stepsol_steps_total",
			Help: "Converged integration steps.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stepsol_step_failures_total",
			Help: "Failed integration steps by error kind.",
		}, []string{"kind"}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepsol_newton_iterations",
			Help:    "Nonlinear iterations per converged step.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		residual: f.NewGauge(prometheus.GaugeOpts{
			Name: "stepsol_residual_error",
			Help: "Residual error of the last converged step.",
		}),
		simTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "stepsol_simulation_time_seconds",
			Help: "Simulation time of the last converged step.",
		}),
	}
}

func (c *Collector) OnStep(info sim.StepInfo) {
	c.steps.Inc()
	c.iterations.Observe(float64(info.Stats.Iters))
	c.residual.Set(info.Stats.Err)
	c.simTime.Set(info.Time)
}

func (c *Collector) OnFailure(_ int, _ float64, err error) {
	c.failures.WithLabelValues(dynamo.KindOf(err).String()).Inc()
}

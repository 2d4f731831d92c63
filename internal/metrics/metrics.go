// Package metrics exports HMC trajectory statistics as prometheus collectors.
package metrics

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"gaugehmc/internal/hmc"
)

const namespace = "gaugehmc"

// Collector observes an updater. Register it with hmc.Updater.AddObserver.
type Collector struct {
	runID string

	trajectories *prometheus.CounterVec
	accepted     *prometheus.CounterVec
	deltaH       *prometheus.HistogramVec
	duration     *prometheus.HistogramVec
	acceptance   *prometheus.GaugeVec
	actionEnergy *prometheus.GaugeVec

	seen     int
	accepts  int
	runLabel prometheus.Labels
}

// New registers the collectors on reg, or reuses the ones an earlier run
// registered there; series are split by the run label. A nil reg uses a
// private registry.
func New(reg prometheus.Registerer, runID string) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Collector{
		runID:    runID,
		runLabel: prometheus.Labels{"run": runID},
		trajectories: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hmc",
			Name:      "trajectories_total",
			Help:      "Completed HMC trajectories",
		}, []string{"run", "measured"})),
		accepted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hmc",
			Name:      "accepted_total",
			Help:      "Accepted HMC trajectories",
		}, []string{"run"})),
		deltaH: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hmc",
			Name:      "delta_h_abs",
			Help:      "Absolute energy violation |dH| per trajectory",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"run"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hmc",
			Name:      "trajectory_duration_seconds",
			Help:      "Wall time of one trajectory",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"run"})),
		acceptance: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hmc",
			Name:      "acceptance_rate",
			Help:      "Running acceptance rate of the run",
		}, []string{"run"})),
		actionEnergy: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "energy",
			Help:      "Energy of each action after the last trajectory",
		}, []string{"run", "action"})),
	}
}

func (c *Collector) RunID() string { return c.runID }

func (c *Collector) OnTrajectory(rec hmc.TrajectoryRecord) {
	measured := "false"
	if rec.Measured {
		measured = "true"
	}
	c.trajectories.WithLabelValues(c.runID, measured).Inc()
	c.seen++
	if rec.Accepted {
		c.accepted.With(c.runLabel).Inc()
		c.accepts++
	}
	if !math.IsNaN(rec.DeltaH) && !math.IsInf(rec.DeltaH, 0) {
		c.deltaH.With(c.runLabel).Observe(math.Abs(rec.DeltaH))
	}
	c.duration.With(c.runLabel).Observe(rec.Duration.Seconds())
	c.acceptance.With(c.runLabel).Set(float64(c.accepts) / float64(c.seen))

	for _, e := range rec.Energies {
		v := e.After
		if !rec.Accepted {
			v = e.Before
		}
		c.actionEnergy.WithLabelValues(c.runID, e.Name).Set(v)
	}
}

// register adds c to reg. A collector with the same descriptor already
// registered is returned instead.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

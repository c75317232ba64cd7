//go:build !solution

package table

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OIS202/COMP346A3-Dining-Philosophers/monitor"
)

// Metrics exports session state to Prometheus. It is a monitor.Observer:
// transition counters are updated under the monitor lock.
type Metrics struct {
	Registry *prometheus.Registry

	meals  *prometheus.CounterVec
	talks  prometheus.Counter
	states *prometheus.GaugeVec
	wait   prometheus.Histogram
}

var _ monitor.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		meals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dining",
			Name:      "meals_total",
			Help:      "Meals eaten by each philosopher.",
		}, []string{"philosopher"}),
		talks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dining",
			Name:      "talks_total",
			Help:      "Granted talk requests.",
		}),
		states: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dining",
			Name:      "philosophers",
			Help:      "Philosophers by state.",
		}, []string{"state"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dining",
			Name:      "wait_seconds",
			Help:      "Time between getting hungry and starting to eat.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	m.Registry.MustRegister(m.meals, m.talks, m.states, m.wait)
	return m
}

// reset puts n philosophers into the thinking state.
func (m *Metrics) reset(n int) {
	m.states.WithLabelValues(monitor.Thinking.String()).Set(float64(n))
	m.states.WithLabelValues(monitor.Hungry.String()).Set(0)
	m.states.WithLabelValues(monitor.Eating.String()).Set(0)
}

func (m *Metrics) Hungry(int) {
	m.move(monitor.Thinking, monitor.Hungry)
}

func (m *Metrics) Eating(id int, _ int) {
	m.move(monitor.Hungry, monitor.Eating)
	m.meals.WithLabelValues(strconv.Itoa(id)).Inc()
}

func (m *Metrics) Thinking(_ int, from monitor.State) {
	m.move(from, monitor.Thinking)
}

func (m *Metrics) Talk(held bool) {
	if held {
		m.talks.Inc()
	}
}

func (m *Metrics) observeWait(d time.Duration) {
	m.wait.Observe(d.Seconds())
}

func (m *Metrics) move(from, to monitor.State) {
	m.states.WithLabelValues(from.String()).Dec()
	m.states.WithLabelValues(to.String()).Inc()
}

package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlaybackCollector exposes metrics for the playback clock.
type PlaybackCollector struct {
	gatherer prometheus.Gatherer

	TickDuration     prometheus.Histogram
	AirborneAircraft prometheus.Gauge
	LoopsTotal       prometheus.Counter
	SimulatedSeconds prometheus.Gauge
}

// NewPlaybackCollector registers playback metrics against the provided registerer.
func NewPlaybackCollector(reg prometheus.Registerer) (*PlaybackCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "playback_tick_duration_seconds",
		Help:    "Time spent sampling every trajectory for one playback tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "playback_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	airborne, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_airborne_aircraft",
		Help: "Aircraft airborne at the current playback instant.",
	}), "playback_airborne_aircraft")
	if err != nil {
		return nil, err
	}

	loops, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_loops_total",
		Help: "Times the playback clock wrapped back to the window start.",
	}), "playback_loops_total")
	if err != nil {
		return nil, err
	}

	elapsed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_simulated_seconds",
		Help: "Simulated seconds since the start of the playback window.",
	}), "playback_simulated_seconds")
	if err != nil {
		return nil, err
	}

	return &PlaybackCollector{
		gatherer:         gatherer,
		TickDuration:     tickHistogram,
		AirborneAircraft: airborne,
		LoopsTotal:       loops,
		SimulatedSeconds: elapsed,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PlaybackCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one playback tick.
func (c *PlaybackCollector) ObserveTick(d time.Duration, airborne int, sinceStart time.Duration) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.AirborneAircraft != nil {
		c.AirborneAircraft.Set(float64(airborne))
	}
	if c.SimulatedSeconds != nil {
		c.SimulatedSeconds.Set(sinceStart.Seconds())
	}
}

// IncLoops increments the wrap counter.
func (c *PlaybackCollector) IncLoops() {
	if c == nil || c.LoopsTotal == nil {
		return
	}
	c.LoopsTotal.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

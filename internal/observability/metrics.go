package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for simulation assembly and the
// HTTP surface. It satisfies core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Assemblies        *prometheus.CounterVec
	AssemblyDurations *prometheus.HistogramVec
	Flights           *prometheus.CounterVec
	FlightDurations   *prometheus.HistogramVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	RegistryAirports prometheus.Gauge
	RegistrySkipped  prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	assemblies, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_assemblies_total",
		Help: "Simulation assemblies, labeled by result (ok, partial, invalid).",
	}, []string{"result"}), "sim_assemblies_total")
	if err != nil {
		return nil, err
	}

	assemblyDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_assembly_duration_seconds",
		Help:    "Wall time spent assembling a simulation.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"result"}), "sim_assembly_duration_seconds")
	if err != nil {
		return nil, err
	}

	flights, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_flights_total",
		Help: "Flights processed during assembly, labeled by outcome.",
	}, []string{"outcome"}), "sim_flights_total")
	if err != nil {
		return nil, err
	}

	flightDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_flight_synthesis_duration_seconds",
		Help:    "Time to resolve and synthesize one flight.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"outcome"}), "sim_flight_synthesis_duration_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	airports, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "registry_airports",
		Help: "Airports loaded into the waypoint registry.",
	}), "registry_airports")
	if err != nil {
		return nil, err
	}
	skipped, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "registry_skipped_records",
		Help: "Malformed airport records dropped while building the registry.",
	}), "registry_skipped_records")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		Assemblies:        assemblies,
		AssemblyDurations: assemblyDurations,
		Flights:           flights,
		FlightDurations:   flightDurations,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
		RegistryAirports:  airports,
		RegistrySkipped:   skipped,
	}, nil
}

// ObserveAssembly records one assembly call.
func (c *SimCollector) ObserveAssembly(result string, flights int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.Assemblies != nil {
		c.Assemblies.WithLabelValues(result).Inc()
	}
	if c.AssemblyDurations != nil {
		c.AssemblyDurations.WithLabelValues(result).Observe(elapsed.Seconds())
	}
}

// ObserveFlight records the outcome of one flight.
func (c *SimCollector) ObserveFlight(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.Flights != nil {
		c.Flights.WithLabelValues(outcome).Inc()
	}
	if c.FlightDurations != nil {
		c.FlightDurations.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

// SetRegistryCounts updates the registry gauges after an index is built.
func (c *SimCollector) SetRegistryCounts(airports, skipped int) {
	if c == nil {
		return
	}
	if c.RegistryAirports != nil {
		c.RegistryAirports.Set(float64(airports))
	}
	if c.RegistrySkipped != nil {
		c.RegistrySkipped.Set(float64(skipped))
	}
}

// HTTPMiddleware records request counts and durations. route maps a request
// to a low-cardinality label such as the matched route pattern; it is
// evaluated after the handler ran.
func (c *SimCollector) HTTPMiddleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if c == nil {
				return
			}
			label := "unknown"
			if route != nil {
				if v := route(r); v != "" {
					label = v
				}
			}
			if c.HTTPRequests != nil {
				c.HTTPRequests.WithLabelValues(label, r.Method, strconv.Itoa(sw.status)).Inc()
			}
			if c.HTTPDurations != nil {
				c.HTTPDurations.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
			}
		})
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

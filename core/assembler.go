package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/brunoga/deep"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/rand"
	"github.com/signalsfoundry/airtraffic-sim/kb"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

const tracerName = "github.com/signalsfoundry/airtraffic-sim/core"

// Assembly results reported to MetricsRecorder.
const (
	AssemblyOK      = "ok"
	AssemblyPartial = "partial"
	AssemblyInvalid = "invalid"
)

// Per-flight outcomes reported to MetricsRecorder.
const (
	FlightOK         = "ok"
	FlightUnresolved = "unresolved"
	FlightDegenerate = "degenerate"
	FlightFailed     = "failed"
)

// MetricsRecorder receives assembly measurements. It is implemented by the
// observability package; a nil recorder is allowed.
type MetricsRecorder interface {
	ObserveAssembly(result string, flights int, elapsed time.Duration)
	ObserveFlight(outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveAssembly(string, int, time.Duration) {}
func (noopRecorder) ObserveFlight(string, time.Duration)        {}

// Options configures an Assembler. Zero values select defaults.
type Options struct {
	// SampleCount is the number of trajectory segments per flight.
	SampleCount int
	// CacheSize bounds the trajectory cache; negative disables it.
	CacheSize int
	// Parallelism bounds concurrent flight synthesis.
	Parallelism int
	Logger      logging.Logger
	Metrics     MetricsRecorder
	// Now supplies the start time for definitions without one.
	Now func() time.Time
	// TracerProvider defaults to the global provider at the time of each
	// Assemble call.
	TracerProvider trace.TracerProvider
}

// FlightResult is the outcome for one flight plan. Exactly one of
// Trajectory and Error is set.
type FlightResult struct {
	ID          string               `json:"id" msgpack:"id"`
	Callsign    string               `json:"callsign" msgpack:"callsign"`
	Origin      *kb.ResolvedWaypoint `json:"origin,omitempty" msgpack:"origin,omitempty"`
	Destination *kb.ResolvedWaypoint `json:"destination,omitempty" msgpack:"destination,omitempty"`
	Trajectory  *model.Trajectory    `json:"trajectory,omitempty" msgpack:"trajectory,omitempty"`
	Error       string               `json:"error,omitempty" msgpack:"error,omitempty"`
	Err         error                `json:"-" msgpack:"-"`
}

// OK reports whether the flight produced a trajectory.
func (r FlightResult) OK() bool { return r.Err == nil && r.Trajectory != nil }

// Report is the assembled simulation.
type Report struct {
	SimulationID string            `json:"simulationId" msgpack:"simulationId"`
	Name         string            `json:"name" msgpack:"name"`
	Seed         int64             `json:"seed" msgpack:"seed"`
	Start        time.Time         `json:"startTimeUtc" msgpack:"startTimeUtc"`
	DurationMin  float64           `json:"durationMin" msgpack:"durationMin"`
	Loop         bool              `json:"loop" msgpack:"loop"`
	OverallValid bool              `json:"overallValid" msgpack:"overallValid"`
	Validation   *ValidationResult `json:"validation,omitempty" msgpack:"validation,omitempty"`
	Flights      []FlightResult    `json:"flights" msgpack:"flights"`
}

// Window is the playback window consumers loop over when Loop is set.
func (r *Report) Window() time.Duration {
	return time.Duration(r.DurationMin * float64(time.Minute))
}

// Failed counts flights without a trajectory.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Flights {
		if !f.OK() {
			n++
		}
	}
	return n
}

// Trajectories returns the successful trajectories keyed by flight ID.
func (r *Report) Trajectories() map[string]*model.Trajectory {
	out := make(map[string]*model.Trajectory, len(r.Flights))
	for _, f := range r.Flights {
		if f.OK() {
			out[f.ID] = f.Trajectory
		}
	}
	return out
}

// Assembler turns simulation definitions into per-flight trajectories.
// It is safe for concurrent use.
type Assembler struct {
	synth       *Synthesizer
	parallelism int
	log         logging.Logger
	metrics     MetricsRecorder
	now         func() time.Time
	tp          trace.TracerProvider
}

// NewAssembler constructs an Assembler.
func NewAssembler(opts Options) (*Assembler, error) {
	if opts.SampleCount == 0 {
		opts.SampleCount = model.DefaultSampleCount
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 256
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	synth, err := NewSynthesizer(opts.SampleCount, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		synth:       synth,
		parallelism: opts.Parallelism,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		tp:          opts.TracerProvider,
	}, nil
}

func (a *Assembler) tracer() trace.Tracer {
	if a.tp != nil {
		return a.tp.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// Assemble validates cfg and synthesizes every flight against idx.
//
// A structurally invalid definition yields a report with OverallValid false
// and an error wrapping ErrConfigInvalid; no flight is processed. Otherwise
// the error is nil unless ctx is cancelled, and flights that cannot be
// resolved or synthesized carry their own error in the report. cfg is never
// modified.
func (a *Assembler) Assemble(ctx context.Context, cfg *model.SimulationConfig, idx *kb.AirportIndex) (*Report, error) {
	ctx, span := a.tracer().Start(ctx, "core.Assemble")
	defer span.End()
	started := time.Now()

	result := ValidateConfig(cfg)
	if !result.Valid {
		err := &ConfigError{Result: result}
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrConfigInvalid.Error())
		a.metrics.ObserveAssembly(AssemblyInvalid, 0, time.Since(started))
		a.log.Warn(ctx, "simulation rejected",
			logging.Int("issues", len(result.Issues)),
			logging.Err(err),
		)
		report := &Report{OverallValid: false, Validation: &result}
		if cfg != nil {
			report.SimulationID = cfg.ID
			report.Name = cfg.Name
		}
		return report, err
	}

	sim, seed, err := a.prepare(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sim.id", sim.ID),
		attribute.Int("sim.flights", len(sim.Flights)),
		attribute.Int64("sim.seed", seed),
	)

	results := make([]FlightResult, len(sim.Flights))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i := range sim.Flights {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.assembleFlight(gctx, sim.Flights[i], sim.StartTimeUTC, idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &Report{
		SimulationID: sim.ID,
		Name:         sim.Name,
		Seed:         seed,
		Start:        sim.StartTimeUTC,
		DurationMin:  sim.DurationMin,
		Loop:         sim.Loop,
		OverallValid: true,
		Flights:      results,
	}

	failed := report.Failed()
	outcome := AssemblyOK
	if failed > 0 {
		outcome = AssemblyPartial
	}
	a.metrics.ObserveAssembly(outcome, len(results), time.Since(started))
	a.log.Info(ctx, "simulation assembled",
		logging.String("sim_id", sim.ID),
		logging.Int("flights", len(results)),
		logging.Int("failed", failed),
		logging.Any("start", sim.StartTimeUTC),
	)
	return report, nil
}

// prepare applies defaults to a private copy of cfg and fixes each flight's
// cruise altitude.
func (a *Assembler) prepare(cfg *model.SimulationConfig) (*model.SimulationConfig, int64, error) {
	flights, err := deep.Copy(cfg.Flights)
	if err != nil {
		return nil, 0, fmt.Errorf("copy flight plans: %w", err)
	}
	sim := *cfg
	sim.Flights = flights

	if sim.StartTimeUTC.IsZero() {
		sim.StartTimeUTC = a.now()
	}
	sim.StartTimeUTC = sim.StartTimeUTC.UTC()

	seed := rand.SeedFromString(sim.ID)
	if sim.Seed != nil {
		seed = *sim.Seed
	}

	picker := NewCruisePicker(seed, sim.Band())
	for i := range sim.Flights {
		f := &sim.Flights[i]
		if f.CruiseAltFt == nil {
			alt := picker.CruiseAltitudeFt(*f)
			f.CruiseAltFt = &alt
		}
		if f.Callsign == "" {
			f.Callsign = f.ID
		}
	}
	return &sim, seed, nil
}

func (a *Assembler) assembleFlight(ctx context.Context, plan model.FlightPlan, start time.Time, idx *kb.AirportIndex) FlightResult {
	ctx, span := a.tracer().Start(ctx, "core.SynthesizeFlight",
		trace.WithAttributes(attribute.String("flight.id", plan.ID)))
	defer span.End()
	started := time.Now()

	res := FlightResult{ID: plan.ID, Callsign: plan.Callsign}
	fail := func(outcome string, err error) FlightResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		a.metrics.ObserveFlight(outcome, time.Since(started))
		a.log.Warn(ctx, "flight skipped",
			logging.String("flight_id", plan.ID),
			logging.String("outcome", outcome),
			logging.Err(err),
		)
		res.Err = err
		res.Error = err.Error()
		res.Trajectory = nil
		return res
	}

	origin, err := kb.ResolveWaypoint(plan.From, idx)
	if err != nil {
		return fail(FlightUnresolved, fmt.Errorf("flight %q origin: %w", plan.ID, err))
	}
	res.Origin = &origin
	dest, err := kb.ResolveWaypoint(plan.To, idx)
	if err != nil {
		return fail(FlightUnresolved, fmt.Errorf("flight %q destination: %w", plan.ID, err))
	}
	res.Destination = &dest

	tr, err := a.synth.Synthesize(plan, origin.Coordinate, dest.Coordinate, start)
	if err != nil {
		outcome := FlightFailed
		if errors.Is(err, ErrDegenerateRoute) {
			outcome = FlightDegenerate
		}
		return fail(outcome, err)
	}
	if off := plan.DepartOffset(); off != 0 {
		tr = Shift(tr, off)
	}
	res.Trajectory = tr

	span.SetAttributes(
		attribute.Float64("flight.distance_m", tr.DistanceMeters),
		attribute.Float64("flight.duration_s", tr.DurationSeconds),
	)
	a.metrics.ObserveFlight(FlightOK, time.Since(started))
	return res
}

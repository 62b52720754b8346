package timectrl

import (
	"context"
	"sort"
	"time"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/terrain"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// DefaultMultiplier matches the renderer's default time speed.
const DefaultMultiplier = 120

// TickRecorder receives per-tick playback measurements.
type TickRecorder interface {
	ObserveTick(d time.Duration, airborne int, sinceStart time.Duration)
	IncLoops()
}

// Aircraft is one playable flight.
type Aircraft struct {
	FlightID string
	Callsign string
	Motion   core.MotionModel
}

// AircraftState is an aircraft's state at one playback instant.
type AircraftState struct {
	FlightID string                 `json:"flightId"`
	Callsign string                 `json:"callsign"`
	Airborne bool                   `json:"airborne"`
	Sample   model.TrajectorySample `json:"sample"`
	// GroundM is the terrain elevation under the aircraft.
	GroundM float64 `json:"groundM"`
	// HeightAGLM is altitude above ground, never negative.
	HeightAGLM float64 `json:"heightAglM"`
	// Rotation is the icon rotation in radians for the sample heading.
	Rotation float64 `json:"rotation"`
}

// PlaybackOptions configures NewPlayback.
type PlaybackOptions struct {
	Tick       time.Duration
	Mode       Mode
	Multiplier float64
	Terrain    terrain.Provider
	Metrics    TickRecorder
	Logger     logging.Logger
}

// Playback replays an assembled simulation against a TimeController.
type Playback struct {
	Clock *TimeController

	aircraft []Aircraft
	terrain  terrain.Provider
	metrics  TickRecorder
	log      logging.Logger
}

// NewPlayback builds a playback for every successful flight in report. The
// clock starts at the simulation start, spans its window and wraps when the
// simulation loops.
func NewPlayback(report *core.Report, opts PlaybackOptions) *Playback {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = DefaultMultiplier
	}
	if opts.Terrain == nil {
		opts.Terrain = terrain.Ellipsoid{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}

	clock := NewTimeController(report.Start, opts.Tick, opts.Mode)
	clock.Multiplier = opts.Multiplier
	clock.Window = report.Window()
	clock.Loop = report.Loop

	var aircraft []Aircraft
	for _, f := range report.Flights {
		if !f.OK() {
			continue
		}
		aircraft = append(aircraft, Aircraft{
			FlightID: f.ID,
			Callsign: f.Callsign,
			Motion:   core.TrajectoryMotion{Trajectory: f.Trajectory},
		})
	}
	sort.Slice(aircraft, func(i, j int) bool { return aircraft[i].FlightID < aircraft[j].FlightID })

	p := &Playback{
		Clock:    clock,
		aircraft: aircraft,
		terrain:  opts.Terrain,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
	clock.AddLoopListener(func(t time.Time) {
		if p.metrics != nil {
			p.metrics.IncLoops()
		}
		p.log.Debug(context.Background(), "playback wrapped", logging.Any("sim_time", t))
	})
	return p
}

// Aircraft returns the playable flights ordered by flight ID.
func (p *Playback) Aircraft() []Aircraft {
	return append([]Aircraft(nil), p.aircraft...)
}

// Positions samples every aircraft at now.
func (p *Playback) Positions(now time.Time) []AircraftState {
	states := make([]AircraftState, 0, len(p.aircraft))
	for _, a := range p.aircraft {
		s, airborne := a.Motion.SampleAt(now)
		st := AircraftState{
			FlightID: a.FlightID,
			Callsign: a.Callsign,
			Airborne: airborne,
			Sample:   s,
		}
		if airborne {
			ground, err := p.terrain.ElevationM(s.Position.Coordinate())
			if err != nil {
				p.log.Debug(context.Background(), "terrain lookup failed",
					logging.String("flight_id", a.FlightID),
					logging.Err(err),
				)
				ground = 0
			}
			st.GroundM = ground
			st.HeightAGLM = max(0, s.Position.AltM-ground)
			st.Rotation = core.HeadingToRotation(s.Heading, core.DefaultNoseOffsetDeg)
		}
		states = append(states, st)
	}
	return states
}

// OnFrame registers fn to receive the aircraft states on every clock tick.
func (p *Playback) OnFrame(fn func(now time.Time, states []AircraftState)) {
	p.Clock.AddListener(func(now time.Time) {
		started := time.Now()
		states := p.Positions(now)
		if p.metrics != nil {
			airborne := 0
			for _, s := range states {
				if s.Airborne {
					airborne++
				}
			}
			p.metrics.ObserveTick(time.Since(started), airborne, now.Sub(p.Clock.StartTime))
		}
		fn(now, states)
	})
}

// Run plays the simulation until duration of simulated time has passed, the
// window ends, or ctx is done.
func (p *Playback) Run(ctx context.Context, duration time.Duration) <-chan struct{} {
	return p.Clock.Start(ctx, duration)
}

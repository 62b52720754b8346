package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// Routes shorter than this are treated as zero-length.
const minRouteMeters = 1.0

// Consecutive sample times are at least this far apart.
const minSampleStep = time.Microsecond

// Synthesize builds the trajectory for plan between two resolved endpoints.
// It produces sampleCount+1 samples at fractions i/sampleCount of the route,
// starting at start. The cruise altitude is plan.CruiseAltFt, or the bottom
// of the default band when unset.
func Synthesize(plan model.FlightPlan, from, to model.Coordinate, sampleCount int, start time.Time) (*model.Trajectory, error) {
	if sampleCount < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleCount, sampleCount)
	}
	speed := plan.SpeedMetersPerSecond()
	if !(speed > 0) || plan.Speed() > model.MaxSpeedKts {
		return nil, fmt.Errorf("%w: flight %q speed %v kts", ErrInvalidFlightPlan, plan.ID, plan.Speed())
	}
	cruiseFt := model.DefaultCruiseMinFt
	if plan.CruiseAltFt != nil {
		cruiseFt = *plan.CruiseAltFt
	}
	if !(cruiseFt > 0) || math.IsInf(cruiseFt, 0) {
		return nil, fmt.Errorf("%w: flight %q cruise altitude %v ft", ErrInvalidFlightPlan, plan.ID, cruiseFt)
	}
	cruiseM := cruiseFt * model.MetersPerFoot

	from, to = from.Normalize(), to.Normalize()
	g := NewGeodesic(from, to)
	distance := g.SurfaceDistance()
	if from == to || distance < minRouteMeters {
		return nil, fmt.Errorf("%w: flight %q origin and destination coincide", ErrDegenerateRoute, plan.ID)
	}
	duration := distance / speed
	if secondsToDuration(duration/float64(sampleCount)) < minSampleStep {
		return nil, fmt.Errorf("%w: flight %q too fast for %d samples", ErrInvalidFlightPlan, plan.ID, sampleCount)
	}

	points := make([]model.Coordinate, sampleCount+1)
	for i := range points {
		points[i] = g.InterpolateUsingFraction(float64(i) / float64(sampleCount))
	}

	samples := make([]model.TrajectorySample, len(points))
	for i, p := range points {
		f := float64(i) / float64(sampleCount)
		elapsed := duration * f

		var heading float64
		if i < sampleCount {
			heading = InitialBearing(p, points[i+1])
		} else {
			heading = samples[i-1].Heading
		}

		samples[i] = model.TrajectorySample{
			Elapsed: elapsed,
			Time:    start.Add(secondsToDuration(elapsed)),
			Position: model.Position{
				Lat:  p.Lat,
				Lon:  p.Lon,
				AltM: AltitudeAtFraction(f, cruiseM),
			},
			Heading: heading,
		}
	}

	return &model.Trajectory{
		FlightID:        plan.ID,
		Departure:       start,
		DurationSeconds: duration,
		DistanceMeters:  distance,
		CruiseAltM:      cruiseM,
		Samples:         samples,
	}, nil
}

// Shift returns a copy of tr with every timestamp moved by d. Elapsed
// offsets are relative to departure and do not change.
func Shift(tr *model.Trajectory, d time.Duration) *model.Trajectory {
	out := *tr
	out.Departure = tr.Departure.Add(d)
	out.Samples = make([]model.TrajectorySample, len(tr.Samples))
	for i, s := range tr.Samples {
		s.Time = s.Time.Add(d)
		out.Samples[i] = s
	}
	return &out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Synthesizer memoises trajectories. A cached trajectory is reused only when
// every input that shapes it is unchanged, so editing a flight plan always
// yields a fresh synthesis.
type Synthesizer struct {
	sampleCount int
	cache       *lru.Cache[string, *model.Trajectory]
}

// NewSynthesizer returns a synthesizer producing sampleCount segments per
// flight. cacheSize <= 0 disables caching.
func NewSynthesizer(sampleCount, cacheSize int) (*Synthesizer, error) {
	if sampleCount < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleCount, sampleCount)
	}
	s := &Synthesizer{sampleCount: sampleCount}
	if cacheSize > 0 {
		c, err := lru.New[string, *model.Trajectory](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create trajectory cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// SampleCount is the number of segments per trajectory.
func (s *Synthesizer) SampleCount() int {
	return s.sampleCount
}

// Synthesize returns a trajectory the caller may modify freely.
func (s *Synthesizer) Synthesize(plan model.FlightPlan, from, to model.Coordinate, start time.Time) (*model.Trajectory, error) {
	if s.cache == nil {
		return Synthesize(plan, from, to, s.sampleCount, start)
	}
	key := fingerprint(plan, from, to, s.sampleCount, start)
	if tr, ok := s.cache.Get(key); ok {
		return Shift(tr, 0), nil
	}
	tr, err := Synthesize(plan, from, to, s.sampleCount, start)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, tr)
	return Shift(tr, 0), nil
}

// CacheLen reports how many trajectories are memoised.
func (s *Synthesizer) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

func fingerprint(plan model.FlightPlan, from, to model.Coordinate, n int, start time.Time) string {
	cruise := math.NaN()
	if plan.CruiseAltFt != nil {
		cruise = *plan.CruiseAltFt
	}
	parts := []string{
		plan.ID,
		ftoa(from.Lat), ftoa(from.Lon),
		ftoa(to.Lat), ftoa(to.Lon),
		ftoa(plan.Speed()), ftoa(cruise),
		strconv.Itoa(n),
		strconv.FormatInt(start.UnixNano(), 10),
	}
	return strings.Join(parts, "|")
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// MotionModel yields an aircraft's state at a simulation instant.
type MotionModel interface {
	// SampleAt returns the state at t and whether the aircraft is airborne.
	SampleAt(t time.Time) (model.TrajectorySample, bool)
}

// TrajectoryMotion follows a synthesized trajectory.
type TrajectoryMotion struct {
	Trajectory *model.Trajectory
}

// SampleAt implements MotionModel.
func (m TrajectoryMotion) SampleAt(t time.Time) (model.TrajectorySample, bool) {
	return SampleAt(m.Trajectory, t)
}

// StaticMotion keeps an aircraft parked at a fixed position.
type StaticMotion struct {
	Position model.Position
	Heading  float64
}

// SampleAt implements MotionModel. A parked aircraft is never airborne.
func (m StaticMotion) SampleAt(t time.Time) (model.TrajectorySample, bool) {
	return model.TrajectorySample{Time: t, Position: m.Position, Heading: m.Heading}, false
}

// SampleAt interpolates tr at t between the two bracketing samples, linearly
// in time. The samples are already spaced along the geodesic, so the linear
// step between neighbours stays close to the true path. It returns false
// when t lies outside the trajectory.
func SampleAt(tr *model.Trajectory, t time.Time) (model.TrajectorySample, bool) {
	if tr == nil || len(tr.Samples) == 0 {
		return model.TrajectorySample{}, false
	}
	samples := tr.Samples
	first, last := samples[0], samples[len(samples)-1]
	if t.Before(first.Time) || t.After(last.Time) {
		return model.TrajectorySample{}, false
	}

	// First sample strictly after t.
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Time.After(t) })
	if i == len(samples) {
		return last, true
	}
	a, b := samples[i-1], samples[i]
	span := b.Time.Sub(a.Time)
	ratio := 0.0
	if span > 0 {
		ratio = float64(t.Sub(a.Time)) / float64(span)
	}

	return model.TrajectorySample{
		Elapsed: lerp(a.Elapsed, b.Elapsed, ratio),
		Time:    t,
		Position: model.Position{
			Lat:  lerp(a.Position.Lat, b.Position.Lat, ratio),
			Lon:  lerpLongitude(a.Position.Lon, b.Position.Lon, ratio),
			AltM: lerp(a.Position.AltM, b.Position.AltM, ratio),
		},
		Heading: InterpolateHeading(a.Heading, b.Heading, ratio),
	}, true
}

func lerp(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}

// lerpLongitude steps across the antimeridian rather than around the globe.
func lerpLongitude(a, b, ratio float64) float64 {
	d := b - a
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return model.Coordinate{Lon: a + d*ratio}.Normalize().Lon
}

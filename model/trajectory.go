package model

import (
	"math"
	"time"
)

// TrajectorySample is one time-stamped point of a flight path.
type TrajectorySample struct {
	// Elapsed is seconds since the flight's departure.
	Elapsed  float64   `json:"elapsed" msgpack:"elapsed"`
	Time     time.Time `json:"time" msgpack:"time"`
	Position Position  `json:"position" msgpack:"position"`
	// Heading is degrees clockwise from true north, in [0,360).
	Heading float64 `json:"heading" msgpack:"heading"`
}

// Trajectory is the ordered sample sequence for one flight. It is owned by
// the synthesizer that produced it and must be treated as read-only.
type Trajectory struct {
	FlightID        string             `json:"flightId" msgpack:"flightId"`
	Departure       time.Time          `json:"departure" msgpack:"departure"`
	DurationSeconds float64            `json:"durationSeconds" msgpack:"durationSeconds"`
	DistanceMeters  float64            `json:"distanceMeters" msgpack:"distanceMeters"`
	CruiseAltM      float64            `json:"cruiseAltM" msgpack:"cruiseAltM"`
	Samples         []TrajectorySample `json:"samples" msgpack:"samples"`
}

// Arrival is the instant of the last sample.
func (t *Trajectory) Arrival() time.Time {
	return t.Departure.Add(time.Duration(math.Round(t.DurationSeconds * float64(time.Second))))
}

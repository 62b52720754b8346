package model

import (
	"math"
	"time"
)

// Unit conversions used throughout the trajectory code.
const (
	MetersPerFoot    = 0.3048
	MetersPerNM      = 1852.0
	KnotsToMetersSec = MetersPerNM / 3600.0
)

// Flight plan defaults.
const (
	DefaultSpeedKts       = 450.0
	DefaultCruiseMinFt    = 34000.0
	DefaultCruiseMaxFt    = 35000.0
	DefaultSampleCount    = 64
	DefaultDurationMin    = 120.0
	DefaultCallsignPrefix = "SIM"
)

// Upper bounds accepted by validation. MaxSpeedKts sits well above any
// airliner; MaxMinutes is one week.
const (
	MaxSpeedKts = 2000.0
	MaxMinutes  = 7 * 24 * 60.0
)

// Waypoint is a flight endpoint descriptor: explicit coordinates, or an
// airport code that has to be resolved against a registry.
type Waypoint struct {
	IATA  string   `json:"iata,omitempty" msgpack:"iata,omitempty"`
	ICAO  string   `json:"icao,omitempty" msgpack:"icao,omitempty"`
	Lat   *float64 `json:"lat,omitempty" msgpack:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty" msgpack:"lon,omitempty"`
	AltFt *float64 `json:"altFt,omitempty" msgpack:"altFt,omitempty" validate:"omitempty,gte=0"`
}

// HasCoordinates reports whether both lat and lon were given.
func (w Waypoint) HasCoordinates() bool {
	return w.Lat != nil && w.Lon != nil
}

// Coordinate returns the explicit coordinates. Only meaningful when
// HasCoordinates is true.
func (w Waypoint) Coordinate() Coordinate {
	if !w.HasCoordinates() {
		return Coordinate{}
	}
	return Coordinate{Lat: *w.Lat, Lon: *w.Lon}
}

// Label is a short human-readable name for logs and error messages.
func (w Waypoint) Label() string {
	switch {
	case w.IATA != "":
		return w.IATA
	case w.ICAO != "":
		return w.ICAO
	case w.HasCoordinates():
		return "coordinates"
	default:
		return "unspecified"
	}
}

// FlightPlan is one flight in a simulation definition.
type FlightPlan struct {
	ID              string   `json:"id" msgpack:"id" validate:"nonblank"`
	Callsign        string   `json:"callsign" msgpack:"callsign"`
	From            Waypoint `json:"from" msgpack:"from"`
	To              Waypoint `json:"to" msgpack:"to"`
	SpeedKts        *float64 `json:"speedKts,omitempty" msgpack:"speedKts,omitempty" validate:"omitempty,gt=0,lte=2000"`
	CruiseAltFt     *float64 `json:"cruiseAltFt,omitempty" msgpack:"cruiseAltFt,omitempty" validate:"omitempty,gt=0"`
	DepartOffsetMin float64  `json:"departOffsetMin,omitempty" msgpack:"departOffsetMin,omitempty" validate:"gte=0,lte=10080"`
}

// Speed returns the cruise speed in knots, applying the default.
func (f FlightPlan) Speed() float64 {
	if f.SpeedKts == nil {
		return DefaultSpeedKts
	}
	return *f.SpeedKts
}

// SpeedMetersPerSecond converts the cruise speed to m/s.
func (f FlightPlan) SpeedMetersPerSecond() float64 {
	return f.Speed() * KnotsToMetersSec
}

// DepartOffset returns the departure offset as a duration, clamped to
// [0, MaxMinutes].
func (f FlightPlan) DepartOffset() time.Duration {
	return minutes(f.DepartOffsetMin)
}

func minutes(m float64) time.Duration {
	if !(m > 0) {
		return 0
	}
	return time.Duration(math.Min(m, MaxMinutes) * float64(time.Minute))
}

// AltitudeBand bounds the randomised cruise altitude for flights that do not
// set one explicitly.
type AltitudeBand struct {
	MinFt float64 `json:"minFt" msgpack:"minFt" validate:"gt=0"`
	MaxFt float64 `json:"maxFt" msgpack:"maxFt" validate:"gtefield=MinFt"`
}

// DefaultAltitudeBand is used when a simulation does not configure one.
func DefaultAltitudeBand() AltitudeBand {
	return AltitudeBand{MinFt: DefaultCruiseMinFt, MaxFt: DefaultCruiseMaxFt}
}

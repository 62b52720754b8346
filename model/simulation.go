package model

import "time"

// SimulationConfig is a complete simulation definition as stored by the
// simulation store and consumed by the assembler.
type SimulationConfig struct {
	ID           string        `json:"id" msgpack:"id" validate:"nonblank"`
	Name         string        `json:"name" msgpack:"name" validate:"nonblank"`
	Seed         *int64        `json:"seed,omitempty" msgpack:"seed,omitempty"`
	StartTimeUTC time.Time     `json:"startTimeUtc,omitempty" msgpack:"startTimeUtc,omitempty"`
	DurationMin  float64       `json:"durationMin" msgpack:"durationMin" validate:"gt=0,lte=10080"`
	Loop         bool          `json:"loop,omitempty" msgpack:"loop,omitempty"`
	CruiseBand   *AltitudeBand `json:"cruiseBand,omitempty" msgpack:"cruiseBand,omitempty" validate:"omitempty"`
	Flights      []FlightPlan  `json:"flights" msgpack:"flights" validate:"required,min=1,dive"`
}

// Window is the total animation window, clamped to MaxMinutes. With Loop
// set, consumers restart flights within this window.
func (c SimulationConfig) Window() time.Duration {
	return minutes(c.DurationMin)
}

// Band returns the configured cruise band or the default one.
func (c SimulationConfig) Band() AltitudeBand {
	if c.CruiseBand == nil {
		return DefaultAltitudeBand()
	}
	return *c.CruiseBand
}

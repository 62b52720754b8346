package core

import (
	"time"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// Template returns the starter simulation offered to new users: two
// transcontinental flights over a looping two-hour window starting now.
func Template(now time.Time) *model.SimulationConfig {
	speed1, alt1 := 470.0, 36000.0
	speed2, alt2 := 450.0, 34000.0
	return &model.SimulationConfig{
		ID:           "demo-conus",
		Name:         "MS&A Demo - CONUS",
		StartTimeUTC: now.UTC().Truncate(time.Second),
		DurationMin:  model.DefaultDurationMin,
		Loop:         true,
		Flights: []model.FlightPlan{
			{
				ID:          "f1",
				Callsign:    "MSN101",
				From:        model.Waypoint{IATA: "JFK"},
				To:          model.Waypoint{IATA: "LAX"},
				SpeedKts:    &speed1,
				CruiseAltFt: &alt1,
			},
			{
				ID:              "f2",
				Callsign:        "MSN202",
				From:            model.Waypoint{IATA: "DFW"},
				To:              model.Waypoint{IATA: "SEA"},
				SpeedKts:        &speed2,
				CruiseAltFt:     &alt2,
				DepartOffsetMin: 15,
			},
		},
	}
}

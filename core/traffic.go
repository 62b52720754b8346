package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/airtraffic-sim/internal/rand"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// ErrNotEnoughHubs is returned when random traffic cannot pick two distinct
// airports.
var ErrNotEnoughHubs = errors.New("at least two hub airports are required")

// TrafficOptions controls GenerateTraffic.
type TrafficOptions struct {
	Count    int
	SpeedKts float64
	Seed     int64
	// SpreadMin staggers departures uniformly over [0, SpreadMin).
	SpreadMin float64
}

// GenerateTraffic builds Count flight plans between distinct random hubs.
// Plans reference hubs by IATA code when they have one and by coordinates
// otherwise, so they resolve against any index containing the hubs.
func GenerateTraffic(hubs []model.Airport, opts TrafficOptions) ([]model.FlightPlan, error) {
	if len(hubs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughHubs, len(hubs))
	}
	count := max(1, opts.Count)
	speed := opts.SpeedKts
	if speed <= 0 {
		speed = model.DefaultSpeedKts
	}
	speed = min(speed, model.MaxSpeedKts)
	spread := min(opts.SpreadMin, model.MaxMinutes)

	r := rand.New(opts.Seed)
	plans := make([]model.FlightPlan, 0, count)
	for i := 0; i < count; i++ {
		a := r.Intn(len(hubs))
		b := r.Intn(len(hubs) - 1)
		if b >= a {
			b++
		}
		kts := speed
		plan := model.FlightPlan{
			ID:       fmt.Sprintf("gen-%03d", i+1),
			Callsign: fmt.Sprintf("%s%03d", model.DefaultCallsignPrefix, i+1),
			From:     hubWaypoint(hubs[a]),
			To:       hubWaypoint(hubs[b]),
			SpeedKts: &kts,
		}
		if spread > 0 {
			plan.DepartOffsetMin = r.Between(0, spread)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func hubWaypoint(a model.Airport) model.Waypoint {
	if a.IATA != "" {
		return model.Waypoint{IATA: a.IATA}
	}
	lat, lon := a.Lat, a.Lon
	return model.Waypoint{Lat: &lat, Lon: &lon}
}

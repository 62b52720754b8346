package core

import (
	"math"

	"github.com/signalsfoundry/airtraffic-sim/internal/rand"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// easeInOut is the symmetric quadratic ease used for both climb and descent.
func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	u := 1 - t
	return 1 - 2*u*u
}

// AltitudeAtFraction maps progress f along a flight to an altitude in the
// same unit as cruiseAltitude. The first half climbs, the second half
// descends; f=0 and f=1 are always exactly ground level and the peak,
// cruiseAltitude, is at f=0.5.
func AltitudeAtFraction(f, cruiseAltitude float64) float64 {
	switch {
	case f <= 0 || f >= 1 || math.IsNaN(f):
		return 0
	case f <= 0.5:
		return easeInOut(2*f) * cruiseAltitude
	default:
		return (1 - easeInOut(2*(f-0.5))) * cruiseAltitude
	}
}

// CruisePicker chooses one cruise altitude per flight. Flights with an
// explicit cruise altitude keep it; the rest draw once from the band using a
// generator derived from the simulation seed and the flight ID, so a flight's
// altitude depends neither on draw order nor on its sibling flights.
type CruisePicker struct {
	seed int64
	band model.AltitudeBand
}

// NewCruisePicker returns a picker for the given seed and band.
func NewCruisePicker(seed int64, band model.AltitudeBand) *CruisePicker {
	return &CruisePicker{seed: seed, band: band}
}

// CruiseAltitudeFt returns the cruise altitude for plan in feet.
func (p *CruisePicker) CruiseAltitudeFt(plan model.FlightPlan) float64 {
	if plan.CruiseAltFt != nil {
		return *plan.CruiseAltFt
	}
	r := rand.NewStream(p.seed, rand.StreamFromString(plan.ID))
	return r.Between(p.band.MinFt, p.band.MaxFt)
}

// CruiseAltitudeM is CruiseAltitudeFt converted to metres.
func (p *CruisePicker) CruiseAltitudeM(plan model.FlightPlan) float64 {
	return p.CruiseAltitudeFt(plan) * model.MetersPerFoot
}

// Package kb holds the read-only airport registry and resolves flight
// endpoints against it.
package kb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// ErrUnresolvedWaypoint indicates a waypoint had no usable coordinates and
// no airport code known to the registry.
var ErrUnresolvedWaypoint = errors.New("unresolved waypoint")

// AirportIndex is an in-memory airport registry indexed by IATA and ICAO
// code (case-insensitive). It is built once and never mutated afterwards, so
// concurrent readers need no locking.
type AirportIndex struct {
	airports []model.Airport
	byIATA   map[string]int
	byICAO   map[string]int
	skipped  int
}

// NewAirportIndex builds an index from a flat list of airport records.
// Records with missing or out-of-range coordinates are dropped; only the
// number dropped is kept. When two records share a code, the later wins.
func NewAirportIndex(records []model.Airport) *AirportIndex {
	idx := &AirportIndex{
		airports: make([]model.Airport, 0, len(records)),
		byIATA:   make(map[string]int),
		byICAO:   make(map[string]int),
	}
	for _, a := range records {
		if !a.Coordinate.Valid() {
			idx.skipped++
			continue
		}
		a.IATA = normalizeCode(a.IATA)
		a.ICAO = normalizeCode(a.ICAO)

		pos := len(idx.airports)
		idx.airports = append(idx.airports, a)
		if a.IATA != "" {
			idx.byIATA[a.IATA] = pos
		}
		if a.ICAO != "" {
			idx.byICAO[a.ICAO] = pos
		}
	}
	return idx
}

// Len returns the number of airports kept in the registry.
func (idx *AirportIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.airports)
}

// Skipped returns the number of malformed records dropped at build time.
func (idx *AirportIndex) Skipped() int {
	if idx == nil {
		return 0
	}
	return idx.skipped
}

// ByIATA looks an airport up by IATA code.
func (idx *AirportIndex) ByIATA(code string) (model.Airport, bool) {
	return idx.lookup(idx.byIATA, code)
}

// ByICAO looks an airport up by ICAO code.
func (idx *AirportIndex) ByICAO(code string) (model.Airport, bool) {
	return idx.lookup(idx.byICAO, code)
}

// Airports returns a snapshot of all registered airports in load order.
func (idx *AirportIndex) Airports() []model.Airport {
	if idx == nil {
		return nil
	}
	return append([]model.Airport(nil), idx.airports...)
}

func (idx *AirportIndex) lookup(m map[string]int, code string) (model.Airport, bool) {
	if idx == nil {
		return model.Airport{}, false
	}
	code = normalizeCode(code)
	if code == "" {
		return model.Airport{}, false
	}
	pos, ok := m[code]
	if !ok {
		return model.Airport{}, false
	}
	return idx.airports[pos], true
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == `\N` {
		return ""
	}
	return code
}

// ResolvedWaypoint is a waypoint after resolution.
type ResolvedWaypoint struct {
	model.Coordinate
	// Airport is set when the coordinates came from the registry.
	Airport *model.Airport `json:"airport,omitempty" msgpack:"airport,omitempty"`
	// AltFt carries the waypoint's altitude override, if any.
	AltFt *float64 `json:"altFt,omitempty" msgpack:"altFt,omitempty"`
}

// ResolveWaypoint resolves w in precedence order: explicit coordinates,
// then IATA code, then ICAO code.
func ResolveWaypoint(w model.Waypoint, idx *AirportIndex) (ResolvedWaypoint, error) {
	if w.HasCoordinates() {
		c := w.Coordinate()
		if !c.Valid() {
			return ResolvedWaypoint{}, fmt.Errorf("%w: invalid coordinates (%v, %v)", ErrUnresolvedWaypoint, c.Lat, c.Lon)
		}
		return ResolvedWaypoint{Coordinate: c, AltFt: w.AltFt}, nil
	}
	if a, ok := idx.ByIATA(w.IATA); ok {
		return ResolvedWaypoint{Coordinate: a.Coordinate, Airport: &a, AltFt: w.AltFt}, nil
	}
	if a, ok := idx.ByICAO(w.ICAO); ok {
		return ResolvedWaypoint{Coordinate: a.Coordinate, Airport: &a, AltFt: w.AltFt}, nil
	}
	return ResolvedWaypoint{}, fmt.Errorf("%w: %s", ErrUnresolvedWaypoint, describe(w))
}

// Resolve is ResolveWaypoint reduced to the coordinate.
func Resolve(w model.Waypoint, idx *AirportIndex) (model.Coordinate, error) {
	r, err := ResolveWaypoint(w, idx)
	if err != nil {
		return model.Coordinate{}, err
	}
	return r.Coordinate, nil
}

func describe(w model.Waypoint) string {
	var parts []string
	if w.IATA != "" {
		parts = append(parts, fmt.Sprintf("iata=%q", w.IATA))
	}
	if w.ICAO != "" {
		parts = append(parts, fmt.Sprintf("icao=%q", w.ICAO))
	}
	if len(parts) == 0 {
		return "no coordinates or airport code"
	}
	return "no airport for " + strings.Join(parts, " ")
}

package model

import (
	"math"
	"testing"
	"time"
)

func TestCoordinateValid(t *testing.T) {
	cases := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{Lat: 0, Lon: 0}, true},
		{Coordinate{Lat: 90, Lon: -180}, true},
		{Coordinate{Lat: 90.01, Lon: 0}, false},
		{Coordinate{Lat: 0, Lon: 181}, false},
		{Coordinate{Lat: math.NaN(), Lon: 0}, false},
		{Coordinate{Lat: 0, Lon: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Fatalf("Valid(%+v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestCoordinateNormalize(t *testing.T) {
	cases := []struct {
		in, want Coordinate
	}{
		{Coordinate{Lat: 95, Lon: 10}, Coordinate{Lat: 90, Lon: 10}},
		{Coordinate{Lat: -100, Lon: 190}, Coordinate{Lat: -90, Lon: -170}},
		{Coordinate{Lat: 10, Lon: -190}, Coordinate{Lat: 10, Lon: 170}},
		{Coordinate{Lat: 10, Lon: 180}, Coordinate{Lat: 10, Lon: 180}},
		{Coordinate{Lat: 10, Lon: 540}, Coordinate{Lat: 10, Lon: -180}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); !got.Equal(tc.want, 1e-9) {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestWaypointLabelAndCoordinates(t *testing.T) {
	lat, lon := 1.5, 2.5
	w := Waypoint{Lat: &lat}
	if w.HasCoordinates() {
		t.Fatalf("HasCoordinates with only lat = true, want false")
	}
	if got := w.Label(); got != "unspecified" {
		t.Fatalf("Label() = %q, want unspecified", got)
	}
	w.Lon = &lon
	if got := w.Coordinate(); got != (Coordinate{Lat: 1.5, Lon: 2.5}) {
		t.Fatalf("Coordinate() = %+v", got)
	}
	if got := (Waypoint{ICAO: "KJFK", Lat: &lat, Lon: &lon}).Label(); got != "KJFK" {
		t.Fatalf("Label() = %q, want KJFK", got)
	}
}

func TestFlightPlanDefaults(t *testing.T) {
	var f FlightPlan
	if got := f.Speed(); got != DefaultSpeedKts {
		t.Fatalf("Speed() = %v, want %v", got, DefaultSpeedKts)
	}
	speed := 500.0
	f.SpeedKts = &speed
	if got, want := f.SpeedMetersPerSecond(), 500*1852.0/3600; math.Abs(got-want) > 1e-9 {
		t.Fatalf("SpeedMetersPerSecond() = %v, want %v", got, want)
	}
	f.DepartOffsetMin = 1.5
	if got := f.DepartOffset(); got != 90*time.Second {
		t.Fatalf("DepartOffset() = %v, want 90s", got)
	}
	f.DepartOffsetMin = 1e12
	if got, want := f.DepartOffset(), 7*24*time.Hour; got != want {
		t.Fatalf("DepartOffset() = %v, want clamp to %v", got, want)
	}
	f.DepartOffsetMin = math.NaN()
	if got := f.DepartOffset(); got != 0 {
		t.Fatalf("DepartOffset(NaN) = %v, want 0", got)
	}
}

func TestSimulationWindowAndBand(t *testing.T) {
	cfg := SimulationConfig{DurationMin: 120}
	if got := cfg.Window(); got != 2*time.Hour {
		t.Fatalf("Window() = %v, want 2h", got)
	}
	if got := (SimulationConfig{DurationMin: 1e12}).Window(); got != 7*24*time.Hour {
		t.Fatalf("Window() = %v, want one week", got)
	}
	if got := cfg.Band(); got != DefaultAltitudeBand() {
		t.Fatalf("Band() = %+v, want default", got)
	}
	cfg.CruiseBand = &AltitudeBand{MinFt: 30000, MaxFt: 31000}
	if got := cfg.Band(); got.MinFt != 30000 || got.MaxFt != 31000 {
		t.Fatalf("Band() = %+v", got)
	}
}

func TestTrajectoryArrival(t *testing.T) {
	dep := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := &Trajectory{Departure: dep, DurationSeconds: 3600.0000000004}
	if got := tr.Arrival(); !got.Equal(dep.Add(time.Hour)) {
		t.Fatalf("Arrival() = %v, want %v", got, dep.Add(time.Hour))
	}
}

package core

import (
	"errors"

	"github.com/signalsfoundry/airtraffic-sim/kb"
)

var (
	// ErrConfigInvalid indicates a simulation definition failed structural
	// validation. It is fatal to an assembly call.
	ErrConfigInvalid = errors.New("config invalid")
	// ErrUnresolvedWaypoint is re-exported from kb so callers can depend on
	// core alone.
	ErrUnresolvedWaypoint = kb.ErrUnresolvedWaypoint
	// ErrDegenerateRoute indicates origin and destination resolve to the same
	// point, leaving heading undefined.
	ErrDegenerateRoute = errors.New("degenerate route")
	// ErrInvalidSampleCount indicates fewer than two trajectory segments were
	// requested.
	ErrInvalidSampleCount = errors.New("sample count must be at least 2")
	// ErrInvalidFlightPlan indicates a plan with non-positive speed or cruise
	// altitude reached the synthesizer.
	ErrInvalidFlightPlan = errors.New("invalid flight plan")
)

// Package terrain provides ground elevation behind one stable interface.
// Adapters are tried in order and the flat ellipsoid is always available, so
// callers never depend on which source is active.
package terrain

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// ErrOutOfCoverage is returned by providers that only cover part of the globe.
var ErrOutOfCoverage = errors.New("coordinate outside terrain coverage")

// Provider reports ground elevation in metres above the ellipsoid.
type Provider interface {
	Name() string
	ElevationM(c model.Coordinate) (float64, error)
}

// Ellipsoid is the flat, elevation-free fallback.
type Ellipsoid struct{}

// Name implements Provider.
func (Ellipsoid) Name() string { return "ellipsoid" }

// ElevationM implements Provider.
func (Ellipsoid) ElevationM(model.Coordinate) (float64, error) { return 0, nil }

// Candidate is one adapter Negotiate may pick.
type Candidate struct {
	Name string
	Open func(ctx context.Context) (Provider, error)
}

// Negotiate returns the first candidate that opens successfully, falling back
// to Ellipsoid when none do.
func Negotiate(ctx context.Context, log logging.Logger, candidates ...Candidate) Provider {
	if log == nil {
		log = logging.Noop()
	}
	for _, c := range candidates {
		if c.Open == nil {
			continue
		}
		p, err := c.Open(ctx)
		if err != nil {
			log.Warn(ctx, "terrain provider unavailable",
				logging.String("provider", c.Name),
				logging.Err(err),
			)
			continue
		}
		if p == nil {
			continue
		}
		log.Info(ctx, "terrain provider selected", logging.String("provider", p.Name()))
		return p
	}
	log.Warn(ctx, "no terrain provider available; using ellipsoid")
	return Ellipsoid{}
}

// WithFallback answers from primary and falls back to secondary for
// coordinates primary does not cover.
func WithFallback(primary, secondary Provider) Provider {
	return fallback{primary: primary, secondary: secondary}
}

type fallback struct {
	primary, secondary Provider
}

func (f fallback) Name() string {
	return fmt.Sprintf("%s+%s", f.primary.Name(), f.secondary.Name())
}

func (f fallback) ElevationM(c model.Coordinate) (float64, error) {
	h, err := f.primary.ElevationM(c)
	if errors.Is(err, ErrOutOfCoverage) {
		return f.secondary.ElevationM(c)
	}
	return h, err
}

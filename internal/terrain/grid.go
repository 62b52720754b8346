package terrain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// Grid is a regular latitude/longitude elevation grid. Row 0 is the southern
// edge; Elevations is row-major with Rows*Cols entries.
type Grid struct {
	OriginLat  float64   `json:"originLat" msgpack:"originLat"`
	OriginLon  float64   `json:"originLon" msgpack:"originLon"`
	StepDeg    float64   `json:"stepDeg" msgpack:"stepDeg"`
	Rows       int       `json:"rows" msgpack:"rows"`
	Cols       int       `json:"cols" msgpack:"cols"`
	Elevations []float64 `json:"elevations" msgpack:"elevations"`
}

func (g *Grid) validate() error {
	switch {
	case g.Rows < 2 || g.Cols < 2:
		return fmt.Errorf("terrain grid needs at least 2x2 samples, got %dx%d", g.Rows, g.Cols)
	case !(g.StepDeg > 0):
		return fmt.Errorf("terrain grid step must be positive, got %v", g.StepDeg)
	case len(g.Elevations) != g.Rows*g.Cols:
		return fmt.Errorf("terrain grid has %d elevations, want %d", len(g.Elevations), g.Rows*g.Cols)
	}
	return nil
}

// Name implements Provider.
func (g *Grid) Name() string { return "grid" }

// ElevationM bilinearly interpolates the four surrounding grid samples.
func (g *Grid) ElevationM(c model.Coordinate) (float64, error) {
	y := (c.Lat - g.OriginLat) / g.StepDeg
	x := (c.Lon - g.OriginLon) / g.StepDeg
	maxY, maxX := float64(g.Rows-1), float64(g.Cols-1)
	if math.IsNaN(x) || math.IsNaN(y) || y < 0 || x < 0 || y > maxY || x > maxX {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfCoverage, c.Lat, c.Lon)
	}

	r0, c0 := int(math.Min(math.Floor(y), maxY-1)), int(math.Min(math.Floor(x), maxX-1))
	fy, fx := y-float64(r0), x-float64(c0)

	at := func(r, c int) float64 { return g.Elevations[r*g.Cols+c] }
	south := at(r0, c0)*(1-fx) + at(r0, c0+1)*fx
	north := at(r0+1, c0)*(1-fx) + at(r0+1, c0+1)*fx
	return south*(1-fy) + north*fy, nil
}

// DecodeGridJSON reads a grid encoded as JSON.
func DecodeGridJSON(r io.Reader) (*Grid, error) {
	var g Grid
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode terrain grid: %w", err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// DecodeGridMsgpack reads a grid encoded as MessagePack.
func DecodeGridMsgpack(r io.Reader) (*Grid, error) {
	var g Grid
	if err := msgpack.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode terrain grid: %w", err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// OpenGridFile loads a grid from path. ".msgpack" files are MessagePack,
// anything else JSON; a trailing ".zst" is decompressed first.
func OpenGridFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
		name = strings.TrimSuffix(name, ".zst")
	}

	if strings.HasSuffix(name, ".msgpack") {
		return DecodeGridMsgpack(r)
	}
	return DecodeGridJSON(r)
}

// GridFile is a Negotiate candidate backed by OpenGridFile. Coordinates
// outside the grid fall back to the ellipsoid.
func GridFile(path string) Candidate {
	return Candidate{
		Name: "grid:" + path,
		Open: func(context.Context) (Provider, error) {
			if path == "" {
				return nil, fmt.Errorf("no terrain grid configured")
			}
			g, err := OpenGridFile(path)
			if err != nil {
				return nil, err
			}
			return WithFallback(g, Ellipsoid{}), nil
		},
	}
}

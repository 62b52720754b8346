package core

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// WGS84 ellipsoid parameters. Geodesic distances and ECEF conversion both
// use this model.
const (
	WGS84SemiMajorM = 6378137.0
	WGS84Flattening = 1 / 298.257223563
)

var wgs84EccSq = WGS84Flattening * (2 - WGS84Flattening)

// Vec3 is an ECEF vector in metres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// ToECEF converts a geodetic position to earth-centred earth-fixed metres.
func ToECEF(p model.Position) Vec3 {
	lat := p.Lat * math.Pi / 180
	lon := p.Lon * math.Pi / 180
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := WGS84SemiMajorM / math.Sqrt(1-wgs84EccSq*sinLat*sinLat)
	return Vec3{
		X: (n + p.AltM) * cosLat * math.Cos(lon),
		Y: (n + p.AltM) * cosLat * math.Sin(lon),
		Z: (n*(1-wgs84EccSq) + p.AltM) * sinLat,
	}
}

// Geodesic is the solved shortest path between two coordinates on the
// WGS84 ellipsoid. Solving once and interpolating many times avoids
// repeating the inverse problem for every trajectory sample.
type Geodesic struct {
	From, To model.Coordinate

	distance float64
	azimuth  float64
}

// NewGeodesic solves the inverse problem from a to b. NaN inputs are a
// programming error and panic.
func NewGeodesic(a, b model.Coordinate) Geodesic {
	mustBeNumbers(a, b)
	g := Geodesic{From: a, To: b}
	var azi2 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &g.distance, &g.azimuth, &azi2)
	return g
}

// SurfaceDistance is the length of the geodesic in metres.
func (g Geodesic) SurfaceDistance() float64 {
	return g.distance
}

// InterpolateUsingFraction returns the point at fraction f of the way along
// the geodesic. f is clamped to [0,1]; the endpoints are returned exactly.
func (g Geodesic) InterpolateUsingFraction(f float64) model.Coordinate {
	switch {
	case f <= 0 || g.distance == 0:
		return g.From
	case f >= 1:
		return g.To
	}
	var lat, lon, azi2 float64
	geodesic.WGS84.Direct(g.From.Lat, g.From.Lon, g.azimuth, f*g.distance, &lat, &lon, &azi2)
	return model.Coordinate{Lat: lat, Lon: lon}.Normalize()
}

// SurfaceDistance returns the geodesic distance in metres between a and b.
func SurfaceDistance(a, b model.Coordinate) float64 {
	return NewGeodesic(a, b).SurfaceDistance()
}

// Interpolate returns the point at fraction f along the geodesic from a to b.
func Interpolate(a, b model.Coordinate, f float64) model.Coordinate {
	return NewGeodesic(a, b).InterpolateUsingFraction(f)
}

// InitialBearing returns the forward azimuth at a toward b in degrees,
// clockwise from north, in [0,360). The result for a == b is meaningless;
// callers must reject zero-length routes first.
func InitialBearing(a, b model.Coordinate) float64 {
	mustBeNumbers(a, b)
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeDegrees maps any angle into [0,360).
func NormalizeDegrees(d float64) float64 {
	n := math.Mod(d, 360)
	if n < 0 {
		n += 360
	}
	if n >= 360 {
		n -= 360
	}
	return n
}

// HeadingDifference returns the signed turn in (-180,180] from a to b.
func HeadingDifference(a, b float64) float64 {
	d := NormalizeDegrees(b - a)
	if d > 180 {
		d -= 360
	}
	return d
}

// InterpolateHeading turns from a toward b by ratio along the shorter arc.
func InterpolateHeading(a, b, ratio float64) float64 {
	return NormalizeDegrees(a + HeadingDifference(a, b)*ratio)
}

// DefaultNoseOffsetDeg is the rotation of the stock aircraft icon, which
// points north-east when unrotated.
const DefaultNoseOffsetDeg = 45.0

// HeadingToRotation converts a true heading into the icon rotation in
// radians for a renderer whose icon points noseOffsetDeg clockwise from up.
func HeadingToRotation(headingDeg, noseOffsetDeg float64) float64 {
	return NormalizeDegrees(headingDeg+noseOffsetDeg) * math.Pi / 180
}

func mustBeNumbers(cs ...model.Coordinate) {
	for _, c := range cs {
		if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
			panic(fmt.Sprintf("core: NaN coordinate %+v", c))
		}
	}
}

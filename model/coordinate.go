package model

import "math"

// Coordinate is a geographic position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Normalize clamps latitude to [-90,90] and wraps longitude into [-180,180].
func (c Coordinate) Normalize() Coordinate {
	lat := math.Max(-90, math.Min(90, c.Lat))
	lon := c.Lon
	if lon < -180 || lon > 180 {
		lon = math.Mod(lon+180, 360)
		if lon < 0 {
			lon += 360
		}
		lon -= 180
	}
	return Coordinate{Lat: lat, Lon: lon}
}

// Equal reports whether two coordinates refer to the same point within tol degrees.
func (c Coordinate) Equal(other Coordinate, tol float64) bool {
	return math.Abs(c.Lat-other.Lat) <= tol && math.Abs(c.Lon-other.Lon) <= tol
}

// Position is a 3D geodetic position. Altitude is metres above the ellipsoid.
type Position struct {
	Lat  float64 `json:"lat" msgpack:"lat"`
	Lon  float64 `json:"lon" msgpack:"lon"`
	AltM float64 `json:"altM" msgpack:"altM"`
}

// Coordinate drops the altitude.
func (p Position) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

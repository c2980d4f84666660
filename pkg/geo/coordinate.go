package geo

import (
	"fmt"
	"math"
)

// WGS84 equatorial radius, meters.
const earthRadius = 6378137.0

// Coordinate is an absolute point in WGS84 space. Altitude is in meters
// relative to the takeoff (home) location, not MSL.
type Coordinate struct {
	Lat  float64 `json:"lat" yaml:"lat"`
	Lon  float64 `json:"lon" yaml:"lon"`
	Alt  float64 `json:"alt" yaml:"alt"`
	Name string  `json:"name,omitempty" yaml:"name,omitempty"`
}

// NewCoordinate returns a coordinate at the given latitude, longitude and
// relative altitude.
func NewCoordinate(lat, lon, alt float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon, Alt: alt}
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) ||
		math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) ||
		math.IsNaN(c.Alt) || math.IsInf(c.Alt, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// GroundDistanceTo returns the 2D haversine distance to other in meters,
// ignoring the altitude difference.
func (c Coordinate) GroundDistanceTo(other Coordinate) float64 {
	other.Alt = c.Alt
	return c.DistanceTo(other)
}

// DistanceTo returns the 3D distance to other in meters: haversine ground
// distance combined with the altitude delta.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	d2r := math.Pi / 180
	dLon := (other.Lon - c.Lon) * d2r
	dLat := (other.Lat - c.Lat) * d2r
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(c.Lat*d2r)*math.Cos(other.Lat*d2r)*math.Pow(math.Sin(dLon/2), 2)
	ground := earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Hypot(ground, other.Alt-c.Alt)
}

// BearingTo returns the initial bearing from c to other in degrees,
// 0 = north, wrapped to [0, 360). Coincident points yield 0.
func (c Coordinate) BearingTo(other Coordinate) float64 {
	dLat := other.Lat - c.Lat
	dLon := other.Lon - c.Lon
	if math.Abs(dLat) < 1e-10 && math.Abs(dLon) < 1e-10 {
		return 0
	}
	bearing := 90 + math.Atan2(-dLat, dLon)*180/math.Pi
	return NormalizeHeading(bearing)
}

// metersPerDegree returns the north and east meters-per-degree scale at the
// given latitude in radians, from the standard series expansion. OffsetBy
// and VectorTo share it so the two directions invert each other to well
// under a meter over mission-scale separations.
func metersPerDegree(lat float64) (north, east float64) {
	north = 111132.954 - 559.822*math.Cos(2*lat) + 1.175*math.Cos(4*lat)
	east = 111132.954 * math.Cos(lat)
	return north, east
}

// OffsetBy returns the coordinate displaced by v. North/east displacement
// maps to latitude/longitude degrees; positive down lowers the altitude.
func (c Coordinate) OffsetBy(v VectorNED) Coordinate {
	latM, lonM := metersPerDegree(c.Lat * math.Pi / 180)
	return Coordinate{
		Lat: c.Lat + v.North/latM,
		Lon: c.Lon + v.East/lonM,
		Alt: c.Alt - v.Down,
	}
}

// VectorTo returns the NED displacement from c to other, scaled at the
// mid-latitude between the two points.
func (c Coordinate) VectorTo(other Coordinate) VectorNED {
	latM, lonM := metersPerDegree((c.Lat + other.Lat) * math.Pi / 360)
	return VectorNED{
		North: (other.Lat - c.Lat) * latM,
		East:  (other.Lon - c.Lon) * lonM,
		Down:  c.Alt - other.Alt,
	}
}

func (c Coordinate) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%s(%.7f,%.7f,%.1f)", c.Name, c.Lat, c.Lon, c.Alt)
	}
	return fmt.Sprintf("(%.7f,%.7f,%.1f)", c.Lat, c.Lon, c.Alt)
}

// Package geo provides geographic coordinates and great-circle distance helpers.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Coordinate is a route vertex. Elevation is nil for 2D geometry.
type Coordinate struct {
	Lon       float64  `json:"lon"`
	Lat       float64  `json:"lat"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// NewCoordinate creates a 2D coordinate.
func NewCoordinate(lon, lat float64) Coordinate {
	return Coordinate{Lon: lon, Lat: lat}
}

// NewCoordinate3D creates a coordinate carrying elevation in meters.
func NewCoordinate3D(lon, lat, elevation float64) Coordinate {
	e := elevation
	return Coordinate{Lon: lon, Lat: lat, Elevation: &e}
}

// HasElevation reports whether the coordinate carries an elevation component.
func (c Coordinate) HasElevation() bool {
	return c.Elevation != nil
}

// Valid reports whether latitude and longitude are within range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lon)
}

// Haversine returns the great-circle distance in kilometers between two points
// given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)

	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Distance returns the Haversine distance in kilometers between two coordinates.
func Distance(a, b Coordinate) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// PathLength returns the total length in kilometers of a path.
func PathLength(path []Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

package corridor

import "github.com/routecast/routecast/pkg/geo"

// ElevationPoint is one vertex of an elevation profile.
type ElevationPoint struct {
	CumulativeDistanceKm float64 `json:"cumulativeDistanceKm"`
	ElevationMeters      float64 `json:"elevationMeters"`
}

// BuildProfile walks geometry accumulating Haversine distance. It returns
// nil when the first vertex carries no elevation. Later vertices missing
// elevation repeat the last known value so the profile keeps one entry per
// vertex.
func BuildProfile(geometry []geo.Coordinate) []ElevationPoint {
	if len(geometry) == 0 || !geometry[0].HasElevation() {
		return nil
	}

	profile := make([]ElevationPoint, len(geometry))
	elev := *geometry[0].Elevation
	profile[0] = ElevationPoint{ElevationMeters: elev}

	var total float64
	for i := 1; i < len(geometry); i++ {
		total += geo.Distance(geometry[i-1], geometry[i])
		if geometry[i].HasElevation() {
			elev = *geometry[i].Elevation
		}
		profile[i] = ElevationPoint{CumulativeDistanceKm: total, ElevationMeters: elev}
	}
	return profile
}

// elevationAt returns the elevation at geometry[idx], or at the closest
// preceding vertex that has one. It returns nil when the route has no
// elevation data.
func elevationAt(geometry []geo.Coordinate, idx int) *float64 {
	if len(geometry) == 0 || !geometry[0].HasElevation() {
		return nil
	}
	for i := min(idx, len(geometry)-1); i >= 0; i-- {
		if geometry[i].HasElevation() {
			e := *geometry[i].Elevation
			return &e
		}
	}
	return nil
}

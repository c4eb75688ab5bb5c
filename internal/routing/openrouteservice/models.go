package openrouteservice

// directionsRequest is the ORS /v2/directions/{profile} body. Turn-by-turn
// instructions are switched off; only the geometry is sampled.
type directionsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
	Geometry     bool        `json:"geometry"`
	Elevation    bool        `json:"elevation,omitempty"`
	Units        string      `json:"units"`
	// Radiuses is the snapping radius per coordinate in meters.
	Radiuses []float64 `json:"radiuses,omitempty"`
}

type directionsResponse struct {
	Routes []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Ascent   float64 `json:"ascent,omitempty"`
		Descent  float64 `json:"descent,omitempty"`
	} `json:"summary"`
	// Geometry is an encoded polyline, with elevation when requested.
	Geometry string `json:"geometry"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS error codes mapped to domain errors.
const (
	orsErrorCodeTooFar    = 2004 // Route distance exceeds server limit
	orsErrorCodeNotFound  = 2009 // Route not found
	orsErrorCodeNoSnapPnt = 2010 // Point not routable
)

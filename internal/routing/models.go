// Package routing provides route computation and the Route model the
// corridor predictor samples along.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/routecast/routecast/pkg/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedProfile indicates the requested profile is not known.
	ErrUnsupportedProfile = errors.New("unsupported route profile")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetDirections retrieves route directions between two points.
	// Returns multiple route alternatives when available.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedProfiles returns the list of route profiles this provider supports.
	SupportedProfiles() []RouteProfile
}

// RouteProfile represents a routing profile (mode of transport).
type RouteProfile string

const (
	// ProfileDrive is the driving-car profile.
	ProfileDrive RouteProfile = "driving-car"
	// ProfileBike is the cycling-regular profile for bike routing.
	ProfileBike RouteProfile = "cycling-regular"
	// ProfileWalk is the foot-walking profile for pedestrian routing.
	ProfileWalk RouteProfile = "foot-walking"

	// DefaultProfile is used when a request names none.
	DefaultProfile = ProfileDrive
)

// ParseProfile validates a profile name. An empty name yields DefaultProfile.
func ParseProfile(s string) (RouteProfile, error) {
	switch p := RouteProfile(s); p {
	case "":
		return DefaultProfile, nil
	case ProfileDrive, ProfileBike, ProfileWalk:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProfile, s)
	}
}

// Location is a named endpoint of a route.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Valid reports whether the location's coordinates are in range.
func (l Location) Valid() bool {
	return validateCoordinates(l) == nil
}

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	Origin      Location
	Destination Location
	Profile     RouteProfile
	Elevation   bool // Request 3D geometry
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is a single computed route. Geometry is ordered from start to end,
// longitude first; vertices carry elevation when the provider supplied it.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        []geo.Coordinate
	StartLocation   Location
	EndLocation     Location
	Profile         RouteProfile

	AscentMeters  float64
	DescentMeters float64
}

// Duration returns the travel duration.
func (r *Route) Duration() time.Duration {
	return time.Duration(r.DurationSeconds * float64(time.Second))
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// validateCoordinates checks if coordinates are within valid ranges.
func validateCoordinates(l Location) error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", l.Lon)
	}
	return nil
}

// ValidateCoordinates is exported for provider adapters.
func ValidateCoordinates(l Location) error {
	return validateCoordinates(l)
}

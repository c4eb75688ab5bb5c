// Package openrouteservice provides a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/routing"
	"github.com/routecast/routecast/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// HTTPClient overrides the resilient client built from Timeout and
	// Registry.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (default: 10s).
	Timeout time.Duration

	// Registry receives the resilient client for the ops status endpoint.
	Registry *resilience.Registry

	// SnapRadius is how far in meters an endpoint may be from a routable
	// road. Zero keeps the ORS default of 350m.
	SnapRadius float64

	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	snapRadius float64
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		snapRadius: cfg.SnapRadius,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{
		routing.ProfileDrive,
		routing.ProfileBike,
		routing.ProfileWalk,
	}
}

// GetDirections retrieves the route between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if routing.ValidateCoordinates(req.Origin) != nil {
		return nil, newError("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	}
	if routing.ValidateCoordinates(req.Destination) != nil {
		return nil, newError("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	}

	profile := req.Profile
	if profile == "" {
		profile = routing.DefaultProfile
	}

	body := directionsRequest{
		// GeoJSON order: [lon, lat].
		Coordinates: [][]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		Geometry:  true,
		Elevation: req.Elevation,
		Units:     "m",
	}
	if c.snapRadius > 0 {
		body.Radiuses = []float64{c.snapRadius, c.snapRadius}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	log := c.logger.With().
		Str("provider", ProviderName).
		Str("profile", string(profile)).
		Bool("elevation", req.Elevation).
		Logger()
	log.Debug().Msg("requesting directions")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Msg("directions request failed")
		return nil, newError("REQUEST_FAILED", "failed to reach routing provider", routing.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort for error detail
		return nil, mapErrorResponse(resp.StatusCode, raw)
	}

	var parsed directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result, err := toDirectionsResponse(&parsed, req.Elevation)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("route_count", len(result.Routes)).Msg("received directions")
	return result, nil
}

func newError(code, msg string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: msg, Err: err}
}

// mapErrorResponse maps an ORS error status and body to a domain error.
// ORS error codes take precedence over the HTTP status.
func mapErrorResponse(status int, body []byte) error {
	switch status {
	case http.StatusTooManyRequests:
		return newError("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError("FORBIDDEN", "API access denied - check API key configuration", routing.ErrProviderUnavailable)
	}

	var orsErr errorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return newError(fmt.Sprintf("HTTP_%d", status),
			fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
	msg := orsErr.Error.Message

	switch orsErr.Error.Code {
	case orsErrorCodeNotFound, orsErrorCodeNoSnapPnt:
		return newError("NO_ROUTE", msg, routing.ErrNoRouteFound)
	case orsErrorCodeTooFar:
		return newError("ROUTE_TOO_LONG", msg, routing.ErrNoRouteFound)
	}

	switch {
	case status == http.StatusNotFound:
		return newError("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		return newError("BAD_REQUEST", msg, routing.ErrInvalidCoordinates)
	case status >= 500:
		return newError(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return newError(fmt.Sprintf("HTTP_%d", status), msg, routing.ErrProviderUnavailable)
	}
}

// toDirectionsResponse decodes each route's polyline, 3D when elevation was
// requested.
func toDirectionsResponse(resp *directionsResponse, elevation bool) (*routing.DirectionsResponse, error) {
	routes := make([]routing.Route, 0, len(resp.Routes))
	for i := range resp.Routes {
		r := &resp.Routes[i]

		geometry, err := polyline.Decode(r.Geometry, elevation)
		if err != nil {
			return nil, newError("BAD_GEOMETRY", "routing provider returned undecodable geometry", err)
		}

		routes = append(routes, routing.Route{
			DistanceMeters:  r.Summary.Distance,
			DurationSeconds: r.Summary.Duration,
			Geometry:        geometry,
			AscentMeters:    r.Summary.Ascent,
			DescentMeters:   r.Summary.Descent,
		})
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

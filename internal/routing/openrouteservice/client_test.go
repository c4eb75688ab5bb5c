package openrouteservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/routing"
	"github.com/routecast/routecast/pkg/geo"
	"github.com/routecast/routecast/pkg/polyline"
)

var (
	amsterdam = routing.Location{Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041}
	utrecht   = routing.Location{Name: "Utrecht", Lat: 52.0907, Lon: 5.1214}
)

// mockHTTPClient wraps http.Client to implement HTTPDoer interface.
type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})
}

func directionsFixture(geometry string) []byte {
	body := map[string]any{
		"routes": []map[string]any{
			{
				"summary": map[string]any{
					"distance": 45678.9,
					"duration": 2456.5,
					"ascent":   12.0,
					"descent":  9.0,
				},
				"geometry":   geometry,
				"way_points": []int{0, 2},
			},
		},
	}
	b, _ := json.Marshal(body)
	return b
}

func TestClient_GetDirections_Success3D(t *testing.T) {
	path := []geo.Coordinate{
		geo.NewCoordinate3D(4.9041, 52.3676, -1),
		geo.NewCoordinate3D(5.0123, 52.2301, 2.5),
		geo.NewCoordinate3D(5.1214, 52.0907, 6),
	}
	respBody := directionsFixture(polyline.Encode(path, true))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "mock123" {
			t.Errorf("expected Authorization header 'mock123', got '%s'", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/v2/directions/driving-car" {
			t.Errorf("expected default driving profile path, got %s", r.URL.Path)
		}

		raw, _ := io.ReadAll(r.Body)
		var req directionsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if !req.Elevation {
			t.Error("expected elevation to be requested")
		}
		if req.Instructions {
			t.Error("expected instructions to be switched off")
		}
		if req.Radiuses != nil {
			t.Errorf("expected default snapping, got radiuses %v", req.Radiuses)
		}
		if req.Coordinates[0][0] != amsterdam.Lon || req.Coordinates[0][1] != amsterdam.Lat {
			t.Errorf("expected [lon, lat] order, got %v", req.Coordinates[0])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respBody)
	}))
	defer server.Close()

	resp, err := newTestClient(server).GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      amsterdam,
		Destination: utrecht,
		Elevation:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Provider != ProviderName {
		t.Errorf("expected provider %s, got %s", ProviderName, resp.Provider)
	}
	if len(resp.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(resp.Routes))
	}

	route := resp.Routes[0]
	if route.DistanceMeters != 45678.9 {
		t.Errorf("expected distance 45678.9, got %v", route.DistanceMeters)
	}
	if route.DurationSeconds != 2456.5 {
		t.Errorf("expected duration 2456.5, got %v", route.DurationSeconds)
	}
	if route.AscentMeters != 12 || route.DescentMeters != 9 {
		t.Errorf("expected ascent/descent 12/9, got %v/%v", route.AscentMeters, route.DescentMeters)
	}
	if len(route.Geometry) != 3 {
		t.Fatalf("expected 3 geometry vertices, got %d", len(route.Geometry))
	}
	if !route.Geometry[0].HasElevation() || *route.Geometry[2].Elevation != 6 {
		t.Errorf("expected 3D geometry with final elevation 6, got %+v", route.Geometry[2])
	}
}

func TestClient_GetDirections_SnapRadius(t *testing.T) {
	respBody := directionsFixture(polyline.Encode([]geo.Coordinate{
		geo.NewCoordinate(4.9041, 52.3676),
		geo.NewCoordinate(5.1214, 52.0907),
	}, false))

	var got []float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req directionsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = req.Radiuses
		_, _ = w.Write(respBody)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		SnapRadius: 1000,
		Logger:     zerolog.Nop(),
	})
	if _, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin: amsterdam, Destination: utrecht,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 || got[0] != 1000 || got[1] != 1000 {
		t.Errorf("expected a 1000m radius per endpoint, got %v", got)
	}
}

func TestClient_GetDirections_Success2D(t *testing.T) {
	path := []geo.Coordinate{
		geo.NewCoordinate(4.9041, 52.3676),
		geo.NewCoordinate(5.1214, 52.0907),
	}
	respBody := directionsFixture(polyline.Encode(path, false))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/directions/cycling-regular" {
			t.Errorf("expected cycling path, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respBody)
	}))
	defer server.Close()

	resp, err := newTestClient(server).GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      amsterdam,
		Destination: utrecht,
		Profile:     routing.ProfileBike,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route := resp.Routes[0]
	if len(route.Geometry) != 2 {
		t.Fatalf("expected 2 vertices, got %d", len(route.Geometry))
	}
	if route.Geometry[0].HasElevation() {
		t.Error("expected 2D geometry")
	}
}

func TestClient_GetDirections_BadGeometry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(directionsFixture("_p~iF~ps|"))
	}))
	defer server.Close()

	_, err := newTestClient(server).GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      amsterdam,
		Destination: utrecht,
	})

	var routingErr *routing.Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected routing.Error, got %T (%v)", err, err)
	}
	if routingErr.Code != "BAD_GEOMETRY" || !errors.Is(err, polyline.ErrMalformed) {
		t.Errorf("expected BAD_GEOMETRY wrapping ErrMalformed, got %v", err)
	}
}

func TestClient_GetDirections_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantErr  error
	}{
		{"route not found", http.StatusNotFound, `{"error":{"code":2009,"message":"Route could not be found"}}`, "NO_ROUTE", routing.ErrNoRouteFound},
		{"not found via 400", http.StatusBadRequest, `{"error":{"code":2009,"message":"Route could not be found"}}`, "NO_ROUTE", routing.ErrNoRouteFound},
		{"point not routable", http.StatusBadRequest, `{"error":{"code":2010,"message":"Could not find routable point"}}`, "NO_ROUTE", routing.ErrNoRouteFound},
		{"too long", http.StatusBadRequest, `{"error":{"code":2004,"message":"Request parameters exceed the server configuration limits"}}`, "ROUTE_TOO_LONG", routing.ErrNoRouteFound},
		{"bad request", http.StatusBadRequest, `{"error":{"code":2003,"message":"Parameter 'coordinates' has incorrect value"}}`, "BAD_REQUEST", routing.ErrInvalidCoordinates},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":403,"message":"Rate limit exceeded"}}`, "RATE_LIMIT", routing.ErrRateLimitExceeded},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Authorization field missing"}`, "FORBIDDEN", routing.ErrProviderUnavailable},
		{"forbidden", http.StatusForbidden, `{"error":"Access to this API has been disallowed"}`, "FORBIDDEN", routing.ErrProviderUnavailable},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"Internal server error"}}`, "SERVER_500", routing.ErrProviderUnavailable},
		{"unparseable", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP_502", routing.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server).GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      amsterdam,
				Destination: utrecht,
			})

			var routingErr *routing.Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected routing.Error, got %T", err)
			}
			if routingErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, routingErr.Code)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, routingErr.Err)
			}
		})
	}
}

func TestClient_GetDirections_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name        string
		origin      routing.Location
		destination routing.Location
	}{
		{"latitude out of range", routing.Location{Lat: 91.0, Lon: 4.9}, routing.Location{Lat: 52.0, Lon: 5.1}},
		{"negative latitude out of range", routing.Location{Lat: -91.0, Lon: 4.9}, routing.Location{Lat: 52.0, Lon: 5.1}},
		{"longitude out of range", routing.Location{Lat: 52.0, Lon: 4.9}, routing.Location{Lat: 52.0, Lon: 181.0}},
		{"negative longitude out of range", routing.Location{Lat: 52.0, Lon: 4.9}, routing.Location{Lat: 52.0, Lon: -181.0}},
	}

	client := NewClient(ClientConfig{APIKey: "mock123", Logger: zerolog.Nop()})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      tt.origin,
				Destination: tt.destination,
			})

			var routingErr *routing.Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected routing.Error, got %T", err)
			}
			if !errors.Is(routingErr.Err, routing.ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", routingErr.Err)
			}
		})
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test", Logger: zerolog.Nop()})

	if client.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, client.Name())
	}
}

func TestClient_SupportedProfiles(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test", Logger: zerolog.Nop()})

	profiles := client.SupportedProfiles()
	want := map[routing.RouteProfile]bool{
		routing.ProfileDrive: true,
		routing.ProfileBike:  true,
		routing.ProfileWalk:  true,
	}
	if len(profiles) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(profiles))
	}
	for _, p := range profiles {
		if !want[p] {
			t.Errorf("unexpected profile %s", p)
		}
	}
}

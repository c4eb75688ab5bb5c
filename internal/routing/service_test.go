package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/routecast/routecast/pkg/geo"
)

// mockProvider is a mock routing provider for testing.
type mockProvider struct {
	name      string
	profiles  []RouteProfile
	response  *DirectionsResponse
	err       error
	callCount atomic.Int32
	delay     time.Duration
	lastReq   atomic.Pointer[DirectionsRequest]
}

func (m *mockProvider) GetDirections(_ context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	m.callCount.Add(1)
	m.lastReq.Store(&req)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) SupportedProfiles() []RouteProfile {
	return m.profiles
}

var (
	amsterdam = Location{Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041}
	utrecht   = Location{Name: "Utrecht", Lat: 52.0907, Lon: 5.1214}
)

func newResponse() *DirectionsResponse {
	return &DirectionsResponse{
		Routes: []Route{
			{
				DistanceMeters:  42000,
				DurationSeconds: 2456,
				Geometry: []geo.Coordinate{
					geo.NewCoordinate3D(4.9041, 52.3676, 2),
					geo.NewCoordinate3D(5.0, 52.2, 4),
					geo.NewCoordinate3D(5.1214, 52.0907, 5),
				},
			},
		},
		Provider:  "test-provider",
		FetchedAt: time.Now(),
	}
}

func TestService_GetDirections_CacheMiss(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		profiles: []RouteProfile{ProfileDrive, ProfileBike},
		response: newResponse(),
	}

	service := NewService(ServiceConfig{
		Provider: provider,
		CacheTTL: 5 * time.Minute,
	})

	resp, err := service.GetDirections(context.Background(), DirectionsRequest{
		Origin:      amsterdam,
		Destination: utrecht,
		Profile:     ProfileDrive,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(resp.Routes))
	}
	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_CacheHit(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	req := DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive}
	for i := 0; i < 3; i++ {
		if _, err := service.GetDirections(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cached), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_GridCaching(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	_, _ = service.GetDirections(context.Background(), DirectionsRequest{
		Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive,
	})
	_, _ = service.GetDirections(context.Background(), DirectionsRequest{
		Origin:      Location{Lat: 52.3678, Lon: 4.9045}, // Small offset
		Destination: Location{Lat: 52.0909, Lon: 5.1210}, // Small offset
		Profile:     ProfileDrive,
	})

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (same grid cell), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_KeyVariants(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	reqs := []DirectionsRequest{
		{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive},
		{Origin: amsterdam, Destination: utrecht, Profile: ProfileBike},
		{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive, Elevation: true},
	}
	for _, req := range reqs {
		_, _ = service.GetDirections(context.Background(), req)
	}

	if provider.callCount.Load() != 3 {
		t.Errorf("expected 3 provider calls (profile and elevation are part of the key), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_StaleIfError(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{
		Provider:        provider,
		CacheTTL:        50 * time.Millisecond,
		StaleIfErrorTTL: 500 * time.Millisecond,
	})

	req := DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive}

	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for cache to expire (but still within stale window)
	time.Sleep(100 * time.Millisecond)
	provider.err = errors.New("provider error")

	resp, err := service.GetDirections(context.Background(), req)
	if err != nil {
		t.Fatalf("expected stale data to be served, got error: %v", err)
	}
	if resp.Routes[0].DistanceMeters != 42000 {
		t.Errorf("expected stale distance 42000, got %v", resp.Routes[0].DistanceMeters)
	}
}

func TestService_GetDirections_InvalidCoordinates(t *testing.T) {
	service := NewService(ServiceConfig{Provider: &mockProvider{name: "test-provider"}})

	tests := []struct {
		name string
		req  DirectionsRequest
	}{
		{
			name: "invalid origin latitude",
			req: DirectionsRequest{
				Origin:      Location{Lat: 91, Lon: 0},
				Destination: Location{Lat: 0, Lon: 0},
			},
		},
		{
			name: "invalid destination longitude",
			req: DirectionsRequest{
				Origin:      Location{Lat: 0, Lon: 0},
				Destination: Location{Lat: 0, Lon: 181},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.GetDirections(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var routingErr *Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected Error, got %T", err)
			}
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", routingErr.Err)
			}
		})
	}
}

func TestService_GetDirections_ConcurrentRequests(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		delay:    50 * time.Millisecond, // Simulate slow provider
		response: newResponse(),
	}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	req := DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.GetDirections(context.Background(), req); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call for concurrent misses, got %d", calls)
	}
}

func TestService_GetDirections_CallerCancelStillCaches(t *testing.T) {
	provider := &mockProvider{name: "test-provider", delay: 50 * time.Millisecond, response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	req := DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := service.GetDirections(ctx, req); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The abandoned fetch completes and fills the cache.
	time.Sleep(100 * time.Millisecond)
	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}
}

func TestService_Route(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	route, err := service.Route(context.Background(), DirectionsRequest{
		Origin:      amsterdam,
		Destination: utrecht,
		Elevation:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if route.StartLocation.Name != "Amsterdam" || route.EndLocation.Name != "Utrecht" {
		t.Errorf("expected endpoint names from request, got %q -> %q", route.StartLocation.Name, route.EndLocation.Name)
	}
	if route.Profile != DefaultProfile {
		t.Errorf("expected default profile %s, got %s", DefaultProfile, route.Profile)
	}
	if got := provider.lastReq.Load().Profile; got != DefaultProfile {
		t.Errorf("expected provider to receive default profile, got %s", got)
	}
	if route.Duration() != 2456*time.Second {
		t.Errorf("expected duration 2456s, got %s", route.Duration())
	}

	// The cached response must not be mutated by Route.
	if provider.response.Routes[0].StartLocation.Name != "" {
		t.Error("cached route was mutated")
	}
}

func TestService_Route_NoRoutes(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		response: &DirectionsResponse{Provider: "test-provider"},
	}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.Route(context.Background(), DirectionsRequest{Origin: amsterdam, Destination: utrecht})
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestService_CacheStats(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: newResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	stats := service.CacheStats()
	if stats.TotalEntries != 0 {
		t.Errorf("expected 0 entries, got %d", stats.TotalEntries)
	}
	if stats.Provider != "test-provider" {
		t.Errorf("expected provider 'test-provider', got '%s'", stats.Provider)
	}

	_, _ = service.GetDirections(context.Background(), DirectionsRequest{
		Origin: amsterdam, Destination: utrecht, Profile: ProfileDrive,
	})

	stats = service.CacheStats()
	if stats.TotalEntries != 1 || stats.FreshEntries != 1 {
		t.Errorf("expected 1 fresh entry, got total=%d fresh=%d", stats.TotalEntries, stats.FreshEntries)
	}
}

func TestService_CacheKeyFormat(t *testing.T) {
	service := &Service{cacheGridSize: 0.01}

	key := service.cacheKey(DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileBike})
	if !strings.HasPrefix(key, "cycling-regular:") {
		t.Errorf("cache key should start with profile, got '%s'", key)
	}

	key3d := service.cacheKey(DirectionsRequest{Origin: amsterdam, Destination: utrecht, Profile: ProfileBike, Elevation: true})
	if !strings.HasSuffix(key3d, ":3d") {
		t.Errorf("elevation key should end with ':3d', got '%s'", key3d)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    RouteProfile
		wantErr bool
	}{
		{"", ProfileDrive, false},
		{"driving-car", ProfileDrive, false},
		{"cycling-regular", ProfileBike, false},
		{"foot-walking", ProfileWalk, false},
		{"hovercraft", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProfile(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProfile(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedProfile) {
			t.Errorf("ParseProfile(%q) error should wrap ErrUnsupportedProfile", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseProfile(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package routing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/routecast/routecast/internal/telemetry"
)

const operationDirections = "directions"

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider calls and cache hits. Optional.
	Metrics *telemetry.ProviderMetrics

	// CacheTTL is how long a route stays fresh (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the endpoint quantization in degrees (default: 0.01, about 1.1km).
	CacheGridSize float64

	// StaleIfErrorTTL is how long after fetching a route may still be served
	// when the provider fails (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often entries past the stale window are
	// dropped (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service provides routing data with caching. Endpoints are grid-quantized,
// so a cached route may start or end up to one grid cell from the request.
// Concurrent misses for the same key share one provider call.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         *telemetry.ProviderMetrics
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	flights singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedDirections
	lastCleanup time.Time
}

type cachedDirections struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cfg.CacheTTL,
		cacheGridSize:   cfg.CacheGridSize,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		cleanupInterval: cfg.CleanupInterval,
		cache:           make(map[string]*cachedDirections),
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.cacheGridSize <= 0 {
		s.cacheGridSize = 0.01
	}
	if s.staleIfErrorTTL <= 0 {
		s.staleIfErrorTTL = 15 * time.Minute
	}
	if s.cleanupInterval <= 0 {
		s.cleanupInterval = 5 * time.Minute
	}
	return s
}

// GetDirections returns route directions between two points, from cache
// when a fresh entry exists.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if validateCoordinates(req.Origin) != nil {
		return nil, s.invalid("INVALID_ORIGIN", "invalid origin coordinates")
	}
	if validateCoordinates(req.Destination) != nil {
		return nil, s.invalid("INVALID_DESTINATION", "invalid destination coordinates")
	}

	key := s.cacheKey(req)
	if cached := s.lookup(key); cached != nil && time.Now().Before(cached.expiresAt) {
		s.metrics.RecordCacheHit(s.provider.Name(), operationDirections)
		return cached.response, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), operationDirections)

	// The shared fetch outlives any single caller so the result still lands
	// in the cache when the first caller gives up.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(key, func() (any, error) {
		return s.fetchDirections(fetchCtx, req, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DirectionsResponse), nil
	}
}

// Route returns the primary route between two locations with the request's
// endpoint names attached.
func (s *Service) Route(ctx context.Context, req DirectionsRequest) (*Route, error) {
	if req.Profile == "" {
		req.Profile = DefaultProfile
	}

	resp, err := s.GetDirections(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "NO_ROUTE",
			Message:  "provider returned no routes",
			Err:      ErrNoRouteFound,
		}
	}

	// Cached responses are shared; hand out a copy.
	route := resp.Routes[0]
	route.StartLocation = req.Origin
	route.EndLocation = req.Destination
	route.Profile = req.Profile
	return &route, nil
}

func (s *Service) invalid(code, msg string) error {
	return &Error{
		Provider: s.provider.Name(),
		Code:     code,
		Message:  msg,
		Err:      ErrInvalidCoordinates,
	}
}

func (s *Service) lookup(key string) *cachedDirections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

// fetchDirections calls the provider and stores the result. A provider
// failure falls back to an entry still inside the stale window.
func (s *Service) fetchDirections(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	// A flight that started just after another finished finds its result.
	if cached := s.lookup(key); cached != nil && time.Now().Before(cached.expiresAt) {
		return cached.response, nil
	}

	log := s.logger.With().
		Str("cache_key", key).
		Str("profile", string(req.Profile)).
		Str("provider", s.provider.Name()).
		Logger()

	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), operationDirections, time.Since(start), err)

	if err != nil {
		if cached := s.lookup(key); cached != nil && time.Since(cached.fetchedAt) < s.staleIfErrorTTL {
			log.Warn().Err(err).
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale directions after provider error")
			return cached.response, nil
		}
		log.Error().Err(err).
			Float64("origin_lat", req.Origin.Lat).
			Float64("origin_lon", req.Origin.Lon).
			Float64("dest_lat", req.Destination.Lat).
			Float64("dest_lon", req.Destination.Lon).
			Msg("failed to fetch directions")
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	s.cache[key] = &cachedDirections{
		response:  resp,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.cleanupLocked(now)
	s.mu.Unlock()

	log.Debug().
		Int("route_count", len(resp.Routes)).
		Dur("duration", time.Since(start)).
		Msg("cached directions")

	return resp, nil
}

// cacheKey quantizes both endpoints to the grid.
// Format: {profile}:{originLat},{originLon}:{destLat},{destLon}[:3d].
func (s *Service) cacheKey(req DirectionsRequest) string {
	cell := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}

	key := fmt.Sprintf("%s:%.2f,%.2f:%.2f,%.2f",
		req.Profile,
		cell(req.Origin.Lat), cell(req.Origin.Lon),
		cell(req.Destination.Lat), cell(req.Destination.Lon),
	)
	if req.Elevation {
		key += ":3d"
	}
	return key
}

// cleanupLocked drops entries past the stale window, at most once per
// cleanup interval. s.mu must be held.
func (s *Service) cleanupLocked(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for key, cached := range s.cache {
		if now.Sub(cached.fetchedAt) >= s.staleIfErrorTTL {
			delete(s.cache, key)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug().Int("expired_entries", expired).Msg("cleaned up routing cache")
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := CacheStats{TotalEntries: len(s.cache), Provider: s.provider.Name()}
	now := time.Now()
	for _, c := range s.cache {
		switch {
		case now.Before(c.expiresAt):
			stats.FreshEntries++
		case now.Sub(c.fetchedAt) < s.staleIfErrorTTL:
			stats.StaleEntries++
		}
	}
	return stats
}

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/routecast/routecast/internal/telemetry"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the upstream weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider calls and cache hits. Optional.
	Metrics *telemetry.ProviderMetrics

	// CurrentTTL is how long current conditions are cached (default: 10 minutes).
	CurrentTTL time.Duration

	// HourlyTTL is how long hourly forecasts are cached (default: 30 minutes).
	HourlyTTL time.Duration

	// DailyTTL is how long daily forecasts are cached (default: 3 hours).
	DailyTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// Shared is a cache shared between processes, consulted on a local
	// miss and written after every provider fetch. Optional.
	Shared SharedCache
}

// SharedCache stores encoded provider responses under the service's cache
// keys so that one process can fill the cache another reads.
type SharedCache interface {
	Load(ctx context.Context, key string) (data []byte, fetchedAt time.Time, found bool, err error)
	Store(ctx context.Context, key string, data []byte, fetchedAt time.Time) error
}

// Service is a caching decorator around a Provider. It implements Provider
// itself so the corridor matcher can use it transparently.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         *telemetry.ProviderMetrics
	shared          SharedCache
	cacheGridSize   float64
	staleIfErrorTTL time.Duration

	current *ttlCache[*Snapshot]
	hourly  *ttlCache[[]ForecastEntry]
	daily   *ttlCache[[]DayForecast]
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	currentTTL := cfg.CurrentTTL
	if currentTTL == 0 {
		currentTTL = 10 * time.Minute
	}

	hourlyTTL := cfg.HourlyTTL
	if hourlyTTL == 0 {
		hourlyTTL = 30 * time.Minute
	}

	dailyTTL := cfg.DailyTTL
	if dailyTTL == 0 {
		dailyTTL = 3 * time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 1 * time.Hour
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		shared:          cfg.Shared,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		current:         newTTLCache[*Snapshot](currentTTL),
		hourly:          newTTLCache[[]ForecastEntry](hourlyTTL),
		daily:           newTTLCache[[]DayForecast](dailyTTL),
	}
}

// Name returns the upstream provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetCurrentWeather returns current conditions for a location.
// Uses cached data if available and not expired.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	return cachedFetch(ctx, s, s.current, "current", s.cacheKey(lat, lon), lat, lon, func(ctx context.Context) (*Snapshot, error) {
		return s.provider.GetCurrentWeather(ctx, lat, lon)
	})
}

// GetHourlyForecast returns hourly forecast entries for a location.
func (s *Service) GetHourlyForecast(ctx context.Context, lat, lon float64, hours int) ([]ForecastEntry, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:h%d", s.cacheKey(lat, lon), hours)
	return cachedFetch(ctx, s, s.hourly, "hourly", key, lat, lon, func(ctx context.Context) ([]ForecastEntry, error) {
		return s.provider.GetHourlyForecast(ctx, lat, lon, hours)
	})
}

// GetDailyForecast returns daily forecast entries for a location.
func (s *Service) GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]DayForecast, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:d%d", s.cacheKey(lat, lon), days)
	return cachedFetch(ctx, s, s.daily, "daily", key, lat, lon, func(ctx context.Context) ([]DayForecast, error) {
		return s.provider.GetDailyForecast(ctx, lat, lon, days)
	})
}

// cachedFetch serves from cache and otherwise joins the single in-flight
// provider call for the key. Misses on different keys run in parallel.
func cachedFetch[T any](ctx context.Context, s *Service, c *ttlCache[T], operation, key string, lat, lon float64, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(key); ok {
		s.metrics.RecordCacheHit(s.provider.Name(), operation)
		return v, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), operation)

	// The shared call outlives the caller that started it so the waiters
	// and the cache still get its result.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		return fetchAndStore(fetchCtx, s, c, operation, key, lat, lon, fetch)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// fetchAndStore calls the provider and caches the result, falling back to
// stale data when the provider fails within the stale window.
func fetchAndStore[T any](ctx context.Context, s *Service, c *ttlCache[T], operation, key string, lat, lon float64, fetch func(context.Context) (T, error)) (T, error) {
	// A flight that started just after another finished finds its result.
	if v, ok := c.fresh(key); ok {
		return v, nil
	}
	if v, ok := loadShared(ctx, s, c, operation, key); ok {
		return v, nil
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Str("operation", operation).
		Msg("fetching weather from provider")

	start := time.Now()
	v, err := fetch(ctx)
	s.metrics.RecordRequest(s.provider.Name(), operation, time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("operation", operation).
			Msg("failed to fetch weather")

		if stale, fetchedAt, ok := c.stale(key, s.staleIfErrorTTL); ok {
			s.logger.Warn().
				Time("fetched_at", fetchedAt).
				Str("operation", operation).
				Msg("serving stale weather data due to provider error")
			return stale, nil
		}

		var zero T
		return zero, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	fetchedAt := time.Now()
	c.put(key, v, fetchedAt)
	c.cleanupIfNeeded(s.staleIfErrorTTL, s.logger)
	storeShared(ctx, s, operation, key, v, fetchedAt)

	return v, nil
}

// loadShared returns a shared entry still inside the local TTL and copies
// it into the local cache. Shared cache failures count as a miss.
func loadShared[T any](ctx context.Context, s *Service, c *ttlCache[T], operation, key string) (T, bool) {
	var zero T
	if s.shared == nil {
		return zero, false
	}

	data, fetchedAt, found, err := s.shared.Load(ctx, operation+":"+key)
	if err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("shared weather cache read failed")
		return zero, false
	}
	if !found || time.Since(fetchedAt) >= c.ttl {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("discarding undecodable shared weather entry")
		return zero, false
	}
	c.put(key, v, fetchedAt)
	return v, true
}

func storeShared[T any](ctx context.Context, s *Service, operation, key string, v T, fetchedAt time.Time) {
	if s.shared == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("failed to encode weather for shared cache")
		return
	}
	if err := s.shared.Store(ctx, operation+":"+key, data, fetchedAt); err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("shared weather cache write failed")
	}
}

// cacheKey generates a cache key for a location.
// Groups nearby points into grid cells to reduce API calls.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	currentTotal, currentFresh := s.current.stats()
	hourlyTotal, hourlyFresh := s.hourly.stats()
	dailyTotal, dailyFresh := s.daily.stats()

	return CacheStats{
		CurrentEntries:      currentTotal,
		CurrentFreshEntries: currentFresh,
		HourlyEntries:       hourlyTotal,
		HourlyFreshEntries:  hourlyFresh,
		DailyEntries:        dailyTotal,
		DailyFreshEntries:   dailyFresh,
		Provider:            s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	CurrentEntries      int
	CurrentFreshEntries int
	HourlyEntries       int
	HourlyFreshEntries  int
	DailyEntries        int
	DailyFreshEntries   int
	Provider            string
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
	expiresAt time.Time
}

type ttlCache[T any] struct {
	ttl     time.Duration
	flights singleflight.Group

	mu              sync.RWMutex
	entries         map[string]*cacheEntry[T]
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{
		ttl:             ttl,
		entries:         make(map[string]*cacheEntry[T]),
		cleanupInterval: 5 * time.Minute,
	}
}

func (c *ttlCache[T]) fresh(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return e.value, true
	}
	var zero T
	return zero, false
}

func (c *ttlCache[T]) stale(key string, maxAge time.Duration) (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok && time.Now().Before(e.fetchedAt.Add(maxAge)) {
		return e.value, e.fetchedAt, true
	}
	var zero T
	return zero, time.Time{}, false
}

func (c *ttlCache[T]) put(key string, v T, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry[T]{
		value:     v,
		fetchedAt: fetchedAt,
		expiresAt: fetchedAt.Add(c.ttl),
	}
}

// cleanupIfNeeded removes entries past the stale window if the cleanup
// interval has passed.
func (c *ttlCache[T]) cleanupIfNeeded(maxAge time.Duration, logger zerolog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	expired := 0
	for key, e := range c.entries {
		if now.After(e.fetchedAt.Add(maxAge)) {
			delete(c.entries, key)
			expired++
		}
	}

	if expired > 0 {
		logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired weather cache entries")
	}
}

func (c *ttlCache[T]) stats() (total, fresh int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			fresh++
		}
	}
	return len(c.entries), fresh
}

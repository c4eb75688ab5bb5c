package corridor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/timezone"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/pkg/geo"
)

// Lead-time boundaries for choosing forecast resolution.
const (
	CurrentHorizon = 1 * time.Hour
	HourlyHorizon  = 48 * time.Hour

	DefaultHourlyHours = 48
	DefaultDailyDays   = 16
)

// MatcherConfig holds configuration for a Matcher.
type MatcherConfig struct {
	// Provider supplies weather. Usually the caching weather.Service.
	Provider weather.Provider

	// Zones resolves the local calendar day for daily matching. When nil
	// the target time's own location is used.
	Zones timezone.Resolver

	// HourlyHours is the hourly horizon requested (default: 48).
	HourlyHours int

	// DailyDays is the daily horizon requested (default: 16).
	DailyDays int

	// Now overrides the clock, for tests.
	Now func() time.Time

	Logger zerolog.Logger
}

// Matcher picks the weather observation that best represents a place at a
// target time. It never fails: provider errors yield weather.DefaultSnapshot.
type Matcher struct {
	provider    weather.Provider
	zones       timezone.Resolver
	hourlyHours int
	dailyDays   int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg MatcherConfig) *Matcher {
	hourly := cfg.HourlyHours
	if hourly <= 0 {
		hourly = DefaultHourlyHours
	}
	daily := cfg.DailyDays
	if daily <= 0 {
		daily = DefaultDailyDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Matcher{
		provider:    cfg.Provider,
		zones:       cfg.Zones,
		hourlyHours: hourly,
		dailyDays:   daily,
		now:         now,
		logger:      cfg.Logger,
	}
}

// Current returns current conditions at coord, stamped at the time of
// the request when the provider does not supply one.
func (m *Matcher) Current(ctx context.Context, coord geo.Coordinate) weather.Snapshot {
	now := m.now()
	snap, err := m.provider.GetCurrentWeather(ctx, coord.Lat, coord.Lon)
	if err != nil || snap == nil {
		m.fallback(coord, now, "current", err)
		return weather.DefaultSnapshot(now)
	}

	out := *snap
	if out.ObservedAt.IsZero() {
		out.ObservedAt = now
	}
	return out
}

// WeatherFor returns the snapshot for coord at target. Lead times up to an
// hour use current conditions, up to 48 hours the closest hourly entry, and
// beyond that the daily entry for the target's calendar date.
func (m *Matcher) WeatherFor(ctx context.Context, coord geo.Coordinate, target time.Time) weather.Snapshot {
	lead := target.Sub(m.now())

	switch {
	case lead <= CurrentHorizon:
		return m.Current(ctx, coord)

	case lead <= HourlyHorizon:
		entries, err := m.provider.GetHourlyForecast(ctx, coord.Lat, coord.Lon, m.hourlyHours)
		if err != nil || len(entries) == 0 {
			m.fallback(coord, target, "hourly", err)
			return weather.DefaultSnapshot(target)
		}
		i, _ := ClosestEntry(entries, target)
		return entries[i].Snapshot

	default:
		days, err := m.provider.GetDailyForecast(ctx, coord.Lat, coord.Lon, m.dailyDays)
		if err != nil || len(days) == 0 {
			m.fallback(coord, target, "daily", err)
			return weather.DefaultSnapshot(target)
		}
		day, _ := MatchDay(days, target, m.zone(coord, target))
		return day.Snapshot()
	}
}

func (m *Matcher) zone(coord geo.Coordinate, target time.Time) *time.Location {
	if m.zones == nil {
		return target.Location()
	}
	return m.zones.Zone(coord.Lat, coord.Lon)
}

func (m *Matcher) fallback(coord geo.Coordinate, target time.Time, resolution string, err error) {
	ev := m.logger.Warn().
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Time("target", target).
		Str("resolution", resolution)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("no weather data for sample point, using default snapshot")
}

// ClosestEntry returns the index of the entry nearest to target. Ties keep
// the earliest index. ok is false for an empty slice.
func ClosestEntry(entries []weather.ForecastEntry, target time.Time) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}

	best := 0
	bestDiff := absDuration(entries[0].Time.Sub(target))
	for i := 1; i < len(entries); i++ {
		if d := absDuration(entries[i].Time.Sub(target)); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, true
}

// MatchDay returns the day whose calendar date in loc equals target's date
// in loc. Without a match it returns the last day with ok false.
// It panics on an empty slice.
func MatchDay(days []weather.DayForecast, target time.Time, loc *time.Location) (weather.DayForecast, bool) {
	if loc == nil {
		loc = time.UTC
	}
	ty, tm, td := target.In(loc).Date()

	for _, d := range days {
		// Provider dates are local midnight; read them in their own zone.
		y, m, dd := d.Date.Date()
		if y == ty && m == tm && dd == td {
			return d, true
		}
	}
	return days[len(days)-1], false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

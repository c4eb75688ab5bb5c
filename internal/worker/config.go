// Package worker keeps the forecast caches warm for frequently requested
// corridors, on a schedule and on demand via Pub/Sub.
package worker

import (
	"time"

	"github.com/routecast/routecast/pkg/geo"
)

// PrewarmConfig holds configuration for the forecast prewarm job.
type PrewarmConfig struct {
	// Points are the coordinates whose forecasts are refreshed.
	// If empty, uses DefaultPrewarmPoints.
	Points []geo.Coordinate

	// Concurrency is the number of points refreshed in parallel.
	// Default: 5
	Concurrency int

	// Timeout bounds the refresh of a single point.
	// Default: 30 seconds
	Timeout time.Duration

	// HourlyHours and DailyDays are the forecast lengths requested, matching
	// what the corridor matcher asks for so the same cache entries are hit.
	HourlyHours int
	DailyDays   int
}

// DefaultPrewarmConfig returns the default prewarm configuration.
func DefaultPrewarmConfig() PrewarmConfig {
	return PrewarmConfig{
		Points:      DefaultPrewarmPoints(),
		Concurrency: 5,
		Timeout:     30 * time.Second,
		HourlyHours: 48,
		DailyDays:   16,
	}
}

// DefaultPrewarmPoints returns hubs on busy intercity corridors.
func DefaultPrewarmPoints() []geo.Coordinate {
	return []geo.Coordinate{
		geo.NewCoordinate(13.4050, 52.5200), // Berlin
		geo.NewCoordinate(11.5820, 48.1351), // Munich
		geo.NewCoordinate(8.6821, 50.1109),  // Frankfurt
		geo.NewCoordinate(9.9937, 53.5511),  // Hamburg
		geo.NewCoordinate(6.9603, 50.9375),  // Cologne
		geo.NewCoordinate(4.9041, 52.3676),  // Amsterdam
		geo.NewCoordinate(2.3522, 48.8566),  // Paris
		geo.NewCoordinate(16.3738, 48.2082), // Vienna
	}
}

func (c PrewarmConfig) withDefaults() PrewarmConfig {
	def := DefaultPrewarmConfig()
	if len(c.Points) == 0 {
		c.Points = def.Points
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.HourlyHours <= 0 {
		c.HourlyHours = def.HourlyHours
	}
	if c.DailyDays <= 0 {
		c.DailyDays = def.DailyDays
	}
	return c
}

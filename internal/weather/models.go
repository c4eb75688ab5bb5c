// Package weather provides a canonical weather model, provider adapters that
// normalize into it, and a caching service in front of those providers.
package weather

import (
	"context"
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Provider defines the interface for weather data providers.
// Implementations must be idempotent and free of side effects visible to callers.
type Provider interface {
	// GetCurrentWeather fetches current conditions for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Snapshot, error)

	// GetHourlyForecast fetches up to hours hourly entries starting at the current hour.
	GetHourlyForecast(ctx context.Context, lat, lon float64, hours int) ([]ForecastEntry, error)

	// GetDailyForecast fetches up to days daily entries starting today.
	GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]DayForecast, error)

	// Name returns the provider name for logging.
	Name() string
}

// Condition is the canonical weather condition taxonomy. Every provider
// adapter maps its own vocabulary (WMO codes, condition strings) into it.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionPartlyCloudy Condition = "PARTLY_CLOUDY"
	ConditionCloudy       Condition = "CLOUDY"
	ConditionFog          Condition = "FOG"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionRain         Condition = "RAIN"
	ConditionSnow         Condition = "SNOW"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionUnknown      Condition = "UNKNOWN"
)

// IsRain reports whether the condition is liquid precipitation.
func (c Condition) IsRain() bool {
	return c == ConditionRain || c == ConditionDrizzle
}

// IsSnow reports whether the condition is snowfall.
func (c Condition) IsSnow() bool {
	return c == ConditionSnow
}

// IsThunderstorm reports whether the condition is a thunderstorm.
func (c Condition) IsThunderstorm() bool {
	return c == ConditionThunderstorm
}

// IsAdverse reports whether the condition is rain, snow, or a thunderstorm.
func (c Condition) IsAdverse() bool {
	return c.IsRain() || c.IsSnow() || c.IsThunderstorm()
}

// Snapshot is weather at one place and time.
type Snapshot struct {
	// Temperature in Celsius
	Temperature float64 `json:"temperature"`

	Condition   Condition `json:"condition"`
	Description string    `json:"description"`

	// PrecipitationChance is the probability of precipitation (0-100).
	PrecipitationChance float64 `json:"precipitationChance"`

	WindSpeed     float64 `json:"windSpeed"`     // m/s
	WindDirection float64 `json:"windDirection"` // degrees

	// Humidity percentage (0-100)
	Humidity float64 `json:"humidity"`

	// Visibility in meters (0 if unknown)
	Visibility float64 `json:"visibility"`

	ObservedAt time.Time `json:"observedAt"`

	// Approximate is set when the snapshot was derived from a daily summary.
	Approximate bool `json:"approximate,omitempty"`

	// Fallback is set when no provider data was available.
	Fallback bool `json:"fallback,omitempty"`
}

// ForecastEntry is a single hourly forecast step.
type ForecastEntry struct {
	Time     time.Time `json:"time"`
	Snapshot Snapshot  `json:"snapshot"`
}

// DayForecast is a daily forecast summary.
type DayForecast struct {
	// Date is midnight of the forecast day in the location's time zone.
	Date time.Time `json:"date"`

	TempMax float64 `json:"tempMax"`
	TempMin float64 `json:"tempMin"`

	Condition           Condition `json:"condition"`
	Description         string    `json:"description"`
	PrecipitationChance float64   `json:"precipitationChance"` // 0-100
	WindSpeed           float64   `json:"windSpeed"`           // m/s, daily maximum
	WindDirection       float64   `json:"windDirection"`
	Humidity            float64   `json:"humidity"`
}

// Snapshot approximates the day as a single observation, using the midpoint
// of the forecast high and low as the representative temperature.
func (d DayForecast) Snapshot() Snapshot {
	return Snapshot{
		Temperature:         (d.TempMax + d.TempMin) / 2,
		Condition:           d.Condition,
		Description:         d.Description,
		PrecipitationChance: d.PrecipitationChance,
		WindSpeed:           d.WindSpeed,
		WindDirection:       d.WindDirection,
		Humidity:            d.Humidity,
		ObservedAt:          d.Date,
		Approximate:         true,
	}
}

// Default snapshot values used when no provider data is available.
const (
	DefaultTemperature         = 15.0
	DefaultPrecipitationChance = 10.0
	DefaultWindSpeed           = 3.0
	DefaultHumidity            = 60.0
	DefaultVisibility          = 10000.0
)

// DefaultSnapshot returns the mild, partly cloudy placeholder used when a
// lookup fails. It never reports adverse weather.
func DefaultSnapshot(at time.Time) Snapshot {
	return Snapshot{
		Temperature:         DefaultTemperature,
		Condition:           ConditionPartlyCloudy,
		Description:         "partly cloudy",
		PrecipitationChance: DefaultPrecipitationChance,
		WindSpeed:           DefaultWindSpeed,
		Humidity:            DefaultHumidity,
		Visibility:          DefaultVisibility,
		ObservedAt:          at,
		Fallback:            true,
	}
}

// WindCategory categorizes wind speed for driving impact.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 1 m/s
	WindLight    WindCategory = "LIGHT"    // 1-5 m/s
	WindModerate WindCategory = "MODERATE" // 5-11 m/s
	WindStrong   WindCategory = "STRONG"   // 11-17 m/s, crosswinds noticeable
	WindGale     WindCategory = "GALE"     // >= 17 m/s
)

// GetWindCategory returns the wind category for the snapshot.
func (s *Snapshot) GetWindCategory() WindCategory {
	switch {
	case s.WindSpeed < 1:
		return WindCalm
	case s.WindSpeed < 5:
		return WindLight
	case s.WindSpeed < 11:
		return WindModerate
	case s.WindSpeed < 17:
		return WindStrong
	default:
		return WindGale
	}
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Package providers builds the configured weather provider.
package providers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/config"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/internal/weather/openmeteo"
	"github.com/routecast/routecast/internal/weather/openweathermap"
)

// New returns the provider named by cfg.Provider. Its resilient HTTP client
// reports to registry when one is given.
func New(cfg config.WeatherConfig, registry *resilience.Registry, logger zerolog.Logger) (weather.Provider, error) {
	switch cfg.Provider {
	case config.WeatherProviderOpenMeteo, "":
		return openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:    cfg.OpenMeteoBaseURL,
			HTTPClient: resilientClient(openmeteo.ProviderName, registry),
			Logger:     logger,
		}), nil
	case config.WeatherProviderOpenWeatherMap:
		return openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.OpenWeatherMapAPIKey,
			BaseURL:    cfg.OpenWeatherMapBaseURL,
			HTTPClient: resilientClient(openweathermap.ProviderName, registry),
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", cfg.Provider)
	}
}

func resilientClient(name string, registry *resilience.Registry) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

// Package openweathermap adapts the OpenWeatherMap current weather and
// OneCall 3.0 APIs to the canonical weather model.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultOneCallURL is the OpenWeatherMap OneCall API 3.0 base URL.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

	// OneCall returns at most 48 hourly and 8 daily entries.
	maxHourly = 48
	maxDaily  = 8
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// OneCallURL is the OneCall API URL (optional, defaults to OneCall 3.0).
	OneCallURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	oneCallURL string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		oneCallURL: oneCallURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrentWeather fetches current conditions for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Snapshot, error) {
	url := fmt.Sprintf("%s/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric",
		c.baseURL, lat, lon, c.apiKey)

	var owmResp currentWeatherResponse
	if err := c.getJSON(ctx, url, &owmResp); err != nil {
		return nil, err
	}

	snap := weather.Snapshot{
		Temperature:   owmResp.Main.Temp,
		Humidity:      owmResp.Main.Humidity,
		WindSpeed:     owmResp.Wind.Speed,
		WindDirection: owmResp.Wind.Deg,
		Visibility:    float64(owmResp.Visibility),
		ObservedAt:    time.Unix(owmResp.Dt, 0).UTC(),
	}
	snap.Condition, snap.Description = condition(owmResp.Weather)

	return &snap, nil
}

// GetHourlyForecast fetches hourly forecast entries from OneCall.
func (c *Client) GetHourlyForecast(ctx context.Context, lat, lon float64, hours int) ([]weather.ForecastEntry, error) {
	resp, err := c.oneCall(ctx, lat, lon, "current,minutely,daily,alerts")
	if err != nil {
		return nil, err
	}

	n := min(len(resp.Hourly), hours, maxHourly)
	entries := make([]weather.ForecastEntry, 0, n)
	for _, h := range resp.Hourly[:n] {
		at := time.Unix(h.Dt, 0).UTC()
		snap := weather.Snapshot{
			Temperature:         h.Temp,
			Humidity:            h.Humidity,
			WindSpeed:           h.WindSpeed,
			WindDirection:       h.WindDeg,
			Visibility:          float64(h.Visibility),
			PrecipitationChance: h.Pop * 100,
			ObservedAt:          at,
		}
		snap.Condition, snap.Description = condition(h.Weather)
		entries = append(entries, weather.ForecastEntry{Time: at, Snapshot: snap})
	}

	return entries, nil
}

// GetDailyForecast fetches daily forecast entries from OneCall. Dates are
// midnight in the location's own offset.
func (c *Client) GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DayForecast, error) {
	resp, err := c.oneCall(ctx, lat, lon, "current,minutely,hourly,alerts")
	if err != nil {
		return nil, err
	}

	loc := time.FixedZone(resp.Timezone, resp.TimezoneOffset)
	n := min(len(resp.Daily), days, maxDaily)
	out := make([]weather.DayForecast, 0, n)
	for _, d := range resp.Daily[:n] {
		local := time.Unix(d.Dt, 0).In(loc)
		day := weather.DayForecast{
			Date:                time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
			TempMax:             d.Temp.Max,
			TempMin:             d.Temp.Min,
			PrecipitationChance: d.Pop * 100,
			WindSpeed:           d.WindSpeed,
			WindDirection:       d.WindDeg,
			Humidity:            d.Humidity,
		}
		day.Condition, day.Description = condition(d.Weather)
		out = append(out, day)
	}

	return out, nil
}

func (c *Client) oneCall(ctx context.Context, lat, lon float64, exclude string) (*oneCallResponse, error) {
	url := fmt.Sprintf("%s?lat=%.6f&lon=%.6f&appid=%s&units=metric&exclude=%s",
		c.oneCallURL, lat, lon, c.apiKey, exclude)

	var resp oneCallResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("openweathermap request failed")
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func condition(w []weatherDesc) (weather.Condition, string) {
	if len(w) == 0 {
		return weather.ConditionUnknown, ""
	}
	return mapCondition(w[0].ID, w[0].Main), w[0].Description
}

// mapCondition maps an OpenWeatherMap condition group to the canonical
// condition. Cloud cover is split by condition id: 801-802 are few/scattered
// clouds, 803-804 broken/overcast.
func mapCondition(id int, main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		if id == 801 || id == 802 {
			return weather.ConditionPartlyCloudy
		}
		return weather.ConditionCloudy
	case "Rain":
		return weather.ConditionRain
	case "Drizzle":
		return weather.ConditionDrizzle
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Snow":
		return weather.ConditionSnow
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand", "Ash":
		return weather.ConditionFog
	default:
		return weather.ConditionUnknown
	}
}

// OpenWeatherMap API response structures.

type weatherDesc struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentWeatherResponse struct {
	Weather []weatherDesc `json:"weather"`
	Main    struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

type oneCallResponse struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Timezone       string  `json:"timezone"`
	TimezoneOffset int     `json:"timezone_offset"`
	Hourly         []struct {
		Dt         int64         `json:"dt"`
		Temp       float64       `json:"temp"`
		Humidity   float64       `json:"humidity"`
		Visibility int           `json:"visibility"`
		WindSpeed  float64       `json:"wind_speed"`
		WindDeg    float64       `json:"wind_deg"`
		Pop        float64       `json:"pop"` // Probability of precipitation, 0-1
		Weather    []weatherDesc `json:"weather"`
	} `json:"hourly"`
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Humidity  float64       `json:"humidity"`
		WindSpeed float64       `json:"wind_speed"`
		WindDeg   float64       `json:"wind_deg"`
		Pop       float64       `json:"pop"`
		Weather   []weatherDesc `json:"weather"`
	} `json:"daily"`
}

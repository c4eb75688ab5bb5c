// Package openmeteo adapts the Open-Meteo forecast API to the canonical
// weather model. Open-Meteo needs no API key and reports WMO weather codes.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openmeteo"

	// DefaultBaseURL is the Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	// MaxForecastDays is the longest daily horizon Open-Meteo serves.
	MaxForecastDays = 16
)

var (
	currentVars = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"weather_code",
		"wind_speed_10m",
		"wind_direction_10m",
		"visibility",
	}

	hourlyVars = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"precipitation_probability",
		"weather_code",
		"wind_speed_10m",
		"wind_direction_10m",
		"visibility",
	}

	dailyVars = []string{
		"weather_code",
		"temperature_2m_max",
		"temperature_2m_min",
		"precipitation_probability_max",
		"wind_speed_10m_max",
		"wind_direction_10m_dominant",
		"relative_humidity_2m_mean",
	}
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the forecast endpoint (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
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
	q := baseQuery(lat, lon)
	q.Set("current", strings.Join(currentVars, ","))

	var resp forecastResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Current == nil {
		return nil, weather.ErrNoDataForLocation
	}

	cur := resp.Current
	snap := weather.Snapshot{
		Temperature:   cur.Temperature,
		Humidity:      cur.Humidity,
		WindSpeed:     cur.WindSpeed,
		WindDirection: cur.WindDirection,
		Visibility:    cur.Visibility,
		ObservedAt:    time.Unix(cur.Time, 0).UTC(),
	}
	snap.Condition, snap.Description = weather.ConditionFromWMO(cur.WeatherCode)

	return &snap, nil
}

// GetHourlyForecast fetches hourly entries starting at the current hour.
func (c *Client) GetHourlyForecast(ctx context.Context, lat, lon float64, hours int) ([]weather.ForecastEntry, error) {
	q := baseQuery(lat, lon)
	q.Set("hourly", strings.Join(hourlyVars, ","))
	q.Set("forecast_hours", strconv.Itoa(hours))

	var resp forecastResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Hourly == nil {
		return nil, weather.ErrNoDataForLocation
	}

	h := resp.Hourly
	entries := make([]weather.ForecastEntry, 0, len(h.Time))
	for i, ts := range h.Time {
		at := time.Unix(ts, 0).UTC()
		snap := weather.Snapshot{
			Temperature:         at0(h.Temperature, i),
			Humidity:            at0(h.Humidity, i),
			PrecipitationChance: at0(h.PrecipitationProbability, i),
			WindSpeed:           at0(h.WindSpeed, i),
			WindDirection:       at0(h.WindDirection, i),
			Visibility:          at0(h.Visibility, i),
			ObservedAt:          at,
		}
		snap.Condition, snap.Description = weather.ConditionFromWMO(int(at0(h.WeatherCode, i)))
		entries = append(entries, weather.ForecastEntry{Time: at, Snapshot: snap})
	}

	return entries, nil
}

// GetDailyForecast fetches daily entries starting today. Dates are local
// midnight at the location.
func (c *Client) GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DayForecast, error) {
	if days > MaxForecastDays {
		days = MaxForecastDays
	}

	q := baseQuery(lat, lon)
	q.Set("daily", strings.Join(dailyVars, ","))
	q.Set("forecast_days", strconv.Itoa(days))

	var resp forecastResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Daily == nil {
		return nil, weather.ErrNoDataForLocation
	}

	loc := time.FixedZone(resp.Timezone, resp.UTCOffsetSeconds)
	d := resp.Daily
	out := make([]weather.DayForecast, 0, len(d.Time))
	for i, ts := range d.Time {
		local := time.Unix(ts, 0).In(loc)
		day := weather.DayForecast{
			Date:                time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
			TempMax:             at0(d.TempMax, i),
			TempMin:             at0(d.TempMin, i),
			PrecipitationChance: at0(d.PrecipitationProbabilityMax, i),
			WindSpeed:           at0(d.WindSpeedMax, i),
			WindDirection:       at0(d.WindDirectionDominant, i),
			Humidity:            at0(d.HumidityMean, i),
		}
		day.Condition, day.Description = weather.ConditionFromWMO(int(at0(d.WeatherCode, i)))
		out = append(out, day)
	}

	return out, nil
}

func baseQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lon))
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	q.Set("wind_speed_unit", "ms")
	return q
}

func (c *Client) get(ctx context.Context, q url.Values, dst *forecastResponse) error {
	u := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
			return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, apiErr.Reason)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("timezone", dst.Timezone).
		Msg("open-meteo forecast fetched")
	return nil
}

// at0 returns s[i], or zero when the series is shorter than the time axis.
func at0(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// Open-Meteo API response structures. Nulls in series decode as zero.

type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`

	Current *struct {
		Time          int64   `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
		Visibility    float64 `json:"visibility"`
	} `json:"current"`

	Hourly *struct {
		Time                     []int64   `json:"time"`
		Temperature              []float64 `json:"temperature_2m"`
		Humidity                 []float64 `json:"relative_humidity_2m"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		WeatherCode              []float64 `json:"weather_code"`
		WindSpeed                []float64 `json:"wind_speed_10m"`
		WindDirection            []float64 `json:"wind_direction_10m"`
		Visibility               []float64 `json:"visibility"`
	} `json:"hourly"`

	Daily *struct {
		Time                        []int64   `json:"time"`
		WeatherCode                 []float64 `json:"weather_code"`
		TempMax                     []float64 `json:"temperature_2m_max"`
		TempMin                     []float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
		WindSpeedMax                []float64 `json:"wind_speed_10m_max"`
		WindDirectionDominant       []float64 `json:"wind_direction_10m_dominant"`
		HumidityMean                []float64 `json:"relative_humidity_2m_mean"`
	} `json:"daily"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

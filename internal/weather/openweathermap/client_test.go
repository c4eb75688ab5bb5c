package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/internal/weather/openweathermap"
)

func newTestClient(baseURL string) *openweathermap.Client {
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    baseURL,
		OneCallURL: baseURL + "/onecall",
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
	})
}

func TestClient_GetCurrentWeather(t *testing.T) {
	observed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("lat"), "52.370")
		assert.Contains(t, r.URL.Query().Get("lon"), "4.895")
		assert.Equal(t, "****", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		response := map[string]interface{}{
			"weather": []map[string]interface{}{
				{"id": 800, "main": "Clear", "description": "clear sky"},
			},
			"main":       map[string]float64{"temp": 18.5, "humidity": 72.0},
			"visibility": 10000,
			"wind":       map[string]float64{"speed": 4.5, "deg": 220.0},
			"dt":         observed.Unix(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 52.370, 4.895)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, 18.5, snap.Temperature)
	assert.Equal(t, 72.0, snap.Humidity)
	assert.Equal(t, 4.5, snap.WindSpeed)
	assert.Equal(t, 220.0, snap.WindDirection)
	assert.Equal(t, 10000.0, snap.Visibility)
	assert.Equal(t, weather.ConditionClear, snap.Condition)
	assert.Equal(t, "clear sky", snap.Description)
	assert.Equal(t, observed, snap.ObservedAt)
}

func TestClient_GetCurrentWeather_AllConditions(t *testing.T) {
	conditions := []struct {
		id       int
		owmMain  string
		expected weather.Condition
	}{
		{800, "Clear", weather.ConditionClear},
		{801, "Clouds", weather.ConditionPartlyCloudy},
		{804, "Clouds", weather.ConditionCloudy},
		{500, "Rain", weather.ConditionRain},
		{300, "Drizzle", weather.ConditionDrizzle},
		{211, "Thunderstorm", weather.ConditionThunderstorm},
		{601, "Snow", weather.ConditionSnow},
		{701, "Mist", weather.ConditionFog},
		{741, "Fog", weather.ConditionFog},
		{721, "Haze", weather.ConditionFog},
		{0, "Unknown", weather.ConditionUnknown},
	}

	for _, tc := range conditions {
		t.Run(tc.owmMain, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				response := map[string]interface{}{
					"weather": []map[string]interface{}{
						{"id": tc.id, "main": tc.owmMain, "description": "test"},
					},
					"main": map[string]float64{"temp": 20.0, "humidity": 50.0},
					"wind": map[string]float64{"speed": 5.0, "deg": 180.0},
					"dt":   time.Now().Unix(),
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(response)
			}))
			defer server.Close()

			snap, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 52.0, 4.0)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, snap.Condition)
		})
	}
}

func TestClient_GetHourlyForecast(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/onecall", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("exclude"), "daily")

		hourly := make([]map[string]interface{}, 0, 3)
		for i := 0; i < 3; i++ {
			hourly = append(hourly, map[string]interface{}{
				"dt":         start.Add(time.Duration(i) * time.Hour).Unix(),
				"temp":       19.0 + float64(i),
				"humidity":   70.0,
				"visibility": 10000,
				"wind_speed": 5.0,
				"wind_deg":   200.0,
				"pop":        0.25,
				"weather": []map[string]interface{}{
					{"id": 500, "main": "Rain", "description": "light rain"},
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"hourly": hourly})
	}))
	defer server.Close()

	entries, err := newTestClient(server.URL).GetHourlyForecast(context.Background(), 52.370, 4.895, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2, "result is capped at the requested hours")

	assert.Equal(t, start, entries[0].Time)
	assert.Equal(t, 19.0, entries[0].Snapshot.Temperature)
	assert.Equal(t, 25.0, entries[0].Snapshot.PrecipitationChance)
	assert.Equal(t, weather.ConditionRain, entries[0].Snapshot.Condition)
	assert.Equal(t, "light rain", entries[0].Snapshot.Description)
	assert.Equal(t, start.Add(time.Hour), entries[1].Time)
}

func TestClient_GetDailyForecast(t *testing.T) {
	// 11:00 UTC is 12:00 in a +1h offset; the date stays March 14.
	noon := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("exclude"), "hourly")

		response := map[string]interface{}{
			"timezone":        "Europe/Amsterdam",
			"timezone_offset": 3600,
			"daily": []map[string]interface{}{
				{
					"dt":         noon.Unix(),
					"temp":       map[string]float64{"min": 4.0, "max": 12.0},
					"humidity":   80.0,
					"wind_speed": 7.0,
					"pop":        0.9,
					"weather": []map[string]interface{}{
						{"id": 601, "main": "Snow", "description": "snow"},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	days, err := newTestClient(server.URL).GetDailyForecast(context.Background(), 52.370, 4.895, 7)
	require.NoError(t, err)
	require.Len(t, days, 1)

	d := days[0]
	y, m, day := d.Date.Date()
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.March, m)
	assert.Equal(t, 14, day)
	assert.Equal(t, 0, d.Date.Hour())
	assert.Equal(t, 12.0, d.TempMax)
	assert.Equal(t, 4.0, d.TempMin)
	assert.InDelta(t, 90.0, d.PrecipitationChance, 1e-9)
	assert.Equal(t, weather.ConditionSnow, d.Condition)
}

func TestClient_GetCurrentWeather_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 1
	cfg.InitialInterval = time.Millisecond

	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(cfg),
	})

	_, err := client.GetCurrentWeather(context.Background(), 52.370, 4.895)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_GetCurrentWeather_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).GetCurrentWeather(ctx, 52.370, 4.895)
	require.Error(t, err)
}

func TestClient_Name(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey: "****",
	})

	assert.Equal(t, "openweathermap", client.Name())
}

package corridor_test

import (
	"context"
	"sync"
	"time"

	"github.com/routecast/routecast/internal/weather"
)

// fakeProvider is a scripted weather provider. Conditions come from
// condAt when set; delay lets tests reorder completion of concurrent calls.
type fakeProvider struct {
	mu          sync.Mutex
	now         time.Time
	currentHits int
	hourlyHits  int
	dailyHits   int

	err    error
	condAt func(lat, lon float64) weather.Condition
	precip float64
	delay  func(lat float64) time.Duration

	hourly []weather.ForecastEntry
	daily  []weather.DayForecast
}

func newFakeProvider(now time.Time) *fakeProvider {
	return &fakeProvider{now: now}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) snapshot(lat, lon float64, at time.Time) weather.Snapshot {
	cond := weather.ConditionClear
	if f.condAt != nil {
		cond = f.condAt(lat, lon)
	}
	return weather.Snapshot{
		Temperature:         18,
		Condition:           cond,
		Description:         string(cond),
		PrecipitationChance: f.precip,
		WindSpeed:           4,
		Humidity:            55,
		Visibility:          10000,
		ObservedAt:          at,
	}
}

func (f *fakeProvider) wait(lat float64) {
	if f.delay != nil {
		time.Sleep(f.delay(lat))
	}
}

func (f *fakeProvider) GetCurrentWeather(_ context.Context, lat, lon float64) (*weather.Snapshot, error) {
	f.wait(lat)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentHits++

	if f.err != nil {
		return nil, f.err
	}
	s := f.snapshot(lat, lon, f.now)
	return &s, nil
}

func (f *fakeProvider) GetHourlyForecast(_ context.Context, lat, lon float64, hours int) ([]weather.ForecastEntry, error) {
	f.wait(lat)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hourlyHits++

	if f.err != nil {
		return nil, f.err
	}
	if f.hourly != nil {
		return f.hourly, nil
	}

	start := f.now.Truncate(time.Hour)
	entries := make([]weather.ForecastEntry, hours)
	for i := range entries {
		at := start.Add(time.Duration(i) * time.Hour)
		entries[i] = weather.ForecastEntry{Time: at, Snapshot: f.snapshot(lat, lon, at)}
	}
	return entries, nil
}

func (f *fakeProvider) GetDailyForecast(_ context.Context, lat, lon float64, days int) ([]weather.DayForecast, error) {
	f.wait(lat)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dailyHits++

	if f.err != nil {
		return nil, f.err
	}
	if f.daily != nil {
		return f.daily, nil
	}

	y, m, d := f.now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, f.now.Location())
	out := make([]weather.DayForecast, days)
	for i := range out {
		s := f.snapshot(lat, lon, start)
		out[i] = weather.DayForecast{
			Date:                start.AddDate(0, 0, i),
			TempMax:             22,
			TempMin:             10,
			Condition:           s.Condition,
			Description:         s.Description,
			PrecipitationChance: s.PrecipitationChance,
		}
	}
	return out, nil
}

func (f *fakeProvider) hits() (current, hourly, daily int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentHits, f.hourlyHits, f.dailyHits
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/pkg/geo"
)

// Forecast kinds refreshed per point.
const (
	KindCurrent = "current"
	KindHourly  = "hourly"
	KindDaily   = "daily"
)

// PrewarmJob refreshes current, hourly, and daily forecasts for a fixed set
// of points with a bounded pool of workers.
type PrewarmJob struct {
	config   PrewarmConfig
	provider weather.Provider
	logger   zerolog.Logger

	metrics *PrewarmMetrics
}

// PrewarmMetrics tracks prewarm job statistics.
type PrewarmMetrics struct {
	mu sync.RWMutex

	Runs             int64
	SuccessfulPoints int64
	FailedPoints     int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// PrewarmJobConfig holds configuration for creating a PrewarmJob.
type PrewarmJobConfig struct {
	Config PrewarmConfig
	// Provider is normally the caching weather.Service, so that fetched
	// forecasts land in its cache.
	Provider weather.Provider
	Logger   zerolog.Logger
}

// NewPrewarmJob creates a new prewarm job.
func NewPrewarmJob(cfg PrewarmJobConfig) *PrewarmJob {
	return &PrewarmJob{
		config:   cfg.Config.withDefaults(),
		provider: cfg.Provider,
		logger:   cfg.Logger,
		metrics:  &PrewarmMetrics{},
	}
}

// PrewarmResult contains the result of a prewarm run.
type PrewarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []PrewarmError
}

// PrewarmError records one failed forecast fetch.
type PrewarmError struct {
	Kind  string
	Point geo.Coordinate
	Error string
}

// Run refreshes every configured point.
func (j *PrewarmJob) Run(ctx context.Context) *PrewarmResult {
	return j.RunPoints(ctx, j.config.Points)
}

// RunPoints refreshes the given points. A point counts as successful only
// if all three forecast kinds were fetched.
func (j *PrewarmJob) RunPoints(ctx context.Context, points []geo.Coordinate) *PrewarmResult {
	startTime := time.Now()
	result := &PrewarmResult{
		StartTime:   startTime,
		TotalPoints: len(points),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting forecast prewarm")

	pointsChan := make(chan geo.Coordinate, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.prewarmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if len(pr.errors) == 0 {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, pr.errors...)
		}
	}

	// Points skipped after cancellation count as failed.
	if skipped := result.TotalPoints - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("forecast prewarm completed")

	return result
}

type pointResult struct {
	point  geo.Coordinate
	errors []PrewarmError
}

func (j *PrewarmJob) prewarmWorker(ctx context.Context, points <-chan geo.Coordinate, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.prewarmPoint(ctx, point)
		}
	}
}

func (j *PrewarmJob) prewarmPoint(ctx context.Context, point geo.Coordinate) pointResult {
	result := pointResult{point: point}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	fetches := []struct {
		kind  string
		fetch func() error
	}{
		{KindCurrent, func() error {
			_, err := j.provider.GetCurrentWeather(pointCtx, point.Lat, point.Lon)
			return err
		}},
		{KindHourly, func() error {
			_, err := j.provider.GetHourlyForecast(pointCtx, point.Lat, point.Lon, j.config.HourlyHours)
			return err
		}},
		{KindDaily, func() error {
			_, err := j.provider.GetDailyForecast(pointCtx, point.Lat, point.Lon, j.config.DailyDays)
			return err
		}},
	}

	for _, f := range fetches {
		if err := f.fetch(); err != nil {
			j.logger.Warn().Err(err).
				Str("kind", f.kind).
				Float64("lat", point.Lat).
				Float64("lon", point.Lon).
				Msg("forecast prewarm failed")
			result.errors = append(result.errors, PrewarmError{
				Kind:  f.kind,
				Point: point,
				Error: err.Error(),
			})
		}
	}

	return result
}

func (j *PrewarmJob) updateMetrics(result *PrewarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.Runs++
	j.metrics.SuccessfulPoints += int64(result.Successful)
	j.metrics.FailedPoints += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrewarmJob) GetMetrics() PrewarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrewarmMetrics{
		Runs:             j.metrics.Runs,
		SuccessfulPoints: j.metrics.SuccessfulPoints,
		FailedPoints:     j.metrics.FailedPoints,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
	}
}

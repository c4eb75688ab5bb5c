package corridor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/routecast/routecast/internal/routing"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/pkg/geo"
)

const tracerName = "github.com/routecast/routecast/corridor"

// DefaultConcurrency bounds parallel weather lookups per prediction.
const DefaultConcurrency = 4

// ErrInvalidRoute indicates the route lacks what sampling needs.
var ErrInvalidRoute = errors.New("invalid route")

// PointCoordinates is the position of a weather point.
type PointCoordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// WeatherPoint is the weather expected at one sampled place and time.
type WeatherPoint struct {
	Coordinates     PointCoordinates `json:"coordinates"`
	Time            time.Time        `json:"time"`
	ProgressPercent int              `json:"progressPercent"`
	LocationLabel   string           `json:"locationLabel"`
	Weather         weather.Snapshot `json:"weather"`
	Elevation       *float64         `json:"elevation,omitempty"`
}

// Prediction is the weather corridor of a route. ElevationProfile is nil
// when the route carries no elevation.
type Prediction struct {
	WeatherPoints    []WeatherPoint   `json:"weatherPoints"`
	ElevationProfile []ElevationPoint `json:"elevationProfile"`
	Summary          Summary          `json:"summary"`
	DepartureTime    time.Time        `json:"departureTime"`
	ETA              time.Time        `json:"etaTime"`
	DistanceMeters   float64          `json:"distanceMeters"`
	DurationSeconds  float64          `json:"durationSeconds"`
}

// PredictorConfig holds configuration for a Predictor.
type PredictorConfig struct {
	Matcher *Matcher
	Planner Planner

	// Concurrency bounds parallel weather lookups (default: 4).
	Concurrency int

	Logger zerolog.Logger

	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
}

// Predictor samples weather along routes.
type Predictor struct {
	matcher     *Matcher
	planner     Planner
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewPredictor creates a Predictor.
func NewPredictor(cfg PredictorConfig) *Predictor {
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Predictor{
		matcher:     cfg.Matcher,
		planner:     cfg.Planner,
		concurrency: conc,
		logger:      cfg.Logger,
		tracer:      tracer,
	}
}

// sample is a planned weather point before its weather is known.
type sample struct {
	coord    geo.Coordinate
	at       time.Time
	progress int
	vertex   int
	current  bool
}

// Predict returns the weather corridor for route departing at departure.
// Weather lookups that fail fall back to a default snapshot; only an
// invalid route or a cancelled context fails the call.
func (p *Predictor) Predict(ctx context.Context, route *routing.Route, departure time.Time) (*Prediction, error) {
	if err := ValidateRoute(route); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "corridor.Predict", trace.WithAttributes(
		attribute.Float64("route.distance_m", route.DistanceMeters),
		attribute.Float64("route.duration_s", route.DurationSeconds),
		attribute.Int("route.vertices", len(route.Geometry)),
	))
	defer span.End()

	eta := departure.Add(route.Duration())
	samples := p.plan(route, departure, eta)
	span.SetAttributes(attribute.Int("corridor.samples", len(samples)))

	points := make([]WeatherPoint, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, s := range samples {
		g.Go(func() error {
			points[i] = WeatherPoint{
				Coordinates:     PointCoordinates{Lon: s.coord.Lon, Lat: s.coord.Lat},
				Time:            s.at,
				ProgressPercent: s.progress,
				LocationLabel:   LocationLabel(s.progress),
				Weather:         p.lookup(gctx, s),
				Elevation:       elevationAt(route.Geometry, s.vertex),
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("predicting corridor: %w", err)
	}

	pred := &Prediction{
		WeatherPoints:    points,
		ElevationProfile: BuildProfile(route.Geometry),
		Summary:          Summarize(points),
		DepartureTime:    departure,
		ETA:              eta,
		DistanceMeters:   route.DistanceMeters,
		DurationSeconds:  route.DurationSeconds,
	}

	span.SetAttributes(attribute.String("corridor.overall", string(pred.Summary.OverallCondition)))
	p.logger.Debug().
		Int("points", len(points)).
		Float64("distance_km", route.DistanceMeters/1000).
		Str("overall", string(pred.Summary.OverallCondition)).
		Msg("corridor predicted")

	return pred, nil
}

// plan places samples on the route. The first sample sits at the start
// location with current weather; the last at the end location at ETA.
func (p *Predictor) plan(route *routing.Route, departure, eta time.Time) []sample {
	planned := p.planner.Plan(route.DistanceMeters)
	n := len(route.Geometry)
	last := len(planned) - 1

	samples := make([]sample, len(planned))
	for i, sp := range planned {
		switch i {
		case 0:
			samples[i] = sample{
				coord:   endpoint(route.StartLocation, route.Geometry[0]),
				at:      departure,
				vertex:  0,
				current: true,
			}
		case last:
			samples[i] = sample{
				coord:    endpoint(route.EndLocation, route.Geometry[n-1]),
				at:       eta,
				progress: 100,
				vertex:   n - 1,
			}
		default:
			idx := GeometryIndex(sp.Position, n)
			samples[i] = sample{
				coord:    route.Geometry[idx],
				at:       TimeAt(sp.Position, departure, eta),
				progress: int(math.Round(sp.Position * 100)),
				vertex:   idx,
			}
		}
	}
	return samples
}

func (p *Predictor) lookup(ctx context.Context, s sample) weather.Snapshot {
	ctx, span := p.tracer.Start(ctx, "corridor.WeatherLookup", trace.WithAttributes(
		attribute.Int("corridor.progress", s.progress),
		attribute.Bool("corridor.current", s.current),
	))
	defer span.End()

	if s.current {
		return p.matcher.Current(ctx, s.coord)
	}
	return p.matcher.WeatherFor(ctx, s.coord, s.at)
}

// endpoint prefers the named route location and falls back to the
// geometry vertex when the location is unset.
func endpoint(loc routing.Location, vertex geo.Coordinate) geo.Coordinate {
	if loc == (routing.Location{}) {
		return vertex
	}
	return geo.Coordinate{Lon: loc.Lon, Lat: loc.Lat}
}

// ValidateRoute checks that route can be sampled.
func ValidateRoute(route *routing.Route) error {
	switch {
	case route == nil:
		return fmt.Errorf("%w: route is nil", ErrInvalidRoute)
	case len(route.Geometry) == 0:
		return fmt.Errorf("%w: geometry is empty", ErrInvalidRoute)
	case math.IsNaN(route.DistanceMeters) || math.IsInf(route.DistanceMeters, 0) || route.DistanceMeters < 0:
		return fmt.Errorf("%w: distance %v", ErrInvalidRoute, route.DistanceMeters)
	case math.IsNaN(route.DurationSeconds) || math.IsInf(route.DurationSeconds, 0) || route.DurationSeconds < 0:
		return fmt.Errorf("%w: duration %v", ErrInvalidRoute, route.DurationSeconds)
	}
	for i, c := range route.Geometry {
		if !c.Valid() {
			return fmt.Errorf("%w: vertex %d out of range", ErrInvalidRoute, i)
		}
	}
	return nil
}

package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/routing"
)

// DefaultTimeout bounds a single prediction, route lookup included.
const DefaultTimeout = 20 * time.Second

// RouteFinder computes the route to predict along.
type RouteFinder interface {
	Route(ctx context.Context, req routing.DirectionsRequest) (*routing.Route, error)
}

// CorridorPredictor samples weather along a route.
type CorridorPredictor interface {
	Predict(ctx context.Context, route *routing.Route, departure time.Time) (*corridor.Prediction, error)
}

// ServiceConfig holds configuration for the prediction service.
type ServiceConfig struct {
	Routes    RouteFinder
	Predictor CorridorPredictor
	Repo      Repository
	Logger    zerolog.Logger

	// Timeout wraps each Predict call (default: 20s).
	Timeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service provides prediction operations.
type Service struct {
	routes    RouteFinder
	predictor CorridorPredictor
	repo      Repository
	logger    zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a new prediction service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		routes:    cfg.Routes,
		predictor: cfg.Predictor,
		repo:      cfg.Repo,
		logger:    cfg.Logger,
		timeout:   timeout,
		now:       now,
	}
}

// Predict routes between the request's endpoints and predicts the weather
// corridor. With Save set the record is stored for req.UserID.
func (s *Service) Predict(ctx context.Context, req Request) (*Record, error) {
	if req.Save && req.UserID == "" {
		return nil, ErrSaveRequiresUser
	}
	if !req.Origin.Valid() || !req.Destination.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest)
	}
	profile, err := routing.ParseProfile(string(req.Profile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	departure := req.DepartureTime
	if departure.IsZero() {
		departure = now
	}

	route, err := s.routes.Route(ctx, routing.DirectionsRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Profile:     profile,
		Elevation:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("find route: %w", err)
	}

	result, err := s.predictor.Predict(ctx, route, departure)
	if err != nil {
		return nil, fmt.Errorf("predict corridor: %w", err)
	}

	rec := &Record{
		Origin:      req.Origin,
		Destination: req.Destination,
		Profile:     profile,
		Result:      result,
		CreatedAt:   now,
	}

	if req.Save {
		rec.ID = IDPrefix + uuid.New().String()
		rec.UserID = req.UserID
		if err := s.repo.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("save prediction: %w", err)
		}
		s.logger.Info().
			Str("prediction_id", rec.ID).
			Str("user_id", rec.UserID).
			Msg("prediction saved")
	}

	return rec, nil
}

// Get retrieves a saved prediction owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrPredictionNotFound
	}
	return rec, nil
}

// List retrieves a page of userID's saved predictions.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	return s.repo.List(ctx, userID, opts)
}

// Delete deletes a saved prediction owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	// Verify ownership
	if _, err := s.Get(ctx, userID, id); err != nil {
		if errors.Is(err, ErrPredictionNotFound) {
			return ErrPredictionNotFound
		}
		return err
	}

	return s.repo.Delete(ctx, id)
}

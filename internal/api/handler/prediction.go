package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/prediction"
	"github.com/routecast/routecast/internal/routing"
)

const (
	maxRequestBodyBytes = 64 << 10
	maxListLimit        = 100
)

// PredictionService is the prediction use case the handler serves.
type PredictionService interface {
	Predict(ctx context.Context, req prediction.Request) (*prediction.Record, error)
	Get(ctx context.Context, userID, id string) (*prediction.Record, error)
	List(ctx context.Context, userID string, opts prediction.ListOptions) (*prediction.ListResult, error)
	Delete(ctx context.Context, userID, id string) error
}

// PredictionHandler handles corridor prediction endpoints.
type PredictionHandler struct {
	service  PredictionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(service PredictionService, logger zerolog.Logger) *PredictionHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	return &PredictionHandler{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

// CreatePrediction handles POST /v1/predictions - predict the weather along
// the route between two locations, optionally saving the result.
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var input models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := h.validate.Struct(input); err != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors(err))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if input.Save && userID == "" {
		response.Unauthorized(w, r, "authentication is required to save a prediction")
		return
	}

	req := prediction.Request{
		Origin:      toRoutingLocation(*input.Origin),
		Destination: toRoutingLocation(*input.Destination),
		Profile:     routing.RouteProfile(input.Profile),
		Save:        input.Save,
		UserID:      userID,
	}
	if input.DepartureTime != nil {
		req.DepartureTime = input.DepartureTime.Time()
	}

	rec, err := h.service.Predict(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if rec.ID != "" {
		response.Created(w, r, fmt.Sprintf("/v1/predictions/%s", rec.ID), toPrediction(rec))
		return
	}
	response.JSON(w, r, http.StatusOK, toPrediction(rec))
}

// GetPrediction handles GET /v1/predictions/{predictionId} - get a saved prediction.
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	predictionID := chi.URLParam(r, "predictionId")
	if predictionID == "" {
		response.BadRequest(w, r, "predictionId is required", nil)
		return
	}

	rec, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), predictionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, toPrediction(rec))
}

// ListPredictions handles GET /v1/me/predictions - list saved predictions.
func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	opts := prediction.ListOptions{
		Limit:  prediction.DefaultListLimit,
		Cursor: r.URL.Query().Get("cursor"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: fmt.Sprintf("must be an integer between 1 and %d", maxListLimit), Code: "OUT_OF_RANGE"},
			})
			return
		}
		opts.Limit = limit
	}

	result, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page := models.PagedPredictions{
		Items: make([]models.PredictionSummary, 0, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: opts.Limit},
	}
	for _, rec := range result.Items {
		page.Items = append(page.Items, toPredictionSummary(rec))
	}
	if result.NextCursor != "" {
		page.Meta.NextCursor = &result.NextCursor
	}

	response.JSON(w, r, http.StatusOK, page)
}

// DeletePrediction handles DELETE /v1/predictions/{predictionId} - delete a saved prediction.
func (h *PredictionHandler) DeletePrediction(w http.ResponseWriter, r *http.Request) {
	predictionID := chi.URLParam(r, "predictionId")
	if predictionID == "" {
		response.BadRequest(w, r, "predictionId is required", nil)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), predictionID); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// writeError maps service errors onto problem responses.
func (h *PredictionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, prediction.ErrPredictionNotFound):
		response.NotFound(w, r, "prediction not found")
	case errors.Is(err, prediction.ErrSaveRequiresUser):
		response.Unauthorized(w, r, "authentication is required to save a prediction")
	case errors.Is(err, prediction.ErrInvalidRequest),
		errors.Is(err, routing.ErrInvalidCoordinates),
		errors.Is(err, routing.ErrUnsupportedProfile):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.Unprocessable(w, r, "no route found between origin and destination")
	case errors.Is(err, corridor.ErrInvalidRoute):
		response.Unprocessable(w, r, "the routing provider returned an unusable route")
	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, routing.ErrRateLimitExceeded),
		errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "route provider is temporarily unavailable")
	default:
		h.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("prediction request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// fieldErrors converts validator errors into API field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, models.FieldError{
			Field:   field,
			Message: fieldMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// jsonFieldName reports struct fields by their JSON names.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func toRoutingLocation(l models.Location) routing.Location {
	return routing.Location{Name: l.Name, Lat: l.Lat, Lon: l.Lon}
}

func toAPILocation(l routing.Location) models.Location {
	return models.Location{Name: l.Name, Lat: l.Lat, Lon: l.Lon}
}

func toPrediction(rec *prediction.Record) models.Prediction {
	res := rec.Result
	return models.Prediction{
		ID:               rec.ID,
		Origin:           toAPILocation(rec.Origin),
		Destination:      toAPILocation(rec.Destination),
		Profile:          string(rec.Profile),
		WeatherPoints:    res.WeatherPoints,
		ElevationProfile: res.ElevationProfile,
		Summary:          res.Summary,
		DepartureTime:    models.Timestamp(res.DepartureTime),
		ETATime:          models.Timestamp(res.ETA),
		DistanceMeters:   res.DistanceMeters,
		DurationSeconds:  res.DurationSeconds,
		CreatedAt:        models.Timestamp(rec.CreatedAt),
	}
}

func toPredictionSummary(rec *prediction.Record) models.PredictionSummary {
	summary := models.PredictionSummary{
		ID:          rec.ID,
		Origin:      toAPILocation(rec.Origin),
		Destination: toAPILocation(rec.Destination),
		Profile:     string(rec.Profile),
		CreatedAt:   models.Timestamp(rec.CreatedAt),
	}
	if rec.Result != nil {
		summary.DepartureTime = models.Timestamp(rec.Result.DepartureTime)
		summary.OverallCondition = rec.Result.Summary.OverallCondition
	}
	return summary
}

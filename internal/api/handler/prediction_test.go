package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/prediction"
	"github.com/routecast/routecast/internal/routing"
)

var departure = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakePredictionService struct {
	lastRequest prediction.Request
	lastOpts    prediction.ListOptions
	lastUser    string
	record      *prediction.Record
	list        *prediction.ListResult
	err         error
}

func (f *fakePredictionService) Predict(_ context.Context, req prediction.Request) (*prediction.Record, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.record
	if req.Save {
		rec.ID = "pred_new"
		rec.UserID = req.UserID
	}
	return &rec, nil
}

func (f *fakePredictionService) Get(_ context.Context, userID, id string) (*prediction.Record, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.record
	rec.ID = id
	return &rec, nil
}

func (f *fakePredictionService) List(_ context.Context, userID string, opts prediction.ListOptions) (*prediction.ListResult, error) {
	f.lastUser = userID
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakePredictionService) Delete(_ context.Context, userID, _ string) error {
	f.lastUser = userID
	return f.err
}

func sampleRecord() *prediction.Record {
	return &prediction.Record{
		Origin:      routing.Location{Name: "Berlin", Lat: 52.52, Lon: 13.405},
		Destination: routing.Location{Name: "Potsdam", Lat: 52.39, Lon: 13.06},
		Profile:     routing.ProfileDrive,
		CreatedAt:   departure,
		Result: &corridor.Prediction{
			WeatherPoints: []corridor.WeatherPoint{
				{LocationLabel: corridor.LabelStart, Time: departure},
				{LocationLabel: corridor.LabelDestination, Time: departure.Add(40 * time.Minute), ProgressPercent: 100},
			},
			Summary: corridor.Summary{
				OverallCondition: corridor.OverallClear,
				Recommendations:  []string{},
			},
			DepartureTime:   departure,
			ETA:             departure.Add(40 * time.Minute),
			DistanceMeters:  35000,
			DurationSeconds: 2400,
		},
	}
}

func newTestMux(svc handler.PredictionService, userID string) *chi.Mux {
	h := handler.NewPredictionHandler(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/v1/predictions", h.CreatePrediction)
	r.Get("/v1/predictions/{predictionId}", h.GetPrediction)
	r.Delete("/v1/predictions/{predictionId}", h.DeletePrediction)
	r.Get("/v1/me/predictions", h.ListPredictions)
	return r
}

func postPrediction(t *testing.T, mux http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreatePrediction_Anonymous(t *testing.T) {
	svc := &fakePredictionService{record: sampleRecord()}
	mux := newTestMux(svc, "")

	rec := postPrediction(t, mux, map[string]any{
		"origin":        map[string]any{"name": "Berlin", "lat": 52.52, "lon": 13.405},
		"destination":   map[string]any{"name": "Potsdam", "lat": 52.39, "lon": 13.06},
		"departureTime": "2026-03-10T09:00:00+01:00",
		"profile":       "cycling-regular",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))

	assert.Equal(t, "Berlin", svc.lastRequest.Origin.Name)
	assert.Equal(t, routing.ProfileBike, svc.lastRequest.Profile)
	assert.True(t, svc.lastRequest.DepartureTime.Equal(departure))
	assert.False(t, svc.lastRequest.Save)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "id")
	assert.Nil(t, body["elevationProfile"], "absent profile is null")
	assert.Equal(t, "2026-03-10T08:40:00Z", body["etaTime"])
	points, ok := body["weatherPoints"].([]any)
	require.True(t, ok)
	assert.Len(t, points, 2)
}

func TestCreatePrediction_SaveAuthenticated(t *testing.T) {
	svc := &fakePredictionService{record: sampleRecord()}
	mux := newTestMux(svc, "user_1")

	rec := postPrediction(t, mux, map[string]any{
		"origin":      map[string]any{"lat": 52.52, "lon": 13.405},
		"destination": map[string]any{"lat": 52.39, "lon": 13.06},
		"save":        true,
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/predictions/pred_new", rec.Header().Get("Location"))
	assert.Equal(t, "user_1", svc.lastRequest.UserID)
	assert.True(t, svc.lastRequest.DepartureTime.IsZero(), "departure defaults in the service")

	var body models.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pred_new", body.ID)
}

func TestCreatePrediction_SaveAnonymous(t *testing.T) {
	svc := &fakePredictionService{record: sampleRecord()}
	mux := newTestMux(svc, "")

	rec := postPrediction(t, mux, map[string]any{
		"origin":      map[string]any{"lat": 52.52, "lon": 13.405},
		"destination": map[string]any{"lat": 52.39, "lon": 13.06},
		"save":        true,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreatePrediction_Validation(t *testing.T) {
	svc := &fakePredictionService{record: sampleRecord()}
	mux := newTestMux(svc, "")

	rec := postPrediction(t, mux, map[string]any{
		"origin":  map[string]any{"lat": 95, "lon": 13.405},
		"profile": "hovercraft",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	fields := make(map[string]string)
	for _, fe := range problem.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "LTE", fields["origin.lat"])
	assert.Equal(t, "REQUIRED", fields["destination"])
	assert.Equal(t, "ONEOF", fields["profile"])
}

func TestCreatePrediction_InvalidJSON(t *testing.T) {
	mux := newTestMux(&fakePredictionService{record: sampleRecord()}, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePrediction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: bad", prediction.ErrInvalidRequest), http.StatusBadRequest},
		{"no route", fmt.Errorf("find route: %w", routing.ErrNoRouteFound), http.StatusUnprocessableEntity},
		{"invalid route", fmt.Errorf("predict corridor: %w", corridor.ErrInvalidRoute), http.StatusUnprocessableEntity},
		{"provider down", fmt.Errorf("find route: %w", routing.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("find route: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&fakePredictionService{err: tt.err}, "")

			rec := postPrediction(t, mux, map[string]any{
				"origin":      map[string]any{"lat": 1, "lon": 1},
				"destination": map[string]any{"lat": 2, "lon": 2},
			})

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetPrediction(t *testing.T) {
	svc := &fakePredictionService{record: sampleRecord()}
	mux := newTestMux(svc, "user_1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/predictions/pred_abc", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_1", svc.lastUser)

	var body models.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pred_abc", body.ID)
	assert.Equal(t, corridor.OverallClear, body.Summary.OverallCondition)
}

func TestGetPrediction_NotFound(t *testing.T) {
	mux := newTestMux(&fakePredictionService{err: prediction.ErrPredictionNotFound}, "user_1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/predictions/pred_missing", http.NoBody))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePrediction(t *testing.T) {
	svc := &fakePredictionService{}
	mux := newTestMux(svc, "user_1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/predictions/pred_abc", http.NoBody))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user_1", svc.lastUser)
}

func TestListPredictions(t *testing.T) {
	first := sampleRecord()
	first.ID = "pred_1"
	svc := &fakePredictionService{list: &prediction.ListResult{
		Items:      []*prediction.Record{first},
		NextCursor: "cursor_2",
	}}
	mux := newTestMux(svc, "user_1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/predictions?limit=1&cursor=abc", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.lastOpts.Limit)
	assert.Equal(t, "abc", svc.lastOpts.Cursor)

	var page models.PagedPredictions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "pred_1", page.Items[0].ID)
	assert.Equal(t, corridor.OverallClear, page.Items[0].OverallCondition)
	require.NotNil(t, page.Meta.NextCursor)
	assert.Equal(t, "cursor_2", *page.Meta.NextCursor)
}

func TestListPredictions_InvalidLimit(t *testing.T) {
	mux := newTestMux(&fakePredictionService{list: &prediction.ListResult{}}, "user_1")

	for _, limit := range []string{"0", "101", "ten"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/predictions?limit="+limit, http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestListPredictions_EmptyPage(t *testing.T) {
	mux := newTestMux(&fakePredictionService{list: &prediction.ListResult{}}, "user_1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/predictions", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"meta":{"limit":50}}`, rec.Body.String())
}

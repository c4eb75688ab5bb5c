package models

import (
	"github.com/routecast/routecast/internal/corridor"
)

// PredictionRequest is the body of POST /v1/predictions.
type PredictionRequest struct {
	Origin        *Location  `json:"origin" validate:"required"`
	Destination   *Location  `json:"destination" validate:"required"`
	DepartureTime *Timestamp `json:"departureTime,omitempty"`
	Profile       string     `json:"profile,omitempty" validate:"omitempty,oneof=driving-car cycling-regular foot-walking"`
	Save          bool       `json:"save,omitempty"`
}

// Prediction is a corridor prediction as returned by the API.
type Prediction struct {
	ID               string                    `json:"id,omitempty"`
	Origin           Location                  `json:"origin"`
	Destination      Location                  `json:"destination"`
	Profile          string                    `json:"profile"`
	WeatherPoints    []corridor.WeatherPoint   `json:"weatherPoints"`
	ElevationProfile []corridor.ElevationPoint `json:"elevationProfile"`
	Summary          corridor.Summary          `json:"summary"`
	DepartureTime    Timestamp                 `json:"departureTime"`
	ETATime          Timestamp                 `json:"etaTime"`
	DistanceMeters   float64                   `json:"distanceMeters"`
	DurationSeconds  float64                   `json:"durationSeconds"`
	CreatedAt        Timestamp                 `json:"createdAt"`
}

// PredictionSummary is a saved prediction as listed under /v1/me/predictions.
type PredictionSummary struct {
	ID               string                    `json:"id"`
	Origin           Location                  `json:"origin"`
	Destination      Location                  `json:"destination"`
	Profile          string                    `json:"profile"`
	DepartureTime    Timestamp                 `json:"departureTime"`
	OverallCondition corridor.OverallCondition `json:"overallCondition"`
	CreatedAt        Timestamp                 `json:"createdAt"`
}

// PagedPredictions is a page of saved predictions.
type PagedPredictions struct {
	Items []PredictionSummary `json:"items"`
	Meta  PagedResponseMeta   `json:"meta"`
}

// Package prediction runs corridor predictions for endpoint pairs and
// stores the ones users choose to keep.
package prediction

import (
	"errors"
	"time"

	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/routing"
)

// Repository errors.
var (
	ErrPredictionNotFound = errors.New("prediction not found")
)

// Service errors.
var (
	ErrSaveRequiresUser = errors.New("saving a prediction requires an authenticated user")
	ErrInvalidRequest   = errors.New("invalid prediction request")
)

// IDPrefix prefixes generated prediction identifiers.
const IDPrefix = "pred_"

// Record is a prediction together with the request that produced it.
// ID and UserID are empty for predictions that were not saved.
type Record struct {
	ID          string
	UserID      string
	Origin      routing.Location
	Destination routing.Location
	Profile     routing.RouteProfile
	Result      *corridor.Prediction
	CreatedAt   time.Time
}

// Request asks for a corridor prediction between two locations.
type Request struct {
	Origin        routing.Location
	Destination   routing.Location
	Profile       routing.RouteProfile
	DepartureTime time.Time // zero means now
	Save          bool
	UserID        string
}

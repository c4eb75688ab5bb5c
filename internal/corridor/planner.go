// Package corridor samples weather along a route: it plans sample points,
// assigns each a time between departure and arrival, matches forecasts to
// those times, and summarizes the result.
package corridor

import (
	"fmt"
	"math"
)

const (
	// DefaultBiasExponent reshapes interior samples of long routes. It is a
	// product heuristic and can be overridden per Planner.
	DefaultBiasExponent = 0.8

	// BiasThresholdKm is the route length above which the bias applies.
	BiasThresholdKm = 100.0

	// MinSamplePoints is the floor on samples for any route.
	MinSamplePoints = 3

	// MaxSamplePoints is the ceiling reached by routes of 400 km and longer.
	MaxSamplePoints = 8
)

// PointCount returns how many samples to take along a route of distanceKm.
// It panics on a negative or NaN distance.
func PointCount(distanceKm float64) int {
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		panic(fmt.Sprintf("corridor: invalid route distance %v km", distanceKm))
	}

	var n float64
	switch {
	case distanceKm < 50:
		n = 3
	case distanceKm < 200:
		n = math.Floor(4 + (distanceKm-50)/50)
	default:
		n = math.Min(MaxSamplePoints, 6+math.Floor((distanceKm-200)/100))
	}

	if n < MinSamplePoints {
		return MinSamplePoints
	}
	return int(n)
}

// PlanSamplePoints returns evenly spaced progress fractions i/(n-1) for a
// route of distanceMeters. The first fraction is 0 and the last is 1.
func PlanSamplePoints(distanceMeters float64) []float64 {
	n := PointCount(distanceMeters / 1000)
	fractions := make([]float64, n)
	for i := range fractions {
		fractions[i] = float64(i) / float64(n-1)
	}
	return fractions
}

// SamplePoint is a planned sample. Fraction is the even spacing; Position
// is where the sample actually sits after the long-route bias.
type SamplePoint struct {
	Fraction float64
	Position float64
}

// Planner plans sample positions. The zero value uses DefaultBiasExponent.
type Planner struct {
	// BiasExponent is applied as fraction^BiasExponent to interior samples
	// of routes longer than BiasThresholdKm. 1 disables the bias.
	BiasExponent float64
}

// Plan returns the sample points for a route of distanceMeters.
func (p Planner) Plan(distanceMeters float64) []SamplePoint {
	fractions := PlanSamplePoints(distanceMeters)

	exp := p.BiasExponent
	if exp <= 0 {
		exp = DefaultBiasExponent
	}
	biased := distanceMeters/1000 > BiasThresholdKm

	points := make([]SamplePoint, len(fractions))
	last := len(fractions) - 1
	for i, f := range fractions {
		pos := f
		if biased && i > 0 && i < last {
			pos = math.Pow(f, exp)
		}
		points[i] = SamplePoint{Fraction: f, Position: pos}
	}
	return points
}

// GeometryIndex maps a position in [0,1] to the nearest vertex index of a
// geometry with n vertices.
func GeometryIndex(position float64, n int) int {
	if n <= 1 {
		return 0
	}
	idx := int(math.Round(position * float64(n-1)))
	return max(0, min(idx, n-1))
}

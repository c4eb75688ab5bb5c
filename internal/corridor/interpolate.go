package corridor

import "time"

// TimeAt linearly interpolates between departure and eta.
func TimeAt(fraction float64, departure, eta time.Time) time.Time {
	span := eta.Sub(departure)
	return departure.Add(time.Duration(fraction * float64(span)))
}

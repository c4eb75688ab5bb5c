package corridor

import (
	"fmt"
	"time"
)

// OverallCondition classifies the weather risk of a whole route.
type OverallCondition string

const (
	OverallClear         OverallCondition = "clear"
	OverallVariable      OverallCondition = "variable"
	OverallDeteriorating OverallCondition = "deteriorating"
	OverallSevere        OverallCondition = "severe"
)

// Precipitation chance thresholds, in percent.
const (
	severePrecipThreshold         = 80
	deterioratingPrecipThreshold  = 70
	variablePrecipThreshold       = 30
	shiftDeparturePrecipThreshold = 50
)

// Recommendation texts. The rain gear text is formatted with a location.
const (
	RecPostpone       = "Consider postponing your trip: thunderstorms are expected along the route."
	RecMonitorAlerts  = "Monitor local weather alerts before and during the trip."
	RecWinterKit      = "Snow is expected: carry a winter kit and check tyre or chain requirements."
	RecExtraTime      = "Allow extra travel time for snowy conditions."
	RecRainGearAt     = "Bring rain gear: rain is expected near %s."
	RecRainGear       = "Bring rain gear: rain is expected along the route."
	RecReduceSpeed    = "Reduce speed and increase following distance on wet roads."
	RecShiftDeparture = "High chance of precipitation: consider shifting your departure time."
)

// Location labels by progress band.
const (
	LabelStart       = "start"
	LabelEarly       = "early route"
	LabelMid         = "mid route"
	LabelLate        = "late route"
	LabelDestination = "destination"
)

// Summary aggregates the sampled weather of a route.
type Summary struct {
	OverallCondition       OverallCondition `json:"overallCondition"`
	RainExpected           bool             `json:"rainExpected"`
	SnowExpected           bool             `json:"snowExpected"`
	ThunderstormExpected   bool             `json:"thunderstormExpected"`
	MaxPrecipitationChance float64          `json:"maxPrecipitationChance"`
	AdverseWeatherLocation string           `json:"adverseWeatherLocation,omitempty"`
	AdverseWeatherTime     *time.Time       `json:"adverseWeatherTime,omitempty"`
	Recommendations        []string         `json:"recommendations"`
}

// LocationLabel names the progress band of a sample.
func LocationLabel(progressPercent int) string {
	switch {
	case progressPercent <= 0:
		return LabelStart
	case progressPercent >= 100:
		return LabelDestination
	case progressPercent < 33:
		return LabelEarly
	case progressPercent < 67:
		return LabelMid
	default:
		return LabelLate
	}
}

// Summarize classifies points, which must be in progress order.
func Summarize(points []WeatherPoint) Summary {
	s := Summary{Recommendations: []string{}}
	rainLocation := ""

	for i := range points {
		p := &points[i]
		cond := p.Weather.Condition

		if cond.IsThunderstorm() {
			s.ThunderstormExpected = true
		}
		if cond.IsSnow() {
			s.SnowExpected = true
		}
		if cond.IsRain() {
			if !s.RainExpected {
				rainLocation = p.LocationLabel
			}
			s.RainExpected = true
		}
		if p.Weather.PrecipitationChance > s.MaxPrecipitationChance {
			s.MaxPrecipitationChance = p.Weather.PrecipitationChance
		}

		if s.AdverseWeatherTime == nil && cond.IsAdverse() {
			t := p.Time
			s.AdverseWeatherTime = &t
			s.AdverseWeatherLocation = p.LocationLabel
		}
	}

	switch {
	case s.ThunderstormExpected || s.MaxPrecipitationChance > severePrecipThreshold:
		s.OverallCondition = OverallSevere
	case s.SnowExpected || s.MaxPrecipitationChance > deterioratingPrecipThreshold:
		s.OverallCondition = OverallDeteriorating
	case s.RainExpected || s.MaxPrecipitationChance > variablePrecipThreshold:
		s.OverallCondition = OverallVariable
	default:
		s.OverallCondition = OverallClear
	}

	s.Recommendations = recommend(s, rainLocation)
	return s
}

// recommend applies the rule list in a fixed order: thunderstorm, snow,
// rain, then precipitation chance. The rain gear text names the first rain
// point, which can differ from AdverseWeatherLocation when snow or a
// thunderstorm comes earlier.
func recommend(s Summary, rainLocation string) []string {
	recs := []string{}
	add := func(r string) {
		for _, existing := range recs {
			if existing == r {
				return
			}
		}
		recs = append(recs, r)
	}

	if s.ThunderstormExpected {
		add(RecPostpone)
		add(RecMonitorAlerts)
	}
	if s.SnowExpected {
		add(RecWinterKit)
		add(RecExtraTime)
	}
	if s.RainExpected {
		if rainLocation != "" {
			add(fmt.Sprintf(RecRainGearAt, rainLocation))
		} else {
			add(RecRainGear)
		}
		add(RecReduceSpeed)
	}
	if s.MaxPrecipitationChance > shiftDeparturePrecipThreshold {
		add(RecShiftDeparture)
	}
	return recs
}

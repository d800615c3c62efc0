// Package weather provides current conditions and daily forecasts for a
// location, combined with the exposure index from the air quality service.
package weather

import (
	"errors"
	"time"

	"github.com/breathway/breathway/internal/airquality"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation represents weather data at a specific point and time.
type Observation struct {
	Lat float64
	Lon float64

	// Temperatures in Celsius
	Temperature float64
	FeelsLike   float64

	// Humidity percentage (0-100)
	Humidity float64

	WindSpeed     float64 // m/s
	WindDirection float64 // degrees, 0 = N

	// Atmospheric pressure in hPa
	Pressure float64

	Condition   Condition
	Description string

	VisibilityKm float64

	ObservedAt time.Time
	FetchedAt  time.Time
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionSmoke        Condition = "SMOKE"
	ConditionDust         Condition = "DUST"
	ConditionUnknown      Condition = "UNKNOWN"
)

// WindCategory describes how well the wind disperses pollutants.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 1 m/s - pollutants accumulate
	WindLight    WindCategory = "LIGHT"    // 1-3 m/s
	WindModerate WindCategory = "MODERATE" // 3-8 m/s
	WindStrong   WindCategory = "STRONG"   // > 8 m/s
)

// CategorizeWind returns the wind category for a speed in m/s.
func CategorizeWind(speed float64) WindCategory {
	switch {
	case speed < 1:
		return WindCalm
	case speed < 3:
		return WindLight
	case speed < 8:
		return WindModerate
	default:
		return WindStrong
	}
}

// WindCategory returns the wind category for the observation.
func (o *Observation) WindCategory() WindCategory {
	return CategorizeWind(o.WindSpeed)
}

// Forecast is a short-range forecast in fixed steps (3 hours for OpenWeatherMap).
type Forecast struct {
	Lat     float64
	Lon     float64
	Entries []ForecastEntry

	FetchedAt time.Time
}

// ForecastEntry is the forecast for one step.
type ForecastEntry struct {
	Time        time.Time
	Temperature float64
	WindSpeed   float64
	Condition   Condition
}

// Conditions is the current weather at a place together with its exposure.
type Conditions struct {
	Observation *Observation

	// Exposure is nil when the air quality lookup failed.
	Exposure *airquality.Reading
}

// DailySummary condenses one calendar day of forecast steps.
type DailySummary struct {
	Date      string // 2006-01-02 in the service's location
	DayName   string
	MinTemp   float64
	MaxTemp   float64
	AvgTemp   float64
	WindSpeed float64

	// Condition is the most frequent condition of the day; ties go to the one seen first.
	Condition Condition

	// Exposure is the mean forecast exposure index, 0 without pollution data.
	Exposure airquality.Index
}

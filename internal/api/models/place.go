package models

// PlaceResponse is a resolved place name.
type PlaceResponse struct {
	Name    string `json:"name"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
	Point   Point  `json:"point"`
}

// ConditionsResponse is the current weather and exposure at a place.
type ConditionsResponse struct {
	Place    PlaceResponse `json:"place"`
	Weather  Weather       `json:"weather"`
	Exposure *AirQuality   `json:"airQuality,omitempty"`
}

// Weather is a current weather observation.
type Weather struct {
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      int       `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection int       `json:"windDirection"`
	WindCategory  string    `json:"windCategory"`
	Pressure      int       `json:"pressure"`
	VisibilityKm  float64   `json:"visibilityKm"`
	Condition     string    `json:"condition"`
	Description   string    `json:"description,omitempty"`
	ObservedAt    Timestamp `json:"observedAt"`
}

// AirQuality is the exposure at a point with its dominant pollutant.
type AirQuality struct {
	Exposure
	Pollutant  string     `json:"dominantPollutant"`
	MeasuredAt *Timestamp `json:"measuredAt,omitempty"`
}

// ForecastResponse is the daily forecast for a place.
type ForecastResponse struct {
	Place PlaceResponse `json:"place"`
	Days  []ForecastDay `json:"days"`
}

// ForecastDay summarises one forecast day.
type ForecastDay struct {
	Date      string    `json:"date"`
	DayName   string    `json:"dayName"`
	MinTemp   float64   `json:"minTemp"`
	MaxTemp   float64   `json:"maxTemp"`
	AvgTemp   float64   `json:"avgTemp"`
	WindSpeed float64   `json:"windSpeed"`
	Condition string    `json:"condition"`
	Exposure  *Exposure `json:"exposure,omitempty"`
}

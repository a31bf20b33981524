package types

import "time"

// WeatherRecord holds the current conditions of one location.
type WeatherRecord struct {
	Location    string         `json:"location"`
	Temperature float64        `json:"temperature"`
	FeelsLike   float64        `json:"feels_like"`
	Humidity    float64        `json:"humidity"`
	WindSpeed   float64        `json:"wind_speed"`
	Visibility  float64        `json:"visibility"`
	Pressure    float64        `json:"pressure"`
	CloudCover  float64        `json:"cloud_cover"`
	Conditions  string         `json:"conditions"`
	UVIndex     float64        `json:"uv_index"`
	Alerts      []WeatherAlert `json:"alerts"`
	ObservedAt  time.Time      `json:"observed_at"`
}

// WeatherAlert describes one active alert. SafetyLevel runs from 1 to 10.
type WeatherAlert struct {
	Event           string   `json:"event"`
	Headline        string   `json:"headline,omitempty"`
	Description     string   `json:"description,omitempty"`
	Severity        string   `json:"severity"`
	SafetyLevel     int      `json:"safety_level"`
	Recommendations []string `json:"recommendations"`
	Derived         bool     `json:"derived"`
}

type ForecastDay struct {
	Date       string  `json:"date"`
	TempMax    float64 `json:"temp_max"`
	TempMin    float64 `json:"temp_min"`
	Conditions string  `json:"conditions"`
	PrecipProb float64 `json:"precip_prob"`
	WindSpeed  float64 `json:"windspeed"`
	Humidity   float64 `json:"humidity"`
}

type WeatherForecast struct {
	Location string         `json:"location"`
	Days     []ForecastDay  `json:"forecast"`
	Alerts   []WeatherAlert `json:"alerts"`
}

// WeatherSafetyAnalysis is the weather-only view served by /weather/safety-analysis.
type WeatherSafetyAnalysis struct {
	Location           string         `json:"location"`
	WeatherSafetyScore float64        `json:"weather_safety_score"`
	WeatherRiskScore   float64        `json:"weather_risk_score"`
	Conditions         WeatherRecord  `json:"weather_conditions"`
	Breakdown          RiskBreakdown  `json:"safety_factors"`
	Alerts             []WeatherAlert `json:"alerts"`
	Recommendations    []string       `json:"recommendations"`
	Source             SourceStatus   `json:"source"`
}

package types

import (
	"fmt"
	"strings"
)

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceExpert       ExperienceLevel = "expert"
)

// LocationKey identifies a query target either by coordinates or by administrative name.
type LocationKey struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	State     string   `json:"state,omitempty" validate:"max=100"`
	District  string   `json:"district,omitempty" validate:"max=100"`
	City      string   `json:"city,omitempty" validate:"max=100"`
}

// HasCoordinates reports whether both coordinates are present.
func (k LocationKey) HasCoordinates() bool {
	return k.Latitude != nil && k.Longitude != nil
}

// HasName reports whether any administrative name is present.
func (k LocationKey) HasName() bool {
	return strings.TrimSpace(k.State) != "" || strings.TrimSpace(k.District) != "" || strings.TrimSpace(k.City) != ""
}

// Validate checks that at least one resolvable form is present.
func (k LocationKey) Validate() error {
	if (k.Latitude == nil) != (k.Longitude == nil) {
		return &ValidationError{Field: "latitude", Message: "latitude and longitude must be supplied together"}
	}
	if !k.HasCoordinates() && !k.HasName() {
		return &ValidationError{Field: "location", Message: "coordinates or a state, district or city name is required"}
	}
	return nil
}

// Name returns the most specific administrative name, falling back to the state.
func (k LocationKey) Name() string {
	for _, v := range []string{k.City, k.District, k.State} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// String is the canonical form used in cache keys.
func (k LocationKey) String() string {
	var parts []string
	if k.HasCoordinates() {
		parts = append(parts, fmt.Sprintf("%.4f,%.4f", *k.Latitude, *k.Longitude))
	}
	for _, v := range []string{k.State, k.District, k.City} {
		if s := strings.ToLower(strings.TrimSpace(v)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// TouristContext holds the caller supplied attributes of one request.
type TouristContext struct {
	LocationRisk    int             `json:"location_risk" validate:"min=1,max=10"`
	GroupSize       int             `json:"group_size" validate:"min=1,max=50"`
	ExperienceLevel ExperienceLevel `json:"experience_level" validate:"oneof=beginner intermediate expert"`
	HasItinerary    bool            `json:"has_itinerary"`
	Age             int             `json:"age" validate:"min=0,max=120"`
	HealthScore     int             `json:"health_score" validate:"min=1,max=10"`
}

// SafetyScoreRequest is the body of POST /safety-score. Absent fields take the documented defaults.
type SafetyScoreRequest struct {
	LocationRisk    *int     `json:"location_risk"`
	GroupSize       *int     `json:"group_size"`
	ExperienceLevel *string  `json:"experience_level"`
	HasItinerary    *bool    `json:"has_itinerary"`
	Age             *int     `json:"age"`
	HealthScore     *int     `json:"health_score"`
	State           string   `json:"state"`
	District        string   `json:"district"`
	City            string   `json:"city"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

// Context applies defaults: location_risk 5, group_size 1, beginner, no itinerary, age 30, health 8.
func (r SafetyScoreRequest) Context() TouristContext {
	tc := TouristContext{
		LocationRisk:    5,
		GroupSize:       1,
		ExperienceLevel: ExperienceBeginner,
		Age:             30,
		HealthScore:     8,
	}
	if r.LocationRisk != nil {
		tc.LocationRisk = *r.LocationRisk
	}
	if r.GroupSize != nil {
		tc.GroupSize = *r.GroupSize
	}
	if r.ExperienceLevel != nil {
		tc.ExperienceLevel = ExperienceLevel(strings.ToLower(strings.TrimSpace(*r.ExperienceLevel)))
	}
	if r.HasItinerary != nil {
		tc.HasItinerary = *r.HasItinerary
	}
	if r.Age != nil {
		tc.Age = *r.Age
	}
	if r.HealthScore != nil {
		tc.HealthScore = *r.HealthScore
	}
	return tc
}

func (r SafetyScoreRequest) Location() LocationKey {
	return LocationKey{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		State:     strings.TrimSpace(r.State),
		District:  strings.TrimSpace(r.District),
		City:      strings.TrimSpace(r.City),
	}
}

type WeatherFactor string

const (
	FactorTemperature WeatherFactor = "temperature"
	FactorHumidity    WeatherFactor = "humidity"
	FactorWind        WeatherFactor = "wind"
	FactorVisibility  WeatherFactor = "visibility"
	FactorUV          WeatherFactor = "uv"
)

// RiskBreakdown lists the per factor weather sub-scores (1-10, higher is riskier).
type RiskBreakdown struct {
	Temperature       float64       `json:"temperature"`
	TemperatureBand   string        `json:"temperature_band"`
	Humidity          float64       `json:"humidity"`
	Wind              float64       `json:"wind"`
	Visibility        float64       `json:"visibility"`
	Condition         float64       `json:"condition"`
	ConditionCategory string        `json:"condition_category"`
	UV                float64       `json:"uv"`
	WorstFactor       WeatherFactor `json:"worst_factor"`
	WorstScore        float64       `json:"worst_score"`
}

// Score returns the sub-score of a measured factor.
func (b RiskBreakdown) Score(f WeatherFactor) float64 {
	switch f {
	case FactorTemperature:
		return b.Temperature
	case FactorHumidity:
		return b.Humidity
	case FactorWind:
		return b.Wind
	case FactorVisibility:
		return b.Visibility
	case FactorUV:
		return b.UV
	}
	return 0
}

type SourceStatus string

const (
	SourceLive        SourceStatus = "live"
	SourceStale       SourceStatus = "stale"
	SourceSynthesized SourceStatus = "synthesized"
)

type DataSources struct {
	Crime   SourceStatus `json:"crime"`
	Weather SourceStatus `json:"weather"`
}

// SafetyAssessment is the engine's primary output. It is never mutated after construction.
type SafetyAssessment struct {
	SafetyScore          int            `json:"safety_score"`
	NCRBRiskScore        float64        `json:"ncrb_risk_score"`
	WeatherSafetyScore   float64        `json:"weather_safety_score"`
	WeatherRiskScore     float64        `json:"weather_risk_score"`
	EnhancedLocationRisk float64        `json:"enhanced_location_risk"`
	CrimeStatistics      CrimeRecord    `json:"crime_statistics"`
	WeatherConditions    WeatherRecord  `json:"weather_conditions"`
	Alerts               []WeatherAlert `json:"alerts"`
	Recommendations      []string       `json:"recommendations"`
	Confidence           float64        `json:"confidence"`
	RiskBreakdown        RiskBreakdown  `json:"risk_breakdown"`
	DataSources          DataSources    `json:"data_sources"`
}

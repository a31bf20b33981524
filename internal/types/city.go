package types

// Anchor is a named point of interest tourists gather around.
type Anchor struct {
	Name     string   `json:"name" yaml:"name"`
	Position Position `json:"position" yaml:"position"`
}

// ZoneTemplate is a named area of a city. SafetyLevel is used when no location falls in the zone.
type ZoneTemplate struct {
	Name         string      `json:"name" yaml:"name"`
	Position     Position    `json:"position" yaml:"position"`
	RadiusMeters float64     `json:"radius" yaml:"radius"`
	SafetyLevel  SafetyLevel `json:"safety_level" yaml:"safety_level"`
	Description  string      `json:"description" yaml:"description"`
}

// CityProfile is one row of the region table: crime multiplier, climate baseline, anchors and zones.
type CityProfile struct {
	Name            string         `json:"name" yaml:"name"`
	State           string         `json:"state" yaml:"state"`
	Center          Position       `json:"center" yaml:"center"`
	CrimeMultiplier float64        `json:"crime_multiplier" yaml:"crime_multiplier"`
	BaseTemperature float64        `json:"base_temperature" yaml:"base_temperature"`
	Anchors         []Anchor       `json:"anchors" yaml:"anchors"`
	Zones           []ZoneTemplate `json:"zones" yaml:"zones"`
}

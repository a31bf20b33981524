package types

import "time"

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// CrimeRecord is the normalized crime statistics of one location and period.
type CrimeRecord struct {
	State            string         `json:"state"`
	District         string         `json:"district,omitempty"`
	Year             int            `json:"year"`
	TotalCrimes      int            `json:"total_crimes"`
	ViolentCrimes    int            `json:"violent_crimes"`
	PropertyCrimes   int            `json:"property_crimes"`
	CyberCrimes      int            `json:"cyber_crimes"`
	DrugRelated      int            `json:"drug_related"`
	Theft            int            `json:"theft"`
	Assault          int            `json:"assault"`
	Robbery          int            `json:"robbery"`
	Population       int            `json:"population"`
	CrimeRatePer100k float64        `json:"crime_rate_per_100k"`
	TrendDirection   TrendDirection `json:"trend_direction"`
	Period           string         `json:"period"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// CrimeTrendPoint is one month of a crime trend series.
type CrimeTrendPoint struct {
	Month          string `json:"month"`
	TotalCrimes    int    `json:"total_crimes"`
	ViolentCrimes  int    `json:"violent_crimes"`
	PropertyCrimes int    `json:"property_crimes"`
	CyberCrimes    int    `json:"cyber_crimes"`
}

type CrimeTrends struct {
	State          string            `json:"state"`
	District       string            `json:"district,omitempty"`
	Months         int               `json:"trend_period_months"`
	Trends         []CrimeTrendPoint `json:"trends"`
	TrendDirection TrendDirection    `json:"trend_direction"`
	LastUpdated    time.Time         `json:"last_updated"`
}

type SafetyIndicators struct {
	Latitude                     float64   `json:"latitude"`
	Longitude                    float64   `json:"longitude"`
	RadiusKm                     float64   `json:"radius_km"`
	SafetyScore                  float64   `json:"safety_score"`
	CrimeDensity                 string    `json:"crime_density"`
	PoliceStationsNearby         int       `json:"police_stations_nearby"`
	EmergencyResponseTimeMinutes int       `json:"emergency_response_time_minutes"`
	StreetLightingScore          int       `json:"street_lighting_score"`
	CrowdDensityScore            int       `json:"crowd_density_score"`
	TransportSafetyScore         int       `json:"transport_safety_score"`
	LastUpdated                  time.Time `json:"last_updated"`
}

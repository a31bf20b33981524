package types

import (
	"maps"
	"slices"
	"time"
)

type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type SafetyLevel string

const (
	SafetyLevelLow      SafetyLevel = "low"
	SafetyLevelMedium   SafetyLevel = "medium"
	SafetyLevelHigh     SafetyLevel = "high"
	SafetyLevelCritical SafetyLevel = "critical"
)

type TouristLocation struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Position        Position        `json:"position"`
	Count           int             `json:"count"`
	SafetyScore     float64         `json:"safety_score"`
	LastUpdate      time.Time       `json:"last_update"`
	Nationality     string          `json:"nationality"`
	GroupSize       int             `json:"group_size"`
	AgeGroup        string          `json:"age_group"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
}

type SafetyZone struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Position     Position    `json:"position"`
	Radius       float64     `json:"radius"`
	SafetyLevel  SafetyLevel `json:"safety_level"`
	Color        string      `json:"color"`
	Description  string      `json:"description"`
	TouristCount int         `json:"tourist_count"`
	RiskFactors  []string    `json:"risk_factors"`
}

type SafetyScoreDistribution struct {
	Safe     int `json:"safe"`
	Moderate int `json:"moderate"`
	Caution  int `json:"caution"`
	HighRisk int `json:"high_risk"`
}

type HeatmapStatistics struct {
	TotalLocations          int                     `json:"total_locations"`
	TotalZones              int                     `json:"total_zones"`
	NationalityDistribution map[string]int          `json:"nationality_distribution"`
	AgeGroupDistribution    map[string]int          `json:"age_group_distribution"`
	ExperienceDistribution  map[string]int          `json:"experience_distribution"`
	SafetyScoreDistribution SafetyScoreDistribution `json:"safety_score_distribution"`
}

type HeatmapData struct {
	City               string            `json:"city"`
	ResolvedCity       string            `json:"resolved_city"`
	TouristLocations   []TouristLocation `json:"tourist_locations"`
	SafetyZones        []SafetyZone      `json:"safety_zones"`
	TotalTourists      int               `json:"total_tourists"`
	AverageSafetyScore float64           `json:"average_safety_score"`
	LastUpdated        time.Time         `json:"last_updated"`
	Statistics         HeatmapStatistics `json:"statistics"`
}

// HeatmapSummary is the compact statistics view of a city.
type HeatmapSummary struct {
	City               string            `json:"city"`
	ResolvedCity       string            `json:"resolved_city"`
	TotalTourists      int               `json:"total_tourists"`
	TotalLocations     int               `json:"total_locations"`
	TotalZones         int               `json:"total_zones"`
	AverageSafetyScore float64           `json:"average_safety_score"`
	LastUpdated        time.Time         `json:"last_updated"`
	Statistics         HeatmapStatistics `json:"statistics"`
}

// Clone returns a copy that shares no slices or maps with d.
func (d HeatmapData) Clone() HeatmapData {
	out := d
	out.TouristLocations = slices.Clone(d.TouristLocations)
	out.SafetyZones = slices.Clone(d.SafetyZones)
	for i := range out.SafetyZones {
		out.SafetyZones[i].RiskFactors = slices.Clone(out.SafetyZones[i].RiskFactors)
	}
	out.Statistics = d.Statistics.Clone()
	return out
}

// Clone returns a copy whose distribution maps are independent of s.
func (s HeatmapStatistics) Clone() HeatmapStatistics {
	out := s
	out.NationalityDistribution = maps.Clone(s.NationalityDistribution)
	out.AgeGroupDistribution = maps.Clone(s.AgeGroupDistribution)
	out.ExperienceDistribution = maps.Clone(s.ExperienceDistribution)
	return out
}

// Summary condenses the composition into its statistics view.
func (d HeatmapData) Summary() HeatmapSummary {
	return HeatmapSummary{
		City:               d.City,
		ResolvedCity:       d.ResolvedCity,
		TotalTourists:      d.TotalTourists,
		TotalLocations:     len(d.TouristLocations),
		TotalZones:         len(d.SafetyZones),
		AverageSafetyScore: d.AverageSafetyScore,
		LastUpdated:        d.LastUpdated,
		Statistics:         d.Statistics,
	}
}

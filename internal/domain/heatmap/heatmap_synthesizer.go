package heatmap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	// MaxLocations caps the count hint of one synthesis run.
	MaxLocations = 500

	jitterDegrees = 0.005

	// regionBaseRate is the unscaled crime rate per 100k of the crime synthesizer.
	regionBaseRate = 300.0
)

var (
	nationalities    = []string{"Indian", "American", "British", "German", "French", "Japanese", "Australian"}
	experienceLevels = []locitypes.ExperienceLevel{
		locitypes.ExperienceBeginner,
		locitypes.ExperienceIntermediate,
		locitypes.ExperienceExpert,
	}
	popularAnchors = map[string]bool{"taj mahal": true, "red fort": true}
)

var zoneColors = map[locitypes.SafetyLevel]string{
	locitypes.SafetyLevelLow:      "#10b981",
	locitypes.SafetyLevelMedium:   "#fbbf24",
	locitypes.SafetyLevelHigh:     "#f97316",
	locitypes.SafetyLevelCritical: "#ef4444",
}

const unknownZoneColor = "#6b7280"

var zoneRiskFactors = map[locitypes.SafetyLevel][]string{
	locitypes.SafetyLevelLow:      {"Well-patrolled", "Good infrastructure"},
	locitypes.SafetyLevelMedium:   {"Moderate crime", "Some safety concerns"},
	locitypes.SafetyLevelHigh:     {"High crime rate", "Poor lighting", "Limited police presence"},
	locitypes.SafetyLevelCritical: {"High crime rate", "Poor lighting", "Limited police presence", "Frequent incident reports"},
}

type ProfileResolver interface {
	HeatmapProfile(name string) (locitypes.CityProfile, bool)
}

// Synthesizer builds tourist locations, zones and statistics for a city from its anchor table.
type Synthesizer struct {
	profiles ProfileResolver
	seeder   lib.Seeder
	clock    lib.Clock
	window   time.Duration
}

// NewSynthesizer returns a synthesizer whose output is deterministic within each window of
// wall time. A zero window makes it deterministic per city and count.
func NewSynthesizer(profiles ProfileResolver, seeder lib.Seeder, clock lib.Clock, window time.Duration) *Synthesizer {
	return &Synthesizer{
		profiles: profiles,
		seeder:   seeder,
		clock:    clock,
		window:   window,
	}
}

// SafetyLevelFor bands a location safety score: >= 8 low, >= 6 medium, >= 4 high, else critical.
func SafetyLevelFor(score float64) locitypes.SafetyLevel {
	switch {
	case score >= 8:
		return locitypes.SafetyLevelLow
	case score >= 6:
		return locitypes.SafetyLevelMedium
	case score >= 4:
		return locitypes.SafetyLevelHigh
	default:
		return locitypes.SafetyLevelCritical
	}
}

func ageGroup(age int) string {
	switch {
	case age <= 25:
		return "18-25"
	case age <= 35:
		return "26-35"
	case age <= 45:
		return "36-45"
	case age <= 55:
		return "46-55"
	default:
		return "55+"
	}
}

// regionRisk scores the region once: crime from its multiplier, weather from a clear day at
// its baseline temperature.
func regionRisk(p locitypes.CityProfile) (ncrb, weatherRisk float64) {
	mult := p.CrimeMultiplier
	if mult <= 0 {
		mult = 1
	}
	ncrb = risk.CrimeRisk(locitypes.CrimeRecord{CrimeRatePer100k: regionBaseRate * mult})

	temp := p.BaseTemperature
	if temp == 0 {
		temp = 25
	}
	weatherRisk = risk.AssessWeather(locitypes.WeatherRecord{
		Temperature: temp,
		Humidity:    60,
		WindSpeed:   10,
		Visibility:  12,
		Conditions:  "Clear",
		UVIndex:     5,
	}).RiskScore
	return ncrb, weatherRisk
}

// Synthesize composes the heatmap of city. countHint <= 0 means one location per anchor;
// larger hints cycle through the anchors.
func (s *Synthesizer) Synthesize(city string, countHint int) locitypes.HeatmapData {
	profile, _ := s.profiles.HeatmapProfile(city)
	now := s.clock.Now()

	n := len(profile.Anchors)
	if countHint > 0 {
		n = min(countHint, MaxLocations)
	}
	if len(profile.Anchors) == 0 {
		n = 0
	}

	seedParts := []string{"heatmap", strings.ToLower(profile.Name), strconv.Itoa(n)}
	if s.window > 0 {
		seedParts = append(seedParts, strconv.FormatInt(now.Truncate(s.window).Unix(), 10))
	}
	r := s.seeder.For(seedParts...)
	ncrb, weatherRisk := regionRisk(profile)

	locations := make([]locitypes.TouristLocation, 0, n)
	for i := range n {
		anchor := profile.Anchors[i%len(profile.Anchors)]

		count := lib.IntBetween(r, 15, 80)
		if popularAnchors[strings.ToLower(anchor.Name)] {
			count = lib.IntBetween(r, 50, 120)
		}
		tc := locitypes.TouristContext{
			LocationRisk:    lib.IntBetween(r, 3, 8),
			GroupSize:       lib.IntBetween(r, 1, 6),
			ExperienceLevel: lib.Pick(r, experienceLevels),
			HasItinerary:    r.IntN(2) == 1,
			Age:             lib.IntBetween(r, 20, 65),
			HealthScore:     lib.IntBetween(r, 6, 10),
		}
		enhanced := risk.EnhancedLocationRisk(float64(tc.LocationRisk), ncrb, weatherRisk)

		locations = append(locations, locitypes.TouristLocation{
			ID:   fmt.Sprintf("tourist-%s-%d", strings.ToLower(profile.Name), i),
			Name: anchor.Name,
			Position: locitypes.Position{
				Lat: anchor.Position.Lat + lib.Uniform(r, -jitterDegrees, jitterDegrees),
				Lng: anchor.Position.Lng + lib.Uniform(r, -jitterDegrees, jitterDegrees),
			},
			Count:           count,
			SafetyScore:     float64(risk.FinalScore(risk.BaseScore(enhanced), tc)),
			LastUpdate:      now,
			Nationality:     lib.Pick(r, nationalities),
			GroupSize:       tc.GroupSize,
			AgeGroup:        ageGroup(tc.Age),
			ExperienceLevel: tc.ExperienceLevel,
		})
	}

	zones := buildZones(profile, locations)
	total := 0
	for _, l := range locations {
		total += l.Count
	}

	return locitypes.HeatmapData{
		City:               strings.TrimSpace(city),
		ResolvedCity:       profile.Name,
		TouristLocations:   locations,
		SafetyZones:        zones,
		TotalTourists:      total,
		AverageSafetyScore: averageScore(locations),
		LastUpdated:        now,
		Statistics:         Statistics(locations, len(zones)),
	}
}

// buildZones assigns every location to its nearest zone and bands each zone by the average
// score of its members. Zones without members keep the level of their template.
func buildZones(p locitypes.CityProfile, locations []locitypes.TouristLocation) []locitypes.SafetyZone {
	zones := make([]locitypes.SafetyZone, len(p.Zones))
	if len(zones) == 0 {
		return zones
	}

	members := make([][]locitypes.TouristLocation, len(p.Zones))
	for _, l := range locations {
		best, bestDist := 0, math.Inf(1)
		for i, z := range p.Zones {
			if d := lib.HaversineKm(l.Position.Lat, l.Position.Lng, z.Position.Lat, z.Position.Lng); d < bestDist {
				best, bestDist = i, d
			}
		}
		members[best] = append(members[best], l)
	}

	for i, z := range p.Zones {
		level := z.SafetyLevel
		count := 0
		if len(members[i]) > 0 {
			level = SafetyLevelFor(averageScore(members[i]))
			for _, m := range members[i] {
				count += m.Count
			}
		}
		color, ok := zoneColors[level]
		if !ok {
			color = unknownZoneColor
		}
		zones[i] = locitypes.SafetyZone{
			ID:           fmt.Sprintf("zone-%s-%d", strings.ToLower(p.Name), i),
			Name:         z.Name,
			Position:     z.Position,
			Radius:       z.RadiusMeters,
			SafetyLevel:  level,
			Color:        color,
			Description:  z.Description,
			TouristCount: count,
			RiskFactors:  append([]string{}, zoneRiskFactors[level]...),
		}
	}
	return zones
}

func averageScore(locations []locitypes.TouristLocation) float64 {
	if len(locations) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range locations {
		sum += l.SafetyScore
	}
	return risk.Round2(sum / float64(len(locations)))
}

// Statistics tallies the locations. The three distributions are weighted by tourist count
// and each sums to the total tourist count; the score histogram counts locations.
func Statistics(locations []locitypes.TouristLocation, zoneCount int) locitypes.HeatmapStatistics {
	st := locitypes.HeatmapStatistics{
		TotalLocations:          len(locations),
		TotalZones:              zoneCount,
		NationalityDistribution: make(map[string]int),
		AgeGroupDistribution:    make(map[string]int),
		ExperienceDistribution:  make(map[string]int),
	}
	for _, l := range locations {
		st.NationalityDistribution[l.Nationality] += l.Count
		st.AgeGroupDistribution[l.AgeGroup] += l.Count
		st.ExperienceDistribution[string(l.ExperienceLevel)] += l.Count

		switch {
		case l.SafetyScore >= 8:
			st.SafetyScoreDistribution.Safe++
		case l.SafetyScore >= 6:
			st.SafetyScoreDistribution.Moderate++
		case l.SafetyScore >= 4:
			st.SafetyScoreDistribution.Caution++
		default:
			st.SafetyScoreDistribution.HighRisk++
		}
	}
	return st
}

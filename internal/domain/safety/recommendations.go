package safety

import (
	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	highRiskBand     = 3
	moderateRiskBand = 6

	violentShareThreshold  = 0.30
	propertyShareThreshold = 0.50
)

var (
	highRiskAdvice = []string{
		"High risk area detected. Avoid traveling alone.",
		"Stay in well-lit, populated areas.",
		"Keep emergency contacts readily available.",
		"Consider postponing non-essential travel.",
	}
	moderateRiskAdvice = []string{
		"Moderate risk area. Travel with companions when possible.",
		"Stay alert and aware of your surroundings.",
		"Keep valuables secure and out of sight.",
		"Share your itinerary with trusted contacts.",
	}
)

const (
	adviceCrimeIncreasing = "Crime rates are increasing in this area. Exercise extra caution."
	adviceCrimeDecreasing = "Crime rates are decreasing in this area. Good safety trend."
	adviceViolentCrime    = "High violent crime rate. Avoid isolated areas, especially at night."
	advicePropertyCrime   = "High property crime rate. Keep valuables secure and avoid displaying expensive items."
	adviceBeginner        = "As a beginner traveler, consider hiring a local guide for safer exploration."
	adviceSolo            = "Solo travel detected. Consider joining group tours or connecting with other travelers."
)

// RecommendationInput carries everything the generator reads.
type RecommendationInput struct {
	Score     int
	Crime     locitypes.CrimeRecord
	Alerts    []locitypes.WeatherAlert
	Breakdown locitypes.RiskBreakdown
	Weather   locitypes.WeatherRecord
	Context   locitypes.TouristContext
}

// Recommendations builds the advice list in a fixed order: score band, crime, alerts (most
// severe first), worst weather factor, traveller. Duplicates keep their first position.
func Recommendations(in RecommendationInput) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(items ...string) {
		for _, s := range items {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}

	switch {
	case in.Score <= highRiskBand:
		add(highRiskAdvice...)
	case in.Score <= moderateRiskBand:
		add(moderateRiskAdvice...)
	}

	add(crimeAdvice(in.Crime)...)

	for _, a := range risk.MergeAlerts(in.Alerts, nil) {
		add(risk.Advisory(a))
	}

	add(risk.FactorAdvice(in.Breakdown, in.Weather))

	if in.Context.ExperienceLevel == locitypes.ExperienceBeginner {
		add(adviceBeginner)
	}
	if in.Context.GroupSize == 1 {
		add(adviceSolo)
	}

	if out == nil {
		return []string{}
	}
	return out
}

func crimeAdvice(rec locitypes.CrimeRecord) []string {
	var out []string
	switch rec.TrendDirection {
	case locitypes.TrendIncreasing:
		out = append(out, adviceCrimeIncreasing)
	case locitypes.TrendDecreasing:
		out = append(out, adviceCrimeDecreasing)
	}
	if rec.TotalCrimes > 0 {
		total := float64(rec.TotalCrimes)
		if float64(rec.ViolentCrimes)/total > violentShareThreshold {
			out = append(out, adviceViolentCrime)
		}
		if float64(rec.PropertyCrimes)/total > propertyShareThreshold {
			out = append(out, advicePropertyCrime)
		}
	}
	return out
}

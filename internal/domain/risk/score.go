package risk

import (
	"math"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	PriorWeight   = 0.6
	NCRBWeight    = 0.4
	WeatherWeight = 0.15
)

// EnhancedLocationRisk blends the caller's prior with the crime risk, then folds in the
// weather risk.
func EnhancedLocationRisk(prior, ncrb, weatherRisk float64) float64 {
	blend := PriorWeight*prior + NCRBWeight*ncrb
	return Round2((1-WeatherWeight)*blend + WeatherWeight*weatherRisk)
}

// BaseScore inverts a risk on the 1-10 scale into a safety score.
func BaseScore(enhanced float64) float64 {
	return 11 - enhanced
}

// ContextAdjustment sums the traveller adjustments. Every term is monotonic in its input.
func ContextAdjustment(tc locitypes.TouristContext) float64 {
	adj := 0.25 * float64(min(max(tc.GroupSize-1, 0), 3))

	switch tc.ExperienceLevel {
	case locitypes.ExperienceBeginner:
		adj -= 0.5
	case locitypes.ExperienceExpert:
		adj += 0.5
	}

	if tc.HasItinerary {
		adj += 0.5
	}

	switch {
	case tc.Age < 18 || tc.Age > 65:
		adj -= 1.0
	case tc.Age <= 25 || tc.Age >= 56:
		adj -= 0.25
	}

	adj += float64(tc.HealthScore-5) * 0.2
	return adj
}

// FinalScore applies the context adjustments to base, rounds half away from zero and clamps.
func FinalScore(base float64, tc locitypes.TouristContext) int {
	return int(Clamp(math.Round(base + ContextAdjustment(tc))))
}

// Confidence drops 0.15 per synthesized source and 0.05 per stale one, never below 0.3.
func Confidence(synthesized, stale int) float64 {
	c := 1 - 0.15*float64(synthesized) - 0.05*float64(stale)
	return Round2(math.Max(0.3, c))
}

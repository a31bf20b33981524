package risk

import (
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// RatePerRiskPoint calibrates the crime scale: 200 crimes per 100k population is risk 5.
const RatePerRiskPoint = 40.0

// TrendPenalty is added for an increasing trend and subtracted for a decreasing one.
const TrendPenalty = 1.0

// CrimeRate returns the rate per 100k, deriving it from totals when the record lacks it.
func CrimeRate(rec locitypes.CrimeRecord) float64 {
	if rec.CrimeRatePer100k > 0 {
		return rec.CrimeRatePer100k
	}
	if rec.Population > 0 {
		return float64(rec.TotalCrimes) / float64(rec.Population) * 100000
	}
	return 0
}

// CrimeRisk maps the crime rate and trend onto [1, 10]. Monotonic in the rate.
func CrimeRisk(rec locitypes.CrimeRecord) float64 {
	r := CrimeRate(rec) / RatePerRiskPoint
	switch rec.TrendDirection {
	case locitypes.TrendIncreasing:
		r += TrendPenalty
	case locitypes.TrendDecreasing:
		r -= TrendPenalty
	}
	return Round2(Clamp(r))
}

// ClassifyTrend compares the mean of the last third of a series with the first third.
// A change beyond +-10% is a trend; anything else is stable.
func ClassifyTrend(points []locitypes.CrimeTrendPoint) locitypes.TrendDirection {
	n := len(points)
	if n < 2 {
		return locitypes.TrendStable
	}
	third := max(1, n/3)
	first := meanTotal(points[:third])
	last := meanTotal(points[n-third:])
	if first == 0 {
		if last > 0 {
			return locitypes.TrendIncreasing
		}
		return locitypes.TrendStable
	}
	change := (last - first) / first
	switch {
	case change > 0.10:
		return locitypes.TrendIncreasing
	case change < -0.10:
		return locitypes.TrendDecreasing
	default:
		return locitypes.TrendStable
	}
}

func meanTotal(points []locitypes.CrimeTrendPoint) float64 {
	sum := 0
	for _, p := range points {
		sum += p.TotalCrimes
	}
	return float64(sum) / float64(len(points))
}

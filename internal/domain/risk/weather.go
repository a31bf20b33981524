package risk

import (
	"math"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// Weights of the weather sub-scores. They sum to 1.
const (
	WeightTemperature = 0.25
	WeightCondition   = 0.25
	WeightHumidity    = 0.15
	WeightWind        = 0.15
	WeightVisibility  = 0.12
	WeightUV          = 0.08
)

const (
	BandExtremeCold = "Extreme Cold"
	BandCold        = "Cold"
	BandMild        = "Mild"
	BandHot         = "Hot"
	BandExtremeHeat = "Extreme Heat"
)

// TemperatureBand names the band of t in degrees Celsius. Bands include their lower bound;
// 35 is still Hot.
func TemperatureBand(t float64) string {
	switch {
	case t < 0:
		return BandExtremeCold
	case t < 10:
		return BandCold
	case t < 30:
		return BandMild
	case t <= 35:
		return BandHot
	default:
		return BandExtremeHeat
	}
}

// TemperatureRisk: Extreme Cold/Heat 8-10, Cold/Hot 5-7, Mild 1-4.
func TemperatureRisk(t float64) float64 {
	var r float64
	switch TemperatureBand(t) {
	case BandExtremeCold:
		r = 8 + math.Min(2, -t/10)
	case BandCold:
		r = 5 + (10-t)/10*2
	case BandMild:
		r = 1 + math.Abs(t-20)/10*3
	case BandHot:
		r = 5 + (t-30)/5*2
	default:
		r = 8 + math.Min(2, (t-35)/5*2)
	}
	return Clamp(r)
}

// HumidityRisk: >90% 7, >80% 5, 60-80% neutral, <60% minor dryness risk.
func HumidityRisk(h float64) float64 {
	switch {
	case h > 90:
		return 7
	case h > 80:
		return 5
	case h >= 60:
		return 1
	default:
		return 2
	}
}

// WindRisk takes km/h: <20 safe, 20-30 moderate, 30-50 high, >50 extreme.
func WindRisk(w float64) float64 {
	switch {
	case w < 20:
		return 1
	case w < 30:
		return 4 + (w-20)/10
	case w <= 50:
		return 6 + (w-30)/20*2
	default:
		return 10
	}
}

// VisibilityRisk takes km: >15 safe, 10-15 good, 5-10 reduced, 1-5 poor, <1 extreme.
func VisibilityRisk(v float64) float64 {
	switch {
	case v > 15:
		return 1
	case v >= 10:
		return 2
	case v >= 5:
		return 3 + (10-v)/5*2
	case v >= 1:
		return 6 + (5-v)/4*2
	default:
		return 10
	}
}

// UVRisk: 0-2 minimal, 3-5 moderate, 6-7 high, 8-10 very high, 11+ extreme.
func UVRisk(u float64) float64 {
	switch {
	case u < 3:
		return 1
	case u < 6:
		return 3
	case u < 8:
		return 6 + (u-6)/2
	case u < 11:
		return 8 + (u-8)/3
	default:
		return 10
	}
}

// WeatherAssessment is the normalized view of one weather record.
type WeatherAssessment struct {
	Breakdown   locitypes.RiskBreakdown
	Category    ConditionCategory
	RiskScore   float64
	SafetyScore float64
}

// AssessWeather scores every dimension, combines them into the weighted weather risk and
// picks the worst measured factor. Conditions are not a candidate for the worst factor;
// they surface through DerivedAlerts instead.
func AssessWeather(rec locitypes.WeatherRecord) WeatherAssessment {
	cat := Categorize(rec.Conditions)
	b := locitypes.RiskBreakdown{
		Temperature:       Round2(TemperatureRisk(rec.Temperature)),
		TemperatureBand:   TemperatureBand(rec.Temperature),
		Humidity:          Round2(HumidityRisk(rec.Humidity)),
		Wind:              Round2(WindRisk(rec.WindSpeed)),
		Visibility:        Round2(VisibilityRisk(rec.Visibility)),
		Condition:         ConditionRisk(cat),
		ConditionCategory: string(cat),
		UV:                Round2(UVRisk(rec.UVIndex)),
	}

	weighted := WeightTemperature*b.Temperature +
		WeightCondition*b.Condition +
		WeightHumidity*b.Humidity +
		WeightWind*b.Wind +
		WeightVisibility*b.Visibility +
		WeightUV*b.UV
	riskScore := Round2(Clamp(weighted))

	b.WorstFactor = locitypes.FactorTemperature
	b.WorstScore = b.Temperature
	for _, f := range []locitypes.WeatherFactor{
		locitypes.FactorHumidity,
		locitypes.FactorWind,
		locitypes.FactorVisibility,
		locitypes.FactorUV,
	} {
		if s := b.Score(f); s > b.WorstScore {
			b.WorstFactor = f
			b.WorstScore = s
		}
	}

	return WeatherAssessment{
		Breakdown:   b,
		Category:    cat,
		RiskScore:   riskScore,
		SafetyScore: Round2(Clamp(10 - riskScore)),
	}
}

// Clamp bounds a sub-score to [1, 10].
func Clamp(v float64) float64 {
	return math.Max(1, math.Min(10, v))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

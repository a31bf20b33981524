package risk

import locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"

// FactorAdviceThreshold is the lowest worst-factor sub-score that produces advice.
const FactorAdviceThreshold = 4.0

// FactorAdvice returns the advice for the worst measured weather factor, or "" when that
// factor is below FactorAdviceThreshold.
func FactorAdvice(b locitypes.RiskBreakdown, rec locitypes.WeatherRecord) string {
	if b.WorstScore < FactorAdviceThreshold {
		return ""
	}
	switch b.WorstFactor {
	case locitypes.FactorTemperature:
		switch t := rec.Temperature; {
		case t < 0:
			return "Extreme cold weather. Dress warmly and limit outdoor exposure."
		case t < 20:
			return "Cold weather. Wear warm clothing and layers."
		case t > 35:
			return "Hot weather. Stay hydrated and avoid peak sun hours."
		default:
			return "Warm weather. Drink plenty of water and wear sunscreen."
		}
	case locitypes.FactorHumidity:
		return "High humidity. Stay hydrated and take breaks in air-conditioned areas."
	case locitypes.FactorWind:
		if rec.WindSpeed > 30 {
			return "Strong winds. Be cautious of falling objects and unstable surfaces."
		}
		return "Moderate winds. Secure loose items and be aware of wind conditions."
	case locitypes.FactorVisibility:
		return "Poor visibility. Use extra caution when traveling and avoid unnecessary trips."
	case locitypes.FactorUV:
		if rec.UVIndex >= 8 {
			return "High UV index. Use sunscreen, wear a hat, and seek shade."
		}
		return "Moderate UV index. Apply sunscreen and wear protective clothing."
	}
	return ""
}

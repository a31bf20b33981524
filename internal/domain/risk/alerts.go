package risk

import (
	"fmt"
	"sort"
	"strings"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// SignificantAlertLevel is the lowest safety level an upstream alert needs to be kept.
const SignificantAlertLevel = 6

// HighPriorityAlertLevel marks alerts counted as high priority.
const HighPriorityAlertLevel = 8

// AlertSafetyLevel maps an upstream severity onto 1-10.
func AlertSafetyLevel(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "extreme", "severe":
		return 9
	case "moderate", "major":
		return 7
	case "minor":
		return 5
	default:
		return 3
	}
}

type alertGuide struct {
	keywords []string
	summary  string
	advice   []string
}

// Ordered: the first guide whose keyword occurs in the event wins.
var alertGuides = []alertGuide{
	{
		keywords: []string{"thunderstorm", "storm", "lightning"},
		summary:  "Thunderstorm alert: seek shelter in a sturdy building and avoid open areas and tall objects.",
		advice: []string{
			"Avoid outdoor activities during thunderstorms",
			"Seek shelter in a sturdy building",
			"Avoid open areas and tall objects",
		},
	},
	{
		keywords: []string{"flood", "heavy rain"},
		summary:  "Flood alert: avoid flooded areas and roads and move to higher ground if necessary.",
		advice: []string{
			"Avoid flooded areas and roads",
			"Do not attempt to cross flooded streets",
			"Move to higher ground if necessary",
		},
	},
	{
		keywords: []string{"heat"},
		summary:  "Heat alert: stay hydrated and avoid outdoor activities during peak heat.",
		advice: []string{
			"Stay hydrated and drink plenty of water",
			"Avoid outdoor activities during peak heat",
			"Wear light-colored, loose-fitting clothing",
		},
	},
	{
		keywords: []string{"cold", "freeze", "snow", "blizzard"},
		summary:  "Cold weather alert: dress in layers and limit time outdoors.",
		advice: []string{
			"Dress in layers to stay warm",
			"Limit time outdoors",
			"Be aware of frostbite and hypothermia risks",
		},
	},
	{
		keywords: []string{"fog"},
		summary:  "Fog alert: reduce speed, use fog lights and avoid unnecessary trips.",
		advice: []string{
			"Reduce speed and use fog lights",
			"Avoid unnecessary trips until visibility improves",
		},
	},
	{
		keywords: []string{"hail"},
		summary:  "Hail alert: stay indoors and keep away from windows until the storm passes.",
		advice: []string{
			"Stay indoors until the hail passes",
			"Keep away from windows and skylights",
		},
	},
}

func guideFor(event string) (alertGuide, bool) {
	e := strings.ToLower(event)
	for _, g := range alertGuides {
		for _, k := range g.keywords {
			if strings.Contains(e, k) {
				return g, true
			}
		}
	}
	return alertGuide{}, false
}

// AlertAdvice lists the safety advice for an alert event.
func AlertAdvice(event string) []string {
	if g, ok := guideFor(event); ok {
		return append([]string(nil), g.advice...)
	}
	return []string{}
}

// Advisory condenses an alert into one recommendation line.
func Advisory(a locitypes.WeatherAlert) string {
	if g, ok := guideFor(a.Event); ok {
		return g.summary
	}
	return fmt.Sprintf("%s alert in effect: monitor local advisories and follow official instructions.", a.Event)
}

// NewUpstreamAlert builds an alert descriptor from an upstream event and severity.
func NewUpstreamAlert(event, headline, description, severity string) locitypes.WeatherAlert {
	return locitypes.WeatherAlert{
		Event:           event,
		Headline:        headline,
		Description:     description,
		Severity:        severity,
		SafetyLevel:     AlertSafetyLevel(severity),
		Recommendations: AlertAdvice(event),
	}
}

// DerivedAlerts turns hazardous current conditions into alerts even when the upstream issued none.
func DerivedAlerts(cat ConditionCategory) []locitypes.WeatherAlert {
	var event, severity string
	switch cat {
	case ConditionThunderstorm:
		event, severity = "Thunderstorm", "severe"
	case ConditionHeavyRain:
		event, severity = "Heavy Rain", "moderate"
	case ConditionSnow:
		event, severity = "Snow", "moderate"
	case ConditionFog:
		event, severity = "Fog", "moderate"
	case ConditionHail:
		event, severity = "Hail", "moderate"
	default:
		return nil
	}
	a := NewUpstreamAlert(event, event+" conditions reported", "", severity)
	a.Derived = true
	return []locitypes.WeatherAlert{a}
}

// MergeAlerts combines upstream and derived alerts, dropping a derived alert when an
// upstream alert already covers the same hazard, and orders by safety level descending.
func MergeAlerts(upstream, derived []locitypes.WeatherAlert) []locitypes.WeatherAlert {
	out := make([]locitypes.WeatherAlert, 0, len(upstream)+len(derived))
	covered := make(map[string]bool)
	for _, a := range upstream {
		out = append(out, a)
		covered[Advisory(a)] = true
	}
	for _, a := range derived {
		if covered[Advisory(a)] {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SafetyLevel > out[j].SafetyLevel })
	return out
}

// CountHighPriority counts alerts at or above HighPriorityAlertLevel.
func CountHighPriority(alerts []locitypes.WeatherAlert) int {
	n := 0
	for _, a := range alerts {
		if a.SafetyLevel >= HighPriorityAlertLevel {
			n++
		}
	}
	return n
}

package risk

import (
	"strings"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// ConditionCategory is the normalized class of a free-text weather description.
type ConditionCategory string

const (
	ConditionClear        ConditionCategory = "clear"
	ConditionCloudy       ConditionCategory = "cloudy"
	ConditionLightRain    ConditionCategory = "light rain"
	ConditionHeavyRain    ConditionCategory = "heavy rain"
	ConditionSnow         ConditionCategory = "snow"
	ConditionFog          ConditionCategory = "fog"
	ConditionHail         ConditionCategory = "hail"
	ConditionThunderstorm ConditionCategory = "thunderstorm"
)

var conditionRisk = map[ConditionCategory]float64{
	ConditionClear:        1,
	ConditionCloudy:       1,
	ConditionLightRain:    5,
	ConditionHeavyRain:    8,
	ConditionSnow:         8,
	ConditionFog:          8,
	ConditionHail:         8,
	ConditionThunderstorm: 10,
}

// Upstream descriptions are comma separated phrases such as "Rain, Partially cloudy".
var conditionPhrases = []struct {
	phrase   string
	category ConditionCategory
}{
	{"thunderstorm", ConditionThunderstorm},
	{"thunderstorms", ConditionThunderstorm},
	{"thunder", ConditionThunderstorm},
	{"lightning", ConditionThunderstorm},
	{"storm", ConditionThunderstorm},
	{"heavy rain", ConditionHeavyRain},
	{"torrential rain", ConditionHeavyRain},
	{"heavy showers", ConditionHeavyRain},
	{"downpour", ConditionHeavyRain},
	{"snow", ConditionSnow},
	{"blizzard", ConditionSnow},
	{"sleet", ConditionSnow},
	{"freezing rain", ConditionSnow},
	{"ice", ConditionSnow},
	{"fog", ConditionFog},
	{"mist", ConditionFog},
	{"hail", ConditionHail},
	{"rain", ConditionLightRain},
	{"light rain", ConditionLightRain},
	{"drizzle", ConditionLightRain},
	{"showers", ConditionLightRain},
	{"cloudy", ConditionCloudy},
	{"partly cloudy", ConditionCloudy},
	{"partially cloudy", ConditionCloudy},
	{"overcast", ConditionCloudy},
	{"clear", ConditionClear},
	{"sunny", ConditionClear},
}

var (
	conditionBuilder = ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ac.LeftMostLongestMatch,
		DFA:                  true,
	})
	conditionMatcher  = conditionBuilder.Build(conditionPatterns())
	conditionByPhrase = conditionIndex()
)

func conditionPatterns() []string {
	patterns := make([]string, len(conditionPhrases))
	for i, p := range conditionPhrases {
		patterns[i] = p.phrase
	}
	return patterns
}

func conditionIndex() map[string]ConditionCategory {
	idx := make(map[string]ConditionCategory, len(conditionPhrases))
	for _, p := range conditionPhrases {
		idx[p.phrase] = p.category
	}
	return idx
}

// Categorize maps a description to the riskiest category it mentions. Among equally risky
// categories the first mentioned wins. Text that matches nothing is treated as clear.
func Categorize(conditions string) ConditionCategory {
	text := strings.ToLower(conditions)
	best, matched := ConditionClear, false
	for _, m := range conditionMatcher.FindAll(text) {
		cat, ok := conditionByPhrase[text[m.Start():m.End()]]
		if !ok {
			continue
		}
		if !matched || conditionRisk[cat] > conditionRisk[best] {
			best, matched = cat, true
		}
	}
	return best
}

// ConditionRisk scores a category: clear/cloudy 1, light rain 5, heavy rain/snow/fog/hail 8, thunderstorm 10.
func ConditionRisk(c ConditionCategory) float64 {
	if v, ok := conditionRisk[c]; ok {
		return v
	}
	return 1
}

package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// DefaultBaseTemperature is the synthesized climate baseline of unknown regions.
const DefaultBaseTemperature = 25.0

// DefaultCountry is appended to name-only locations sent upstream.
const DefaultCountry = "India"

var synthesizedConditions = []string{"Clear", "Partly Cloudy", "Cloudy", "Light Rain"}

type RegionResolver interface {
	Resolve(loc locitypes.LocationKey) (locitypes.CityProfile, bool)
}

// Adapter fetches weather upstream and synthesizes plausible conditions when it cannot.
// A nil client makes every Fetch fail with FailureUnavailable.
type Adapter struct {
	client  *Client
	regions RegionResolver
	seeder  lib.Seeder
	clock   lib.Clock
	logger  *slog.Logger
}

func NewAdapter(client *Client, regions RegionResolver, seeder lib.Seeder, clock lib.Clock, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:  client,
		regions: regions,
		seeder:  seeder,
		clock:   clock,
		logger:  logger,
	}
}

// LocationString renders loc the way the timeline API expects: "lat,lng" when coordinates
// are present, otherwise the distinct names followed by the country.
func LocationString(loc locitypes.LocationKey) string {
	if loc.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *loc.Latitude, *loc.Longitude)
	}
	var parts []string
	seen := make(map[string]bool)
	for _, v := range []string{loc.City, loc.District, loc.State} {
		s := strings.TrimSpace(v)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		parts = append(parts, s)
	}
	return strings.Join(append(parts, DefaultCountry), ",")
}

// ParseLocation is the inverse of LocationString for path parameters such as
// "28.6139,77.2090" or "Delhi,India".
func ParseLocation(s string) locitypes.LocationKey {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 2 {
		lat, errLat := strconv.ParseFloat(parts[0], 64)
		lng, errLng := strconv.ParseFloat(parts[1], 64)
		if errLat == nil && errLng == nil {
			return locitypes.LocationKey{Latitude: &lat, Longitude: &lng}
		}
	}
	if n := len(parts); n > 1 && strings.EqualFold(parts[n-1], DefaultCountry) {
		parts = parts[:n-1]
	}
	var loc locitypes.LocationKey
	switch len(parts) {
	case 0:
	case 1:
		loc.City = parts[0]
	case 2:
		loc.City, loc.State = parts[0], parts[1]
	default:
		loc.City, loc.District, loc.State = parts[0], parts[1], parts[2]
	}
	return loc
}

func (a *Adapter) unavailable() error {
	return locitypes.NewFailure(SourceName, locitypes.FailureUnavailable, "no weather client configured", nil)
}

// SignificantAlerts keeps upstream alerts at or above risk.SignificantAlertLevel and merges
// in the alerts derived from the current conditions.
func SignificantAlerts(upstream []locitypes.WeatherAlert, conditions string) []locitypes.WeatherAlert {
	kept := make([]locitypes.WeatherAlert, 0, len(upstream))
	for _, al := range upstream {
		if al.SafetyLevel >= risk.SignificantAlertLevel {
			kept = append(kept, al)
		}
	}
	return risk.MergeAlerts(kept, risk.DerivedAlerts(risk.Categorize(conditions)))
}

// Fetch returns the current conditions of loc.
func (a *Adapter) Fetch(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, error) {
	if a.client == nil {
		return locitypes.WeatherRecord{}, a.unavailable()
	}
	location := LocationString(loc)
	t, err := a.client.Timeline(ctx, location, 1)
	if err != nil {
		return locitypes.WeatherRecord{}, err
	}
	if t.Current == nil {
		return locitypes.WeatherRecord{}, locitypes.NewFailure(SourceName, locitypes.FailureMalformed, "response has no current conditions", nil)
	}
	rec := *t.Current
	rec.Alerts = SignificantAlerts(t.Alerts, rec.Conditions)
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = a.clock.Now()
	}
	return rec, nil
}

func (a *Adapter) baseTemperature(loc locitypes.LocationKey) float64 {
	if p, ok := a.regions.Resolve(loc); ok && p.BaseTemperature != 0 {
		return p.BaseTemperature
	}
	return DefaultBaseTemperature
}

// Synthesize draws current conditions around the region's base temperature. Synthesized
// records never carry alerts.
func (a *Adapter) Synthesize(loc locitypes.LocationKey) locitypes.WeatherRecord {
	base := a.baseTemperature(loc)
	r := a.seeder.For("weather", loc.String())
	return locitypes.WeatherRecord{
		Location:    LocationString(loc),
		Temperature: risk.Round2(base + lib.Uniform(r, -5, 5)),
		Humidity:    risk.Round2(lib.Uniform(r, 40, 80)),
		WindSpeed:   risk.Round2(lib.Uniform(r, 5, 25)),
		Visibility:  risk.Round2(lib.Uniform(r, 8, 15)),
		Conditions:  lib.Pick(r, synthesizedConditions),
		UVIndex:     risk.Round2(lib.Uniform(r, 3, 8)),
		FeelsLike:   risk.Round2(base + lib.Uniform(r, -3, 3)),
		Pressure:    risk.Round2(lib.Uniform(r, 1000, 1020)),
		CloudCover:  risk.Round2(lib.Uniform(r, 0, 50)),
		Alerts:      []locitypes.WeatherAlert{},
		ObservedAt:  a.clock.Now(),
	}
}

// FetchForecast returns up to MaxForecastDays of forecast with the significant alerts.
func (a *Adapter) FetchForecast(ctx context.Context, loc locitypes.LocationKey, days int) (locitypes.WeatherForecast, error) {
	if a.client == nil {
		return locitypes.WeatherForecast{}, a.unavailable()
	}
	t, err := a.client.Timeline(ctx, LocationString(loc), days)
	if err != nil {
		return locitypes.WeatherForecast{}, err
	}
	conditions := ""
	if t.Current != nil {
		conditions = t.Current.Conditions
	}
	return locitypes.WeatherForecast{
		Location: t.Address,
		Days:     t.Days,
		Alerts:   SignificantAlerts(t.Alerts, conditions),
	}, nil
}

func (a *Adapter) SynthesizeForecast(loc locitypes.LocationKey, days int) locitypes.WeatherForecast {
	days = min(max(days, 1), MaxForecastDays)
	base := a.baseTemperature(loc)
	r := a.seeder.For("weather-forecast", loc.String(), strconv.Itoa(days))
	now := a.clock.Now()

	out := make([]locitypes.ForecastDay, days)
	for i := range out {
		out[i] = locitypes.ForecastDay{
			Date:       now.AddDate(0, 0, i).Format("2006-01-02"),
			TempMax:    risk.Round2(base + lib.Uniform(r, -3, 8)),
			TempMin:    risk.Round2(base + lib.Uniform(r, -8, 3)),
			Conditions: lib.Pick(r, synthesizedConditions),
			PrecipProb: risk.Round2(lib.Uniform(r, 0, 30)),
			WindSpeed:  risk.Round2(lib.Uniform(r, 5, 20)),
			Humidity:   risk.Round2(lib.Uniform(r, 40, 80)),
		}
	}
	return locitypes.WeatherForecast{
		Location: LocationString(loc),
		Days:     out,
		Alerts:   []locitypes.WeatherAlert{},
	}
}

package crime

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// DefaultTrendMonths is the length of the series Fetch classifies the trend from.
const DefaultTrendMonths = 12

// Base counts of the synthesized record before the region multiplier.
const (
	baseTotal      = 1500
	baseViolent    = 300
	baseProperty   = 800
	baseCyber      = 200
	baseDrug       = 100
	baseTheft      = 600
	baseAssault    = 250
	baseRobbery    = 150
	basePopulation = 500000

	baseMonthlyCrimes = 100
)

// RegionResolver maps a location onto the region table.
type RegionResolver interface {
	Resolve(loc locitypes.LocationKey) (locitypes.CityProfile, bool)
}

// Adapter fetches crime data upstream and synthesizes a plausible record when it cannot.
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

func (a *Adapter) unavailable() error {
	return locitypes.NewFailure(SourceName, locitypes.FailureUnavailable, "no crime data client configured", nil)
}

// region resolves the state and multiplier for loc. Unresolved names keep the caller's state.
func (a *Adapter) region(loc locitypes.LocationKey) (state string, multiplier float64) {
	state, multiplier = loc.State, 1.0
	if p, ok := a.regions.Resolve(loc); ok {
		if state == "" {
			state = p.State
		}
		multiplier = p.CrimeMultiplier
	}
	if state == "" {
		state = loc.Name()
	}
	return state, multiplier
}

// Fetch returns the live record for the current year, with the trend classified from the
// monthly series when the provider does not state one.
func (a *Adapter) Fetch(ctx context.Context, loc locitypes.LocationKey) (locitypes.CrimeRecord, error) {
	return a.FetchYear(ctx, loc, a.clock.Now().Year())
}

func (a *Adapter) FetchYear(ctx context.Context, loc locitypes.LocationKey, year int) (locitypes.CrimeRecord, error) {
	if a.client == nil {
		return locitypes.CrimeRecord{}, a.unavailable()
	}
	l := a.logger.With(slog.String("method", "Fetch"))
	state, _ := a.region(loc)

	var rec locitypes.CrimeRecord
	var trends locitypes.CrimeTrends
	var trendsErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = a.client.Statistics(gctx, StatisticsQuery{
			State:     state,
			District:  loc.District,
			Year:      year,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		})
		return err
	})
	g.Go(func() error {
		if state == "" {
			return nil
		}
		trends, trendsErr = a.client.Trends(gctx, TrendsQuery{State: state, District: loc.District, Months: DefaultTrendMonths})
		return nil
	})
	if err := g.Wait(); err != nil {
		return locitypes.CrimeRecord{}, err
	}

	if rec.TrendDirection == "" {
		switch {
		case trendsErr != nil:
			l.WarnContext(ctx, "Crime trends unavailable, assuming stable", slog.Any("error", trendsErr))
			rec.TrendDirection = locitypes.TrendStable
		case trends.TrendDirection != "" && len(trends.Trends) == 0:
			rec.TrendDirection = trends.TrendDirection
		default:
			rec.TrendDirection = risk.ClassifyTrend(trends.Trends)
		}
	}
	if rec.CrimeRatePer100k == 0 {
		rec.CrimeRatePer100k = risk.Round2(risk.CrimeRate(rec))
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = a.clock.Now()
	}
	return rec, nil
}

// Synthesize produces the record for the current year.
func (a *Adapter) Synthesize(loc locitypes.LocationKey) locitypes.CrimeRecord {
	return a.SynthesizeYear(loc, a.clock.Now().Year())
}

// SynthesizeYear scales the base counts by the region multiplier and one seeded jitter in
// [0.9, 1.1). The rate is taken against the unscaled base population.
func (a *Adapter) SynthesizeYear(loc locitypes.LocationKey, year int) locitypes.CrimeRecord {
	state, m := a.region(loc)
	r := a.seeder.For("crime", loc.String(), strconv.Itoa(year))
	f := m * lib.Uniform(r, 0.9, 1.1)
	scale := func(n int) int { return int(float64(n) * f) }

	rec := locitypes.CrimeRecord{
		State:          state,
		District:       loc.District,
		Year:           year,
		TotalCrimes:    scale(baseTotal),
		ViolentCrimes:  scale(baseViolent),
		PropertyCrimes: scale(baseProperty),
		CyberCrimes:    scale(baseCyber),
		DrugRelated:    scale(baseDrug),
		Theft:          scale(baseTheft),
		Assault:        scale(baseAssault),
		Robbery:        scale(baseRobbery),
		Population:     basePopulation,
		Period:         strconv.Itoa(year),
		LastUpdated:    a.clock.Now(),
	}
	rec.CrimeRatePer100k = risk.Round2(float64(rec.TotalCrimes) / basePopulation * 100000)
	rec.TrendDirection = risk.ClassifyTrend(a.SynthesizeTrends(loc, DefaultTrendMonths).Trends)
	return rec
}

func (a *Adapter) FetchTrends(ctx context.Context, loc locitypes.LocationKey, months int) (locitypes.CrimeTrends, error) {
	if a.client == nil {
		return locitypes.CrimeTrends{}, a.unavailable()
	}
	state, _ := a.region(loc)
	t, err := a.client.Trends(ctx, TrendsQuery{State: state, District: loc.District, Months: months})
	if err != nil {
		return locitypes.CrimeTrends{}, err
	}
	if t.TrendDirection == "" {
		t.TrendDirection = risk.ClassifyTrend(t.Trends)
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = a.clock.Now()
	}
	return t, nil
}

// SynthesizeTrends builds a monthly series, oldest first, with a seasonal swing peaking
// away from June and +-10% seeded noise.
func (a *Adapter) SynthesizeTrends(loc locitypes.LocationKey, months int) locitypes.CrimeTrends {
	state, m := a.region(loc)
	r := a.seeder.For("crime-trends", loc.String(), strconv.Itoa(months))
	now := a.clock.Now()

	points := make([]locitypes.CrimeTrendPoint, months)
	for i := range months {
		date := now.AddDate(0, 0, -30*i)
		seasonal := 1 + 0.2*math.Abs(float64(date.Month())-6)/6
		total := int(baseMonthlyCrimes * m * seasonal * lib.Uniform(r, 0.9, 1.1))
		points[months-1-i] = locitypes.CrimeTrendPoint{
			Month:          date.Format("2006-01"),
			TotalCrimes:    total,
			ViolentCrimes:  int(float64(total) * 0.2),
			PropertyCrimes: int(float64(total) * 0.6),
			CyberCrimes:    int(float64(total) * 0.1),
		}
	}
	return locitypes.CrimeTrends{
		State:          state,
		District:       loc.District,
		Months:         months,
		Trends:         points,
		TrendDirection: risk.ClassifyTrend(points),
		LastUpdated:    now,
	}
}

func (a *Adapter) FetchIndicators(ctx context.Context, lat, lng, radiusKm float64) (locitypes.SafetyIndicators, error) {
	if a.client == nil {
		return locitypes.SafetyIndicators{}, a.unavailable()
	}
	ind, err := a.client.SafetyIndicators(ctx, lat, lng, radiusKm)
	if err != nil {
		return locitypes.SafetyIndicators{}, err
	}
	if ind.LastUpdated.IsZero() {
		ind.LastUpdated = a.clock.Now()
	}
	return ind, nil
}

// SynthesizeIndicators scores 7.0 by default, 6.0 inside the Delhi box and 6.5 inside the
// Mumbai box.
func (a *Adapter) SynthesizeIndicators(lat, lng, radiusKm float64) locitypes.SafetyIndicators {
	score := 7.0
	switch {
	case lat >= 28 && lat <= 29 && lng >= 77 && lng <= 78:
		score = 6.0
	case lat >= 19 && lat <= 20 && lng >= 72 && lng <= 73:
		score = 6.5
	}
	return locitypes.SafetyIndicators{
		Latitude:                     lat,
		Longitude:                    lng,
		RadiusKm:                     radiusKm,
		SafetyScore:                  score,
		CrimeDensity:                 "medium",
		PoliceStationsNearby:         3,
		EmergencyResponseTimeMinutes: 8,
		StreetLightingScore:          7,
		CrowdDensityScore:            6,
		TransportSafetyScore:         7,
		LastUpdated:                  a.clock.Now(),
	}
}

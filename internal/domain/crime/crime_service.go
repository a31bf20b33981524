package crime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// Cache sources.
const (
	CacheSourceRecord     = "crime"
	CacheSourceTrends     = "crime-trends"
	CacheSourceIndicators = "safety-indicators"
)

var _ Service = (*ServiceImpl)(nil)

// Service serves crime data through the shared cache. Upstream failures degrade to
// synthesized data and are reported through the returned SourceStatus, never as errors.
type Service interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.CrimeRecord, locitypes.SourceStatus, error)
	CrimeData(ctx context.Context, loc locitypes.LocationKey, year int) (locitypes.CrimeRecord, locitypes.SourceStatus, error)
	Trends(ctx context.Context, loc locitypes.LocationKey, months int) (locitypes.CrimeTrends, locitypes.SourceStatus, error)
	Indicators(ctx context.Context, lat, lng, radiusKm float64) (locitypes.SafetyIndicators, locitypes.SourceStatus, error)
}

type Options struct {
	TTL time.Duration
	// MockMode skips the upstream and always synthesizes.
	MockMode bool
}

type ServiceImpl struct {
	logger  *slog.Logger
	adapter *Adapter
	store   *cache.Store
	clock   lib.Clock
	ttl     time.Duration
	mock    bool
}

func NewCrimeService(adapter *Adapter, store *cache.Store, clock lib.Clock, opts Options, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		adapter: adapter,
		store:   store,
		clock:   clock,
		ttl:     opts.TTL,
		mock:    opts.MockMode,
	}
}

// Record returns the crime record of loc for the current year.
func (s *ServiceImpl) Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.CrimeRecord, locitypes.SourceStatus, error) {
	return s.CrimeData(ctx, loc, 0)
}

// CrimeData returns the crime record of loc for year, or the current year when year is 0.
func (s *ServiceImpl) CrimeData(ctx context.Context, loc locitypes.LocationKey, year int) (locitypes.CrimeRecord, locitypes.SourceStatus, error) {
	if year == 0 {
		year = s.clock.Now().Year()
	}
	ctx, span := otel.Tracer("CrimeService").Start(ctx, "CrimeData", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.Int("year", year),
	))
	defer span.End()

	key := cache.Key{Source: CacheSourceRecord, Location: loc.String(), Params: "year=" + strconv.Itoa(year)}
	rec, status, err := readThrough(ctx, s, span, key,
		func(c context.Context) (locitypes.CrimeRecord, error) { return s.adapter.FetchYear(c, loc, year) },
		func() locitypes.CrimeRecord { return s.adapter.SynthesizeYear(loc, year) },
	)
	if err != nil {
		return locitypes.CrimeRecord{}, "", fmt.Errorf("failed to get crime data: %w", err)
	}
	span.SetAttributes(attribute.Float64("crime.rate_per_100k", rec.CrimeRatePer100k))
	return rec, status, nil
}

// Trends returns the monthly crime series of loc, oldest month first.
func (s *ServiceImpl) Trends(ctx context.Context, loc locitypes.LocationKey, months int) (locitypes.CrimeTrends, locitypes.SourceStatus, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	ctx, span := otel.Tracer("CrimeService").Start(ctx, "Trends", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.Int("months", months),
	))
	defer span.End()

	key := cache.Key{Source: CacheSourceTrends, Location: loc.String(), Params: "months=" + strconv.Itoa(months)}
	t, status, err := readThrough(ctx, s, span, key,
		func(c context.Context) (locitypes.CrimeTrends, error) { return s.adapter.FetchTrends(c, loc, months) },
		func() locitypes.CrimeTrends { return s.adapter.SynthesizeTrends(loc, months) },
	)
	if err != nil {
		return locitypes.CrimeTrends{}, "", fmt.Errorf("failed to get crime trends: %w", err)
	}
	return t, status, nil
}

func (s *ServiceImpl) Indicators(ctx context.Context, lat, lng, radiusKm float64) (locitypes.SafetyIndicators, locitypes.SourceStatus, error) {
	ctx, span := otel.Tracer("CrimeService").Start(ctx, "Indicators", trace.WithAttributes(
		attribute.Float64("latitude", lat),
		attribute.Float64("longitude", lng),
		attribute.Float64("radius_km", radiusKm),
	))
	defer span.End()

	key := cache.Key{
		Source:   CacheSourceIndicators,
		Location: fmt.Sprintf("%.4f,%.4f", lat, lng),
		Params:   "radius=" + strconv.FormatFloat(radiusKm, 'f', -1, 64),
	}
	ind, status, err := readThrough(ctx, s, span, key,
		func(c context.Context) (locitypes.SafetyIndicators, error) { return s.adapter.FetchIndicators(c, lat, lng, radiusKm) },
		func() locitypes.SafetyIndicators { return s.adapter.SynthesizeIndicators(lat, lng, radiusKm) },
	)
	if err != nil {
		return locitypes.SafetyIndicators{}, "", fmt.Errorf("failed to get safety indicators: %w", err)
	}
	return ind, status, nil
}

// readThrough serves key from the cache, fetching upstream on a miss and synthesizing when
// the fetch fails. The only errors left are a cancelled caller.
func readThrough[T any](
	ctx context.Context,
	s *ServiceImpl,
	span trace.Span,
	key cache.Key,
	fetch func(context.Context) (T, error),
	synthesize func() T,
) (T, locitypes.SourceStatus, error) {
	l := s.logger.With(slog.String("method", key.Source), slog.String("location", key.Location))

	if s.mock {
		fetch = nil
	}
	res, err := cache.GetOrCompute(ctx, s.store, key, s.ttl, fetch, func() (T, error) {
		return synthesize(), nil
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to read crime data", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to read crime data")
		var zero T
		return zero, "", err
	}

	status := res.Status()
	if res.Err != nil && !s.mock {
		l.WarnContext(ctx, "Crime upstream failed, serving degraded data",
			slog.String("status", string(status)),
			slog.Any("error", res.Err))
	}
	span.SetAttributes(
		attribute.String("data.source", string(status)),
		attribute.Bool("cache.hit", res.Hit),
	)
	span.SetStatus(codes.Ok, "Crime data served")
	return res.Value, status, nil
}

package weather

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
	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	CacheSourceCurrent  = "weather"
	CacheSourceForecast = "weather-forecast"
)

var _ Service = (*ServiceImpl)(nil)

// Service serves weather data through the shared cache. Upstream failures degrade to
// synthesized data and are reported through the returned SourceStatus.
type Service interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error)
	Forecast(ctx context.Context, loc locitypes.LocationKey, days int) (locitypes.WeatherForecast, locitypes.SourceStatus, error)
	Alerts(ctx context.Context, loc locitypes.LocationKey) ([]locitypes.WeatherAlert, locitypes.SourceStatus, error)
	SafetyAnalysis(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherSafetyAnalysis, error)
}

type Options struct {
	TTL      time.Duration
	MockMode bool
}

type ServiceImpl struct {
	logger  *slog.Logger
	adapter *Adapter
	store   *cache.Store
	ttl     time.Duration
	mock    bool
}

func NewWeatherService(adapter *Adapter, store *cache.Store, opts Options, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		adapter: adapter,
		store:   store,
		ttl:     opts.TTL,
		mock:    opts.MockMode,
	}
}

// Record returns the current conditions of loc.
func (s *ServiceImpl) Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error) {
	ctx, span := otel.Tracer("WeatherService").Start(ctx, "Record", trace.WithAttributes(
		attribute.String("location", loc.String()),
	))
	defer span.End()

	key := cache.Key{Source: CacheSourceCurrent, Location: loc.String()}
	rec, status, err := readThrough(ctx, s, span, key,
		func(c context.Context) (locitypes.WeatherRecord, error) { return s.adapter.Fetch(c, loc) },
		func() locitypes.WeatherRecord { return s.adapter.Synthesize(loc) },
	)
	if err != nil {
		return locitypes.WeatherRecord{}, "", fmt.Errorf("failed to get weather: %w", err)
	}
	return rec, status, nil
}

// Forecast returns up to MaxForecastDays days of forecast for loc.
func (s *ServiceImpl) Forecast(ctx context.Context, loc locitypes.LocationKey, days int) (locitypes.WeatherForecast, locitypes.SourceStatus, error) {
	days = min(max(days, 1), MaxForecastDays)
	ctx, span := otel.Tracer("WeatherService").Start(ctx, "Forecast", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.Int("days", days),
	))
	defer span.End()

	key := cache.Key{Source: CacheSourceForecast, Location: loc.String(), Params: "days=" + strconv.Itoa(days)}
	f, status, err := readThrough(ctx, s, span, key,
		func(c context.Context) (locitypes.WeatherForecast, error) { return s.adapter.FetchForecast(c, loc, days) },
		func() locitypes.WeatherForecast { return s.adapter.SynthesizeForecast(loc, days) },
	)
	if err != nil {
		return locitypes.WeatherForecast{}, "", fmt.Errorf("failed to get weather forecast: %w", err)
	}
	return f, status, nil
}

// Alerts returns the significant alerts active at loc, most severe first.
func (s *ServiceImpl) Alerts(ctx context.Context, loc locitypes.LocationKey) ([]locitypes.WeatherAlert, locitypes.SourceStatus, error) {
	rec, status, err := s.Record(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return rec.Alerts, status, nil
}

// SafetyAnalysis scores the current conditions of loc on their own.
func (s *ServiceImpl) SafetyAnalysis(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherSafetyAnalysis, error) {
	ctx, span := otel.Tracer("WeatherService").Start(ctx, "SafetyAnalysis")
	defer span.End()

	rec, status, err := s.Record(ctx, loc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get weather")
		return locitypes.WeatherSafetyAnalysis{}, err
	}

	wa := risk.AssessWeather(rec)
	alerts := risk.MergeAlerts(rec.Alerts, risk.DerivedAlerts(wa.Category))
	var recs []string
	for _, a := range alerts {
		recs = append(recs, risk.Advisory(a))
	}
	if advice := risk.FactorAdvice(wa.Breakdown, rec); advice != "" {
		recs = append(recs, advice)
	}
	if recs == nil {
		recs = []string{}
	}

	span.SetAttributes(
		attribute.Float64("weather.risk_score", wa.RiskScore),
		attribute.String("weather.worst_factor", string(wa.Breakdown.WorstFactor)),
	)
	span.SetStatus(codes.Ok, "Weather analysed")
	return locitypes.WeatherSafetyAnalysis{
		Location:           rec.Location,
		WeatherSafetyScore: wa.SafetyScore,
		WeatherRiskScore:   wa.RiskScore,
		Conditions:         rec,
		Breakdown:          wa.Breakdown,
		Alerts:             alerts,
		Recommendations:    recs,
		Source:             status,
	}, nil
}

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
		l.ErrorContext(ctx, "Failed to read weather data", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to read weather data")
		var zero T
		return zero, "", err
	}

	status := res.Status()
	if res.Err != nil && !s.mock {
		l.WarnContext(ctx, "Weather upstream failed, serving degraded data",
			slog.String("status", string(status)),
			slog.Any("error", res.Err))
	}
	span.SetAttributes(
		attribute.String("data.source", string(status)),
		attribute.Bool("cache.hit", res.Hit),
	)
	span.SetStatus(codes.Ok, "Weather data served")
	return res.Value, status, nil
}

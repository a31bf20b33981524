// Package warmup refreshes the crime and weather cache entries of every known city on a
// cron schedule.
package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
)

type CityLister interface {
	Cities() []locitypes.CityProfile
}

type CrimeSource interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.CrimeRecord, locitypes.SourceStatus, error)
}

type WeatherSource interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error)
}

// Scheduler runs Warm on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	cities  CityLister
	crime   CrimeSource
	weather WeatherSource
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewScheduler(cities CityLister, crime CrimeSource, weather WeatherSource, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cities:  cities,
		crime:   crime,
		weather: weather,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("WarmupScheduler"),
	}
}

// Schedule registers the warm-up job. spec accepts standard five field expressions and
// descriptors such as "@every 20m".
func (s *Scheduler) Schedule(spec string) error {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Warm(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add warm-up schedule %q: %w", spec, err)
	}
	s.logger.Info("cache warm-up scheduled", slog.String("schedule", spec), slog.Int("entry_id", int(id)))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("warm-up scheduler started")
}

// Stop waits for a running warm-up to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("warm-up scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("warm-up scheduler stop timeout")
		return ctx.Err()
	}
}

// Warm reads every city through the cache once. It returns the number of cities whose
// sources were both served live.
func (s *Scheduler) Warm(ctx context.Context) int {
	ctx, span := s.tracer.Start(ctx, "Warm")
	defer span.End()

	cities := s.cities.Cities()
	live, failed := 0, 0
	for _, p := range cities {
		if ctx.Err() != nil {
			break
		}
		loc := locitypes.LocationKey{State: p.State, City: p.Name}
		_, cs, cerr := s.crime.Record(ctx, loc)
		_, ws, werr := s.weather.Record(ctx, loc)
		switch {
		case cerr != nil || werr != nil:
			failed++
			s.logger.WarnContext(ctx, "warm-up failed for city",
				slog.String("city", p.Name),
				slog.Any("crime_error", cerr),
				slog.Any("weather_error", werr))
		case cs == locitypes.SourceLive && ws == locitypes.SourceLive:
			live++
		}
	}

	result := "ok"
	if failed > 0 || ctx.Err() != nil {
		result = "error"
		span.SetStatus(codes.Error, "warm-up incomplete")
	} else {
		span.SetStatus(codes.Ok, "warm-up complete")
	}
	observability.RecordWarmup(result)
	span.SetAttributes(
		attribute.Int("cities", len(cities)),
		attribute.Int("cities.live", live),
		attribute.Int("cities.failed", failed),
	)
	s.logger.InfoContext(ctx, "cache warm-up finished",
		slog.Int("cities", len(cities)),
		slog.Int("live", live),
		slog.Int("failed", failed))
	return live
}

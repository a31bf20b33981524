package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
)

// CrimeSource yields the crime record of a location, degrading rather than failing.
type CrimeSource interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.CrimeRecord, locitypes.SourceStatus, error)
}

// WeatherSource yields the current conditions of a location, degrading rather than failing.
type WeatherSource interface {
	Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Assess(ctx context.Context, tc locitypes.TouristContext, loc locitypes.LocationKey) (*locitypes.SafetyAssessment, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	crime     CrimeSource
	weather   WeatherSource
	predictor Predictor
}

// NewSafetyService wires the engine. A nil predictor means the heuristic base score.
func NewSafetyService(crime CrimeSource, weather WeatherSource, predictor Predictor, logger *slog.Logger) *ServiceImpl {
	if predictor == nil {
		predictor = HeuristicPredictor{}
	}
	return &ServiceImpl{
		logger:    logger,
		crime:     crime,
		weather:   weather,
		predictor: predictor,
	}
}

// Validate reports every invalid field of the context and the location at once.
func Validate(tc locitypes.TouristContext, loc locitypes.LocationKey) error {
	var out locitypes.ValidationErrors
	collect := func(err error) {
		if err == nil {
			return
		}
		var verrs locitypes.ValidationErrors
		var verr *locitypes.ValidationError
		switch {
		case errors.As(err, &verrs):
			out = append(out, verrs...)
		case errors.As(err, &verr):
			out = append(out, verr)
		default:
			out = append(out, &locitypes.ValidationError{Field: "request", Message: err.Error()})
		}
	}
	collect(lib.ValidateStruct(tc))
	collect(loc.Validate())
	collect(lib.ValidateStruct(loc))
	if len(out) == 0 {
		return nil
	}
	return out
}

// Assess computes the safety assessment of loc for the traveller described by tc. Upstream
// trouble lowers the confidence instead of failing the call; only invalid input is an error
// the caller can act on.
func (s *ServiceImpl) Assess(ctx context.Context, tc locitypes.TouristContext, loc locitypes.LocationKey) (*locitypes.SafetyAssessment, error) {
	l := s.logger.With(slog.String("method", "Assess"))
	ctx, span := otel.Tracer("SafetyService").Start(ctx, "Assess", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.Int("location_risk", tc.LocationRisk),
		attribute.String("experience_level", string(tc.ExperienceLevel)),
	))
	defer span.End()

	if err := Validate(tc, loc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid input")
		return nil, err
	}

	var (
		crimeRec      locitypes.CrimeRecord
		weatherRec    locitypes.WeatherRecord
		crimeStatus   locitypes.SourceStatus
		weatherStatus locitypes.SourceStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		crimeRec, crimeStatus, err = s.crime.Record(gctx, loc)
		return err
	})
	g.Go(func() error {
		var err error
		weatherRec, weatherStatus, err = s.weather.Record(gctx, loc)
		return err
	})
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Failed to gather location data", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to gather location data")
		return nil, fmt.Errorf("failed to gather location data: %w", err)
	}

	ncrb := risk.CrimeRisk(crimeRec)
	wa := risk.AssessWeather(weatherRec)
	enhanced := risk.EnhancedLocationRisk(float64(tc.LocationRisk), ncrb, wa.RiskScore)

	base, err := s.predictor.BaseScore(ctx, newFeatures(tc, ncrb, wa.RiskScore, enhanced))
	if err != nil {
		l.WarnContext(ctx, "Predictor failed, using heuristic base score", slog.Any("error", err))
		base = risk.BaseScore(enhanced)
	}
	score := risk.FinalScore(base, tc)

	synthesized, stale := 0, 0
	for _, st := range []locitypes.SourceStatus{crimeStatus, weatherStatus} {
		switch st {
		case locitypes.SourceSynthesized:
			synthesized++
		case locitypes.SourceStale:
			stale++
		}
	}

	alerts := risk.MergeAlerts(weatherRec.Alerts, risk.DerivedAlerts(wa.Category))
	recs := Recommendations(RecommendationInput{
		Score:     score,
		Crime:     crimeRec,
		Alerts:    alerts,
		Breakdown: wa.Breakdown,
		Weather:   weatherRec,
		Context:   tc,
	})

	out := &locitypes.SafetyAssessment{
		SafetyScore:          score,
		NCRBRiskScore:        ncrb,
		WeatherSafetyScore:   wa.SafetyScore,
		WeatherRiskScore:     wa.RiskScore,
		EnhancedLocationRisk: enhanced,
		CrimeStatistics:      crimeRec,
		WeatherConditions:    weatherRec,
		Alerts:               alerts,
		Recommendations:      recs,
		Confidence:           risk.Confidence(synthesized, stale),
		RiskBreakdown:        wa.Breakdown,
		DataSources: locitypes.DataSources{
			Crime:   crimeStatus,
			Weather: weatherStatus,
		},
	}

	observability.ObserveSafetyScore(score)
	l.InfoContext(ctx, "Safety score computed",
		slog.String("location", loc.String()),
		slog.Int("safety_score", score),
		slog.Float64("confidence", out.Confidence),
		slog.String("crime_source", string(crimeStatus)),
		slog.String("weather_source", string(weatherStatus)))
	span.SetAttributes(
		attribute.Int("safety.score", score),
		attribute.Float64("safety.confidence", out.Confidence),
		attribute.Float64("safety.enhanced_location_risk", enhanced),
	)
	span.SetStatus(codes.Ok, "Safety score computed")
	return out, nil
}

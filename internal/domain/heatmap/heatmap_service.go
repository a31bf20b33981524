package heatmap

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const CacheSource = "heatmap"

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	SynthesizeCity(ctx context.Context, city string, countHint int) (*locitypes.HeatmapData, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	synthesizer *Synthesizer
	store       *cache.Store
	ttl         time.Duration
}

func NewHeatmapService(synthesizer *Synthesizer, store *cache.Store, ttl time.Duration, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		synthesizer: synthesizer,
		store:       store,
		ttl:         ttl,
	}
}

// SynthesizeCity returns the composed heatmap of city, cached per city and count hint.
// Unknown cities resolve to the default city. The result is a private copy of the cached entry.
func (s *ServiceImpl) SynthesizeCity(ctx context.Context, city string, countHint int) (*locitypes.HeatmapData, error) {
	l := s.logger.With(slog.String("method", "SynthesizeCity"), slog.String("city", city))
	ctx, span := otel.Tracer("HeatmapService").Start(ctx, "SynthesizeCity", trace.WithAttributes(
		attribute.String("city", city),
		attribute.Int("count_hint", countHint),
	))
	defer span.End()

	countHint = min(max(countHint, 0), MaxLocations)
	key := cache.Key{
		Source:   CacheSource,
		Location: strings.ToLower(strings.TrimSpace(city)),
		Params:   "count=" + strconv.Itoa(countHint),
	}
	res, err := cache.GetOrCompute(ctx, s.store, key, s.ttl,
		func(context.Context) (locitypes.HeatmapData, error) {
			return s.synthesizer.Synthesize(city, countHint), nil
		}, nil)
	if err != nil {
		l.ErrorContext(ctx, "Failed to synthesize heatmap", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to synthesize heatmap")
		return nil, fmt.Errorf("failed to synthesize heatmap: %w", err)
	}

	data := res.Value.Clone()
	if !res.Hit && !strings.EqualFold(data.ResolvedCity, strings.TrimSpace(city)) {
		l.InfoContext(ctx, "Unknown heatmap city, using default", slog.String("resolved_city", data.ResolvedCity))
	}
	span.SetAttributes(
		attribute.String("resolved_city", data.ResolvedCity),
		attribute.Int("total_tourists", data.TotalTourists),
		attribute.Bool("cache.hit", res.Hit),
	)
	span.SetStatus(codes.Ok, "Heatmap synthesized")
	return &data, nil
}

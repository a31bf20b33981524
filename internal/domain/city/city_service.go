package city

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ListCities(ctx context.Context) []locitypes.CityProfile
	GetCity(ctx context.Context, name string) (locitypes.CityProfile, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	registry *Registry
}

func NewCityService(registry *Registry, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		registry: registry,
	}
}

// ListCities returns every region the engine knows about.
func (s *ServiceImpl) ListCities(ctx context.Context) []locitypes.CityProfile {
	_, span := otel.Tracer("CityService").Start(ctx, "ListCities")
	defer span.End()

	cities := s.registry.Cities()
	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	span.SetStatus(codes.Ok, "Cities listed")
	return cities
}

func (s *ServiceImpl) GetCity(ctx context.Context, name string) (locitypes.CityProfile, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "GetCity")
	defer span.End()

	l := s.logger.With(slog.String("method", "GetCity"))

	p, err := s.registry.Find(name)
	if err != nil {
		l.InfoContext(ctx, "City not found", slog.String("city", name))
		span.SetStatus(codes.Error, "City not found")
		return locitypes.CityProfile{}, err
	}
	span.SetAttributes(attribute.String("city.name", p.Name))
	span.SetStatus(codes.Ok, "City found")
	return p, nil
}

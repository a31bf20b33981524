package city

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads region table overrides from Postgres.
type Repository interface {
	ListProfiles(ctx context.Context) ([]locitypes.CityProfile, error)
}

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     Querier
}

func NewCityRepository(db Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		db:     db,
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ListProfiles loads every region with its anchors and zones, in table order.
func (r *RepositoryImpl) ListProfiles(ctx context.Context) ([]locitypes.CityProfile, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "ListProfiles")
	defer span.End()

	l := r.logger.With(slog.String("method", "ListProfiles"))

	profiles, err := r.listRegions(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list city regions", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, err
	}
	idx := make(map[string]int, len(profiles))
	for i, p := range profiles {
		idx[p.Name] = i
	}

	if err := r.attachAnchors(ctx, profiles, idx); err != nil {
		l.ErrorContext(ctx, "Failed to list city anchors", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, err
	}
	if err := r.attachZones(ctx, profiles, idx); err != nil {
		l.ErrorContext(ctx, "Failed to list city zones", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, err
	}

	l.DebugContext(ctx, "City profiles loaded", slog.Int("count", len(profiles)))
	span.SetAttributes(attribute.Int("results.count", len(profiles)))
	span.SetStatus(codes.Ok, "City profiles loaded")
	return profiles, nil
}

func (r *RepositoryImpl) listRegions(ctx context.Context) ([]locitypes.CityProfile, error) {
	query, args, err := psql.
		Select("name", "state", "center_lat", "center_lng", "crime_multiplier", "base_temperature").
		From("city_regions").
		OrderBy("sort_order", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build regions query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query city regions: %w", err)
	}
	defer rows.Close()

	var profiles []locitypes.CityProfile
	for rows.Next() {
		var p locitypes.CityProfile
		if err := rows.Scan(&p.Name, &p.State, &p.Center.Lat, &p.Center.Lng, &p.CrimeMultiplier, &p.BaseTemperature); err != nil {
			return nil, fmt.Errorf("failed to scan city region row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city region rows: %w", err)
	}
	return profiles, nil
}

func (r *RepositoryImpl) attachAnchors(ctx context.Context, profiles []locitypes.CityProfile, idx map[string]int) error {
	query, args, err := psql.
		Select("city_name", "name", "lat", "lng").
		From("city_anchors").
		OrderBy("city_name", "sort_order").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build anchors query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query city anchors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cityName string
		var a locitypes.Anchor
		if err := rows.Scan(&cityName, &a.Name, &a.Position.Lat, &a.Position.Lng); err != nil {
			return fmt.Errorf("failed to scan city anchor row: %w", err)
		}
		if i, ok := idx[cityName]; ok {
			profiles[i].Anchors = append(profiles[i].Anchors, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating city anchor rows: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) attachZones(ctx context.Context, profiles []locitypes.CityProfile, idx map[string]int) error {
	query, args, err := psql.
		Select("city_name", "name", "lat", "lng", "radius_m", "safety_level", "description").
		From("city_zones").
		OrderBy("city_name", "sort_order").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build zones query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query city zones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cityName, level string
		var z locitypes.ZoneTemplate
		if err := rows.Scan(&cityName, &z.Name, &z.Position.Lat, &z.Position.Lng, &z.RadiusMeters, &level, &z.Description); err != nil {
			return fmt.Errorf("failed to scan city zone row: %w", err)
		}
		z.SafetyLevel = locitypes.SafetyLevel(level)
		if i, ok := idx[cityName]; ok {
			profiles[i].Zones = append(profiles[i].Zones, z)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating city zone rows: %w", err)
	}
	return nil
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/city"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/crime"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/heatmap"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/safety"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/weather"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	"github.com/FACorreiaa/loci-safety-api/internal/warmup"
	"github.com/FACorreiaa/loci-safety-api/pkg/config"
	"github.com/FACorreiaa/loci-safety-api/pkg/db"
	"github.com/FACorreiaa/loci-safety-api/pkg/resilience"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger
	Clock  lib.Clock

	Store    *cache.Store
	Registry *city.Registry

	// Upstream clients, nil in mock mode
	CrimeUpstream   *upstream.Client
	WeatherUpstream *upstream.Client

	// Services
	CityService    city.Service
	CrimeService   crime.Service
	WeatherService weather.Service
	SafetyService  safety.Service
	HeatmapService heatmap.Service

	// Handlers
	CityHandler    *city.Handler
	CrimeHandler   *crime.Handler
	WeatherHandler *weather.Handler
	SafetyHandler  *safety.Handler
	HeatmapHandler *heatmap.Handler

	Warmup *warmup.Scheduler

	crimeSvc   *crime.ServiceImpl
	weatherSvc *weather.ServiceImpl
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Clock:  lib.SystemClock{},
	}

	// Initialize database
	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize city registry
	if err := deps.initRegistry(ctx); err != nil {
		return nil, fmt.Errorf("failed to init city registry: %w", err)
	}

	// Initialize service
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handler
	deps.initHandlers()

	// Initialize warm-up scheduler
	if err := deps.initWarmup(); err != nil {
		return nil, fmt.Errorf("failed to init warm-up: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		slog.Bool("mock_mode", cfg.Engine.MockMode),
		slog.Bool("database", deps.DB != nil))

	return deps, nil
}

// initDatabase connects to Postgres and runs migrations when a database is configured
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if !d.Config.Database.Enabled() {
		d.Logger.Info("no database configured, using the embedded city table")
		return nil
	}

	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRegistry(ctx context.Context) error {
	var repo city.Repository
	if d.DB != nil {
		repo = city.NewCityRepository(d.DB.Pool, d.Logger)
	}
	reg, err := city.LoadRegistry(ctx, repo, d.Logger)
	if err != nil {
		return err
	}
	d.Registry = reg
	return nil
}

func (d *Dependencies) upstreamClient(source string, ratePerSecond float64) *upstream.Client {
	u := d.Config.Upstream
	return upstream.New(upstream.Config{
		Source:        source,
		Timeout:       u.Timeout,
		Retries:       u.Retries,
		RatePerSecond: ratePerSecond,
		Breaker: resilience.BreakerConfig{
			MinSamples:    u.BreakerMinSamples,
			HalfOpenAfter: u.BreakerCoolDown,
		},
	}, &http.Client{}, d.Logger)
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	cfg := d.Config
	seeder := lib.NewSeeder(cfg.Engine.RandomSeed)

	d.Store = cache.New(cache.Config{
		StaleRetention:  cfg.Cache.StaleRetention,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, d.Clock, d.Logger)

	var (
		crimeClient   *crime.Client
		weatherClient *weather.Client
	)
	if !cfg.Engine.MockMode {
		d.CrimeUpstream = d.upstreamClient(crime.SourceName, cfg.Upstream.NCRBRatePerSecond)
		crimeClient = crime.NewClient(cfg.Upstream.NCRBBaseURL, cfg.Upstream.NCRBAPIKey, d.CrimeUpstream)

		d.WeatherUpstream = d.upstreamClient(weather.SourceName, 0)
		weatherClient = weather.NewClient(cfg.Upstream.WeatherBaseURL, cfg.Upstream.WeatherAPIKey, d.WeatherUpstream)
	}

	d.crimeSvc = crime.NewCrimeService(
		crime.NewAdapter(crimeClient, d.Registry, seeder, d.Clock, d.Logger),
		d.Store,
		d.Clock,
		crime.Options{TTL: cfg.Cache.CrimeTTL, MockMode: cfg.Engine.MockMode},
		d.Logger,
	)
	d.weatherSvc = weather.NewWeatherService(
		weather.NewAdapter(weatherClient, d.Registry, seeder, d.Clock, d.Logger),
		d.Store,
		weather.Options{TTL: cfg.Cache.WeatherTTL, MockMode: cfg.Engine.MockMode},
		d.Logger,
	)
	d.CrimeService = d.crimeSvc
	d.WeatherService = d.weatherSvc

	var predictor safety.Predictor = safety.HeuristicPredictor{}
	if cfg.Engine.PredictorURL != "" && !cfg.Engine.MockMode {
		predictor = safety.NewHTTPPredictor(
			cfg.Engine.PredictorURL,
			d.upstreamClient(safety.PredictorSource, 0),
			safety.HeuristicPredictor{},
			d.Logger,
		)
		d.Logger.Info("using remote predictor", slog.String("url", cfg.Engine.PredictorURL))
	}
	d.SafetyService = safety.NewSafetyService(d.crimeSvc, d.weatherSvc, predictor, d.Logger)

	d.HeatmapService = heatmap.NewHeatmapService(
		heatmap.NewSynthesizer(d.Registry, seeder, d.Clock, cfg.Cache.HeatmapTTL),
		d.Store,
		cfg.Cache.HeatmapTTL,
		d.Logger,
	)
	d.CityService = city.NewCityService(d.Registry, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.CityHandler = city.NewHandler(d.CityService, d.Logger)
	d.CrimeHandler = crime.NewHandler(d.CrimeService, d.Logger)
	d.WeatherHandler = weather.NewHandler(d.WeatherService, d.Logger)
	d.SafetyHandler = safety.NewHandler(d.SafetyService, d.Logger)
	d.HeatmapHandler = heatmap.NewHandler(d.HeatmapService, d.Logger)
	d.Logger.Info("handlers initialized")
}

func (d *Dependencies) initWarmup() error {
	schedule := d.Config.Warmup.Schedule
	if schedule == "" {
		return nil
	}
	s := warmup.NewScheduler(d.Registry, d.crimeSvc, d.weatherSvc, 2*time.Minute, d.Logger)
	if err := s.Schedule(schedule); err != nil {
		return err
	}
	d.Warmup = s
	return nil
}

// UpstreamStates reports the circuit state of every configured upstream.
func (d *Dependencies) UpstreamStates() map[string]string {
	out := make(map[string]string)
	for _, c := range []*upstream.Client{d.CrimeUpstream, d.WeatherUpstream} {
		if c != nil {
			out[c.Source()] = c.BreakerState()
		}
	}
	return out
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}

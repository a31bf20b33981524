package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	"github.com/FACorreiaa/loci-safety-api/pkg/interceptors"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	tracer := otel.GetTracerProvider().Tracer("loci/safety-api")

	var rateLimiter interceptors.Middleware
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		rateLimiter = interceptors.NewRateLimitMiddleware(limiter)
	}

	var metrics interceptors.Middleware
	if deps.Config.Observability.MetricsEnabled {
		metrics = interceptors.NewMetricsMiddleware()
	}

	// Register API routes
	registerAPIRoutes(mux, deps)

	// Register health and metrics routes
	registerUtilityRoutes(mux, deps)

	// Setup middleware chain, metrics innermost so the matched pattern is visible
	handler := interceptors.Chain(mux,
		interceptors.NewRequestIDMiddleware("X-Request-ID"),
		interceptors.NewTracingMiddleware(tracer),
		interceptors.NewRecoveryMiddleware(deps.Logger),
		interceptors.NewLoggingMiddleware(deps.Logger),
		rateLimiter,
		metrics,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
	})

	return corsHandler.Handler(handler)
}

// registerAPIRoutes registers the safety, heatmap, crime, weather and city endpoints
func registerAPIRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("POST /safety-score", deps.SafetyHandler.SafetyScore)

	mux.HandleFunc("GET /heatmap/{city}", deps.HeatmapHandler.Heatmap)
	mux.HandleFunc("GET /heatmap/{city}/locations", deps.HeatmapHandler.Locations)
	mux.HandleFunc("GET /heatmap/{city}/zones", deps.HeatmapHandler.Zones)
	mux.HandleFunc("GET /heatmap/{city}/statistics", deps.HeatmapHandler.Statistics)

	mux.HandleFunc("GET /crime-data/{state}", deps.CrimeHandler.CrimeData)
	mux.HandleFunc("GET /crime-trends/{state}", deps.CrimeHandler.CrimeTrends)
	mux.HandleFunc("GET /safety-indicators", deps.CrimeHandler.SafetyIndicators)

	mux.HandleFunc("POST /weather/current", deps.WeatherHandler.Current)
	mux.HandleFunc("GET /weather/forecast/{location}", deps.WeatherHandler.Forecast)
	mux.HandleFunc("GET /weather/alerts/{location}", deps.WeatherHandler.Alerts)
	mux.HandleFunc("GET /weather/safety-analysis/{location}", deps.WeatherHandler.SafetyAnalysis)

	mux.HandleFunc("GET /cities", deps.CityHandler.ListCities)
	mux.HandleFunc("GET /cities/{city}", deps.CityHandler.GetCity)

	deps.Logger.Info("API routes configured")
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type readyResponse struct {
	Status    string            `json:"status"`
	MockMode  bool              `json:"mock_mode"`
	Upstreams map[string]string `json:"upstreams"`
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB == nil {
			lib.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "disabled"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.DB.Health(ctx); err != nil {
			deps.Logger.WarnContext(ctx, "database health check failed", "error", err)
			lib.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "unreachable"})
			return
		}
		lib.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Readiness reports breaker states; an open breaker still serves synthesized data
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		lib.WriteJSON(w, http.StatusOK, readyResponse{
			Status:    "ready",
			MockMode:  deps.Config.Engine.MockMode,
			Upstreams: deps.UpstreamStates(),
		})
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

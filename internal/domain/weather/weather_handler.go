package weather

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	defaultForecastDays = 7
	maxBodyBytes        = 1 << 16
)

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

type forecastResponse struct {
	Location     string                    `json:"location"`
	ForecastDays int                       `json:"forecast_days"`
	Forecast     locitypes.WeatherForecast `json:"forecast"`
	Source       locitypes.SourceStatus    `json:"source"`
}

type alertsResponse struct {
	Location           string                   `json:"location"`
	Alerts             []locitypes.WeatherAlert `json:"alerts"`
	AlertCount         int                      `json:"alert_count"`
	HighPriorityAlerts int                      `json:"high_priority_alerts"`
	Source             locitypes.SourceStatus   `json:"source"`
}

type analysisResponse struct {
	Location string                          `json:"location"`
	Analysis locitypes.WeatherSafetyAnalysis `json:"analysis"`
}

type currentRequest struct {
	Location string `json:"location"`
	Days     int    `json:"days"`
}

type currentResponse struct {
	Location       string                          `json:"location"`
	CurrentWeather locitypes.WeatherRecord         `json:"current_weather"`
	Forecast       *locitypes.WeatherForecast      `json:"forecast,omitempty"`
	SafetyAnalysis locitypes.WeatherSafetyAnalysis `json:"safety_analysis"`
	Source         locitypes.SourceStatus          `json:"source"`
}

// location parses the {location} path value into a key.
func location(r *http.Request) (string, locitypes.LocationKey, error) {
	return parseLocation(r.PathValue("location"))
}

func parseLocation(raw string) (string, locitypes.LocationKey, error) {
	raw = strings.TrimSpace(raw)
	loc := ParseLocation(raw)
	if err := loc.Validate(); err != nil {
		return raw, loc, err
	}
	if err := lib.ValidateStruct(loc); err != nil {
		return raw, loc, err
	}
	return raw, loc, nil
}

// Forecast serves GET /weather/forecast/{location}?days=.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "Forecast"))

	raw, loc, err := location(r)
	if err != nil {
		lib.WriteError(w, err)
		return
	}
	days, err := lib.QueryInt(r, "days", defaultForecastDays, 1, MaxForecastDays)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	f, source, err := h.svc.Forecast(r.Context(), loc, days)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get weather forecast", slog.Any("error", err))
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, forecastResponse{
		Location:     raw,
		ForecastDays: days,
		Forecast:     f,
		Source:       source,
	})
}

// Alerts serves GET /weather/alerts/{location}.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "Alerts"))

	raw, loc, err := location(r)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	alerts, source, err := h.svc.Alerts(r.Context(), loc)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get weather alerts", slog.Any("error", err))
		lib.WriteError(w, err)
		return
	}
	if alerts == nil {
		alerts = []locitypes.WeatherAlert{}
	}
	lib.WriteJSON(w, http.StatusOK, alertsResponse{
		Location:           raw,
		Alerts:             alerts,
		AlertCount:         len(alerts),
		HighPriorityAlerts: risk.CountHighPriority(alerts),
		Source:             source,
	})
}

// SafetyAnalysis serves GET /weather/safety-analysis/{location}.
func (h *Handler) SafetyAnalysis(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "SafetyAnalysis"))

	raw, loc, err := location(r)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	a, err := h.svc.SafetyAnalysis(r.Context(), loc)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to analyse weather", slog.Any("error", err))
		lib.WriteError(w, fmt.Errorf("failed to analyse weather for %s: %w", raw, err))
		return
	}
	lib.WriteJSON(w, http.StatusOK, analysisResponse{Location: raw, Analysis: a})
}

// Current serves POST /weather/current with body {"location": "Delhi,India", "days": 1}.
// A forecast is included when days > 1.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "Current"))

	var req currentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		l.WarnContext(r.Context(), "Rejected malformed request body", slog.Any("error", err))
		lib.WriteError(w, fmt.Errorf("%w: malformed JSON body", locitypes.ErrBadRequest))
		return
	}
	if req.Days == 0 {
		req.Days = 1
	}
	if req.Days < 1 || req.Days > MaxForecastDays {
		lib.WriteError(w, &locitypes.ValidationError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", MaxForecastDays)})
		return
	}
	raw, loc, err := parseLocation(req.Location)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	a, err := h.svc.SafetyAnalysis(r.Context(), loc)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get current weather", slog.Any("error", err))
		lib.WriteError(w, fmt.Errorf("failed to get current weather for %s: %w", raw, err))
		return
	}
	resp := currentResponse{
		Location:       raw,
		CurrentWeather: a.Conditions,
		SafetyAnalysis: a,
		Source:         a.Source,
	}
	if req.Days > 1 {
		f, _, err := h.svc.Forecast(r.Context(), loc, req.Days)
		if err != nil {
			l.ErrorContext(r.Context(), "Failed to get weather forecast", slog.Any("error", err))
			lib.WriteError(w, fmt.Errorf("failed to get weather forecast for %s: %w", raw, err))
			return
		}
		resp.Forecast = &f
	}
	lib.WriteJSON(w, http.StatusOK, resp)
}

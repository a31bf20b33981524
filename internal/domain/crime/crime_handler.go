package crime

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const (
	maxTrendMonths   = 36
	defaultRadiusKm  = 10
	minYear, maxYear = 2000, 2100
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

type crimeDataResponse struct {
	State    string                 `json:"state"`
	District string                 `json:"district,omitempty"`
	Year     int                    `json:"year"`
	Data     locitypes.CrimeRecord  `json:"data"`
	Source   locitypes.SourceStatus `json:"source"`
}

type crimeTrendsResponse struct {
	State    string                      `json:"state"`
	District string                      `json:"district,omitempty"`
	Months   int                         `json:"trend_period_months"`
	Trends   []locitypes.CrimeTrendPoint `json:"trends"`
	Trend    locitypes.TrendDirection    `json:"trend_direction"`
	Source   locitypes.SourceStatus      `json:"source"`
}

type indicatorsResponse struct {
	Latitude   float64                    `json:"latitude"`
	Longitude  float64                    `json:"longitude"`
	RadiusKm   float64                    `json:"radius_km"`
	Indicators locitypes.SafetyIndicators `json:"indicators"`
	Source     locitypes.SourceStatus     `json:"source"`
}

func stateKey(r *http.Request) locitypes.LocationKey {
	return locitypes.LocationKey{
		State:    strings.TrimSpace(r.PathValue("state")),
		District: strings.TrimSpace(r.URL.Query().Get("district")),
	}
}

// CrimeData serves GET /crime-data/{state}?district=&year=.
func (h *Handler) CrimeData(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "CrimeData"))

	loc := stateKey(r)
	year, err := lib.QueryInt(r, "year", 0, minYear, maxYear)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	rec, source, err := h.svc.CrimeData(r.Context(), loc, year)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get crime data", slog.Any("error", err))
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, crimeDataResponse{
		State:    loc.State,
		District: loc.District,
		Year:     rec.Year,
		Data:     rec,
		Source:   source,
	})
}

// CrimeTrends serves GET /crime-trends/{state}?district=&months=.
func (h *Handler) CrimeTrends(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "CrimeTrends"))

	loc := stateKey(r)
	months, err := lib.QueryInt(r, "months", DefaultTrendMonths, 1, maxTrendMonths)
	if err != nil {
		lib.WriteError(w, err)
		return
	}

	t, source, err := h.svc.Trends(r.Context(), loc, months)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get crime trends", slog.Any("error", err))
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, crimeTrendsResponse{
		State:    loc.State,
		District: loc.District,
		Months:   months,
		Trends:   t.Trends,
		Trend:    t.TrendDirection,
		Source:   source,
	})
}

// SafetyIndicators serves GET /safety-indicators?lat=&lng=&radius_km=.
func (h *Handler) SafetyIndicators(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "SafetyIndicators"))

	lat, hasLat, err := lib.QueryFloat(r, "lat")
	if err != nil {
		lib.WriteError(w, err)
		return
	}
	lng, hasLng, err := lib.QueryFloat(r, "lng")
	if err != nil {
		lib.WriteError(w, err)
		return
	}
	if !hasLat || !hasLng {
		lib.WriteError(w, fmt.Errorf("%w: lat and lng query parameters are required", locitypes.ErrBadRequest))
		return
	}
	radius, hasRadius, err := lib.QueryFloat(r, "radius_km")
	if err != nil {
		lib.WriteError(w, err)
		return
	}
	if !hasRadius {
		radius = defaultRadiusKm
	}

	var verrs locitypes.ValidationErrors
	if lat < -90 || lat > 90 {
		verrs = append(verrs, &locitypes.ValidationError{Field: "lat", Message: "must be between -90 and 90"})
	}
	if lng < -180 || lng > 180 {
		verrs = append(verrs, &locitypes.ValidationError{Field: "lng", Message: "must be between -180 and 180"})
	}
	if radius <= 0 || radius > 100 {
		verrs = append(verrs, &locitypes.ValidationError{Field: "radius_km", Message: "must be greater than 0 and at most 100"})
	}
	if len(verrs) > 0 {
		lib.WriteError(w, verrs)
		return
	}

	ind, source, err := h.svc.Indicators(r.Context(), lat, lng, radius)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to get safety indicators", slog.Any("error", err))
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, indicatorsResponse{
		Latitude:   lat,
		Longitude:  lng,
		RadiusKm:   radius,
		Indicators: ind,
		Source:     source,
	})
}

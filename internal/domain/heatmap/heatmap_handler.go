package heatmap

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
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

type locationsResponse struct {
	City         string                      `json:"city"`
	ResolvedCity string                      `json:"resolved_city"`
	Locations    []locitypes.TouristLocation `json:"tourist_locations"`
}

type zonesResponse struct {
	City         string                 `json:"city"`
	ResolvedCity string                 `json:"resolved_city"`
	Zones        []locitypes.SafetyZone `json:"safety_zones"`
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, method string) (*locitypes.HeatmapData, bool) {
	l := h.logger.With(slog.String("method", method))

	city := strings.TrimSpace(r.PathValue("city"))
	if city == "" {
		lib.WriteError(w, &locitypes.ValidationError{Field: "city", Message: "is required"})
		return nil, false
	}
	count, err := lib.QueryInt(r, "count", 0, 0, MaxLocations)
	if err != nil {
		lib.WriteError(w, err)
		return nil, false
	}

	data, err := h.svc.SynthesizeCity(r.Context(), city, count)
	if err != nil {
		l.ErrorContext(r.Context(), "Failed to build heatmap", slog.Any("error", err))
		lib.WriteError(w, fmt.Errorf("failed to build heatmap for %s: %w", city, err))
		return nil, false
	}
	return data, true
}

// Heatmap serves GET /heatmap/{city}?count=.
func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.load(w, r, "Heatmap"); ok {
		lib.WriteJSON(w, http.StatusOK, data)
	}
}

// Locations serves GET /heatmap/{city}/locations.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.load(w, r, "Locations"); ok {
		lib.WriteJSON(w, http.StatusOK, locationsResponse{
			City:         data.City,
			ResolvedCity: data.ResolvedCity,
			Locations:    data.TouristLocations,
		})
	}
}

// Zones serves GET /heatmap/{city}/zones.
func (h *Handler) Zones(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.load(w, r, "Zones"); ok {
		lib.WriteJSON(w, http.StatusOK, zonesResponse{
			City:         data.City,
			ResolvedCity: data.ResolvedCity,
			Zones:        data.SafetyZones,
		})
	}
}

// Statistics serves GET /heatmap/{city}/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.load(w, r, "Statistics"); ok {
		lib.WriteJSON(w, http.StatusOK, data.Summary())
	}
}

package city

import (
	"log/slog"
	"net/http"

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

type listCitiesResponse struct {
	Cities []locitypes.CityProfile `json:"cities"`
	Count  int                     `json:"count"`
}

// ListCities serves GET /cities.
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities := h.svc.ListCities(r.Context())
	lib.WriteJSON(w, http.StatusOK, listCitiesResponse{Cities: cities, Count: len(cities)})
}

// GetCity serves GET /cities/{city}.
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetCity(r.Context(), r.PathValue("city"))
	if err != nil {
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, p)
}

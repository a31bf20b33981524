package safety

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

const maxBodyBytes = 1 << 20

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

// SafetyScore serves POST /safety-score.
func (h *Handler) SafetyScore(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "SafetyScore"))

	var req locitypes.SafetyScoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		l.WarnContext(r.Context(), "Rejected malformed request body", slog.Any("error", err))
		lib.WriteError(w, fmt.Errorf("%w: malformed JSON body", locitypes.ErrBadRequest))
		return
	}

	a, err := h.svc.Assess(r.Context(), req.Context(), req.Location())
	if err != nil {
		if lib.StatusFor(err) == http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "Failed to compute safety score", slog.Any("error", err))
		}
		lib.WriteError(w, err)
		return
	}
	lib.WriteJSON(w, http.StatusOK, a)
}

package lib

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.Any("error", err))
	}
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, locitypes.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, locitypes.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, locitypes.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body. Internal errors are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorBody{Error: http.StatusText(status)}
	if status != http.StatusInternalServerError {
		body.Error = err.Error()
	}
	var verrs locitypes.ValidationErrors
	if errors.As(err, &verrs) {
		body.Error = "invalid input"
		for _, e := range verrs {
			body.Details = append(body.Details, e.Error())
		}
	}
	WriteJSON(w, status, body)
}

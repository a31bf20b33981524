package lib

import (
	"net/http"
	"strconv"
	"strings"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// QueryInt parses an optional integer query parameter, enforcing [lo, hi].
func QueryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &locitypes.ValidationError{Field: name, Message: "must be an integer"}
	}
	if v < lo || v > hi {
		return 0, &locitypes.ValidationError{Field: name, Message: "must be between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)}
	}
	return v, nil
}

// QueryFloat parses a float query parameter. ok is false when the parameter is absent.
func QueryFloat(r *http.Request, name string) (v float64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, &locitypes.ValidationError{Field: name, Message: "must be a number"}
	}
	return v, true, nil
}

package interceptors

import (
	"net/http"
	"time"

	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
)

// NewMetricsMiddleware records request counts and latency by route pattern. It must wrap
// the ServeMux directly so the matched pattern is visible after routing.
func NewMetricsMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			observability.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
		})
	}
}

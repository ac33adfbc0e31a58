package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func chiRoutePattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ""
	}
	return rc.RoutePattern()
}

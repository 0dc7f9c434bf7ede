// Package httptransport wires the public HTTP surface. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contacthandler "coalesce/internal/contact/handler"
	"coalesce/internal/transport/http/shared"
)

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter builds the root router: the identify endpoint, liveness, and
// Prometheus metrics.
func NewRouter(contacts *contacthandler.Handler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	contacts.Register(r)

	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		shared.WriteJSON(w, code, status)
	}
}

package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// healthCheck is one dependency the readiness endpoint probes.
type healthCheck struct {
	name  string
	probe func(ctx context.Context) error
}

type healthHandler struct {
	encoder encoder
	checks  []healthCheck
}

func newHealthHandler(encoder encoder, checks ...healthCheck) *healthHandler {
	return &healthHandler{
		encoder: encoder,
		checks:  checks,
	}
}

func (h healthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.handleLiveness)
	r.Get("/readiness", h.handleReadiness)
}

func (h healthHandler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeHealthy(w)
}

// handleReadiness probes every registered dependency and reports the first
// one that fails.
func (h healthHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.probe(r.Context()); err != nil {
			writeUnhealthy(w, c.name)
			return
		}
	}

	writeHealthy(w)
}

func writeHealthy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeUnhealthy(w http.ResponseWriter, component string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Unhealthy. %s unreachable", component)
}

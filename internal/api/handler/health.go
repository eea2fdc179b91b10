package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including every dependency's connectivity
func ReadyCheck(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]string, len(checks))
		ready := true

		for name, p := range checks {
			if err := p.Ping(r.Context()); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
				status[name] = "unavailable"
				ready = false
				continue
			}
			status[name] = "ok"
		}

		if !ready {
			response.ServiceUnavailable(w, status)
			return
		}

		status["status"] = "ready"
		response.OK(w, status)
	}
}

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Cache     string `json:"cache"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by the response cache backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// handleHealth checks cache backend connectivity. The service answers
// queries without the cache, so a cache outage degrades the report but
// still returns 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Cache:     "disabled",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if s.health != nil {
		if err := s.health.Health(ctx); err != nil {
			response.Status = "degraded"
			response.Cache = "disconnected"
		} else {
			response.Cache = "connected"
		}
	}

	writeJSON(w, http.StatusOK, response)
}

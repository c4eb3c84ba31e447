package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Qdrant string `json:"qdrant"`
	Time   string `json:"time"`
}

// handleHealth reports service liveness and vector-database reachability.
// A failed check returns 503 so load balancers stop routing here.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Qdrant: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.health.Health(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		resp.Status = "degraded"
		resp.Qdrant = "unreachable"
		s.writer.WriteCode(w, r, http.StatusServiceUnavailable, &resp)
		return
	}
	s.writer.Write(w, r, &resp)
}

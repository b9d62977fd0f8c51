package http

import (
	"context"
	"net/http"
	"time"

	applog "webbudget/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			applog.LogError(r.Context(), "Readiness check failed", err, applog.ErrorTypeInternal, "ready", nil)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeBadRequest answers 400 for input that never reached a service.
func writeBadRequest(w http.ResponseWriter, r *http.Request, operation string, err error) {
	applog.LogError(r.Context(), "Invalid request", err, applog.ErrorTypeValidation, operation, nil)
	BadRequestError(err.Error()).Write(w)
}

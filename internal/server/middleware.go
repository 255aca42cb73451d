package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type errorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// withMiddleware applies rate limiting and request logging to API handlers.
// Both the per-minute and per-hour budgets must have capacity.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.minuteLim.Allow() || !s.hourLim.Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}

		start := time.Now()
		next(w, r)
		s.log.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := errorResponse{Error: message, Timestamp: time.Now().UTC()}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

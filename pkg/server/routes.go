package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/knograph/knograph/pkg/knograph"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req knograph.ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Anchor == "" {
		http.Error(w, `{"error":"anchor required"}`, http.StatusBadRequest)
		return
	}

	answer, err := s.engine.AnswerContext(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if knograph.IsKind(err, knograph.KindTimeout) {
			status = http.StatusGatewayTimeout
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error":      err.Error(),
			"error_type": knograph.ClassifyError(err),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	c := s.engine.Cache()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"fast": c.FastStats(),
		"slow": c.SlowStats(),
	})
}

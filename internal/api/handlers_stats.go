package api

import (
	"net/http"
)

func (s *Server) handleCommitStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "commit stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"commits":     s.stats.Snapshot(),
	})
}

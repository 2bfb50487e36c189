package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/remote"
)

// maxSyncBody bounds one batch. Image bytes travel in responses, not
// requests, so batches stay small.
const maxSyncBody = 4 << 20

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		jsonError(w, "host bridge disabled", http.StatusNotFound)
		return
	}
	id := s.bridge.Open()
	s.log.Info("host session opened", "session", id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		jsonError(w, "host bridge disabled", http.StatusNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSyncBody)

	var req remote.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid sync request: "+err.Error(), http.StatusBadRequest)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	resp, err := s.bridge.Sync(r.Context(), sessionID, &req)
	switch {
	case errors.Is(err, memhost.ErrUnknownSession):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, memhost.ErrOverlappingSync):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// A rejected batch is still a well-formed answer: the error travels in
	// the response body.
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		jsonError(w, "host bridge disabled", http.StatusNotFound)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.bridge.CloseSession(r.Context(), sessionID); err != nil {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

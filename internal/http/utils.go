package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// handleGetUUID mints a fresh owner id and returns it as JSON.
func (s *Server) handleGetUUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.log.Error().Msgf("Method not allowed: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	newUUID := uuid.New().String()
	response := map[string]string{"uuid": newUUID}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode UUID response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

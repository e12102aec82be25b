package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/follow-scanner/internal/service"
)

// handleGetUser handles GET /api/users/{accountId} - single profile lookup
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	accountID, err := service.ValidateAccountID(mux.Vars(r)["accountId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	profile, err := s.scanService.LookupUser(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": profile})
}

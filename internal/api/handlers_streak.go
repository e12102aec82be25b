package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetStreak handles GET /api/streak/{wallet}
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	status, err := s.streakService.Status(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// handleCheckIn handles POST /api/streak/{wallet}/check-in
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	status, err := s.streakService.CheckIn(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

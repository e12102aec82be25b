package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/logging"
)

// ActivationSecretHeader carries the shared secret of the payment confirmer
const ActivationSecretHeader = "X-Activation-Secret"

// handleGetPremium handles GET /api/premium/{wallet}
func (s *Server) handleGetPremium(w http.ResponseWriter, r *http.Request) {
	status, err := s.premiumService.Status(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// handleActivatePremium handles POST /api/premium/{wallet}.
// Called by the payment confirmer once the unlock payment has settled
// on-chain. The route grants premium outright, so when no activation secret
// is configured it must only be reachable from that confirmer.
func (s *Server) handleActivatePremium(w http.ResponseWriter, r *http.Request) {
	if !s.activationAuthorized(r) {
		respondServiceError(w, r, apperrors.NewUnauthorizedError("missing or invalid activation secret"))
		return
	}
	wallet := mux.Vars(r)["wallet"]

	status, err := s.premiumService.Activate(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"wallet":    wallet,
		"expiresAt": status.ExpiresAt,
	}).Info("Premium activated")

	respondJSON(w, http.StatusOK, status)
}

func (s *Server) activationAuthorized(r *http.Request) bool {
	secret := s.config.ActivationSecret
	if secret == "" {
		return true
	}
	given := r.Header.Get(ActivationSecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

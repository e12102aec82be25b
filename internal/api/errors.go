package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps a service error to its HTTP response.
// Internal causes are logged but never written to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)

	logger := logging.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"code":   catErr.Code,
		"status": catErr.StatusCode,
	})
	if apperrors.IsSystemError(catErr) {
		logger.Error("Request failed")
	} else {
		logger.Info("Request rejected")
	}

	svcErr := catErr.ToServiceError()
	if catErr.Code == apperrors.CodeInternalError {
		svcErr.Message = "An internal error occurred"
	}
	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: *svcErr})
}

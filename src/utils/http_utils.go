// src/utils/http_utils.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/kncbank/web/src/logger"
)

// SendJSONError sends a JSON formatted error response shaped like the
// account service's own errors ({"detail": ...}).
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}

// SendJSON writes v as a JSON body with the given status.
func SendJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

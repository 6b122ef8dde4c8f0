package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/services"
	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/snapshot"
	"github.com/username/kncbank/web/src/utils"
)

const maxBodyBytes = 64 << 10

// Navigation tells the page where to go next and how long to show the
// message first.
type Navigation struct {
	Redirect        string `json:"redirect,omitempty"`
	RedirectAfterMS int64  `json:"redirect_after_ms,omitempty"`
}

func navigate(path string, after time.Duration) Navigation {
	return Navigation{Redirect: path, RedirectAfterMS: after.Milliseconds()}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.FromContext(r.Context()).Debug("Invalid request body", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps an account service failure onto the status this server
// answers with. Client errors pass through; everything else is a bad gateway.
func statusFor(err error) int {
	var ie *services.InputError
	if errors.As(err, &ie) {
		return http.StatusBadRequest
	}
	if rej, ok := bankapi.AsRejection(err); ok && rej.Status >= 400 && rej.Status < 500 {
		return rej.Status
	}
	return http.StatusBadGateway
}

// sendServiceError answers with the page message for err.
func sendServiceError(w http.ResponseWriter, err error) {
	utils.SendJSONError(w, services.UserMessage(err), statusFor(err))
}

const msgBalanceRetry = "Unable to load your balance. Please try again."

// sendSnapshotError handles a failed balance read on page entry. An identity
// the service no longer knows ends the session; anything else offers a retry.
func sendSnapshotError(w http.ResponseWriter, r *http.Request, guard *session.Guard, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		logger.FromContext(r.Context()).Warn("Identity unknown to account service, ending session", "error", err)
		guard.Logout(w, r)
		utils.SendJSON(w, struct {
			Detail string `json:"detail"`
			Navigation
		}{"Account not found. Please log in again.", navigate(session.LoginPath, 0)}, http.StatusUnauthorized)
		return
	}
	logger.FromContext(r.Context()).Warn("Balance unavailable", "error", err)
	utils.SendJSON(w, map[string]interface{}{"detail": msgBalanceRetry, "retry": true}, http.StatusServiceUnavailable)
}

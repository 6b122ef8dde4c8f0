package handlers

import (
	"net/http"
	"time"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/services"
	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/submitter"
	"github.com/username/kncbank/web/src/utils"
)

type UserHandler struct {
	accounts    services.AccountService
	guard       *session.Guard
	workspaces  *submitter.Registry
	loginDelay  time.Duration
	signupDelay time.Duration
}

func NewUserHandler(accounts services.AccountService, guard *session.Guard, workspaces *submitter.Registry, loginDelay, signupDelay time.Duration) *UserHandler {
	return &UserHandler{
		accounts:    accounts,
		guard:       guard,
		workspaces:  workspaces,
		loginDelay:  loginDelay,
		signupDelay: signupDelay,
	}
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Navigation
}

// SessionHandler answers the auth screens' entry check: a signed-in visitor
// is sent on to the dashboard.
func (h *UserHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.guard.ResolveIdentity(r)
	if !ok {
		utils.SendJSON(w, sessionResponse{}, http.StatusOK)
		return
	}
	utils.SendJSON(w, sessionResponse{
		Authenticated: true,
		Username:      sess.Identity.String(),
		Navigation:    navigate(submitter.DashboardPath, 0),
	}, http.StatusOK)
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}

	identity, err := h.accounts.Login(r.Context(), creds)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	// A previous user of this browser is signed out first.
	if prev, ok := h.guard.ResolveIdentity(r); ok {
		h.workspaces.Drop(prev.ID)
	}
	sess, err := h.guard.Login(w, r, identity)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to start session", "identity", identity.String(), "error", err)
		utils.SendJSONError(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, struct {
		Message  string `json:"message"`
		Username string `json:"username"`
		Navigation
	}{"Login successful! Redirecting...", sess.Identity.String(), navigate(submitter.DashboardPath, h.loginDelay)}, http.StatusOK)
}

type signupRequest struct {
	models.Signup
	ConfirmPIN string `json:"confirm_pin"`
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.accounts.Signup(r.Context(), req.Signup, req.ConfirmPIN); err != nil {
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, struct {
		Message string `json:"message"`
		Navigation
	}{"Account created successfully! Redirecting to login...", navigate(session.LoginPath, h.signupDelay)}, http.StatusCreated)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.guard.Logout(w, r)
	if ok {
		h.workspaces.Drop(sess.ID)
		h.accounts.Forget(sess.Identity)
		logger.FromContext(r.Context()).Info("User logged out", "identity", sess.Identity.String())
	}
	utils.SendJSON(w, struct {
		Message string `json:"message"`
		Navigation
	}{"Logged out successfully", navigate(session.LoginPath, 0)}, http.StatusOK)
}

func (h *UserHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p, err := h.accounts.Profile(r.Context(), sess.Identity)
	if err != nil {
		logger.FromContext(r.Context()).Warn("Profile unavailable", "error", err)
		utils.SendJSON(w, struct {
			Detail string `json:"detail"`
			Navigation
		}{services.UserMessage(err), navigate(session.LoginPath, 0)}, statusFor(err))
		return
	}
	utils.SendJSON(w, p, http.StatusOK)
}

func (h *UserHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var upd models.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	p, err := h.accounts.UpdateProfile(r.Context(), sess.Identity, upd)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, struct {
		Message string         `json:"message"`
		Profile models.Profile `json:"profile"`
	}{"Profile updated successfully!", p}, http.StatusOK)
}

package handlers

import (
	"net/http"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/security"
	"github.com/username/kncbank/web/src/utils"
)

const (
	CSRFCookieName = "knc_csrf"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFHandler implements the double-submit cookie: the browser echoes the
// cookie's token in a header, and only tokens this server minted count.
type CSRFHandler struct {
	auth   *security.AuthService
	secure bool
}

func NewCSRFHandler(auth *security.AuthService, secureCookies bool) *CSRFHandler {
	return &CSRFHandler{auth: auth, secure: secureCookies}
}

func (h *CSRFHandler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.GenerateCSRFToken()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   h.secure,
		MaxAge:   3600,
	})
	w.Header().Set(CSRFHeaderName, token)
	utils.SendJSON(w, map[string]string{"csrfToken": token}, http.StatusOK)
}

// Middleware rejects unsafe requests whose header token is missing, differs
// from the cookie, or was not minted here.
func (h *CSRFHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(CSRFHeaderName)
		cookie, err := r.Cookie(CSRFCookieName)
		if headerToken != "" && err == nil && headerToken == cookie.Value && h.auth.ValidateCSRFToken(headerToken) == nil {
			next.ServeHTTP(w, r)
			return
		}

		logger.FromContext(r.Context()).Warn("CSRF validation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"hasHeader", headerToken != "",
			"hasCookie", err == nil,
			"origin", r.Header.Get("Origin"))
		utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
	})
}

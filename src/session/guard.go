// Package session resolves which user a browser request belongs to. The
// cookie carries a signed token naming the user and a server-side session
// row; logging out deletes the row, so a copied cookie dies with it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/model"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/security"
	"github.com/username/kncbank/web/src/utils"
)

const (
	CookieName = "knc_session"
	LoginPath  = "/auth/login"
)

// Session is the explicit identity context handed to every account page.
type Session struct {
	ID        string
	Identity  models.Identity
	ExpiresAt time.Time
}

// HandlerFunc is an HTTP handler that needs a signed-in user.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, sess Session)

type Guard struct {
	auth   *security.AuthService
	db     *sql.DB
	secure bool
}

func NewGuard(auth *security.AuthService, db *sql.DB, secureCookies bool) *Guard {
	return &Guard{auth: auth, db: db, secure: secureCookies}
}

// ResolveIdentity returns the request's session. A missing, forged, expired
// or logged-out session is reported as absent, never as an error.
func (g *Guard) ResolveIdentity(r *http.Request) (Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	claims, err := g.auth.ValidateSessionToken(c.Value)
	if err != nil {
		logger.FromContext(r.Context()).Debug("Session token rejected", "error", err)
		return Session{}, false
	}
	row, err := model.GetSessionByID(g.db, claims.ID)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			logger.FromContext(r.Context()).Error("Session lookup failed", "sessionID", claims.ID, "error", err)
		}
		return Session{}, false
	}
	if row.Username != claims.Subject {
		logger.FromContext(r.Context()).Warn("Session token does not match stored session", "sessionID", claims.ID)
		return Session{}, false
	}
	return Session{ID: row.ID, Identity: claims.Identity(), ExpiresAt: row.ExpiresAt}, true
}

// Login starts a session for identity and sets the cookie.
func (g *Guard) Login(w http.ResponseWriter, r *http.Request, identity models.Identity) (Session, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := g.auth.GenerateSessionToken(identity, sessionID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	row := &model.Session{
		ID:        sessionID,
		Username:  identity.String(),
		UserAgent: r.UserAgent(),
		ClientIP:  clientIP(r),
		ExpiresAt: expiresAt,
	}
	if err := model.CreateSession(g.db, row); err != nil {
		return Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	logger.FromContext(r.Context()).Info("Session started", "identity", identity.String(), "sessionID", sessionID)
	return Session{ID: sessionID, Identity: identity, ExpiresAt: expiresAt}, nil
}

// Logout ends the request's session, if any, and clears the cookie.
func (g *Guard) Logout(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, ok := g.ResolveIdentity(r)
	if ok {
		if err := model.DeleteSessionByID(g.db, sess.ID); err != nil {
			logger.FromContext(r.Context()).Error("Failed to delete session", "sessionID", sess.ID, "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, ok
}

// Require runs next only for signed-in requests. Page requests are sent to
// the login screen; JSON requests get a 401.
func (g *Guard) Require(next HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.ResolveIdentity(r)
		if !ok {
			if wantsJSON(r) {
				utils.SendJSONError(w, "Not signed in", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		ctx := logger.WithContext(r.Context(), logger.FromContext(r.Context()).With("identity", sess.Identity.String()))
		next(w, r.WithContext(ctx), sess)
	}
}

// PurgeExpired deletes expired session rows every interval until ctx ends.
func (g *Guard) PurgeExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := model.DeleteExpiredSessions(g.db, now)
			if err != nil {
				logger.L.Error("Failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.L.Info("Purged expired sessions", "count", n)
			}
		}
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

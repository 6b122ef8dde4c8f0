package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/utils"
)

// Router bundles what NewRouter mounts.
type Router struct {
	Guard         *session.Guard
	CSRF          *CSRFHandler
	Users         *UserHandler
	Accounts      *AccountHandler
	Transactions  *TransactionHandler
	RateLimiter   *ClientRateLimiter
	AllowedOrigin string
}

func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS(rt.AllowedOrigin))
	if rt.RateLimiter != nil {
		r.Use(rt.RateLimiter.Middleware)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"message": "KNC Bank web is running"}, http.StatusOK)
	})

	g := rt.Guard.Require
	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/csrf", rt.CSRF.GetCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(rt.CSRF.Middleware)

			r.Get("/auth/session", rt.Users.SessionHandler)
			r.Post("/auth/login", rt.Users.LoginUserHandler)
			r.Post("/auth/signup", rt.Users.RegisterUserHandler)
			r.Post("/auth/logout", rt.Users.LogoutUserHandler)

			r.Get("/profile", g(rt.Users.GetProfileHandler))
			r.Put("/profile", g(rt.Users.UpdateProfileHandler))

			r.Get("/dashboard", g(rt.Accounts.HandleGetDashboard))
			r.Get("/history", g(rt.Accounts.HandleGetHistory))
			r.Get("/companies", g(rt.Accounts.HandleGetCompanies))
			r.Get("/journal", g(rt.Accounts.HandleGetJournal))

			r.Get("/forms/{kind}", g(rt.Transactions.HandleGetForm))
			r.Post("/forms/{kind}/edit", g(rt.Transactions.HandleEditForm))
			r.Post("/forms/{kind}/submit", g(rt.Transactions.HandleSubmitForm))
			r.Get("/recipient", g(rt.Transactions.HandleGetRecipient))
			r.Post("/recipient", g(rt.Transactions.HandleValidateRecipient))
		})
	})
	return r
}

// DefaultRateLimiter allows a sustained ten requests a second per client
// with bursts for the recipient field's keystrokes.
func DefaultRateLimiter() *ClientRateLimiter {
	return NewClientRateLimiter(100*time.Millisecond, 30)
}

package session

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/username/kncbank/web/src/database"
	"github.com/username/kncbank/web/src/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newGuard(t *testing.T) *Guard {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	auth, err := security.NewAuthService(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewGuard(auth, db, false)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginThenResolve(t *testing.T) {
	g := newGuard(t)
	rec := httptest.NewRecorder()
	sess, err := g.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "alice")
	if err != nil {
		t.Fatal(err)
	}
	c := sessionCookie(t, rec)
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie flags = %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(c)
	got, ok := g.ResolveIdentity(req)
	if !ok || got.Identity != "alice" || got.ID != sess.ID {
		t.Fatalf("ResolveIdentity = %+v, %v", got, ok)
	}
}

func TestResolveAbsentIsNotAnError(t *testing.T) {
	g := newGuard(t)
	if _, ok := g.ResolveIdentity(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("no cookie should resolve to no identity")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged.token.value"})
	if _, ok := g.ResolveIdentity(req); ok {
		t.Fatal("forged cookie should resolve to no identity")
	}
}

func TestLogoutKillsCopiedCookie(t *testing.T) {
	g := newGuard(t)
	rec := httptest.NewRecorder()
	if _, err := g.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "alice"); err != nil {
		t.Fatal(err)
	}
	c := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(c)
	out := httptest.NewRecorder()
	if _, ok := g.Logout(out, req); !ok {
		t.Fatal("logout should find the session")
	}
	if cleared := sessionCookie(t, out); cleared.MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cleared)
	}

	again := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	again.AddCookie(c)
	if _, ok := g.ResolveIdentity(again); ok {
		t.Fatal("the old cookie must not resolve after logout")
	}
}

func TestRequire(t *testing.T) {
	g := newGuard(t)
	called := false
	h := g.Require(func(w http.ResponseWriter, r *http.Request, sess Session) {
		called = true
		w.Write([]byte(sess.Identity.String()))
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != LoginPath || called {
		t.Fatalf("anonymous page request: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/send-money/recipient", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "detail") {
		t.Fatalf("anonymous JSON request: %d %s", rec.Code, rec.Body.String())
	}

	login := httptest.NewRecorder()
	if _, err := g.Login(login, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "bob"); err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sessionCookie(t, login))
	rec = httptest.NewRecorder()
	h(rec, req)
	if !called || rec.Body.String() != "bob" {
		t.Fatalf("signed-in request: called=%v body=%q", called, rec.Body.String())
	}
}

package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
)

// SessionCookie carries the signed session token for browser clients. API
// clients may send the same token as a bearer credential instead.
const SessionCookie = "financas_session"

type userContextKey struct{}

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// userFrom returns the authenticated user stored by requireUser.
func userFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(core.User)
	return u, ok
}

// sessionToken returns the bearer token or, failing that, the cookie value.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// setSessionCookie stores sess. Without remember-me the cookie ends with the
// browser session; the token itself still expires at sess.ExpiresAt.
func setSessionCookie(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.RememberMe {
		c.Expires = sess.ExpiresAt
		c.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, c)
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser resolves the request credentials, if any.
func (s *Server) currentUser(r *http.Request) (core.User, bool) {
	token := sessionToken(r)
	if token == "" {
		return core.User{}, false
	}
	u, err := s.auth.CurrentUser(r.Context(), token)
	if err != nil {
		return core.User{}, false
	}
	return u, true
}

// requirePageUser redirects anonymous visitors to the login page.
func (s *Server) requirePageUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			if sessionToken(r) != "" {
				clearSessionCookie(w, r)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(s.userContext(r.Context(), u)))
	}
}

// requireAPIUser answers 401 to anonymous callers.
func (s *Server) requireAPIUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		next(w, r.WithContext(s.userContext(r.Context(), u)))
	}
}

func (s *Server) userContext(ctx context.Context, u core.User) context.Context {
	ctx = withUser(ctx, u)
	return log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, u.ID))
}

// mustUser is only called behind requirePageUser or requireAPIUser.
func mustUser(r *http.Request) core.User {
	u, _ := userFrom(r.Context())
	return u
}

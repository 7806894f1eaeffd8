package api

import (
	"context"
	"net/http"
	"strings"

	"scams/internal/models"
	"scams/internal/service"
)

// sessionToken reads the session from the cookie, then from a Bearer header.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func currentToken(r *http.Request) string {
	t, _ := r.Context().Value(tokenKey).(string)
	return t
}

// authed rejects requests without a valid session and stores the user in the context.
func (s *HTTPServer) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r, s.cfg.Session.CookieName)
		user, err := s.svc.Users.Authenticate(r.Context(), token)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		h(w, r.WithContext(ctx))
	})
}

func (s *HTTPServer) admin(h http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin() {
			s.writeServiceError(w, r, service.ErrForbidden)
			return
		}
		h(w, r)
	})
}

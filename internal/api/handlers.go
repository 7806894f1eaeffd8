package api

import (
	"net/http"
	"time"

	"scams/internal/models"
	"scams/internal/service"
)

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req service.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.svc.Users.SignUp(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req service.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, session, err := s.svc.Users.SignIn(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"access_token": session.Token,
		"expires_at":   session.ExpiresAt,
	})
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Users.SignOut(r.Context(), currentToken(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.Users.ChangePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	unread := r.URL.Query().Get("unread") == "true"
	list, err := s.svc.Notifications.List(r.Context(), currentUser(r), unread, int(limit))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Notifications.MarkRead(r.Context(), currentUser(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.MarkAllRead(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

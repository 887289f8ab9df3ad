package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// CookieName is the session cookie. The name is kept stable so existing
// clients stay signed in across deployments.
const CookieName = "ShoppingSessionId"

type contextKey string

const contextSessionID contextKey = "sessionID"

// IDFromContext returns the session id the middleware attached.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextSessionID).(string)
	return id, ok
}

// Middleware ensures every request carries a live session: missing,
// unknown or expired cookies get a fresh session and cookie.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if errors.Is(err, http.ErrNoCookie) {
			r, err = s.startSession(w, r)
			if err != nil {
				slog.Error("failed to create session", "err", err)
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		} else {
			existing, err := s.Get(r.Context(), cookie.Value)
			if err != nil {
				r, err = s.startSession(w, r)
				if err != nil {
					slog.Error("failed to replace session", "err", err)
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
			} else {
				r = r.WithContext(context.WithValue(r.Context(), contextSessionID, existing.ID))
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Store) startSession(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	session, err := s.Create(r.Context())
	if err != nil {
		return r, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		// Strict breaks some Android browsers.
		SameSite: http.SameSiteDefaultMode,
	})

	return r.WithContext(context.WithValue(r.Context(), contextSessionID, session.ID)), nil
}

// RequestValue reads one value from the request's session.
func (s *Store) RequestValue(r *http.Request, key string) (json.RawMessage, bool) {
	id, ok := IDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	session, err := s.Get(r.Context(), id)
	if err != nil {
		return nil, false
	}
	value, ok := session.Data[key]
	return value, ok
}

// SetRequestValue writes one value into the request's session.
func (s *Store) SetRequestValue(r *http.Request, key string, value json.RawMessage) error {
	id, ok := IDFromContext(r.Context())
	if !ok {
		return errors.New("session: no session on request")
	}
	return s.SetValue(r.Context(), id, key, value)
}

// ResetRequestValues clears the request's session bag.
func (s *Store) ResetRequestValues(r *http.Request) error {
	id, ok := IDFromContext(r.Context())
	if !ok {
		return errors.New("session: no session on request")
	}
	return s.Reset(r.Context(), id)
}

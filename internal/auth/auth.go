// Package auth implements password sign-in over Redis cookie sessions.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"shoplist/internal/session"
	"shoplist/internal/store"
)

// SessionValueUserID is the session key that marks a signed-in user.
const SessionValueUserID = "userID"

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// UserStore is the storage surface for sign-in.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (store.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (store.User, error)
}

type Service struct {
	users    UserStore
	sessions *session.Store
}

func NewService(users UserStore, sessions *session.Store) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// HashPassword derives the stored hash for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against its stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignIn verifies the credentials and binds the user to the request's
// session. Unknown users and wrong passwords are indistinguishable to
// the caller.
func (s *Service) SignIn(r *http.Request, username, password string) error {
	user, err := s.users.FindUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := s.sessions.ResetRequestValues(r); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	userID, err := json.Marshal(user.ID)
	if err != nil {
		return fmt.Errorf("marshal user id: %w", err)
	}
	if err := s.sessions.SetRequestValue(r, SessionValueUserID, userID); err != nil {
		return fmt.Errorf("bind user to session: %w", err)
	}
	return nil
}

// EnsureUser creates the user if it does not exist yet; used to
// bootstrap an initial account from configuration.
func (s *Service) EnsureUser(ctx context.Context, username, password string) error {
	_, err := s.users.FindUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check user: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.users.CreateUser(ctx, username, hash); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	slog.Info("created bootstrap user", "username", username)
	return nil
}

// Require rejects requests whose session carries no signed-in user.
func (s *Service) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := s.sessions.RequestValue(r, SessionValueUserID)
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var userID int
		if err := json.Unmarshal(raw, &userID); err != nil {
			// A userID that is not a number means the session data is
			// corrupt, not that the user is unauthorized.
			slog.ErrorContext(r.Context(), "failed to unmarshal userID", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package session provides Redis-backed cookie sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session: not found")

// Session is a server-side value bag keyed by the cookie id.
type Session struct {
	ID   string                     `json:"id"`
	Data map[string]json.RawMessage `json:"data"`
}

// Store keeps sessions in Redis; expiry is delegated to Redis TTLs.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Create allocates a fresh empty session.
func (s *Store) Create(ctx context.Context) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("allocate session id: %w", err)
	}
	session := Session{
		ID:   id.String(),
		Data: map[string]json.RawMessage{},
	}
	if err := s.write(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Get loads a session; expired sessions vanish via the Redis TTL and
// come back as ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

// SetValue stores one value in the session's bag.
func (s *Store) SetValue(ctx context.Context, id, key string, value json.RawMessage) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Data[key] = value
	return s.write(ctx, session)
}

// Reset clears every value from the session but keeps it alive.
func (s *Store) Reset(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Data = map[string]json.RawMessage{}
	return s.write(ctx, session)
}

func (s *Store) write(ctx context.Context, session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

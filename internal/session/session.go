package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dams/internal/model"
	"dams/internal/store"
)

// Storage keys, shared with the web client's local storage layout.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

var (
	ErrMissingUser  = errors.New("session: user required")
	ErrMissingToken = errors.New("session: token required")
)

// Session is the authenticated identity. User and Token are both set or both empty.
type Session struct {
	User  *model.User
	Token string
}

// Empty reports whether no one is logged in.
func (s Session) Empty() bool { return s.User == nil && s.Token == "" }

// Store holds the current session in memory and mirrors it to durable storage.
type Store struct {
	mu      sync.RWMutex
	storage store.Storage
	current Session
	logger  *log.Logger
}

// New creates an empty store. Call Load to restore a persisted session.
func New(storage store.Storage, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{storage: storage, logger: logger}
}

// Load restores the persisted session. A missing, partial or unreadable
// session yields the empty session; problems are logged, never returned.
func (s *Store) Load(ctx context.Context) Session {
	loaded := s.read(ctx)
	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded
}

func (s *Store) read(ctx context.Context) Session {
	rawUser, hasUser, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		s.logger.Printf("[session] load user: %v", err)
		return Session{}
	}
	token, hasToken, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		s.logger.Printf("[session] load token: %v", err)
		return Session{}
	}
	if !hasUser || !hasToken || token == "" {
		return Session{}
	}
	var u model.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		s.logger.Printf("[session] decode user: %v", err)
		return Session{}
	}
	return Session{User: &u, Token: token}
}

// Set replaces the session wholesale, in memory and in storage.
func (s *Store) Set(ctx context.Context, user *model.User, token string) error {
	if user == nil {
		return ErrMissingUser
	}
	if token == "" {
		return ErrMissingToken
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		// storage no longer holds a complete session, so neither does memory
		s.current = Session{}
		_ = s.storage.Delete(ctx, KeyUser)
		_ = s.storage.Delete(ctx, KeyToken)
		return fmt.Errorf("persist token: %w", err)
	}
	u := *user
	s.current = Session{User: &u, Token: token}
	return nil
}

// Logout clears the session. Memory is cleared even if storage fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{}
	return errors.Join(
		s.storage.Delete(ctx, KeyUser),
		s.storage.Delete(ctx, KeyToken),
	)
}

// Current returns a copy of the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.current
	if cur.User != nil {
		u := *cur.User
		cur.User = &u
	}
	return cur
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// User returns a copy of the logged-in user, or nil.
func (s *Store) User() *model.User {
	return s.Current().User
}

// LoggedIn reports whether a session is active.
func (s *Store) LoggedIn() bool {
	return s.Token() != ""
}

// ExpiresAt reads the exp claim of the token without verifying it. The
// signature can only be checked by the API; this is for display.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Package auth holds the client-side session: the bearer token, the signed-in
// user, and where they are persisted between CLI invocations.
package auth

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/userdash/internal/models"
	"github.com/charlesng35/userdash/pkg/logger"
)

// Session is an authenticated login. A zero Session is signed out.
type Session struct {
	Token     string          `json:"token"`
	User      *models.Profile `json:"user,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewSession builds a Session for token. When token is a JWT its exp claim
// becomes the session expiry; opaque tokens never expire client-side.
func NewSession(token string, user *models.Profile, now time.Time) *Session {
	s := &Session{Token: token, User: user, CreatedAt: now}
	if LooksLikeJWT(token) {
		if claims, err := InspectToken(token); err == nil {
			s.ExpiresAt = claims.Expiry()
		}
	}
	return s
}

// ActiveAt reports whether the session holds a token that has not expired at now.
func (s *Session) ActiveAt(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// Manager is the session context handed to the API client and the dashboard.
// It is safe for concurrent use.
type Manager struct {
	store Store
	now   func() time.Time
	log   *zap.Logger

	mu      sync.RWMutex
	session *Session
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithNow overrides the time source used for expiry checks.
func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a Manager backed by store. A nil store keeps the session
// in memory only.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		log:   logger.WithModule("auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the persisted session, if any.
func (m *Manager) Restore() error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.Load()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	return nil
}

// Set replaces the session and persists it.
func (m *Manager) Set(s *Session) error {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Save(s)
}

// Clear signs out and removes the persisted session.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Clear()
}

// Current returns a copy of the session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	cpy := *m.session
	return &cpy
}

// IsAuthenticated reports whether a non-expired token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.ActiveAt(m.now())
}

// BearerToken returns the token to send, or "" when signed out or expired.
func (m *Manager) BearerToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.ActiveAt(m.now()) {
		return ""
	}
	return m.session.Token
}

// Expire drops the in-memory session after the API rejected its token. The
// persisted copy is removed as well so the next invocation asks for a login.
func (m *Manager) Expire() {
	if err := m.Clear(); err != nil {
		m.log.Warn("failed to clear rejected session", zap.Error(err))
	}
}

// PurgeExpired signs out when the held session has passed its expiry. It
// reports whether a session was removed.
func (m *Manager) PurgeExpired() (bool, error) {
	m.mu.RLock()
	expired := m.session != nil && !m.session.ActiveAt(m.now())
	m.mu.RUnlock()

	if !expired {
		return false, nil
	}
	m.log.Info("session expired")
	return true, m.Clear()
}

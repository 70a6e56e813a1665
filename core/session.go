package core

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// SessionStorageKey is the fixed identifier the persisted session lives under.
const SessionStorageKey = "kakariko_session"

// Identity is the operator the API issued the token for.
type Identity struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Lastname string `json:"lastname,omitempty"`
	Email    string `json:"email"`
}

// Session is the credential plus identity held for the current login.
type Session struct {
	Token     string     `json:"token"`
	User      Identity   `json:"user"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Persister keeps exactly one Session in durable storage.
type Persister interface {
	// Load returns ErrNoSession when nothing is stored.
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Remove(ctx context.Context) error
}

// SessionReader is the read-only view handed to everything except the auth controller.
type SessionReader interface {
	Get() (Session, bool)
}

// CredentialStore is the process-wide holder of the current Session. Reads are
// served from memory so every Set/Clear is visible to all readers as soon as it
// returns; the persister is written through afterwards.
type CredentialStore struct {
	mu      sync.RWMutex
	current *Session
	persist Persister
}

// NewCredentialStore returns an empty store. p may be nil for memory-only use.
func NewCredentialStore(p Persister) *CredentialStore {
	return &CredentialStore{persist: p}
}

// OpenCredentialStore rehydrates the store from p. Unreadable records are
// logged and treated as unauthenticated.
func OpenCredentialStore(ctx context.Context, p Persister) *CredentialStore {
	s := NewCredentialStore(p)
	if p == nil {
		return s
	}
	sess, err := p.Load(ctx)
	switch {
	case err == nil:
		if sess.Token != "" {
			s.current = &sess
		}
	case errors.Is(err, ErrNoSession):
	default:
		log.Printf("[session] ignoring stored session: %v", err)
	}
	return s
}

// Get returns a copy of the current session.
func (s *CredentialStore) Get() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Set replaces the current session. The in-memory value is updated even when
// persisting fails; the persistence error is returned to the caller.
func (s *CredentialStore) Set(ctx context.Context, sess Session) error {
	s.mu.Lock()
	copied := sess
	s.current = &copied
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	return s.persist.Save(ctx, sess)
}

// Clear drops the session. Calling it on an empty store is a no-op apart from
// the persister removal.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	return s.persist.Remove(ctx)
}

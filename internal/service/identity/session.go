package identity

import (
	"sync"

	"dronefood-storefront/internal/domain"
)

// Provider is what the cart and tracker read identity from.
type Provider interface {
	CurrentIdentity() *domain.Identity
	Loading() bool
}

// Session holds the identity of one browser session. A new Session starts in the
// loading state until the first request resolves the bearer token (or its absence).
type Session struct {
	mu       sync.RWMutex
	identity *domain.Identity
	loading  bool
}

func NewSession() *Session {
	return &Session{loading: true}
}

// CurrentIdentity returns a copy of the signed-in identity, or nil for a guest.
func (s *Session) CurrentIdentity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// BeginLoading marks identity as unresolved.
func (s *Session) BeginLoading() {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
}

// SetIdentity records id (nil for a guest) and ends loading.
func (s *Session) SetIdentity(id *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == nil {
		s.identity = nil
	} else {
		cp := *id
		s.identity = &cp
	}
	s.loading = false
}

// Clear signs the session out.
func (s *Session) Clear() {
	s.SetIdentity(nil)
}

package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Registry tracks active exam sessions by an opaque token. Sessions live only
// in memory; a finished or exited session is removed by its owner and only
// the result survives (in the store).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session and returns its token.
func (r *Registry) Add(s *Session) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.sessions[token] = s
	r.mu.Unlock()
	return token, nil
}

// Get returns the session for a token.
func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Remove drops a session from the registry.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

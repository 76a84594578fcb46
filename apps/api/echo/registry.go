package echoapi

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

const (
	defaultSessionIdleTimeout = 2 * time.Hour
	reapInterval              = 5 * time.Minute
)

// SessionRegistry keeps the live editing sessions, keyed by session id.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*certificate.Session
	idle     time.Duration
	log      core.Logger
}

func NewSessionRegistry(idle time.Duration, log core.Logger) *SessionRegistry {
	if idle <= 0 {
		idle = defaultSessionIdleTimeout
	}
	return &SessionRegistry{sessions: make(map[string]*certificate.Session), idle: idle, log: log}
}

func (r *SessionRegistry) Add(s *certificate.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns session `id` if it belongs to `ownerID`.
func (r *SessionRegistry) Get(id, ownerID string) (*certificate.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, false
	}
	return s, true
}

// Remove closes session `id` if it belongs to `ownerID`.
func (r *SessionRegistry) Remove(id, ownerID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && s.OwnerID == ownerID {
		delete(r.sessions, id)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes the sessions idle since before `now - idle timeout`.
func (r *SessionRegistry) Reap(now time.Time) int {
	var stale []*certificate.Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActive()) > r.idle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 && r.log != nil {
		r.log.Debug("reaped idle sessions", map[string]interface{}{"count": len(stale)})
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}

// Close closes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*certificate.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Registry holds the live sessions. Idle sessions are evicted after ttl.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
	ttl      time.Duration
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		ttl:      ttl,
	}
}

// SetNotifier attaches the notifier used by sessions created from now on.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Notifier = n
}

func (r *Registry) Create(kind Kind) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := New(ulid.Make().String(), kind, r.deps)
	r.sessions[s.ID] = s
	logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"kind":       kind,
	}).Info("Session created successfully")
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	r.forget(id)
	logrus.WithField("session_id", id).Info("Session deleted successfully")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// forget drops notifier state kept for a session, if the notifier keeps any.
func (r *Registry) forget(id string) {
	r.mu.RLock()
	n := r.deps.Notifier
	r.mu.RUnlock()
	if f, ok := n.(interface{ Forget(sessionID string) }); ok {
		f.Forget(id)
	}
}

// Sweep evicts sessions idle since before now-ttl and returns how many went.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		r.forget(s.ID)
		logrus.WithField("session_id", s.ID).Debug("Idle session evicted")
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				logrus.WithField("evicted", n).Info("Swept idle sessions")
			}
		}
	}
}

// CloseAll closes every session, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
}

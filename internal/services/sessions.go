package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/Conceptual-Machines/beatgrid-api/internal/playback"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids
var ErrSessionNotFound = errors.New("session not found")

// Session is one client's playback of a grid
type Session struct {
	ID        string
	Key       analysis.Key
	UserID    string // caller that created the session, empty when unauthenticated
	Tracker   *playback.Tracker
	CreatedAt time.Time

	lastSeen time.Time
}

// OwnedBy reports whether userID may drive the session.
func (s *Session) OwnedBy(userID string) bool {
	return s.UserID == "" || s.UserID == userID
}

// Grid returns the grid the session plays.
func (s *Session) Grid() *beatgrid.Grid {
	return s.Tracker.Grid()
}

// SessionRegistry holds live playback sessions in memory
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for grid on behalf of userID
func (r *SessionRegistry) Create(grid *beatgrid.Grid, key analysis.Key, userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	session := &Session{
		ID:        uuid.New().String(),
		Key:       key,
		UserID:    userID,
		Tracker:   playback.NewTracker(grid),
		CreatedAt: now,
		lastSeen:  now,
	}
	r.sessions[session.ID] = session
	return session
}

// Get returns a live session and marks it as used
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || r.expired(session) {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	session.lastSeen = r.now()
	return session, nil
}

// Delete ends a session
func (r *SessionRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of sessions, expired ones included until swept
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops idle sessions and returns how many were removed
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if r.expired(session) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every interval until ctx is done. onSweep, if set, receives
// the number of live sessions after each sweep.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration, onSweep func(live int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
			if onSweep != nil {
				onSweep(r.Len())
			}
		}
	}
}

func (r *SessionRegistry) expired(s *Session) bool {
	return r.ttl > 0 && r.now().Sub(s.lastSeen) > r.ttl
}

package registry

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/example/restaurant-matching/internal/observability"
	"github.com/example/restaurant-matching/internal/session"
)

// InMemory is the authoritative single-process session registry. It only
// guards the map; per-session serialization is the session's own concern, so
// cross-session operations never contend.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*session.Session)}
}

// Create allocates a fresh id, invokes build under the registry lock, and
// inserts the result. Collisions on the 8-byte id are regenerated.
func (r *InMemory) Create(build func(id string) (*session.Session, error)) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := newID()
		if _, taken := r.sessions[id]; taken {
			continue
		}
		s, err := build(id)
		if err != nil {
			return nil, err
		}
		r.sessions[id] = s
		return s, nil
	}
}

func (r *InMemory) Get(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *InMemory) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		observability.SessionsActive.Dec()
	}
}

func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle drops sessions with no mutation since the cutoff and returns how
// many were removed. Votes and rosters go with them; this is the only expiry
// policy in the process.
func (r *InMemory) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			delete(r.sessions, id)
			observability.SessionsActive.Dec()
			removed++
		}
	}
	return removed
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

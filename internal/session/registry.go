// Package session keeps interactive journey sessions alive between requests.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
	"github.com/seuros/pathflow/internal/store"
)

var ErrNotFound = errors.New("session not found")

// Entry is one live session. Events are serialized by the entry lock, except
// funnel saves which run outside it so concurrent events see the save in
// flight and are refused.
type Entry struct {
	ID    string
	Query store.PathQuery

	mu       sync.Mutex
	session  *journey.Session
	lastSeen atomic.Int64
}

// Do runs fn with exclusive access to the session.
func (e *Entry) Do(fn func(s *journey.Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// View snapshots the session.
func (e *Entry) View() journey.View {
	var v journey.View
	e.Do(func(s *journey.Session) { v = s.View() })
	return v
}

// Save persists the current funnel draft.
func (e *Entry) Save(ctx context.Context) (*journey.FunnelDefinition, error) {
	e.mu.Lock()
	draft, ok := e.session.Draft()
	e.mu.Unlock()
	if !ok {
		return nil, journey.ErrNotDrafting
	}

	def, err := draft.Save(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.session.EndFunnel(draft)
	e.mu.Unlock()
	return def, nil
}

func (e *Entry) touch(now time.Time) {
	e.lastSeen.Store(now.UnixNano())
}

func (e *Entry) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastSeen.Load()))
}

// Registry owns the live sessions and evicts idle ones.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		ttl:      ttl,
		now:      time.Now,
		newID:    uuid.NewString,
		stopChan: make(chan struct{}),
	}
}

// Create registers a session built for q.
func (r *Registry) Create(q store.PathQuery, s *journey.Session) *Entry {
	e := &Entry{ID: r.newID(), Query: q, session: s}
	e.touch(r.now())

	r.mu.Lock()
	r.entries[e.ID] = e
	r.mu.Unlock()
	return e
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.touch(r.now())
	return e, nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep evicts sessions idle for longer than the TTL.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		if e.idleSince(now) > r.ttl {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Start runs Sweep every interval until Stop.
func (r *Registry) Start(interval time.Duration) {
	logging.L().Info("starting session janitor", "interval", interval, "ttl", r.ttl)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					logging.L().Info("evicted idle sessions", "count", n)
				}
			case <-r.stopChan:
				return
			}
		}
	}()
}

func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

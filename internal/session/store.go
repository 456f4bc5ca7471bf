package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Tyrowin/pokerroom/internal/idgen"
)

// Store is the process-scoped registry of sessions.
//
// The map itself is guarded by an RWMutex that is only held for lookups and
// inserts. Each session lives in its own entry with its own mutex, so
// mutations of unrelated sessions never contend.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	newID   idgen.Generator
	now     func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *Session
	deleted bool
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithIDGenerator sets the generator used for session identifiers.
func WithIDGenerator(gen idgen.Generator) StoreOption {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock sets the time source used for creation and activity timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		newID:   idgen.NewGenerator(idgen.DefaultLength),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new empty session and returns its identifier. An empty
// name is replaced with "Session <id>". Identifiers that collide with an
// existing session are discarded and redrawn.
func (s *Store) Create(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for !s.availableLocked(id) {
		id = s.newID()
	}

	if name == "" {
		name = fmt.Sprintf("Session %s", id)
	}
	s.entries[id] = &entry{session: newSession(id, name, s.now())}
	return id
}

// Get returns a copy of the session with the given identifier.
func (s *Store) Get(id string) (Session, bool) {
	var out Session
	err := s.update(id, func(sess *Session) error {
		out = sess.snapshot()
		return nil
	})
	return out, err == nil
}

// Exists reports whether id resolves to a live session.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reap removes every session that has no registered clients and has seen no
// activity for at least idle. It returns the removed identifiers.
func (s *Store) Reap(idle time.Duration) []string {
	s.mu.RLock()
	candidates := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.RUnlock()

	cutoff := s.now().Add(-idle)
	var reaped []string
	for id, e := range candidates {
		e.mu.Lock()
		expired := !e.deleted && len(e.session.Clients) == 0 && !e.session.lastActive.After(cutoff)
		if expired {
			e.deleted = true
		}
		e.mu.Unlock()
		if !expired {
			continue
		}

		s.mu.Lock()
		if s.entries[id] == e {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		reaped = append(reaped, id)
	}
	return reaped
}

func (s *Store) availableLocked(id string) bool {
	if id == "" {
		return false
	}
	_, taken := s.entries[id]
	return !taken
}

// update runs fn with exclusive access to the session. Mutations made by fn
// are visible to other callers only after it returns.
func (s *Store) update(id string, fn func(*Session) error) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return fn(e.session)
}

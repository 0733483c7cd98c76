package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an operation requires an existing session.
var ErrNotFound = errors.New("session not found")

// Store serializes all mutations to a given session. Two concurrent requests
// for the same id never both observe the pre-mutation state; cross-session
// operations proceed in parallel.
type Store interface {
	// Update runs fn with the session for id under that session's lock.
	// Returns ErrNotFound when the session does not exist. When fn returns
	// an error the session is left exactly as it was.
	Update(id string, fn func(*Session) error) error
	// UpdateOrCreate behaves like Update but creates the session at initial
	// values first when absent.
	UpdateOrCreate(id string, fn func(*Session) error) error
	// Snapshot returns a copy of the session state for reads.
	Snapshot(id string) (Session, bool)
	// Delete removes the session entirely. Deleting an absent id is a no-op.
	Delete(id string)
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// MemoryStore is the in-process Store backend: a map guarded by an outer
// lock, with a per-session lock for mutation. Sessions live for the process
// lifetime; there is no expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*entry{}, now: time.Now}
}

func (m *MemoryStore) lookup(id string, create bool) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		if !create {
			return nil
		}
		now := m.now()
		s := &Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.Init()
		e = &entry{sess: s}
		m.entries[id] = e
	}
	return e
}

func (m *MemoryStore) update(id string, create bool, fn func(*Session) error) error {
	e := m.lookup(id, create)
	if e == nil {
		return errors.Wrapf(ErrNotFound, "session %s", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Work on a clone so a failed transition leaves the session untouched.
	work := e.sess.Clone()
	if err := fn(work); err != nil {
		return err
	}
	work.UpdatedAt = m.now()
	e.sess = work
	return nil
}

func (m *MemoryStore) Update(id string, fn func(*Session) error) error {
	return m.update(id, false, fn)
}

func (m *MemoryStore) UpdateOrCreate(id string, fn func(*Session) error) error {
	return m.update(id, true, fn)
}

func (m *MemoryStore) Snapshot(id string) (Session, bool) {
	e := m.lookup(id, false)
	if e == nil {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.sess.Clone(), true
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

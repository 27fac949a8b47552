package session

import (
	"context"
	"github.com/pkg/errors"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are never returned
// and RunJanitor removes them for good.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	cursors  map[string]string
	Clock    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]memoryEntry{},
		cursors:  map[string]string{},
	}
}

func (m *MemoryStore) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *MemoryStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memoryEntry{session: s, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Find(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || !m.now().Before(e.expiresAt) {
		return Session{}, errors.Wrapf(ErrSessionNotFound, "ID: %s", id)
	}
	return e.session, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return errors.Wrapf(ErrSessionNotFound, "ID: %s", id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) LastSeenRequest(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[email], nil
}

func (m *MemoryStore) SetLastSeenRequest(_ context.Context, email string, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[email] = requestID
	return nil
}

// RemoveExpired drops expired sessions and returns how many were removed.
func (m *MemoryStore) RemoveExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) RunJanitor(ctx context.Context, ticker *time.Ticker, l logger) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.RemoveExpired(); n > 0 {
				l.Debugf("RunJanitor: Removed %d expired Session(s)", n)
			}
		}
	}
}

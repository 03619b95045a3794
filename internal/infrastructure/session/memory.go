package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type memoryEntry struct {
	session   *domain.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Callers always receive copies, so
// nothing they do leaks back into the store outside Update.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.sessions[session.ID]; ok && !s.expired(entry, now) {
		return ErrSessionExists
	}
	s.sessions[session.ID] = memoryEntry{session: session.Clone(), expiresAt: s.expiry(now)}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok || s.expired(entry, s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Update runs fn against a copy and stores it only when fn succeeds. Every
// successful update extends the session's lifetime.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.sessions[id]
	if !ok || s.expired(entry, now) {
		return nil, domain.ErrSessionNotFound
	}

	working := entry.session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.sessions[id] = memoryEntry{session: working, expiresAt: s.expiry(now)}
	return working.Clone(), nil
}

// Sweep drops expired sessions and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 && logger != nil {
					logger.WithField("removed", n).Debug("expired import sessions swept")
				}
			}
		}
	}()
}

func (s *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(entry.expiresAt)
}

func (s *MemoryStore) expiry(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/partscout/backend/internal/domain"
)

// sessionItem is one stored session with its expiration
type sessionItem struct {
	Data       []byte
	Revision   int64
	Expiration time.Time
}

// MemorySessionStore is a thread-safe in-memory SessionRepository with TTL support
type MemorySessionStore struct {
	data  map[string]sessionItem
	ttl   time.Duration
	mutex sync.RWMutex
	done  chan struct{}
	once  sync.Once
}

// NewMemorySessionStore creates a new in-memory session store. Sessions
// expire ttl after their last save.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	store := &MemorySessionStore{
		data: make(map[string]sessionItem),
		ttl:  ttl,
		done: make(chan struct{}),
	}

	// Start cleanup goroutine to remove expired sessions every minute
	go store.cleanupExpired(time.Minute)

	return store
}

// Get retrieves a session by ID
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*domain.SearchSession, error) {
	s.mutex.RLock()
	item, exists := s.data[id]
	s.mutex.RUnlock()

	if !exists || time.Now().After(item.Expiration) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	// Decode a private copy so callers never share slices with the store
	var session domain.SearchSession
	if err := json.Unmarshal(item.Data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// Save stores the session if the stored revision still equals expectedRevision
func (s *MemorySessionStore) Save(ctx context.Context, session *domain.SearchSession, expectedRevision int64) error {
	// Serialize to JSON to match what the Redis store keeps
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	current := int64(0)
	if item, exists := s.data[session.ID]; exists && !now.After(item.Expiration) {
		current = item.Revision
	}
	if current != expectedRevision {
		return fmt.Errorf("%w: %s is at revision %d, expected %d", domain.ErrStaleSession, session.ID, current, expectedRevision)
	}

	s.data[session.ID] = sessionItem{
		Data:       data,
		Revision:   session.Revision,
		Expiration: now.Add(s.ttl),
	}
	return nil
}

// Size returns the current number of stored sessions, expired ones included
func (s *MemorySessionStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// Close stops the cleanup goroutine
func (s *MemorySessionStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// cleanupExpired removes expired sessions periodically
func (s *MemorySessionStore) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

func (s *MemorySessionStore) removeExpired(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, item := range s.data {
		if now.After(item.Expiration) {
			delete(s.data, id)
		}
	}
}

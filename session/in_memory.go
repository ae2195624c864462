package session

import (
	"context"
	"sync"
)

// InMemoryStore is a volatile Store keeping snapshots in a process local
// map. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Snapshots are cloned on the way in and out.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]Snapshot)}
}

// Load returns a clone of the stored snapshot.
func (s *InMemoryStore) Load(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	snap.UserInfo = snap.UserInfo.Clone()

	return snap, nil
}

// Save stores a sanitized clone of snap.
func (s *InMemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.SessionID] = sanitize(snap)

	return nil
}

// Delete removes the snapshot for id.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, id)

	return nil
}

// Len returns the number of stored snapshots.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snapshots)
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

// MemoryStore is an in-memory CandidateStore used in tests and for
// ephemeral runs. The map itself is guarded by a read-write mutex;
// each candidate additionally carries its own lock so that status and
// statistics updates on different ids never contend.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	byIdentity map[string]string // identity -> candidate id
}

type memoryEntry struct {
	mu sync.Mutex
	c  mining.Candidate
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		byIdentity: make(map[string]string),
	}
}

// List returns snapshots of all candidates ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]mining.Candidate, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]mining.Candidate, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.c.Clone())
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// Get returns a snapshot of one candidate.
func (s *MemoryStore) Get(_ context.Context, id string) (mining.Candidate, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return mining.Candidate{}, errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Clone(), nil
}

// Merge folds the incoming candidate into the record sharing its
// identity, or creates a new record.
func (s *MemoryStore) Merge(_ context.Context, c mining.Candidate) (mining.Candidate, error) {
	if err := c.Validate(); err != nil {
		return mining.Candidate{}, err
	}

	now := time.Now().UTC()
	identity := c.Identity()

	s.mu.Lock()
	id, exists := s.byIdentity[identity]
	var e *memoryEntry
	if exists {
		e = s.entries[id]
	} else {
		stored := c.Clone()
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		if stored.Status == "" {
			stored.Status = mining.StatusCandidate
		}
		e = &memoryEntry{c: stored}
		s.entries[stored.ID] = e
		s.byIdentity[identity] = stored.ID
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if exists {
		e.c.Fold(c)
		e.c.UpdatedAt = now
	}
	return e.c.Clone(), nil
}

// SetStatus applies a lifecycle transition.
func (s *MemoryStore) SetStatus(_ context.Context, id string, status mining.Status) error {
	if !status.Valid() {
		return errors.Wrapf(mining.ErrInvalidTransition, "unknown status %q", status)
	}

	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !mining.CanTransition(e.c.Status, status) {
		return errors.Wrapf(mining.ErrInvalidTransition, "candidate %s: %s -> %s", id, e.c.Status, status)
	}
	e.c.Status = status
	e.c.UpdatedAt = time.Now().UTC()
	return nil
}

// SetNotes replaces reviewer notes on a candidate.
func (s *MemoryStore) SetNotes(_ context.Context, id string, notes string) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.c.Notes = notes
	e.c.UpdatedAt = time.Now().UTC()
	return nil
}

// Count returns the number of stored candidates.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

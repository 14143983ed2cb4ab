// Package store owns the shared candidate set and its lifecycle.
// It is the only shared mutable resource of the mining core: the
// aggregator writes statistics through Merge, reviewers and the
// gateway flow change status through SetStatus, and the synthesizer
// reads candidates through Get. Implementations serialize operations
// per candidate id while letting different ids proceed independently.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/db"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// CandidateStore defines the persistence interface for candidates.
type CandidateStore interface {
	// List returns all candidates ordered by creation time (then id).
	List(ctx context.Context) ([]mining.Candidate, error)
	// Get returns the candidate with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (mining.Candidate, error)
	// Merge is the aggregator's write path. A candidate sharing the
	// incoming identity (source plus skill or domain) has the incoming
	// statistics folded in, attempt-weighted; otherwise a new record is
	// created with status candidate. Status, notes and creation time of
	// existing records are never touched. Returns the stored record.
	Merge(ctx context.Context, c mining.Candidate) (mining.Candidate, error)
	// SetStatus applies a lifecycle transition, or fails with
	// ErrInvalidTransition (status unchanged) or ErrNotFound.
	SetStatus(ctx context.Context, id string, status mining.Status) error
	// SetNotes replaces the reviewer notes on a candidate.
	SetNotes(ctx context.Context, id string, notes string) error
	// Count returns the number of stored candidates.
	Count(ctx context.Context) (int, error)
	// Close releases any resources held by the store.
	Close() error
}

// Config holds configuration for the candidate store.
type Config struct {
	// Backend selects the implementation: "memory" or "sqlite".
	Backend string `mapstructure:"backend"`
	// DBPath overrides the sqlite database location.
	DBPath string `mapstructure:"db_path"`
}

// New creates the appropriate CandidateStore implementation for the
// given configuration. An empty backend defaults to sqlite.
func New(ctx context.Context, cfg Config) (CandidateStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		dbPath := cfg.DBPath
		if dbPath == "" {
			var err error
			dbPath, err = db.DefaultDBPath()
			if err != nil {
				return nil, err
			}
		}
		return NewSQLiteStore(ctx, dbPath)
	default:
		return nil, errors.Errorf("unknown store backend: %q", cfg.Backend)
	}
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/skillminer/skillminer/pkg/db"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// SQLiteStore implements CandidateStore on a SQLite database. The
// connection pool is pinned to one connection (see db.Configure), so
// candidate writes are serialized through a single writer while WAL
// keeps readers unblocked.
type SQLiteStore struct {
	dbPath string
	db     *sqlx.DB
}

// NewSQLiteStore opens (or creates) the candidate database at dbPath
// and runs pending schema migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	sqlDB, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	runner := db.NewMigrationRunner(sqlDB)
	if err := runner.Run(ctx, Migrations()); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &SQLiteStore{dbPath: dbPath, db: sqlDB}, nil
}

const candidateColumns = `id, source, identity, virtual_domain, url_sample, snapshot_id,
	selectors, workflows, target_skill_id, status, notes, created_at, updated_at`

// List returns all candidates ordered by creation time, then id.
func (s *SQLiteStore) List(ctx context.Context) ([]mining.Candidate, error) {
	var records []dbCandidate
	query := "SELECT " + candidateColumns + " FROM candidates ORDER BY created_at, id"
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, errors.Wrap(err, "failed to list candidates")
	}

	out := make([]mining.Candidate, len(records))
	for i := range records {
		out[i] = records[i].toCandidate()
	}
	return out, nil
}

// Get returns the candidate with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (mining.Candidate, error) {
	var record dbCandidate
	query := "SELECT " + candidateColumns + " FROM candidates WHERE id = ?"
	if err := s.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mining.Candidate{}, errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
		}
		return mining.Candidate{}, errors.Wrap(err, "failed to load candidate")
	}
	return record.toCandidate(), nil
}

// Merge folds the incoming candidate into the record sharing its
// identity, or inserts a new one. The fold happens inside a single
// transaction, so concurrent merges for the same identity serialize.
func (s *SQLiteStore) Merge(ctx context.Context, c mining.Candidate) (mining.Candidate, error) {
	if err := c.Validate(); err != nil {
		return mining.Candidate{}, err
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mining.Candidate{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing dbCandidate
	query := "SELECT " + candidateColumns + " FROM candidates WHERE identity = ?"
	err = tx.GetContext(ctx, &existing, query, c.Identity())

	var stored mining.Candidate
	switch {
	case err == nil:
		stored = existing.toCandidate()
		stored.Fold(c)
		stored.UpdatedAt = now
	case errors.Is(err, sql.ErrNoRows):
		stored = c.Clone()
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
	default:
		return mining.Candidate{}, errors.Wrap(err, "failed to look up candidate identity")
	}

	upsert := `
		INSERT INTO candidates (
			id, source, identity, virtual_domain, url_sample, snapshot_id,
			selectors, workflows, target_skill_id, status, notes, created_at, updated_at
		) VALUES (
			:id, :source, :identity, :virtual_domain, :url_sample, :snapshot_id,
			:selectors, :workflows, :target_skill_id, :status, :notes, :created_at, :updated_at
		)
		ON CONFLICT(id) DO UPDATE SET
			virtual_domain = excluded.virtual_domain,
			url_sample = excluded.url_sample,
			snapshot_id = excluded.snapshot_id,
			selectors = excluded.selectors,
			workflows = excluded.workflows,
			target_skill_id = excluded.target_skill_id,
			updated_at = excluded.updated_at
	`
	if _, err := tx.NamedExecContext(ctx, upsert, fromCandidate(stored)); err != nil {
		return mining.Candidate{}, errors.Wrap(err, "failed to save candidate")
	}

	if err := tx.Commit(); err != nil {
		return mining.Candidate{}, errors.Wrap(err, "failed to commit merge")
	}
	return stored, nil
}

// SetStatus applies a lifecycle transition inside a transaction; the
// row is left unchanged when the transition is invalid.
func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status mining.Status) error {
	if !status.Valid() {
		return errors.Wrapf(mining.ErrInvalidTransition, "unknown status %q", status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var current string
	err = tx.GetContext(ctx, &current, "SELECT status FROM candidates WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
		}
		return errors.Wrap(err, "failed to load candidate status")
	}

	if !mining.CanTransition(mining.Status(current), status) {
		return errors.Wrapf(mining.ErrInvalidTransition, "candidate %s: %s -> %s", id, current, status)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE candidates SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update candidate status")
	}

	return tx.Commit()
}

// SetNotes replaces reviewer notes on a candidate.
func (s *SQLiteStore) SetNotes(ctx context.Context, id string, notes string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE candidates SET notes = ?, updated_at = ? WHERE id = ?",
		notes, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update candidate notes")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check notes update")
	}
	if affected == 0 {
		return errors.Wrapf(mining.ErrNotFound, "candidate %s", id)
	}
	return nil
}

// Count returns the number of stored candidates.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM candidates"); err != nil {
		return 0, errors.Wrap(err, "failed to count candidates")
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/db"
)

const createCandidatesTable = `
CREATE TABLE IF NOT EXISTS candidates (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	identity TEXT NOT NULL UNIQUE,
	virtual_domain TEXT,
	url_sample TEXT,
	snapshot_id TEXT,
	selectors TEXT NOT NULL DEFAULT '[]',
	workflows TEXT NOT NULL DEFAULT '[]',
	target_skill_id TEXT,
	status TEXT NOT NULL DEFAULT 'candidate',
	notes TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

// Migrations returns the candidate store schema migrations.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			Version:     20250612090000,
			Description: "Create candidates table",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(createCandidatesTable); err != nil {
					return errors.Wrap(err, "failed to create candidates table")
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				if _, err := tx.Exec("DROP TABLE IF EXISTS candidates"); err != nil {
					return errors.Wrap(err, "failed to drop candidates table")
				}
				return nil
			},
		},
		{
			Version:     20250612090100,
			Description: "Add candidate indexes",
			Up: func(tx *sql.Tx) error {
				indexes := []string{
					"CREATE INDEX IF NOT EXISTS idx_candidates_created_at ON candidates(created_at)",
					"CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status)",
					"CREATE INDEX IF NOT EXISTS idx_candidates_source ON candidates(source)",
				}
				for _, index := range indexes {
					if _, err := tx.Exec(index); err != nil {
						return errors.Wrap(err, "failed to create index")
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				drops := []string{
					"DROP INDEX IF EXISTS idx_candidates_source",
					"DROP INDEX IF EXISTS idx_candidates_status",
					"DROP INDEX IF EXISTS idx_candidates_created_at",
				}
				for _, drop := range drops {
					if _, err := tx.Exec(drop); err != nil {
						return errors.Wrap(err, "failed to drop index")
					}
				}
				return nil
			},
		},
	}
}

package store

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

// JSONField is a generic type for handling JSON marshaling and
// unmarshaling of structured columns.
type JSONField[T any] struct {
	Data T
}

// Scan implements the sql.Scanner interface for reading from the database.
func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		bytes = []byte(str)
	}

	return json.Unmarshal(bytes, &j.Data)
}

// Value implements the driver.Valuer interface for writing to the database.
func (j JSONField[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

// dbCandidate represents the candidates table structure.
type dbCandidate struct {
	ID            string                           `db:"id"`
	Source        string                           `db:"source"`
	Identity      string                           `db:"identity"`
	VirtualDomain *string                          `db:"virtual_domain"`
	URLSample     *string                          `db:"url_sample"`
	SnapshotID    *string                          `db:"snapshot_id"`
	Selectors     JSONField[[]mining.SelectorStat] `db:"selectors"`
	Workflows     JSONField[[]mining.WorkflowStat] `db:"workflows"`
	TargetSkillID *string                          `db:"target_skill_id"`
	Status        string                           `db:"status"`
	Notes         *string                          `db:"notes"`
	CreatedAt     time.Time                        `db:"created_at"`
	UpdatedAt     time.Time                        `db:"updated_at"`
}

// toCandidate converts a database record to the domain model.
func (d *dbCandidate) toCandidate() mining.Candidate {
	c := mining.Candidate{
		ID:        d.ID,
		Source:    mining.Source(d.Source),
		Selectors: d.Selectors.Data,
		Workflows: d.Workflows.Data,
		Status:    mining.Status(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.VirtualDomain != nil {
		c.VirtualDomain = *d.VirtualDomain
	}
	if d.URLSample != nil {
		c.URLSample = *d.URLSample
	}
	if d.SnapshotID != nil {
		c.SnapshotID = *d.SnapshotID
	}
	if d.TargetSkillID != nil {
		c.TargetSkillID = *d.TargetSkillID
	}
	if d.Notes != nil {
		c.Notes = *d.Notes
	}
	return c
}

// fromCandidate converts the domain model to a database record.
func fromCandidate(c mining.Candidate) *dbCandidate {
	d := &dbCandidate{
		ID:        c.ID,
		Source:    string(c.Source),
		Identity:  c.Identity(),
		Selectors: JSONField[[]mining.SelectorStat]{Data: c.Selectors},
		Workflows: JSONField[[]mining.WorkflowStat]{Data: c.Workflows},
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.VirtualDomain != "" {
		d.VirtualDomain = &c.VirtualDomain
	}
	if c.URLSample != "" {
		d.URLSample = &c.URLSample
	}
	if c.SnapshotID != "" {
		d.SnapshotID = &c.SnapshotID
	}
	if c.TargetSkillID != "" {
		d.TargetSkillID = &c.TargetSkillID
	}
	if c.Notes != "" {
		d.Notes = &c.Notes
	}
	return d
}

package mining

import (
	"time"

	"github.com/pkg/errors"
)

// RecordKind discriminates the payload of a raw telemetry record.
type RecordKind string

const (
	// KindSelector marks a record describing one use of a locator.
	KindSelector RecordKind = "selector"
	// KindWorkflow marks a record describing one workflow attempt.
	KindWorkflow RecordKind = "workflow"
)

// Outcome is the result of the observed interaction.
type Outcome string

const (
	// OutcomeSuccess marks a successful interaction.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure marks a failed interaction.
	OutcomeFailure Outcome = "failure"
)

// RawRecord is one raw interaction observation as produced by the
// telemetry providers (shadow replay, sentinel monitor, manual entry).
// Exactly one of the selector or workflow payloads is populated,
// according to Kind.
type RawRecord struct {
	Source        Source     `json:"source"`
	VirtualDomain string     `json:"virtualDomain,omitempty"`
	TargetSkillID string     `json:"targetSkillId,omitempty"`
	Kind          RecordKind `json:"kind"`

	// Selector payload
	SelectorName string `json:"selectorName,omitempty"`
	Selector     string `json:"selector,omitempty"`

	// Workflow payload
	WorkflowName   string   `json:"workflowName,omitempty"`
	Description    string   `json:"description,omitempty"`
	Steps          []string `json:"steps,omitempty"`
	FailurePattern string   `json:"failurePattern,omitempty"`

	Outcome    Outcome   `json:"outcome"`
	URL        string    `json:"url,omitempty"`
	SnapshotID string    `json:"snapshotId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate checks that the record is well formed. All failures wrap
// ErrMalformedRecord so aggregation can skip and count them uniformly.
func (r *RawRecord) Validate() error {
	if !r.Source.Valid() {
		return errors.Wrapf(ErrMalformedRecord, "unknown source %q", r.Source)
	}
	switch r.Kind {
	case KindSelector:
		if r.Selector == "" {
			return errors.Wrap(ErrMalformedRecord, "selector record with empty selector")
		}
	case KindWorkflow:
		if r.WorkflowName == "" {
			return errors.Wrap(ErrMalformedRecord, "workflow record with empty workflow name")
		}
	default:
		return errors.Wrapf(ErrMalformedRecord, "unknown record kind %q", r.Kind)
	}
	if r.Outcome != OutcomeSuccess && r.Outcome != OutcomeFailure {
		return errors.Wrapf(ErrMalformedRecord, "unknown outcome %q", r.Outcome)
	}
	if r.Timestamp.IsZero() {
		return errors.Wrap(ErrMalformedRecord, "record without timestamp")
	}
	return nil
}

// GroupKey returns the aggregation grouping key: source plus the
// target skill when already known, otherwise the virtual domain.
func (r *RawRecord) GroupKey() string {
	if r.TargetSkillID != "" {
		return string(r.Source) + "/skill:" + r.TargetSkillID
	}
	return string(r.Source) + "/domain:" + r.VirtualDomain
}

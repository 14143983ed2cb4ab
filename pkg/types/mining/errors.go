package mining

import "github.com/pkg/errors"

// Error kinds surfaced by the mining core. Callers match them with
// errors.Is after the usual contextual wrapping.
var (
	// ErrNotFound indicates an unknown candidate id or a missing cached proposal.
	ErrNotFound = errors.New("candidate not found")
	// ErrInvalidTransition indicates an illegal candidate status change.
	// The candidate's status is left unchanged when this is returned.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyCandidate indicates a candidate carrying neither selectors
	// nor workflows. Such candidates are never stored or synthesized.
	ErrEmptyCandidate = errors.New("candidate has no selectors or workflows")
	// ErrMalformedRecord indicates a telemetry record that could not be
	// validated. Aggregation skips and counts these, it never aborts.
	ErrMalformedRecord = errors.New("malformed telemetry record")
	// ErrSynthesis indicates a failure while projecting a candidate into
	// a change proposal. The proposal cache keeps its prior value.
	ErrSynthesis = errors.New("proposal synthesis failed")
)

// Package mining defines the shared data model for the telemetry mining
// pipeline: raw interaction records, mined skill-update candidates with
// their per-selector and per-workflow statistics, and the change
// proposals synthesized from them for review.
package mining

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Source identifies the provenance of telemetry.
type Source string

const (
	// SourceShadow marks telemetry from replayed historical sessions.
	SourceShadow Source = "shadow"
	// SourceSentinel marks telemetry from live monitoring of an active agent.
	SourceSentinel Source = "sentinel"
	// SourceManual marks hand-written annotations.
	SourceManual Source = "manual"
)

// Valid reports whether s is a known telemetry source.
func (s Source) Valid() bool {
	switch s {
	case SourceShadow, SourceSentinel, SourceManual:
		return true
	}
	return false
}

// SelectorStat carries accumulated evidence for one locator string.
// Selector is the unique key within a candidate. Success and usage
// counts are kept alongside the derived rate so that later folds stay
// attempt-weighted instead of averaging rates.
type SelectorStat struct {
	Name         string    `json:"name,omitempty"`
	Selector     string    `json:"selector"`
	UsageCount   int       `json:"usageCount"`
	SuccessCount int       `json:"successCount"`
	SuccessRate  float64   `json:"successRate"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// WorkflowStat carries accumulated evidence for one named workflow.
// Steps are opaque action descriptors whose order is significant.
// FailurePatterns has set semantics and is kept sorted.
type WorkflowStat struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Steps           []string `json:"steps"`
	AttemptCount    int      `json:"attemptCount"`
	SuccessCount    int      `json:"successCount"`
	SuccessRate     float64  `json:"successRate"`
	FailurePatterns []string `json:"failurePatterns,omitempty"`
}

// Candidate is a mined, unreviewed bundle of observed selector and
// workflow statistics targeting a skill. ID, Source and CreatedAt are
// immutable after creation; Selectors and Workflows are only rewritten
// by aggregation passes, never by lifecycle operations.
type Candidate struct {
	ID            string         `json:"id"`
	Source        Source         `json:"source"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	VirtualDomain string         `json:"virtualDomain,omitempty"`
	URLSample     string         `json:"urlSample,omitempty"`
	SnapshotID    string         `json:"snapshotId,omitempty"`
	Selectors     []SelectorStat `json:"selectors"`
	Workflows     []WorkflowStat `json:"workflows"`
	TargetSkillID string         `json:"targetSkillId,omitempty"`
	Status        Status         `json:"status"`
	Notes         string         `json:"notes,omitempty"`
}

// Validate checks the candidate invariants: a known source and status,
// at least one selector or workflow, unique selector strings, unique
// workflow names, and rates within [0,1].
func (c *Candidate) Validate() error {
	if !c.Source.Valid() {
		return errors.Errorf("unknown candidate source: %q", c.Source)
	}
	if c.Status != "" && !c.Status.Valid() {
		return errors.Errorf("unknown candidate status: %q", c.Status)
	}
	if len(c.Selectors) == 0 && len(c.Workflows) == 0 {
		return errors.Wrapf(ErrEmptyCandidate, "candidate %s", c.ID)
	}

	seenSelectors := make(map[string]bool, len(c.Selectors))
	for _, s := range c.Selectors {
		if s.Selector == "" {
			return errors.New("selector stat with empty selector string")
		}
		if seenSelectors[s.Selector] {
			return errors.Errorf("duplicate selector %q in candidate", s.Selector)
		}
		seenSelectors[s.Selector] = true
		if s.UsageCount < 0 || s.SuccessCount < 0 || s.SuccessCount > s.UsageCount {
			return errors.Errorf("inconsistent counts for selector %q: %d successes over %d uses", s.Selector, s.SuccessCount, s.UsageCount)
		}
		if s.SuccessRate < 0 || s.SuccessRate > 1 {
			return errors.Errorf("success rate out of range for selector %q: %f", s.Selector, s.SuccessRate)
		}
	}

	seenWorkflows := make(map[string]bool, len(c.Workflows))
	for _, w := range c.Workflows {
		if w.Name == "" {
			return errors.New("workflow stat with empty name")
		}
		if seenWorkflows[w.Name] {
			return errors.Errorf("duplicate workflow %q in candidate", w.Name)
		}
		seenWorkflows[w.Name] = true
		if w.AttemptCount < 0 || w.SuccessCount < 0 || w.SuccessCount > w.AttemptCount {
			return errors.Errorf("inconsistent counts for workflow %q: %d successes over %d attempts", w.Name, w.SuccessCount, w.AttemptCount)
		}
		if w.SuccessRate < 0 || w.SuccessRate > 1 {
			return errors.Errorf("success rate out of range for workflow %q: %f", w.Name, w.SuccessRate)
		}
	}

	return nil
}

// Clone returns a deep copy so stores can hand out snapshots without
// exposing their internal slices.
func (c Candidate) Clone() Candidate {
	out := c
	if c.Selectors != nil {
		out.Selectors = make([]SelectorStat, len(c.Selectors))
		copy(out.Selectors, c.Selectors)
	}
	if c.Workflows != nil {
		out.Workflows = make([]WorkflowStat, len(c.Workflows))
		for i, w := range c.Workflows {
			ww := w
			if w.Steps != nil {
				ww.Steps = append([]string(nil), w.Steps...)
			}
			if w.FailurePatterns != nil {
				ww.FailurePatterns = append([]string(nil), w.FailurePatterns...)
			}
			out.Workflows[i] = ww
		}
	}
	return out
}

// Identity returns the grouping key a candidate was mined under:
// the source plus the target skill when known, otherwise the virtual
// domain. Re-aggregation folds into the candidate sharing this key.
func (c *Candidate) Identity() string {
	if c.TargetSkillID != "" {
		return string(c.Source) + "/skill:" + c.TargetSkillID
	}
	return string(c.Source) + "/domain:" + c.VirtualDomain
}

// Fold merges another candidate's statistics into c, attempt-weighted.
// Selector and workflow entries are matched by their unique keys;
// unmatched entries from other are appended in their discovery order.
// Lifecycle fields (ID, Status, Notes, CreatedAt) are untouched.
func (c *Candidate) Fold(other Candidate) {
	selIdx := make(map[string]int, len(c.Selectors))
	for i, s := range c.Selectors {
		selIdx[s.Selector] = i
	}
	for _, in := range other.Selectors {
		i, ok := selIdx[in.Selector]
		if !ok {
			c.Selectors = append(c.Selectors, in)
			selIdx[in.Selector] = len(c.Selectors) - 1
			continue
		}
		cur := &c.Selectors[i]
		cur.UsageCount += in.UsageCount
		cur.SuccessCount += in.SuccessCount
		cur.SuccessRate = rate(cur.SuccessCount, cur.UsageCount)
		if in.LastSeenAt.After(cur.LastSeenAt) {
			cur.LastSeenAt = in.LastSeenAt
		}
		if cur.Name == "" {
			cur.Name = in.Name
		}
	}

	wfIdx := make(map[string]int, len(c.Workflows))
	for i, w := range c.Workflows {
		wfIdx[w.Name] = i
	}
	for _, in := range other.Workflows {
		i, ok := wfIdx[in.Name]
		if !ok {
			c.Workflows = append(c.Workflows, in)
			wfIdx[in.Name] = len(c.Workflows) - 1
			continue
		}
		cur := &c.Workflows[i]
		cur.AttemptCount += in.AttemptCount
		cur.SuccessCount += in.SuccessCount
		cur.SuccessRate = rate(cur.SuccessCount, cur.AttemptCount)
		if len(in.Steps) > 0 {
			cur.Steps = append([]string(nil), in.Steps...)
		}
		if cur.Description == "" {
			cur.Description = in.Description
		}
		cur.FailurePatterns = MergePatterns(cur.FailurePatterns, in.FailurePatterns)
	}

	if c.VirtualDomain == "" {
		c.VirtualDomain = other.VirtualDomain
	}
	if c.URLSample == "" {
		c.URLSample = other.URLSample
	}
	if c.SnapshotID == "" {
		c.SnapshotID = other.SnapshotID
	}
	if c.TargetSkillID == "" {
		c.TargetSkillID = other.TargetSkillID
	}
}

// MergePatterns unions two failure-pattern sets and returns the result
// sorted, with empty strings dropped.
func MergePatterns(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, p := range a {
		if p != "" {
			set[p] = true
		}
	}
	for _, p := range b {
		if p != "" {
			set[p] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func rate(successes, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(successes) / float64(attempts)
}

package mining

import "time"

// ChangeAction tags a proposal change entry with the operation it
// represents. Only add-or-update exists today; the tag is carried so a
// future remove or deprecate kind slots in without reshaping the schema.
type ChangeAction string

// ActionAddOrUpdate upserts the entry into the target skill.
const ActionAddOrUpdate ChangeAction = "add-or-update"

// SelectorChange is one proposed selector operation.
type SelectorChange struct {
	Action      ChangeAction `json:"action"`
	Name        string       `json:"name,omitempty"`
	Selector    string       `json:"selector"`
	UsageCount  int          `json:"usageCount"`
	SuccessRate float64      `json:"successRate"`
}

// WorkflowChange is one proposed workflow operation.
type WorkflowChange struct {
	Action          ChangeAction `json:"action"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Steps           []string     `json:"steps"`
	SuccessRate     float64      `json:"successRate"`
	FailurePatterns []string     `json:"failurePatterns,omitempty"`
}

// ChangeProposal is the reviewable projection of a candidate into
// concrete skill changes. It is derived, never persisted independently
// of its source candidate; the proposal cache holds the latest one per
// candidate id. Change slices are 1:1 ordered projections of the
// candidate's selectors and workflows at the moment of synthesis.
type ChangeProposal struct {
	TargetSkillID   string           `json:"targetSkillId,omitempty"`
	NewSkillID      string           `json:"newSkillId"`
	Summary         string           `json:"summary"`
	SelectorChanges []SelectorChange `json:"selectorChanges"`
	WorkflowChanges []WorkflowChange `json:"workflowChanges"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// Package synthesizer projects candidates into reviewable change
// proposals. Synthesize itself is a pure transform; the surrounding
// Service adds the single side effect of writing the result into the
// proposal cache and coalesces concurrent synthesis per candidate id.
package synthesizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ResolveSkillID resolves the skill a candidate's proposal targets.
// Precedence: the candidate's known target skill verbatim, then the
// normalized virtual domain, then a generated fallback id. The
// fallback is random rather than clock-derived so that concurrent
// generations can never collide.
func ResolveSkillID(c mining.Candidate) string {
	if c.TargetSkillID != "" {
		return c.TargetSkillID
	}
	if c.VirtualDomain != "" {
		return NormalizeDomain(c.VirtualDomain)
	}
	return fallbackSkillID()
}

// NormalizeDomain converts a virtual domain into a skill identifier by
// replacing every run of characters outside [A-Za-z0-9] with a single
// hyphen and trimming hyphens at the edges.
func NormalizeDomain(domain string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(domain, "-"), "-")
}

func fallbackSkillID() string {
	id := uuid.New().String()
	return "skill-" + strings.ReplaceAll(id, "-", "")[:8]
}

// Synthesize deterministically maps a candidate to a change proposal:
// every selector and workflow projects 1:1, in order, to an
// add-or-update change entry. Apart from GeneratedAt (and the fallback
// skill id when the candidate names neither a skill nor a domain) the
// result is a pure function of the candidate. A candidate violating
// the non-empty invariant fails with a validation error.
func Synthesize(c mining.Candidate) (mining.ChangeProposal, error) {
	if err := c.Validate(); err != nil {
		return mining.ChangeProposal{}, errors.Wrap(err, "cannot synthesize proposal")
	}

	p := mining.ChangeProposal{
		TargetSkillID:   c.TargetSkillID,
		NewSkillID:      ResolveSkillID(c),
		SelectorChanges: make([]mining.SelectorChange, 0, len(c.Selectors)),
		WorkflowChanges: make([]mining.WorkflowChange, 0, len(c.Workflows)),
		GeneratedAt:     time.Now().UTC(),
	}

	for _, s := range c.Selectors {
		p.SelectorChanges = append(p.SelectorChanges, mining.SelectorChange{
			Action:      mining.ActionAddOrUpdate,
			Name:        s.Name,
			Selector:    s.Selector,
			UsageCount:  s.UsageCount,
			SuccessRate: s.SuccessRate,
		})
	}

	for _, w := range c.Workflows {
		steps := append([]string(nil), w.Steps...)
		patterns := append([]string(nil), w.FailurePatterns...)
		p.WorkflowChanges = append(p.WorkflowChanges, mining.WorkflowChange{
			Action:          mining.ActionAddOrUpdate,
			Name:            w.Name,
			Description:     w.Description,
			Steps:           steps,
			SuccessRate:     w.SuccessRate,
			FailurePatterns: patterns,
		})
	}

	p.Summary = summarize(c, p)

	return p, nil
}

func summarize(c mining.Candidate, p mining.ChangeProposal) string {
	verb := "Create"
	if c.TargetSkillID != "" {
		verb = "Update"
	}

	summary := fmt.Sprintf("%s skill %q with %d selector change(s) and %d workflow change(s)",
		verb, p.NewSkillID, len(p.SelectorChanges), len(p.WorkflowChanges))
	if c.VirtualDomain != "" {
		summary += fmt.Sprintf(" observed on %s", c.VirtualDomain)
	}
	summary += fmt.Sprintf(" from %s telemetry", c.Source)
	return summary
}

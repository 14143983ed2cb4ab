package synthesizer

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

func minedCandidate() mining.Candidate {
	return mining.Candidate{
		ID:            "cand-1",
		Source:        mining.SourceShadow,
		Status:        mining.StatusCandidate,
		VirtualDomain: "shop.example.com",
		CreatedAt:     time.Now().UTC(),
		Selectors: []mining.SelectorStat{
			{Name: "buy button", Selector: ".buy-btn", UsageCount: 12, SuccessCount: 9, SuccessRate: 0.75},
			{Selector: "#search", UsageCount: 3, SuccessCount: 3, SuccessRate: 1},
		},
		Workflows: []mining.WorkflowStat{
			{Name: "checkout", Steps: []string{"open-cart", "pay"}, AttemptCount: 4, SuccessCount: 3, SuccessRate: 0.75, FailurePatterns: []string{"captcha"}},
		},
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"shop.example.com", "shop-example-com"},
		{"shop..example..com", "shop-example-com"},
		{"-shop.example.com-", "shop-example-com"},
		{"Shop_Example/COM", "Shop-Example-COM"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDomain(tt.domain), tt.domain)
	}
}

func TestResolveSkillID(t *testing.T) {
	t.Run("target skill wins verbatim", func(t *testing.T) {
		c := minedCandidate()
		c.TargetSkillID = "s1"
		assert.Equal(t, "s1", ResolveSkillID(c))
	})

	t.Run("virtual domain is normalized", func(t *testing.T) {
		c := minedCandidate()
		assert.Equal(t, "shop-example-com", ResolveSkillID(c))
	})

	t.Run("fallback ids never collide", func(t *testing.T) {
		c := minedCandidate()
		c.VirtualDomain = ""

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := ResolveSkillID(c)
			assert.True(t, strings.HasPrefix(id, "skill-"))
			assert.False(t, seen[id], "duplicate fallback id %s", id)
			seen[id] = true
		}
	})
}

func TestSynthesizeProjectsOneToOne(t *testing.T) {
	c := minedCandidate()

	p, err := Synthesize(c)
	require.NoError(t, err)

	assert.Equal(t, "shop-example-com", p.NewSkillID)
	assert.Empty(t, p.TargetSkillID)
	assert.False(t, p.GeneratedAt.IsZero())

	require.Len(t, p.SelectorChanges, len(c.Selectors))
	for i, sc := range p.SelectorChanges {
		assert.Equal(t, mining.ActionAddOrUpdate, sc.Action)
		assert.Equal(t, c.Selectors[i].Selector, sc.Selector)
		assert.Equal(t, c.Selectors[i].UsageCount, sc.UsageCount)
		assert.Equal(t, c.Selectors[i].SuccessRate, sc.SuccessRate)
	}

	require.Len(t, p.WorkflowChanges, len(c.Workflows))
	wc := p.WorkflowChanges[0]
	assert.Equal(t, mining.ActionAddOrUpdate, wc.Action)
	assert.Equal(t, "checkout", wc.Name)
	assert.Equal(t, []string{"open-cart", "pay"}, wc.Steps)
	assert.Equal(t, []string{"captcha"}, wc.FailurePatterns)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	c := minedCandidate()

	a, err := Synthesize(c)
	require.NoError(t, err)
	b, err := Synthesize(c)
	require.NoError(t, err)

	// Apart from GeneratedAt, equal inputs give equal proposals.
	a.GeneratedAt = time.Time{}
	b.GeneratedAt = time.Time{}
	assert.Equal(t, a, b)
}

func TestSynthesizeEmptyCandidateFails(t *testing.T) {
	c := minedCandidate()
	c.Selectors = nil
	c.Workflows = nil

	_, err := Synthesize(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mining.ErrEmptyCandidate))
}

func TestSynthesizeSummary(t *testing.T) {
	t.Run("new skill", func(t *testing.T) {
		p, err := Synthesize(minedCandidate())
		require.NoError(t, err)
		assert.Contains(t, p.Summary, "Create skill")
		assert.Contains(t, p.Summary, "2 selector change(s)")
		assert.Contains(t, p.Summary, "1 workflow change(s)")
		assert.Contains(t, p.Summary, "shadow telemetry")
	})

	t.Run("known skill", func(t *testing.T) {
		c := minedCandidate()
		c.TargetSkillID = "shop-checkout"
		p, err := Synthesize(c)
		require.NoError(t, err)
		assert.Contains(t, p.Summary, `Update skill "shop-checkout"`)
	})
}

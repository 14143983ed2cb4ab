package store

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

func testCandidate(domain string) mining.Candidate {
	return mining.Candidate{
		Source:        mining.SourceShadow,
		VirtualDomain: domain,
		Selectors: []mining.SelectorStat{
			{Selector: ".buy-btn", UsageCount: 10, SuccessCount: 8, SuccessRate: 0.8, LastSeenAt: time.Now().UTC()},
		},
		Workflows: []mining.WorkflowStat{
			{Name: "checkout", Steps: []string{"open-cart", "pay"}, AttemptCount: 4, SuccessCount: 3, SuccessRate: 0.75},
		},
	}
}

// runStoreConformanceTests exercises the CandidateStore contract
// against a backend. Both implementations must pass identically.
func runStoreConformanceTests(t *testing.T, newStore func(t *testing.T) CandidateStore) {
	ctx := context.Background()

	t.Run("merge creates candidate with defaults", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		stored, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
		assert.Equal(t, mining.StatusCandidate, stored.Status)
		assert.False(t, stored.CreatedAt.IsZero())

		got, err := st.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
		assert.Equal(t, "shop.example.com", got.VirtualDomain)
		require.Len(t, got.Selectors, 1)
		assert.Equal(t, 10, got.Selectors[0].UsageCount)
	})

	t.Run("merge rejects empty candidate", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		empty := testCandidate("shop.example.com")
		empty.Selectors = nil
		empty.Workflows = nil

		_, err := st.Merge(ctx, empty)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrEmptyCandidate))

		count, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("merge folds same identity instead of duplicating", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		first, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)

		incoming := testCandidate("shop.example.com")
		incoming.Selectors = []mining.SelectorStat{
			{Selector: ".buy-btn", UsageCount: 2, SuccessCount: 1, SuccessRate: 0.5, LastSeenAt: time.Now().UTC()},
		}
		incoming.Workflows = nil
		incoming.Selectors = append(incoming.Selectors,
			mining.SelectorStat{Selector: "#search", UsageCount: 1, SuccessCount: 1, SuccessRate: 1})

		second, err := st.Merge(ctx, incoming)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		count, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.Len(t, second.Selectors, 2)
		assert.Equal(t, 12, second.Selectors[0].UsageCount)
		assert.Equal(t, 9, second.Selectors[0].SuccessCount)
		assert.InDelta(t, 0.75, second.Selectors[0].SuccessRate, 1e-9)
		assert.Equal(t, "#search", second.Selectors[1].Selector)
	})

	t.Run("merge preserves status and notes of existing record", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		first, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)
		require.NoError(t, st.SetStatus(ctx, first.ID, mining.StatusApproved))
		require.NoError(t, st.SetNotes(ctx, first.ID, "reviewed"))

		_, err = st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)

		got, err := st.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, mining.StatusApproved, got.Status)
		assert.Equal(t, "reviewed", got.Notes)
		assert.Equal(t, first.CreatedAt.Unix(), got.CreatedAt.Unix())
	})

	t.Run("different identities create separate candidates", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		_, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)
		_, err = st.Merge(ctx, testCandidate("news.example.com"))
		require.NoError(t, err)

		count, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("get unknown id returns not found", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		_, err := st.Get(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrNotFound))
	})

	t.Run("list orders by creation time", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		a := testCandidate("a.example.com")
		a.CreatedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		b := testCandidate("b.example.com")
		b.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		_, err := st.Merge(ctx, a)
		require.NoError(t, err)
		_, err = st.Merge(ctx, b)
		require.NoError(t, err)

		candidates, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "b.example.com", candidates[0].VirtualDomain)
		assert.Equal(t, "a.example.com", candidates[1].VirtualDomain)
	})

	t.Run("lifecycle transitions", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		stored, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)

		// candidate -> merged is not a legal edge
		err = st.SetStatus(ctx, stored.ID, mining.StatusMerged)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrInvalidTransition))

		got, err := st.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, mining.StatusCandidate, got.Status)

		require.NoError(t, st.SetStatus(ctx, stored.ID, mining.StatusApproved))
		require.NoError(t, st.SetStatus(ctx, stored.ID, mining.StatusMerged))

		// merged is terminal
		err = st.SetStatus(ctx, stored.ID, mining.StatusApproved)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrInvalidTransition))
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		stored, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)

		require.NoError(t, st.SetStatus(ctx, stored.ID, mining.StatusRejected))

		err = st.SetStatus(ctx, stored.ID, mining.StatusApproved)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrInvalidTransition))
	})

	t.Run("set status on unknown id returns not found", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		err := st.SetStatus(ctx, "nope", mining.StatusApproved)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrNotFound))
	})

	t.Run("set notes", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		stored, err := st.Merge(ctx, testCandidate("shop.example.com"))
		require.NoError(t, err)

		require.NoError(t, st.SetNotes(ctx, stored.ID, "needs a second look"))

		got, err := st.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "needs a second look", got.Notes)

		err = st.SetNotes(ctx, "nope", "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, mining.ErrNotFound))
	})
}

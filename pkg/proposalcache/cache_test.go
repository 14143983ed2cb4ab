package proposalcache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

func TestCachePutGet(t *testing.T) {
	c := New()

	_, ok := c.Get("cand-1")
	assert.False(t, ok)

	c.Put("cand-1", mining.ChangeProposal{NewSkillID: "shop-example-com"})

	p, ok := c.Get("cand-1")
	require.True(t, ok)
	assert.Equal(t, "shop-example-com", p.NewSkillID)
	assert.Equal(t, 1, c.Len())
}

func TestCacheOverwriteIsLastWriteWins(t *testing.T) {
	c := New()

	c.Put("cand-1", mining.ChangeProposal{Summary: "first"})
	c.Put("cand-1", mining.ChangeProposal{Summary: "second"})

	p, ok := c.Get("cand-1")
	require.True(t, ok)
	assert.Equal(t, "second", p.Summary)
	assert.Equal(t, 1, c.Len())
}

func TestCacheDelete(t *testing.T) {
	c := New()

	c.Put("cand-1", mining.ChangeProposal{})
	c.Delete("cand-1")

	_, ok := c.Get("cand-1")
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	c.Delete("cand-1")
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("cand-%d", i)
			c.Put(key, mining.ChangeProposal{NewSkillID: key})
			p, ok := c.Get(key)
			assert.True(t, ok)
			assert.Equal(t, key, p.NewSkillID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, c.Len())
}

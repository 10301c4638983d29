package handle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_InsertGetRemove(t *testing.T) {
	tbl := NewTable()
	h := tbl.Insert(11, 0, "/foo", 0)
	require.NotZero(t, h.ID)

	got, ok := tbl.Get(h.ID)
	require.True(t, ok)
	assert.Equal(t, 11, got.Fd)
	assert.Equal(t, 0, got.BranchIndex)
	assert.Equal(t, "/foo", got.Path)

	removed, ok := tbl.Remove(h.ID)
	require.True(t, ok)
	assert.Same(t, h, removed)

	_, ok = tbl.Get(h.ID)
	assert.False(t, ok)
}

func TestTable_IDsAreMonotonicAndUnique(t *testing.T) {
	tbl := NewTable()
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		h := tbl.Insert(i, 0, "/x", 0)
		assert.False(t, seen[h.ID], "duplicate handle ID")
		seen[h.ID] = true
	}
	assert.Equal(t, 100, tbl.Len())
}

func TestTable_ConcurrentInsertGetRemove(t *testing.T) {
	tbl := NewTable()
	var wg sync.WaitGroup
	ids := make(chan uint64, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := tbl.Insert(i, i%3, "/p", 0)
			ids <- h.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if h, ok := tbl.Get(id); ok {
				tbl.Remove(h.ID)
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, tbl.Len())
}

func TestHandle_MigrateSwapsFdAndBranch(t *testing.T) {
	tbl := NewTable()
	h := tbl.Insert(5, 0, "/foo", 0)

	old := h.Migrate(9, 1)
	assert.Equal(t, 5, old)
	assert.Equal(t, 9, h.ActiveFd())
	assert.Equal(t, 1, h.BranchIndex)
}

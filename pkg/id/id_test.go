package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtIsSortable(t *testing.T) {
	g := NewGenerator()
	ids := make([]string, 1000)
	for i := range ids {
		s, err := g.At(time.Now())
		require.NoError(t, err)
		ids[i] = s
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := map[string]bool{}
	for _, s := range ids {
		require.Len(t, s, 26)
		require.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}

func TestAtAndTime(t *testing.T) {
	g := NewGenerator()
	when := time.Date(2023, 7, 6, 18, 50, 48, 123e6, time.UTC)

	s, err := g.At(when)
	require.NoError(t, err)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, when.Equal(got), "got %s", got)

	_, err = Time("not-a-ulid")
	require.Error(t, err)
}

func TestGeneratorConcurrent(t *testing.T) {
	g := NewGenerator()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = map[string]bool{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s, err := g.At(time.Now())
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				all[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, all, 1600)
}

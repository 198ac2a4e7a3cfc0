package workqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	q := New(2)
	q.Push(Job{Path: "a.xml", Start: 0, End: -1})
	q.Push(Job{Path: "b.xml", Start: 0, End: -1})
	q.PushSentinel()

	j1, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a.xml", j1.Path)

	j2, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b.xml", j2.Path)

	j3, ok := q.Pop()
	require.True(t, ok)
	assert.True(t, IsSentinel(j3))
}

func TestSentinelRequeueFanOut(t *testing.T) {
	const workers = 4
	q := New(0)
	q.PushSentinel()

	var wg sync.WaitGroup
	seen := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			job, ok := q.Pop()
			require.True(t, ok)
			require.True(t, IsSentinel(job))
			seen[id] = true
			q.PushSentinel()
		}(i)
	}
	wg.Wait()

	for i, s := range seen {
		assert.True(t, s, "worker %d never observed the sentinel", i)
	}
}

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriorityQueueOrdersByPriorityThenAge(t *testing.T) {
	pq := newPriorityQueue()

	base := time.Now()
	pq.Add(&queueEntry{id: "low-old", priority: 0, createdAt: base})
	pq.Add(&queueEntry{id: "low-new", priority: 0, createdAt: base.Add(time.Second)})
	pq.Add(&queueEntry{id: "high", priority: 10, createdAt: base.Add(2 * time.Second)})

	require.Equal(t, "high", pq.PopNext().id)
	require.Equal(t, "low-old", pq.PopNext().id)
	require.Equal(t, "low-new", pq.PopNext().id)
	require.Nil(t, pq.PopNext())
}

func TestPriorityQueuePeekDoesNotRemove(t *testing.T) {
	pq := newPriorityQueue()
	pq.Add(&queueEntry{id: "a", priority: 1, createdAt: time.Now()})

	require.Equal(t, "a", pq.Peek().id)
	require.Equal(t, 1, pq.Size())
	require.Equal(t, "a", pq.PopNext().id)
	require.Equal(t, 0, pq.Size())
}

func TestPriorityQueueRemove(t *testing.T) {
	pq := newPriorityQueue()
	pq.Add(&queueEntry{id: "a", priority: 1, createdAt: time.Now()})
	pq.Add(&queueEntry{id: "b", priority: 1, createdAt: time.Now()})

	require.True(t, pq.Remove("a"))
	require.False(t, pq.Remove("a"))
	require.Equal(t, 1, pq.Size())
	require.Equal(t, "b", pq.PopNext().id)
}

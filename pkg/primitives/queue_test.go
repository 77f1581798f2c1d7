package primitives

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockingQueuePollEmpty(t *testing.T) {
	q := NewBlockingQueue[int]()
	v, ok := q.Take(-1)
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestBlockingQueuePutThenTake(t *testing.T) {
	q := NewBlockingQueue[string]()
	q.Put("a")
	q.Put("b")

	v, ok := q.Take(-1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = q.Take(0)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestBlockingQueueTakeTimesOut(t *testing.T) {
	q := NewBlockingQueue[int]()
	start := time.Now()
	_, ok := q.Take(50)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBlockingQueueWaitForeverWakesOnPut(t *testing.T) {
	q := NewBlockingQueue[int]()
	done := make(chan int, 1)
	go func() {
		v, ok := q.Take(0)
		if ok {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Take(0) never woke up")
	}
}

func TestBlockingQueueLen(t *testing.T) {
	q := NewBlockingQueue[int]()
	assert.Equal(t, 0, q.Len())
	q.Put(1)
	q.Put(2)
	assert.Equal(t, 2, q.Len())
	q.Take(-1)
	assert.Equal(t, 1, q.Len())
}

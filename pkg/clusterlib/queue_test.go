package clusterlib_test

import (
	"testing"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *clusterlib.Queue {
	t.Helper()
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	q, err := group.Queue("work", true)
	require.NoError(t, err)
	return q
}

func TestQueueFIFOOrdering(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Put("first"))
	require.NoError(t, q.Put("second"))
	require.NoError(t, q.Put("third"))

	size, err := q.Size()
	require.NoError(t, err)
	require.Equal(t, 3, size)

	first, err := q.Take()
	require.NoError(t, err)
	require.Equal(t, "first", first)

	second, err := q.Take()
	require.NoError(t, err)
	require.Equal(t, "second", second)

	size, err = q.Size()
	require.NoError(t, err)
	require.Equal(t, 1, size)
}

func TestQueueTakeOnEmptyFails(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Take()
	require.Error(t, err)
}

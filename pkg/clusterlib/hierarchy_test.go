package clusterlib_test

import (
	"testing"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/stretchr/testify/require"
)

func TestRootCannotBeLockedOrRemoved(t *testing.T) {
	f := newTestFactory(t)
	root := f.Root()

	require.Error(t, root.AcquireLock(false))
	require.Error(t, root.ReleaseLock(false))
	require.Error(t, root.Remove(false))
}

func TestApplicationGroupNodeHierarchy(t *testing.T) {
	f := newTestFactory(t)

	app, err := f.Root().Application("myapp", true)
	require.NoError(t, err)
	require.Equal(t, "myapp", app.Name())

	// Loading without create must return the same object.
	again, err := f.Root().Application("myapp", false)
	require.NoError(t, err)
	require.Equal(t, app.Key(), again.Key())

	group, err := app.Group("workers", true)
	require.NoError(t, err)

	node, err := group.Node("n1", true)
	require.NoError(t, err)
	require.Equal(t, clusterlib.StateReady, node.State())

	parent, err := node.Parent()
	require.NoError(t, err)
	require.Equal(t, group.Key(), parent.Key())

	names, err := group.Nodes()
	require.NoError(t, err)
	require.Contains(t, names, "n1")
}

func TestGetNonexistentWithoutCreateReturnsNil(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("absent", false)
	require.NoError(t, err)
	require.Nil(t, app)
}

func TestInvalidNameRejected(t *testing.T) {
	f := newTestFactory(t)
	_, err := f.Root().Application("bad/name", true)
	require.ErrorIs(t, err, clusterlib.ErrInvalidArguments)
}

func TestRemoveTransitionsToRemovedAndRejectsFurtherUse(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("gone", true)
	require.NoError(t, err)

	require.NoError(t, app.Remove(false))
	require.Equal(t, clusterlib.StateRemoved, app.State())

	_, err = app.Group("g", true)
	require.ErrorIs(t, err, clusterlib.ErrObjectRemoved)
}

func TestRecursiveRemoveBuriesDescendants(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("deep", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	node, err := group.Node("n", true)
	require.NoError(t, err)

	require.Error(t, app.Remove(false), "non-recursive remove of a non-empty Notifyable must fail")

	require.NoError(t, app.Remove(true))
	require.Equal(t, clusterlib.StateRemoved, app.State())
	require.Equal(t, clusterlib.StateRemoved, group.State())
	require.Equal(t, clusterlib.StateRemoved, node.State())
}

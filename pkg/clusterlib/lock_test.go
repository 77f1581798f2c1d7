package clusterlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockIsReentrantForSameHandle(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)

	require.NoError(t, app.AcquireLock(false))
	require.True(t, app.HasLock())
	require.NoError(t, app.AcquireLock(false))

	require.NoError(t, app.ReleaseLock(false))
	require.True(t, app.HasLock(), "ref count must still be 1 after one release of two acquires")

	require.NoError(t, app.ReleaseLock(false))
	require.False(t, app.HasLock())
}

func TestReleaseWithoutAcquireIsBenign(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)

	require.NoError(t, app.ReleaseLock(false))
	require.False(t, app.HasLock())
}

package clusterlib_test

import (
	"testing"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/stretchr/testify/require"
)

func newTestPropertyList(t *testing.T) *clusterlib.PropertyList {
	t.Helper()
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	pl, err := group.PropertyList("props", true)
	require.NoError(t, err)
	return pl
}

func TestPropertyListSetPublishReadBack(t *testing.T) {
	pl := newTestPropertyList(t)

	require.NoError(t, pl.Set("region", "us-east"))
	require.NoError(t, pl.Set("tier", "gold"))
	require.NoError(t, pl.Publish())

	values := pl.Values()
	require.Equal(t, "us-east", values["region"])
	require.Equal(t, "gold", values["tier"])
}

func TestPropertyListRejectsReservedCharacters(t *testing.T) {
	pl := newTestPropertyList(t)

	require.ErrorIs(t, pl.Set("bad;key", "v"), clusterlib.ErrInvalidArguments)
	require.ErrorIs(t, pl.Set("key", "bad=value"), clusterlib.ErrInvalidArguments)
}

func TestPropertyListEraseThenPublish(t *testing.T) {
	pl := newTestPropertyList(t)

	require.NoError(t, pl.Set("a", "1"))
	require.NoError(t, pl.Publish())
	require.NoError(t, pl.Erase("a"))
	require.NoError(t, pl.Publish())

	_, ok := pl.Get("a")
	require.False(t, ok)
}

package clusterlib_test

import (
	"testing"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/clusterlib/clusterlib/pkg/distribution"
	"github.com/stretchr/testify/require"
)

func TestDataDistributionPublishAndFindCoveringNode(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	dd, err := group.DataDistribution("shards", true)
	require.NoError(t, err)

	dd.SetShards([]distribution.Shard{
		{Begin: 0, End: ^uint64(0) / 2, Target: distribution.Target{App: "app", Group: "g", Node: "n1"}},
		{Begin: ^uint64(0)/2 + 1, End: ^uint64(0), Target: distribution.Target{App: "app", Group: "g", Node: "n2"}},
	})
	require.NoError(t, dd.Publish())
	require.True(t, dd.IsCovered())

	target, ok := dd.FindCoveringNode("some-routing-key")
	require.True(t, ok)
	require.Contains(t, []string{"n1", "n2"}, target.Node)
}

func TestDataDistributionOverridesTakePrecedence(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	dd, err := group.DataDistribution("shards", true)
	require.NoError(t, err)

	dd.SetShards([]distribution.Shard{
		{Begin: 0, End: ^uint64(0), Target: distribution.Target{App: "app", Group: "g", Node: "default"}},
	})
	dd.SetOverrides([]distribution.Override{
		{Pattern: "^special-.*", Target: distribution.Target{App: "app", Group: "g", Node: "special"}},
	})
	require.NoError(t, dd.Publish())

	target, ok := dd.FindCoveringNode("special-request")
	require.True(t, ok)
	require.Equal(t, "special", target.Node)

	target, ok = dd.FindCoveringNode("ordinary-request")
	require.True(t, ok)
	require.Equal(t, "default", target.Node)
}

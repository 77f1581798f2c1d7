package clusterlib_test

import (
	"testing"
	"time"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/stretchr/testify/require"
)

func TestServerPublishesHealthAndWrapsLeaderElection(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	node, err := group.Node("n1", true)
	require.NoError(t, err)

	checks := make(chan struct{}, 8)
	server, err := clusterlib.NewServer(f, node, func() (bool, string) {
		checks <- struct{}{}
		return true, "ok"
	}, 20*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(server.Stop)

	select {
	case <-checks:
	case <-time.After(time.Second):
		t.Fatal("health check never ran")
	}

	require.Eventually(t, func() bool {
		return node.ClientState() == clusterlib.ClientStateHealthy
	}, time.Second, 10*time.Millisecond)

	elected := make(chan struct{}, 1)
	require.NoError(t, server.TryToBecomeLeader(func() { elected <- struct{}{} }, nil))
	select {
	case <-elected:
	default:
		t.Fatal("server did not become leader as sole bidder")
	}
	require.True(t, server.AmITheLeader())

	require.NoError(t, server.GiveUpLeadership())
	require.False(t, server.AmITheLeader())
}

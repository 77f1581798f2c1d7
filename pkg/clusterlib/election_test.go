package clusterlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleBidderBecomesLeaderImmediately(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)

	elected := make(chan struct{}, 1)
	require.NoError(t, group.TryToBecomeLeader(func() { elected <- struct{}{} }, nil))

	select {
	case <-elected:
	default:
		t.Fatal("onElected was not invoked for the sole bidder")
	}
	require.True(t, group.AmITheLeader())

	require.NoError(t, group.GiveUpLeadership())
	require.False(t, group.AmITheLeader())
}

func TestSecondBidderWaitsBehindFirst(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)

	firstElected := make(chan struct{}, 1)
	require.NoError(t, group.TryToBecomeLeader(func() { firstElected <- struct{}{} }, nil))
	<-firstElected
	require.True(t, group.AmITheLeader())

	// A second Group handle bidding in the same underlying election
	// (as a second Server process would) must not become leader while
	// the first bid is still outstanding.
	second, err := app.Group("g", false)
	require.NoError(t, err)
	require.Equal(t, group.Key(), second.Key())

	secondElected := make(chan struct{}, 1)
	require.NoError(t, second.TryToBecomeLeader(func() { secondElected <- struct{}{} }, nil))
	select {
	case <-secondElected:
		t.Fatal("second bidder was elected while the first bid was outstanding")
	default:
	}
	require.False(t, second.AmITheLeader())
}

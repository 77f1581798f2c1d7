package clusterlib_test

import (
	"context"
	"testing"
	"time"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/clusterlib/clusterlib/pkg/repository/raftrepo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestProcessSlotStateAndExecArgsRoundTrip(t *testing.T) {
	f := newTestFactory(t)
	app, err := f.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	node, err := group.Node("n", true)
	require.NoError(t, err)
	slot, err := node.ProcessSlot("slot0", true)
	require.NoError(t, err)

	require.NoError(t, slot.SetDesiredState(clusterlib.ProcessStateRunning))
	require.NoError(t, slot.SetCurrentState(clusterlib.ProcessStateStarted))
	require.NoError(t, slot.SetExecArgs(clusterlib.ExecArgs{
		Env:     []string{"FOO=bar", "BAZ=qux"},
		Path:    "/usr/bin/worker",
		Command: "worker --flag",
	}))
	require.NoError(t, slot.SetPID(4242))
	require.NoError(t, slot.SetPortVector([]int{8080, 8081}))
	require.NoError(t, slot.SetReservationName("res-1"))

	require.Equal(t, clusterlib.ProcessStateRunning, slot.DesiredState())
	require.Equal(t, clusterlib.ProcessStateStarted, slot.CurrentState())
	require.Equal(t, 4242, slot.PID())
	require.Equal(t, []int{8080, 8081}, slot.PortVector())
	require.Equal(t, "res-1", slot.ReservationName())

	args := slot.ExecArgs()
	require.Equal(t, "/usr/bin/worker", args.Path)
	require.Equal(t, "worker --flag", args.Command)
	require.ElementsMatch(t, []string{"FOO=bar", "BAZ=qux"}, args.Env)
}

func TestProcessSlotRefreshReadsBackPublishedState(t *testing.T) {
	dataDir := t.TempDir()
	repo, err := raftrepo.NewSingleNodeForTest(t.Name(), dataDir)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, repo.WaitForLeader(ctx))
	t.Cleanup(func() { _ = repo.Close() })

	writer := clusterlib.NewFactoryOps(repo, zerolog.Nop())
	t.Cleanup(func() { writer.Shutdown(); writer.Wait() })
	app, err := writer.Root().Application("app", true)
	require.NoError(t, err)
	group, err := app.Group("g", true)
	require.NoError(t, err)
	node, err := group.Node("n", true)
	require.NoError(t, err)
	slot, err := node.ProcessSlot("slot0", true)
	require.NoError(t, err)
	require.NoError(t, slot.SetCurrentState(clusterlib.ProcessStateRunning))
	require.NoError(t, slot.SetPID(99))

	reader := clusterlib.NewFactoryOps(repo, zerolog.Nop())
	t.Cleanup(func() { reader.Shutdown(); reader.Wait() })
	readerApp, err := reader.Root().Application("app", false)
	require.NoError(t, err)
	readerGroup, err := readerApp.Group("g", false)
	require.NoError(t, err)
	readerNode, err := readerGroup.Node("n", false)
	require.NoError(t, err)
	readerSlot, err := readerNode.ProcessSlot("slot0", false)
	require.NoError(t, err)
	require.NotNil(t, readerSlot)

	require.NoError(t, readerSlot.Refresh())
	require.Equal(t, clusterlib.ProcessStateRunning, readerSlot.CurrentState())
	require.Equal(t, 99, readerSlot.PID())
}

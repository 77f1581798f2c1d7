package raftrepo

import (
	"context"
	"testing"
	"time"

	"github.com/clusterlib/clusterlib/pkg/repository"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := NewSingleNodeForTest("node1", t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.WaitForLeader(ctx))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateAndGetNodeData(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	path, err := r.CreateNode(ctx, "/clusterlib/1.0/root", []byte("hello"), repository.FlagNone)
	require.NoError(t, err)
	require.Equal(t, "/clusterlib/1.0/root", path)

	data, stat, err := r.GetNodeData(ctx, path, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
	require.Equal(t, int64(0), stat.Version)
}

func TestCreateExistingFails(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateNode(ctx, "/x", nil, repository.FlagNone)
	require.NoError(t, err)
	_, err = r.CreateNode(ctx, "/x", nil, repository.FlagNone)
	require.ErrorIs(t, err, repository.ErrNodeExists)
}

func TestSequenceNodesGetDistinctNames(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p1, err := r.CreateNode(ctx, "/q/bid-", nil, repository.FlagSequence)
	require.NoError(t, err)
	p2, err := r.CreateNode(ctx, "/q/bid-", nil, repository.FlagSequence)
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
	require.Contains(t, p1, "/q/bid-")
	require.Contains(t, p2, "/q/bid-")
}

func TestSetNodeDataVersionMismatch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateNode(ctx, "/n", []byte("v0"), repository.FlagNone)
	require.NoError(t, err)

	_, err = r.SetNodeData(ctx, "/n", []byte("v1"), 1)
	require.ErrorIs(t, err, repository.ErrVersionMismatch)

	stat, err := r.SetNodeData(ctx, "/n", []byte("v1"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), stat.Version)
}

func TestDeleteRecursive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateNode(ctx, "/app", nil, repository.FlagNone)
	require.NoError(t, err)
	_, err = r.CreateNode(ctx, "/app/groups", nil, repository.FlagNone)
	require.NoError(t, err)
	_, err = r.CreateNode(ctx, "/app/groups/g1", nil, repository.FlagNone)
	require.NoError(t, err)

	_, err = r.DeleteNode(ctx, "/app", false, nil)
	require.ErrorIs(t, err, repository.ErrNodeNotEmpty)

	existed, err := r.DeleteNode(ctx, "/app", true, nil)
	require.NoError(t, err)
	require.True(t, existed)

	exists, err := r.Exists(ctx, "/app/groups/g1", nil)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetNodeChildren(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateNode(ctx, "/g", nil, repository.FlagNone)
	require.NoError(t, err)
	_, err = r.CreateNode(ctx, "/g/a", nil, repository.FlagNone)
	require.NoError(t, err)
	_, err = r.CreateNode(ctx, "/g/b", nil, repository.FlagNone)
	require.NoError(t, err)

	children, err := r.GetNodeChildren(ctx, "/g", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, children)
}

func TestExistsWatchFiresOnCreate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	fired := make(chan repository.WatchEvent, 1)
	exists, err := r.Exists(ctx, "/watched", func(ev repository.WatchEvent) { fired <- ev })
	require.NoError(t, err)
	require.False(t, exists)

	_, err = r.CreateNode(ctx, "/watched", nil, repository.FlagNone)
	require.NoError(t, err)

	select {
	case ev := <-fired:
		require.Equal(t, repository.EventCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("watch did not fire")
	}
}

func TestEphemeralNodeSweptOnClose(t *testing.T) {
	dataDir := t.TempDir()
	r, err := NewSingleNodeForTest("node1", dataDir)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.WaitForLeader(ctx))

	_, err = r.CreateNode(context.Background(), "/ephemeral", nil, repository.FlagEphemeral)
	require.NoError(t, err)

	require.NoError(t, r.Close())

	paths, err := r.store.sessionEphemerals(r.sessionID)
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestSync(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	fired := make(chan repository.WatchEvent, 1)
	err := r.Sync(ctx, "/anything", func(ev repository.WatchEvent) { fired <- ev })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("sync watch did not fire")
	}
}

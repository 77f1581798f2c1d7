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

// newTestFactory boots a single-node raftrepo.Repository and a
// FactoryOps on top of it, tearing both down at test end.
func newTestFactory(t *testing.T) *clusterlib.FactoryOps {
	t.Helper()
	repo, err := raftrepo.NewSingleNodeForTest(t.Name(), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, repo.WaitForLeader(ctx))

	f := clusterlib.NewFactoryOps(repo, zerolog.Nop())
	t.Cleanup(func() {
		f.Shutdown()
		f.Wait()
		_ = repo.Close()
	})
	return f
}

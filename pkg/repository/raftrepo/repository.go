// Package raftrepo is a reference implementation of
// repository.Repository backed by hashicorp/raft for replication and
// go.etcd.io/bbolt for local storage.
//
// Writes (CreateNode, DeleteNode, SetNodeData) are only accepted on the
// current raft leader; reads are served from the local bbolt store of
// whichever member the call lands on, so a follower's reads may briefly
// lag the leader's writes until Sync is used to catch up.
package raftrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clusterlib/clusterlib/pkg/repository"
	"github.com/hashicorp/raft"
)

const applyTimeout = 5 * time.Second

// Repository implements repository.Repository.
type Repository struct {
	cluster   *cluster
	store     *store
	watches   *watchRegistry
	sessionID string
}

var _ repository.Repository = (*Repository)(nil)

// New bootstraps a brand new single-node cluster rooted at cfg.DataDir,
// listening on cfg.BindAddr for raft traffic.
func New(cfg Config) (*Repository, error) {
	c, err := bootstrap(cfg)
	if err != nil {
		return nil, err
	}
	return &Repository{cluster: c, store: c.store, watches: c.fsm.watches, sessionID: newSessionID()}, nil
}

// Join constructs a Repository that joins an existing cluster; the
// caller is responsible for invoking AddVoter against the leader once
// this member is reachable.
func Join(cfg Config) (*Repository, error) {
	c, err := join(cfg)
	if err != nil {
		return nil, err
	}
	return &Repository{cluster: c, store: c.store, watches: c.fsm.watches, sessionID: newSessionID()}, nil
}

// NewSingleNodeForTest builds a single-node cluster with an in-memory
// raft transport, log and snapshot store, for use by tests that need
// real raft replication semantics without sockets. The node store is
// still a bbolt file under dataDir.
func NewSingleNodeForTest(nodeID, dataDir string) (*Repository, error) {
	c, err := bootstrapInmem(nodeID, dataDir)
	if err != nil {
		return nil, err
	}
	return &Repository{cluster: c, store: c.store, watches: c.fsm.watches, sessionID: newSessionID()}, nil
}

func (r *Repository) apply(cmd command) (*applyResult, error) {
	if !r.cluster.IsLeader() {
		return nil, fmt.Errorf("raftrepo: %w: not the leader", repository.ErrInternalsFailure)
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	future := r.cluster.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftrepo: %w: %v", repository.ErrConnectionFailure, err)
	}
	res, ok := future.Response().(*applyResult)
	if !ok {
		return nil, fmt.Errorf("raftrepo: %w: unexpected apply response", repository.ErrInternalsFailure)
	}
	return res, nil
}

func (r *Repository) CreateNode(ctx context.Context, path string, data []byte, flags repository.CreateFlag) (string, error) {
	res, err := r.apply(command{Op: opCreate, Path: path, Data: data, Flags: flags, SessionID: r.sessionID})
	if err != nil {
		return "", err
	}
	if res.Err != nil {
		return "", res.Err
	}
	return res.Path, nil
}

func (r *Repository) DeleteNode(ctx context.Context, path string, recursive bool, version *int64) (bool, error) {
	res, err := r.apply(command{Op: opDelete, Path: path, Recursive: recursive, Version: version})
	if err != nil {
		return false, err
	}
	if res.Err != nil {
		return false, res.Err
	}
	return res.Existed, nil
}

func (r *Repository) Exists(ctx context.Context, path string, watch repository.WatchFunc) (bool, error) {
	_, found, err := r.store.get(path)
	if err != nil {
		return false, fmt.Errorf("raftrepo: %w: %v", repository.ErrInternalsFailure, err)
	}
	r.watches.armExists(path, watch)
	return found, nil
}

func (r *Repository) GetNodeData(ctx context.Context, path string, watch repository.WatchFunc) ([]byte, repository.Stat, error) {
	rec, found, err := r.store.get(path)
	if err != nil {
		return nil, repository.Stat{}, fmt.Errorf("raftrepo: %w: %v", repository.ErrInternalsFailure, err)
	}
	if !found {
		return nil, repository.Stat{}, repository.ErrNoNode
	}
	r.watches.armData(path, watch)
	return rec.Data, repository.Stat{Version: rec.Version}, nil
}

func (r *Repository) SetNodeData(ctx context.Context, path string, data []byte, version int64) (repository.Stat, error) {
	res, err := r.apply(command{Op: opSetData, Path: path, Data: data, Version: &version})
	if err != nil {
		return repository.Stat{}, err
	}
	if res.Err != nil {
		return repository.Stat{}, res.Err
	}
	return repository.Stat{Version: res.Version}, nil
}

func (r *Repository) GetNodeChildren(ctx context.Context, path string, watch repository.WatchFunc) ([]string, error) {
	names, err := r.store.children(path)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: %w: %v", repository.ErrInternalsFailure, err)
	}
	r.watches.armChild(path, watch)
	return names, nil
}

// Sync uses raft's read barrier to block until every command applied
// before this call is reflected in the local store, then fires watch —
// the primitive the FactoryOps synchronize barrier is built on.
func (r *Repository) Sync(ctx context.Context, path string, watch repository.WatchFunc) error {
	future := r.cluster.raft.Barrier(applyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftrepo: %w: %v", repository.ErrConnectionFailure, err)
	}
	if watch != nil {
		watch(repository.WatchEvent{Type: repository.EventChanged, Path: path})
	}
	return nil
}

// Close ends this handle's session: any ephemeral nodes it created are
// swept via a replicated opSession command (skipped if this member
// isn't leader — a non-leader's ephemerals are reaped from the leader's
// own heartbeat-loss detection instead, which is outside this reference
// implementation's scope), then the raft instance and store shut down.
func (r *Repository) Close() error {
	if r.cluster.IsLeader() {
		if _, err := r.apply(command{Op: opSession, SessionID: r.sessionID}); err != nil {
			return err
		}
	}
	r.watches.fireSession(repository.SessionExpired)
	return r.cluster.Shutdown()
}

// WaitForLeader blocks until this member observes a cluster leader or
// ctx is done, for test setup that must not issue writes before
// BootstrapCluster's internal election settles.
func (r *Repository) WaitForLeader(ctx context.Context) error {
	ch := r.cluster.raft.LeaderCh()
	for {
		if r.cluster.raft.Leader() != "" {
			return nil
		}
		select {
		case <-ch:
			if r.cluster.raft.Leader() != "" {
				return nil
			}
		case <-time.After(25 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ raft.FSM = (*fsm)(nil)

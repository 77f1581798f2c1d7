package raftrepo

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a cluster member. BindAddr is the raft transport
// address; NodeID is this member's raft.ServerID.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// cluster owns the raft.Raft handle, its FSM and the node store. The
// raft instance runs over a TCP transport, a file snapshot store and a
// raft-boltdb log/stable store (bootstrap, join), or over in-memory ones
// (bootstrapInmem).
type cluster struct {
	nodeID string
	raft   *raft.Raft
	fsm    *fsm
	store  *store
}

func raftConfig(nodeID string) *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	// Tuned for sub-10s failover on LAN deployments; hashicorp/raft's
	// defaults assume WAN latency.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

// bootstrap creates a new single-node raft cluster rooted at cfg.DataDir,
// with cfg.NodeID as the only voter. Used both for production first-node
// startup and for single-process tests.
func bootstrap(cfg Config) (*cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create data dir: %w", err)
	}

	st, err := newStore(filepath.Join(cfg.DataDir, "nodes.db"))
	if err != nil {
		return nil, err
	}

	watches := newWatchRegistry()
	machine := newFSM(st, watches)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create stable store: %w", err)
	}

	config := raftConfig(cfg.NodeID)
	r, err := raft.NewRaft(config, machine, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create raft: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{
			{ID: config.LocalID, Address: transport.LocalAddr()},
		},
	})
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftrepo: failed to bootstrap cluster: %w", err)
	}

	return &cluster{nodeID: cfg.NodeID, raft: r, fsm: machine, store: st}, nil
}

// join builds a raft member without bootstrapping a cluster; it contacts
// no other member, and joins a cluster only once the current leader
// admits it with AddVoter.
func join(cfg Config) (*cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create data dir: %w", err)
	}

	st, err := newStore(filepath.Join(cfg.DataDir, "nodes.db"))
	if err != nil {
		return nil, err
	}

	watches := newWatchRegistry()
	machine := newFSM(st, watches)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create stable store: %w", err)
	}

	config := raftConfig(cfg.NodeID)
	r, err := raft.NewRaft(config, machine, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create raft: %w", err)
	}

	return &cluster{nodeID: cfg.NodeID, raft: r, fsm: machine, store: st}, nil
}

// bootstrapInmem builds a single-node cluster over an in-memory raft
// transport and in-memory log/snapshot stores, skipping TCP and file
// snapshot storage entirely; the node store is a bbolt file under
// dataDir. Intended for tests that need a real raft commit pipeline
// without a network.
func bootstrapInmem(nodeID, dataDir string) (*cluster, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create data dir: %w", err)
	}

	st, err := newStore(filepath.Join(dataDir, "nodes.db"))
	if err != nil {
		return nil, err
	}

	watches := newWatchRegistry()
	machine := newFSM(st, watches)

	config := raftConfig(nodeID)
	_, transport := raft.NewInmemTransport(raft.ServerAddress(nodeID))

	snapshotStore := raft.NewInmemSnapshotStore()
	logStore := raft.NewInmemStore()
	stableStore := raft.NewInmemStore()

	r, err := raft.NewRaft(config, machine, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftrepo: failed to create raft: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{
			{ID: config.LocalID, Address: transport.LocalAddr()},
		},
	})
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftrepo: failed to bootstrap cluster: %w", err)
	}

	return &cluster{nodeID: nodeID, raft: r, fsm: machine, store: st}, nil
}

// AddVoter is called on the current leader to admit a node that called
// join with the same NodeID/BindAddr.
func (c *cluster) AddVoter(nodeID, addr string, timeout time.Duration) error {
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, timeout)
	return future.Error()
}

func (c *cluster) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

func (c *cluster) Shutdown() error {
	if err := c.raft.Shutdown().Error(); err != nil {
		return err
	}
	return c.store.Close()
}

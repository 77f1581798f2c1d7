package raftrepo

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/clusterlib/clusterlib/pkg/repository"
	"github.com/hashicorp/raft"
	bolt "go.etcd.io/bbolt"
)

// op enumerates the replicated mutations.
type op string

const (
	opCreate  op = "create"
	opDelete  op = "delete"
	opSetData op = "setdata"
	opSession op = "session" // session end: sweep ephemerals
)

// command is the JSON payload raft replicates for every mutation.
type command struct {
	Op        op                    `json:"op"`
	Path      string                `json:"path"`
	Data      []byte                `json:"data,omitempty"`
	Flags     repository.CreateFlag `json:"flags,omitempty"`
	Version   *int64                `json:"version,omitempty"`
	Recursive bool                  `json:"recursive,omitempty"`
	SessionID string                `json:"session_id,omitempty"`
}

// applyResult is what fsm.Apply returns through raft's apply future, read
// back by the caller that issued the command.
type applyResult struct {
	Path    string
	Existed bool
	Version int64
	Data    []byte
	Err     error
}

// fsm is the hashicorp/raft finite state machine: every cluster member
// applies the same committed command log against its own store, so a
// read from any member's store reflects all commands ordered before it.
type fsm struct {
	store   *store
	watches *watchRegistry
}

func newFSM(s *store, w *watchRegistry) *fsm {
	return &fsm{store: s, watches: w}
}

func (f *fsm) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return &applyResult{Err: fmt.Errorf("fsm: corrupt log entry: %w", err)}
	}

	switch cmd.Op {
	case opCreate:
		return f.applyCreate(&cmd)
	case opDelete:
		return f.applyDelete(&cmd)
	case opSetData:
		return f.applySetData(&cmd)
	case opSession:
		return f.applySessionEnd(&cmd)
	default:
		return &applyResult{Err: fmt.Errorf("fsm: unknown op %q", cmd.Op)}
	}
}

func (f *fsm) applyCreate(cmd *command) *applyResult {
	res := &applyResult{}
	err := f.store.db.Update(func(tx *bolt.Tx) error {
		path := cmd.Path
		if cmd.Flags.Has(repository.FlagSequence) {
			n, err := f.store.nextSequence(tx, cmd.Path)
			if err != nil {
				return err
			}
			path = fmt.Sprintf("%s%010d", cmd.Path, n)
		}

		if _, existed, err := f.storeGetTx(tx, path); err != nil {
			return err
		} else if existed {
			res.Err = repository.ErrNodeExists
			return nil
		}

		rec := &nodeRecord{Data: cmd.Data, Version: 0, Flags: cmd.Flags}
		if cmd.Flags.Has(repository.FlagEphemeral) {
			rec.SessionID = cmd.SessionID
		}
		if err := f.store.put(tx, path, rec); err != nil {
			return err
		}
		if cmd.Flags.Has(repository.FlagEphemeral) {
			if err := f.store.addEphemeral(tx, cmd.SessionID, path); err != nil {
				return err
			}
		}
		res.Path = path
		return nil
	})
	if err != nil {
		return &applyResult{Err: err}
	}
	if res.Err == nil {
		f.watches.fireCreated(res.Path)
		f.watches.fireChild(parentOf(res.Path))
	}
	return res
}

func (f *fsm) applyDelete(cmd *command) *applyResult {
	res := &applyResult{}
	var toFire []string
	err := f.store.db.Update(func(tx *bolt.Tx) error {
		rec, existed, err := f.storeGetTx(tx, cmd.Path)
		if err != nil {
			return err
		}
		if !existed {
			res.Existed = false
			return nil
		}
		if cmd.Version != nil && rec.Version != *cmd.Version {
			res.Err = repository.ErrVersionMismatch
			return nil
		}

		all, err := f.store.descendants(tx, cmd.Path)
		if err != nil {
			return err
		}
		hasChildren := len(all) > 1 // descendants includes cmd.Path itself

		if hasChildren && !cmd.Recursive {
			res.Err = repository.ErrNodeNotEmpty
			return nil
		}

		targets := []string{cmd.Path}
		if cmd.Recursive {
			targets = dedupeAppend(targets, all)
		}
		// Deepest paths first so a parent never outlives its children.
		sort.Slice(targets, func(i, j int) bool {
			return strings.Count(targets[i], "/") > strings.Count(targets[j], "/")
		})

		for _, p := range targets {
			r, ok, err := f.storeGetTx(tx, p)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if r.Flags.Has(repository.FlagEphemeral) && r.SessionID != "" {
				if err := f.store.removeEphemeral(tx, r.SessionID, p); err != nil {
					return err
				}
			}
			if err := f.store.delete(tx, p); err != nil {
				return err
			}
			toFire = append(toFire, p)
		}
		res.Existed = true
		return nil
	})
	if err != nil {
		return &applyResult{Err: err}
	}
	for _, p := range toFire {
		f.watches.fireDeleted(p)
		f.watches.fireChild(parentOf(p))
	}
	return res
}

func (f *fsm) applySetData(cmd *command) *applyResult {
	res := &applyResult{}
	err := f.store.db.Update(func(tx *bolt.Tx) error {
		rec, existed, err := f.storeGetTx(tx, cmd.Path)
		if err != nil {
			return err
		}
		if !existed {
			res.Err = repository.ErrNoNode
			return nil
		}
		if rec.Version != cmd.Version2() {
			res.Err = repository.ErrVersionMismatch
			return nil
		}
		rec.Data = cmd.Data
		rec.Version++
		if err := f.store.put(tx, cmd.Path, rec); err != nil {
			return err
		}
		res.Version = rec.Version
		return nil
	})
	if err != nil {
		return &applyResult{Err: err}
	}
	if res.Err == nil {
		f.watches.fireChanged(cmd.Path)
	}
	return res
}

func (f *fsm) applySessionEnd(cmd *command) *applyResult {
	res := &applyResult{}
	paths, err := f.store.sessionEphemerals(cmd.SessionID)
	if err != nil {
		return &applyResult{Err: err}
	}
	err = f.store.db.Update(func(tx *bolt.Tx) error {
		for _, p := range paths {
			if err := f.store.delete(tx, p); err != nil {
				return err
			}
		}
		return f.store.clearSession(tx, cmd.SessionID)
	})
	if err != nil {
		return &applyResult{Err: err}
	}
	for _, p := range paths {
		f.watches.fireDeleted(p)
		f.watches.fireChild(parentOf(p))
	}
	return res
}

func (f *fsm) storeGetTx(tx *bolt.Tx, path string) (*nodeRecord, bool, error) {
	data := tx.Bucket(bucketNodes).Get([]byte(path))
	if data == nil {
		return nil, false, nil
	}
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// Snapshot dumps the entire node table as the raft FSM snapshot.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	dump := make(map[string]nodeRecord)
	err := f.store.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNodes).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec nodeRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			dump[string(k)] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{nodes: dump}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var dump map[string]nodeRecord
	if err := json.NewDecoder(rc).Decode(&dump); err != nil {
		return fmt.Errorf("fsm: restore decode: %w", err)
	}
	return f.store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketNodes); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketNodes)
		if err != nil {
			return err
		}
		for path, rec := range dump {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

type fsmSnapshot struct {
	nodes map[string]nodeRecord
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := json.NewEncoder(sink).Encode(s.nodes)
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

func dedupeAppend(base []string, more []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, b := range base {
		seen[b] = struct{}{}
	}
	for _, m := range more {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			base = append(base, m)
		}
	}
	return base
}

// Version2 returns the CAS version SetNodeData was called with, zero
// when unset. Named distinctly from the Version field to keep the
// zero-value/absent distinction explicit at call sites: SetNodeData
// always carries a concrete expected version, unlike Delete's optional
// one.
func (c *command) Version2() int64 {
	if c.Version == nil {
		return 0
	}
	return *c.Version
}

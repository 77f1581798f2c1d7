package raftrepo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clusterlib/clusterlib/pkg/repository"
	bolt "go.etcd.io/bbolt"
)

// One bucket per concern, JSON-encoded values, thin Update/View
// transaction wrapper methods on a single *bolt.DB handle.
var (
	bucketNodes   = []byte("nodes")
	bucketSeq     = []byte("seq")
	bucketSession = []byte("sessions")
)

// nodeRecord is the value stored for each path in bucketNodes.
type nodeRecord struct {
	Data      []byte               `json:"data"`
	Version   int64                `json:"version"`
	Flags     repository.CreateFlag `json:"flags"`
	SessionID string               `json:"session_id,omitempty"`
}

// store wraps a bbolt database holding the replicated keyspace. It is
// only ever mutated from fsm.Apply (the replicated path); reads may
// happen directly from any goroutine.
type store struct {
	db *bolt.DB
}

func newStore(path string) (*store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketNodes, bucketSeq, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) get(path string) (*nodeRecord, bool, error) {
	var rec nodeRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(path))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return &rec, found, err
}

// children returns the immediate child names of path, i.e. the next
// '/'-delimited segment after path's own prefix, deduplicated.
func (s *store) children(path string) ([]string, error) {
	prefix := path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	set := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNodes).Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			rest := strings.TrimPrefix(string(k), prefix)
			if rest == "" {
				continue
			}
			name := rest
			if idx := strings.Index(rest, "/"); idx >= 0 {
				name = rest[:idx]
			}
			set[name] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// nextSequence atomically increments and returns the sequence counter
// scoped to parentPath, used to name FlagSequence children.
func (s *store) nextSequence(tx *bolt.Tx, parentPath string) (uint64, error) {
	b := tx.Bucket(bucketSeq)
	raw := b.Get([]byte(parentPath))
	var n uint64
	if raw != nil {
		n = btoi(raw)
	}
	n++
	return n, b.Put([]byte(parentPath), itob(n))
}

func (s *store) put(tx *bolt.Tx, path string, rec *nodeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketNodes).Put([]byte(path), data)
}

func (s *store) delete(tx *bolt.Tx, path string) error {
	return tx.Bucket(bucketNodes).Delete([]byte(path))
}

// descendants returns path and every key below it, deepest-last is not
// guaranteed — callers needing leaves-first order must sort by depth
// themselves (recursive delete does).
func (s *store) descendants(tx *bolt.Tx, path string) ([]string, error) {
	prefix := path + "/"
	var out []string
	c := tx.Bucket(bucketNodes).Cursor()
	for k, _ := c.Seek([]byte(path)); k != nil; k, _ = c.Next() {
		ks := string(k)
		if ks == path || strings.HasPrefix(ks, prefix) {
			out = append(out, ks)
			continue
		}
		if !strings.HasPrefix(ks, path) {
			break
		}
	}
	return out, nil
}

// addEphemeral records that sessionID owns path, for sweeping on
// session end.
func (s *store) addEphemeral(tx *bolt.Tx, sessionID, path string) error {
	b := tx.Bucket(bucketSession)
	raw := b.Get([]byte(sessionID))
	var paths []string
	if raw != nil {
		if err := json.Unmarshal(raw, &paths); err != nil {
			return err
		}
	}
	paths = append(paths, path)
	data, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	return b.Put([]byte(sessionID), data)
}

func (s *store) removeEphemeral(tx *bolt.Tx, sessionID, path string) error {
	b := tx.Bucket(bucketSession)
	raw := b.Get([]byte(sessionID))
	if raw == nil {
		return nil
	}
	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		return err
	}
	kept := paths[:0]
	for _, p := range paths {
		if p != path {
			kept = append(kept, p)
		}
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return b.Put([]byte(sessionID), data)
}

func (s *store) sessionEphemerals(sessionID string) ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSession).Get([]byte(sessionID))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &paths)
	})
	return paths, err
}

func (s *store) clearSession(tx *bolt.Tx, sessionID string) error {
	return tx.Bucket(bucketSession).Delete([]byte(sessionID))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func btoi(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

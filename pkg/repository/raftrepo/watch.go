package raftrepo

import (
	"sync"

	"github.com/clusterlib/clusterlib/pkg/repository"
)

// watchRegistry fans out one-shot watch notifications to callers who
// registered interest in a path via Exists/GetNodeData/GetNodeChildren:
// a map of subscriber lists keyed by topic, fired and cleared under a
// mutex.
//
// Each fire* call runs synchronously from inside fsm.Apply, so handlers
// must not block; they are expected to do nothing more than push onto a
// BlockingQueue.
type watchRegistry struct {
	mu       sync.Mutex
	existsW  map[string][]repository.WatchFunc
	dataW    map[string][]repository.WatchFunc
	childW   map[string][]repository.WatchFunc
	sessionW []repository.WatchFunc
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{
		existsW: make(map[string][]repository.WatchFunc),
		dataW:   make(map[string][]repository.WatchFunc),
		childW:  make(map[string][]repository.WatchFunc),
	}
}

func (r *watchRegistry) armExists(path string, w repository.WatchFunc) {
	if w == nil {
		return
	}
	r.mu.Lock()
	r.existsW[path] = append(r.existsW[path], w)
	r.mu.Unlock()
}

func (r *watchRegistry) armData(path string, w repository.WatchFunc) {
	if w == nil {
		return
	}
	r.mu.Lock()
	r.dataW[path] = append(r.dataW[path], w)
	r.mu.Unlock()
}

func (r *watchRegistry) armChild(path string, w repository.WatchFunc) {
	if w == nil {
		return
	}
	r.mu.Lock()
	r.childW[path] = append(r.childW[path], w)
	r.mu.Unlock()
}

func (r *watchRegistry) armSession(w repository.WatchFunc) {
	if w == nil {
		return
	}
	r.mu.Lock()
	r.sessionW = append(r.sessionW, w)
	r.mu.Unlock()
}

func (r *watchRegistry) fireCreated(path string) {
	r.fire(r.existsW, path, repository.WatchEvent{Type: repository.EventCreated, Path: path})
}

func (r *watchRegistry) fireDeleted(path string) {
	r.fire(r.existsW, path, repository.WatchEvent{Type: repository.EventDeleted, Path: path})
	r.fire(r.dataW, path, repository.WatchEvent{Type: repository.EventDeleted, Path: path})
	r.fire(r.childW, path, repository.WatchEvent{Type: repository.EventDeleted, Path: path})
}

func (r *watchRegistry) fireChanged(path string) {
	r.fire(r.dataW, path, repository.WatchEvent{Type: repository.EventChanged, Path: path})
}

func (r *watchRegistry) fireChild(path string) {
	r.fire(r.childW, path, repository.WatchEvent{Type: repository.EventChild, Path: path})
}

func (r *watchRegistry) fireSession(state repository.SessionState) {
	r.mu.Lock()
	fns := r.sessionW
	r.sessionW = nil
	r.mu.Unlock()
	for _, w := range fns {
		w(repository.WatchEvent{Type: repository.EventSession, Session: state})
	}
}

func (r *watchRegistry) fire(table map[string][]repository.WatchFunc, path string, ev repository.WatchEvent) {
	r.mu.Lock()
	fns := table[path]
	delete(table, path)
	r.mu.Unlock()
	for _, w := range fns {
		w(ev)
	}
}

package clusterlib

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/event"
	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/metrics"
	"github.com/clusterlib/clusterlib/pkg/primitives"
	"github.com/clusterlib/clusterlib/pkg/repository"
	"github.com/rs/zerolog"
)

// watchContinuation records what a previously armed watch should
// resolve to once its backend event fires: which CachedObjectChangeHandlers
// entry owns it and which Notifyable's key to resolve from the cache.
// Backend watch callbacks only carry the raw path, so this is how the
// dispatcher recovers the rest.
type watchContinuation struct {
	kind           AttributeKind
	notifyableKey  string
}

// FactoryOps is the process-wide registry of Notifyables and the event
// pipeline that turns raw backend watches into semantic events on
// Clients.
type FactoryOps struct {
	repo    repository.Repository
	logger  zerolog.Logger
	caches  *caches
	handlers *changeHandlers
	locks   *distributedLocks
	election *leaderElection
	timers  *primitives.Wheel

	internal *event.SynchronousAdapter
	external *event.SynchronousAdapter

	ctx    context.Context
	cancel context.CancelFunc

	contMu        sync.Mutex
	continuations map[string]watchContinuation

	clientsMu sync.Mutex
	clients   map[*Client]struct{}

	root *Root

	shutdownMu         sync.Mutex
	shuttingDown       bool
	endEventDispatched bool

	syncMu        sync.Mutex
	syncCond      *sync.Cond
	nextSyncID    int64
	completedSync int64

	wg sync.WaitGroup
}

// NewFactoryOps constructs a factory bound to repo and starts its
// internal/external/timer threads.
func NewFactoryOps(repo repository.Repository, logger zerolog.Logger) *FactoryOps {
	ctx, cancel := context.WithCancel(context.Background())
	f := &FactoryOps{
		repo:          repo,
		logger:        logger,
		caches:        newCaches(),
		handlers:      newChangeHandlers(),
		locks:         newDistributedLocks(repo),
		election:      newLeaderElection(repo),
		timers:        primitives.NewWheel(),
		internal:      event.NewSynchronousAdapter(),
		external:      event.NewSynchronousAdapter(),
		ctx:           ctx,
		cancel:        cancel,
		continuations: make(map[string]watchContinuation),
		clients:       make(map[*Client]struct{}),
	}
	f.syncCond = sync.NewCond(&f.syncMu)
	f.root = newRoot(f)
	f.caches.root.put(key.Root, f.root)

	f.timers.Start()
	f.wg.Add(2)
	go f.externalDispatchLoop()
	go f.internalDispatchLoop()
	return f
}

// Root returns the process-wide singleton Root Notifyable.
func (f *FactoryOps) Root() *Root {
	return f.root
}

// lookupCached resolves k from whichever typed cache owns it.
func (f *FactoryOps) lookupCached(k string) (Notifyable, error) {
	n, ok, err := f.caches.get(k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return n, nil
}

// isInternalPath classifies a raw backend event: lock-node deletions
// (paths under "/locks/" or "/leaders/") and synchronize completions
// are internal; everything else is external.
func isInternalPath(path string) bool {
	return strings.Contains(path, "/locks/") ||
		strings.Contains(path, "/leaders/") ||
		strings.Contains(path, "/__sync__/")
}

// watchFunc builds the repository.WatchFunc a handler passes when
// re-arming, recording the continuation so the dispatch loop can
// recover (kind, notifyableKey) when the watch fires. watchPath is the
// backend path the watch is actually installed on (an attribute leaf,
// a collection directory, ...); notifyableKey is the owning Notifyable's
// cache key, which differs from watchPath whenever the watched path is
// an attribute or collection rather than the Notifyable's own key.
func (f *FactoryOps) watchFunc(watchPath, notifyableKey string, kind AttributeKind) repository.WatchFunc {
	f.contMu.Lock()
	f.continuations[watchPath] = watchContinuation{kind: kind, notifyableKey: notifyableKey}
	f.contMu.Unlock()

	return func(ev repository.WatchEvent) {
		f.onBackendEvent(ev)
	}
}

func (f *FactoryOps) armExists(watchPath, notifyableKey string, kind AttributeKind) {
	f.contMu.Lock()
	f.continuations[watchPath] = watchContinuation{kind: kind, notifyableKey: notifyableKey}
	f.contMu.Unlock()
	_, _ = f.repo.Exists(f.ctx, watchPath, func(ev repository.WatchEvent) { f.onBackendEvent(ev) })
}

func (f *FactoryOps) armChildren(watchPath, notifyableKey string, kind AttributeKind) {
	f.contMu.Lock()
	f.continuations[watchPath] = watchContinuation{kind: kind, notifyableKey: notifyableKey}
	f.contMu.Unlock()
	_, _ = f.repo.GetNodeChildren(f.ctx, watchPath, func(ev repository.WatchEvent) { f.onBackendEvent(ev) })
}

// onBackendEvent is the single consumer of raw backend events: it
// classifies the event and deposits it on the matching synchronous
// adapter.
func (f *FactoryOps) onBackendEvent(ev repository.WatchEvent) {
	g := event.Generic{Kind: event.KindBackend, Payload: ev}
	if isInternalPath(ev.Path) {
		f.internal.Deliver(g)
		return
	}
	f.external.Deliver(g)
}

// externalDispatchLoop is the external dispatch thread: it turns
// classified backend events into semantic events and fans them out to
// registered Clients.
func (f *FactoryOps) externalDispatchLoop() {
	defer f.wg.Done()
	for {
		if f.isShuttingDown() {
			f.dispatchEndEvent()
			return
		}
		g, ok := f.external.Take(100)
		if !ok {
			continue
		}
		ev, ok := g.Payload.(repository.WatchEvent)
		if !ok {
			continue
		}
		f.handleExternalEvent(ev)
	}
}

func (f *FactoryOps) handleExternalEvent(ev repository.WatchEvent) {
	if ev.Type == repository.EventSession && ev.Session == repository.SessionExpired {
		f.Shutdown()
		return
	}

	f.contMu.Lock()
	cont, ok := f.continuations[ev.Path]
	f.contMu.Unlock()
	if !ok {
		return
	}

	n, err := f.lookupCached(cont.notifyableKey)
	if err != nil || n == nil {
		return
	}

	sem := f.handlers.dispatch(f, cont.kind, n, ev.Type, ev.Path)
	if sem == SemNoEvent {
		return
	}
	f.fanOut(UserEventPayload{Key: n.Key(), Event: sem})
}

// internalDispatchLoop is the internal dispatch thread: a 100ms wake so
// it notices shutdown, processing only lock/election bid-node
// deletions and synchronize completions directly on this thread so a
// blocked external-delivery callback never delays a lock wakeup.
func (f *FactoryOps) internalDispatchLoop() {
	defer f.wg.Done()
	for {
		if f.isShuttingDown() {
			return
		}
		g, ok := f.internal.Take(100)
		if !ok {
			continue
		}
		ev, ok := g.Payload.(repository.WatchEvent)
		if !ok {
			continue
		}
		if strings.Contains(ev.Path, "/__sync__/") {
			f.handlers.dispatch(f, KindSynchronize, syncSentinel{}, ev.Type, ev.Path)
			continue
		}
		if strings.Contains(ev.Path, "/leaders/") {
			f.election.signalPrecedingGone(ev.Path)
			continue
		}
		f.locks.signalPrecedingGone(ev.Path)
	}
}

// syncSentinel is the placeholder Notifyable passed to the SYNCHRONIZE
// handler, which never dereferences it beyond the nil check.
type syncSentinel struct{}

func (syncSentinel) Key() string                          { return "" }
func (syncSentinel) Name() string                          { return "" }
func (syncSentinel) State() State                          { return StateReady }
func (syncSentinel) Parent() (Notifyable, error)           { return nil, nil }
func (syncSentinel) AcquireLock(acquireChildren bool) error { return nil }
func (syncSentinel) ReleaseLock(releaseChildren bool) error { return nil }
func (syncSentinel) HasLock() bool                         { return false }
func (syncSentinel) Remove(recursive bool) error           { return nil }

func (f *FactoryOps) fanOut(payload UserEventPayload) {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	for c := range f.clients {
		c.deliver(payload)
	}
}

func (f *FactoryOps) registerClient(c *Client) {
	f.clientsMu.Lock()
	f.clients[c] = struct{}{}
	f.clientsMu.Unlock()
}

func (f *FactoryOps) unregisterClient(c *Client) {
	f.clientsMu.Lock()
	delete(f.clients, c)
	f.clientsMu.Unlock()
}

func (f *FactoryOps) isShuttingDown() bool {
	f.shutdownMu.Lock()
	defer f.shutdownMu.Unlock()
	return f.shuttingDown
}

// Shutdown sets the shutdown flag; the external thread notices on its
// next 100ms wake, dispatches the end event, and both threads exit.
func (f *FactoryOps) Shutdown() {
	f.shutdownMu.Lock()
	f.shuttingDown = true
	f.shutdownMu.Unlock()
}

// Wait blocks until both dispatch threads have exited, for clean
// process teardown in tests.
func (f *FactoryOps) Wait() {
	f.wg.Wait()
	f.timers.Stop()
}

func (f *FactoryOps) dispatchEndEvent() {
	f.shutdownMu.Lock()
	already := f.endEventDispatched
	f.endEventDispatched = true
	f.shutdownMu.Unlock()
	if already {
		return
	}
	f.fanOut(UserEventPayload{Key: key.Root, Event: SemEndEvent})
}

// synchronize implements a flush barrier: issue a monotonic sync id,
// ask the Repository to flush on a dedicated sync key, and block until
// the internal thread's SYNCHRONIZE handler signals that id has
// completed.
func (f *FactoryOps) synchronize(ctx context.Context) error {
	f.syncMu.Lock()
	f.nextSyncID++
	id := f.nextSyncID
	f.syncMu.Unlock()

	syncPath := fmt.Sprintf("%s/__sync__/%d", key.Root, id)
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncLatencySeconds)

	err := f.repo.Sync(ctx, syncPath, func(ev repository.WatchEvent) {
		f.internal.Deliver(event.Generic{Kind: event.KindBackend, Payload: ev})
	})
	if err != nil {
		return err
	}

	f.syncMu.Lock()
	defer f.syncMu.Unlock()
	for f.completedSync < id {
		f.syncCond.Wait()
	}
	return nil
}

func (f *FactoryOps) completeSync(path string) {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()
	f.completedSync++
	f.syncCond.Broadcast()
	_ = path
}

// UserEventPayload is what a Client's delivery loop pulls and matches
// against its registered handlers.
type UserEventPayload struct {
	Key   string
	Event SemanticEvent
}

const dispatchPollMs = 100

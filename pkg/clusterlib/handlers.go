package clusterlib

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/distribution"
	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// AttributeKind enumerates the per-attribute handler table.
type AttributeKind int

const (
	KindNotifyableState AttributeKind = iota
	KindApplications
	KindGroups
	KindDataDistributions
	KindNodes
	KindPropertiesValues
	KindShards
	KindManualOverrides
	KindNodeClientState
	KindNodeMasterSetState
	KindNodeConnection
	KindLeadership
	KindPrecedingLeaderExists
	KindPrecedingLockNodeExists
	KindSynchronize
)

// SemanticEvent is what a CachedObjectChangeHandler hands back to the
// dispatcher for fan-out to Clients; SemNoEvent suppresses delivery.
type SemanticEvent int

const (
	SemNoEvent SemanticEvent = iota
	SemReady
	SemCreated
	SemDeleted
	SemGroupsChange
	SemDistsChange
	SemNodesChange
	SemPropertiesValueChange
	SemShardsChange
	SemManualOverridesChange
	SemClientStateChange
	SemMasterSetStateChange
	SemConnectionChange
	SemLeadershipChange
	SemLockNodeChange
	SemEndEvent
)

// HandlerFunc is one change-handler table entry. Its contract: if n is
// nil, return SemNoEvent; optionally re-arm the backend watch for path
// (the only place watches get re-armed); update the cached attribute;
// return SemNoEvent if the value didn't change.
type HandlerFunc func(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent

// readyKey identifies one (kind, path) watch slot.
type readyKey struct {
	kind AttributeKind
	path string
}

// changeHandlers is the attribute change-handler table plus the
// per-(kind,path) callback-ready flag that guarantees each handler
// fires at most once per backend event even when watch re-arming races
// with a fresh event.
type changeHandlers struct {
	table map[AttributeKind]HandlerFunc

	mu    sync.Mutex
	ready map[readyKey]bool
}

func newChangeHandlers() *changeHandlers {
	h := &changeHandlers{
		table: make(map[AttributeKind]HandlerFunc),
		ready: make(map[readyKey]bool),
	}
	h.table[KindNotifyableState] = handleNotifyableState
	h.table[KindApplications] = handleChildrenChange(SemNoEvent, func(string) string { return key.Applications() })
	h.table[KindGroups] = handleChildrenChange(SemGroupsChange, key.GroupsDir)
	h.table[KindDataDistributions] = handleChildrenChange(SemDistsChange, key.DistributionsDir)
	h.table[KindNodes] = handleChildrenChange(SemNodesChange, key.NodesDir)
	h.table[KindNodeClientState] = handleNodeClientState
	h.table[KindNodeMasterSetState] = handleNodeMasterSetState
	h.table[KindNodeConnection] = handleNodeConnection
	h.table[KindPropertiesValues] = handlePropertiesValues
	h.table[KindShards] = handleShards
	h.table[KindManualOverrides] = handleManualOverrides
	h.table[KindLeadership] = handleLeadership
	h.table[KindPrecedingLeaderExists] = handlePrecedingLeaderExists
	h.table[KindPrecedingLockNodeExists] = handlePrecedingLockNodeExists
	h.table[KindSynchronize] = handleSynchronize
	return h
}

// dispatch runs the handler for kind, gating duplicate fires on the
// same (kind, path) behind the ready flag.
func (h *changeHandlers) dispatch(f *FactoryOps, kind AttributeKind, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	rk := readyKey{kind, path}

	h.mu.Lock()
	if ready, seen := h.ready[rk]; seen && !ready {
		h.mu.Unlock()
		return SemNoEvent
	}
	h.ready[rk] = false
	h.mu.Unlock()

	if n == nil {
		h.mu.Lock()
		h.ready[rk] = true
		h.mu.Unlock()
		return SemNoEvent
	}

	fn, ok := h.table[kind]
	if !ok {
		h.mu.Lock()
		h.ready[rk] = true
		h.mu.Unlock()
		return SemNoEvent
	}

	sem := fn(f, n, evType, path)

	h.mu.Lock()
	h.ready[rk] = true
	h.mu.Unlock()
	return sem
}

func handleNotifyableState(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	f.armExists(n.Key(), n.Key(), KindNotifyableState)
	switch evType {
	case repository.EventCreated:
		return SemCreated
	case repository.EventDeleted:
		return SemDeleted
	default:
		return SemNoEvent
	}
}

// handleChildrenChange builds a handler that re-arms a children watch on
// dirOf(n.Key()) and reports sem unconditionally on any CHILD event;
// used for the Applications/Groups/DataDistributions/Nodes collection
// attributes.
func handleChildrenChange(sem SemanticEvent, dirOf func(notifyableKey string) string) HandlerFunc {
	return func(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
		f.armChildren(dirOf(n.Key()), n.Key(), kindFor(sem))
		if evType != repository.EventChild {
			return SemNoEvent
		}
		return sem
	}
}

func kindFor(sem SemanticEvent) AttributeKind {
	switch sem {
	case SemGroupsChange:
		return KindGroups
	case SemDistsChange:
		return KindDataDistributions
	case SemNodesChange:
		return KindNodes
	default:
		return KindApplications
	}
}

func handleNodeClientState(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	node, ok := n.(*Node)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(node.Key(), attrClientState)
	data, _, err := f.repo.GetNodeData(f.ctx, attrKey, f.watchFunc(attrKey, node.Key(), KindNodeClientState))
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			f.armExists(attrKey, node.Key(), KindNodeClientState)
		}
		return SemNoEvent
	}
	node.mu.Lock()
	changed := node.clientState != string(data)
	node.clientState = string(data)
	node.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemClientStateChange
}

func handleNodeMasterSetState(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	node, ok := n.(*Node)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(node.Key(), attrMasterSetState)
	data, _, err := f.repo.GetNodeData(f.ctx, attrKey, f.watchFunc(attrKey, node.Key(), KindNodeMasterSetState))
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			f.armExists(attrKey, node.Key(), KindNodeMasterSetState)
		}
		return SemNoEvent
	}
	node.mu.Lock()
	changed := node.masterSetState != string(data)
	node.masterSetState = string(data)
	node.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemMasterSetStateChange
}

func handleNodeConnection(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	node, ok := n.(*Node)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(node.Key(), attrConnected)
	connected, err := f.repo.Exists(f.ctx, attrKey, f.watchFunc(attrKey, node.Key(), KindNodeConnection))
	if err != nil {
		return SemNoEvent
	}
	node.mu.Lock()
	changed := node.connected != connected
	node.connected = connected
	node.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemConnectionChange
}

func handlePropertiesValues(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	pl, ok := n.(*PropertyList)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(pl.Key(), attrKeyVal)
	data, stat, err := f.repo.GetNodeData(f.ctx, attrKey, f.watchFunc(attrKey, pl.Key(), KindPropertiesValues))
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			f.armExists(attrKey, pl.Key(), KindPropertiesValues)
		}
		return SemNoEvent
	}
	parsed := parseKeyVal(string(data))
	pl.mu.Lock()
	changed := !equalStringMaps(pl.values, parsed)
	pl.values = parsed
	pl.version = stat.Version
	pl.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemPropertiesValueChange
}

func handleShards(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	dd, ok := n.(*DataDistribution)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(dd.Key(), attrShards)
	data, stat, err := f.repo.GetNodeData(f.ctx, attrKey, f.watchFunc(attrKey, dd.Key(), KindShards))
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			f.armExists(attrKey, dd.Key(), KindShards)
		}
		return SemNoEvent
	}
	shards, err := distribution.UnmarshalShards(string(data))
	if err != nil {
		return SemNoEvent
	}
	dd.mu.Lock()
	changed := distribution.MarshalShards(dd.table.Shards) != distribution.MarshalShards(shards)
	dd.table.Shards = shards
	dd.table.ShardVersion = stat.Version
	dd.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemShardsChange
}

func handleManualOverrides(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	dd, ok := n.(*DataDistribution)
	if !ok {
		return SemNoEvent
	}
	attrKey := key.Attribute(dd.Key(), attrManualOverrides)
	data, stat, err := f.repo.GetNodeData(f.ctx, attrKey, f.watchFunc(attrKey, dd.Key(), KindManualOverrides))
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			f.armExists(attrKey, dd.Key(), KindManualOverrides)
		}
		return SemNoEvent
	}
	overrides, err := distribution.UnmarshalOverrides(string(data))
	if err != nil {
		return SemNoEvent
	}
	dd.mu.Lock()
	changed := distribution.MarshalOverrides(dd.table.Overrides) != distribution.MarshalOverrides(overrides)
	dd.table.Overrides = overrides
	dd.table.OverrideVersion = stat.Version
	dd.mu.Unlock()
	if !changed {
		return SemNoEvent
	}
	return SemManualOverridesChange
}

func handleLeadership(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	f.armChildren(leaderDir(n.Key()), n.Key(), KindLeadership)
	return SemLeadershipChange
}

// handlePrecedingLeaderExists signals the election bidder waiting on
// the deletion of the next-lower bid, and re-drives every local bidder
// so the new lowest bid tries to become leader.
func handlePrecedingLeaderExists(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	if evType == repository.EventDeleted {
		f.election.signalPrecedingGone(path)
	}
	return SemNoEvent
}

// handlePrecedingLockNodeExists signals the lock bidder waiting on the
// deletion of the next-lower bid node. A miss in signalPrecedingGone's
// waiter lookup means the wait entry was already consumed (benign), not
// an error.
func handlePrecedingLockNodeExists(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	if evType == repository.EventDeleted {
		f.locks.signalPrecedingGone(path)
	}
	return SemNoEvent
}

func handleSynchronize(f *FactoryOps, n Notifyable, evType repository.EventType, path string) SemanticEvent {
	f.completeSync(path)
	return SemNoEvent
}

// primeAttributeWatches installs the first backend watch for every
// attribute leaf a freshly built Notifyable owns. Every attribute
// handler above only re-arms its own watch once it has already fired
// once, so without an initial seed here the attribute would never be
// observed.
func (f *FactoryOps) primeAttributeWatches(n Notifyable) {
	switch v := n.(type) {
	case *Node:
		f.handlers.dispatch(f, KindNodeClientState, v, repository.EventChanged, key.Attribute(v.Key(), attrClientState))
		f.handlers.dispatch(f, KindNodeMasterSetState, v, repository.EventChanged, key.Attribute(v.Key(), attrMasterSetState))
		f.handlers.dispatch(f, KindNodeConnection, v, repository.EventChanged, key.Attribute(v.Key(), attrConnected))
	case *PropertyList:
		f.handlers.dispatch(f, KindPropertiesValues, v, repository.EventChanged, key.Attribute(v.Key(), attrKeyVal))
	case *DataDistribution:
		f.handlers.dispatch(f, KindShards, v, repository.EventChanged, key.Attribute(v.Key(), attrShards))
		f.handlers.dispatch(f, KindManualOverrides, v, repository.EventChanged, key.Attribute(v.Key(), attrManualOverrides))
	}
}

const (
	attrClientState     = "clientState"
	attrMasterSetState  = "masterSetState"
	attrConnected       = "connected"
	attrKeyVal          = "keyVal"
	attrShards          = "shards"
	attrManualOverrides = "manualOverrides"
)

func parseKeyVal(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimSuffix(s, ";"), ";") {
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, "=")
		if idx < 0 {
			continue
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out
}

func marshalKeyVal(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
		b.WriteByte(';')
	}
	return b.String()
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

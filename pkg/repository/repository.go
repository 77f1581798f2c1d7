// Package repository declares the abstract backend contract clusterlib
// is built against: a store of hierarchical nodes with
// ephemeral/sequential flags and one-shot watches. The backend itself —
// the coordination service — is an external collaborator; this package
// only states what it must provide. A reference implementation lives
// in pkg/repository/raftrepo.
package repository

import "context"

// CreateFlag controls the lifetime and naming of a node created by
// CreateNode.
type CreateFlag int

const (
	// FlagNone creates a plain persistent node.
	FlagNone CreateFlag = 0
	// FlagEphemeral ties the node's lifetime to the creating session;
	// it is deleted when that session ends.
	FlagEphemeral CreateFlag = 1 << iota
	// FlagSequence appends a monotonic 10-digit suffix to the
	// requested path and returns the resulting path from CreateNode.
	FlagSequence
)

// Has reports whether f includes flag.
func (f CreateFlag) Has(flag CreateFlag) bool { return f&flag != 0 }

// EventType enumerates the backend watch notifications a Repository
// must be able to deliver.
type EventType int

const (
	EventCreated EventType = iota
	EventDeleted
	EventChanged
	EventChild
	EventSession
	EventNotWatching
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "CREATED"
	case EventDeleted:
		return "DELETED"
	case EventChanged:
		return "CHANGED"
	case EventChild:
		return "CHILD"
	case EventSession:
		return "SESSION"
	case EventNotWatching:
		return "NOTWATCHING"
	default:
		return "UNKNOWN"
	}
}

// SessionState enumerates the backend connection states propagated
// through SESSION events.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionAssociating
	SessionConnected
	SessionExpired
)

// WatchEvent is delivered to a WatchFunc exactly once per armed watch.
type WatchEvent struct {
	Type    EventType
	Path    string
	Session SessionState // meaningful only when Type == EventSession
}

// WatchFunc receives a one-shot watch notification.
type WatchFunc func(WatchEvent)

// Stat carries the version metadata CAS operations depend on.
type Stat struct {
	Version int64
}

// Repository is the backend contract. Every method may block on
// network I/O; callers invoke it from a goroutine prepared to suspend.
// Implementations must distinguish connection loss
// (ErrConnectionFailure) from all other failures
// (ErrInternalsFailure).
type Repository interface {
	// CreateNode creates path with data and flags, returning the
	// actual path created (which differs from path when
	// FlagSequence is set).
	CreateNode(ctx context.Context, path string, data []byte, flags CreateFlag) (string, error)

	// DeleteNode deletes path. If recursive, all descendants are
	// deleted first. existed reports whether path was present before
	// the call; version, if non-nil, makes the delete a CAS.
	DeleteNode(ctx context.Context, path string, recursive bool, version *int64) (existed bool, err error)

	// Exists reports whether path is present, installing a one-shot
	// existence watch if watch is non-nil.
	Exists(ctx context.Context, path string, watch WatchFunc) (bool, error)

	// GetNodeData returns path's data and stat, installing a one-shot
	// data-change watch if watch is non-nil.
	GetNodeData(ctx context.Context, path string, watch WatchFunc) ([]byte, Stat, error)

	// SetNodeData replaces path's data if version matches the current
	// version (CAS); it fails with ErrVersionMismatch otherwise.
	SetNodeData(ctx context.Context, path string, data []byte, version int64) (Stat, error)

	// GetNodeChildren lists path's immediate children, installing a
	// one-shot child-change watch if watch is non-nil.
	GetNodeChildren(ctx context.Context, path string, watch WatchFunc) ([]string, error)

	// Sync completes by firing watch on path once every operation
	// that preceded this call has been applied — the primitive the
	// FactoryOps synchronize barrier is built on.
	Sync(ctx context.Context, path string, watch WatchFunc) error

	// Close ends this Repository handle's session, deleting any
	// ephemeral nodes it owns.
	Close() error
}

package repository

import "errors"

// Error taxonomy covering the subset a Repository implementation
// raises. The rest of the taxonomy (InvalidArguments, InvalidMethod,
// ObjectRemoved, PublishVersion, InconsistentInternalState,
// ClusterException) is library-level and lives in pkg/clusterlib, since
// it concerns the object model rather than the backend.
var (
	// ErrConnectionFailure means the backend session was lost; the
	// caller may retry once reconnected.
	ErrConnectionFailure = errors.New("repository: connection failure")
	// ErrInternalsFailure means the backend reported an unexpected
	// error unrelated to connectivity; non-recoverable for this call.
	ErrInternalsFailure = errors.New("repository: internal failure")
	// ErrNodeExists means CreateNode targeted a path that already
	// exists and no sequence flag was set.
	ErrNodeExists = errors.New("repository: node exists")
	// ErrNoNode means an operation targeted a path that does not
	// exist.
	ErrNoNode = errors.New("repository: no such node")
	// ErrVersionMismatch means a CAS write's expected version did not
	// match the node's current version.
	ErrVersionMismatch = errors.New("repository: version mismatch")
	// ErrNodeNotEmpty means DeleteNode targeted a node with children
	// and recursive was false.
	ErrNodeNotEmpty = errors.New("repository: node has children")
)

// IsConnectionFailure reports whether err (or one it wraps) is
// ErrConnectionFailure.
func IsConnectionFailure(err error) bool {
	return errors.Is(err, ErrConnectionFailure)
}

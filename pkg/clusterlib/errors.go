package clusterlib

import "errors"

// Error taxonomy raised by the core library itself; the two
// Repository-level errors are declared separately in pkg/repository.
var (
	// ErrInvalidArguments means a caller passed a null or malformed
	// argument (an empty name, a key outside this Notifyable's subtree).
	ErrInvalidArguments = errors.New("clusterlib: invalid arguments")
	// ErrInvalidMethod means the operation is not permitted on this
	// Notifyable variant (e.g. locking Root).
	ErrInvalidMethod = errors.New("clusterlib: invalid method for this notifyable")
	// ErrObjectRemoved means the target Notifyable has transitioned to
	// REMOVED; every further operation on the handle fails with this.
	ErrObjectRemoved = errors.New("clusterlib: object removed")
	// ErrPublishVersion means a versioned CAS write lost a race; the
	// caller must reload and retry.
	ErrPublishVersion = errors.New("clusterlib: publish version mismatch")
	// ErrInconsistentInternalState means an invariant the library
	// maintains itself was violated — a programming bug, not a caller
	// error.
	ErrInconsistentInternalState = errors.New("clusterlib: inconsistent internal state")
	// ErrClusterException is the catch-all domain error: cluster
	// misconfiguration, a missing parent, a malformed key.
	ErrClusterException = errors.New("clusterlib: cluster exception")
)

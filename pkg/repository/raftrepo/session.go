package raftrepo

import "github.com/google/uuid"

// newSessionID mints the identifier ephemeral nodes are tied to. A
// Repository handle owns exactly one session for its lifetime; ending
// the session (Close) sweeps every ephemeral node it created.
func newSessionID() string {
	return uuid.NewString()
}

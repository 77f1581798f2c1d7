package clusterlib

import (
	"fmt"

	"github.com/clusterlib/clusterlib/pkg/primitives"
)

// State is a Notifyable's lifecycle state.
type State int

const (
	// StateReady is the normal, usable state.
	StateReady State = iota
	// StateRemoved is terminal: set once remove() completes, after
	// which every operation on the handle fails with ErrObjectRemoved.
	StateRemoved
)

func (s State) String() string {
	if s == StateRemoved {
		return "REMOVED"
	}
	return "READY"
}

// Notifyable is the capability set every managed object in the cluster
// tree exposes: Root, Application, Group, Node, DataDistribution,
// PropertyList, Queue and ProcessSlot all satisfy it through the
// embedded common record. Type-specific operations live on the
// concrete variant.
type Notifyable interface {
	Key() string
	Name() string
	State() State
	Parent() (Notifyable, error)
	AcquireLock(acquireChildren bool) error
	ReleaseLock(releaseChildren bool) error
	HasLock() bool
	Remove(recursive bool) error
}

// common is embedded by every Notifyable variant: a factory
// back-pointer, immutable key/name, a parent *key* (not a live pointer
// — parents are resolved through the typed cache under its own mutex)
// and the state-lock guarding the REMOVED transition.
type common struct {
	factory   *FactoryOps
	key       string
	name      string
	parentKey string

	stateLock *primitives.StateLock
	state     State

	// lockRefCount is this process's reentrant hold count on this
	// Notifyable's distributed lock; > 0 iff HasLock() is true.
	lockRefCount int
	// lockBidPath is the sequential ephemeral bid node backing the
	// current hold, valid only while lockRefCount > 0.
	lockBidPath string
}

func newCommon(f *FactoryOps, key, name, parentKey string) *common {
	return &common{
		factory:   f,
		key:       key,
		name:      name,
		parentKey: parentKey,
		stateLock: primitives.NewStateLock(),
		state:     StateReady,
	}
}

func (c *common) Key() string  { return c.key }
func (c *common) Name() string { return c.name }

func (c *common) State() State {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.state
}

// checkRemoved is the fast-path throw-if-removed check every operation
// runs before proceeding.
func (c *common) checkRemoved() error {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.state == StateRemoved {
		return fmt.Errorf("%w: %s", ErrObjectRemoved, c.key)
	}
	return nil
}

// markRemoved transitions to REMOVED under the state-lock; idempotent.
func (c *common) markRemoved() {
	c.stateLock.Lock()
	c.state = StateRemoved
	c.stateLock.Unlock()
}

// markRemovedInternal lets the factory transition cached descendants to
// REMOVED during a recursive remove without needing their concrete
// variant type.
func (c *common) markRemovedInternal() {
	c.markRemoved()
}

func (c *common) Parent() (Notifyable, error) {
	if err := c.checkRemoved(); err != nil {
		return nil, err
	}
	if c.parentKey == "" {
		return nil, nil
	}
	return c.factory.lookupCached(c.parentKey)
}

func (c *common) AcquireLock(acquireChildren bool) error {
	if err := c.checkRemoved(); err != nil {
		return err
	}
	return c.factory.locks.acquire(c, acquireChildren)
}

func (c *common) ReleaseLock(releaseChildren bool) error {
	if err := c.checkRemoved(); err != nil {
		return err
	}
	return c.factory.locks.release(c, releaseChildren)
}

func (c *common) HasLock() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.lockRefCount > 0
}

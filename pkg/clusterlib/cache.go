package clusterlib

import (
	"fmt"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
)

// typedCache is one Notifyable kind's in-memory map, guarded by its own
// mutex. Each kind's keys are unique within that kind's map, and lookups
// always consult this map before touching the backend.
type typedCache struct {
	mu   sync.Mutex
	objs map[string]Notifyable
}

func newTypedCache() *typedCache {
	return &typedCache{objs: make(map[string]Notifyable)}
}

func (c *typedCache) get(k string) (Notifyable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.objs[k]
	return n, ok
}

func (c *typedCache) put(k string, n Notifyable) {
	c.mu.Lock()
	c.objs[k] = n
	c.mu.Unlock()
}

func (c *typedCache) delete(k string) {
	c.mu.Lock()
	delete(c.objs, k)
	c.mu.Unlock()
}

// caches bundles every typed cache plus the graveyard, owned by a
// single FactoryOps.
type caches struct {
	root          *typedCache
	applications  *typedCache
	groups        *typedCache
	nodes         *typedCache
	distributions *typedCache
	propertyLists *typedCache
	queues        *typedCache
	processSlots  *typedCache

	graveyardMu sync.Mutex
	graveyard   []Notifyable
}

func newCaches() *caches {
	return &caches{
		root:          newTypedCache(),
		applications:  newTypedCache(),
		groups:        newTypedCache(),
		nodes:         newTypedCache(),
		distributions: newTypedCache(),
		propertyLists: newTypedCache(),
		queues:        newTypedCache(),
		processSlots:  newTypedCache(),
	}
}

// kindOf classifies k by its reserved collection segment, so lookupCached
// can go straight to the right typed map instead of scanning all of them.
func (c *caches) kindOf(k string) (*typedCache, error) {
	if k == key.Root {
		return c.root, nil
	}
	parts := key.SplitKey(k)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: malformed key %q", ErrInvalidArguments, k)
	}
	collection := parts[len(parts)-2]
	switch collection {
	case key.SegApplications:
		return c.applications, nil
	case key.SegGroups:
		return c.groups, nil
	case key.SegNodes:
		return c.nodes, nil
	case key.SegDistributions:
		return c.distributions, nil
	case key.SegPropertyLists:
		return c.propertyLists, nil
	case key.SegQueues:
		return c.queues, nil
	case key.SegProcessSlots:
		return c.processSlots, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized key collection %q in %q", ErrInvalidArguments, collection, k)
	}
}

func (c *caches) get(k string) (Notifyable, bool, error) {
	tc, err := c.kindOf(k)
	if err != nil {
		return nil, false, err
	}
	n, ok := tc.get(k)
	return n, ok, nil
}

func (c *caches) put(k string, n Notifyable) error {
	tc, err := c.kindOf(k)
	if err != nil {
		return err
	}
	tc.put(k, n)
	return nil
}

func (c *caches) bury(k string, n Notifyable) error {
	tc, err := c.kindOf(k)
	if err != nil {
		return err
	}
	tc.delete(k)
	c.graveyardMu.Lock()
	c.graveyard = append(c.graveyard, n)
	c.graveyardMu.Unlock()
	return nil
}

func (c *caches) graveyardSize() int {
	c.graveyardMu.Lock()
	defer c.graveyardMu.Unlock()
	return len(c.graveyard)
}

// allTyped lists every typed cache except root, which never holds
// descendants of anything else and is never burying targets itself.
func (c *caches) allTyped() []*typedCache {
	return []*typedCache{
		c.applications, c.groups, c.nodes, c.distributions,
		c.propertyLists, c.queues, c.processSlots,
	}
}

// descendantsOf collects every cached Notifyable whose key is a strict
// descendant of prefix, across all typed caches.
func (c *caches) descendantsOf(prefix string) map[string]Notifyable {
	out := make(map[string]Notifyable)
	for _, tc := range c.allTyped() {
		tc.mu.Lock()
		for k, n := range tc.objs {
			if strings.HasPrefix(k, prefix+"/") {
				out[k] = n
			}
		}
		tc.mu.Unlock()
	}
	return out
}

// depth is the number of '/'-delimited components in k, used to order
// subtree locking/removal deepest-first.
func depth(k string) int {
	return strings.Count(k, "/")
}

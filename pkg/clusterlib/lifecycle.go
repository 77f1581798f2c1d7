package clusterlib

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clusterlib/clusterlib/pkg/repository"
)

// getOrCreateNotifyable is the generic shape of every typed getX(name,
// create): consult the typed cache first; on miss check the backend,
// taking parent's distributed lock before creating so concurrent
// creators serialize; build the Go wrapper and cache it. parent is nil
// for direct children of Root, since Root cannot be locked.
func (f *FactoryOps) getOrCreateNotifyable(parent *common, childKey string, create bool, tc *typedCache, build func() Notifyable) (Notifyable, error) {
	if n, ok := tc.get(childKey); ok {
		return n, nil
	}

	ctx := context.Background()
	exists, err := f.repo.Exists(ctx, childKey, f.watchFunc(childKey, childKey, KindNotifyableState))
	if err != nil {
		return nil, err
	}

	if !exists {
		if !create {
			return nil, nil
		}
		if parent != nil {
			if err := parent.AcquireLock(false); err != nil {
				return nil, err
			}
			defer parent.ReleaseLock(false)
		}
		exists, err = f.repo.Exists(ctx, childKey, nil)
		if err != nil {
			return nil, err
		}
		if !exists {
			if _, err := f.repo.CreateNode(ctx, childKey, nil, repository.FlagNone); err != nil &&
				!errors.Is(err, repository.ErrNodeExists) {
				return nil, err
			}
		}
	}

	if n, ok := tc.get(childKey); ok {
		return n, nil
	}
	n := build()
	tc.put(childKey, n)
	f.primeAttributeWatches(n)
	return n, nil
}

// removeNotifyable implements remove(recursive): refuse if
// non-recursive and children exist, take this Notifyable's lock, bury
// cached descendants deepest-first, delete the backend subtree, then
// mark this Notifyable REMOVED and move it to the graveyard.
func (f *FactoryOps) removeNotifyable(n Notifyable, c *common, recursive bool) error {
	if err := c.checkRemoved(); err != nil {
		return err
	}

	ctx := context.Background()
	if !recursive {
		children, err := f.repo.GetNodeChildren(ctx, c.key, nil)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: %s has children, remove(recursive=true) required", ErrInvalidMethod, c.key)
		}
	}

	if err := c.AcquireLock(false); err != nil {
		return err
	}
	defer c.ReleaseLock(false)

	f.buryDescendants(c.key)

	// AcquireLock itself populated a locks/ subdirectory under c.key, so
	// the physical delete must always recurse regardless of the
	// caller's recursive flag — the "no children" contract above was
	// already enforced against the pre-lock child list.
	if _, err := f.repo.DeleteNode(ctx, c.key, true, nil); err != nil {
		return err
	}

	c.markRemoved()
	return f.caches.bury(c.key, n)
}

// buryDescendants transitions every cached descendant of prefix to
// REMOVED and moves it to the graveyard, deepest first so a parent
// never outlives the child it logically contains.
func (f *FactoryOps) buryDescendants(prefix string) {
	descendants := f.caches.descendantsOf(prefix)
	if len(descendants) == 0 {
		return
	}

	keys := make([]string, 0, len(descendants))
	for k := range descendants {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.Count(keys[i], "/") > strings.Count(keys[j], "/")
	})

	for _, k := range keys {
		n := descendants[k]
		if rm, ok := n.(interface{ markRemovedInternal() }); ok {
			rm.markRemovedInternal()
		}
		_ = f.caches.bury(k, n)
	}
}

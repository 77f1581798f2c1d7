package clusterlib

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// distributedLocks implements sequential-ephemeral lock bidding: acquire
// creates a sequential ephemeral bid node under the Notifyable's lock
// directory, then waits on the deletion of the next-lower bid until its
// own bid is the lowest. release deletes the bid. Per-lock reference
// counting makes repeated acquire/release from the same process on the
// same Notifyable cheap and reentrant.
type distributedLocks struct {
	repo repository.Repository

	mu      sync.Mutex
	waiters map[string]chan struct{} // preceding bid path -> wake channel
}

func newDistributedLocks(repo repository.Repository) *distributedLocks {
	return &distributedLocks{repo: repo, waiters: make(map[string]chan struct{})}
}

func lockDir(notifyableKey string) string {
	return key.Attribute(notifyableKey, "locks/NOTIFYABLE_LOCK")
}

func (l *distributedLocks) acquire(c *common, acquireChildren bool) error {
	if acquireChildren {
		return fmt.Errorf("%w: acquireChildren is not yet supported", ErrInvalidMethod)
	}

	c.stateLock.Lock()
	if c.lockRefCount > 0 {
		c.lockRefCount++
		c.stateLock.Unlock()
		return nil
	}
	c.stateLock.Unlock()

	dir := lockDir(c.key)
	ctx := context.Background()
	bidPath, err := l.repo.CreateNode(ctx, dir+"/bid-", nil, repository.FlagEphemeral|repository.FlagSequence)
	if err != nil {
		return fmt.Errorf("clusterlib: lock bid failed for %s: %w", c.key, err)
	}

	for {
		lowest, preceding, found, err := l.lowestAndPreceding(ctx, dir, bidPath)
		if err != nil {
			return err
		}
		if !found {
			// Own bid hasn't shown up in a listing yet (race between
			// CreateNode returning and a subsequent GetNodeChildren
			// observing it). Re-list rather than risk treating this
			// as "lowest".
			continue
		}
		if lowest {
			break
		}

		wake := make(chan struct{})
		l.mu.Lock()
		l.waiters[preceding] = wake
		l.mu.Unlock()

		exists, err := l.repo.Exists(ctx, preceding, func(ev repository.WatchEvent) {
			if ev.Type == repository.EventDeleted {
				l.signalPrecedingGone(preceding)
			}
		})
		if err != nil {
			return err
		}
		if !exists {
			l.signalPrecedingGone(preceding)
			continue
		}
		<-wake
	}

	c.stateLock.Lock()
	c.lockRefCount = 1
	c.lockBidPath = bidPath
	c.stateLock.Unlock()
	return nil
}

func (l *distributedLocks) release(c *common, releaseChildren bool) error {
	if releaseChildren {
		return fmt.Errorf("%w: releaseChildren is not yet supported", ErrInvalidMethod)
	}

	c.stateLock.Lock()
	if c.lockRefCount == 0 {
		c.stateLock.Unlock()
		return nil
	}
	c.lockRefCount--
	stillHeld := c.lockRefCount > 0
	bidPath := c.lockBidPath
	if !stillHeld {
		c.lockBidPath = ""
	}
	c.stateLock.Unlock()
	if stillHeld {
		return nil
	}

	_, err := l.repo.DeleteNode(context.Background(), bidPath, false, nil)
	return err
}

// lowestAndPreceding lists dir's bid children and reports whether
// bidPath is the lowest-numbered, and if not, the full path of the bid
// immediately preceding it. found is false when bidPath itself isn't
// among the listed children yet, which a caller must treat as "try
// again" rather than "lowest" — a freshly created sequential node can
// briefly be invisible to a listing issued right after CreateNode
// returns.
func (l *distributedLocks) lowestAndPreceding(ctx context.Context, dir, bidPath string) (lowest bool, preceding string, found bool, err error) {
	children, err := l.repo.GetNodeChildren(ctx, dir, nil)
	if err != nil {
		return false, "", false, err
	}
	sort.Strings(children)

	self := strings.TrimPrefix(bidPath, dir+"/")
	idx := -1
	for i, c := range children {
		if c == self {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, "", false, nil
	}
	if idx == 0 {
		return true, "", true, nil
	}
	return false, dir + "/" + children[idx-1], true, nil
}

func (l *distributedLocks) signalPrecedingGone(path string) {
	l.mu.Lock()
	wake, ok := l.waiters[path]
	if ok {
		delete(l.waiters, path)
	}
	l.mu.Unlock()
	if ok {
		close(wake)
	}
}

// sequenceSuffix extracts the numeric suffix CreateNode appended under
// FlagSequence, for tests and diagnostics.
func sequenceSuffix(path string) (int64, error) {
	if len(path) < 10 {
		return 0, fmt.Errorf("clusterlib: %q too short for a sequence suffix", path)
	}
	return strconv.ParseInt(path[len(path)-10:], 10, 64)
}

package clusterlib

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// leaderElection runs the same sequential-ephemeral bidding primitive
// as distributedLocks, in a separate per-Group "leaders" namespace.
// Becoming leader is driven by the deletion of the next-lower bid the
// same way lock acquire is, except every local bidder for a Group is
// re-driven on each cascade rather than just the one waiter — a
// process can run several Servers bidding for the same Group.
type leaderElection struct {
	repo repository.Repository

	mu      sync.Mutex
	waiters map[string]chan struct{}
	bidders map[string][]*bidder // groupKey -> this process's local bidders
}

type bidder struct {
	bidPath    string
	onElected  func()
	onDeposed  func()
	isLeader   bool
}

func newLeaderElection(repo repository.Repository) *leaderElection {
	return &leaderElection{
		repo:    repo,
		waiters: make(map[string]chan struct{}),
		bidders: make(map[string][]*bidder),
	}
}

func leaderDir(groupKey string) string {
	return key.Attribute(groupKey, "leaders/LEADER_ELECTION")
}

// bid enters groupKey's leader election for one local Server, invoking
// onElected the moment this bid becomes lowest and onDeposed if it is
// later superseded (which never happens for an ephemeral bid short of
// session loss, but the hook exists for giveUpLeadership).
func (e *leaderElection) bid(ctx context.Context, groupKey string, onElected, onDeposed func()) (*bidder, error) {
	dir := leaderDir(groupKey)
	bidPath, err := e.repo.CreateNode(ctx, dir+"/bid-", nil, repository.FlagEphemeral|repository.FlagSequence)
	if err != nil {
		return nil, fmt.Errorf("clusterlib: leader bid failed for %s: %w", groupKey, err)
	}

	b := &bidder{bidPath: bidPath, onElected: onElected, onDeposed: onDeposed}
	e.mu.Lock()
	e.bidders[groupKey] = append(e.bidders[groupKey], b)
	e.mu.Unlock()

	e.tryToBecomeLeader(ctx, groupKey, b)
	return b, nil
}

// tryToBecomeLeader re-evaluates whether b's bid is now the lowest in
// groupKey's election, arming a watch on the preceding bid if not.
func (e *leaderElection) tryToBecomeLeader(ctx context.Context, groupKey string, b *bidder) {
	dir := leaderDir(groupKey)
	children, err := e.repo.GetNodeChildren(ctx, dir, nil)
	if err != nil {
		return
	}
	sort.Strings(children)

	self := strings.TrimPrefix(b.bidPath, dir+"/")
	idx := -1
	for i, c := range children {
		if c == self {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	if idx == 0 {
		e.mu.Lock()
		alreadyLeader := b.isLeader
		b.isLeader = true
		e.mu.Unlock()
		if !alreadyLeader && b.onElected != nil {
			b.onElected()
		}
		return
	}

	preceding := dir + "/" + children[idx-1]
	wake := make(chan struct{})
	e.mu.Lock()
	e.waiters[preceding] = wake
	e.mu.Unlock()

	exists, err := e.repo.Exists(ctx, preceding, func(ev repository.WatchEvent) {
		if ev.Type == repository.EventDeleted {
			e.signalPrecedingGone(preceding)
		}
	})
	if err != nil {
		return
	}
	if !exists {
		e.signalPrecedingGone(preceding)
	}
}

// signalPrecedingGone wakes the waiter for path (if any) and re-drives
// tryToBecomeLeader for every local bidder in every group: a single
// deletion may unblock more than one local bidder if several Servers
// share a process.
func (e *leaderElection) signalPrecedingGone(path string) {
	e.mu.Lock()
	wake, ok := e.waiters[path]
	if ok {
		delete(e.waiters, path)
	}
	allBidders := make(map[string][]*bidder, len(e.bidders))
	for k, v := range e.bidders {
		allBidders[k] = append([]*bidder(nil), v...)
	}
	e.mu.Unlock()

	if ok {
		close(wake)
	}
	ctx := context.Background()
	for groupKey, bidders := range allBidders {
		for _, b := range bidders {
			e.mu.Lock()
			isLeader := b.isLeader
			e.mu.Unlock()
			if !isLeader {
				e.tryToBecomeLeader(ctx, groupKey, b)
			}
		}
	}
}

// giveUp withdraws b from groupKey's election by deleting its bid.
func (e *leaderElection) giveUp(ctx context.Context, groupKey string, b *bidder) error {
	e.mu.Lock()
	bidders := e.bidders[groupKey]
	for i, cand := range bidders {
		if cand == b {
			e.bidders[groupKey] = append(bidders[:i], bidders[i+1:]...)
			break
		}
	}
	wasLeader := b.isLeader
	b.isLeader = false
	e.mu.Unlock()

	if wasLeader && b.onDeposed != nil {
		b.onDeposed()
	}
	_, err := e.repo.DeleteNode(ctx, b.bidPath, false, nil)
	return err
}

func (b *bidder) isElected() bool {
	return b.isLeader
}

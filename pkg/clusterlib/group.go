package clusterlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
)

// groupCore holds the child-collection behavior shared by Group and
// Application: both own child Groups, Nodes, DataDistributions,
// PropertyLists and Queues, and both participate in leader election.
// Both variants embed a *groupCore by pointer and inherit its method
// set rather than duplicating it.
type groupCore struct {
	*common

	mu          sync.Mutex
	leaderBid   *bidder
	leaderValue string
}

func newGroupCore(f *FactoryOps, k, name, parentKey string) *groupCore {
	return &groupCore{common: newCommon(f, k, name, parentKey)}
}

// Group composes the key of name.
func (g *groupCore) Group(name string, create bool) (*Group, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid group name %q", ErrInvalidArguments, name)
	}
	childKey := key.Group(g.key, name)
	n, err := g.factory.getOrCreateNotifyable(g.common, childKey, create, g.factory.caches.groups, func() Notifyable {
		return &Group{newGroupCore(g.factory, childKey, name, g.key)}
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*Group), nil
}

// Groups lists the names of this group's child groups, installing a
// children watch.
func (g *groupCore) Groups() ([]string, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	return g.factory.repo.GetNodeChildren(context.Background(), key.GroupsDir(g.key),
		g.factory.watchFunc(key.GroupsDir(g.key), g.key, KindGroups))
}

// Node composes the key of name under this group.
func (g *groupCore) Node(name string, create bool) (*Node, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid node name %q", ErrInvalidArguments, name)
	}
	childKey := key.Node(g.key, name)
	n, err := g.factory.getOrCreateNotifyable(g.common, childKey, create, g.factory.caches.nodes, func() Notifyable {
		return newNode(g.factory, childKey, name, g.key)
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*Node), nil
}

// Nodes lists the names of this group's child nodes.
func (g *groupCore) Nodes() ([]string, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	return g.factory.repo.GetNodeChildren(context.Background(), key.NodesDir(g.key),
		g.factory.watchFunc(key.NodesDir(g.key), g.key, KindNodes))
}

// DataDistribution composes the key of name under this group.
func (g *groupCore) DataDistribution(name string, create bool) (*DataDistribution, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid distribution name %q", ErrInvalidArguments, name)
	}
	childKey := key.DataDistribution(g.key, name)
	n, err := g.factory.getOrCreateNotifyable(g.common, childKey, create, g.factory.caches.distributions, func() Notifyable {
		return newDataDistribution(g.factory, childKey, name, g.key)
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*DataDistribution), nil
}

// DataDistributions lists the names of this group's child distributions.
func (g *groupCore) DataDistributions() ([]string, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	return g.factory.repo.GetNodeChildren(context.Background(), key.DistributionsDir(g.key),
		g.factory.watchFunc(key.DistributionsDir(g.key), g.key, KindDataDistributions))
}

// PropertyList composes the key of name under this group.
func (g *groupCore) PropertyList(name string, create bool) (*PropertyList, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid property list name %q", ErrInvalidArguments, name)
	}
	childKey := key.PropertyList(g.key, name)
	n, err := g.factory.getOrCreateNotifyable(g.common, childKey, create, g.factory.caches.propertyLists, func() Notifyable {
		return newPropertyList(g.factory, childKey, name, g.key)
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*PropertyList), nil
}

// Queue composes the key of name under this group.
func (g *groupCore) Queue(name string, create bool) (*Queue, error) {
	if err := g.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid queue name %q", ErrInvalidArguments, name)
	}
	childKey := key.Queue(g.key, name)
	n, err := g.factory.getOrCreateNotifyable(g.common, childKey, create, g.factory.caches.queues, func() Notifyable {
		return newQueue(g.factory, childKey, name, g.key)
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*Queue), nil
}

// Remove deletes this group-like Notifyable and, if recursive, every
// descendant beneath it.
func (g *groupCore) Remove(recursive bool) error {
	return g.factory.removeNotifyable(g, g.common, recursive)
}

// TryToBecomeLeader enters this group's leader election for one local
// bidder, invoking onElected/onDeposed as the bid's fortunes change.
// Normally called by a Server rather than directly.
func (g *groupCore) TryToBecomeLeader(onElected, onDeposed func()) error {
	if err := g.checkRemoved(); err != nil {
		return err
	}
	b, err := g.factory.election.bid(context.Background(), g.key, onElected, onDeposed)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.leaderBid = b
	g.mu.Unlock()
	return nil
}

// AmITheLeader reports whether this process's most recent bid in this
// group's election is currently elected.
func (g *groupCore) AmITheLeader() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leaderBid != nil && g.leaderBid.isElected()
}

// GiveUpLeadership withdraws this process's bid from the election.
func (g *groupCore) GiveUpLeadership() error {
	g.mu.Lock()
	b := g.leaderBid
	g.leaderBid = nil
	g.mu.Unlock()
	if b == nil {
		return nil
	}
	return g.factory.election.giveUp(context.Background(), g.key, b)
}

// Group is a Notifyable owning child Groups, Nodes, DataDistributions,
// PropertyLists and Queues, and participating in leader election.
type Group struct {
	*groupCore
}

func newGroup(f *FactoryOps, k, name, parentKey string) *Group {
	return &Group{newGroupCore(f, k, name, parentKey)}
}

package clusterlib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// Client state string constants published as a Node's clientState
// attribute.
const (
	ClientStateHealthy   = "healthy"
	ClientStateUnhealthy = "unhealthy"
)

// Node is a Notifyable owning ProcessSlots and PropertyLists, observed
// for liveness via its clientState/masterSetState/connected attributes.
type Node struct {
	*common

	mu             sync.Mutex
	connected      bool
	clientState    string
	masterSetState string
}

func newNode(f *FactoryOps, k, name, parentKey string) *Node {
	return &Node{common: newCommon(f, k, name, parentKey)}
}

// ClientState returns the last observed clientState attribute value.
func (n *Node) ClientState() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clientState
}

// MasterSetState returns the last observed masterSetState attribute
// value.
func (n *Node) MasterSetState() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.masterSetState
}

// Connected returns the last observed connected attribute.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// Healthy reports whether this node's clientState equals
// ClientStateHealthy.
func (n *Node) Healthy() bool {
	return n.ClientState() == ClientStateHealthy
}

// SetClientState publishes clientState as this node's clientState
// attribute; a Server's health-checker thread calls this on every tick.
func (n *Node) SetClientState(state string) error {
	if err := n.checkRemoved(); err != nil {
		return err
	}
	attrKey := key.Attribute(n.key, attrClientState)
	ctx := context.Background()
	_, stat, err := n.factory.repo.GetNodeData(ctx, attrKey, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			_, err := n.factory.repo.CreateNode(ctx, attrKey, []byte(state), repository.FlagNone)
			return err
		}
		return err
	}
	_, err = n.factory.repo.SetNodeData(ctx, attrKey, []byte(state), stat.Version)
	return err
}

// PropertyList composes the key of name under this node.
func (n *Node) PropertyList(name string, create bool) (*PropertyList, error) {
	if err := n.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid property list name %q", ErrInvalidArguments, name)
	}
	childKey := key.PropertyList(n.key, name)
	obj, err := n.factory.getOrCreateNotifyable(n.common, childKey, create, n.factory.caches.propertyLists, func() Notifyable {
		return newPropertyList(n.factory, childKey, name, n.key)
	})
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*PropertyList), nil
}

// ProcessSlot composes the key of name under this node.
func (n *Node) ProcessSlot(name string, create bool) (*ProcessSlot, error) {
	if err := n.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid process slot name %q", ErrInvalidArguments, name)
	}
	childKey := key.ProcessSlot(n.key, name)
	obj, err := n.factory.getOrCreateNotifyable(n.common, childKey, create, n.factory.caches.processSlots, func() Notifyable {
		return newProcessSlot(n.factory, childKey, name, n.key)
	})
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*ProcessSlot), nil
}

// ProcessSlots lists the names of this node's process slots.
func (n *Node) ProcessSlots() ([]string, error) {
	if err := n.checkRemoved(); err != nil {
		return nil, err
	}
	dir := key.ProcessSlotsDir(n.key)
	return n.factory.repo.GetNodeChildren(context.Background(), dir, n.factory.watchFunc(dir, n.key, KindNodes))
}

// Remove deletes this Node and, if recursive, every descendant beneath
// it.
func (n *Node) Remove(recursive bool) error {
	return n.factory.removeNotifyable(n, n.common, recursive)
}

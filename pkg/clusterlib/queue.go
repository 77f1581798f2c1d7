package clusterlib

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// Queue is an ordered FIFO of opaque string elements, stored as
// persistent sequential children of the "elements" leaf under the
// Queue's key: Put creates "elements/elem-<seq>", Take reads and deletes
// the lowest-sequence child.
type Queue struct {
	*common
}

func newQueue(f *FactoryOps, k, name, parentKey string) *Queue {
	return &Queue{common: newCommon(f, k, name, parentKey)}
}

func queueElementDir(queueKey string) string {
	return key.Attribute(queueKey, "elements")
}

// Put appends element to the tail of the queue.
func (q *Queue) Put(element string) error {
	if err := q.checkRemoved(); err != nil {
		return err
	}
	dir := queueElementDir(q.key)
	ctx := context.Background()
	_, err := q.factory.repo.CreateNode(ctx, dir+"/elem-", []byte(element), repository.FlagSequence)
	if err != nil {
		return fmt.Errorf("clusterlib: queue put failed for %s: %w", q.key, err)
	}
	return nil
}

// Take removes and returns the element at the head of the queue. It
// returns ErrNoNode-wrapping error when the queue is empty.
func (q *Queue) Take() (string, error) {
	if err := q.checkRemoved(); err != nil {
		return "", err
	}
	dir := queueElementDir(q.key)
	ctx := context.Background()

	children, err := q.factory.repo.GetNodeChildren(ctx, dir, nil)
	if err != nil {
		return "", err
	}
	if len(children) == 0 {
		return "", fmt.Errorf("clusterlib: queue %s is empty: %w", q.key, repository.ErrNoNode)
	}
	sort.Strings(children)
	head := dir + "/" + children[0]

	data, _, err := q.factory.repo.GetNodeData(ctx, head, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			return q.Take()
		}
		return "", err
	}
	if _, err := q.factory.repo.DeleteNode(ctx, head, false, nil); err != nil && !errors.Is(err, repository.ErrNoNode) {
		return "", err
	}
	return string(data), nil
}

// Size returns the number of elements currently queued.
func (q *Queue) Size() (int, error) {
	if err := q.checkRemoved(); err != nil {
		return 0, err
	}
	children, err := q.factory.repo.GetNodeChildren(context.Background(), queueElementDir(q.key), nil)
	if err != nil {
		return 0, err
	}
	return len(children), nil
}

// Remove deletes this Queue and all of its elements.
func (q *Queue) Remove(recursive bool) error {
	return q.factory.removeNotifyable(q, q.common, true)
}

/*
Package event defines the generic event envelope the dispatch engine
consumes, and the two adapters that feed it: a synchronous adapter that
just deposits events into a blocking queue, and a listener adapter that
tags events from a typed source so several sources can share one queue.
*/
package event

import "github.com/clusterlib/clusterlib/pkg/primitives"

// Kind distinguishes the origin of a GenericEvent.
type Kind int

const (
	// KindTimer marks an event produced by a primitives.Wheel firing.
	KindTimer Kind = iota
	// KindBackend marks an event produced by the repository's watch
	// mechanism (a ZooKeeper-like CREATED/DELETED/CHANGED/CHILD/SESSION
	// notification).
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindTimer:
		return "TIMEREVENT"
	case KindBackend:
		return "ZKEVENT"
	default:
		return "UNKNOWN"
	}
}

// Generic wraps a payload with the Kind that produced it, so the
// dispatcher's internal/external consumers can discriminate without
// knowing each source's concrete event type.
type Generic struct {
	Kind    Kind
	Payload any
}

// Source is anything that can deliver T values, one at a time, with the
// same three-way timeout semantics as primitives.BlockingQueue.Take.
type Source[T any] interface {
	Take(timeoutMs int) (T, bool)
}

// SynchronousAdapter is a Source of Generic events backed by a blocking
// queue: whatever feeds it (a repository watch callback, a timer wheel)
// calls Deliver, and consumers pull with Take. It exists purely to give
// every event producer a uniform sink.
type SynchronousAdapter struct {
	queue *primitives.BlockingQueue[Generic]
}

// NewSynchronousAdapter creates an adapter with an empty backing queue.
func NewSynchronousAdapter() *SynchronousAdapter {
	return &SynchronousAdapter{queue: primitives.NewBlockingQueue[Generic]()}
}

// Deliver enqueues e for the next Take call.
func (a *SynchronousAdapter) Deliver(e Generic) {
	a.queue.Put(e)
}

// Take pulls the next event, honoring BlockingQueue's timeout contract.
func (a *SynchronousAdapter) Take(timeoutMs int) (Generic, bool) {
	return a.queue.Take(timeoutMs)
}

// Len reports how many events are queued but not yet taken.
func (a *SynchronousAdapter) Len() int {
	return a.queue.Len()
}

// ListenerAdapter converts a typed event source into a Generic source by
// tagging every event it relays with a fixed Kind and delivering it to
// each of a fixed set of SynchronousAdapters.
type ListenerAdapter[T any] struct {
	kind    Kind
	targets []*SynchronousAdapter
}

// NewListenerAdapter builds an adapter tagging relayed events with kind,
// fanning each one out to every adapter in targets.
func NewListenerAdapter[T any](kind Kind, targets ...*SynchronousAdapter) *ListenerAdapter[T] {
	return &ListenerAdapter[T]{kind: kind, targets: targets}
}

// Relay wraps payload as a Generic event of this adapter's Kind and
// delivers a copy to every target adapter.
func (l *ListenerAdapter[T]) Relay(payload T) {
	e := Generic{Kind: l.kind, Payload: payload}
	for _, t := range l.targets {
		t.Deliver(e)
	}
}

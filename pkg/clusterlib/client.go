package clusterlib

import (
	"sync"

	"github.com/clusterlib/clusterlib/pkg/primitives"
)

// UserEventHandler is invoked on a Client's delivery thread once per
// matching UserEventPayload. Handlers registered on the same key run in
// registration order; a handler must not block the delivery thread for
// long since it delays every other registration.
type UserEventHandler func(UserEventPayload)

// Client is a registration point and single-threaded event-delivery
// pipe for one consumer of clusterlib's semantic events: it owns a
// BlockingQueue fed by FactoryOps.fanOut and a background goroutine
// that pulls payloads off it and invokes whichever handlers are
// registered for the payload's key.
type Client struct {
	factory *FactoryOps
	queue   *primitives.BlockingQueue[UserEventPayload]

	mu       sync.Mutex
	handlers map[string][]UserEventHandler

	stopOnce sync.Once
	done     chan struct{}
}

// NewClient registers a new Client against f and starts its delivery
// thread.
func NewClient(f *FactoryOps) *Client {
	c := &Client{
		factory:  f,
		queue:    primitives.NewBlockingQueue[UserEventPayload](),
		handlers: make(map[string][]UserEventHandler),
		done:     make(chan struct{}),
	}
	f.registerClient(c)
	go c.deliveryLoop()
	return c
}

// RegisterHandler arranges for handler to be invoked whenever a
// semantic event fires on the Notifyable identified by key. Passing
// key.Root registers a handler for every end-of-life ENDEVENT.
func (c *Client) RegisterHandler(key string, handler UserEventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[key] = append(c.handlers[key], handler)
}

// CancelHandlers removes every handler previously registered for key.
func (c *Client) CancelHandlers(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, key)
}

// deliver enqueues payload for this Client's delivery thread; called
// by FactoryOps.fanOut on the dispatch goroutine, never directly.
func (c *Client) deliver(payload UserEventPayload) {
	c.queue.Put(payload)
}

func (c *Client) deliveryLoop() {
	defer close(c.done)
	for {
		payload, ok := c.queue.Take(dispatchPollMs)
		if !ok {
			continue
		}
		c.mu.Lock()
		hs := append([]UserEventHandler(nil), c.handlers[payload.Key]...)
		c.mu.Unlock()
		for _, h := range hs {
			h(payload)
		}
		if payload.Event == SemEndEvent {
			return
		}
	}
}

// Close unregisters this Client from its factory. It does not wait for
// the delivery thread (see Wait) and does not itself trigger an
// ENDEVENT; that happens only when the owning FactoryOps shuts down.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.factory.unregisterClient(c)
	})
}

// Wait blocks until this Client's delivery thread has exited, which
// happens once it observes the factory's ENDEVENT.
func (c *Client) Wait() {
	<-c.done
}

package primitives

import (
	"container/heap"
	"sync"
	"time"
)

// TimerID identifies a scheduled timer; it is monotonically increasing
// within a Wheel and never reused.
type TimerID uint64

// TimerPayload is what a Wheel keeps for each scheduled alarm; when the
// alarm expires the worker calls Handler(ClientData). ClientData is
// opaque to the wheel.
type TimerPayload struct {
	ID         TimerID
	Handler    func(clientData any)
	ClientData any
	cancelled  bool
}

type timerEntry struct {
	alarm   time.Time
	payload *TimerPayload
	index   int // heap index, maintained by container/heap
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].alarm.Before(h[j].alarm) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// maxWheelTick bounds how long the worker sleeps between head checks, so
// a newly scheduled alarm nearer than the current head is never missed by
// more than this much.
const maxWheelTick = 100 * time.Millisecond

// Wheel is a single-worker-thread timer: scheduleAfter returns a
// monotonic TimerID; the worker thread sleeps the minimum of 100ms or
// (head.alarm - now), pops expired heads, and invokes their payload's
// Handler. Cancel marks an entry cancelled; a cancelled payload
// encountered at fire time is silently dropped rather than invoked.
type Wheel struct {
	mu      sync.Mutex
	heap    timerHeap
	byID    map[TimerID]*timerEntry
	nextID  TimerID
	wake    chan struct{}
	done    chan struct{}
	started bool
}

// NewWheel creates an idle timer wheel; call Start to run its worker.
func NewWheel() *Wheel {
	return &Wheel{
		byID: make(map[TimerID]*timerEntry),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Start is idempotent.
func (w *Wheel) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

// Stop halts the worker goroutine; scheduled-but-unfired timers are
// dropped without invoking their handlers.
func (w *Wheel) Stop() {
	close(w.done)
}

// ScheduleAfter arranges for handler(clientData) to run after msecs
// milliseconds, on the wheel's worker goroutine.
func (w *Wheel) ScheduleAfter(msecs int64, handler func(clientData any), clientData any) TimerID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	entry := &timerEntry{
		alarm: time.Now().Add(time.Duration(msecs) * time.Millisecond),
		payload: &TimerPayload{
			ID:         id,
			Handler:    handler,
			ClientData: clientData,
		},
	}
	heap.Push(&w.heap, entry)
	w.byID[id] = entry
	w.poke()
	return id
}

// Cancel marks id's payload cancelled. It is best-effort: a timer already
// in the process of firing may still invoke its handler once.
func (w *Wheel) Cancel(id TimerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, found := w.byID[id]
	if !found {
		return false
	}
	entry.payload.cancelled = true
	delete(w.byID, id)
	return true
}

func (w *Wheel) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Wheel) run() {
	for {
		w.mu.Lock()
		sleep := maxWheelTick
		if w.heap.Len() > 0 {
			head := w.heap[0]
			if until := time.Until(head.alarm); until < sleep {
				sleep = until
			}
		}
		if sleep < 0 {
			sleep = 0
		}
		w.mu.Unlock()

		timer := time.NewTimer(sleep)
		select {
		case <-w.done:
			timer.Stop()
			return
		case <-w.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		w.fireExpired()
	}
}

func (w *Wheel) fireExpired() {
	now := time.Now()
	var fired []*TimerPayload

	w.mu.Lock()
	for w.heap.Len() > 0 && !w.heap[0].alarm.After(now) {
		entry := heap.Pop(&w.heap).(*timerEntry)
		delete(w.byID, entry.payload.ID)
		fired = append(fired, entry.payload)
	}
	w.mu.Unlock()

	for _, p := range fired {
		if p.cancelled {
			continue
		}
		p.Handler(p.ClientData)
	}
}

package primitives

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWheelFiresAfterDelay(t *testing.T) {
	w := NewWheel()
	w.Start()
	defer w.Stop()

	var fired atomic.Bool
	w.ScheduleAfter(20, func(any) { fired.Store(true) }, nil)

	assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
}

func TestWheelCancelSuppressesFire(t *testing.T) {
	w := NewWheel()
	w.Start()
	defer w.Stop()

	var fired atomic.Bool
	id := w.ScheduleAfter(30, func(any) { fired.Store(true) }, nil)
	ok := w.Cancel(id)
	assert.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestWheelOrdersByAlarmTime(t *testing.T) {
	w := NewWheel()
	w.Start()
	defer w.Stop()

	order := make(chan int, 2)
	w.ScheduleAfter(40, func(any) { order <- 2 }, nil)
	w.ScheduleAfter(10, func(any) { order <- 1 }, nil)

	first := <-order
	second := <-order
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestWheelCancelUnknownID(t *testing.T) {
	w := NewWheel()
	assert.False(t, w.Cancel(TimerID(999)))
}

package waiter

import (
	"sync"

	"github.com/evanphx/tinyos/log"
	"github.com/evanphx/tinyos/pkg/ilist"
)

type EventType uint64

// Waiter fans out notifications to registered events whose mask matches.
// Payloads are opaque to the waiter.
type Waiter struct {
	mu sync.RWMutex

	count   int
	waiters ilist.List
}

type Event struct {
	ilist.Entry

	Mask     EventType
	Context  interface{}
	Callback func(e *Event, payload interface{})
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++

	w.waiters.PushBack(e)
}

func triggerChan(e *Event, payload interface{}) {
	c := e.Context.(chan interface{})

	select {
	case c <- payload:
	default:
	}
}

// RegisterChannel delivers matching payloads into c without blocking. A full
// channel drops the payload, so size c for the burst you expect.
func (w *Waiter) RegisterChannel(mask EventType, c chan interface{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count--

	w.waiters.Remove(e)
}

func (w *Waiter) Notify(mask EventType, payload interface{}) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	log.L.Trace("waiters-notify", "count", w.count, "mask", mask)

	for it := w.waiters.Front(); it != nil; it = it.Next() {
		e := it.(*Event)
		if mask&e.Mask != 0 {
			e.Callback(e, payload)
		}
	}
}

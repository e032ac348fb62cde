package events

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by WaitFor when no matching event arrives
// within the timeout. Callers can distinguish it from delivery errors.
var ErrWaitTimeout = errors.New("events: wait timed out")

// Handler processes one event. A returned error is logged and isolated;
// it never stops the remaining handlers or propagates to the emitter.
type Handler func(Event) error

// Subscription identifies a registered handler so it can be removed.
// Handler funcs are not comparable in Go, so On/Once hand back a token.
type Subscription struct {
	eventType string
	handler   Handler
	once      bool
	fired     bool
}

// Bus is an in-process pub/sub dispatcher. Handlers for a type run
// sequentially in registration order; one handler's failure never breaks
// the others or the emitting code path. A bounded FIFO ring of emitted
// events is kept for introspection.
type Bus struct {
	mu         sync.Mutex
	handlers   map[string][]*Subscription
	history    []Event
	historyMax int
	logger     func(format string, args ...any)
}

// NewBus creates a bus keeping at most historyMax events of history.
// historyMax <= 0 selects the default of 100.
func NewBus(historyMax int) *Bus {
	if historyMax <= 0 {
		historyMax = 100
	}
	return &Bus{
		handlers:   make(map[string][]*Subscription),
		historyMax: historyMax,
		logger:     log.Printf,
	}
}

// SetLogger replaces the function used to report handler failures.
func (b *Bus) SetLogger(fn func(format string, args ...any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn != nil {
		b.logger = fn
	}
}

// On registers a handler for an event type. Multiple handlers per type are
// allowed and run in registration order.
func (b *Bus) On(eventType string, h Handler) *Subscription {
	return b.subscribe(eventType, h, false)
}

// Once registers a handler that is removed after its first invocation.
func (b *Bus) Once(eventType string, h Handler) *Subscription {
	return b.subscribe(eventType, h, true)
}

func (b *Bus) subscribe(eventType string, h Handler, once bool) *Subscription {
	sub := &Subscription{eventType: eventType, handler: h, once: once}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], sub)
	return sub
}

// Off removes a previously registered subscription. Removing a
// subscription twice is a no-op.
func (b *Bus) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

// remove must be called with b.mu held.
func (b *Bus) remove(sub *Subscription) {
	subs := b.handlers[sub.eventType]
	for i, s := range subs {
		if s == sub {
			b.handlers[sub.eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.eventType]) == 0 {
		delete(b.handlers, sub.eventType)
	}
}

// Emit delivers the event to every handler registered for its type,
// sequentially and in registration order. Each handler runs to completion
// before the next starts, so a handler that emits a secondary event sees
// that event's handlers finish before its own emit call returns.
func (b *Bus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.historyMax {
		b.history = b.history[len(b.history)-b.historyMax:]
	}
	// Snapshot the list; handlers may subscribe/unsubscribe re-entrantly.
	subs := make([]*Subscription, len(b.handlers[ev.Type]))
	copy(subs, b.handlers[ev.Type])
	logf := b.logger
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.once {
			b.mu.Lock()
			if sub.fired {
				b.mu.Unlock()
				continue
			}
			sub.fired = true
			b.remove(sub)
			b.mu.Unlock()
		}
		b.invoke(sub, ev, logf)
	}
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(sub *Subscription, ev Event, logf func(string, ...any)) {
	defer func() {
		if r := recover(); r != nil {
			logf("events: handler for %q panicked: %v", ev.Type, r)
		}
	}()
	if err := sub.handler(ev); err != nil {
		logf("events: handler for %q failed: %v", ev.Type, err)
	}
}

// WaitFor blocks until the next event of the given type for which pred
// returns true (a nil pred matches any event of the type), or fails with
// ErrWaitTimeout after the timeout. Non-matching events leave the
// subscription in place.
func (b *Bus) WaitFor(eventType string, pred func(Event) bool, timeout time.Duration) (Event, error) {
	ch := make(chan Event, 1)
	var once sync.Once
	sub := b.On(eventType, func(ev Event) error {
		if pred != nil && !pred(ev) {
			return nil
		}
		once.Do(func() { ch <- ev })
		return nil
	})
	defer b.Off(sub)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-ch:
		return ev, nil
	case <-timer.C:
		return Event{}, ErrWaitTimeout
	}
}

// History returns a copy of the retained event history, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// HandlerCount returns the number of handlers registered for a type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[eventType])
}

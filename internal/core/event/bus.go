package event

import (
	"sync"
	"time"
)

// Handler receives lifecycle events. It runs on the goroutine that emits.
type Handler func(Event)

// Subscription identifies one registered handler. The zero value is not a
// valid subscription.
type Subscription struct {
	kind Kind
	id   uint64
}

// Kind returns the channel the subscription listens on.
func (s Subscription) Kind() Kind { return s.kind }

type entry struct {
	id uint64
	fn Handler
}

// Bus dispatches lifecycle events synchronously, in subscription order, one
// list of subscribers per channel. Emitting on an empty channel is a no-op.
// After Close the bus drops every subscriber and ignores further traffic.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	handlers [numKinds][]entry
	nextID   uint64
	closed   bool
	now      func() time.Time
}

func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers fn on the given channel.
func (b *Bus) Subscribe(kind Kind, fn Handler) Subscription {
	if fn == nil || kind < 0 || kind >= numKinds {
		return Subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Subscription{}
	}
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], entry{id: b.nextID, fn: fn})
	return Subscription{kind: kind, id: b.nextID}
}

// SubscribeAll registers fn on all four channels.
func (b *Bus) SubscribeAll(fn Handler) []Subscription {
	subs := make([]Subscription, 0, numKinds)
	for _, k := range Kinds() {
		if sub := b.Subscribe(k, fn); sub.id != 0 {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Unsubscribe removes a handler. It reports whether the handler was found.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	if sub.id == 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.kind]
	for i, e := range list {
		if e.id != sub.id {
			continue
		}
		// Copy so an in-flight Emit keeps iterating its own snapshot.
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		b.handlers[sub.kind] = next
		return true
	}
	return false
}

// Emit delivers ev to every handler on its channel. A zero At is stamped
// with the current time.
func (b *Bus) Emit(ev Event) {
	if ev.Kind < 0 || ev.Kind >= numKinds {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	handlers := b.handlers[ev.Kind]
	b.mu.Unlock()

	if len(handlers) == 0 {
		return
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	for _, h := range handlers {
		h.fn(ev)
	}
}

// Len returns the number of handlers on a channel.
func (b *Bus) Len(kind Kind) int {
	if kind < 0 || kind >= numKinds {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[kind])
}

// Close empties every channel and releases the handler references.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.handlers {
		b.handlers[k] = nil
	}
	b.closed = true
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

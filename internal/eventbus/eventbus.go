package eventbus

import "sync"

// Handler is a callback function for events.
type Handler[T any] func(T)

// Subscription identifies a registered handler.
type Subscription uint64

type subscriber[T any] struct {
	id      Subscription
	handler Handler[T]
}

// Bus is a typed event bus with asynchronous, ordered delivery.
//
// Published events are queued and handed to every handler by a single
// dispatcher goroutine, so handlers never run concurrently with each other
// and every handler sees events in publish order. Publish never blocks on
// handlers.
type Bus[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []T
	handlers []subscriber[T]
	nextID   Subscription
	closed   bool
	done     chan struct{}
	onPanic  func(any)
}

// Option configures a Bus.
type Option func(*options)

type options struct {
	onPanic func(any)
}

// WithPanicHandler installs a function that receives the value of a
// recovered handler panic. Without it the panic is dropped and delivery
// continues with the next handler.
func WithPanicHandler(fn func(any)) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

// New creates a bus and starts its dispatcher.
func New[T any](opts ...Option) *Bus[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bus[T]{
		nextID:  1,
		done:    make(chan struct{}),
		onPanic: o.onPanic,
	}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Subscribe registers a handler and returns its subscription.
func (b *Bus[T]) Subscribe(handler Handler[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, subscriber[T]{id: id, handler: handler})
	return id
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus[T]) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.handlers {
		if s.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Publish queues an event for delivery. Events published after Close are dropped.
func (b *Bus[T]) Publish(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, event)
	b.cond.Signal()
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Close stops accepting events, delivers whatever is queued and waits for
// the dispatcher to exit. It is safe to call more than once.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	<-b.done
}

func (b *Bus[T]) dispatch() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		event := b.queue[0]
		var zero T
		b.queue[0] = zero
		b.queue = b.queue[1:]
		// Snapshot handlers to avoid holding lock during callbacks
		snapshot := make([]subscriber[T], len(b.handlers))
		copy(snapshot, b.handlers)
		b.mu.Unlock()

		for _, s := range snapshot {
			b.deliver(s.handler, event)
		}
	}
}

func (b *Bus[T]) deliver(h Handler[T], event T) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(r)
		}
	}()
	h(event)
}

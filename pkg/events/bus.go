package events

import "sync"

// Bus decouples producers from a consumer. Emit never blocks: events are
// queued and a single pump goroutine delivers them on Events(). While queued,
// consecutive progress events for the same name collapse into the newest one.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
}

// NewBus starts a bus. buffer sizes the output channel.
func NewBus(buffer int) *Bus {
	b := &Bus{
		wake: make(chan struct{}, 1),
		out:  make(chan Event, buffer),
	}
	go b.pump()
	return b
}

// Events delivers queued events in order. It is closed after Close once the
// queue has drained.
func (b *Bus) Events() <-chan Event {
	return b.out
}

// Emit queues ev. Events emitted after Close are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if n := len(b.queue); n > 0 && ev.Kind == Progress {
		last := &b.queue[n-1]
		if last.Kind == Progress && last.Name == ev.Name {
			*last = ev
			b.mu.Unlock()
			return
		}
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.signal()
}

// Close stops accepting events; already queued events are still delivered.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) pump() {
	defer close(b.out)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			<-b.wake
			continue
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		b.out <- ev
	}
}

// Drain consumes the bus until closed, handing every event to sink. It
// returns when Events() is closed.
func (b *Bus) Drain(sink Sink) {
	for ev := range b.out {
		sink.Emit(ev)
	}
}

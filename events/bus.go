package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// BusConfig controls bus buffering behavior.
type BusConfig struct {
	BufferSize int
	DropIfFull bool
}

type subscriber struct {
	id   uint64
	sink Sink
}

// Bus asynchronously fans events out to every subscribed sink.
type Bus struct {
	cfg       BusConfig
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
}

// NewBus starts the delivery goroutine. Call [Bus.Close] to stop it.
func NewBus(cfg BusConfig) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	b := &Bus{
		cfg:  cfg,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// Subscribe registers sink and returns a function that removes it.
func (b *Bus) Subscribe(sink Sink) (unsubscribe func()) {
	if b == nil || sink == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, sink: sink})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus) run() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.ch:
			b.deliver(event)
		case <-b.done:
			for {
				select {
				case event := <-b.ch:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(event Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		s.sink.Emit(context.Background(), event)
	}
}

// Emit queues event for delivery. With DropIfFull set, a full buffer drops the
// event and increments [Bus.Dropped]; otherwise Emit blocks until there is room,
// ctx is done or the bus is closed.
func (b *Bus) Emit(ctx context.Context, event Event) {
	if b == nil || b.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if b.cfg.DropIfFull {
		select {
		case b.ch <- event:
		case <-b.done:
		default:
			b.dropped.Add(1)
		}
		return
	}

	select {
	case b.ch <- event:
	case <-ctx.Done():
	case <-b.done:
	}
}

// Close stops accepting events, drains the buffer and waits for delivery to
// finish. It is safe to call more than once.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)
		b.wg.Wait()
	})
}

func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

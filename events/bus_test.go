package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestBusDeliversInOrderToAllSubscribers(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 8})

	a := &recordingSink{}
	b := &recordingSink{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	ctx := context.Background()
	bus.Emit(ctx, Event{Kind: KindSessionWarning})
	bus.Emit(ctx, Event{Kind: KindSessionExpired})
	bus.Emit(ctx, Event{Kind: KindBotDetected})
	bus.Close()

	want := []Kind{KindSessionWarning, KindSessionExpired, KindBotDetected}
	assert.Equal(t, want, a.kinds())
	assert.Equal(t, want, b.kinds())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 4})
	sink := NewChannelSink(4)

	unsubscribe := bus.Subscribe(sink)
	bus.Emit(context.Background(), Event{Kind: KindSessionWarning})

	select {
	case e := <-sink.Events():
		assert.Equal(t, KindSessionWarning, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected event before unsubscribe")
	}

	unsubscribe()
	unsubscribe()
	bus.Emit(context.Background(), Event{Kind: KindSessionExpired})
	bus.Close()

	assert.Empty(t, sink.Events())
}

func TestBusDropIfFull(t *testing.T) {
	release := make(chan struct{})
	bus := NewBus(BusConfig{BufferSize: 1, DropIfFull: true})
	bus.Subscribe(FuncSink(func(context.Context, Event) { <-release }))

	for i := 0; i < 10; i++ {
		bus.Emit(context.Background(), Event{Kind: KindSessionWarning})
	}
	assert.Positive(t, bus.Dropped())

	close(release)
	bus.Close()
}

func TestBusEmitAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(BusConfig{})
	sink := &recordingSink{}
	bus.Subscribe(sink)
	bus.Close()
	bus.Close()

	bus.Emit(context.Background(), Event{Kind: KindSessionExpired})
	assert.Empty(t, sink.kinds())

	var nilBus *Bus
	nilBus.Emit(context.Background(), Event{})
	nilBus.Close()
	assert.Zero(t, nilBus.Dropped())
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.Emit(context.Background(), Event{Kind: KindSessionExpired, Message: "bye", At: at})

	var got map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.Equal(t, "session-expired", got["kind"])
	assert.Equal(t, "bye", got["message"])
}

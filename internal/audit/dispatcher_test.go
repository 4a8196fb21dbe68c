package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/store"
)

type failingSink struct{ calls atomic.Int32 }

func (s *failingSink) Emit(context.Context, Entry) error {
	s.calls.Add(1)
	return errors.New("disk full")
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Entry) error { panic("boom") }

type gateSink struct {
	gate chan struct{}
	seen atomic.Int32
}

func (s *gateSink) Emit(context.Context, Entry) error {
	<-s.gate
	s.seen.Add(1)
	return nil
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Entry{})
	d.Close()
}

func TestSyncDispatcherSwallowsSinkErrors(t *testing.T) {
	sink := &failingSink{}
	var reported atomic.Int32
	d := NewDispatcher(Config{Enabled: true}, sink, func(Entry, error) { reported.Add(1) })
	defer d.Close()

	d.Emit(context.Background(), Entry{ID: "1"})
	d.Emit(context.Background(), Entry{ID: "2"})

	if sink.calls.Load() != 2 || reported.Load() != 2 || d.Failed() != 2 {
		t.Fatalf("expected 2 calls/reports/failures, got %d/%d/%d", sink.calls.Load(), reported.Load(), d.Failed())
	}
}

func TestDispatcherRecoversSinkPanic(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true}, panicSink{}, nil)
	defer d.Close()
	d.Emit(context.Background(), Entry{ID: "1"})
	if d.Failed() != 1 {
		t.Fatalf("expected panic counted as failure")
	}
}

func TestSyncDispatcherIgnoresCallerCancellation(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true}, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Emit(ctx, Entry{ID: "after-cancel"})
	select {
	case e := <-sink.Events():
		if e.ID != "after-cancel" {
			t.Fatalf("unexpected entry %q", e.ID)
		}
	default:
		t.Fatalf("entry must be delivered even when the request context is done")
	}
}

func TestAsyncDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, Async: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Entry{})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked sink and buffer of 1")
	}
	close(sink.gate)
	d.Close()
	if got := int(sink.seen.Load()) + int(d.Dropped()); got != 10 {
		t.Fatalf("expected delivered+dropped == 10, got %d", got)
	}
}

func TestAsyncDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, Async: true, BufferSize: 16}, sink, nil)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Entry{})
	}
	d.Close()

	deadline := time.After(time.Second)
	for i := 0; i < 5; i++ {
		select {
		case <-sink.Events():
		case <-deadline:
			t.Fatalf("expected 5 drained entries, got %d", i)
		}
	}
}

func TestJSONWriterSinkAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingSink{}
	multi := MultiSink{NewJSONWriterSink(&buf), failing}

	entry := Entry{
		ID:            "01",
		ActorSnapshot: store.ActorSnapshot{Email: "system", Roles: []string{"SYSTEM"}},
		ActionType:    store.ActionExecute,
		Status:        store.StatusSuccess,
		EntityType:    "Auth",
	}
	if err := multi.Emit(context.Background(), entry); err == nil {
		t.Fatalf("expected the failing sink's error")
	}

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["actionType"] != "EXECUTE" || decoded["status"] != "SUCCESS" {
		t.Fatalf("unexpected json %v", decoded)
	}
}

func TestDispatcherEnrichesBeforeSink(t *testing.T) {
	sink := NewChannelSink(1)
	caller := make(chan struct{})
	d := NewDispatcher(Config{
		Enabled:    true,
		Async:      true,
		BufferSize: 1,
		Enrich: func(_ context.Context, e *Entry) {
			<-caller
			e.ActorSnapshot.Email = "alice@example.com"
		},
	}, sink, nil)
	defer d.Close()

	d.Emit(context.Background(), Entry{ID: "1", ActorID: "u1"})
	close(caller)

	select {
	case e := <-sink.Events():
		if e.ActorSnapshot.Email != "alice@example.com" {
			t.Fatalf("expected enriched entry, got %+v", e.ActorSnapshot)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an enriched entry")
	}
}

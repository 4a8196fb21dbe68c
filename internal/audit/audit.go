package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/MrEthical07/goIdentity/store"
)

// Entry is the activity log record emitted by the engine.
type Entry = store.ActivityLog

// Sink receives emitted entries.
type Sink interface {
	Emit(ctx context.Context, entry Entry) error
}

// NoOpSink drops entries.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Entry) error { return nil }

// StoreSink persists entries through an activity log store.
type StoreSink struct {
	store store.ActivityLogStore
}

func NewStoreSink(s store.ActivityLogStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Emit(ctx context.Context, entry Entry) error {
	return s.store.InsertActivityLog(ctx, &entry)
}

// ChannelSink writes entries into a buffered channel.
type ChannelSink struct {
	events chan Entry
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Entry, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, entry Entry) error {
	select {
	case s.events <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Entry {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, entry Entry) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// MultiSink fans an entry out to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, entry Entry) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

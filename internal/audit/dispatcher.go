package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher delivery behavior.
type Config struct {
	Enabled    bool
	Async      bool
	BufferSize int
	DropIfFull bool

	// Enrich, when set, completes an entry right before the sink sees it.
	// In async mode it runs on the dispatcher goroutine, off the caller's
	// path.
	Enrich func(ctx context.Context, entry *Entry)
}

// Dispatcher forwards entries to a sink, inline or through a buffer, and
// reports sink failures to an error hook instead of the caller.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	onError   func(Entry, error)
	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil Dispatcher is
// safe to use.
func NewDispatcher(cfg Config, sink Sink, onError func(Entry, error)) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		onError: onError,
		done:    make(chan struct{}),
	}

	if cfg.Async {
		d.ch = make(chan Entry, cfg.BufferSize)
		d.wg.Add(1)
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.deliver(context.Background(), entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.deliver(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			d.report(entry, fmt.Errorf("audit sink panic: %v", r))
		}
	}()
	if d.cfg.Enrich != nil {
		d.cfg.Enrich(ctx, &entry)
	}
	if err := d.sink.Emit(ctx, entry); err != nil {
		d.report(entry, err)
	}
}

func (d *Dispatcher) report(entry Entry, err error) {
	d.failed.Add(1)
	if d.onError != nil {
		d.onError(entry, err)
	}
}

// Emit delivers entry. It never returns an error and never panics.
func (d *Dispatcher) Emit(ctx context.Context, entry Entry) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.Async {
		d.deliver(context.WithoutCancel(ctx), entry)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- entry:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- entry:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting entries and drains the buffer.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts sink errors and panics.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

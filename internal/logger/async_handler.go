package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize    = 1024
	defaultDrainTimeout = 5 * time.Second
)

// AsyncOptions configures the async dispatch queue.
type AsyncOptions struct {
	// QueueSize caps the number of records waiting to ship. Zero means default.
	QueueSize int
	// DrainTimeout bounds how long Shutdown waits for queued records to ship
	// when the caller's context has no deadline of its own.
	DrainTimeout time.Duration
}

type queuedRecord struct {
	ctx  context.Context
	rec  slog.Record
	sink slog.Handler
}

// shipper owns the queue and the single goroutine draining it. Handlers
// derived via WithAttrs/WithGroup share one shipper, so record order is
// preserved across them and one Shutdown drains them all.
type shipper struct {
	queue   chan queuedRecord
	drain   time.Duration
	stopped atomic.Bool
	dropped atomic.Uint64
	done    sync.WaitGroup
}

func newShipper(opts AsyncOptions) *shipper {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	drain := opts.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}

	s := &shipper{
		queue: make(chan queuedRecord, size),
		drain: drain,
	}
	s.done.Add(1)
	go s.loop()
	return s
}

func (s *shipper) loop() {
	defer s.done.Done()
	for q := range s.queue {
		_ = q.sink.Handle(q.ctx, q.rec)
	}
}

// push enqueues without blocking. A full queue drops the record.
func (s *shipper) push(ctx context.Context, rec slog.Record, sink slog.Handler) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.queue <- queuedRecord{ctx: ctx, rec: rec, sink: sink}:
	default:
		s.dropped.Add(1)
	}
}

func (s *shipper) close(ctx context.Context) error {
	if s.stopped.Swap(true) {
		return nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.drain)
		defer cancel()
	}
	close(s.queue)
	drained := make(chan struct{})
	go func() {
		s.done.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler decouples a slow handler from its callers by moving Handle
// onto a background goroutine. Built for remote log shipping: the caller
// enqueues and returns, and a full queue drops the record rather than
// blocking a request on ingest latency.
type AsyncHandler struct {
	ship *shipper
	sink slog.Handler
}

// NewAsyncHandler wraps sink with a dispatch queue of its own.
func NewAsyncHandler(sink slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{
		ship: newShipper(opts),
		sink: sink,
	}
}

// Enabled defers to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level)
}

// Handle queues the record and returns immediately.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.sink.Enabled(ctx, r.Level) {
		return nil
	}
	h.ship.push(ctx, r.Clone(), h.sink)
	return nil
}

// WithAttrs returns a handler that shares this handler's queue, with the
// attributes applied to the wrapped sink.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		ship: h.ship,
		sink: h.sink.WithAttrs(attrs),
	}
}

// WithGroup returns a handler that shares this handler's queue, with the
// group applied to the wrapped sink.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		ship: h.ship,
		sink: h.sink.WithGroup(name),
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.ship == nil {
		return 0
	}
	return h.ship.dropped.Load()
}

// Shutdown stops accepting new records and waits for queued ones to ship.
// Subsequent calls return nil.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.ship == nil {
		return nil
	}
	return h.ship.close(ctx)
}

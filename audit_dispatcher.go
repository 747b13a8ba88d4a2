package tokenguard

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to a single worker so slow sinks never sit
// on the request path. A nil dispatcher (audit disabled) ignores all calls.
//
// Senders hold mu for reading while they enqueue; Close takes it for
// writing before closing queue, so no send can race the close.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	mu     sync.RWMutex
	closed bool
	queue  chan AuditEvent
	worker sync.WaitGroup

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

// deliver runs until queue is closed and empty.
func (d *auditDispatcher) deliver() {
	defer d.worker.Done()
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit enqueues event. When the buffer is full it either drops and counts
// the event (DropIfFull) or waits for room until ctx is done.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close rejects new events, lets the worker flush what is buffered and
// waits for it. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.worker.Wait()
}

// Dropped counts events lost to a full buffer or a cancelled wait.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

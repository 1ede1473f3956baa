// Package dispatch runs the single goroutine that owns all proxy state.
// The event bus, capability registry, plugin table, engines and record
// pipeline are only ever touched from tasks executed here; network loops
// and the timer scheduler hand work over through the queue instead of
// sharing memory.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultQueueSize bounds the task queue. A full queue applies
// backpressure to the submitting loop.
const DefaultQueueSize = 1024

// drainGrace bounds how long Stop keeps working through queued tasks.
const drainGrace = time.Second

// ErrStopped is returned for submissions after the dispatcher shut down.
var ErrStopped = errors.New("dispatcher stopped")

// Task is one unit of work for the dispatcher goroutine.
type Task struct {
	Name string
	Run  func()
}

// Dispatcher owns the proxy's single state-mutating goroutine.
type Dispatcher struct {
	log      *slog.Logger
	tasks    chan Task
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  bool
	executed int64
}

// New creates a dispatcher with the given queue size (0 means the
// default).
func New(log *slog.Logger, queueSize int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		log:    log.With("component", "dispatch"),
		tasks:  make(chan Task, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.started {
		d.log.Warn("dispatcher already started, ignoring duplicate Start call")
		return
	}
	d.started = true
	d.log.Info("dispatcher started", "queue_size", cap(d.tasks))
	go d.loop(ctx)
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case t := <-d.tasks:
			d.run(t)
		case <-d.stopCh:
			d.drain()
			return
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// drain works through queued tasks until empty or the grace period ends.
func (d *Dispatcher) drain() {
	deadline := time.After(drainGrace)
	for {
		select {
		case t := <-d.tasks:
			d.run(t)
		case <-deadline:
			d.log.Warn("dispatcher drain grace expired", "remaining", len(d.tasks))
			return
		default:
			return
		}
	}
}

func (d *Dispatcher) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatcher task panicked",
				"task", t.Name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	d.executed++
	t.Run()
}

// Stop shuts the dispatcher down, draining queued tasks within the grace
// period.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.done
	d.log.Info("dispatcher stopped", "executed", d.executed)
}

// Submit enqueues fire-and-forget work, blocking while the queue is full
// so network loops get backpressure instead of losing lines. Returns
// ErrStopped once the dispatcher is shutting down.
func (d *Dispatcher) Submit(name string, fn func()) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.tasks <- Task{Name: name, Run: fn}:
		return nil
	case <-d.done:
		return ErrStopped
	}
}

// TrySubmit enqueues advisory work without blocking; a full queue drops
// it. Used by publishers whose output is safe to lose.
func (d *Dispatcher) TrySubmit(name string, fn func()) bool {
	select {
	case d.tasks <- Task{Name: name, Run: fn}:
		return true
	default:
		return false
	}
}

// Do runs fn on the dispatcher and waits for it to finish. State reads
// from other goroutines (the admin API) go through here. Must not be
// called from the dispatcher goroutine itself.
func (d *Dispatcher) Do(ctx context.Context, name string, fn func()) error {
	doneCh := make(chan struct{})
	task := Task{Name: name, Run: func() {
		defer close(doneCh)
		fn()
	}}
	select {
	case d.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		// the drain may still have run it
		select {
		case <-doneCh:
			return nil
		default:
			return ErrStopped
		}
	}
}

// QueueDepth reports how many tasks are waiting.
func (d *Dispatcher) QueueDepth() int { return len(d.tasks) }

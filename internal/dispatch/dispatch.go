// Package dispatch runs side effects in submission order on a single
// goroutine, outside the lock that produced them.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Effect is a deferred side effect. The context is cancelled on shutdown.
type Effect struct {
	Name string
	Run  func(ctx context.Context)
}

// Dispatcher is an unbounded FIFO of effects. Enqueue never blocks, so it
// may be called while holding other locks.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Effect
	running bool // an effect is executing
	closed  bool

	executed uint64
	panics   uint64
}

func New() *Dispatcher {
	d := &Dispatcher{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Enqueue appends an effect. Effects enqueued after Close are dropped.
func (d *Dispatcher) Enqueue(name string, run func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		slog.Debug("effect dropped after close", "effect", name)
		return
	}
	d.queue = append(d.queue, Effect{Name: name, Run: run})
	d.cond.Broadcast()
}

// Run executes effects until ctx is cancelled or Close is called and the
// queue is drained
func (d *Dispatcher) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		d.closed = true
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer stop()

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 || ctx.Err() != nil {
			dropped := len(d.queue)
			d.queue = nil
			d.cond.Broadcast()
			d.mu.Unlock()
			if dropped > 0 {
				slog.Warn("dispatcher stopped with pending effects", "dropped", dropped)
			}
			return
		}
		e := d.queue[0]
		d.queue[0] = Effect{}
		d.queue = d.queue[1:]
		d.running = true
		d.mu.Unlock()

		d.execute(ctx, e)

		d.mu.Lock()
		d.running = false
		d.executed++
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *Dispatcher) execute(ctx context.Context, e Effect) {
	defer func() {
		if r := recover(); r != nil {
			d.mu.Lock()
			d.panics++
			d.mu.Unlock()
			slog.Error("effect panicked",
				"effect", e.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	e.Run(ctx)
}

// Flush blocks until every effect enqueued so far has finished, or ctx ends
func (d *Dispatcher) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) > 0 || d.running {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.cond.Wait()
	}
	return nil
}

// Close stops accepting effects; Run returns once the queue is drained
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Stats returns pending, executed and panicked effect counts
func (d *Dispatcher) Stats() (pending int, executed, panics uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue), d.executed, d.panics
}

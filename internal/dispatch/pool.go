// Package dispatch runs per-message work off the webhook request path.
//
// The provider retries a whole delivery when the acknowledgment is slow, so
// the HTTP handler must return immediately; every extracted message is
// handed to this pool and processed by a fixed set of workers. No ordering
// is guaranteed between messages, and a started task runs to completion —
// there is no cancellation mid-flow.
package dispatch

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Task is a unit of per-message work.
type Task func(ctx context.Context)

// Pool is a bounded worker pool with a fixed queue.
type Pool struct {
	queue   chan Task
	wg      sync.WaitGroup
	dropped atomic.Int64

	mu      sync.RWMutex // guards the send in Enqueue against close in Stop
	stopped bool
}

// NewPool starts workers goroutines draining a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	p := &Pool{queue: make(chan Task, queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

// run isolates a task so a panic kills one message, not a worker.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatch] task panic: %v", r)
		}
	}()
	task(context.Background())
}

// Enqueue submits a task without ever blocking the caller. A full queue
// drops the task; the provider's own redelivery is the retry surface.
// Safe to call concurrently with Stop; after Stop it returns false.
func (p *Pool) Enqueue(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		n := p.dropped.Add(1)
		log.Printf("[Dispatch] queue full, task dropped (total dropped: %d)", n)
		return false
	}
}

// Dropped reports how many tasks were rejected by a full queue.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Stop rejects new tasks, drains the queue, and waits for in-flight work.
// Stop is idempotent and may race with Enqueue.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

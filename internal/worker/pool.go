// Package worker runs queued tasks on a fixed number of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/domain"
)

// ErrPoolClosed is returned when submitting after Stop.
var ErrPoolClosed = errors.New("worker pool is closed")

// Handler processes one task. The returned error is logged only.
type Handler[T any] func(ctx context.Context, task T) error

// Pool is a bounded worker pool fed by a fixed-capacity queue.
type Pool[T any] struct {
	size    int
	handler Handler[T]
	logger  *log.Logger

	mu      sync.RWMutex
	queue   chan T
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewPool creates a pool with size workers and room for queueSize waiting tasks.
func NewPool[T any](size, queueSize int, handler Handler[T], logger *log.Logger) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = log.New("worker")
		logger.SetLevel(log.OFF)
	}

	return &Pool[T]{
		size:    size,
		handler: handler,
		logger:  logger,
		queue:   make(chan T, queueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
}

// Submit enqueues a task without blocking.
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool[T]) Pending() int {
	return len(p.queue)
}

// Stop rejects new tasks, lets workers drain the queue, and waits for them.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool[T]) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(ctx, id, task)
	}
}

func (p *Pool[T]) run(ctx context.Context, id int, task T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("worker %d: task panicked: %v", id, r)
		}
	}()

	if err := p.handler(ctx, task); err != nil {
		p.logger.Warnf("worker %d: task failed: %v", id, err)
	}
}

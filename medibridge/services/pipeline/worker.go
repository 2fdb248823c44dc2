package pipeline

import (
	"context"
	"sync"

	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
)

// Job is a detached unit of work. ctx is cancelled only when shutdown gives up waiting.
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed set of goroutines fed by a bounded queue.
type WorkerPool struct {
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit queues a job without blocking.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *WorkerPool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("pipeline job panicked", zap.Any("panic", r))
		}
	}()
	job(p.ctx)
}

// Shutdown stops intake and waits for queued and running jobs. When ctx expires first the
// remaining jobs see a cancelled context and ctx's error is returned.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		logging.AppLogger.Info("worker pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		logging.ErrorLogger.Error("worker pool shutdown timed out", zap.Int("queued", len(p.jobs)))
		return ctx.Err()
	}
}

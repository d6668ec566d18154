package vector

import (
	"context"
	"fmt"
	"sync"
)

// task is one unit of work submitted to the pool.
type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool bounds the number of concurrent embedding and vector-store calls.
// The underlying store does blocking I/O per call; without a bound a burst
// of conversations would fan out into an unbounded number of in-flight
// requests.
type Pool struct {
	tasks chan task

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		tasks:  make(chan task),
		stopCh: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case t := <-p.tasks:
			t.done <- p.run(t)
		}
	}
}

func (p *Pool) run(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vector: task panic: %v", r)
		}
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// Do submits fn and waits for it to finish. The context bounds both the wait
// for a free worker and the work itself.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrPoolClosed
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers. Tasks already running finish; queued submissions
// fail with ErrPoolClosed.
func (p *Pool) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

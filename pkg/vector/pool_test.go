package vector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTask(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	ran := false
	err := p.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Error("task did not run")
	}
}

func TestPoolPropagatesError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	want := errors.New("boom")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("do = %v, want %v", err, want)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	p := NewPool(workers)
	defer p.Close()

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt64(&active, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt64(&peak); got > workers {
		t.Errorf("peak concurrency %d exceeds pool size %d", got, workers)
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	err := p.Do(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("expected error from panicking task")
	}
	// the worker must survive the panic
	if err := p.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("pool unusable after panic: %v", err)
	}
}

func TestPoolContextCancelWhileQueued(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	block := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(ctx context.Context) error { return nil })
	close(block)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("do = %v, want context.Canceled", err)
	}
}

func TestPoolClosedRejectsWork(t *testing.T) {
	p := NewPool(1)
	p.Close()

	err := p.Do(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("do = %v, want ErrPoolClosed", err)
	}
}

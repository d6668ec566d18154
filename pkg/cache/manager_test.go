package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
)

// fakeClient scripts failures per call and stores data in a map.
type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	pingErr []error
	getErr  []error
	setErr  []error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string]string)}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.setErr); err != nil {
		return redis.NewStatusResult("", err)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.getErr); err != nil {
		return redis.NewStringResult("", err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.pingErr); err != nil {
		return redis.NewStatusResult("", err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestManager(t *testing.T, fake *fakeClient) (*Manager, *int) {
	t.Helper()
	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
	m := NewManager(config.RedisConfig{Address: "localhost:6379", PoolSize: 5}, log)
	dials := 0
	m.dial = func() client {
		dials++
		return fake
	}
	// fast backoffs for tests
	m.initPolicy.InitialBackoff = time.Millisecond
	m.initPolicy.MaxBackoff = 2 * time.Millisecond
	m.opPolicy.InitialBackoff = time.Millisecond
	m.opPolicy.MaxBackoff = 2 * time.Millisecond
	return m, &dials
}

func TestManagerLazyInitOnce(t *testing.T) {
	fake := newFakeClient()
	m, dials := newTestManager(t, fake)
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if *dials != 1 {
		t.Errorf("expected one pool build, got %d", *dials)
	}
}

func TestManagerInitRetriesThenSucceeds(t *testing.T) {
	fake := newFakeClient()
	fake.pingErr = []error{io.EOF, io.EOF}
	m, dials := newTestManager(t, fake)

	if err := m.Set(context.Background(), "k", "v", 0); err != nil {
		t.Fatalf("set after init retries: %v", err)
	}
	if *dials != 3 {
		t.Errorf("expected 3 dial attempts, got %d", *dials)
	}
}

func TestManagerInitFailureIsSticky(t *testing.T) {
	fake := newFakeClient()
	fake.pingErr = []error{io.EOF, io.EOF, io.EOF, io.EOF, io.EOF}
	m, dials := newTestManager(t, fake)
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err == nil {
		t.Fatal("expected init failure")
	}
	if _, _, err := m.Get(ctx, "k"); err == nil {
		t.Fatal("expected sticky init failure")
	}
	if *dials != 5 {
		t.Errorf("expected 5 dial attempts, got %d", *dials)
	}
}

func TestManagerGetAbsent(t *testing.T) {
	fake := newFakeClient()
	m, _ := newTestManager(t, fake)

	val, found, err := m.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("expected absent key")
	}
	if val != "" {
		t.Errorf("expected empty value, got %q", val)
	}
}

func TestManagerGetRetriesTransient(t *testing.T) {
	fake := newFakeClient()
	fake.data["k"] = "v"
	fake.getErr = []error{io.EOF}
	m, _ := newTestManager(t, fake)

	val, found, err := m.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || val != "v" {
		t.Errorf("expected v after retry, got %q found=%v", val, found)
	}
}

func TestManagerSetExhaustsRetries(t *testing.T) {
	fake := newFakeClient()
	fake.setErr = []error{io.EOF, io.EOF, io.EOF}
	m, _ := newTestManager(t, fake)

	err := m.Set(context.Background(), "k", "v", 0)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF in chain, got %v", err)
	}
}

func TestManagerHealthCheck(t *testing.T) {
	fake := newFakeClient()
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	if !m.HealthCheck(ctx) {
		t.Error("expected healthy")
	}
	fake.mu.Lock()
	fake.pingErr = []error{io.EOF}
	fake.mu.Unlock()
	if m.HealthCheck(ctx) {
		t.Error("expected unhealthy on ping failure")
	}
}

func TestManagerClose(t *testing.T) {
	fake := newFakeClient()
	m, _ := newTestManager(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	m.StartHealthProbe(ctx)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !fake.closed {
		t.Error("expected underlying client closed")
	}
	// double close is safe
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

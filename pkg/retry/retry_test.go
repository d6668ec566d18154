package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2}

	sentinel := errors.New("still broken")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error chain lost: %v", err)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	p := Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return false },
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("data error")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoff_MonotoneAndCapped(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
	}{
		{"pool_init", Policy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2}},
		{"cache_op", Policy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}},
		{"fixed_step", Policy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev := time.Duration(0)
			for attempt := 1; attempt <= tc.policy.MaxAttempts; attempt++ {
				d := tc.policy.Backoff(attempt)
				if d < prev {
					t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
				}
				if tc.policy.MaxBackoff > 0 && d > tc.policy.MaxBackoff {
					t.Fatalf("backoff exceeds cap at attempt %d: %v", attempt, d)
				}
				prev = d
			}
		})
	}
}

func TestBackoff_FixedStep(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 1}
	for attempt := 1; attempt <= 3; attempt++ {
		if d := p.Backoff(attempt); d != time.Second {
			t.Fatalf("Backoff(%d) = %v, want 1s", attempt, d)
		}
	}
}

func TestDo_OnRetryObservesDelays(t *testing.T) {
	p := Policy{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Multiplier: 2}

	var delays []time.Duration
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("x")
	})

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"eof", io.EOF, true},
		{"unexpected_eof", io.ErrUnexpectedEOF, true},
		{"net_timeout", &net.DNSError{IsTimeout: true}, true},
		{"wrapped_net", fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"data_error", errors.New("json: cannot unmarshal"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

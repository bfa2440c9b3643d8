package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(2), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 2 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(5), func() error {
		calls++
		return Permanent(errFlaky)
	})
	if err != errFlaky || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "test", fastRetry(3), func() error { return errFlaky })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("broker", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: 20 * time.Millisecond})
	cb.OnStateChange = func(_ string, s State) { transitions = append(transitions, s) }
	ctx := context.Background()
	fail := func(context.Context) error { return errFlaky }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errFlaky) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}
	if err := cb.Execute(ctx, func(context.Context) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker let call through: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := cb.Execute(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if err := WithTimeout(context.Background(), 0, "none", func(context.Context) error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestWithTimeoutNamesOperation(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "save-run", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil || !strings.HasPrefix(err.Error(), "save-run: ") {
		t.Errorf("err = %v", err)
	}

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(parent, time.Second, "flush-events", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

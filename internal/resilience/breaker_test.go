package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sagewright/colossi/internal/resilience"
)

var errBoom = errors.New("boom")

func failN(b *resilience.Breaker, n int) {
	for range n {
		_ = b.Do(func() error { return errBoom })
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", MaxFailures: 3})

	failN(b, 2)
	if got := b.CurrentState(); got != resilience.StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	failN(b, 1)
	if got := b.CurrentState(); got != resilience.StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}

	if err := b.Do(func() error { return nil }); !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Errorf("Do() while open = %v, want ErrBreakerOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 3})

	failN(b, 2)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	failN(b, 2)
	if got := b.CurrentState(); got != resilience.StateClosed {
		t.Errorf("state = %v, want closed after success reset the count", got)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	failN(b, 1)
	if got := b.CurrentState(); got != resilience.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.CurrentState(); got != resilience.StateHalfOpen {
		t.Fatalf("state after reset timeout = %v, want half-open", got)
	}

	// Two successful probes close the breaker.
	for range 2 {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe error = %v", err)
		}
	}
	if got := b.CurrentState(); got != resilience.StateClosed {
		t.Errorf("state after successful probes = %v, want closed", got)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
	})

	failN(b, 1)
	time.Sleep(20 * time.Millisecond)

	failN(b, 1)
	if got := b.CurrentState(); got != resilience.StateOpen {
		t.Errorf("state after failed probe = %v, want open", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

package resilience_test

import (
	"errors"
	"testing"

	"github.com/sagewright/colossi/internal/resilience"
)

// flaky fails its first failures calls, then succeeds.
type flaky struct {
	failures int
	calls    int
}

func (f *flaky) call() error {
	f.calls++
	if f.calls <= f.failures {
		return errBoom
	}
	return nil
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	t.Parallel()

	primary := &flaky{}
	backup := &flaky{}
	g := resilience.NewFallbackGroup(primary, "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", backup)

	if err := g.Do(func(f *flaky) error { return f.call() }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if primary.calls != 1 || backup.calls != 0 {
		t.Errorf("calls = primary %d, backup %d; want 1, 0", primary.calls, backup.calls)
	}
}

func TestFallbackGroup_FailsOver(t *testing.T) {
	t.Parallel()

	primary := &flaky{failures: 100}
	backup := &flaky{}
	g := resilience.NewFallbackGroup(primary, "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", backup)

	if err := g.Do(func(f *flaky) error { return f.call() }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Errorf("calls = primary %d, backup %d; want 1, 1", primary.calls, backup.calls)
	}
}

func TestFallbackGroup_AllFailed(t *testing.T) {
	t.Parallel()

	g := resilience.NewFallbackGroup(&flaky{failures: 100}, "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", &flaky{failures: 100})

	err := g.Do(func(f *flaky) error { return f.call() })
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("Do() error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &flaky{failures: 100}
	backup := &flaky{}
	g := resilience.NewFallbackGroup(primary, "primary", resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{MaxFailures: 2},
	})
	g.AddFallback("backup", backup)

	// Two failures trip the primary's breaker; the third round must not
	// reach the primary at all.
	for range 3 {
		if err := g.Do(func(f *flaky) error { return f.call() }); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if backup.calls != 3 {
		t.Errorf("backup calls = %d, want 3", backup.calls)
	}
}

func TestDoWithResult(t *testing.T) {
	t.Parallel()

	g := resilience.NewFallbackGroup(&flaky{failures: 100}, "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", &flaky{})

	got, err := resilience.DoWithResult(g, func(f *flaky) (string, error) {
		if err := f.call(); err != nil {
			return "", err
		}
		return "story", nil
	})
	if err != nil {
		t.Fatalf("DoWithResult() error = %v", err)
	}
	if got != "story" {
		t.Errorf("result = %q, want %q", got, "story")
	}
}

func TestFallbackGroup_Len(t *testing.T) {
	t.Parallel()

	g := resilience.NewFallbackGroup(&flaky{}, "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", &flaky{})
	if got := g.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

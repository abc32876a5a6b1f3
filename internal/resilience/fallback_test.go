package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroupPrefersPrimary(t *testing.T) {
	g := NewFallbackGroup("primary", "primary", FallbackConfig{})
	g.Add("backup", "backup")

	got, err := ExecuteWithResult(g, func(v string) (string, error) {
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "primary" {
		t.Fatalf("result = %q, want primary", got)
	}
}

func TestFallbackGroupFailsOver(t *testing.T) {
	g := NewFallbackGroup("primary", "primary", FallbackConfig{})
	g.Add("backup", "backup")

	var skipped []string
	g.OnSkip(func(name string, err error) { skipped = append(skipped, name) })

	got, err := ExecuteWithResult(g, func(v string) (string, error) {
		if v == "primary" {
			return "", errors.New("primary down")
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "backup" {
		t.Fatalf("result = %q, want backup", got)
	}
	if len(skipped) != 1 || skipped[0] != "primary" {
		t.Fatalf("skipped = %v, want [primary]", skipped)
	}
}

func TestFallbackGroupAllFailed(t *testing.T) {
	g := NewFallbackGroup(1, "one", FallbackConfig{})
	g.Add("two", 2)

	err := g.Execute(func(int) error { return errors.New("nope") })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsOpenBreaker(t *testing.T) {
	g := NewFallbackGroup("primary", "primary", FallbackConfig{
		Breaker: BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour},
	})
	g.Add("backup", "backup")

	calls := map[string]int{}
	fn := func(v string) (string, error) {
		calls[v]++
		if v == "primary" {
			return "", errors.New("primary down")
		}
		return v, nil
	}

	// First execution trips the primary's breaker.
	if _, err := ExecuteWithResult(g, fn); err != nil {
		t.Fatalf("first execution: %v", err)
	}
	// Second execution must not touch the primary at all.
	if _, err := ExecuteWithResult(g, fn); err != nil {
		t.Fatalf("second execution: %v", err)
	}
	if calls["primary"] != 1 {
		t.Fatalf("primary called %d times, want 1 (breaker should skip it)", calls["primary"])
	}
	if calls["backup"] != 2 {
		t.Fatalf("backup called %d times, want 2", calls["backup"])
	}
}

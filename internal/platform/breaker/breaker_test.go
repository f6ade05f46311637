package breaker

import (
	"errors"
	"testing"
	"time"
)

var errBusiness = errors.New("asset not found")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("ledger", Config{ConsecutiveFailures: 2, Timeout: time.Minute}, nil, nil)
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}
	ran := false
	err := b.Do(func() error { ran = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if ran {
		t.Fatal("expected call to be rejected without running")
	}
	if b.State() != "open" {
		t.Fatalf("state = %q", b.State())
	}
}

func TestBreakerIgnoresBusinessFailures(t *testing.T) {
	b := New("ledger", Config{ConsecutiveFailures: 1, Timeout: time.Minute}, func(err error) bool {
		return errors.Is(err, errBusiness)
	}, nil)
	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBusiness }); !errors.Is(err, errBusiness) {
			t.Fatalf("expected business error to pass through, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("state = %q, want closed", b.State())
	}
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	b := New("compliance", Config{ConsecutiveFailures: 1, Timeout: 10 * time.Millisecond}, nil, nil)
	_ = b.Do(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("state = %q, want closed", b.State())
	}
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelaySchedule(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayCapped(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}
	if got := p.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want cap %v", got, 5*time.Second)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
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
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2}
	calls := 0
	sentinel := errors.New("still broken")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != p.Attempts() {
		t.Fatalf("expected %d calls, got %d", p.Attempts(), calls)
	}
}

func TestDoCancelledWhileWaiting(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Minute, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(context.Context) error { return errors.New("transient") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

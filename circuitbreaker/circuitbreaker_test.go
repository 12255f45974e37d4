package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Expected boom, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Expected open state after %d failures", 3)
	}

	if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatal("Expected open state")
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Errorf("Expected success after reset timeout, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Error("Expected closed state after successful probe")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errBoom })
	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, func() error { return errBoom })

	if cb.GetState() != StateClosed {
		t.Error("Expected closed state while failures stay below threshold")
	}
}

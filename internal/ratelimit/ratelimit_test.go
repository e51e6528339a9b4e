package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_TryAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("allows_up_to_limit", func(t *testing.T) {
		now := time.Unix(1000, 0)
		limiter := NewMemoryLimiter(2, time.Second).WithClock(func() time.Time { return now })

		for i := 0; i < 2; i++ {
			decision, err := limiter.TryAcquire(ctx, "caller")
			if err != nil {
				t.Fatalf("TryAcquire() error = %v", err)
			}
			if !decision.Allowed {
				t.Fatalf("TryAcquire() call %d denied, want allowed", i+1)
			}
		}

		decision, err := limiter.TryAcquire(ctx, "caller")
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if decision.Allowed {
			t.Error("TryAcquire() third call allowed, want denied")
		}
		if decision.RetryAfter != time.Second {
			t.Errorf("RetryAfter = %v, want %v", decision.RetryAfter, time.Second)
		}
	})

	t.Run("resets_at_window_boundary", func(t *testing.T) {
		now := time.Unix(1000, 0)
		limiter := NewMemoryLimiter(1, time.Second).WithClock(func() time.Time { return now })

		if d, _ := limiter.TryAcquire(ctx, "caller"); !d.Allowed {
			t.Fatal("first call denied")
		}
		if d, _ := limiter.TryAcquire(ctx, "caller"); d.Allowed {
			t.Fatal("second call in same window allowed")
		}

		// Next window opens even though the previous one was exhausted
		now = now.Add(time.Second)
		if d, _ := limiter.TryAcquire(ctx, "caller"); !d.Allowed {
			t.Error("call in next window denied")
		}
	})

	t.Run("retry_after_shrinks_within_window", func(t *testing.T) {
		now := time.Unix(1000, 0)
		limiter := NewMemoryLimiter(1, time.Second).WithClock(func() time.Time { return now })

		if _, err := limiter.TryAcquire(ctx, "caller"); err != nil {
			t.Fatal(err)
		}

		now = now.Add(300 * time.Millisecond)
		decision, _ := limiter.TryAcquire(ctx, "caller")
		if decision.Allowed {
			t.Fatal("call within exhausted window allowed")
		}
		if decision.RetryAfter != 700*time.Millisecond {
			t.Errorf("RetryAfter = %v, want 700ms", decision.RetryAfter)
		}
	})

	t.Run("keys_are_independent", func(t *testing.T) {
		now := time.Unix(1000, 0)
		limiter := NewMemoryLimiter(1, time.Second).WithClock(func() time.Time { return now })

		if d, _ := limiter.TryAcquire(ctx, "a"); !d.Allowed {
			t.Fatal("first caller denied")
		}
		if d, _ := limiter.TryAcquire(ctx, "b"); !d.Allowed {
			t.Error("second caller denied, keys should not share windows")
		}
	})
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	limiter := NewMemoryLimiter(5, time.Second).WithClock(func() time.Time { return now })

	if _, err := limiter.TryAcquire(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := limiter.TryAcquire(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	if removed := limiter.Sweep(); removed != 0 {
		t.Errorf("Sweep() = %d in current window, want 0", removed)
	}

	now = now.Add(2 * time.Second)
	if removed := limiter.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}
}

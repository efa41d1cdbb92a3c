package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/ratelimit"
)

func TestRecipientLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.NewRecipientLimiter(cache.NewMemory(), 3, time.Hour)

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "tenant-1", "919876543210")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if res.Count != int64(i) {
			t.Fatalf("attempt %d: count=%d", i, res.Count)
		}
	}

	res, err := l.Allow(ctx, "tenant-1", "919876543210")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("attempt over the limit should be rejected")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", res.Remaining)
	}
}

func TestRecipientLimiter_IsolatedPerRecipientAndTenant(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.NewRecipientLimiter(cache.NewMemory(), 1, time.Hour)

	if res, _ := l.Allow(ctx, "tenant-1", "a"); !res.Allowed {
		t.Fatal("first attempt for tenant-1/a should pass")
	}
	if res, _ := l.Allow(ctx, "tenant-1", "b"); !res.Allowed {
		t.Fatal("different recipient must have its own window")
	}
	if res, _ := l.Allow(ctx, "tenant-2", "a"); !res.Allowed {
		t.Fatal("different tenant must have its own window")
	}
	if res, _ := l.Allow(ctx, "tenant-1", "a"); res.Allowed {
		t.Fatal("second attempt for tenant-1/a should be rejected")
	}
}

// TestRecipientLimiter_WindowExpiry steps the in-memory clock past the
// window and verifies the counter starts over.
func TestRecipientLimiter_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return now }

	l := ratelimit.NewRecipientLimiter(mem, 1, time.Hour)

	if res, _ := l.Allow(ctx, "t", "r"); !res.Allowed {
		t.Fatal("first attempt should pass")
	}
	if res, _ := l.Allow(ctx, "t", "r"); res.Allowed {
		t.Fatal("second attempt inside the window should be rejected")
	}

	now = now.Add(time.Hour + time.Second)

	res, err := l.Allow(ctx, "t", "r")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.Count != 1 {
		t.Fatalf("window should have reset: allowed=%v count=%d", res.Allowed, res.Count)
	}
}

func TestRecipientLimiter_StatusDoesNotCount(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.NewRecipientLimiter(cache.NewMemory(), 2, time.Hour)

	if _, err := l.Allow(ctx, "t", "r"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		res, err := l.Status(ctx, "t", "r")
		if err != nil {
			t.Fatal(err)
		}
		if res.Count != 1 {
			t.Fatalf("Status must not increment, count=%d", res.Count)
		}
		if !res.Allowed {
			t.Fatal("one of two attempts used, status should report allowed")
		}
	}
}

func TestRecipientLimiter_Clear(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.NewRecipientLimiter(cache.NewMemory(), 1, time.Hour)

	_, _ = l.Allow(ctx, "t", "r")
	if res, _ := l.Allow(ctx, "t", "r"); res.Allowed {
		t.Fatal("should be rejected before clear")
	}

	if err := l.Clear(ctx, "t", "r"); err != nil {
		t.Fatal(err)
	}

	if res, _ := l.Allow(ctx, "t", "r"); !res.Allowed {
		t.Fatal("should be allowed again after clear")
	}
}

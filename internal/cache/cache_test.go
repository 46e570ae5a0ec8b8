package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func countingLoader() (*int, Loader[int]) {
	calls := 0
	return &calls, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}
}

func TestGet_LoadsOnceWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	calls, load := countingLoader()
	c := NewWithClock(time.Minute, load, clock.Now)

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), false)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != 1 {
			t.Errorf("value = %d, want cached 1", v)
		}
	}

	if *calls != 1 {
		t.Errorf("loader called %d times, want 1", *calls)
	}
}

func TestGet_ReloadsAfterExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	calls, load := countingLoader()
	c := NewWithClock(time.Minute, load, clock.Now)

	if _, err := c.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	clock.Advance(59 * time.Second)
	if v, _ := c.Get(context.Background(), false); v != 1 {
		t.Errorf("value before expiry = %d, want 1", v)
	}

	clock.Advance(2 * time.Second)
	v, err := c.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 2 {
		t.Errorf("value after expiry = %d, want reloaded 2", v)
	}
	if *calls != 2 {
		t.Errorf("loader called %d times, want 2", *calls)
	}
}

func TestGet_ForceRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	calls, load := countingLoader()
	c := NewWithClock(time.Minute, load, clock.Now)

	if _, err := c.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	v, err := c.Get(context.Background(), true)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 2 || *calls != 2 {
		t.Errorf("force refresh: value=%d calls=%d, want 2/2", v, *calls)
	}
}

func TestInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	calls, load := countingLoader()
	c := NewWithClock(time.Minute, load, clock.Now)

	if _, err := c.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.Invalidate()

	if _, err := c.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *calls != 2 {
		t.Errorf("loader called %d times after invalidate, want 2", *calls)
	}
}

func TestGet_LoadErrorKeepsPreviousValue(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fail := false
	c := NewWithClock(time.Minute, func(ctx context.Context) (int, error) {
		if fail {
			return 0, errors.New("load failed")
		}
		return 42, nil
	}, clock.Now)

	if _, err := c.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	fail = true
	if _, err := c.Get(context.Background(), true); err == nil {
		t.Fatal("expected error from failed forced reload")
	}

	// The previously cached value survives a failed reload.
	v, err := c.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d, want preserved 42", v)
	}
}

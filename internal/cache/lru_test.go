package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c := NewLRU[bool](10, time.Minute)
	c.now = func() time.Time { return now }

	tests := []struct {
		name    string
		advance time.Duration
		key     string
		wantAdd bool
	}{
		{"first delivery", 0, "evt-1", true},
		{"redelivery within ttl", 30 * time.Second, "evt-1", false},
		{"other key", 0, "evt-2", true},
		{"after ttl", 2 * time.Minute, "evt-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			if got := c.Add(tt.key, true); got != tt.wantAdd {
				t.Errorf("Add(%q) = %v, want %v", tt.key, got, tt.wantAdd)
			}
		})
	}

	now = now.Add(time.Hour)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after cleanup", c.Len())
	}
}

func TestLRU_Delete(t *testing.T) {
	c := NewLRU[string](0, time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected k to be deleted")
	}
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, 10*time.Millisecond, NewLRU[int](1, time.Nanosecond))
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

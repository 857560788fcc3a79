package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[int]("test", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string]("test", 10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	c.Set("other", "v")

	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry should still be live")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int]("test", 10, time.Minute)
	c.Set("u1|2024-03|All", 1)
	c.Set("u1|2024-02|Main", 2)
	c.Set("u10|2024-03|All", 3)

	if n := c.DeletePrefix("u1|"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("u10|2024-03|All"); !ok {
		t.Fatalf("other identity's entry must survive")
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int]("summaries", 10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 0 {
		t.Fatalf("nothing should expire yet, swept %d", n)
	}
	now = now.Add(2 * time.Minute)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 swept, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("cache should be empty, has %d", c.Size())
	}
}

func TestManagerStop(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[int]("test", 1, time.Millisecond))
	m.Stop()
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}

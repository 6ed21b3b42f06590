package cache

import (
	"testing"
	"time"
)

func TestGetPutExpiry(t *testing.T) {
	now := time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := New[int](time.Hour, clock)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("empty cache returned a hit")
	}

	c.Put("k", 42)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("Get = (%d, %v), want (42, true)", v, ok)
	}

	now = now.Add(59 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry survived past its TTL")
	}
}

func TestStaleFallback(t *testing.T) {
	now := time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := New[string](time.Minute, clock)
	c.Put("menu", "köttbullar")

	now = now.Add(24 * time.Hour)
	if _, ok := c.Get("menu"); ok {
		t.Fatalf("expired entry served as fresh")
	}
	if v, ok := c.Stale("menu"); !ok || v != "köttbullar" {
		t.Fatalf("Stale = (%q, %v), want the expired value", v, ok)
	}

	if _, ok := c.Stale("absent"); ok {
		t.Fatalf("Stale hit on a key never stored")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int](time.Hour, nil)
	c.Put("k", 1)
	c.Invalidate("k")
	if _, ok := c.Stale("k"); ok {
		t.Fatalf("invalidated entry still present")
	}
}

package expiring

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestPutGet(t *testing.T) {
	clock := newClock()
	m := New[string](30*time.Minute, WithClock(clock.Now))

	exp := m.Put("abc", "new@example.com")
	if want := clock.Now().Add(30 * time.Minute); !exp.Equal(want) {
		t.Errorf("expires = %v, want %v", exp, want)
	}

	v, ok := m.Get("abc")
	if !ok || v != "new@example.com" {
		t.Errorf("Get = (%q, %v), want (new@example.com, true)", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestExpiry(t *testing.T) {
	clock := newClock()
	m := New[int](10*time.Minute, WithClock(clock.Now))
	m.Put("a", 1)

	clock.Advance(9*time.Minute + 59*time.Second)
	if _, ok := m.Get("a"); !ok {
		t.Fatal("entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok := m.Get("a"); ok {
		t.Error("entry should expire at ttl")
	}
	if m.Len() != 0 {
		t.Errorf("len = %d, want 0", m.Len())
	}
}

func TestLazyPurgeOnPut(t *testing.T) {
	clock := newClock()
	m := New[int](time.Minute, WithClock(clock.Now))
	m.Put("old", 1)
	clock.Advance(2 * time.Minute)
	m.Put("new", 2)

	m.mu.Lock()
	_, stillThere := m.entries["old"]
	m.mu.Unlock()
	if stillThere {
		t.Error("expired entry should be purged on put")
	}
}

func TestTake(t *testing.T) {
	m := New[int](time.Minute)
	m.Put("k", 7)

	v, ok := m.Take("k")
	if !ok || v != 7 {
		t.Fatalf("Take = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := m.Take("k"); ok {
		t.Error("second Take should miss")
	}
}

func TestPurgeAndDeleteFunc(t *testing.T) {
	clock := newClock()
	m := New[int64](time.Minute, WithClock(clock.Now))
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("c", 1)

	if n := m.DeleteFunc(func(_ string, v int64) bool { return v == 1 }); n != 2 {
		t.Errorf("DeleteFunc removed %d, want 2", n)
	}
	clock.Advance(time.Hour)
	if n := m.Purge(); n != 1 {
		t.Errorf("Purge removed %d, want 1", n)
	}
}

func TestIndependentMaps(t *testing.T) {
	a := New[string](time.Minute)
	b := New[string](time.Minute)
	a.Put("k", "a")
	if _, ok := b.Get("k"); ok {
		t.Error("maps must not share state")
	}
}

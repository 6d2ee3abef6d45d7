package silo

import "testing"

func TestSimpleCacheRegisterAndLookup(t *testing.T) {
	c := NewSimpleCache[string](10)

	idx, err := c.Register("alpha", "alpha-value")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected first index 0, got %d", idx)
	}

	got, ok := c.GetIndex("alpha")
	if !ok || got != idx {
		t.Fatalf("GetIndex mismatch: got (%d,%v)", got, ok)
	}
	if v := *c.GetItem(idx); v != "alpha-value" {
		t.Fatalf("GetItem mismatch: got %q", v)
	}
}

func TestSimpleCacheCapacity(t *testing.T) {
	c := NewSimpleCache[int](2)
	if _, err := c.Register("a", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register("b", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register("c", 3); err == nil {
		t.Fatalf("expected capacity error on third Register")
	}
}

func TestSimpleCacheClear(t *testing.T) {
	c := NewSimpleCache[int](4)
	_, _ = c.Register("a", 1)
	_, _ = c.Register("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got len %d", c.Len())
	}
	if _, ok := c.GetIndex("a"); ok {
		t.Fatalf("expected a to be gone after Clear")
	}
	if _, err := c.Register("a", 9); err != nil {
		t.Fatalf("Register after Clear should succeed: %v", err)
	}
}

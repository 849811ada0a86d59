package httputil

import (
	"errors"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error: %v", err)
	}

	type payload struct {
		Name string `json:"name"`
	}

	if err := c.Set("key", payload{Name: "lodash"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	var got payload
	ok, err := c.Get("key", &got)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok {
		t.Fatal("Get() = miss, want hit")
	}
	if got.Name != "lodash" {
		t.Errorf("Get() name = %q, want %q", got.Name, "lodash")
	}
}

func TestCacheMiss(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)

	var v string
	ok, err := c.Get("absent", &v)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() = hit, want miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Millisecond)

	if err := c.Set("key", "value"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var v string
	ok, err := c.Get("key", &v)
	if ok {
		t.Error("Get() = hit, want expired miss")
	}
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Get() error = %v, want ErrExpired", err)
	}
}

func TestCacheNoTTL(t *testing.T) {
	c, _ := NewCache(t.TempDir(), 0)

	if err := c.Set("key", 42); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	var v int
	ok, err := c.Get("key", &v)
	if err != nil || !ok || v != 42 {
		t.Errorf("Get() = (%v, %v, %d), want hit with 42", ok, err, v)
	}
}

func TestCacheSpecialKeys(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)

	// Keys are hashed, so filesystem-hostile characters must work.
	key := "package:@scope/name@>=1.0.0 <2.0.0"
	if err := c.Set(key, "ok"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	var v string
	if ok, err := c.Get(key, &v); !ok || err != nil || v != "ok" {
		t.Errorf("Get() = (%v, %v, %q), want hit with %q", ok, err, v, "ok")
	}
}

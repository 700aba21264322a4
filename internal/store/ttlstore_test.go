package store

import (
	"testing"
	"time"
)

func TestTTLStore_SetGetDelete(t *testing.T) {
	s := NewTTLStore[string, int](time.Hour)
	defer s.Close()

	s.Set("a", 1, time.Hour)
	v, ok := s.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if !s.Delete("a") {
		t.Fatal("Delete should report true for a present key")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("key should be gone after Delete")
	}
}

func TestTTLStore_ExpiresEntries(t *testing.T) {
	s := NewTTLStore[string, int](5 * time.Millisecond)
	defer s.Close()

	s.Set("a", 1, 10*time.Millisecond)
	if !s.Has("a") {
		t.Fatal("entry should be present immediately after Set")
	}
	time.Sleep(20 * time.Millisecond)
	if s.Has("a") {
		t.Fatal("entry should have expired")
	}
}

func TestTTLStore_OnEvictFiresFromCleanupLoop(t *testing.T) {
	evicted := make(chan string, 1)
	s := NewTTLStoreWithEvict[string, int](5*time.Millisecond, func(key string, value int) {
		evicted <- key
	})
	defer s.Close()

	s.Set("a", 1, 10*time.Millisecond)
	select {
	case k := <-evicted:
		if k != "a" {
			t.Fatalf("evicted key = %q, want a", k)
		}
	case <-time.After(time.Second):
		t.Fatal("expected eviction callback to fire")
	}
}

func TestTTLStore_Refresh(t *testing.T) {
	s := NewTTLStore[string, int](time.Hour)
	defer s.Close()

	s.Set("a", 1, 10*time.Millisecond)
	if !s.Refresh("a", time.Hour) {
		t.Fatal("Refresh should succeed for a present key")
	}
	time.Sleep(20 * time.Millisecond)
	if !s.Has("a") {
		t.Fatal("refreshed entry should not have expired")
	}
}

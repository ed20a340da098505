package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	handle, err := b.Create(1, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_StaleHandleAfterReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, "first")
	b.Drop(h1)

	h2, _ := b.Create(1, "second")
	if h2 == h1 {
		t.Fatal("Expected reused slot to get a new handle")
	}
	if h2.slot() != h1.slot() {
		t.Fatalf("Expected slot reuse, got %d and %d", h1.slot(), h2.slot())
	}

	if _, ok := b.Get(h1); ok {
		t.Fatal("Stale handle resolved after slot reuse")
	}
	if _, ok := b.Drop(h1); ok {
		t.Fatal("Stale handle dropped the new occupant")
	}
	if v, ok := b.Get(h2); !ok || v != "second" {
		t.Fatalf("Get(h2) = (%v, %v)", v, ok)
	}
}

func TestLocalBackend_GenerationWrap(t *testing.T) {
	b := NewLocalBackend()

	var last Handle
	for range 300 {
		h, err := b.Create(1, "v")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if h == 0 {
			t.Fatal("Handle 0 issued")
		}
		if h == last {
			t.Fatal("Consecutive reuse produced the same handle")
		}
		last = h
		b.Drop(h)
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()
	b.Create(1, "a")
	b.Create(1, "b")

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	_, err := b.Create(1, "c")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Expected Len 0 after Close, got %d", b.Len())
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := range 100 {
		wg.Go(func() {
			h, err := b.Create(1, i)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if v, ok := b.Get(h); !ok || v != i {
				t.Errorf("Get(%d) = (%v, %v)", h, v, ok)
			}
			if _, ok := b.Drop(h); !ok {
				t.Errorf("Drop(%d) failed", h)
			}
		})
	}
	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected Len 0, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()
	h1, _ := b.Create(1, "a")
	h2, _ := b.Create(2, "b")
	h3, _ := b.Create(1, "c")
	b.Drop(h2)

	seen := map[Handle]Kind{}
	b.Each(func(h Handle, k Kind, _ any) bool {
		seen[h] = k
		return true
	})

	if len(seen) != 2 || seen[h1] != 1 || seen[h3] != 1 {
		t.Fatalf("Each saw %v", seen)
	}

	count := 0
	b.Each(func(Handle, Kind, any) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Each did not stop early, visited %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	for _, h := range []Handle{0, 1, 999, makeHandle(5, 3)} {
		if _, ok := b.Get(h); ok {
			t.Errorf("Get(%d) succeeded on empty backend", h)
		}
		if _, ok := b.Drop(h); ok {
			t.Errorf("Drop(%d) succeeded on empty backend", h)
		}
		if _, ok := b.Kind(h); ok {
			t.Errorf("Kind(%d) succeeded on empty backend", h)
		}
	}
}

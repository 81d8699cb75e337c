package ffi

import (
	"sync"
	"testing"
)

func TestResourceCloseReleasesOnce(t *testing.T) {
	var released []Handle
	r := newResource(Handle(42), func(h Handle) {
		released = append(released, h)
	})

	if r.Handle() != 42 {
		t.Fatalf("Handle() = %d, want 42", r.Handle())
	}
	if r.IsInvalid() {
		t.Fatal("fresh resource reported invalid")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if len(released) != 1 || released[0] != 42 {
		t.Fatalf("release calls = %v, want exactly one with handle 42", released)
	}
	if !r.IsInvalid() {
		t.Fatal("closed resource still reports valid")
	}
	if r.Handle() != NullHandle {
		t.Fatalf("Handle() after close = %d, want null", r.Handle())
	}
}

func TestResourceCloseConcurrent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := newResource(Handle(7), func(Handle) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Close()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("release ran %d times, want 1", calls)
	}
}

func TestResourceInvalidateSkipsRelease(t *testing.T) {
	releaseCalled := false
	r := newResource(Handle(9), func(Handle) {
		releaseCalled = true
	})

	r.invalidate()
	if releaseCalled {
		t.Fatal("invalidate called the release function")
	}
	if !r.IsInvalid() {
		t.Fatal("invalidated resource still reports valid")
	}

	// Close after invalidate must not release: the handle is already gone.
	if err := r.Close(); err != nil {
		t.Fatalf("Close after invalidate: %v", err)
	}
	if releaseCalled {
		t.Fatal("Close released a detached handle")
	}
}

func TestResourceCloseUnpinsOwner(t *testing.T) {
	owner := Handle(1001)
	r := newResource(owner, func(Handle) {})
	Pin(owner, func() {})
	Pin(owner, []byte("buffer"))

	if got := pinnedCount(owner); got != 2 {
		t.Fatalf("pinnedCount = %d, want 2", got)
	}
	_ = r.Close()
	if got := pinnedCount(owner); got != 0 {
		t.Fatalf("pinnedCount after close = %d, want 0", got)
	}
}

package ffi

import (
	"runtime"
	"sync/atomic"
)

// Handle is an opaque pointer-sized identifier issued by the native runtime
// for one of: event loop, event-loop proxy, window, webview. The zero value
// is the null sentinel and is never a valid resource.
type Handle = uintptr

// NullHandle is the invalid sentinel. It must never be dereferenced or released.
const NullHandle Handle = 0

// releaseFunc tears down one native resource. It is called at most once per
// resource wrapper.
type releaseFunc func(Handle)

// Resource owns exactly one native handle and guarantees it is released
// exactly once: on explicit Close, never twice, and never from the finalizer
// path (finalization only drops Go-side state, since the native library may
// already be torn down at process exit).
type Resource struct {
	handle  atomic.Uintptr
	release releaseFunc
}

// newResource wraps a live native handle. The caller must have checked the
// handle against NullHandle already.
func newResource(h Handle, release releaseFunc) *Resource {
	r := &Resource{release: release}
	r.handle.Store(h)
	// Finalization is a best-effort safety net: it detaches the handle so a
	// leaked wrapper cannot be used afterwards, but it does not call into the
	// native library. Explicit Close is the contract.
	runtime.SetFinalizer(r, func(r *Resource) {
		r.invalidate()
	})
	return r
}

// Handle returns the current native handle, or NullHandle after release.
func (r *Resource) Handle() Handle {
	return r.handle.Load()
}

// IsInvalid reports whether the resource has been released or detached.
func (r *Resource) IsInvalid() bool {
	return r.handle.Load() == NullHandle
}

// Close releases the native resource. It is idempotent: a second call is a
// no-op and never double-frees.
func (r *Resource) Close() error {
	h := r.handle.Swap(NullHandle)
	if h == NullHandle {
		return nil
	}
	runtime.SetFinalizer(r, nil)
	Unpin(h)
	r.release(h)
	return nil
}

// invalidate detaches the handle without calling into native code. Used on
// the finalizer path and when the native side has already destroyed the
// resource (e.g. the event loop reported the window destroyed).
func (r *Resource) invalidate() {
	h := r.handle.Swap(NullHandle)
	if h != NullHandle {
		Unpin(h)
	}
}

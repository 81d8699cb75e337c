package ffi

import (
	"sync"
)

// ============================================================================
// Callback Pinning Registry
// ============================================================================

// The native runtime holds raw function pointers into Go (via purego
// callbacks) plus whatever state those callbacks close over. Anything handed
// across the boundary must stay reachable until the owning native resource is
// gone. The registry keys pinned objects by the owning handle so teardown of
// one resource releases exactly its own callbacks.
//
// Entries for different owners use independent locks so destroying one window
// never serializes against creating another.

type pinOwner struct {
	mu      sync.Mutex
	entries []any
}

var (
	pinsMu sync.RWMutex
	pins   = make(map[Handle]*pinOwner)
)

// Pin keeps cb reachable until Unpin is called for owner. cb may be any
// value: a Go function wrapped by purego.NewCallback, a buffer native code
// reads asynchronously, or handler state addressed through a user-data token.
func Pin(owner Handle, cb any) {
	if owner == NullHandle {
		return
	}
	pinsMu.RLock()
	po := pins[owner]
	pinsMu.RUnlock()
	if po == nil {
		pinsMu.Lock()
		po = pins[owner]
		if po == nil {
			po = &pinOwner{}
			pins[owner] = po
		}
		pinsMu.Unlock()
	}
	po.mu.Lock()
	po.entries = append(po.entries, cb)
	po.mu.Unlock()
}

// Unpin releases every callback pinned under owner, exactly once. The caller
// is responsible for having already ensured the native side will not invoke
// them again — normally because the owning resource has been destroyed.
func Unpin(owner Handle) {
	pinsMu.Lock()
	po := pins[owner]
	delete(pins, owner)
	pinsMu.Unlock()
	if po == nil {
		return
	}
	po.mu.Lock()
	po.entries = nil
	po.mu.Unlock()
}

// pinnedCount reports how many values are pinned under owner. Test hook.
func pinnedCount(owner Handle) int {
	pinsMu.RLock()
	po := pins[owner]
	pinsMu.RUnlock()
	if po == nil {
		return 0
	}
	po.mu.Lock()
	defer po.mu.Unlock()
	return len(po.entries)
}

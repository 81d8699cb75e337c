package ffi

import (
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// ============================================================================
// Window
// ============================================================================

// Window wraps a native window handle. Loop-thread-affine.
type Window struct {
	res *Resource
}

// NewWindow creates a native window on the given loop. optsJSON carries the
// creation parameters (already encoded by the caller); they are fixed at
// creation time.
func NewWindow(loop *EventLoop, optsJSON []byte) (*Window, error) {
	h := loop.res.Handle()
	if h == NullHandle {
		return nil, creationErr("window")
	}
	opts := append(optsJSON, 0)
	wh := fnWindowNew(h, cStringPtr(opts))
	runtime.KeepAlive(opts)
	if wh == NullHandle {
		return nil, creationErr("window")
	}
	return &Window{res: newResource(wh, fnWindowFree)}, nil
}

// Handle exposes the raw native handle.
func (w *Window) Handle() Handle { return w.res.Handle() }

// ID returns the native layer's identifier for this window, unique among
// currently-live windows.
func (w *Window) ID() string {
	h := w.res.Handle()
	if h == NullHandle {
		return ""
	}
	return takeString(fnWindowID(h))
}

// Close requests native window teardown. Idempotent.
func (w *Window) Close() error { return w.res.Close() }

// Invalidate detaches the handle without a native call, for use when the
// native loop has already reported the window destroyed.
func (w *Window) Invalidate() { w.res.invalidate() }

// call runs a status-returning native window operation.
func (w *Window) call(op string, fn func(Handle) int32) error {
	h := w.res.Handle()
	if h == NullHandle {
		return &CallError{Op: op, Code: -1, Native: "window released"}
	}
	return callErr(op, fn(h))
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) error {
	buf := cString(title)
	err := w.call("set title", func(h Handle) int32 {
		return fnWindowSetTitle(h, cStringPtr(buf))
	})
	runtime.KeepAlive(buf)
	return err
}

// SetVisible shows or hides the window.
func (w *Window) SetVisible(visible bool) error {
	v := int32(0)
	if visible {
		v = 1
	}
	return w.call("set visible", func(h Handle) int32 { return fnWindowSetVisible(h, v) })
}

// SetSize resizes the window to the given logical size.
func (w *Window) SetSize(width, height uint32) error {
	return w.call("set size", func(h Handle) int32 { return fnWindowSetSize(h, width, height) })
}

// SetPosition moves the window to the given screen position.
func (w *Window) SetPosition(x, y int32) error {
	return w.call("set position", func(h Handle) int32 { return fnWindowSetPosition(h, x, y) })
}

// Minimize minimizes the window.
func (w *Window) Minimize() error {
	return w.call("minimize", func(h Handle) int32 { return fnWindowMinimize(h) })
}

// Maximize maximizes the window.
func (w *Window) Maximize() error {
	return w.call("maximize", func(h Handle) int32 { return fnWindowMaximize(h) })
}

// Restore restores the window from the minimized or maximized state.
func (w *Window) Restore() error {
	return w.call("restore", func(h Handle) int32 { return fnWindowRestore(h) })
}

// Focus brings the window to the foreground.
func (w *Window) Focus() error {
	return w.call("focus", func(h Handle) int32 { return fnWindowFocus(h) })
}

// RequestClose asks the native layer to close the window, which raises a
// close-requested event through the loop.
func (w *Window) RequestClose() error {
	return w.call("close", func(h Handle) int32 { return fnWindowClose(h) })
}

// ============================================================================
// Webview
// ============================================================================

// Webview wraps a native webview handle attached to a window. Loop-thread-affine.
type Webview struct {
	res *Resource
}

var (
	ipcOnce     sync.Once
	ipcCallback uintptr
	ipcHandlers sync.Map // Handle -> func([]byte)
)

// ipcTrampoline is the single process-wide callback for script-to-host
// messages. userData is the owning webview handle. The message is borrowed;
// it is copied out before the handler runs.
func ipcTrampoline(msgPtr uintptr, userData uintptr) {
	defer func() { recover() }()
	v, ok := ipcHandlers.Load(userData)
	if !ok || msgPtr == 0 {
		return
	}
	v.(func([]byte))([]byte(goString(msgPtr)))
}

// NewWebview attaches a webview to the window. optsJSON carries creation
// parameters (start URL or inline HTML, devtools flag); several are immutable
// at the native layer thereafter.
func NewWebview(w *Window, optsJSON []byte) (*Webview, error) {
	h := w.res.Handle()
	if h == NullHandle {
		return nil, creationErr("webview")
	}
	opts := append(optsJSON, 0)
	vh := fnWebviewNew(h, cStringPtr(opts))
	runtime.KeepAlive(opts)
	if vh == NullHandle {
		return nil, creationErr("webview")
	}
	return &Webview{res: newResource(vh, webviewFree)}, nil
}

// webviewFree releases the native webview and the Go-side state keyed by it.
func webviewFree(h Handle) {
	ipcHandlers.Delete(h)
	releaseSchemeHandlers(h)
	fnWebviewFree(h)
}

// Invalidate detaches the handle and drops the Go-side state keyed by it
// without calling into the native library. Used when the native side has
// already destroyed the webview (its window was torn down by the loop).
func (v *Webview) Invalidate() {
	if h := v.res.Handle(); h != NullHandle {
		ipcHandlers.Delete(h)
		releaseSchemeHandlers(h)
	}
	v.res.invalidate()
}

// Handle exposes the raw native handle.
func (v *Webview) Handle() Handle { return v.res.Handle() }

// Close releases the native webview. Idempotent.
func (v *Webview) Close() error { return v.res.Close() }

func (v *Webview) call(op string, fn func(Handle) int32) error {
	h := v.res.Handle()
	if h == NullHandle {
		return &CallError{Op: op, Code: -1, Native: "webview released"}
	}
	return callErr(op, fn(h))
}

// Navigate loads the given URL.
func (v *Webview) Navigate(url string) error {
	buf := cString(url)
	err := v.call("navigate", func(h Handle) int32 { return fnWebviewNavigate(h, cStringPtr(buf)) })
	runtime.KeepAlive(buf)
	return err
}

// SetHTML loads inline HTML content.
func (v *Webview) SetHTML(html string) error {
	buf := cString(html)
	err := v.call("set html", func(h Handle) int32 { return fnWebviewSetHTML(h, cStringPtr(buf)) })
	runtime.KeepAlive(buf)
	return err
}

// Eval runs a script in the webview's script context. Fire-and-forget.
func (v *Webview) Eval(script string) error {
	buf := cString(script)
	err := v.call("eval", func(h Handle) int32 { return fnWebviewEval(h, cStringPtr(buf)) })
	runtime.KeepAlive(buf)
	return err
}

// SupportsDevtools reports whether the native backend exposes devtools.
func (v *Webview) SupportsDevtools() bool {
	return fnWebviewOpenDevtools != nil
}

// OpenDevtools opens the webview inspector, when the backend supports it.
func (v *Webview) OpenDevtools() error {
	if fnWebviewOpenDevtools == nil {
		return &CallError{Op: "open devtools", Code: -1, Native: "not supported by this backend"}
	}
	return v.call("open devtools", func(h Handle) int32 { return fnWebviewOpenDevtools(h) })
}

// SetIPCHandler installs fn as the receiver for messages posted from the
// webview's script context. fn stays pinned until the webview is released.
func (v *Webview) SetIPCHandler(fn func(raw []byte)) error {
	h := v.res.Handle()
	if h == NullHandle {
		return &CallError{Op: "set ipc handler", Code: -1, Native: "webview released"}
	}
	ipcOnce.Do(func() {
		ipcCallback = purego.NewCallback(ipcTrampoline)
	})
	ipcHandlers.Store(h, fn)
	Pin(h, fn)
	return callErr("set ipc handler", fnWebviewSetIPCCallback(h, ipcCallback, h))
}

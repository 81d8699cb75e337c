package skylight

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skylight-app/skylight/internal/logging"
	"github.com/skylight-app/skylight/ipc"
)

// WindowState tracks a window through its lifecycle:
// Pending → Initialized → Closing → Destroyed.
type WindowState int32

const (
	// StatePending: created by the application but not yet backed by a
	// native window.
	StatePending WindowState = iota
	// StateInitialized: registered, native window and webview live.
	StateInitialized
	// StateClosing: close accepted, native teardown in progress.
	StateClosing
	// StateDestroyed: unregistered and disposed.
	StateDestroyed
)

func (s WindowState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInitialized:
		return "initialized"
	case StateClosing:
		return "closing"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("WindowState(%d)", int32(s))
	}
}

// Window is one application window plus its webview. All methods that touch
// the native layer are loop-thread-affine once the window is initialized;
// cross-thread work goes through the application's loop proxy.
type Window struct {
	app *App

	mu      sync.Mutex
	state   WindowState
	opts    WindowOptions
	id      string
	native  nativeWindow
	webview nativeWebview
	schemes map[string]SchemeHandler

	msgs   *ipc.Channel
	logger zerolog.Logger

	// Event handlers, invoked on the loop thread. Panics are caught at the
	// dispatch boundary, logged, and swallowed.
	OnCloseRequested func() bool
	OnResized        func(size Size)
	OnMoved          func(pos Position)
	OnFocusChanged   func(focused bool)
	OnDestroyed      func()
	// OnEvent observes every event routed to this window, including kinds
	// the typed handlers above do not cover.
	OnEvent func(ev Event)
}

func newWindow(app *App, opts WindowOptions) *Window {
	w := &Window{
		app:     app,
		state:   StatePending,
		opts:    opts,
		schemes: make(map[string]SchemeHandler),
		logger:  logging.Component("window"),
	}
	w.msgs = ipc.New(w.postToWebview)
	return w
}

// ID returns the native layer's identifier for this window. Empty while the
// window is still pending.
func (w *Window) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

// State returns the window's lifecycle state.
func (w *Window) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Messages returns the window's IPC channel to its webview script context.
func (w *Window) Messages() *ipc.Channel { return w.msgs }

// initialize backs the window with a native window and webview and assigns
// its identifier. Called on the loop thread.
func (w *Window) initialize(loop eventLoop) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateInitialized:
		return nil
	case StateClosing, StateDestroyed:
		return ErrWindowDestroyed
	}

	native, err := loop.NewWindow(w.opts)
	if err != nil {
		return err
	}
	webview, err := native.NewWebview(w.opts.webview())
	if err != nil {
		native.Close()
		return err
	}

	id := native.ID()
	if id == "" {
		webview.Close()
		native.Close()
		return &CreationError{What: "window", NativeMsg: "native layer returned no window identifier"}
	}

	for scheme := range w.schemes {
		scheme := scheme
		if err := webview.RegisterScheme(scheme, func(req *SchemeRequest) *SchemeResponse {
			return w.handleSchemeRequest(scheme, req)
		}); err != nil {
			webview.Close()
			native.Close()
			return fmt.Errorf("register scheme %q: %w", scheme, err)
		}
	}

	if err := webview.SetIPCHandler(w.msgs.HandleRaw); err != nil {
		webview.Close()
		native.Close()
		return fmt.Errorf("install ipc handler: %w", err)
	}

	w.id = id
	w.native = native
	w.webview = webview
	w.state = StateInitialized
	w.logger = logging.Component("window").With().Str("window_id", id).Logger()
	w.msgs.SetLogger(logging.Component("ipc").With().Str("window_id", id).Logger())
	return nil
}

// postToWebview delivers one encoded IPC envelope into the webview's script
// context.
func (w *Window) postToWebview(raw []byte) error {
	w.mu.Lock()
	webview := w.webview
	state := w.state
	w.mu.Unlock()
	if state != StateInitialized && state != StateClosing {
		return ErrWindowNotInitialized
	}
	return webview.Eval(fmt.Sprintf("window.__SKYLIGHT_IPC__ && window.__SKYLIGHT_IPC__.recv(%s);", raw))
}

// Send posts a fire-and-forget IPC message to the webview.
func (w *Window) Send(msgType string, payload any) error {
	return w.msgs.Send(msgType, payload)
}

// Request sends a correlated IPC request to the webview and waits for the
// response, the timeout, or ctx cancellation.
func (w *Window) Request(ctx context.Context, msgType string, payload any, timeout time.Duration) (json.RawMessage, error) {
	return w.msgs.Request(ctx, msgType, payload, timeout)
}

// RegisterScheme installs handler for a custom URL scheme. Scheme
// interception is fixed at webview creation; registration after
// initialization reports an ImmutableOptionError.
func (w *Window) RegisterScheme(scheme string, handler SchemeHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StatePending {
		return &ImmutableOptionError{Option: "custom scheme handlers"}
	}
	w.schemes[scheme] = handler
	return nil
}

// ============================================================================
// Creation-Immutable Options
// ============================================================================

// setPendingOption mutates one creation option while the window is pending.
func (w *Window) setPendingOption(option string, set func(*WindowOptions)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StatePending:
		set(&w.opts)
		return nil
	case StateClosing, StateDestroyed:
		return ErrWindowDestroyed
	default:
		return &ImmutableOptionError{Option: option}
	}
}

// SetResizable configures resizability. Immutable after initialization.
func (w *Window) SetResizable(resizable bool) error {
	return w.setPendingOption("resizable", func(o *WindowOptions) { o.Resizable = resizable })
}

// SetTransparent configures transparency. Immutable after initialization.
func (w *Window) SetTransparent(transparent bool) error {
	return w.setPendingOption("transparent", func(o *WindowOptions) { o.Transparent = transparent })
}

// SetDevtools configures devtools availability. Immutable after initialization.
func (w *Window) SetDevtools(enabled bool) error {
	return w.setPendingOption("devtools", func(o *WindowOptions) { o.Devtools = enabled })
}

// ============================================================================
// Runtime Window Controls
// ============================================================================

// liveNative returns the native window for a runtime control call.
func (w *Window) liveNative() (nativeWindow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StatePending:
		return nil, ErrWindowNotInitialized
	case StateClosing, StateDestroyed:
		return nil, ErrWindowDestroyed
	}
	return w.native, nil
}

// SetTitle sets the window title. While pending it updates the creation
// options instead.
func (w *Window) SetTitle(title string) error {
	w.mu.Lock()
	if w.state == StatePending {
		w.opts.Title = title
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.SetTitle(title)
}

// SetVisible shows or hides the window.
func (w *Window) SetVisible(visible bool) error {
	w.mu.Lock()
	if w.state == StatePending {
		w.opts.Visible = visible
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.SetVisible(visible)
}

// SetSize resizes the window.
func (w *Window) SetSize(width, height uint32) error {
	w.mu.Lock()
	if w.state == StatePending {
		w.opts.Width, w.opts.Height = width, height
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.SetSize(width, height)
}

// SetPosition moves the window.
func (w *Window) SetPosition(x, y int32) error {
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.SetPosition(x, y)
}

// Minimize minimizes the window.
func (w *Window) Minimize() error {
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.Minimize()
}

// Maximize maximizes the window.
func (w *Window) Maximize() error {
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.Maximize()
}

// Restore restores the window from the minimized or maximized state.
func (w *Window) Restore() error {
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.Restore()
}

// Focus brings the window to the foreground.
func (w *Window) Focus() error {
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.Focus()
}

// ============================================================================
// Webview Controls
// ============================================================================

// liveWebview returns the webview for a runtime call.
func (w *Window) liveWebview() (nativeWebview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StatePending:
		return nil, ErrWindowNotInitialized
	case StateClosing, StateDestroyed:
		return nil, ErrWindowDestroyed
	}
	return w.webview, nil
}

// Navigate loads the given URL in the webview.
func (w *Window) Navigate(url string) error {
	v, err := w.liveWebview()
	if err != nil {
		return err
	}
	return v.Navigate(url)
}

// SetHTML loads inline HTML content in the webview.
func (w *Window) SetHTML(html string) error {
	v, err := w.liveWebview()
	if err != nil {
		return err
	}
	return v.SetHTML(html)
}

// Eval runs a script in the webview. Fire-and-forget.
func (w *Window) Eval(script string) error {
	v, err := w.liveWebview()
	if err != nil {
		return err
	}
	return v.Eval(script)
}

// OpenDevtools opens the webview inspector. Returns a NotSupportedError on
// backends without devtools.
func (w *Window) OpenDevtools() error {
	v, err := w.liveWebview()
	if err != nil {
		return err
	}
	return v.OpenDevtools()
}

// Close requests the window to close, raising a close-requested event
// through the loop. A pending window is destroyed immediately.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.state == StatePending {
		w.state = StateDestroyed
		w.mu.Unlock()
		w.msgs.Close()
		if w.app != nil {
			w.app.removePending(w)
		}
		return nil
	}
	w.mu.Unlock()
	n, err := w.liveNative()
	if err != nil {
		return err
	}
	return n.RequestClose()
}

// ============================================================================
// Event Dispatch
// ============================================================================

// safeCall runs one user handler, catching panics at the dispatch boundary
// so they never propagate back into native code.
func (w *Window) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("handler", what).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	fn()
}

// dispatch routes one decoded event to this window's handlers. Runs on the
// loop thread.
func (w *Window) dispatch(ev Event) {
	if w.OnEvent != nil {
		w.safeCall("OnEvent", func() { w.OnEvent(ev) })
	}

	switch e := ev.(type) {
	case CloseRequestedEvent:
		allow := true
		if w.OnCloseRequested != nil {
			w.safeCall("OnCloseRequested", func() { allow = w.OnCloseRequested() })
		}
		if allow {
			w.destroy(false)
		}
	case DestroyedEvent:
		w.destroy(true)
	case ResizedEvent:
		if w.OnResized != nil {
			w.safeCall("OnResized", func() { w.OnResized(e.Size) })
		}
	case MovedEvent:
		if w.OnMoved != nil {
			w.safeCall("OnMoved", func() { w.OnMoved(e.Position) })
		}
	case FocusedEvent:
		if w.OnFocusChanged != nil {
			w.safeCall("OnFocusChanged", func() { w.OnFocusChanged(e.IsFocused) })
		}
	}
}

// destroy transitions the window to Destroyed, tears down native resources,
// and unregisters it from the application exactly once. nativeGone is true
// when the native loop already reported the window destroyed, in which case
// the handle is detached without a native release call.
func (w *Window) destroy(nativeGone bool) {
	w.mu.Lock()
	if w.state == StateDestroyed {
		w.mu.Unlock()
		return
	}
	w.state = StateClosing
	id := w.id
	native := w.native
	webview := w.webview
	w.native = nil
	w.webview = nil
	w.state = StateDestroyed
	w.mu.Unlock()

	if webview != nil {
		if nativeGone {
			webview.Invalidate()
		} else {
			webview.Close()
		}
	}
	if native != nil {
		if nativeGone {
			native.Invalidate()
		} else {
			native.Close()
		}
	}
	w.msgs.Close()

	if w.app != nil {
		w.app.unregister(id)
	}
	if w.OnDestroyed != nil {
		w.safeCall("OnDestroyed", w.OnDestroyed)
	}
	w.logger.Debug().Str("window_id", id).Msg("window destroyed")
}

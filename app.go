package skylight

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/skylight-app/skylight/internal/logging"
)

// AppConfig configures the application manager.
type AppConfig struct {
	// WaitForEvents makes the pump block until the next native event instead
	// of spinning. On by default.
	WaitForEvents bool `toml:"wait_for_events"`
	// ContinueOnPanic makes a panicking event handler log and continue the
	// loop instead of requesting exit.
	ContinueOnPanic bool `toml:"continue_on_panic"`
}

// DefaultAppConfig returns sensible defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{WaitForEvents: true}
}

// The native event loop is a process-wide singleton: one live loop, created
// lazily by the first Run, torn down exactly once when Run returns.
var (
	loopGuard  sync.Mutex
	loopActive bool
)

// App owns the shared event loop and the registry of live windows, fans
// events out to them by window identifier, and exposes broadcast and
// point-to-point sends across windows.
type App struct {
	cfg     AppConfig
	backend backend
	logger  zerolog.Logger

	mu      sync.RWMutex
	loop    eventLoop
	proxy   eventLoopProxy
	windows map[string]*Window
	pending []*Window

	exitRequested atomic.Bool
	running       atomic.Bool

	// OnShortcut receives global-shortcut events. Invoked on the loop thread.
	OnShortcut func(id string)
	// OnEvent observes application-level events: global kinds plus records
	// that were not addressable to any window.
	OnEvent func(ev Event)
}

// New creates an application manager with the given configuration.
func New(cfg AppConfig) *App {
	return &App{
		cfg:     cfg,
		backend: newFFIBackend(),
		windows: make(map[string]*Window),
		logger:  logging.Component("app"),
	}
}

// NewWindow creates a window in the pending state, not yet backed by a
// native window. Run or InitializeWindow moves it to initialized.
func (a *App) NewWindow(opts WindowOptions) *Window {
	w := newWindow(a, opts)
	a.mu.Lock()
	a.pending = append(a.pending, w)
	a.mu.Unlock()
	return w
}

// InitializeWindow backs a pending window with a native window and webview
// and registers it. Safe to call from an event handler on the loop thread
// after the loop has started.
func (a *App) InitializeWindow(w *Window) error {
	a.mu.RLock()
	loop := a.loop
	a.mu.RUnlock()
	if loop == nil {
		return fmt.Errorf("initialize window: %w", ErrWindowNotInitialized)
	}

	if err := w.initialize(loop); err != nil {
		return err
	}

	a.mu.Lock()
	a.windows[w.ID()] = w
	a.mu.Unlock()
	a.removePending(w)

	a.logger.Debug().Str("window_id", w.ID()).Msg("window initialized")
	return nil
}

// removePending drops a window from the pending list. No-op when absent.
func (a *App) removePending(w *Window) {
	a.mu.Lock()
	for i, p := range a.pending {
		if p == w {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			break
		}
	}
	a.mu.Unlock()
}

// unregister removes a window from the registry. Idempotent.
func (a *App) unregister(id string) {
	if id == "" {
		return
	}
	a.mu.Lock()
	delete(a.windows, id)
	a.mu.Unlock()
}

// Window returns the live window registered under id, or nil.
func (a *App) Window(id string) *Window {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.windows[id]
}

// Windows returns a snapshot of the live windows. The snapshot is safe to
// iterate while handlers register or destroy windows.
func (a *App) Windows() []*Window {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Window, 0, len(a.windows))
	for _, w := range a.windows {
		out = append(out, w)
	}
	return out
}

// Broadcast sends an IPC message to every live window. Best-effort: windows
// that raced to destruction are skipped.
func (a *App) Broadcast(msgType string, payload any) {
	for _, w := range a.Windows() {
		if err := w.Send(msgType, payload); err != nil {
			a.logger.Debug().Str("window_id", w.ID()).Err(err).Msg("broadcast skipped window")
		}
	}
}

// SendToWindow sends an IPC message to one window by identifier.
// Best-effort: a no-op when the identifier is not registered, since the
// window may have raced to destruction.
func (a *App) SendToWindow(id, msgType string, payload any) {
	w := a.Window(id)
	if w == nil {
		return
	}
	if err := w.Send(msgType, payload); err != nil {
		a.logger.Debug().Str("window_id", id).Err(err).Msg("send skipped window")
	}
}

// Quit requests pump exit through the event-loop proxy. Safe to call from
// any goroutine.
func (a *App) Quit() {
	a.exitRequested.Store(true)
	a.mu.RLock()
	proxy := a.proxy
	a.mu.RUnlock()
	if proxy == nil {
		return
	}
	if err := proxy.RequestExit(); err != nil {
		a.logger.Warn().Err(err).Msg("exit request failed")
	}
	// Unblock a waiting pump so the exit request is observed promptly.
	if err := proxy.Wake(); err != nil {
		a.logger.Debug().Err(err).Msg("wake failed")
	}
}

// Run creates the shared native event loop, initializes all pending windows,
// and pumps events until exit is requested or the loop is destroyed. It must
// be called on the main goroutine; the OS thread is locked for the duration.
func (a *App) Run() error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrLoopActive
	}
	defer a.running.Store(false)

	loopGuard.Lock()
	if loopActive {
		loopGuard.Unlock()
		return ErrLoopActive
	}
	loopActive = true
	loopGuard.Unlock()
	defer func() {
		loopGuard.Lock()
		loopActive = false
		loopGuard.Unlock()
	}()

	// The native loop and all window mutation are affine to this thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	loop, err := a.backend.NewEventLoop()
	if err != nil {
		return err
	}
	proxy, err := loop.NewProxy()
	if err != nil {
		loop.Close()
		return err
	}

	a.mu.Lock()
	a.loop = loop
	a.proxy = proxy
	pending := append([]*Window(nil), a.pending...)
	a.mu.Unlock()

	defer a.teardown()

	for _, w := range pending {
		if w.State() == StateDestroyed {
			continue
		}
		if err := a.InitializeWindow(w); err != nil {
			return err
		}
	}

	a.logger.Info().Int("windows", len(pending)).Msg("event loop running")

	for !a.exitRequested.Load() {
		if err := loop.Step(a.step); err != nil {
			return fmt.Errorf("event pump: %w", err)
		}
	}
	return nil
}

// teardown releases the proxy and the loop exactly once, after destroying
// any windows still registered.
func (a *App) teardown() {
	a.mu.Lock()
	windows := make([]*Window, 0, len(a.windows))
	for _, w := range a.windows {
		windows = append(windows, w)
	}
	loop := a.loop
	proxy := a.proxy
	a.loop = nil
	a.proxy = nil
	a.mu.Unlock()

	for _, w := range windows {
		w.destroy(false)
	}
	if proxy != nil {
		proxy.Close()
	}
	if loop != nil {
		loop.Close()
	}
	a.logger.Info().Msg("event loop stopped")
}

// step handles one event record from the pump and decides the control flow
// returned to the native loop. Panics out of dispatch are caught here —
// never propagated across the boundary — and either exit the loop or are
// logged and swallowed, per configuration.
func (a *App) step(raw []byte) (flow ControlFlow) {
	flow = Wait
	if !a.cfg.WaitForEvents {
		flow = Poll
	}

	defer func() {
		if r := recover(); r != nil {
			if a.cfg.ContinueOnPanic {
				a.logger.Error().Interface("panic", r).Msg("event dispatch panicked; continuing")
			} else {
				a.logger.Error().Interface("panic", r).Msg("event dispatch panicked; exiting")
				a.exitRequested.Store(true)
			}
		}
		if a.exitRequested.Load() {
			flow = Exit
		}
	}()

	a.dispatch(raw)
	return flow
}

// dispatch decodes one event record and routes it: global kinds to the
// application, addressed kinds to the owning window's dispatcher. Records
// with no window id, or with an identifier that is no longer registered
// (the window may have just been destroyed), are ignored.
func (a *App) dispatch(raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		a.logger.Warn().Err(err).Msg("dropping malformed event record")
		return
	}

	switch e := ev.(type) {
	case GlobalShortcutEvent:
		a.observe(ev)
		if a.OnShortcut != nil {
			a.OnShortcut(e.ID)
		}
		return
	case UserExitEvent:
		a.observe(ev)
		a.exitRequested.Store(true)
		return
	case LoopDestroyedEvent:
		a.observe(ev)
		a.exitRequested.Store(true)
		return
	case InformationalEvent:
		return
	}

	windowID := eventWindowID(ev)
	if windowID == "" {
		a.observe(ev)
		return
	}

	a.mu.RLock()
	w := a.windows[windowID]
	a.mu.RUnlock()
	if w == nil {
		return
	}
	w.dispatch(ev)
}

// observe forwards an event to the application-level observer.
func (a *App) observe(ev Event) {
	if a.OnEvent == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("app event handler panicked")
		}
	}()
	a.OnEvent(ev)
}

// eventWindowID extracts the routing key from addressed event kinds.
func eventWindowID(ev Event) string {
	switch e := ev.(type) {
	case CloseRequestedEvent:
		return e.WindowID
	case DestroyedEvent:
		return e.WindowID
	case ResizedEvent:
		return e.WindowID
	case MovedEvent:
		return e.WindowID
	case FocusedEvent:
		return e.WindowID
	case UnknownEvent:
		return e.WindowID
	default:
		return ""
	}
}

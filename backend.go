package skylight

// The backend interfaces cover exactly the native surface the application
// manager drives. The production implementation binds the Skylight runtime
// library through internal/ffi; tests substitute in-process fakes.

type backend interface {
	// NewEventLoop creates the native event loop. Must be called on the
	// thread that will pump it.
	NewEventLoop() (eventLoop, error)
}

type eventLoop interface {
	NewProxy() (eventLoopProxy, error)
	// Step processes pending native events, calling fn once per event
	// record and passing its ControlFlow result through to the native loop.
	Step(fn func(raw []byte) ControlFlow) error
	NewWindow(opts WindowOptions) (nativeWindow, error)
	Close() error
}

type eventLoopProxy interface {
	RequestExit() error
	Wake() error
	Close() error
}

type nativeWindow interface {
	ID() string
	SetTitle(title string) error
	SetVisible(visible bool) error
	SetSize(width, height uint32) error
	SetPosition(x, y int32) error
	Minimize() error
	Maximize() error
	Restore() error
	Focus() error
	RequestClose() error
	NewWebview(opts webviewOptions) (nativeWebview, error)
	// Invalidate detaches the handle without a native call, for when the
	// loop already reported the window destroyed.
	Invalidate()
	Close() error
}

type nativeWebview interface {
	Navigate(url string) error
	SetHTML(html string) error
	Eval(script string) error
	OpenDevtools() error
	SetIPCHandler(fn func(raw []byte)) error
	// RegisterScheme intercepts requests for scheme. The handler returns nil
	// for not-handled.
	RegisterScheme(scheme string, handler func(req *SchemeRequest) *SchemeResponse) error
	// Invalidate detaches the handle without releasing the native webview,
	// for when the native side has already torn it down.
	Invalidate()
	Close() error
}

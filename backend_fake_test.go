package skylight

import (
	"fmt"
	"sync"
)

// The fakes below stand in for the native runtime so lifecycle, routing,
// and control-flow behavior can be exercised without the shared library.

type fakeBackend struct {
	loop       *fakeLoop
	newLoopErr error
}

func (b *fakeBackend) NewEventLoop() (eventLoop, error) {
	if b.newLoopErr != nil {
		return nil, b.newLoopErr
	}
	return b.loop, nil
}

type fakeLoop struct {
	mu      sync.Mutex
	queue   [][]byte
	nextID  int
	windows []*fakeNativeWindow
	closed  bool
}

func newFakeLoop(records ...string) *fakeLoop {
	l := &fakeLoop{}
	for _, r := range records {
		l.queue = append(l.queue, []byte(r))
	}
	return l
}

func (l *fakeLoop) push(record string) {
	l.mu.Lock()
	l.queue = append(l.queue, []byte(record))
	l.mu.Unlock()
}

func (l *fakeLoop) NewProxy() (eventLoopProxy, error) {
	return &fakeProxy{}, nil
}

// Step pops one queued record. An exhausted queue is a test scripting bug:
// every script must end with a record that requests exit.
func (l *fakeLoop) Step(fn func(raw []byte) ControlFlow) error {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return fmt.Errorf("fake loop: event queue exhausted")
	}
	raw := l.queue[0]
	l.queue = l.queue[1:]
	l.mu.Unlock()
	fn(raw)
	return nil
}

func (l *fakeLoop) NewWindow(opts WindowOptions) (nativeWindow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	w := &fakeNativeWindow{id: fmt.Sprintf("w%d", l.nextID), opts: opts}
	l.windows = append(l.windows, w)
	return w, nil
}

func (l *fakeLoop) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

type fakeProxy struct {
	mu            sync.Mutex
	exitRequested bool
	woken         int
	closed        bool
}

func (p *fakeProxy) RequestExit() error {
	p.mu.Lock()
	p.exitRequested = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProxy) Wake() error {
	p.mu.Lock()
	p.woken++
	p.mu.Unlock()
	return nil
}

func (p *fakeProxy) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeNativeWindow struct {
	mu          sync.Mutex
	id          string
	opts        WindowOptions
	webview     *fakeWebview
	calls       []string
	closed      int
	invalidated int
}

func (w *fakeNativeWindow) record(call string) {
	w.mu.Lock()
	w.calls = append(w.calls, call)
	w.mu.Unlock()
}

func (w *fakeNativeWindow) ID() string { return w.id }

func (w *fakeNativeWindow) SetTitle(title string) error {
	w.record("SetTitle:" + title)
	return nil
}

func (w *fakeNativeWindow) SetVisible(visible bool) error {
	w.record(fmt.Sprintf("SetVisible:%t", visible))
	return nil
}

func (w *fakeNativeWindow) SetSize(width, height uint32) error {
	w.record(fmt.Sprintf("SetSize:%dx%d", width, height))
	return nil
}

func (w *fakeNativeWindow) SetPosition(x, y int32) error {
	w.record(fmt.Sprintf("SetPosition:%d,%d", x, y))
	return nil
}

func (w *fakeNativeWindow) Minimize() error     { w.record("Minimize"); return nil }
func (w *fakeNativeWindow) Maximize() error     { w.record("Maximize"); return nil }
func (w *fakeNativeWindow) Restore() error      { w.record("Restore"); return nil }
func (w *fakeNativeWindow) Focus() error        { w.record("Focus"); return nil }
func (w *fakeNativeWindow) RequestClose() error { w.record("RequestClose"); return nil }

func (w *fakeNativeWindow) NewWebview(opts webviewOptions) (nativeWebview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.webview = &fakeWebview{opts: opts}
	return w.webview, nil
}

func (w *fakeNativeWindow) Invalidate() {
	w.mu.Lock()
	w.invalidated++
	w.mu.Unlock()
}

func (w *fakeNativeWindow) Close() error {
	w.mu.Lock()
	w.closed++
	w.mu.Unlock()
	return nil
}

func (w *fakeNativeWindow) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type fakeWebview struct {
	mu          sync.Mutex
	opts        webviewOptions
	evals       []string
	navigated   []string
	html        []string
	ipcHandler  func(raw []byte)
	schemes     map[string]func(req *SchemeRequest) *SchemeResponse
	closed      int
	invalidated int
}

func (v *fakeWebview) Navigate(url string) error {
	v.mu.Lock()
	v.navigated = append(v.navigated, url)
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) SetHTML(html string) error {
	v.mu.Lock()
	v.html = append(v.html, html)
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) Eval(script string) error {
	v.mu.Lock()
	v.evals = append(v.evals, script)
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) OpenDevtools() error { return &NotSupportedError{Op: "devtools"} }

func (v *fakeWebview) SetIPCHandler(fn func(raw []byte)) error {
	v.mu.Lock()
	v.ipcHandler = fn
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) RegisterScheme(scheme string, handler func(req *SchemeRequest) *SchemeResponse) error {
	v.mu.Lock()
	if v.schemes == nil {
		v.schemes = make(map[string]func(req *SchemeRequest) *SchemeResponse)
	}
	v.schemes[scheme] = handler
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) Invalidate() {
	v.mu.Lock()
	v.invalidated++
	v.mu.Unlock()
}

func (v *fakeWebview) Close() error {
	v.mu.Lock()
	v.closed++
	v.mu.Unlock()
	return nil
}

func (v *fakeWebview) closeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *fakeWebview) evalCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.evals)
}

// newTestApp wires an application to a fake loop that is already attached,
// so windows can be initialized without pumping Run.
func newTestApp(records ...string) (*App, *fakeLoop) {
	loop := newFakeLoop(records...)
	a := New(DefaultAppConfig())
	a.backend = &fakeBackend{loop: loop}
	a.loop = loop
	a.proxy = &fakeProxy{}
	return a, loop
}

// newRunApp wires an application to a fake backend but leaves the loop
// detached; Run attaches it.
func newRunApp(cfg AppConfig, records ...string) (*App, *fakeLoop) {
	loop := newFakeLoop(records...)
	a := New(cfg)
	a.backend = &fakeBackend{loop: loop}
	return a, loop
}

package skylight

import (
	"encoding/json"
	"fmt"

	"github.com/skylight-app/skylight/internal/ffi"
)

// ffiBackend binds the backend interfaces to the native Skylight runtime
// through internal/ffi.
type ffiBackend struct{}

func newFFIBackend() backend { return ffiBackend{} }

func (ffiBackend) NewEventLoop() (eventLoop, error) {
	loop, err := ffi.NewEventLoop()
	if err != nil {
		return nil, creationError("event loop", err)
	}
	return &ffiEventLoop{loop: loop}, nil
}

type ffiEventLoop struct {
	loop *ffi.EventLoop
}

func (l *ffiEventLoop) NewProxy() (eventLoopProxy, error) {
	p, err := l.loop.NewProxy()
	if err != nil {
		return nil, creationError("event loop proxy", err)
	}
	return &ffiProxy{proxy: p}, nil
}

func (l *ffiEventLoop) Step(fn func(raw []byte) ControlFlow) error {
	return l.loop.Step(func(raw []byte) ffi.ControlFlow {
		return ffi.ControlFlow(fn(raw))
	})
}

func (l *ffiEventLoop) NewWindow(opts WindowOptions) (nativeWindow, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode window options: %w", err)
	}
	w, err := ffi.NewWindow(l.loop, optsJSON)
	if err != nil {
		return nil, creationError("window", err)
	}
	return &ffiWindow{win: w}, nil
}

func (l *ffiEventLoop) Close() error { return l.loop.Close() }

type ffiProxy struct {
	proxy *ffi.EventLoopProxy
}

func (p *ffiProxy) RequestExit() error { return p.proxy.RequestExit() }
func (p *ffiProxy) Wake() error        { return p.proxy.Wake() }
func (p *ffiProxy) Close() error       { return p.proxy.Close() }

type ffiWindow struct {
	win *ffi.Window
}

func (w *ffiWindow) ID() string                         { return w.win.ID() }
func (w *ffiWindow) SetTitle(title string) error        { return w.win.SetTitle(title) }
func (w *ffiWindow) SetVisible(visible bool) error      { return w.win.SetVisible(visible) }
func (w *ffiWindow) SetSize(width, height uint32) error { return w.win.SetSize(width, height) }
func (w *ffiWindow) SetPosition(x, y int32) error       { return w.win.SetPosition(x, y) }
func (w *ffiWindow) Minimize() error                    { return w.win.Minimize() }
func (w *ffiWindow) Maximize() error                    { return w.win.Maximize() }
func (w *ffiWindow) Restore() error                     { return w.win.Restore() }
func (w *ffiWindow) Focus() error                       { return w.win.Focus() }
func (w *ffiWindow) RequestClose() error                { return w.win.RequestClose() }
func (w *ffiWindow) Invalidate()                        { w.win.Invalidate() }
func (w *ffiWindow) Close() error                       { return w.win.Close() }

func (w *ffiWindow) NewWebview(opts webviewOptions) (nativeWebview, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode webview options: %w", err)
	}
	v, err := ffi.NewWebview(w.win, optsJSON)
	if err != nil {
		return nil, creationError("webview", err)
	}
	return &ffiWebview{view: v}, nil
}

type ffiWebview struct {
	view *ffi.Webview
}

func (v *ffiWebview) Navigate(url string) error { return v.view.Navigate(url) }
func (v *ffiWebview) SetHTML(html string) error { return v.view.SetHTML(html) }
func (v *ffiWebview) Eval(script string) error  { return v.view.Eval(script) }
func (v *ffiWebview) Invalidate()               { v.view.Invalidate() }
func (v *ffiWebview) Close() error              { return v.view.Close() }

func (v *ffiWebview) OpenDevtools() error {
	if !v.view.SupportsDevtools() {
		return &NotSupportedError{Op: "devtools"}
	}
	return v.view.OpenDevtools()
}

func (v *ffiWebview) SetIPCHandler(fn func(raw []byte)) error {
	return v.view.SetIPCHandler(fn)
}

func (v *ffiWebview) RegisterScheme(scheme string, handler func(req *SchemeRequest) *SchemeResponse) error {
	return v.view.RegisterScheme(scheme, func(req *ffi.SchemeRequest) *ffi.SchemeResponse {
		resp := handler(&SchemeRequest{
			URL:     req.URL,
			Method:  req.Method,
			Headers: req.Headers,
			Body:    req.Body,
		})
		if resp == nil {
			return nil
		}
		return &ffi.SchemeResponse{
			Status:  int32(resp.Status),
			Mime:    resp.Mime,
			Headers: resp.Headers,
			Body:    resp.Body,
		}
	})
}

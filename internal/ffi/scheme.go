package ffi

import (
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// ============================================================================
// Custom Protocol Bridge
// ============================================================================

// The native webview calls into Go synchronously with a decoded request; Go
// answers with buffers whose ownership transfers to native code. Native code
// later frees them through the single dealloc entry point, passing back the
// opaque token issued at response time. Until that call the buffers stay
// pinned in the response registry.

// schemeRequestC mirrors the C request struct. All fields are borrowed views
// valid only for the duration of the synchronous call.
type schemeRequestC struct {
	URL     uintptr
	Method  uintptr
	Headers uintptr // JSON object, string -> string
	Body    uintptr
	BodyLen uint64
}

// schemeResponseC mirrors the C response struct filled in by Go.
type schemeResponseC struct {
	Status  int32
	_       [4]byte
	Mime    uintptr
	Headers uintptr // JSON object, string -> string
	Body    uintptr
	BodyLen uint64
	Dealloc uintptr
	Token   uintptr
}

// SchemeRequest is the Go-side copy of one intercepted request.
type SchemeRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// SchemeResponse carries a handler's answer. Body and Mime ownership
// transfers to native code when the response is accepted.
type SchemeResponse struct {
	Status  int32
	Mime    string
	Headers map[string]string
	Body    []byte
}

// SchemeHandler answers one request, or returns nil to signal not-handled.
// A nil return transfers no ownership and causes no allocation in the bridge.
type SchemeHandler func(req *SchemeRequest) *SchemeResponse

// pinnedResponse keeps a response's buffers alive until native code frees them.
type pinnedResponse struct {
	mime    []byte
	headers []byte
	body    []byte
}

var (
	schemeOnce      sync.Once
	schemeCallback  uintptr
	deallocCallback uintptr
	schemeToken     atomic.Uintptr
	schemeHandlers  sync.Map // uintptr (registration token) -> SchemeHandler
	respToken       atomic.Uintptr
	respPinned      sync.Map // uintptr (response token) -> *pinnedResponse

	schemeRegMu sync.Mutex
	schemeRegs  = make(map[Handle][]uintptr) // webview handle -> registration tokens
)

func initSchemeCallbacks() {
	schemeOnce.Do(func() {
		schemeCallback = purego.NewCallback(schemeTrampoline)
		deallocCallback = purego.NewCallback(deallocTrampoline)
	})
}

// schemeTrampoline is invoked synchronously on the loop thread for each
// intercepted request. Returns 1 when the response struct was filled, 0 for
// not-handled. Panics stop here and report not-handled.
func schemeTrampoline(reqPtr, respPtr, userData uintptr) (handled uintptr) {
	defer func() {
		if recover() != nil {
			handled = 0
		}
	}()

	v, ok := schemeHandlers.Load(userData)
	if !ok || reqPtr == 0 || respPtr == 0 {
		return 0
	}
	handler := v.(SchemeHandler)

	creq := (*schemeRequestC)(unsafe.Pointer(reqPtr))
	req := &SchemeRequest{
		URL:    goString(creq.URL),
		Method: goString(creq.Method),
		Body:   goBytes(creq.Body, creq.BodyLen),
	}
	if creq.Headers != 0 {
		// Malformed header blocks are dropped rather than failing the request.
		_ = json.Unmarshal([]byte(goString(creq.Headers)), &req.Headers)
	}

	resp := handler(req)
	if resp == nil {
		return 0
	}

	writeResponse((*schemeResponseC)(unsafe.Pointer(respPtr)), resp)
	return 1
}

// writeResponse pins the response buffers under a fresh token and fills the
// C struct. Native code owns the buffers from here until it invokes the
// dealloc entry point with the same token.
func writeResponse(out *schemeResponseC, resp *SchemeResponse) {
	pr := &pinnedResponse{
		mime: cString(resp.Mime),
		body: resp.Body,
	}
	if resp.Headers != nil {
		if hdr, err := json.Marshal(resp.Headers); err == nil {
			pr.headers = append(hdr, 0)
		}
	}

	token := respToken.Add(1)
	respPinned.Store(token, pr)

	out.Status = resp.Status
	out.Mime = cStringPtr(pr.mime)
	if pr.headers != nil {
		out.Headers = cStringPtr(pr.headers)
	} else {
		out.Headers = 0
	}
	if len(pr.body) > 0 {
		out.Body = uintptr(unsafe.Pointer(&pr.body[0]))
	} else {
		out.Body = 0
	}
	out.BodyLen = uint64(len(pr.body))
	out.Dealloc = deallocCallback
	out.Token = token
	runtime.KeepAlive(pr)
}

// deallocTrampoline releases the buffers pinned for one accepted response.
// Safe against double invocation: the second call finds no entry and no-ops.
func deallocTrampoline(token uintptr) {
	respPinned.Delete(token)
}

// RegisterScheme intercepts requests for the given URL scheme on the webview.
// The handler stays pinned until the webview is released.
func (v *Webview) RegisterScheme(scheme string, handler SchemeHandler) error {
	h := v.res.Handle()
	if h == NullHandle {
		return &CallError{Op: "register scheme", Code: -1, Native: "webview released"}
	}
	initSchemeCallbacks()

	token := schemeToken.Add(1)
	schemeHandlers.Store(token, handler)
	Pin(h, handler)

	buf := cString(scheme)
	err := callErr("register scheme", fnWebviewRegisterScheme(h, cStringPtr(buf), schemeCallback, token))
	runtime.KeepAlive(buf)
	if err != nil {
		schemeHandlers.Delete(token)
		return err
	}
	schemeRegMu.Lock()
	schemeRegs[h] = append(schemeRegs[h], token)
	schemeRegMu.Unlock()
	return nil
}

// releaseSchemeHandlers drops every scheme registration owned by the webview
// handle, so handler entries do not accumulate across webview lifetimes.
func releaseSchemeHandlers(h Handle) {
	schemeRegMu.Lock()
	tokens := schemeRegs[h]
	delete(schemeRegs, h)
	schemeRegMu.Unlock()
	for _, token := range tokens {
		schemeHandlers.Delete(token)
	}
}

// pinnedResponseCount reports live (not yet deallocated) responses. Test hook.
func pinnedResponseCount() int {
	n := 0
	respPinned.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

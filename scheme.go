package skylight

// ============================================================================
// Custom Protocol Bridge
// ============================================================================

// SchemeRequest is one intercepted custom-scheme request. All fields are
// copies owned by Go; the native views they came from are only valid during
// the synchronous interception call.
type SchemeRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// SchemeResponse answers a SchemeRequest. For accepted responses, Body and
// Mime ownership transfers to native code, which later frees them through the
// bridge's deallocation entry point.
type SchemeResponse struct {
	Status  int
	Mime    string
	Headers map[string]string
	Body    []byte
}

// SchemeHandler serves requests for one URL scheme. Returning (nil, nil)
// signals not-handled. An error is logged and reported as not-handled.
// Handlers run synchronously on the event-loop thread.
type SchemeHandler func(req *SchemeRequest) (*SchemeResponse, error)

// handleSchemeRequest looks up the handler for the request's scheme and
// invokes it. A missing handler, a handler error, or a handler panic all
// report not-handled (nil); panics and errors never propagate into native
// code.
func (w *Window) handleSchemeRequest(scheme string, req *SchemeRequest) (resp *SchemeResponse) {
	w.mu.Lock()
	handler := w.schemes[scheme]
	w.mu.Unlock()
	if handler == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("scheme", scheme).
				Str("url", req.URL).
				Interface("panic", r).
				Msg("scheme handler panicked")
			resp = nil
		}
	}()

	out, err := handler(req)
	if err != nil {
		w.logger.Error().
			Str("scheme", scheme).
			Str("url", req.URL).
			Err(err).
			Msg("scheme handler failed")
		return nil
	}
	return out
}

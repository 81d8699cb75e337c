package skylight

import (
	"errors"
	"fmt"

	"github.com/skylight-app/skylight/internal/ffi"
)

// NotSupportedError reports an operation the current native backend does not
// provide. Distinct from silent no-ops so missing platform features surface
// in development.
type NotSupportedError struct {
	Op string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by this backend", e.Op)
}

// ImmutableOptionError reports an attempt to change a creation parameter the
// native layer fixes at window/webview creation time.
type ImmutableOptionError struct {
	Option string
}

func (e *ImmutableOptionError) Error() string {
	return fmt.Sprintf("%s cannot be changed after initialization", e.Option)
}

// CreationError reports a native resource constructor that failed. NativeMsg
// carries the native layer's last-error text when one was available.
type CreationError struct {
	What      string
	NativeMsg string
}

func (e *CreationError) Error() string {
	if e.NativeMsg == "" {
		return fmt.Sprintf("failed to create %s", e.What)
	}
	return fmt.Sprintf("failed to create %s: %s", e.What, e.NativeMsg)
}

var (
	// ErrWindowDestroyed is returned by operations on a destroyed window.
	ErrWindowDestroyed = errors.New("window has been destroyed")
	// ErrWindowNotInitialized is returned by operations that need a live
	// native window while the window is still pending.
	ErrWindowNotInitialized = errors.New("window is not initialized")
	// ErrLoopActive is returned by Run when another application already owns
	// the process-wide event loop.
	ErrLoopActive = errors.New("an event loop is already active in this process")
)

// creationError converts an ffi-level creation failure, preserving the
// native message. Other errors pass through unchanged.
func creationError(what string, err error) error {
	var ce *ffi.CreationError
	if errors.As(err, &ce) {
		return &CreationError{What: what, NativeMsg: ce.Native}
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

// Package ffi provides Go bindings to the Skylight native runtime via purego.
// The native library owns the OS event loop, window handles, and webview
// instances; this package owns the boundary: symbol loading, callback
// trampolines, and the pinning required to keep Go memory alive while native
// code can still reach it.
package ffi

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// ============================================================================
// Library Loading
// ============================================================================

var (
	libHandle   uintptr
	libOnce     sync.Once
	libErr      error
	initialized bool
)

// Library function pointers (populated by initLibrary)
var (
	// Event loop functions
	fnEventLoopNew     func() uintptr
	fnEventLoopFree    func(loop uintptr)
	fnEventLoopStep    func(loop uintptr, callback uintptr, userData uintptr) int32
	fnProxyNew         func(loop uintptr) uintptr
	fnProxyFree        func(proxy uintptr)
	fnProxyRequestExit func(proxy uintptr) int32
	fnProxyWake        func(proxy uintptr) int32

	// Window functions
	fnWindowNew         func(loop uintptr, optsJSON uintptr) uintptr
	fnWindowFree        func(window uintptr)
	fnWindowID          func(window uintptr) uintptr
	fnWindowSetTitle    func(window uintptr, title uintptr) int32
	fnWindowSetVisible  func(window uintptr, visible int32) int32
	fnWindowSetSize     func(window uintptr, width uint32, height uint32) int32
	fnWindowSetPosition func(window uintptr, x int32, y int32) int32
	fnWindowMinimize    func(window uintptr) int32
	fnWindowMaximize    func(window uintptr) int32
	fnWindowRestore     func(window uintptr) int32
	fnWindowFocus       func(window uintptr) int32
	fnWindowClose       func(window uintptr) int32

	// Webview functions
	fnWebviewNew            func(window uintptr, optsJSON uintptr) uintptr
	fnWebviewFree           func(webview uintptr)
	fnWebviewNavigate       func(webview uintptr, url uintptr) int32
	fnWebviewSetHTML        func(webview uintptr, html uintptr) int32
	fnWebviewEval           func(webview uintptr, script uintptr) int32
	fnWebviewSetIPCCallback func(webview uintptr, callback uintptr, userData uintptr) int32
	fnWebviewRegisterScheme func(webview uintptr, scheme uintptr, callback uintptr, userData uintptr) int32

	// Optional webview functions (absent on some backends)
	fnWebviewOpenDevtools func(webview uintptr) int32

	// System functions
	fnLastErrorMessage func() uintptr
	fnStringFree       func(ptr uintptr)
	fnRuntimeVersion   func() uintptr
)

// getLibraryPath returns the path to the native dynamic library.
func getLibraryPath() string {
	if path := os.Getenv("SKYLIGHT_LIB_PATH"); path != "" {
		return path
	}

	var libName string
	switch runtime.GOOS {
	case "darwin":
		libName = "libskylight.dylib"
	case "windows":
		libName = "skylight.dll"
	default:
		libName = "libskylight.so"
	}

	searchPaths := []string{
		libName,
		filepath.Join(".", libName),
		filepath.Join("runtime", "target", "release", libName),
		filepath.Join("runtime", "target", "debug", libName),
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		searchPaths = append(searchPaths,
			filepath.Join(execDir, libName),
			filepath.Join(execDir, "..", "lib", libName),
		)
		if runtime.GOOS == "darwin" {
			searchPaths = append(searchPaths,
				filepath.Join(execDir, "..", "Frameworks", libName),
			)
		}
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}

	// Default to the library name and let the system loader find it.
	return libName
}

// initLibrary loads the dynamic library and registers all function pointers.
func initLibrary() error {
	libOnce.Do(func() {
		libPath := getLibraryPath()

		libHandle, libErr = openLibrary(libPath)
		if libErr != nil {
			libErr = fmt.Errorf("failed to load skylight runtime library from %s: %w", libPath, libErr)
			return
		}

		registerEventLoopFunctions()
		registerWindowFunctions()
		registerWebviewFunctions()
		registerSystemFunctions()

		initialized = true
	})

	return libErr
}

// Init loads the native library. It is safe to call more than once; only the
// first call does work. All other entry points call it implicitly.
func Init() error {
	return initLibrary()
}

func registerEventLoopFunctions() {
	purego.RegisterLibFunc(&fnEventLoopNew, libHandle, "skylight_event_loop_new")
	purego.RegisterLibFunc(&fnEventLoopFree, libHandle, "skylight_event_loop_free")
	purego.RegisterLibFunc(&fnEventLoopStep, libHandle, "skylight_event_loop_step")
	purego.RegisterLibFunc(&fnProxyNew, libHandle, "skylight_event_loop_proxy_new")
	purego.RegisterLibFunc(&fnProxyFree, libHandle, "skylight_event_loop_proxy_free")
	purego.RegisterLibFunc(&fnProxyRequestExit, libHandle, "skylight_event_loop_proxy_request_exit")
	purego.RegisterLibFunc(&fnProxyWake, libHandle, "skylight_event_loop_proxy_wake")
}

func registerWindowFunctions() {
	purego.RegisterLibFunc(&fnWindowNew, libHandle, "skylight_window_new")
	purego.RegisterLibFunc(&fnWindowFree, libHandle, "skylight_window_free")
	purego.RegisterLibFunc(&fnWindowID, libHandle, "skylight_window_id")
	purego.RegisterLibFunc(&fnWindowSetTitle, libHandle, "skylight_window_set_title")
	purego.RegisterLibFunc(&fnWindowSetVisible, libHandle, "skylight_window_set_visible")
	purego.RegisterLibFunc(&fnWindowSetSize, libHandle, "skylight_window_set_size")
	purego.RegisterLibFunc(&fnWindowSetPosition, libHandle, "skylight_window_set_position")
	purego.RegisterLibFunc(&fnWindowMinimize, libHandle, "skylight_window_minimize")
	purego.RegisterLibFunc(&fnWindowMaximize, libHandle, "skylight_window_maximize")
	purego.RegisterLibFunc(&fnWindowRestore, libHandle, "skylight_window_restore")
	purego.RegisterLibFunc(&fnWindowFocus, libHandle, "skylight_window_focus")
	purego.RegisterLibFunc(&fnWindowClose, libHandle, "skylight_window_close")
}

func registerWebviewFunctions() {
	purego.RegisterLibFunc(&fnWebviewNew, libHandle, "skylight_webview_new")
	purego.RegisterLibFunc(&fnWebviewFree, libHandle, "skylight_webview_free")
	purego.RegisterLibFunc(&fnWebviewNavigate, libHandle, "skylight_webview_navigate")
	purego.RegisterLibFunc(&fnWebviewSetHTML, libHandle, "skylight_webview_set_html")
	purego.RegisterLibFunc(&fnWebviewEval, libHandle, "skylight_webview_eval")
	purego.RegisterLibFunc(&fnWebviewSetIPCCallback, libHandle, "skylight_webview_set_ipc_callback")
	purego.RegisterLibFunc(&fnWebviewRegisterScheme, libHandle, "skylight_webview_register_scheme")

	// Devtools support varies by webview backend.
	registerOptionalFunc(&fnWebviewOpenDevtools, "skylight_webview_open_devtools")
}

func registerSystemFunctions() {
	purego.RegisterLibFunc(&fnLastErrorMessage, libHandle, "skylight_last_error_message")
	purego.RegisterLibFunc(&fnStringFree, libHandle, "skylight_string_free")
	purego.RegisterLibFunc(&fnRuntimeVersion, libHandle, "skylight_runtime_version")
}

// registerOptionalFunc attempts to register a function, ignoring errors if not found.
func registerOptionalFunc[T any](fn *T, name string) {
	defer func() {
		recover()
	}()
	purego.RegisterLibFunc(fn, libHandle, name)
}

// ============================================================================
// String Helpers
// ============================================================================

// goString copies a NUL-terminated C string into a Go string.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var length int
	for {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(length)))
		if b == 0 {
			break
		}
		length++
		if length > 1<<24 { // Safety limit: 16MB
			break
		}
	}
	if length == 0 {
		return ""
	}
	buf := make([]byte, length)
	for i := 0; i < length; i++ {
		buf[i] = *(*byte)(unsafe.Pointer(ptr + uintptr(i)))
	}
	return string(buf)
}

// goBytes copies length bytes from native memory into a Go slice.
func goBytes(ptr uintptr, length uint64) []byte {
	if ptr == 0 || length == 0 {
		return nil
	}
	buf := make([]byte, length)
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
	return buf
}

// cString returns a NUL-terminated byte slice for s. The caller must keep the
// returned slice alive (runtime.KeepAlive) across the native call that reads it.
func cString(s string) []byte {
	return append([]byte(s), 0)
}

// cStringPtr returns a pointer to the first byte of a NUL-terminated buffer.
func cStringPtr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// takeString copies a native-owned string and frees it through the runtime's
// deallocator.
func takeString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	s := goString(ptr)
	fnStringFree(ptr)
	return s
}

// LastError returns the native runtime's last-error message, or "" if none.
func LastError() string {
	if !initialized {
		return ""
	}
	return takeString(fnLastErrorMessage())
}

// RuntimeVersion returns the native runtime version string.
func RuntimeVersion() string {
	if err := initLibrary(); err != nil {
		return ""
	}
	return takeString(fnRuntimeVersion())
}

// Package skylight bridges Go application code to the Skylight native
// window/webview runtime. The native side owns the OS event loop, windows,
// and webview instances; this package owns the boundary-crossing contract:
// the event-pump protocol, resource and callback lifetimes, custom-scheme
// interception, and the IPC layer between webview script contexts and Go
// handlers.
//
// A minimal application:
//
//	app := skylight.New(skylight.DefaultAppConfig())
//	win := app.NewWindow(skylight.DefaultWindowOptions())
//	win.OnCloseRequested = func() bool { app.Quit(); return true }
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
//
// Run must be called from the main goroutine: the native loop and all window
// mutation are affine to one OS thread. The only cross-thread-safe surface is
// the event-loop proxy, used internally by Quit.
package skylight

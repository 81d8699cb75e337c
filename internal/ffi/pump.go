package ffi

import (
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
)

// ============================================================================
// Event Pump
// ============================================================================

// ControlFlow is returned by the step callback to tell the native loop how to
// proceed: keep spinning, block until the next native event, or terminate.
type ControlFlow int32

const (
	ControlFlowPoll ControlFlow = 0
	ControlFlowWait ControlFlow = 1
	ControlFlowExit ControlFlow = 2
)

// StepFunc receives one self-contained event record, encoded as JSON. The
// slice is a copy owned by Go; the native record it was read from is only
// valid during the callback invocation that produced it.
type StepFunc func(raw []byte) ControlFlow

var (
	stepOnce     sync.Once
	stepCallback uintptr
	stepToken    atomic.Uintptr
	stepFuncs    sync.Map // uintptr -> StepFunc
)

// stepTrampoline is the single process-wide callback handed to the native
// loop. userData selects the Go StepFunc for the pump call in flight. A panic
// must never cross the foreign-function boundary: anything the StepFunc let
// escape is swallowed here and converted to an exit request.
func stepTrampoline(eventPtr uintptr, userData uintptr) (flow uintptr) {
	defer func() {
		if recover() != nil {
			flow = uintptr(ControlFlowExit)
		}
	}()

	v, ok := stepFuncs.Load(userData)
	if !ok || eventPtr == 0 {
		return uintptr(ControlFlowWait)
	}
	fn := v.(StepFunc)

	// The record is borrowed: copy it out before returning control.
	raw := []byte(goString(eventPtr))
	return uintptr(fn(raw))
}

func initStepCallback() {
	stepOnce.Do(func() {
		stepCallback = purego.NewCallback(stepTrampoline)
	})
}

// EventLoop wraps the native event loop handle. All methods except those on
// the proxy are affine to the thread that created the loop.
type EventLoop struct {
	res *Resource
}

// NewEventLoop creates the native event loop. The native layer requires this
// to happen on the main OS thread; callers hold runtime.LockOSThread.
func NewEventLoop() (*EventLoop, error) {
	if err := initLibrary(); err != nil {
		return nil, err
	}
	h := fnEventLoopNew()
	if h == NullHandle {
		return nil, creationErr("event loop")
	}
	return &EventLoop{res: newResource(h, fnEventLoopFree)}, nil
}

// Handle exposes the raw native handle.
func (l *EventLoop) Handle() Handle { return l.res.Handle() }

// Close releases the native event loop. Idempotent.
func (l *EventLoop) Close() error { return l.res.Close() }

// Step processes pending native events, invoking fn once per event record.
// fn's ControlFlow result is passed through to the native loop. Step returns
// after the native side has drained its pending events (Poll) or delivered
// the event it was waiting on (Wait); it never blocks unboundedly beyond
// waiting for the next native event.
func (l *EventLoop) Step(fn StepFunc) error {
	h := l.res.Handle()
	if h == NullHandle {
		return &CallError{Op: "event loop step", Code: -1, Native: "event loop released"}
	}
	initStepCallback()

	token := stepToken.Add(1)
	stepFuncs.Store(token, fn)
	defer stepFuncs.Delete(token)

	return callErr("event loop step", fnEventLoopStep(h, stepCallback, token))
}

// ============================================================================
// Event Loop Proxy
// ============================================================================

// EventLoopProxy is the cross-thread-safe half of the event loop: the only
// handle documented safe to call from non-loop threads. It can request exit
// and post wake events into the loop.
type EventLoopProxy struct {
	res *Resource
}

// NewProxy creates a proxy for the loop.
func (l *EventLoop) NewProxy() (*EventLoopProxy, error) {
	h := l.res.Handle()
	if h == NullHandle {
		return nil, creationErr("event loop proxy")
	}
	p := fnProxyNew(h)
	if p == NullHandle {
		return nil, creationErr("event loop proxy")
	}
	return &EventLoopProxy{res: newResource(p, fnProxyFree)}, nil
}

// RequestExit asks the loop to terminate. Safe from any goroutine.
func (p *EventLoopProxy) RequestExit() error {
	h := p.res.Handle()
	if h == NullHandle {
		return nil
	}
	return callErr("request exit", fnProxyRequestExit(h))
}

// Wake posts a user event into the loop, unblocking a waiting Step. Safe
// from any goroutine.
func (p *EventLoopProxy) Wake() error {
	h := p.res.Handle()
	if h == NullHandle {
		return nil
	}
	return callErr("wake", fnProxyWake(h))
}

// Close releases the proxy. Idempotent.
func (p *EventLoopProxy) Close() error { return p.res.Close() }

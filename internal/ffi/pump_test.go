package ffi

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestStepTrampolineDeliversRecord(t *testing.T) {
	token := stepToken.Add(1)
	var got string
	stepFuncs.Store(token, StepFunc(func(raw []byte) ControlFlow {
		got = string(raw)
		return ControlFlowPoll
	}))
	defer stepFuncs.Delete(token)

	record := cString(`{"type":"resized","window_id":"w1"}`)
	flow := stepTrampoline(cStringPtr(record), token)
	runtime.KeepAlive(record)

	if flow != uintptr(ControlFlowPoll) {
		t.Fatalf("flow = %d, want poll", flow)
	}
	if got != `{"type":"resized","window_id":"w1"}` {
		t.Fatalf("record = %q", got)
	}
}

func TestStepTrampolineRecordIsACopy(t *testing.T) {
	token := stepToken.Add(1)
	var captured []byte
	stepFuncs.Store(token, StepFunc(func(raw []byte) ControlFlow {
		captured = raw
		return ControlFlowWait
	}))
	defer stepFuncs.Delete(token)

	record := cString(`{"type":"moved"}`)
	stepTrampoline(cStringPtr(record), token)

	// Scribbling over the source buffer must not affect the delivered copy.
	for i := range record {
		record[i] = 'x'
	}
	runtime.KeepAlive(record)

	if string(captured) != `{"type":"moved"}` {
		t.Fatalf("captured record aliases the native buffer: %q", captured)
	}
}

func TestStepTrampolinePanicRequestsExit(t *testing.T) {
	token := stepToken.Add(1)
	stepFuncs.Store(token, StepFunc(func([]byte) ControlFlow {
		panic("step handler exploded")
	}))
	defer stepFuncs.Delete(token)

	record := cString(`{"type":"close-requested"}`)
	flow := stepTrampoline(cStringPtr(record), token)
	runtime.KeepAlive(record)

	if flow != uintptr(ControlFlowExit) {
		t.Fatalf("flow after panic = %d, want exit", flow)
	}
}

func TestStepTrampolineUnknownToken(t *testing.T) {
	record := cString(`{"type":"focused"}`)
	flow := stepTrampoline(cStringPtr(record), ^uintptr(0))
	runtime.KeepAlive(record)

	if flow != uintptr(ControlFlowWait) {
		t.Fatalf("flow = %d, want wait", flow)
	}
}

func TestStepTrampolineNullEvent(t *testing.T) {
	token := stepToken.Add(1)
	called := false
	stepFuncs.Store(token, StepFunc(func([]byte) ControlFlow {
		called = true
		return ControlFlowPoll
	}))
	defer stepFuncs.Delete(token)

	flow := stepTrampoline(0, token)
	if called {
		t.Fatal("step func invoked for a null record")
	}
	if flow != uintptr(ControlFlowWait) {
		t.Fatalf("flow = %d, want wait", flow)
	}
}

func TestGoStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"ascii", "hello"},
		{"utf8", "héllo wörld"},
		{"json", `{"key":"value"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := cString(tt.in)
			if got := goString(cStringPtr(buf)); got != tt.in {
				t.Errorf("goString(cString(%q)) = %q", tt.in, got)
			}
			runtime.KeepAlive(buf)
		})
	}
	if goString(0) != "" {
		t.Error("goString(0) should be empty")
	}
}

func TestGoBytes(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	got := goBytes(uintptr(unsafe.Pointer(&src[0])), uint64(len(src)))
	runtime.KeepAlive(src)
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("goBytes = %v", got)
	}
	if goBytes(0, 10) != nil {
		t.Error("goBytes(0, n) should be nil")
	}
	if goBytes(uintptr(unsafe.Pointer(&src[0])), 0) != nil {
		t.Error("goBytes(p, 0) should be nil")
	}
}

package skylight

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Control Flow
// ============================================================================

// ControlFlow tells the native loop how to proceed after an event: keep
// spinning, block until the next native event, or terminate.
type ControlFlow int32

const (
	Poll ControlFlow = 0
	Wait ControlFlow = 1
	Exit ControlFlow = 2
)

// ============================================================================
// Event Records
// ============================================================================

// Size is a window size in logical pixels.
type Size struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Position is a window position in screen coordinates.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Event is one decoded event record from the native loop. The set of
// variants is closed at the decoding layer; kinds this version does not know
// decode to UnknownEvent instead of failing.
type Event interface {
	// Kind returns the wire-level type string of the event.
	Kind() string
}

// CloseRequestedEvent reports the user asked to close a window.
type CloseRequestedEvent struct {
	WindowID string
}

// DestroyedEvent reports a native window has been torn down.
type DestroyedEvent struct {
	WindowID string
}

// ResizedEvent reports a window's new logical size.
type ResizedEvent struct {
	WindowID string
	Size     Size
}

// MovedEvent reports a window's new screen position.
type MovedEvent struct {
	WindowID string
	Position Position
}

// FocusedEvent reports a window gained or lost focus.
type FocusedEvent struct {
	WindowID  string
	IsFocused bool
}

// GlobalShortcutEvent reports a registered global shortcut fired. Handled at
// the application level regardless of window id.
type GlobalShortcutEvent struct {
	ID string
}

// UserExitEvent reports an exit request posted through the loop proxy.
type UserExitEvent struct{}

// LoopDestroyedEvent reports the native event loop has terminated.
type LoopDestroyedEvent struct{}

// InformationalEvent covers loop-bookkeeping kinds (new-events,
// main-events-cleared, redraw and cursor traffic, modifier changes) that are
// accepted and ignored.
type InformationalEvent struct {
	Type     string
	WindowID string
}

// UnknownEvent preserves kinds this version does not recognize.
type UnknownEvent struct {
	Type     string
	WindowID string
	Raw      json.RawMessage
}

func (e CloseRequestedEvent) Kind() string { return "window-close-requested" }
func (e DestroyedEvent) Kind() string      { return "window-destroyed" }
func (e ResizedEvent) Kind() string        { return "window-resized" }
func (e MovedEvent) Kind() string          { return "window-moved" }
func (e FocusedEvent) Kind() string        { return "window-focused" }
func (e GlobalShortcutEvent) Kind() string { return "global-shortcut" }
func (e UserExitEvent) Kind() string       { return "user-exit" }
func (e LoopDestroyedEvent) Kind() string  { return "loop-destroyed" }
func (e InformationalEvent) Kind() string  { return e.Type }
func (e UnknownEvent) Kind() string        { return e.Type }

// informationalKinds are reported by the native loop but carry nothing this
// layer acts on.
var informationalKinds = map[string]bool{
	"new-events":            true,
	"main-events-cleared":   true,
	"redraw-requested":      true,
	"redraw-events-cleared": true,
	"cursor-moved":          true,
	"cursor-entered":        true,
	"cursor-left":           true,
	"modifiers-changed":     true,
}

// eventEnvelope is the wire shape of one event record.
type eventEnvelope struct {
	Type      string    `json:"type"`
	WindowID  string    `json:"window_id"`
	Size      *Size     `json:"size"`
	Position  *Position `json:"position"`
	IsFocused *bool     `json:"isFocused"`
	ID        string    `json:"id"`
}

// DecodeEvent parses one native event record into its tagged variant.
func DecodeEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event record: %w", err)
	}

	switch env.Type {
	case "window-close-requested":
		return CloseRequestedEvent{WindowID: env.WindowID}, nil
	case "window-destroyed":
		return DestroyedEvent{WindowID: env.WindowID}, nil
	case "window-resized":
		ev := ResizedEvent{WindowID: env.WindowID}
		if env.Size != nil {
			ev.Size = *env.Size
		}
		return ev, nil
	case "window-moved":
		ev := MovedEvent{WindowID: env.WindowID}
		if env.Position != nil {
			ev.Position = *env.Position
		}
		return ev, nil
	case "window-focused":
		ev := FocusedEvent{WindowID: env.WindowID}
		if env.IsFocused != nil {
			ev.IsFocused = *env.IsFocused
		}
		return ev, nil
	case "global-shortcut":
		return GlobalShortcutEvent{ID: env.ID}, nil
	case "user-exit":
		return UserExitEvent{}, nil
	case "loop-destroyed":
		return LoopDestroyedEvent{}, nil
	default:
		if informationalKinds[env.Type] {
			return InformationalEvent{Type: env.Type, WindowID: env.WindowID}, nil
		}
		return UnknownEvent{Type: env.Type, WindowID: env.WindowID, Raw: append([]byte(nil), raw...)}, nil
	}
}

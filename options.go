package skylight

// WindowOptions carries the creation parameters for one window and its
// webview. They are fixed at creation time; Resizable, Transparent, and
// Devtools are documented immutable thereafter at the native layer.
type WindowOptions struct {
	Title  string `json:"title" toml:"title"`
	Width  uint32 `json:"width" toml:"width"`
	Height uint32 `json:"height" toml:"height"`

	MinWidth  uint32 `json:"min_width,omitempty" toml:"min_width"`
	MinHeight uint32 `json:"min_height,omitempty" toml:"min_height"`
	MaxWidth  uint32 `json:"max_width,omitempty" toml:"max_width"`
	MaxHeight uint32 `json:"max_height,omitempty" toml:"max_height"`

	// X and Y set the initial position when non-nil; otherwise the native
	// layer chooses.
	X *int32 `json:"x,omitempty" toml:"x"`
	Y *int32 `json:"y,omitempty" toml:"y"`

	Resizable   bool `json:"resizable" toml:"resizable"`
	Fullscreen  bool `json:"fullscreen" toml:"fullscreen"`
	Maximized   bool `json:"maximized" toml:"maximized"`
	Minimized   bool `json:"minimized" toml:"minimized"`
	Visible     bool `json:"visible" toml:"visible"`
	Transparent bool `json:"transparent" toml:"transparent"`
	Decorations bool `json:"decorations" toml:"decorations"`
	AlwaysOnTop bool `json:"always_on_top" toml:"always_on_top"`
	Devtools    bool `json:"devtools" toml:"devtools"`

	// URL or HTML seeds the webview. URL wins when both are set.
	URL  string `json:"url,omitempty" toml:"url"`
	HTML string `json:"html,omitempty" toml:"html"`

	// ParentID names an existing window for modal/child relationships.
	ParentID string `json:"parent_id,omitempty" toml:"parent_id"`
}

// DefaultWindowOptions returns sensible defaults for a new window.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		Title:       "Skylight App",
		Width:       1024,
		Height:      768,
		Resizable:   true,
		Visible:     true,
		Decorations: true,
	}
}

// webviewOptions is the subset of WindowOptions the native webview
// constructor consumes.
type webviewOptions struct {
	URL         string `json:"url,omitempty"`
	HTML        string `json:"html,omitempty"`
	Devtools    bool   `json:"devtools"`
	Transparent bool   `json:"transparent"`
}

func (o WindowOptions) webview() webviewOptions {
	return webviewOptions{
		URL:         o.URL,
		HTML:        o.HTML,
		Devtools:    o.Devtools,
		Transparent: o.Transparent,
	}
}

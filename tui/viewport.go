// viewport.go wraps the bubbles viewport with the scrolling helpers the
// views share. Content can be set as one string or as pre-split lines;
// Follow keeps the view pinned to the bottom as content grows, which
// the chat transcript relies on.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// Viewport is a scrollable text area.
type Viewport struct {
	model  viewport.Model
	follow bool
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{model: viewport.New(clampMin(width, 1), clampMin(height, 1))}
}

// Follow makes SetContent scroll to the end when the viewport was
// already at the bottom.
func (v *Viewport) Follow(on bool) {
	v.follow = on
}

// SetContent replaces the viewport content.
func (v *Viewport) SetContent(content string) {
	atBottom := v.model.AtBottom()
	v.model.SetContent(content)
	if v.follow && atBottom {
		v.model.GotoBottom()
	}
}

// SetContentLines replaces the viewport content with pre-split lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.SetContent(strings.Join(lines, "\n"))
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.model.Width = clampMin(width, 1)
	v.model.Height = clampMin(height, 1)
}

func (v *Viewport) ScrollUp(n int)   { v.model.LineUp(n) }
func (v *Viewport) ScrollDown(n int) { v.model.LineDown(n) }
func (v *Viewport) PageUp()          { v.model.ViewUp() }
func (v *Viewport) PageDown()        { v.model.ViewDown() }
func (v *Viewport) Home()            { v.model.GotoTop() }
func (v *Viewport) End()             { v.model.GotoBottom() }

// ScrollTo makes line the first visible line.
func (v *Viewport) ScrollTo(line int) {
	v.model.SetYOffset(line)
}

// HandleScrollKey applies the shared scroll bindings and reports whether
// key was one of them.
func (v *Viewport) HandleScrollKey(key string) bool {
	switch key {
	case "up", "k":
		v.ScrollUp(1)
	case "down", "j":
		v.ScrollDown(1)
	case "pgup":
		v.PageUp()
	case "pgdown":
		v.PageDown()
	case "home", "g":
		v.Home()
	case "end", "G":
		v.End()
	default:
		return false
	}
	return true
}

// Render returns the visible window of content.
func (v *Viewport) Render() string {
	return v.model.View()
}

func clampMin(n, lo int) int {
	if n < lo {
		return lo
	}
	return n
}

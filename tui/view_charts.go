// view_charts.go lists the visualizations generated for the connected
// database, pinned ones first.
//
// Charts are not drawn; the full-screen view ("f") prints the chart's
// series and data points as text. Pinning ("p") is allowed once per
// chart and is disabled while its request is in flight.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/session"
	"github.com/onyxprism/prism/viz"
)

type ChartsView struct {
	client   *api.Client
	store    *session.Store
	tracker  *viz.PinTracker
	viewport *Viewport

	pinned      []viz.Chart
	recommended []viz.Chart
	cursor      int
	loading     bool
	loaded      bool
	fullscreen  bool
	err         error
	notice      string

	width  int
	height int
}

func NewChartsView(client *api.Client) *ChartsView {
	return &ChartsView{
		client:   client,
		store:    client.Session(),
		tracker:  viz.NewPinTracker(),
		viewport: NewViewport(80, 20),
	}
}

func (v *ChartsView) Name() string         { return "Charts" }
func (v *ChartsView) WantsTextInput() bool { return false }

func (v *ChartsView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-3)
}

func (v *ChartsView) ShortHelp() []KeyBinding {
	if v.fullscreen {
		return []KeyBinding{
			{Key: "↑/↓", Desc: "scroll"},
			{Key: "Esc", Desc: "back"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "select"},
		{Key: "f", Desc: "full screen"},
		{Key: "p", Desc: "pin"},
		{Key: "r", Desc: "refresh"},
	}
}

func (v *ChartsView) Init() tea.Cmd {
	if v.loaded || v.loading {
		return nil
	}
	return v.fetch()
}

func (v *ChartsView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.fullscreen {
			return v.handleFullscreenKey(msg)
		}
		return v.handleKey(msg)

	case ChartsMsg:
		v.loading = false
		v.loaded = true
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.pinned, v.recommended = viz.Partition(viz.MergePinned(msg.Response.Charts, v.tracker))
		if v.cursor >= v.count() {
			v.cursor = 0
		}
		return v, nil

	case PinResultMsg:
		v.tracker.Done(msg.ChartID, msg.Err == nil)
		if msg.Err != nil {
			v.err = msg.Err
			v.notice = ""
			return v, nil
		}
		v.err = nil
		v.notice = "Visualization pinned successfully!"
		return v, v.fetch()

	case DatabaseChangedMsg:
		v.tracker = viz.NewPinTracker()
		v.pinned, v.recommended = nil, nil
		v.cursor = 0
		v.fullscreen = false
		v.notice = ""
		return v, v.fetch()
	}
	return v, nil
}

func (v *ChartsView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < v.count()-1 {
			v.cursor++
		}
	case "r":
		v.notice = ""
		return v, v.fetch()
	case "p":
		return v, v.pin()
	case "f", "enter":
		c, ok := v.selected()
		if !ok {
			return v, nil
		}
		title, opt := viz.FullScreen(c)
		v.viewport.SetContentLines([]string{StyleTitle.Render(title), viz.Summary(opt)})
		v.viewport.Home()
		v.fullscreen = true
	}
	return v, nil
}

func (v *ChartsView) handleFullscreenKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "f":
		v.fullscreen = false
	default:
		v.viewport.HandleScrollKey(msg.String())
	}
	return v, nil
}

func (v *ChartsView) count() int { return len(v.pinned) + len(v.recommended) }

// selected returns the chart under the cursor: pinned charts come first.
func (v *ChartsView) selected() (viz.Chart, bool) {
	switch {
	case v.cursor < len(v.pinned):
		return v.pinned[v.cursor], true
	case v.cursor < v.count():
		return v.recommended[v.cursor-len(v.pinned)], true
	}
	return viz.Chart{}, false
}

func (v *ChartsView) fetch() tea.Cmd {
	v.loading = true
	client := v.client
	dbID := v.store.ConnectedDatabaseID()
	return func() tea.Msg {
		resp, err := client.Visualizations(context.Background(), dbID)
		return ChartsMsg{Response: resp, Err: err}
	}
}

func (v *ChartsView) pin() tea.Cmd {
	c, ok := v.selected()
	if !ok || c.Pinned {
		return nil
	}
	if !v.tracker.Begin(c.ID) {
		return nil
	}
	v.notice = ""
	client := v.client
	dbID := v.store.ConnectedDatabaseID()
	id := c.ID
	return func() tea.Msg {
		return PinResultMsg{ChartID: id, Err: client.PinVisualization(context.Background(), dbID, id)}
	}
}

func (v *ChartsView) View() string {
	if v.fullscreen {
		return v.viewport.Render()
	}

	lines := []string{StyleTitle.Render("Visualizations")}
	switch {
	case v.err != nil:
		lines = append(lines, StyleError.Render("✗ "+apperr.UserMessage(v.err)))
	case v.notice != "":
		lines = append(lines, StyleSuccess.Render("✓ "+v.notice))
	case v.loading:
		lines = append(lines, StyleDimmed.Render("⏳ loading charts..."))
	}

	if v.count() == 0 {
		if v.loaded && v.err == nil {
			lines = append(lines, StyleDimmed.Render("No visualizations available for this database yet."))
		}
		return strings.Join(lines, "\n")
	}

	idx := 0
	section := func(title string, charts []viz.Chart) {
		lines = append(lines, "", blockHeader(fmt.Sprintf("%s (%d)", title, len(charts)), 48))
		if len(charts) == 0 {
			lines = append(lines, StyleDimmed.Render("  none"))
		}
		for _, c := range charts {
			lines = append(lines, v.renderRow(c, idx == v.cursor))
			idx++
		}
	}
	section("Pinned", v.pinned)
	section("Recommended", v.recommended)
	return strings.Join(lines, "\n")
}

func (v *ChartsView) renderRow(c viz.Chart, selected bool) string {
	state := ""
	switch {
	case c.Pinned:
		state = StyleSuccess.Render("📌")
	case v.tracker.InFlight(c.ID):
		state = StyleWarning.Render("pinning...")
	}
	title := lipgloss.NewStyle().Width(40).Render(c.Title())
	line := fmt.Sprintf("%s %s %s", title, StyleDimmed.Render(strings.Join(viz.SeriesKinds(c.Option), ", ")), state)
	if selected {
		return StyleInputFocused.Render("▸ ") + line
	}
	return "  " + line
}

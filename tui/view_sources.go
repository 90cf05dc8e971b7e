// view_sources.go lists the databases registered with the backend and
// selects the one every other tab works against.
//
// Only one database is connected at a time. When none is connected and
// the list is non-empty, the first one is selected automatically.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/session"
)

type SourcesView struct {
	client    *api.Client
	store     *session.Store
	databases []session.Database
	cursor    int
	loading   bool
	loaded    bool
	err       error
	width     int
	height    int
}

func NewSourcesView(client *api.Client) *SourcesView {
	return &SourcesView{
		client: client,
		store:  client.Session(),
	}
}

func (v *SourcesView) Name() string         { return "Sources" }
func (v *SourcesView) WantsTextInput() bool { return false }

func (v *SourcesView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *SourcesView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "↑/↓", Desc: "select"},
		{Key: "Enter", Desc: "connect/disconnect"},
		{Key: "r", Desc: "refresh"},
	}
}

func (v *SourcesView) Init() tea.Cmd {
	if v.loaded {
		return nil
	}
	return v.fetch()
}

func (v *SourcesView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case DatabasesMsg:
		v.loading = false
		v.loaded = true
		v.err = msg.Err
		if msg.Err != nil {
			return v, nil
		}
		v.databases = msg.Databases
		if v.cursor >= len(v.databases) {
			v.cursor = 0
		}
		if v.store.ConnectedDatabaseID() == "" && len(v.databases) > 0 {
			return v, v.connect(v.databases[0])
		}
		return v, nil

	case DatabaseChangedMsg:
		// onboarding may have registered a database we have not listed yet
		if msg.Database != nil && !v.listed(msg.Database.DBID) {
			return v, v.fetch()
		}
	}
	return v, nil
}

func (v *SourcesView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.databases)-1 {
			v.cursor++
		}
	case "r":
		return v, v.fetch()
	case "enter":
		if v.cursor >= len(v.databases) {
			return v, nil
		}
		selected := v.databases[v.cursor]
		if selected.DBID == v.store.ConnectedDatabaseID() {
			return v, v.disconnect()
		}
		return v, v.connect(selected)
	}
	return v, nil
}

func (v *SourcesView) listed(dbID string) bool {
	for _, d := range v.databases {
		if d.DBID == dbID {
			return true
		}
	}
	return false
}

func (v *SourcesView) fetch() tea.Cmd {
	v.loading = true
	client := v.client
	return func() tea.Msg {
		dbs, err := client.ConnectedDatabases(context.Background())
		return DatabasesMsg{Databases: dbs, Err: err}
	}
}

func (v *SourcesView) connect(d session.Database) tea.Cmd {
	if err := v.store.SetConnectedDatabase(&d); err != nil {
		v.err = apperr.Wrap(err, apperr.KindInternal, "save session")
		return nil
	}
	applog.Event("sources", "connected %s (%s)", d.Database, d.DBID)
	return func() tea.Msg { return DatabaseChangedMsg{Database: &d} }
}

func (v *SourcesView) disconnect() tea.Cmd {
	if err := v.store.SetConnectedDatabase(nil); err != nil {
		v.err = apperr.Wrap(err, apperr.KindInternal, "save session")
		return nil
	}
	applog.Event("sources", "disconnected")
	return func() tea.Msg { return DatabaseChangedMsg{} }
}

func (v *SourcesView) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Data sources"))
	b.WriteString("\n")

	switch {
	case v.err != nil:
		b.WriteString(StyleError.Render("✗ " + apperr.UserMessage(v.err)))
		b.WriteString("\n\n")
	case v.loading && !v.loaded:
		b.WriteString(StyleDimmed.Render("⏳ loading databases..."))
		return b.String()
	}

	if len(v.databases) == 0 {
		b.WriteString(StyleDimmed.Render("No databases yet. Open the Connect tab to add one."))
		return b.String()
	}

	active := v.store.ConnectedDatabaseID()
	for i, d := range v.databases {
		mark := "○"
		if d.DBID == active {
			mark = StyleSuccess.Render("●")
		}
		line := fmt.Sprintf(" %s %-24s %-12s %s", mark, d.Database, d.DBType, StyleDimmed.Render(d.DBID))
		if i == v.cursor {
			line = StyleListItemActive.Render("►" + line)
		} else {
			line = " " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

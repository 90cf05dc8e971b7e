// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Flow:
//  1. Without a stored token, start on the sign-in screen
//  2. After sign-in, show the dashboard tabs
//  3. A 401 from any request, or :logout, returns to sign-in
//
// Navigation:
//   - Tab / Shift+Tab or F1-F5 switch tabs
//   - Command mode (`:`) for :logout, :disconnect, :refresh, :quit
//   - Jump mode (`/`) switches to a tab by name
//   - Help overlay (`?`) toggled on/off
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/session"
)

const appVersion = "0.1.0"

// Tab indices of the dashboard.
const (
	TabSources = iota
	TabConnect
	TabKPI
	TabCharts
	TabChat
)

// AppPhase tracks whether the user is signed in.
type AppPhase int

const (
	PhaseSignIn AppPhase = iota
	PhaseMain
)

// InputMode determines what keystrokes do in main phase.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
	ModeJump
)

const expiredNotice = "You have been logged out. Please sign in again."

// App is the root Bubble Tea model.
type App struct {
	client   *api.Client
	store    *session.Store
	profiles *config.ConnectionStore

	phase  AppPhase
	signIn *SignInView

	views     []View
	activeTab int
	user      *api.User

	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
}

// NewApp creates the application. It starts on the dashboard when the
// session already holds a token.
func NewApp(client *api.Client, profiles *config.ConnectionStore) *App {
	return &App{
		client:   client,
		store:    client.Session(),
		profiles: profiles,
		phase:    PhaseSignIn,
		signIn:   NewSignInView(client),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	if a.store.SignedIn() {
		return a.enterMain()
	}
	return a.signIn.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case SignedInMsg:
		updated, _ := a.signIn.Update(msg)
		a.signIn = updated.(*SignInView)
		if msg.Err != nil {
			return a, nil
		}
		a.statusMsg = "Signed in successfully!"
		return a, a.enterMain()

	case SessionExpiredMsg:
		a.leaveMain(expiredNotice)
		return a, nil

	case UserMsg:
		if msg.Err == nil {
			a.user = msg.User
		}
		return a, nil
	}

	if a.phase == PhaseSignIn {
		return a.updateSignIn(msg)
	}
	return a.updateMain(msg)
}

func (a *App) updateSignIn(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return a, tea.Quit
	}
	updated, cmd := a.signIn.Update(msg)
	a.signIn = updated.(*SignInView)
	return a, cmd
}

func (a *App) updateMain(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		return a.handleKey(key)
	}
	// Results may arrive after the user switched tabs, so every view
	// sees every message and ignores what is not its own.
	return a, a.broadcast(msg)
}

func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i, v := range a.views {
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// enterMain builds the dashboard views and loads the first tab.
func (a *App) enterMain() tea.Cmd {
	a.phase = PhaseMain
	a.mode = ModeNormal
	a.showHelp = false
	a.views = []View{
		NewSourcesView(a.client),
		NewOnboardView(a.client, a.profiles),
		NewKPIView(a.client),
		NewChartsView(a.client),
		NewChatView(a.client),
	}
	a.activeTab = TabSources
	a.resize()
	applog.Event("tui", "dashboard opened")

	client := a.client
	fetchUser := func() tea.Msg {
		u, err := client.CurrentUser(context.Background())
		return UserMsg{User: u, Err: err}
	}
	return tea.Batch(fetchUser, a.views[a.activeTab].Init())
}

// leaveMain drops the dashboard and shows the sign-in screen.
func (a *App) leaveMain(notice string) {
	a.phase = PhaseSignIn
	a.views = nil
	a.activeTab = 0
	a.user = nil
	a.mode = ModeNormal
	a.cmdInput = ""
	a.statusMsg = ""
	a.signIn.Expired(notice)
	a.resize()
}

func (a *App) resize() {
	if a.width == 0 {
		return
	}
	// header(1) + border(2) + status bar(1) = 4 lines of chrome
	contentW := a.width - 2
	contentH := a.height - 4
	if a.phase == PhaseSignIn {
		a.signIn.SetSize(contentW, contentH)
		return
	}
	for _, v := range a.views {
		v.SetSize(contentW, contentH)
	}
}

// handleKey processes keyboard input in main phase.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeCommand:
		return a.handleCommandMode(msg)
	case ModeJump:
		return a.handleJumpMode(msg)
	default:
		return a.handleNormalMode(msg)
	}
}

func (a *App) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1", "f2", "f3", "f4", "f5":
		return a.switchTab(int(msg.String()[1] - '1'))
	}

	// A view with a focused text field gets every other key.
	if a.views[a.activeTab].WantsTextInput() {
		return a.forward(msg)
	}

	switch msg.String() {
	case "/":
		a.mode = ModeJump
		a.cmdInput = ""
		return a, nil
	case ":":
		a.mode = ModeCommand
		a.cmdInput = ""
		return a, nil
	case "?":
		a.showHelp = !a.showHelp
		return a, nil
	case "tab":
		return a.switchTab((a.activeTab + 1) % len(a.views))
	case "shift+tab":
		return a.switchTab((a.activeTab + len(a.views) - 1) % len(a.views))
	case "esc":
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}
	}
	return a.forward(msg)
}

func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		cmd := a.executeCommand(a.cmdInput)
		if a.phase == PhaseMain {
			a.mode = ModeNormal
		}
		a.cmdInput = ""
		return a, cmd
	case tea.KeyEsc:
		a.mode = ModeNormal
		a.cmdInput = ""
	case tea.KeyBackspace:
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
	case tea.KeyRunes:
		a.cmdInput += string(msg.Runes)
	}
	return a, nil
}

func (a *App) handleJumpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := a.cmdInput
		a.mode = ModeNormal
		a.cmdInput = ""
		if idx, ok := a.findView(name); ok {
			return a.switchTab(idx)
		}
		a.statusMsg = "view not found: " + name
	case tea.KeyEsc:
		a.mode = ModeNormal
		a.cmdInput = ""
	case tea.KeyBackspace:
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
	case tea.KeyRunes:
		a.cmdInput += string(msg.Runes)
	}
	return a, nil
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(a.views) {
		return a, nil
	}
	a.activeTab = idx
	a.showHelp = false
	return a, a.views[idx].Init()
}

func (a *App) findView(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	for i, v := range a.views {
		if strings.Contains(strings.ToLower(v.Name()), name) {
			return i, true
		}
	}
	return 0, false
}

func (a *App) executeCommand(input string) tea.Cmd {
	switch strings.TrimSpace(input) {
	case "q", "quit":
		return tea.Quit
	case "logout":
		if err := a.client.Logout(); err != nil {
			a.statusMsg = "logout: " + err.Error()
			return nil
		}
		a.leaveMain("You have been successfully logged out.")
		return nil
	case "disconnect":
		if err := a.store.SetConnectedDatabase(nil); err != nil {
			a.statusMsg = "disconnect: " + err.Error()
			return nil
		}
		return func() tea.Msg { return DatabaseChangedMsg{} }
	case "refresh":
		return func() tea.Msg { return DatabaseChangedMsg{Database: a.store.ConnectedDatabase()} }
	default:
		a.statusMsg = "unknown command: " + input
		return nil
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}
	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight)

	var content string
	switch {
	case a.phase == PhaseSignIn:
		content = a.signIn.View()
	case a.showHelp:
		content = a.renderHelp()
	default:
		content = a.views[a.activeTab].View()
	}

	return header + "\n" + frame.Render(content) + "\n" + a.renderStatusBar()
}

// renderHeader draws the logo, the tab bar and the session details.
func (a *App) renderHeader() string {
	left := StyleBold.Render("◆ OnyxPrism") + StyleDimmed.Render(" v"+appVersion)

	if a.phase == PhaseMain {
		var tabs []string
		for i, v := range a.views {
			label := fmt.Sprintf("F%d %s", i+1, v.Name())
			if i == a.activeTab {
				tabs = append(tabs, StyleTabActive.Render(label))
			} else {
				tabs = append(tabs, StyleTabInactive.Render(label))
			}
		}
		left += "  " + strings.Join(tabs, "")
	}

	var right string
	if a.phase == PhaseMain {
		var parts []string
		if a.user != nil {
			parts = append(parts, a.user.Email)
		}
		if d := a.store.ConnectedDatabase(); d != nil {
			parts = append(parts, StyleSuccess.Render("⚡ "+d.Database))
		} else {
			parts = append(parts, StyleWarning.Render("no database"))
		}
		right = strings.Join(parts, StyleDimmed.Render(" │ "))
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	var content string

	switch {
	case a.mode == ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case a.mode == ModeJump:
		content = StylePrompt.Render("/") + a.cmdInput + "█"
	case a.statusMsg != "":
		content = a.statusMsg
	default:
		var parts []string
		for _, h := range a.helpItems() {
			parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
		}
		content = strings.Join(parts, "  │  ")
	}

	return StyleStatusBar.Width(a.width).Render(content)
}

func (a *App) helpItems() []KeyBinding {
	if a.phase == PhaseSignIn {
		return append(a.signIn.ShortHelp(), KeyBinding{Key: "Ctrl+C", Desc: "quit"})
	}
	global := []KeyBinding{
		{Key: "?", Desc: "help"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ OnyxPrism Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("Tab / Shift+Tab") + "  Switch between tabs",
		StyleHelpKey.Render("F1-F5") + "            Jump to a tab (also while typing)",
		StyleHelpKey.Render("/") + "                Jump to tab by name",
		StyleHelpKey.Render("?") + "                Toggle this help",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("Tabs"),
		"",
		StyleHelpKey.Render("Sources") + "          Enter connects or disconnects a database",
		StyleHelpKey.Render("Connect") + "          Onboard a database: connect, pick tables, extract",
		StyleHelpKey.Render("KPI") + "              ←/→ page, s page size, n new KPI",
		StyleHelpKey.Render("Charts") + "           f full screen, p pin",
		StyleHelpKey.Render("Chat") + "             Ask questions about your data",
		"",
		StyleTitle.Render("Commands"),
		"",
		StyleHelpKey.Render(":logout") + "          Sign out",
		StyleHelpKey.Render(":disconnect") + "      Clear the connected database",
		StyleHelpKey.Render(":refresh") + "         Reload every tab",
		StyleHelpKey.Render(":quit") + "            Quit",
		"",
		StyleDimmed.Render("Press ? to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}

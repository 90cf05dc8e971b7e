// view_onboard.go drives the database-onboarding wizard.
//
// Step 1 is a connection form with saved profiles, the way the
// connection screen always worked. Step 2 is a table and column
// checklist. Steps 3 and 4 run on their own after step 2 succeeds; the
// view only shows progress. Every backend call runs in a tea.Cmd and
// comes back as a WizardResultMsg that is applied to the wizard.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/onboard"
	"github.com/onyxprism/prism/session"
)

const (
	fieldSaved = iota
	fieldDBType
	fieldHost
	fieldPort
	fieldUsername
	fieldPassword
	fieldDatabase
	fieldName
	fieldSavePassword
	fieldConnect
	fieldSave
	fieldDelete
	fieldCount // sentinel
)

var fieldLabels = map[int]string{
	fieldSaved:        "Saved",
	fieldDBType:       "Type",
	fieldHost:         "Host",
	fieldPort:         "Port",
	fieldUsername:     "Username",
	fieldPassword:     "Password",
	fieldDatabase:     "Database",
	fieldName:         "Profile name",
	fieldSavePassword: "Save password",
	fieldConnect:      "Connect",
	fieldSave:         "Save",
	fieldDelete:       "Delete",
}

// checkRow is one line of the schema checklist. An empty column is the
// table line itself.
type checkRow struct {
	table  string
	column string
}

type OnboardView struct {
	wizard   *onboard.Wizard
	runner   onboard.Runner
	store    *session.Store
	profiles *config.ConnectionStore

	fields     []string
	focusField int
	savedIdx   int
	editing    bool

	cursor int // checklist row

	progress progress.Model
	spinner  spinner.Model

	err    error
	notice string
	width  int
	height int
}

func NewOnboardView(client *api.Client, profiles *config.ConnectionStore) *OnboardView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	v := &OnboardView{
		wizard:     onboard.New(client.Session()),
		runner:     onboard.Runner{Backend: client},
		store:      client.Session(),
		profiles:   profiles,
		fields:     make([]string, fieldCount),
		focusField: fieldDBType,
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:    sp,
	}
	v.loadForm(onboard.FormFromConnection(config.DefaultConnection()))
	v.fields[fieldSavePassword] = "no"
	if profiles != nil && len(profiles.Connections) > 0 {
		v.loadSavedConnection(0)
		v.focusField = fieldSaved
	}
	return v
}

func (v *OnboardView) Name() string { return "Connect" }

// WantsTextInput is true while a form field is being edited.
func (v *OnboardView) WantsTextInput() bool { return v.editing }

func (v *OnboardView) SetSize(width, height int) {
	v.width = width
	v.height = height
	w := width - 20
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	v.progress.Width = w
}

func (v *OnboardView) ShortHelp() []KeyBinding {
	switch {
	case v.editing:
		return []KeyBinding{
			{Key: "Enter/Esc", Desc: "done"},
			{Key: "Ctrl+U", Desc: "clear"},
		}
	case v.wizard.Step() == onboard.StepConnect:
		return []KeyBinding{
			{Key: "↑/↓", Desc: "field"},
			{Key: "←/→", Desc: "choose"},
			{Key: "Enter", Desc: "edit/run"},
			{Key: "r", Desc: "retry"},
		}
	case v.wizard.Step() == onboard.StepExtractSchemas:
		return []KeyBinding{
			{Key: "↑/↓", Desc: "move"},
			{Key: "Space", Desc: "toggle"},
			{Key: "Enter", Desc: "extract"},
			{Key: "r", Desc: "retry"},
			{Key: "Ctrl+R", Desc: "start over"},
		}
	default:
		return []KeyBinding{
			{Key: "r", Desc: "retry"},
			{Key: "Ctrl+R", Desc: "start over"},
		}
	}
}

func (v *OnboardView) Init() tea.Cmd { return nil }

func (v *OnboardView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.handleEditing(msg)
		}
		return v.handleKey(msg)

	case WizardResultMsg:
		return v, v.apply(msg.Result)

	case ProfileSavedMsg:
		v.err = msg.Err
		if msg.Err == nil {
			if msg.Deleted {
				v.notice = fmt.Sprintf("Profile '%s' deleted.", msg.Name)
			} else {
				v.notice = fmt.Sprintf("Profile '%s' saved!", msg.Name)
			}
		}
		return v, nil

	case spinner.TickMsg:
		if !v.wizard.InFlight() {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

// apply feeds a finished request back into the wizard and starts the
// next chained step, if any.
func (v *OnboardView) apply(r onboard.Result) tea.Cmd {
	if !v.wizard.Accepts(r) {
		// A late answer for a step that was retried or reset.
		return nil
	}
	next := v.wizard.Apply(r)
	if r.Err != nil {
		v.err = r.Err
		v.notice = ""
		return nil
	}
	v.err = nil
	v.notice = onboard.SuccessMessage(r.Step)

	var cmds []tea.Cmd
	if r.Step == onboard.StepConnect {
		v.cursor = 0
		if cur := v.store.ConnectedDatabase(); cur != nil && cur.DBID == v.wizard.DBID() {
			cmds = append(cmds, func() tea.Msg { return DatabaseChangedMsg{Database: cur} })
		}
	}
	if next != nil {
		cmds = append(cmds, v.run(next))
	}
	return tea.Batch(cmds...)
}

func (v *OnboardView) run(a *onboard.Action) tea.Cmd {
	runner := v.runner
	act := *a
	return tea.Batch(v.spinner.Tick, func() tea.Msg {
		return WizardResultMsg{Result: runner.Execute(context.Background(), act)}
	})
}

func (v *OnboardView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "ctrl+r":
		if v.wizard.InFlight() {
			return v, nil
		}
		v.wizard.Reset()
		v.err = nil
		v.notice = ""
		v.cursor = 0
		return v, nil
	case "r":
		if v.wizard.Err() == nil {
			break
		}
		a, err := v.wizard.Retry()
		if err != nil {
			return v, nil
		}
		v.err = nil
		return v, v.run(a)
	}

	switch v.wizard.Step() {
	case onboard.StepConnect:
		return v.handleForm(msg)
	case onboard.StepExtractSchemas:
		return v.handleChecklist(msg)
	}
	return v, nil
}

// ─── Step 1: connection form ─────────────────────────────────

func (v *OnboardView) handleForm(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "shift+tab":
		v.moveFocus(-1)
	case "down", "j", "tab":
		v.moveFocus(1)
	case "left", "h":
		v.cycle(-1)
	case "right", "l":
		v.cycle(1)
	case "enter":
		return v.handleAction()
	}
	return v, nil
}

func (v *OnboardView) moveFocus(dir int) {
	v.focusField = (v.focusField + dir + fieldCount) % fieldCount
	if v.focusField == fieldSaved && v.savedCount() == 0 {
		v.moveFocus(dir)
	}
}

func (v *OnboardView) cycle(dir int) {
	switch v.focusField {
	case fieldSaved:
		n := v.savedCount()
		if n == 0 {
			return
		}
		v.loadSavedConnection((v.savedIdx + dir + n) % n)
	case fieldDBType:
		idx := 0
		for i, t := range config.DBTypes {
			if t == v.fields[fieldDBType] {
				idx = i
				break
			}
		}
		idx = (idx + dir + len(config.DBTypes)) % len(config.DBTypes)
		v.fields[fieldDBType] = config.DBTypes[idx]
	case fieldSavePassword:
		v.toggleSavePassword()
	case fieldConnect, fieldSave, fieldDelete:
		v.moveFocus(dir)
	}
}

func (v *OnboardView) toggleSavePassword() {
	if v.fields[fieldSavePassword] == "yes" {
		v.fields[fieldSavePassword] = "no"
	} else {
		v.fields[fieldSavePassword] = "yes"
	}
}

func (v *OnboardView) handleAction() (View, tea.Cmd) {
	switch v.focusField {
	case fieldSaved, fieldConnect:
		return v, v.connect()
	case fieldDBType:
		v.cycle(1)
	case fieldSavePassword:
		v.toggleSavePassword()
	case fieldSave:
		return v, v.saveProfile()
	case fieldDelete:
		return v, v.deleteProfile()
	default:
		v.editing = true
	}
	return v, nil
}

func (v *OnboardView) handleEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	field := v.focusField

	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc, tea.KeyTab:
		v.editing = false
	case tea.KeyBackspace:
		if r := []rune(v.fields[field]); len(r) > 0 {
			v.fields[field] = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		v.fields[field] = ""
	case tea.KeySpace:
		v.fields[field] += " "
	case tea.KeyRunes:
		v.fields[field] += string(msg.Runes)
	}
	return v, nil
}

func (v *OnboardView) form() onboard.ConnectForm {
	return onboard.ConnectForm{
		DBType:   v.fields[fieldDBType],
		Database: v.fields[fieldDatabase],
		Username: v.fields[fieldUsername],
		Password: v.fields[fieldPassword],
		Host:     v.fields[fieldHost],
		Port:     v.fields[fieldPort],
	}
}

func (v *OnboardView) loadForm(f onboard.ConnectForm) {
	v.fields[fieldDBType] = f.DBType
	v.fields[fieldDatabase] = f.Database
	v.fields[fieldUsername] = f.Username
	v.fields[fieldPassword] = f.Password
	v.fields[fieldHost] = f.Host
	v.fields[fieldPort] = f.Port
}

func (v *OnboardView) connect() tea.Cmd {
	a, err := v.wizard.SubmitConnect(v.form())
	if err != nil {
		v.err = err
		v.notice = ""
		return nil
	}
	v.err = nil
	v.notice = ""
	return v.run(a)
}

func (v *OnboardView) savedCount() int {
	if v.profiles == nil {
		return 0
	}
	return len(v.profiles.Connections)
}

func (v *OnboardView) loadSavedConnection(idx int) {
	if idx < 0 || idx >= v.savedCount() {
		return
	}
	c := v.profiles.Connections[idx]
	v.loadForm(onboard.FormFromConnection(c))
	v.fields[fieldName] = c.Name
	if c.Password != "" {
		v.fields[fieldSavePassword] = "yes"
	} else {
		v.fields[fieldSavePassword] = "no"
	}
	v.savedIdx = idx
}

func (v *OnboardView) saveProfile() tea.Cmd {
	name := strings.TrimSpace(v.fields[fieldName])
	if name == "" {
		v.err = apperr.Validation("Enter a profile name first.")
		return nil
	}
	if v.profiles == nil {
		return nil
	}
	v.profiles.Add(v.form().Connection(name, v.fields[fieldSavePassword] == "yes"))
	v.savedIdx = v.profiles.Index(name)
	store := v.profiles
	return func() tea.Msg {
		return ProfileSavedMsg{Name: name, Err: store.Save()}
	}
}

func (v *OnboardView) deleteProfile() tea.Cmd {
	if v.savedCount() == 0 {
		return nil
	}
	name := v.profiles.Connections[v.savedIdx].Name
	v.profiles.Delete(name)
	if v.savedIdx >= v.savedCount() {
		v.savedIdx = 0
	}
	if v.savedCount() == 0 && v.focusField == fieldSaved {
		v.focusField = fieldDBType
	}
	store := v.profiles
	return func() tea.Msg {
		return ProfileSavedMsg{Name: name, Deleted: true, Err: store.Save()}
	}
}

// ─── Step 2: schema checklist ────────────────────────────────

func (v *OnboardView) rows() []checkRow {
	tables := v.wizard.Tables()
	var rows []checkRow
	for _, t := range v.wizard.TableNames() {
		rows = append(rows, checkRow{table: t})
		for _, c := range tables[t] {
			rows = append(rows, checkRow{table: t, column: c})
		}
	}
	return rows
}

func (v *OnboardView) handleChecklist(msg tea.KeyMsg) (View, tea.Cmd) {
	rows := v.rows()
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(rows)-1 {
			v.cursor++
		}
	case " ", "x":
		if v.wizard.SelectionLocked() || v.cursor >= len(rows) {
			return v, nil
		}
		row := rows[v.cursor]
		var err error
		if row.column == "" {
			err = v.wizard.ToggleTable(row.table, !v.wizard.IsSelected(row.table))
		} else {
			err = v.wizard.ToggleColumn(row.table, row.column, !v.wizard.IsColumnSelected(row.table, row.column))
		}
		v.err = err
	case "enter":
		a, err := v.wizard.SubmitExtract()
		if err != nil {
			v.err = err
			return v, nil
		}
		v.err = nil
		v.notice = ""
		return v, v.run(a)
	}
	return v, nil
}

// ─── Rendering ───────────────────────────────────────────────

func (v *OnboardView) View() string {
	var sections []string
	sections = append(sections, v.renderSteps())
	sections = append(sections, "  "+v.progress.ViewAs(v.wizard.Progress()/100))
	sections = append(sections, "")

	switch v.wizard.Step() {
	case onboard.StepConnect:
		sections = append(sections, v.renderForm())
	case onboard.StepExtractSchemas:
		sections = append(sections, v.renderChecklist())
	case onboard.StepComplete:
		sections = append(sections, StyleSuccess.Render("✓ Your database is ready."),
			StyleDimmed.Render("Open the KPI, Charts or Chat tab, or press Ctrl+R to onboard another database."))
	default:
		sections = append(sections, StyleDimmed.Render("The backend is processing your schema. This can take a few minutes."))
	}

	sections = append(sections, "", v.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *OnboardView) renderSteps() string {
	var parts []string
	for s := onboard.StepConnect; s <= onboard.StepComplete; s++ {
		label := fmt.Sprintf("%d %s", int(s), s)
		switch v.wizard.StepStatus(s) {
		case onboard.StatusCompleted:
			parts = append(parts, StyleSuccess.Render("✓ "+label))
		case onboard.StatusCurrent:
			parts = append(parts, StyleInputFocused.Render("● "+label))
		default:
			parts = append(parts, StyleDimmed.Render("○ "+label))
		}
	}
	return strings.Join(parts, StyleDimmed.Render("  ›  "))
}

func (v *OnboardView) renderStatus() string {
	switch {
	case v.wizard.InFlight():
		return v.spinner.View() + " " + StyleDimmed.Render(v.wizard.Step().String()+"...")
	case v.err != nil:
		line := StyleError.Render("✗ " + apperr.UserMessage(v.err))
		if v.wizard.Err() != nil {
			line += StyleDimmed.Render("  (press r to retry)")
		}
		return line
	case v.notice != "":
		return StyleSuccess.Render("✓ " + v.notice)
	}
	return ""
}

func (v *OnboardView) renderForm() string {
	var lines []string

	if n := v.savedCount(); n > 0 {
		lines = append(lines, blockHeader("Saved", 40))
		var saved strings.Builder
		for i, c := range v.profiles.Connections {
			switch {
			case i == v.savedIdx && v.focusField == fieldSaved:
				saved.WriteString(StyleListItemActive.Render(" ► " + c.Name + " "))
			case i == v.savedIdx:
				saved.WriteString(lipgloss.NewStyle().Foreground(ColorAccent).Render(" ► " + c.Name + " "))
			default:
				saved.WriteString(StyleDimmed.Render("   " + c.Name + " "))
			}
		}
		lines = append(lines, saved.String(), "")
	}

	lines = append(lines, blockHeader("Database", 40))
	lines = append(lines, v.renderSelectField(fieldDBType))
	for _, id := range []int{fieldHost, fieldPort, fieldUsername} {
		lines = append(lines, v.renderField(id, v.fields[id]))
	}
	lines = append(lines, v.renderField(fieldPassword, strings.Repeat("•", len([]rune(v.fields[fieldPassword])))))
	lines = append(lines, v.renderField(fieldDatabase, v.fields[fieldDatabase]))
	lines = append(lines, "")

	lines = append(lines, blockHeader("Profile", 40))
	lines = append(lines, v.renderField(fieldName, v.fields[fieldName]))
	lines = append(lines, v.renderToggleField(fieldSavePassword))
	lines = append(lines, "")

	lines = append(lines, v.renderButton(fieldConnect)+"  "+v.renderButton(fieldSave)+"  "+v.renderButton(fieldDelete))

	return StyleBorder.Padding(1, 2).BorderForeground(ColorAccent).Render(strings.Join(lines, "\n"))
}

func (v *OnboardView) renderChecklist() string {
	rows := v.rows()
	if len(rows) == 0 {
		return StyleDimmed.Render("No tables found in this database.")
	}

	header := StyleBold.Render("Select tables and columns to extract")
	if v.wizard.SelectionLocked() {
		header += StyleDimmed.Render("  (locked)")
	}
	lines := []string{header, ""}

	// Keep the cursor on screen: show a window of rows around it.
	visible := v.height - 10
	if visible < 5 {
		visible = 5
	}
	start := 0
	if v.cursor >= visible {
		start = v.cursor - visible + 1
	}
	end := start + visible
	if end > len(rows) {
		end = len(rows)
	}

	for i := start; i < end; i++ {
		row := rows[i]
		var line string
		if row.column == "" {
			box := "[ ]"
			if v.wizard.IsSelected(row.table) {
				box = StyleSuccess.Render("[x]")
			}
			line = box + " " + StyleBold.Render(row.table)
		} else {
			box := "[ ]"
			if v.wizard.IsColumnSelected(row.table, row.column) {
				box = StyleSuccess.Render("[x]")
			}
			line = "    " + box + " " + row.column
		}
		if i == v.cursor {
			line = StyleInputFocused.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if end < len(rows) {
		lines = append(lines, StyleDimmed.Render(fmt.Sprintf("  … %d more", len(rows)-end)))
	}
	return strings.Join(lines, "\n")
}

func blockHeader(label string, width int) string {
	remaining := width - len(label) - 4
	if remaining < 4 {
		remaining = 4
	}
	return StyleDimmed.Render("──") + " " +
		lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render(label) + " " +
		StyleDimmed.Render(strings.Repeat("─", remaining-2))
}

func (v *OnboardView) fieldLabel(id int) string {
	if v.focusField == id {
		return lipgloss.NewStyle().Width(16).Foreground(ColorAccent).Bold(true).Render("▸ " + fieldLabels[id])
	}
	return lipgloss.NewStyle().Width(16).Foreground(ColorDim).Render(fieldLabels[id])
}

// renderField draws a text field; shown is the display form of its value.
func (v *OnboardView) renderField(id int, shown string) string {
	if v.focusField == id {
		cursor := ""
		if v.editing {
			cursor = "█"
		}
		return v.fieldLabel(id) + " " + StyleNormal.Render(shown+cursor)
	}
	return v.fieldLabel(id) + " " + StyleDimmed.Render(shown)
}

func (v *OnboardView) renderSelectField(id int) string {
	if v.focusField == id {
		return v.fieldLabel(id) + " " + lipgloss.NewStyle().Foreground(ColorAccent).Render(" ◂ "+v.fields[id]+" ▸ ")
	}
	return v.fieldLabel(id) + " " + StyleDimmed.Render(v.fields[id])
}

func (v *OnboardView) renderToggleField(id int) string {
	if v.fields[id] == "yes" {
		return v.fieldLabel(id) + " " + StyleSuccess.Bold(true).Render("● Yes")
	}
	return v.fieldLabel(id) + " " + StyleDimmed.Render("○ No")
}

func (v *OnboardView) renderButton(id int) string {
	if v.focusField == id {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorAccent).
			Padding(0, 2).
			Render("⏎ " + fieldLabels[id])
	}
	return lipgloss.NewStyle().
		Foreground(ColorDim).
		Padding(0, 2).
		Render("  " + fieldLabels[id])
}

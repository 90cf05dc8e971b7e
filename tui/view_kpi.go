// view_kpi.go shows the KPIs of the connected database.
//
// The page has three layouts picked by kpi.Loader: no databases yet,
// no KPIs yet, and the KPI list. A KPI with a single result row is a
// summary card; anything else is a table with its own pagination.
// The create form ("n") posts a new KPI and reloads the page.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/kpi"
	"github.com/onyxprism/prism/session"
)

const (
	kpiFieldName = iota
	kpiFieldFormula
	kpiFieldDescription
	kpiFieldType
	kpiFieldCount
)

var kpiFieldLabels = [kpiFieldCount]string{"Name", "Formula", "Description", "Formula type"}

type KPIView struct {
	loader    *kpi.Loader
	store     *session.Store
	paginator *kpi.Paginator
	viewport  *Viewport

	page    *kpi.Page
	focus   int // selected KPI
	loading bool
	loaded  bool
	err     error
	notice  string

	// create form
	creating  bool
	form      [kpiFieldCount]string
	formFocus int
	saving    bool

	width  int
	height int
}

func NewKPIView(client *api.Client) *KPIView {
	v := &KPIView{
		loader:    kpi.NewLoader(client),
		store:     client.Session(),
		paginator: kpi.NewPaginator(),
		viewport:  NewViewport(80, 20),
	}
	v.resetForm()
	return v
}

func (v *KPIView) Name() string { return "KPI" }

// WantsTextInput is true while the create form is open, so Tab moves
// between its fields.
func (v *KPIView) WantsTextInput() bool { return v.creating }

func (v *KPIView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-4)
	v.refreshContent()
}

func (v *KPIView) ShortHelp() []KeyBinding {
	if v.creating {
		return []KeyBinding{
			{Key: "Tab/↑/↓", Desc: "field"},
			{Key: "←/→", Desc: "formula type"},
			{Key: "Ctrl+S", Desc: "create"},
			{Key: "Esc", Desc: "cancel"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "select KPI"},
		{Key: "←/→", Desc: "page"},
		{Key: "s", Desc: "page size"},
		{Key: "n", Desc: "new KPI"},
		{Key: "r", Desc: "refresh"},
	}
}

func (v *KPIView) Init() tea.Cmd {
	if v.loaded || v.loading {
		return nil
	}
	return v.load()
}

func (v *KPIView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.creating {
			return v.handleFormKey(msg)
		}
		return v.handleKey(msg)

	case KPIPageMsg:
		v.loading = false
		v.loaded = true
		v.err = msg.Err
		if msg.Page != nil {
			v.page = msg.Page
			if v.focus >= len(v.page.KPIs) {
				v.focus = 0
			}
		}
		v.refreshContent()
		return v, nil

	case KPICreatedMsg:
		v.saving = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.creating = false
		v.resetForm()
		v.notice = "KPI created successfully!"
		return v, v.load()

	case DatabaseChangedMsg:
		v.page = nil
		v.focus = 0
		v.paginator = kpi.NewPaginator()
		return v, v.load()
	}
	return v, nil
}

func (v *KPIView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	n := v.kpiCount()
	switch msg.String() {
	case "r":
		v.notice = ""
		return v, v.load()
	case "n":
		if v.page == nil || v.page.State == kpi.StateNoDatabases {
			v.err = apperr.Validation("Please connect a database first.")
			return v, nil
		}
		v.creating = true
		v.err = nil
		v.notice = ""
		return v, nil
	case "up", "k":
		if v.focus > 0 {
			v.focus--
		}
	case "down", "j":
		if v.focus < n-1 {
			v.focus++
		}
	case "left", "h":
		if k, ok := v.focused(); ok {
			v.paginator.Prev(k.Name)
		}
	case "right", "l":
		if k, ok := v.focused(); ok {
			v.paginator.Next(k.Name, len(k.Result))
		}
	case "s":
		if k, ok := v.focused(); ok {
			v.paginator.CyclePageSize(k.Name)
		}
	default:
		v.viewport.HandleScrollKey(msg.String())
		return v, nil
	}
	v.refreshContent()
	return v, nil
}

func (v *KPIView) handleFormKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		v.creating = false
		v.err = nil
		return v, nil
	case tea.KeyTab, tea.KeyDown:
		v.formFocus = (v.formFocus + 1) % kpiFieldCount
		return v, nil
	case tea.KeyShiftTab, tea.KeyUp:
		v.formFocus = (v.formFocus + kpiFieldCount - 1) % kpiFieldCount
		return v, nil
	case tea.KeyCtrlS:
		return v, v.create()
	case tea.KeyEnter:
		if v.formFocus == kpiFieldCount-1 {
			return v, v.create()
		}
		v.formFocus++
		return v, nil
	}

	if v.formFocus == kpiFieldType {
		switch msg.Type {
		case tea.KeyLeft:
			v.cycleFormulaType(-1)
		case tea.KeyRight, tea.KeySpace:
			v.cycleFormulaType(1)
		}
		return v, nil
	}

	field := &v.form[v.formFocus]
	switch msg.Type {
	case tea.KeyBackspace:
		if r := []rune(*field); len(r) > 0 {
			*field = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		*field = ""
	case tea.KeySpace:
		*field += " "
	case tea.KeyRunes:
		*field += string(msg.Runes)
	}
	return v, nil
}

func (v *KPIView) cycleFormulaType(dir int) {
	types := kpi.FormulaTypes
	idx := 0
	for i, t := range types {
		if t == v.form[kpiFieldType] {
			idx = i
			break
		}
	}
	v.form[kpiFieldType] = types[(idx+dir+len(types))%len(types)]
}

func (v *KPIView) resetForm() {
	v.form = [kpiFieldCount]string{}
	v.form[kpiFieldType] = kpi.FormulaTypes[0]
	v.formFocus = kpiFieldName
}

func (v *KPIView) create() tea.Cmd {
	if v.saving {
		return nil
	}
	k := kpi.NewKPI{
		Name:        v.form[kpiFieldName],
		Formula:     v.form[kpiFieldFormula],
		Description: v.form[kpiFieldDescription],
		FormulaType: v.form[kpiFieldType],
	}
	if err := k.Validate(); err != nil {
		v.err = err
		return nil
	}
	v.saving = true
	v.err = nil
	loader := v.loader
	dbID := v.store.ConnectedDatabaseID()
	return func() tea.Msg {
		return KPICreatedMsg{Name: k.Name, Err: loader.Create(context.Background(), dbID, k)}
	}
}

func (v *KPIView) load() tea.Cmd {
	v.loading = true
	loader := v.loader
	dbID := v.store.ConnectedDatabaseID()
	return func() tea.Msg {
		page, err := loader.Load(context.Background(), dbID)
		return KPIPageMsg{Page: page, Err: err}
	}
}

func (v *KPIView) kpiCount() int {
	if v.page == nil {
		return 0
	}
	return len(v.page.KPIs)
}

func (v *KPIView) focused() (kpi.KPI, bool) {
	if v.focus < 0 || v.focus >= v.kpiCount() {
		return kpi.KPI{}, false
	}
	return v.page.KPIs[v.focus], true
}

// refreshContent re-renders the KPI blocks into the viewport and scrolls
// to the selected one.
func (v *KPIView) refreshContent() {
	if v.page == nil || v.page.State != kpi.StateList {
		return
	}
	var lines []string
	focusLine := 0
	for i, k := range v.page.KPIs {
		if i == v.focus {
			focusLine = len(lines)
		}
		lines = append(lines, strings.Split(v.renderKPI(k, i == v.focus), "\n")...)
		lines = append(lines, "")
	}
	v.viewport.SetContentLines(lines)
	v.viewport.ScrollTo(focusLine)
}

func (v *KPIView) View() string {
	title := StyleTitle.Render("Key Performance Indicators")

	if v.creating {
		return lipgloss.JoinVertical(lipgloss.Left, title, v.renderForm())
	}

	var body string
	switch {
	case v.page == nil && v.loading:
		body = StyleDimmed.Render("⏳ loading KPIs...")
	case v.page == nil:
		body = ""
	case v.page.State == kpi.StateNoDatabases && v.err != nil:
		// the list could not be fetched; the status line says why
		body = ""
	case v.page.State == kpi.StateNoDatabases:
		body = StyleDimmed.Render("No databases connected. Connect a database to start tracking KPIs.")
	case v.page.State == kpi.StateEmpty:
		msg := v.page.Message
		if msg == "" {
			msg = "No KPI data available"
		}
		body = StyleDimmed.Render(msg) + "\n\n" + StyleHelpKey.Render("n") + StyleHelpDesc.Render(" add your first KPI")
	default:
		body = v.viewport.Render()
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, v.statusLine(), body)
}

func (v *KPIView) statusLine() string {
	switch {
	case v.err != nil:
		return StyleError.Render("✗ " + apperr.UserMessage(v.err))
	case v.notice != "":
		return StyleSuccess.Render("✓ " + v.notice)
	case v.loading:
		return StyleDimmed.Render("⏳ refreshing...")
	}
	return ""
}

func (v *KPIView) renderKPI(k kpi.KPI, selected bool) string {
	heading := StyleBold.Render(strings.ReplaceAll(k.Name, "_", " "))
	if selected {
		heading = StyleInputFocused.Render("▸ " + strings.ReplaceAll(k.Name, "_", " "))
	}

	if len(k.Result) == 0 {
		return heading + "\n" + StyleDimmed.Render("  no rows")
	}

	if kpi.LayoutFor(k) == kpi.LayoutCard {
		item := k.Result[0]
		card := StyleCard.Render(
			StyleDimmed.Render(kpi.DisplayLabel(item, k.Name)) + "\n" +
				StyleCardValue.Render(kpi.FormatCurrency(kpi.NumericValue(item))))
		return heading + "\n" + card
	}
	return heading + "\n" + v.renderTable(k)
}

func (v *KPIView) renderTable(k kpi.KPI) string {
	headers := kpi.TableHeaders(k.Result)
	st := v.paginator.State(k.Name)
	rows := v.paginator.Page(k.Name, k.Result)

	cells := make([][]string, len(rows))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(headers))
		for i, h := range headers {
			cells[r][i] = kpi.FormatCell(row, h)
			if w := lipgloss.Width(cells[r][i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}

	var b strings.Builder
	var head []string
	for i, h := range headers {
		head = append(head, StyleHelpKey.Render(pad(h, widths[i])))
	}
	b.WriteString("  " + strings.Join(head, "  ") + "\n")
	for _, row := range cells {
		var line []string
		for i, c := range row {
			line = append(line, pad(c, widths[i]))
		}
		b.WriteString("  " + strings.Join(line, "  ") + "\n")
	}

	total := kpi.TotalPages(len(k.Result), st.PageSize)
	first, last := st.Range(len(k.Result))
	var pages []string
	for _, p := range kpi.PageWindow(st.CurrentPage, total) {
		if p == st.CurrentPage {
			pages = append(pages, StyleInputFocused.Render(fmt.Sprintf("[%d]", p)))
		} else {
			pages = append(pages, StyleDimmed.Render(fmt.Sprintf("%d", p)))
		}
	}
	b.WriteString(StyleDimmed.Render(fmt.Sprintf("  Showing %d to %d of %d  ·  %d per page  ·  ", first, last, len(k.Result), st.PageSize)))
	b.WriteString(strings.Join(pages, " "))
	return b.String()
}

func (v *KPIView) renderForm() string {
	lines := []string{StyleBold.Render("Add KPI"), ""}
	for i := 0; i < kpiFieldCount; i++ {
		label := lipgloss.NewStyle().Width(16).Foreground(ColorDim).Render(kpiFieldLabels[i])
		value := StyleDimmed.Render(v.form[i])
		if i == v.formFocus {
			label = lipgloss.NewStyle().Width(16).Foreground(ColorAccent).Bold(true).Render("▸ " + kpiFieldLabels[i])
			if i == kpiFieldType {
				value = lipgloss.NewStyle().Foreground(ColorAccent).Render(" ◂ " + v.form[i] + " ▸ ")
			} else {
				value = StyleNormal.Render(v.form[i] + "█")
			}
		}
		lines = append(lines, label+" "+value)
	}
	lines = append(lines, "")
	switch {
	case v.saving:
		lines = append(lines, StyleDimmed.Render("⏳ creating..."))
	case v.err != nil:
		lines = append(lines, StyleError.Render("✗ "+apperr.UserMessage(v.err)))
	}
	return StyleBorder.Padding(1, 2).BorderForeground(ColorAccent).Render(strings.Join(lines, "\n"))
}

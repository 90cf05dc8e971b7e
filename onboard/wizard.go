// Package onboard drives the four-step database onboarding flow:
// connect, extract schemas, semantic extraction and vector insert.
//
// Wizard is a pure state machine. It never performs I/O itself; each
// transition that needs the backend returns an *Action, which a Runner
// executes and whose Result is fed back through Apply. Steps 2 and 3
// chain into their successor automatically: Apply of a successful
// result returns the next Action. A failure stops the chain on the
// failing step until the user retries or resets.
package onboard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/session"
)

// Step is a wizard position. Steps only move forward, except on Reset.
type Step int

const (
	StepConnect Step = iota + 1
	StepExtractSchemas
	StepSemanticExtraction
	StepVectorInsert
	StepComplete
)

// operationSteps is the number of steps that call the backend.
const operationSteps = 4

func (s Step) String() string {
	switch s {
	case StepConnect:
		return "Connect Database"
	case StepExtractSchemas:
		return "Extract Schemas"
	case StepSemanticExtraction:
		return "Semantic Extraction"
	case StepVectorInsert:
		return "Vector Data Insert"
	case StepComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Status is how a step indicator is drawn.
type Status int

const (
	StatusPending Status = iota
	StatusCurrent
	StatusCompleted
)

var (
	// ErrBusy is returned while a step's request is in flight.
	ErrBusy = errors.New("onboarding: a step is already in progress")
	// ErrWrongStep is returned for an operation the current step does not offer.
	ErrWrongStep = errors.New("onboarding: not available at this step")
	// ErrNothingToRetry is returned by Retry when the current step has not failed.
	ErrNothingToRetry = errors.New("onboarding: nothing to retry")
)

// SessionWriter receives the connected database after step 1.
type SessionWriter interface {
	SetConnectedDatabase(db *session.Database) error
}

// Action is one backend operation the wizard wants performed.
type Action struct {
	Step     Step
	DBID     string
	Connect  api.ConnectRequest
	Selected map[string][]string
}

// Result is the outcome of executing an Action.
type Result struct {
	Step    Step
	Connect *api.ConnectResponse
	Err     error
}

// Wizard holds onboarding state. It is owned by one goroutine (the TUI
// update loop or a CLI command) and is not safe for concurrent use.
type Wizard struct {
	step     Step
	tables   map[string][]string
	selected map[string][]string
	dbID     string
	inFlight bool
	lastErr  error
	lastForm *api.ConnectRequest
	session  SessionWriter
}

// New returns a wizard on step 1 that reports connections to sw.
func New(sw SessionWriter) *Wizard {
	return &Wizard{
		step:     StepConnect,
		tables:   map[string][]string{},
		selected: map[string][]string{},
		session:  sw,
	}
}

func (w *Wizard) Step() Step { return w.step }

func (w *Wizard) DBID() string { return w.dbID }

func (w *Wizard) InFlight() bool { return w.inFlight }

// Err is the failure that stalled the current step, if any.
func (w *Wizard) Err() error { return w.lastErr }

func (w *Wizard) Complete() bool { return w.step == StepComplete }

// SelectionLocked reports whether table and column checkboxes are
// disabled, which is while any of steps 2 to 4 is in flight.
func (w *Wizard) SelectionLocked() bool {
	return w.inFlight && w.step >= StepExtractSchemas && w.step <= StepVectorInsert
}

// Tables returns a copy of the discovered schema.
func (w *Wizard) Tables() map[string][]string { return copySchema(w.tables) }

// Selected returns a copy of the current selection.
func (w *Wizard) Selected() map[string][]string { return copySchema(w.selected) }

// TableNames returns the discovered table names in sorted order.
func (w *Wizard) TableNames() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSelected reports whether table is in the selection.
func (w *Wizard) IsSelected(table string) bool {
	_, ok := w.selected[table]
	return ok
}

// IsColumnSelected reports whether column of table is in the selection.
func (w *Wizard) IsColumnSelected(table, column string) bool {
	for _, c := range w.selected[table] {
		if c == column {
			return true
		}
	}
	return false
}

// Progress is (step-1)/(steps-1)*100, capped at 100 once complete.
func (w *Wizard) Progress() float64 {
	p := float64(w.step-1) / float64(operationSteps-1) * 100
	if p > 100 {
		return 100
	}
	return p
}

// StepStatus tells how step should be drawn relative to the current step.
func (w *Wizard) StepStatus(s Step) Status {
	switch {
	case s < w.step:
		return StatusCompleted
	case s == w.step:
		return StatusCurrent
	default:
		return StatusPending
	}
}

// SubmitConnect validates the form and returns the connect Action.
func (w *Wizard) SubmitConnect(form ConnectForm) (*Action, error) {
	if w.inFlight {
		return nil, ErrBusy
	}
	if w.step != StepConnect {
		return nil, ErrWrongStep
	}
	req, err := form.Request()
	if err != nil {
		return nil, err
	}
	w.lastForm = &req
	return w.begin(&Action{Step: StepConnect, Connect: req}), nil
}

// SubmitExtract returns the schema extraction Action for the current
// selection. The selection is sent as it is, including tables whose
// columns were all unchecked; only an empty selection is rejected.
func (w *Wizard) SubmitExtract() (*Action, error) {
	if w.inFlight {
		return nil, ErrBusy
	}
	if w.step != StepExtractSchemas {
		return nil, ErrWrongStep
	}
	if len(w.selected) == 0 {
		return nil, apperr.Validation("Please select at least one table with columns.")
	}
	return w.begin(&Action{Step: StepExtractSchemas, DBID: w.dbID, Selected: w.Selected()}), nil
}

// Retry re-issues the operation of a step that failed.
func (w *Wizard) Retry() (*Action, error) {
	if w.inFlight {
		return nil, ErrBusy
	}
	if w.lastErr == nil {
		return nil, ErrNothingToRetry
	}
	switch w.step {
	case StepConnect:
		if w.lastForm == nil {
			return nil, ErrNothingToRetry
		}
		return w.begin(&Action{Step: StepConnect, Connect: *w.lastForm}), nil
	case StepExtractSchemas:
		return w.SubmitExtract()
	case StepSemanticExtraction, StepVectorInsert:
		return w.begin(&Action{Step: w.step, DBID: w.dbID}), nil
	default:
		return nil, ErrNothingToRetry
	}
}

func (w *Wizard) begin(a *Action) *Action {
	w.inFlight = true
	w.lastErr = nil
	applog.Event("onboard", "start %s", a.Step)
	return a
}

// Apply records the result of the in-flight Action. On success the
// wizard moves forward exactly one step and, after steps 2 and 3,
// returns the Action of the next step, which is already marked in
// flight. On failure it stays put and returns nil. Results that do not
// belong to the in-flight step are ignored.
func (w *Wizard) Apply(r Result) *Action {
	if !w.Accepts(r) {
		applog.Info("onboard: ignoring stale result for %s", r.Step)
		return nil
	}
	w.inFlight = false

	if r.Err == nil && r.Step == StepConnect && r.Connect == nil {
		r.Err = apperr.New(apperr.KindServer, "Invalid response format from server.")
	}
	if r.Err != nil {
		w.lastErr = r.Err
		applog.Error("onboard: %s failed: %v", r.Step, r.Err)
		return nil
	}
	applog.Event("onboard", "%s done", r.Step)

	switch r.Step {
	case StepConnect:
		w.tables = copySchema(r.Connect.DBTables)
		w.selected = map[string][]string{}
		w.dbID = r.Connect.DBID
		w.step = StepExtractSchemas
		if w.session != nil && w.lastForm != nil {
			db := &session.Database{Database: w.lastForm.Database, DBType: w.lastForm.DBType, DBID: w.dbID}
			if err := w.session.SetConnectedDatabase(db); err != nil {
				applog.Error("onboard: save connected database: %v", err)
			}
		}
		return nil
	case StepExtractSchemas:
		w.step = StepSemanticExtraction
		return w.begin(&Action{Step: StepSemanticExtraction, DBID: w.dbID})
	case StepSemanticExtraction:
		w.step = StepVectorInsert
		return w.begin(&Action{Step: StepVectorInsert, DBID: w.dbID})
	case StepVectorInsert:
		w.step = StepComplete
	}
	return nil
}

// ToggleTable selects a table with all of its columns, or removes it.
func (w *Wizard) ToggleTable(table string, checked bool) error {
	if w.SelectionLocked() {
		return ErrBusy
	}
	cols, ok := w.tables[table]
	if !ok {
		return apperr.Newf(apperr.KindValidation, "unknown table %q", table)
	}
	if checked {
		w.selected[table] = append([]string(nil), cols...)
	} else {
		delete(w.selected, table)
	}
	return nil
}

// ToggleColumn edits the column list of an already selected table. The
// list keeps the order of the discovered schema. Unchecking the last
// column leaves the table selected with no columns.
func (w *Wizard) ToggleColumn(table, column string, checked bool) error {
	if w.SelectionLocked() {
		return ErrBusy
	}
	all, ok := w.tables[table]
	if !ok {
		return apperr.Newf(apperr.KindValidation, "unknown table %q", table)
	}
	current, selected := w.selected[table]
	if !selected {
		return apperr.Newf(apperr.KindValidation, "table %q is not selected", table)
	}

	keep := make(map[string]bool, len(current)+1)
	for _, c := range current {
		keep[c] = true
	}
	known := false
	for _, c := range all {
		if c == column {
			known = true
		}
	}
	if !known {
		return apperr.Newf(apperr.KindValidation, "unknown column %q in table %q", column, table)
	}
	keep[column] = checked

	cols := []string{}
	for _, c := range all {
		if keep[c] {
			cols = append(cols, c)
		}
	}
	w.selected[table] = cols
	return nil
}

// Accepts reports whether r answers the request currently in flight.
// Apply ignores any result for which this is false.
func (w *Wizard) Accepts(r Result) bool {
	return w.inFlight && r.Step == w.step
}

// Reset returns to step 1 and forgets the schema and selection. The
// connected database in the session is left as it is.
func (w *Wizard) Reset() {
	w.step = StepConnect
	w.tables = map[string][]string{}
	w.selected = map[string][]string{}
	w.dbID = ""
	w.inFlight = false
	w.lastErr = nil
	w.lastForm = nil
	applog.Event("onboard", "reset")
}

// SuccessMessage is the notice shown when step finishes.
func SuccessMessage(s Step) string {
	switch s {
	case StepConnect:
		return "Database connected successfully! Please select tables and columns."
	case StepExtractSchemas:
		return "Schemas extracted successfully! Starting semantic extraction..."
	case StepSemanticExtraction:
		return "Semantic extraction completed successfully! Starting vector data insert..."
	case StepVectorInsert:
		return "Database setup completed successfully! You can now use the KPI and other features."
	default:
		return ""
	}
}

func copySchema(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		// an emptied table stays [] so it is sent as a list, not null
		out[k] = append([]string{}, v...)
	}
	return out
}

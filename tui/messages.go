// messages.go defines the tea.Msg types produced by background commands.
//
// Every request to the backend runs inside a tea.Cmd; its outcome comes
// back to Update as one of these messages. Err is nil on success.
package tui

import (
	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/kpi"
	"github.com/onyxprism/prism/onboard"
	"github.com/onyxprism/prism/session"
	"github.com/onyxprism/prism/viz"
)

// SignedInMsg is the outcome of a login attempt.
type SignedInMsg struct {
	Err error
}

// SignedUpMsg is the outcome of a signup attempt.
type SignedUpMsg struct {
	Email string
	Err   error
}

// SessionExpiredMsg is sent when the backend rejected the token. The
// session has already been cleared.
type SessionExpiredMsg struct{}

// UserMsg carries the signed-in account shown in the header.
type UserMsg struct {
	User *api.User
	Err  error
}

// DatabasesMsg carries the connected-database list.
type DatabasesMsg struct {
	Databases []session.Database
	Err       error
}

// DatabaseChangedMsg is broadcast to every view after the connected
// database was selected, replaced or cleared.
type DatabaseChangedMsg struct {
	Database *session.Database
}

// WizardResultMsg carries the outcome of one onboarding request.
type WizardResultMsg struct {
	Result onboard.Result
}

// ProfileSavedMsg is the outcome of saving or deleting a connect profile.
type ProfileSavedMsg struct {
	Name    string
	Deleted bool
	Err     error
}

// KPIPageMsg carries a loaded KPI page.
type KPIPageMsg struct {
	Page *kpi.Page
	Err  error
}

// KPICreatedMsg is the outcome of creating a KPI.
type KPICreatedMsg struct {
	Name string
	Err  error
}

// ChartsMsg carries the visualizations for the connected database.
type ChartsMsg struct {
	Response *viz.Response
	Err      error
}

// PinResultMsg is the outcome of pinning one chart.
type PinResultMsg struct {
	ChartID string
	Err     error
}

// ChatReplyMsg signals that the conversation received its reply. The
// reply itself is already in the transcript.
type ChatReplyMsg struct {
	Err error
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/session"
)

// Start launches the dashboard against baseURL. A 401 on any request
// clears store and returns the dashboard to the sign-in screen.
func Start(baseURL string, store *session.Store, profiles *config.ConnectionStore, opts ...api.Option) error {
	var p *tea.Program

	opts = append(opts, api.WithUnauthorizedHandler(func() {
		// Called from a command goroutine while the program runs.
		p.Send(SessionExpiredMsg{})
	}))
	client := api.New(baseURL, store, opts...)

	p = tea.NewProgram(NewApp(client, profiles), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

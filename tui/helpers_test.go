package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/session"
)

// backend is an httptest server that answers per path and records the
// decoded request bodies.
type backend struct {
	mu     sync.Mutex
	bodies map[string][]map[string]any
}

func (b *backend) body(path string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

func newBackend(t *testing.T, store *session.Store, routes map[string]http.HandlerFunc, opts ...api.Option) (*backend, *api.Client) {
	t.Helper()
	b := &backend{bodies: map[string][]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.bodies[r.URL.Path] = append(b.bodies[r.URL.Path], body)
		b.mu.Unlock()

		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, api.New(srv.URL, store, opts...)
}

func reply(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func signedInStore() *session.Store {
	return session.NewMemory(session.State{AccessToken: "tok", TokenType: "bearer"})
}

func connectedStore() *session.Store {
	return session.NewMemory(session.State{
		AccessToken:         "tok",
		TokenType:           "bearer",
		ConnectedDatabaseID: "X",
		ConnectedDatabase:   &session.Database{Database: "shop", DBType: "postgresql", DBID: "X"},
	})
}

func key(s string) tea.KeyMsg {
	named := map[string]tea.KeyType{
		"enter":     tea.KeyEnter,
		"esc":       tea.KeyEsc,
		"tab":       tea.KeyTab,
		"shift+tab": tea.KeyShiftTab,
		"up":        tea.KeyUp,
		"down":      tea.KeyDown,
		"left":      tea.KeyLeft,
		"right":     tea.KeyRight,
		"backspace": tea.KeyBackspace,
		"ctrl+c":    tea.KeyCtrlC,
		"ctrl+l":    tea.KeyCtrlL,
		"ctrl+r":    tea.KeyCtrlR,
		"ctrl+s":    tea.KeyCtrlS,
		"ctrl+t":    tea.KeyCtrlT,
		"ctrl+u":    tea.KeyCtrlU,
		"f1":        tea.KeyF1,
		"f3":        tea.KeyF3,
		"f5":        tea.KeyF5,
	}
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	if t, ok := named[s]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeInto(v View, text string) View {
	for _, r := range text {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return v
}

// collect runs cmd and every command batched inside it, returning the
// messages they produced.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds the messages produced by cmd back into v until no more
// backend results arrive. Timer-driven messages are dropped.
func settle(v View, cmd tea.Cmd) (View, []tea.Msg) {
	var seen []tea.Msg
	queue := collect(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		if !isResult(msg) {
			continue
		}
		seen = append(seen, msg)
		var next tea.Cmd
		v, next = v.Update(msg)
		queue = append(queue, collect(next)...)
	}
	return v, seen
}

func isResult(msg tea.Msg) bool {
	switch msg.(type) {
	case SignedInMsg, SignedUpMsg, UserMsg, DatabasesMsg, DatabaseChangedMsg,
		WizardResultMsg, ProfileSavedMsg, KPIPageMsg, KPICreatedMsg,
		ChartsMsg, PinResultMsg, ChatReplyMsg:
		return true
	}
	return false
}

func hasMsg[T any](msgs []tea.Msg) bool {
	for _, m := range msgs {
		if _, ok := m.(T); ok {
			return true
		}
	}
	return false
}

// view_chat.go is the conversational BI assistant.
//
// Questions are answered by the backend against the connected
// database. One question is outstanding at a time; the input is
// disabled until the reply (or an apology) is in the transcript.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/chat"
	"github.com/onyxprism/prism/session"
)

type ChatView struct {
	client   *api.Client
	store    *session.Store
	conv     *chat.Conversation
	viewport *Viewport
	input    textinput.Model
	spinner  spinner.Model
	err      error
	width    int
	height   int
}

func NewChatView(client *api.Client) *ChatView {
	ti := textinput.New()
	ti.Prompt = StylePrompt.Render("Ask> ")
	ti.Placeholder = "e.g. What were the top products by revenue last month?"
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	vp := NewViewport(80, 20)
	vp.Follow(true)

	v := &ChatView{
		client:   client,
		store:    client.Session(),
		conv:     chat.New(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
	}
	v.refresh()
	return v
}

func (v *ChatView) Name() string         { return "Chat" }
func (v *ChatView) WantsTextInput() bool { return true }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-4)
	v.input.Width = width - 10
	v.refresh()
}

func (v *ChatView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
		{Key: "Ctrl+L", Desc: "new conversation"},
	}
}

func (v *ChatView) Init() tea.Cmd { return textinput.Blink }

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case ChatReplyMsg:
		v.err = msg.Err
		v.refresh()
		v.viewport.End()
		return v, nil

	case spinner.TickMsg:
		if !v.conv.Waiting() {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v, v.send()
	case "ctrl+l":
		if v.conv.Waiting() {
			return v, nil
		}
		v.conv = chat.New()
		v.err = nil
		v.refresh()
		return v, nil
	case "pgup":
		v.viewport.PageUp()
		return v, nil
	case "pgdown":
		v.viewport.PageDown()
		return v, nil
	case "ctrl+k":
		v.viewport.ScrollUp(1)
		return v, nil
	case "ctrl+j":
		v.viewport.ScrollDown(1)
		return v, nil
	}

	if v.conv.Waiting() {
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) send() tea.Cmd {
	prompt, ok := v.conv.Begin(v.input.Value())
	if !ok {
		return nil
	}
	v.input.SetValue("")
	v.err = nil
	v.refresh()
	v.viewport.End()

	conv := v.conv
	client := v.client
	dbID := v.store.ConnectedDatabaseID()
	return tea.Batch(v.spinner.Tick, func() tea.Msg {
		reply, err := client.Ask(context.Background(), dbID, prompt)
		if err != nil {
			applog.Error("chat: %v", err)
		}
		conv.Finish(reply, err)
		return ChatReplyMsg{Err: err}
	})
}

func (v *ChatView) refresh() {
	v.viewport.SetContentLines(v.renderChat())
}

func (v *ChatView) renderChat() []string {
	width := v.width - 6
	if width < 20 {
		width = 20
	}
	body := lipgloss.NewStyle().Width(width)

	lines := []string{StyleTitle.Render("AI Assistant"), ""}
	for _, m := range v.conv.Messages() {
		stamp := StyleDimmed.Render(m.At.Format("15:04"))
		if m.Sender == chat.SenderUser {
			lines = append(lines, StyleUserMsg.Render("You")+" "+stamp)
		} else {
			lines = append(lines, StyleBotMsg.Render("Assistant")+" "+stamp)
		}
		for _, l := range strings.Split(body.Render(m.Text), "\n") {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
	}
	if v.conv.Waiting() {
		lines = append(lines, "  "+v.spinner.View()+StyleDimmed.Render(" Thinking..."))
	}
	return lines
}

func (v *ChatView) View() string {
	prompt := v.input.View()
	if v.conv.Waiting() {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render("waiting for response...")
	}

	sections := []string{v.viewport.Render()}
	if v.err != nil {
		sections = append(sections, StyleError.Render("✗ "+apperr.UserMessage(v.err)))
	}
	sections = append(sections, prompt)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

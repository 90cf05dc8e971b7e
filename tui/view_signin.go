// view_signin.go is the first screen when no session token is stored.
//
// It has two modes sharing one form: sign in (email, password) and
// create account (username, email, password). Ctrl+T switches modes.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
)

const (
	inputUsername = iota
	inputEmail
	inputPassword
	inputCount
)

var signInLabels = [inputCount]string{"Username", "Email", "Password"}

// SignInView collects credentials.
type SignInView struct {
	client *api.Client
	inputs [inputCount]textinput.Model
	focus  int
	signup bool
	busy   bool
	err    error
	notice string
	width  int
	height int
}

func NewSignInView(client *api.Client) *SignInView {
	v := &SignInView{client: client}
	for i := range v.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 32
		v.inputs[i] = ti
	}
	v.inputs[inputEmail].Placeholder = "you@example.com"
	v.inputs[inputPassword].EchoMode = textinput.EchoPassword
	v.inputs[inputPassword].EchoCharacter = '•'
	v.focus = inputEmail
	v.inputs[inputEmail].Focus()
	return v
}

func (v *SignInView) Name() string         { return "Sign in" }
func (v *SignInView) WantsTextInput() bool { return true }

func (v *SignInView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *SignInView) ShortHelp() []KeyBinding {
	toggle := "create account"
	if v.signup {
		toggle = "sign in instead"
	}
	return []KeyBinding{
		{Key: "Tab/↑/↓", Desc: "field"},
		{Key: "Enter", Desc: "submit"},
		{Key: "Ctrl+T", Desc: toggle},
	}
}

func (v *SignInView) Init() tea.Cmd { return textinput.Blink }

// Expired resets the form after the backend rejected the session.
func (v *SignInView) Expired(message string) {
	v.busy = false
	v.err = nil
	v.notice = message
	v.inputs[inputPassword].SetValue("")
	v.setFocus(inputEmail)
}

func (v *SignInView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case SignedInMsg:
		v.busy = false
		v.err = msg.Err
		if msg.Err == nil {
			v.notice = ""
			v.inputs[inputPassword].SetValue("")
		}
		return v, nil

	case SignedUpMsg:
		v.busy = false
		v.err = msg.Err
		if msg.Err == nil {
			v.signup = false
			v.notice = "Account created. Please sign in."
			v.inputs[inputEmail].SetValue(msg.Email)
			v.inputs[inputPassword].SetValue("")
			v.setFocus(inputPassword)
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return v, cmd
}

func (v *SignInView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "ctrl+t":
		v.signup = !v.signup
		v.err = nil
		v.notice = ""
		if v.signup {
			v.setFocus(inputUsername)
		} else {
			v.setFocus(inputEmail)
		}
		return v, nil

	case "tab", "down":
		v.setFocus(v.nextField(1))
		return v, nil

	case "shift+tab", "up":
		v.setFocus(v.nextField(-1))
		return v, nil

	case "enter":
		if v.focus != inputPassword {
			v.setFocus(v.nextField(1))
			return v, nil
		}
		return v, v.submit()
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return v, cmd
}

// nextField cycles through the fields of the current mode.
func (v *SignInView) nextField(dir int) int {
	first := inputEmail
	if v.signup {
		first = inputUsername
	}
	n := inputCount - first
	return first + ((v.focus-first+dir)%n+n)%n
}

func (v *SignInView) setFocus(i int) {
	v.inputs[v.focus].Blur()
	v.focus = i
	v.inputs[i].Focus()
}

func (v *SignInView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	email := v.inputs[inputEmail].Value()
	password := v.inputs[inputPassword].Value()
	username := v.inputs[inputUsername].Value()

	// Validation failures never leave the form.
	if email == "" || password == "" || (v.signup && username == "") {
		v.err = apperr.Validation("Please fill in all required fields.")
		return nil
	}

	v.busy = true
	v.err = nil
	client := v.client
	if v.signup {
		req := api.SignupRequest{UserName: username, Email: email, Password: password}
		return func() tea.Msg {
			err := client.Signup(context.Background(), req)
			return SignedUpMsg{Email: email, Err: err}
		}
	}
	return func() tea.Msg {
		_, err := client.Login(context.Background(), email, password)
		return SignedInMsg{Err: err}
	}
}

func (v *SignInView) View() string {
	title := "Sign in to OnyxPrism"
	if v.signup {
		title = "Create your OnyxPrism account"
	}

	lines := []string{StyleTitle.Render(title)}
	first := inputEmail
	if v.signup {
		first = inputUsername
	}
	for i := first; i < inputCount; i++ {
		label := lipgloss.NewStyle().Width(12).Foreground(ColorDim).Render(signInLabels[i])
		if i == v.focus {
			label = lipgloss.NewStyle().Width(12).Foreground(ColorAccent).Bold(true).Render("▸ " + signInLabels[i])
		}
		lines = append(lines, label+" "+v.inputs[i].View())
	}
	lines = append(lines, "")

	switch {
	case v.busy:
		lines = append(lines, StyleDimmed.Render("⏳ contacting server..."))
	case v.err != nil:
		lines = append(lines, StyleError.Render("✗ "+apperr.UserMessage(v.err)))
	case v.notice != "":
		lines = append(lines, StyleWarning.Render(v.notice))
	}

	box := StyleBorder.Padding(1, 3).BorderForeground(ColorAccent).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	return lipgloss.NewStyle().
		Width(v.width).
		Height(v.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(box)
}

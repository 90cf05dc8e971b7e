package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/onyxprism/prism/apperr"
)

func terminal(v interface{}) (*os.File, bool) {
	f, ok := v.(*os.File)
	return f, ok && term.IsTerminal(int(f.Fd()))
}

// withSpinner runs fn while a spinner is shown on stderr. Nothing is
// drawn when stderr is not a terminal.
func withSpinner(cmd *cobra.Command, label string, fn func() error) error {
	f, ok := terminal(cmd.ErrOrStderr())
	if !ok {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + label
	s.Start()
	err := fn()
	s.Stop()
	return err
}

// readPassword returns value when set, otherwise prompts without echo on
// a terminal or reads one line from stdin.
func readPassword(cmd *cobra.Command, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if f, ok := terminal(cmd.InOrStdin()); ok {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

// connectedDB returns the selected database id or the validation error
// every database-scoped operation reports.
func (a *app) connectedDB() (string, error) {
	id := a.store.ConnectedDatabaseID()
	if id == "" {
		return "", apperr.Validation("Please connect a database first.")
	}
	return id, nil
}

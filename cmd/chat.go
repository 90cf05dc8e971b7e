package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/chat"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask the BI assistant about the connected database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			conv := chat.New()
			var sent bool
			err := withSpinner(cmd, "Thinking...", func() error {
				var err error
				sent, err = conv.Send(cmd.Context(), a.client, a.store.ConnectedDatabaseID(), strings.Join(args, " "))
				return err
			})
			if !sent {
				return apperr.Validation("Please enter a question.")
			}
			msgs := conv.Messages()
			if last := msgs[len(msgs)-1]; last.Sender == chat.SenderBot {
				fmt.Fprintln(cmd.OutOrStdout(), last.Text)
			}
			return err
		},
	}
}

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/apperr"
)

func newDBsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dbs",
		Short: "List and select connected databases",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List databases registered with the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			dbs, err := a.client.ConnectedDatabases(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dbs) == 0 {
				fmt.Fprintln(out, "No databases connected. Run 'prism onboard' to add one.")
				return nil
			}
			current := a.store.ConnectedDatabaseID()
			rows := make([][]string, 0, len(dbs))
			for _, db := range dbs {
				mark := ""
				if db.DBID == current {
					mark = "*"
				}
				rows = append(rows, []string{mark, db.DBID, db.Database, db.DBType})
			}
			renderTable(out, []string{"", "ID", "DATABASE", "TYPE"}, rows)
			return nil
		},
	}

	use := &cobra.Command{
		Use:   "use <db-id>",
		Short: "Select the database KPI, chart and chat commands work on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			dbs, err := a.client.ConnectedDatabases(cmd.Context())
			if err != nil {
				return err
			}
			for i := range dbs {
				if dbs[i].DBID == args[0] {
					if err := a.store.SetConnectedDatabase(&dbs[i]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s.\n", dbs[i].Database)
					return nil
				}
			}
			return apperr.Newf(apperr.KindValidation, "no connected database with id %q", args[0])
		},
	}

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Clear the selected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := appFrom(cmd).store.SetConnectedDatabase(nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
			return nil
		},
	}

	cmd.AddCommand(list, use, disconnect)
	return cmd
}

func newSchemasCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Show the schemas extracted for the connected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			dbID, err := a.connectedDB()
			if err != nil {
				return err
			}
			schemas, err := a.client.ExtractedSchemas(cmd.Context(), dbID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(schemas)
			}
			if len(schemas) == 0 {
				fmt.Fprintln(out, "No schemas extracted yet.")
				return nil
			}
			names := make([]string, 0, len(schemas))
			for name := range schemas {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				var buf bytes.Buffer
				if err := json.Indent(&buf, schemas[name], "  ", "  "); err != nil {
					buf.Reset()
					buf.Write(schemas[name])
				}
				fmt.Fprintf(out, "%s\n  %s\n", name, buf.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

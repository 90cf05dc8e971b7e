package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/kpi"
)

func newKPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Show and create KPIs for the connected database",
	}
	cmd.AddCommand(newKPIListCmd(), newKPICreateCmd())
	return cmd
}

func newKPIListCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Evaluate and print every KPI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			dbID := a.store.ConnectedDatabaseID()
			var p *kpi.Page
			err := withSpinner(cmd, "Loading KPIs...", func() error {
				var err error
				p, err = kpi.NewLoader(a.client).Load(cmd.Context(), dbID)
				return err
			})
			if err != nil {
				return err
			}
			if dbID == "" && p.State != kpi.StateNoDatabases {
				fmt.Fprintln(cmd.OutOrStdout(), "No database selected. Run 'prism dbs use <id>' first.")
				return nil
			}
			st := kpi.PageState{CurrentPage: page, PageSize: pageSize}
			printKPIPage(cmd, p, st)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "table page to show")
	cmd.Flags().IntVar(&pageSize, "page-size", kpi.DefaultPageState.PageSize, "rows per table page")
	return cmd
}

func printKPIPage(cmd *cobra.Command, p *kpi.Page, st kpi.PageState) {
	out := cmd.OutOrStdout()
	switch p.State {
	case kpi.StateNoDatabases:
		fmt.Fprintln(out, "No databases connected. Run 'prism onboard' to start tracking KPIs.")
		return
	case kpi.StateEmpty:
		msg := p.Message
		if msg == "" {
			msg = "No KPI data available"
		}
		fmt.Fprintln(out, msg)
		return
	}

	for _, k := range p.KPIs {
		title := strings.ReplaceAll(k.Name, "_", " ")
		switch {
		case len(k.Result) == 0:
			fmt.Fprintf(out, "%s\n  no rows\n\n", title)
		case kpi.LayoutFor(k) == kpi.LayoutCard:
			item := k.Result[0]
			fmt.Fprintf(out, "%s\n  %s: %s\n\n", title, kpi.DisplayLabel(item, k.Name), kpi.FormatCurrency(kpi.NumericValue(item)))
		default:
			headers := kpi.TableHeaders(k.Result)
			var rows [][]string
			for _, item := range kpi.Paginate(k.Result, st) {
				row := make([]string, len(headers))
				for i, h := range headers {
					row[i] = kpi.FormatCell(item, h)
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, title)
			renderTable(out, headers, rows)
			first, last := st.Range(len(k.Result))
			fmt.Fprintf(out, "Showing %d to %d of %d (page %d of %d)\n\n",
				first, last, len(k.Result), st.CurrentPage, kpi.TotalPages(len(k.Result), st.PageSize))
		}
	}
}

func newKPICreateCmd() *cobra.Command {
	var k kpi.NewKPI
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a KPI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			dbID, err := a.connectedDB()
			if err != nil {
				return err
			}
			if err := kpi.NewLoader(a.client).Create(cmd.Context(), dbID, k); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "KPI created successfully!")
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&k.Name, "name", "", "KPI name")
	fl.StringVar(&k.Formula, "formula", "", "formula, e.g. SUM(total)")
	fl.StringVar(&k.Description, "description", "", "what the KPI measures")
	fl.StringVar(&k.FormulaType, "type", kpi.FormulaTypes[0], "formula type: "+strings.Join(kpi.FormulaTypes, ", "))
	return cmd
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/viz"
)

func newChartsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charts",
		Short: "List, pin and inspect visualizations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pinned and recommended charts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			charts, err := fetchCharts(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(charts) == 0 {
				fmt.Fprintln(out, "No visualizations available for this database yet.")
				return nil
			}
			pinned, recommended := viz.Partition(charts)
			for _, section := range []struct {
				title  string
				charts []viz.Chart
			}{{"Pinned", pinned}, {"Recommended", recommended}} {
				fmt.Fprintf(out, "%s (%d)\n", section.title, len(section.charts))
				rows := make([][]string, 0, len(section.charts))
				for _, c := range section.charts {
					rows = append(rows, []string{c.ID, c.Title(), strings.Join(viz.SeriesKinds(c.Option), ", ")})
				}
				renderTable(out, []string{"ID", "TITLE", "SERIES"}, rows)
			}
			return nil
		},
	}

	pin := &cobra.Command{
		Use:   "pin <chart-id>",
		Short: "Pin a recommended chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			dbID, err := a.connectedDB()
			if err != nil {
				return err
			}
			if err := a.client.PinVisualization(cmd.Context(), dbID, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Visualization pinned successfully!")
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <chart-id>",
		Short: "Print a chart's series and data points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			charts, err := fetchCharts(cmd)
			if err != nil {
				return err
			}
			for _, c := range charts {
				if c.ID == args[0] {
					title, opt := viz.FullScreen(c)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", title, viz.Summary(opt))
					return nil
				}
			}
			return apperr.Newf(apperr.KindValidation, "no chart with id %q", args[0])
		},
	}

	cmd.AddCommand(list, pin, show)
	return cmd
}

func fetchCharts(cmd *cobra.Command) ([]viz.Chart, error) {
	a := appFrom(cmd)
	dbID, err := a.connectedDB()
	if err != nil {
		return nil, err
	}
	var resp *viz.Response
	err = withSpinner(cmd, "Loading charts...", func() error {
		var err error
		resp, err = a.client.Visualizations(cmd.Context(), dbID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp.Charts, nil
}

// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xataio/hwbench/pkg/history"
	"github.com/xataio/hwbench/pkg/report"
)

func historyCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the runs recorded in the history database",
	}

	historyCmd.AddCommand(historyListCmd())
	historyCmd.AddCommand(historyShowCmd())
	historyCmd.AddCommand(historyChartCmd())
	historyCmd.AddCommand(historyDeleteCmd())

	return historyCmd
}

func historyListCmd() *cobra.Command {
	var limit int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				pterm.Info.Println("No runs recorded")
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(summaryTable(runs)).Render()
		},
	}

	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 lists all)")

	return listCmd
}

func summaryTable(runs []history.Summary) pterm.TableData {
	data := pterm.TableData{{"ID", "Started", "Status", "Tests", "Overall", "Rating"}}
	for _, s := range runs {
		overall := "n/a"
		if s.Overall != nil {
			overall = fmt.Sprintf("%.1f", *s.Overall)
		}
		data = append(data, []string{
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			string(s.Status),
			strings.Join(s.Tests, ","),
			overall,
			s.Rating,
		})
	}
	return data
}

func historyShowCmd() *cobra.Command {
	var format string

	showCmd := &cobra.Command{
		Use:       "show <id>",
		Short:     "Print a recorded run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"id"},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			store, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return report.NewWriter(cmd.OutOrStdout(), f).Write(r)
		},
	}

	showCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")

	return showCmd
}

func historyChartCmd() *cobra.Command {
	var output string
	var limit int

	chartCmd := &cobra.Command{
		Use:     "chart",
		Short:   "Render the score history as an HTML chart",
		Example: "history chart --output history.html",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			reps, err := store.Recent(limit)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating chart file: %w", err)
			}
			if err := history.RenderChart(f, reps); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			pterm.Success.Println(fmt.Sprintf("Chart of %d runs written to %s", len(reps), output))
			return nil
		},
	}

	chartCmd.Flags().StringVarP(&output, "output", "o", "history.html", "HTML file to write")
	chartCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Chart only the most recent runs (0 charts all)")

	return chartCmd
}

func historyDeleteCmd() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:       "delete <id>",
		Short:     "Delete a recorded run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"id"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			pterm.Success.Println(fmt.Sprintf("Run %s deleted", args[0]))
			return nil
		},
	}

	return deleteCmd
}

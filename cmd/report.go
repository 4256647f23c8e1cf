// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xataio/hwbench/pkg/report"
)

func reportCmd() *cobra.Command {
	var format string

	reportCmd := &cobra.Command{
		Use:       "report <file>",
		Short:     "Render an exported report",
		Example:   "report result.json --format text",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"file"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readReportFile(args[0])
			if err != nil {
				return err
			}

			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return report.NewWriter(cmd.OutOrStdout(), f).Write(r)
		},
	}

	reportCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")

	return reportCmd
}

// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/xataio/hwbench/pkg/report"
)

func baselineCmd() *cobra.Command {
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage the reference baselines used for scoring",
	}

	baselineCmd.AddCommand(baselineRecordCmd())
	baselineCmd.AddCommand(baselineShowCmd())

	return baselineCmd
}

func baselineRecordCmd() *cobra.Command {
	var output string
	var force bool

	recordCmd := &cobra.Command{
		Use:       "record <report file>",
		Short:     "Derive baselines from the report of a reference machine",
		Example:   "baseline record reference.json --output baselines.yaml",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"file"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readReportFile(args[0])
			if err != nil {
				return err
			}
			if r.RawMetrics.Len() == 0 {
				return fmt.Errorf("report %s has no measurements", r.ID)
			}

			if _, err := os.Stat(output); err == nil && !force {
				pterm.Warning.Println(fmt.Sprintf("%s already exists and will be overwritten.", output))
				ok, _ := pterm.DefaultInteractiveConfirm.Show()
				if !ok {
					return nil
				}
			}

			base, err := loadBaselines()
			if err != nil {
				return err
			}
			b := base.Recalibrate(r.RawMetrics, baselineSource(r))
			if err := b.WriteFile(output); err != nil {
				return fmt.Errorf("writing baselines: %w", err)
			}

			pterm.Success.Println(fmt.Sprintf("Baselines from run %s written to %s", r.ID, output))
			return nil
		},
	}

	recordCmd.Flags().StringVarP(&output, "output", "o", "baselines.yaml", "Baselines file to write")
	recordCmd.Flags().BoolVar(&force, "force", false, "Overwrite the output file without asking")

	return recordCmd
}

func baselineSource(r *report.Report) string {
	if r.System != nil && r.System.Hostname != "" {
		return fmt.Sprintf("%s (run %s)", r.System.Hostname, r.ID)
	}
	return "run " + r.ID
}

func baselineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the baselines in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBaselines()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(b)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:       "validate <file>",
	Short:     "Validate a benchmark configuration file",
	Example:   "validate bench.yaml",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"file"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		tests := make([]string, 0, len(cfg.Tests))
		for _, k := range cfg.Tests {
			tests = append(tests, k.String())
		}
		pterm.Success.Println(fmt.Sprintf("%s is valid: tests %s, %s per test, %d trials",
			args[0], strings.Join(tests, ","), cfg.Duration, cfg.Trials))
		if cfg.Selected(bench.KindDisk) && cfg.Disk.FileSize > 0 {
			pterm.Info.Println(fmt.Sprintf("disk scratch file of %s", cfg.Disk.FileSize))
		}
		return nil
	},
}

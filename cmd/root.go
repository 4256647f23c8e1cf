// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xataio/hwbench/cmd/flags"
)

// Version is the hwbench version, set at build time
var Version = "development"

func defaultHistoryDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hwbench", "history")
	}
	return filepath.Join(dir, "hwbench", "history")
}

// Prepare builds the root command with every subcommand registered.
func Prepare() *cobra.Command {
	viper.SetEnvPrefix("HWBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "hwbench",
		Short:        "Benchmark the CPU, memory and disk of this machine",
		Long:         "hwbench measures CPU, memory and disk performance, scores the results against reference baselines and keeps a local history of runs.",
		SilenceUsage: true,
		Version:      Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if flags.Verbose() {
				pterm.DefaultLogger.Level = pterm.LogLevelDebug
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("history-dir", defaultHistoryDir(), "Directory of the run history database")
	rootCmd.PersistentFlags().String("baselines", "", "Baselines file used for scoring (defaults to the built-in baselines)")

	viper.BindPFlag("VERBOSE", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("HISTORY_DIR", rootCmd.PersistentFlags().Lookup("history-dir"))
	viper.BindPFlag("BASELINES", rootCmd.PersistentFlags().Lookup("baselines"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sysinfoCmd())

	return rootCmd
}

// Execute executes the root command.
func Execute() error {
	return Prepare().Execute()
}

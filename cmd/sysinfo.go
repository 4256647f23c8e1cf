// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xataio/hwbench/internal/sysinfo"
)

func sysinfoCmd() *cobra.Command {
	var useJSON bool

	sysinfoCmd := &cobra.Command{
		Use:   "sysinfo",
		Short: "Print the host facts recorded in reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := sysinfo.NewHost().Collect(cmd.Context())
			if err != nil {
				return err
			}

			if useJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			return pterm.DefaultTable.WithData(sysinfoTable(info)).Render()
		},
	}

	sysinfoCmd.Flags().BoolVar(&useJSON, "json", false, "Print as JSON")

	return sysinfoCmd
}

func sysinfoTable(info sysinfo.Info) pterm.TableData {
	cpus := fmt.Sprintf("%d logical", info.LogicalCPUs)
	if info.PhysicalCPUs > 0 {
		cpus = fmt.Sprintf("%d physical, %d logical", info.PhysicalCPUs, info.LogicalCPUs)
	}
	freq := "unknown"
	if info.CPUMaxMHz > 0 {
		freq = fmt.Sprintf("%.0f MHz", info.CPUMaxMHz)
	}
	platform := info.OS
	if info.Platform != "" {
		platform = fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.OS)
	}

	return pterm.TableData{
		{"Host", info.Hostname},
		{"CPU", info.CPUModel},
		{"CPU Cores", cpus},
		{"Max Frequency", freq},
		{"Total RAM", units.BytesSize(float64(info.MemoryTotal))},
		{"Available RAM", units.BytesSize(float64(info.MemoryAvailable))},
		{"Operating System", platform},
		{"Architecture", info.Arch},
		{"Go", info.GoVersion},
	}
}

// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/viper"
)

func Verbose() bool {
	return viper.GetBool("VERBOSE")
}

func HistoryDir() string {
	return viper.GetString("HISTORY_DIR")
}

func NoHistory() bool {
	return viper.GetBool("NO_HISTORY")
}

func BaselinesFile() string {
	return viper.GetString("BASELINES")
}

func ScratchDir() string {
	return viper.GetString("SCRATCH_DIR")
}

func MetricsAddr() string { return viper.GetString("METRICS_ADDR") }

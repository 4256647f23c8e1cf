// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"context"

	"github.com/xataio/hwbench/internal/sysinfo"
)

// Test is a single subsystem benchmark. Run returns ctx.Err() when it
// observes cancellation; any metric gathered so far is discarded.
type Test interface {
	Kind() Kind
	Run(ctx context.Context, progress ProgressFn) (RawMetric, error)
}

// Resources reports how much memory and disk space a test may claim.
type Resources interface {
	AvailableMemory(ctx context.Context) (uint64, error)
	FreeDiskSpace(ctx context.Context, path string) (uint64, error)
}

// HostResources returns Resources backed by the running host.
func HostResources() Resources {
	return sysinfo.NewHost()
}

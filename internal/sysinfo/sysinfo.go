// SPDX-License-Identifier: Apache-2.0

// Package sysinfo reads host facts recorded alongside benchmark results and
// the resource headroom the memory and disk tests check before running.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info describes the machine a benchmark ran on.
type Info struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platform_version,omitempty"`
	Arch            string  `json:"arch"`
	GoVersion       string  `json:"go_version"`
	CPUModel        string  `json:"cpu_model,omitempty"`
	LogicalCPUs     int     `json:"logical_cpus"`
	PhysicalCPUs    int     `json:"physical_cpus,omitempty"`
	CPUMaxMHz       float64 `json:"cpu_max_mhz,omitempty"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryAvailable uint64  `json:"memory_available"`
}

type Host struct{}

func NewHost() *Host {
	return &Host{}
}

// Collect gathers host facts. Only the memory figures are mandatory; missing
// CPU or platform details are left empty.
func (h *Host) Collect(ctx context.Context) (Info, error) {
	info := Info{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		GoVersion:   runtime.Version(),
		LogicalCPUs: runtime.NumCPU(),
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("reading memory statistics: %w", err)
	}
	info.MemoryTotal = vm.Total
	info.MemoryAvailable = vm.Available

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
	}

	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCPUs = n
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		for _, c := range cpus {
			info.CPUMaxMHz = max(info.CPUMaxMHz, c.Mhz)
		}
	}

	return info, nil
}

// AvailableMemory returns the memory that can be claimed without swapping.
func (h *Host) AvailableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading memory statistics: %w", err)
	}
	return vm.Available, nil
}

// FreeDiskSpace returns the bytes available to unprivileged users on the
// filesystem holding path.
func (h *Host) FreeDiskSpace(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("reading disk usage of %s: %w", path, err)
	}
	return usage.Free, nil
}

// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/xataio/hwbench/pkg/bench"
)

const textTitle = "Hardware Benchmark Results"

// textWriter accumulates the first write error so the layout code below
// can stay linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("%s:\n%s\n", title, strings.Repeat("-", len(title)+1))
}

func writeText(w io.Writer, r *Report) error {
	t := &textWriter{w: w}

	t.printf("%s\n%s\n", textTitle, strings.Repeat("=", 60))
	t.printf("Run: %s\n", r.ID)
	t.printf("Generated: %s\n", r.StartedAt.Local().Format(time.DateTime))
	t.printf("Status: %s\n", r.Status)
	if d := r.Duration(); d > 0 {
		t.printf("Duration: %s\n", d.Round(time.Millisecond))
	}
	t.printf("\n")

	if r.System != nil {
		t.section("System Information")
		t.printf("Host: %s\n", r.System.Hostname)
		if r.System.CPUModel != "" {
			t.printf("CPU: %s\n", r.System.CPUModel)
		}
		t.printf("CPU Cores: %d\n", r.System.LogicalCPUs)
		if r.System.CPUMaxMHz > 0 {
			t.printf("CPU Max Frequency: %.0f MHz\n", r.System.CPUMaxMHz)
		}
		t.printf("Total RAM: %s\n", units.BytesSize(float64(r.System.MemoryTotal)))
		t.printf("Operating System: %s/%s\n\n", r.System.OS, r.System.Arch)
	}

	for _, k := range r.RawMetrics.Kinds() {
		m, _ := r.RawMetrics.Get(k)
		sub, _ := r.SubScores.Get(k)
		t.section(k.Title() + " Benchmark Results")
		switch {
		case m.CPU != nil:
			t.printf("Iterations: %d\n", m.CPU.Iterations)
			t.printf("Primes per Iteration: %d\n", m.CPU.PrimesPerIteration)
			t.printf("Ops/Second: %.1f\n", m.CPU.OpsPerSecond)
		case m.Memory != nil:
			t.printf("Tiers: %s\n", tierList(m.Memory.Tiers))
			t.printf("Write Speed: %.1f MB/s\n", m.Memory.WriteMBps)
			t.printf("Read Speed: %.1f MB/s\n", m.Memory.ReadMBps)
			t.printf("Chunk Latency: %s\n", m.Memory.Latency)
			t.printf("Allocations/Second: %.0f\n", m.Memory.AllocsPerSec)
		case m.Disk != nil:
			t.printf("Test Size: %s\n", units.BytesSize(float64(m.Disk.FileSize)))
			t.printf("Write Speed: %.1f MB/s\n", m.Disk.WriteMBps)
			t.printf("Read Speed: %.1f MB/s\n", m.Disk.ReadMBps)
			t.printf("Random Access: %.0f ops/sec\n", m.Disk.IOPS)
		}
		t.printf("%s Score: %.1f\n\n", k.Title(), sub.Value)
	}

	for _, k := range r.Config.Tests {
		if !r.RawMetrics.Has(k) {
			t.printf("%s\n", missingResult(k))
		}
	}
	if r.Failure != nil {
		t.section("Failure")
		t.printf("Test: %s\nFault: %s\nReason: %s\n\n", r.Failure.Kind, r.Failure.Fault, r.Failure.Reason)
	}

	t.section("Overall Results")
	if v, ok := r.Overall(); ok {
		rating, _ := r.RatingValue()
		t.printf("Overall Score: %.1f\n", v)
		t.printf("Performance Rating: %s\n", rating)
	} else {
		t.printf("Overall Score: n/a\n")
		t.printf("Performance Rating: n/a\n")
	}
	return t.err
}

func tierList(tiers []int64) string {
	names := make([]string, 0, len(tiers))
	for _, size := range tiers {
		names = append(names, units.BytesSize(float64(size)))
	}
	return strings.Join(names, ", ")
}

func missingResult(k bench.Kind) string {
	return fmt.Sprintf("%s: not run", k.Title())
}

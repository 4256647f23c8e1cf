// SPDX-License-Identifier: Apache-2.0

// Package benchmarks records Go benchmark results of the raw workloads as
// JSON lines, one line per commit, for charting by benchmark-results.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

// Reports is the set of results collected for a single commit.
type Reports struct {
	mu        sync.Mutex
	GitSHA    string
	GoVersion string
	Arch      string
	Timestamp int64
	Reports   []Report
}

// Report is one benchmark result. Size is the workload size in bytes, 0 for
// workloads without one.
type Report struct {
	Name   string
	Size   int64
	Unit   string
	Result float64
}

func (r *Reports) AddReport(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, report)
}

func newReports() *Reports {
	return &Reports{
		GitSHA:    os.Getenv("GITHUB_SHA"),
		GoVersion: runtime.Version(),
		Arch:      runtime.GOARCH,
		Timestamp: time.Now().Unix(),
		Reports:   []Report{},
	}
}

// appendTo writes the reports as a single JSON line at the end of path.
func (r *Reports) appendTo(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding reports: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening results file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing results file: %w", err)
	}
	return f.Close()
}

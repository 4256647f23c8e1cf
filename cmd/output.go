// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/xataio/hwbench/cmd/flags"
	"github.com/xataio/hwbench/pkg/history"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/score"
)

// loadBaselines returns the baselines named by --baselines, or the built-in
// ones.
func loadBaselines() (score.Baselines, error) {
	path := flags.BaselinesFile()
	if path == "" {
		return score.DefaultBaselines(), nil
	}
	return score.LoadBaselines(path)
}

func openHistory(ctx context.Context) (*history.Store, error) {
	cfg := history.DefaultConfig(flags.HistoryDir())
	if flags.Verbose() {
		cfg.Logger = &pterm.DefaultLogger
	}
	return history.Open(ctx, cfg)
}

// resolveFormat picks the export format from an explicit name, then from the
// file extension, falling back to text.
func resolveFormat(name, path string) (report.Format, error) {
	if name != "" {
		return report.ParseFormat(name)
	}
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		if f, err := report.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return report.TextFormat, nil
}

func writeReportFile(path string, f report.Format, r *report.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := report.NewWriter(file, f).Write(r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readReportFile(path string) (*report.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report file: %w", err)
	}
	defer file.Close()
	return report.Read(file)
}

// printSummary renders the per-test scores and the overall result.
func printSummary(r *report.Report) error {
	data := pterm.TableData{{"Test", "Measurement", "Value", "Baseline", "Score"}}
	for _, k := range r.SubScores.Kinds() {
		sub, _ := r.SubScores.Get(k)
		for i, c := range sub.Components {
			row := []string{"", c.Name, fmt.Sprintf("%.1f", c.Measured), fmt.Sprintf("%.1f", c.Baseline), ""}
			if i == 0 {
				row[0] = k.Title()
				row[4] = fmt.Sprintf("%.1f", sub.Value)
			}
			data = append(data, row)
		}
	}
	if len(data) > 1 {
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	overall := "n/a"
	if v, ok := r.Overall(); ok {
		rating, _ := r.RatingValue()
		overall = fmt.Sprintf("%.1f (%s)", v, rating)
	}
	pterm.Println(fmt.Sprintf("Status: %s   Overall score: %s   Duration: %s",
		r.Status, overall, r.Duration().Round(time.Millisecond)))
	if r.Failure != nil {
		pterm.Error.Println(fmt.Sprintf("%s test failed (%s): %s", r.Failure.Kind.Title(), r.Failure.Fault, r.Failure.Reason))
	}
	return nil
}

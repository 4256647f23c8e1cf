// SPDX-License-Identifier: Apache-2.0

package history

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/report"
)

// RenderChart writes an HTML page with the score trend of reps. Reports may
// be given in any order; they are plotted by start time.
func RenderChart(w io.Writer, reps []*report.Report) error {
	page := components.NewPage()
	page.SetPageTitle("hwbench score history")
	page.SetLayout("flex")
	page.AddCharts(scoreChart(reps))
	for _, k := range bench.Kinds {
		if c := rateChart(reps, k); c != nil {
			page.AddCharts(c)
		}
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

func byStart(reps []*report.Report) []*report.Report {
	sorted := slices.Clone(reps)
	slices.SortFunc(sorted, func(a, b *report.Report) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return sorted
}

func xAxis(reps []*report.Report) []string {
	xs := make([]string, len(reps))
	for i, r := range reps {
		xs[i] = r.StartedAt.Local().Format(time.DateTime)
	}
	return xs
}

// scoreChart plots the overall score and every sub-score. Runs without a
// value leave a gap in the series.
func scoreChart(reps []*report.Report) *charts.Line {
	reps = byStart(reps)

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Scores"}),
		charts.WithAnimation(false))
	chart.SetXAxis(xAxis(reps))

	overall := make([]opts.LineData, len(reps))
	for i, r := range reps {
		if v, ok := r.Overall(); ok {
			overall[i] = opts.LineData{Value: v}
		} else {
			overall[i] = opts.LineData{Value: "-"}
		}
	}
	chart.AddSeries("overall", overall)

	for _, k := range bench.Kinds {
		data := make([]opts.LineData, len(reps))
		seen := false
		for i, r := range reps {
			if sub, ok := r.SubScores.Get(k); ok {
				data[i] = opts.LineData{Value: sub.Value}
				seen = true
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		if seen {
			chart.AddSeries(k.String(), data)
		}
	}
	return chart
}

// rateChart plots the measured figures of one kind, or returns nil when no
// report has them.
func rateChart(reps []*report.Report, k bench.Kind) *charts.Line {
	reps = byStart(reps)

	var names []string
	series := map[string][]opts.LineData{}
	seen := false
	for i, r := range reps {
		sub, ok := r.SubScores.Get(k)
		for _, c := range sub.Components {
			if !slices.Contains(names, c.Name) {
				names = append(names, c.Name)
				series[c.Name] = make([]opts.LineData, len(reps))
				for j := range series[c.Name] {
					series[c.Name][j] = opts.LineData{Value: "-"}
				}
			}
			series[c.Name][i] = opts.LineData{Value: c.Measured}
		}
		seen = seen || ok
	}
	if !seen {
		return nil
	}

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: k.Title() + " measurements"}),
		charts.WithAnimation(false))
	chart.SetXAxis(xAxis(reps))
	for _, name := range names {
		chart.AddSeries(name, series[name])
	}
	return chart
}

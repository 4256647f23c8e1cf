// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/xataio/hwbench/internal/benchmarks"
)

// This will generate line charts displaying workload benchmark results over time. Each set of
// charts applies to a single Go version and architecture.

func main() {
	input := mustEnv("FILENAME_BENCHMARK_RESULTS")
	output := mustEnv("FILENAME_BENCHMARK_OUTPUT")

	log.Println("Loading data")
	reports, err := loadData(input)
	if err != nil {
		log.Fatalf("Loading data: %v", err)
	}
	log.Printf("Loaded %d reports", len(reports))

	log.Println("Generating charts")
	allCharts := generateCharts(reports)

	page := components.NewPage()
	page.SetPageTitle("hwbench workload benchmark results")
	page.SetLayout("flex")

	for _, c := range allCharts {
		page.AddCharts(c)
	}

	f, err := os.Create(output)
	if err != nil {
		log.Fatalf("Creating output file: %v", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Fatalf("Closing output file: %v", err)
		}
	}()

	if err := page.Render(f); err != nil {
		log.Fatalf("Rendering: %s", err)
	}
}

type dataKey struct {
	platform      string
	benchmarkName string
	size          int64
	sha           string
}

type chartKey struct {
	platform      string
	benchmarkName string
}

// generateCharts will generate charts grouped by platform and benchmark with series for each
// workload size
func generateCharts(reports []*benchmarks.Reports) []*charts.Line {
	// Time data for each sha so we can order them later
	timeOrder := make(map[string]int64) // shortSHA -> timestamp

	// results grouped by dataKey
	groupedData := make(map[dataKey]float64)
	chartUnits := make(map[chartKey]string)

	// set of possible sizes
	sizes := make(map[int64]struct{})

	for _, group := range reports {
		short := shortSHA(group.GitSHA)
		timeOrder[short] = group.Timestamp
		platform := group.GoVersion + " " + group.Arch
		for _, report := range group.Reports {
			key := dataKey{
				platform:      platform,
				benchmarkName: chartName(report),
				sha:           short,
				size:          report.Size,
			}
			groupedData[key] = report.Result
			chartUnits[chartKey{platform: platform, benchmarkName: key.benchmarkName}] = report.Unit
			sizes[report.Size] = struct{}{}
		}
	}

	// Create x-axis for each chart
	xs := make(map[chartKey][]string)
	for d := range groupedData {
		ck := chartKey{platform: d.platform, benchmarkName: d.benchmarkName}
		xs[ck] = append(xs[ck], d.sha)
	}
	// Sort and deduplicate xs in time order
	for key, x := range xs {
		slices.Sort(x)
		x = slices.Compact(x)
		slices.SortFunc(x, func(a, b string) int {
			return cmp.Compare(timeOrder[a], timeOrder[b])
		})
		xs[key] = x
	}

	allCharts := make([]*charts.Line, 0, len(xs))

	sortedSizes := slices.Collect(maps.Keys(sizes))
	slices.Sort(sortedSizes)

	for ck, xValues := range xs {
		chart := charts.NewLine()
		chart.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    fmt.Sprintf("%s (%s)", ck.benchmarkName, ck.platform),
				Subtitle: chartUnits[ck],
			}),
			charts.WithAnimation(false))
		chart.SetXAxis(xValues)

		series := make(map[int64][]opts.LineData) // size -> results

		for _, x := range xValues {
			for size := range sizes {
				dk := dataKey{
					platform:      ck.platform,
					benchmarkName: ck.benchmarkName,
					size:          size,
					sha:           x,
				}
				value, ok := groupedData[dk]
				if !ok {
					continue
				}
				series[size] = append(series[size], opts.LineData{Value: value})
			}
		}

		for _, size := range sortedSizes {
			data, ok := series[size]
			if !ok {
				continue
			}
			chart.AddSeries(seriesName(size), data)
		}

		allCharts = append(allCharts, chart)
	}

	sort.Slice(allCharts, func(i, j int) bool {
		return allCharts[i].Title.Title < allCharts[j].Title.Title
	})

	return allCharts
}

func loadData(filename string) (allReports []*benchmarks.Reports, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)

	// Each line represents a collection of results from a single commit
	for scanner.Scan() {
		reports := &benchmarks.Reports{}
		if err := json.Unmarshal(scanner.Bytes(), reports); err != nil {
			return nil, fmt.Errorf("unmarshalling reports: %w", err)
		}
		allReports = append(allReports, reports)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning input: %w", err)
	}

	return allReports, err
}

// Sized benchmarks carry the size as a sub-benchmark name. It is plotted as
// a series, so drop it from the chart name.
func chartName(r benchmarks.Report) string {
	parts := strings.Split(strings.TrimPrefix(r.Name, "Benchmark"), "/")
	if r.Size > 0 {
		sizeName := units.BytesSize(float64(r.Size))
		parts = slices.DeleteFunc(parts, func(p string) bool { return p == sizeName })
	}
	return strings.Join(parts, "/")
}

func seriesName(size int64) string {
	if size == 0 {
		return "result"
	}
	return units.BytesSize(float64(size))
}

// First 7 characters
func shortSHA(sha string) string {
	if len(sha) < 7 {
		return sha
	}
	return sha[:7]
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("Missing required environment variable: %q", key)
	}
	return v
}

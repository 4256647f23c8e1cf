// SPDX-License-Identifier: Apache-2.0

package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/internal/metrics"
	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/score"
)

func diskReport(t *testing.T) *report.Report {
	t.Helper()

	r := report.New("run-1", config.Default(), time.Unix(1700000000, 0))
	m := bench.RawMetric{
		Kind: bench.KindDisk,
		Disk: &bench.DiskMetric{WriteMBps: 250, ReadMBps: 750, IOPS: 10000},
		Samples: []bench.Sample{
			{Phase: bench.PhaseSeqWrite, Elapsed: 200 * time.Millisecond},
			{Phase: bench.PhaseSeqRead, Elapsed: 100 * time.Millisecond},
		},
	}
	sub, err := score.New(score.DefaultBaselines()).Score(m)
	require.NoError(t, err)
	require.NoError(t, r.Record(m, sub))
	r.DroppedEvents = 3
	require.NoError(t, r.Finalize(report.StatusCompleted, nil, &score.Overall{Value: sub.Value, Rating: score.RatingFor(sub.Value)}, time.Unix(1700000005, 0)))
	return r
}

func TestObserveReport(t *testing.T) {
	t.Parallel()

	e := metrics.NewExporter()
	r := diskReport(t)
	e.ObserveReport(r)
	e.ObserveReport(r)

	assert.Equal(t, 1.0, gauge(t, e, "hwbench_runs_total", `status="Completed"`))
	assert.InDelta(t, 50.0, gauge(t, e, "hwbench_overall_score", ""), 1e-9)
	assert.InDelta(t, 50.0, gauge(t, e, "hwbench_sub_score", `test="disk"`), 1e-9)
	assert.Equal(t, 750.0, gauge(t, e, "hwbench_measurement", `name="read_mb_per_second",test="disk"`))
	assert.Equal(t, 3.0, gauge(t, e, "hwbench_dropped_progress_events_total", ""))
	assert.Equal(t, 1700000000.0, gauge(t, e, "hwbench_last_run_timestamp_seconds", ""))
	n, err := testutil.GatherAndCount(e.Registry(), "hwbench_trial_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestObserveReportIgnoresRunningReports(t *testing.T) {
	t.Parallel()

	e := metrics.NewExporter()
	e.ObserveReport(report.New("running", config.Default(), time.Now()))
	n, err := testutil.GatherAndCount(e.Registry(), "hwbench_runs_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestObserveEvent(t *testing.T) {
	t.Parallel()

	e := metrics.NewExporter()
	e.ObserveEvent(bench.ProgressEvent{Kind: bench.KindCPU, Stage: bench.StageStarted})
	assert.Zero(t, gauge(t, e, "hwbench_test_progress_ratio", `test="cpu"`))

	e.ObserveEvent(bench.ProgressEvent{Kind: bench.KindCPU, Stage: bench.StageProgress, Fraction: 0.25})
	assert.Equal(t, 0.25, gauge(t, e, "hwbench_test_progress_ratio", `test="cpu"`))
}

func TestMux(t *testing.T) {
	t.Parallel()

	e := metrics.NewExporter()
	r := diskReport(t)
	e.ObserveReport(r)

	var latest *report.Report
	srv := httptest.NewServer(metrics.NewMux(e, func() (*report.Report, error) {
		if latest == nil {
			return nil, metrics.ErrNoReport
		}
		return latest, nil
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/reports/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	latest = r
	resp, err = http.Get(srv.URL + "/reports/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body["id"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "hwbench_overall_score 50")
}

func TestServeStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- metrics.Serve(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

// gauge reads a single gauge or counter sample from the registry.
func gauge(t *testing.T, e *metrics.Exporter, name, labels string) float64 {
	t.Helper()

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			var parts []string
			for _, l := range m.GetLabel() {
				parts = append(parts, l.GetName()+`="`+l.GetValue()+`"`)
			}
			if strings.Join(parts, ",") != labels {
				continue
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, labels)
	return 0
}

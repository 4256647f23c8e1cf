// SPDX-License-Identifier: Apache-2.0

package history_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/history"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/score"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func finished(t *testing.T, id string, started time.Time, cpuScore float64) *report.Report {
	t.Helper()

	r := report.New(id, config.Default(), started)
	m := bench.RawMetric{Kind: bench.KindCPU, CPU: &bench.CPUMetric{OpsPerSecond: cpuScore * 15}}
	sub := score.SubScore{
		Kind:       bench.KindCPU,
		Value:      cpuScore,
		Components: []score.Component{{Name: "ops_per_second", Measured: cpuScore * 15, Baseline: 1500, Weight: 1}},
	}
	require.NoError(t, r.Record(m, sub))
	require.NoError(t, r.Finalize(report.StatusCompleted, nil,
		&score.Overall{Value: cpuScore, Rating: score.RatingFor(cpuScore)}, started.Add(time.Second)))
	return r
}

func openMemory(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(context.Background(), history.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	want := finished(t, "a", epoch, 120)
	require.NoError(t, s.Put(want))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	v, ok := got.Overall()
	require.True(t, ok)
	assert.Equal(t, 120.0, v)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestPutRejectsRunningReport(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	err := s.Put(report.New("running", config.Default(), epoch))
	assert.ErrorIs(t, err, history.ErrNotTerminal)
}

func TestRecentIsNewestFirst(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	// Insert out of order; iteration follows start time.
	for _, i := range []int{3, 0, 4, 1, 2} {
		require.NoError(t, s.Put(finished(t, fmt.Sprintf("run-%d", i), epoch.Add(time.Duration(i)*time.Hour), float64(100+i))))
	}

	all, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, r := range all {
		assert.Equal(t, fmt.Sprintf("run-%d", 4-i), r.ID)
	}

	two, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "run-4", two[0].ID)
	assert.Equal(t, "run-3", two[1].ID)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "run-4", latest.ID)
}

func TestLatestOnEmptyHistory(t *testing.T) {
	t.Parallel()

	_, err := openMemory(t).Latest()
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestPutReplacesSameRun(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	require.NoError(t, s.Put(finished(t, "a", epoch, 90)))
	require.NoError(t, s.Put(finished(t, "a", epoch.Add(time.Minute), 95)))

	all, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	v, _ := all[0].Overall()
	assert.Equal(t, 95.0, v)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	require.NoError(t, s.Put(finished(t, "a", epoch, 90)))
	require.NoError(t, s.Delete("a"))

	_, err := s.Get("a")
	assert.ErrorIs(t, err, history.ErrNotFound)
	assert.ErrorIs(t, s.Delete("a"), history.ErrNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	require.NoError(t, s.Put(finished(t, "a", epoch, 160)))

	cancelled := report.New("b", config.Default(), epoch.Add(time.Hour))
	require.NoError(t, cancelled.Finalize(report.StatusCancelled, nil, nil, epoch.Add(2*time.Hour)))
	require.NoError(t, s.Put(cancelled))

	list, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, report.StatusCancelled, list[0].Status)
	assert.Nil(t, list[0].Overall)
	assert.Empty(t, list[0].Tests)

	assert.Equal(t, "a", list[1].ID)
	require.NotNil(t, list[1].Overall)
	assert.Equal(t, 160.0, *list[1].Overall)
	assert.Equal(t, string(score.RatingExcellent), list[1].Rating)
	assert.Equal(t, []string{"cpu"}, list[1].Tests)
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := history.Open(context.Background(), history.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Put(finished(t, "kept", epoch, 100)))
	require.NoError(t, s.Close())

	s, err = history.Open(context.Background(), history.DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ID)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := history.Open(context.Background(), history.Config{})
	assert.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	t.Parallel()

	reps := []*report.Report{
		finished(t, "b", epoch.Add(time.Hour), 110),
		finished(t, "a", epoch, 100),
	}

	var buf bytes.Buffer
	require.NoError(t, history.RenderChart(&buf, reps))

	out := buf.String()
	assert.Contains(t, out, "hwbench score history")
	assert.Contains(t, out, "Scores")
	assert.Contains(t, out, "CPU measurements")
	assert.Contains(t, out, "ops_per_second")
	assert.NotContains(t, out, "Disk measurements")
}

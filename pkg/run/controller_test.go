// SPDX-License-Identifier: Apache-2.0

package run_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/run"
	"github.com/xataio/hwbench/pkg/sampler"
	"github.com/xataio/hwbench/pkg/score"
)

type fakeTest struct {
	kind bench.Kind
	run  func(ctx context.Context, progress bench.ProgressFn) (bench.RawMetric, error)
}

func (t fakeTest) Kind() bench.Kind { return t.kind }

func (t fakeTest) Run(ctx context.Context, progress bench.ProgressFn) (bench.RawMetric, error) {
	return t.run(ctx, progress)
}

// baselineMetric returns a metric that scores exactly 100 against the
// default baselines.
func baselineMetric(k bench.Kind) bench.RawMetric {
	b := score.DefaultBaselines()
	m := bench.RawMetric{Kind: k}
	switch k {
	case bench.KindCPU:
		m.CPU = &bench.CPUMetric{OpsPerSecond: b.CPU.OpsPerSecond}
	case bench.KindMemory:
		m.Memory = &bench.MemoryMetric{WriteMBps: b.Memory.WriteMBps, ReadMBps: b.Memory.ReadMBps}
	case bench.KindDisk:
		m.Disk = &bench.DiskMetric{WriteMBps: b.Disk.WriteMBps, ReadMBps: b.Disk.ReadMBps, IOPS: b.Disk.IOPS}
	}
	return m
}

func succeeding(k bench.Kind) bench.Test {
	return fakeTest{kind: k, run: func(ctx context.Context, progress bench.ProgressFn) (bench.RawMetric, error) {
		progress(bench.PhaseCompute, 0.5, nil)
		progress(bench.PhaseCompute, 1, &bench.Preview{Name: "rate", Value: 1, Unit: "ops/s"})
		return baselineMetric(k), nil
	}}
}

func blocking(k bench.Kind) bench.Test {
	return fakeTest{kind: k, run: func(ctx context.Context, _ bench.ProgressFn) (bench.RawMetric, error) {
		<-ctx.Done()
		return bench.RawMetric{}, ctx.Err()
	}}
}

func failing(k bench.Kind, err error) bench.Test {
	return fakeTest{kind: k, run: func(context.Context, bench.ProgressFn) (bench.RawMetric, error) {
		return bench.RawMetric{}, err
	}}
}

// factory builds tests from per-kind constructors, defaulting to succeeding.
func factory(tests map[bench.Kind]bench.Test) run.TestFactory {
	return func(k bench.Kind, _ *config.Config, _ *sampler.Sampler, _ bench.Resources, _ run.Logger) (bench.Test, error) {
		if t, ok := tests[k]; ok {
			return t, nil
		}
		return succeeding(k), nil
	}
}

func newController(opts ...run.Option) *run.Controller {
	base := []run.Option{
		run.WithSystemCollector(nil),
		run.WithProgressInterval(0),
	}
	return run.NewController(append(base, opts...)...)
}

func testConfig(kinds ...bench.Kind) *config.Config {
	cfg := config.Default()
	cfg.Tests = kinds
	cfg.Duration = config.Duration(200 * time.Millisecond)
	cfg.Trials = 1
	return cfg
}

func wait(t *testing.T, h *run.Handle) *report.Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r, err := h.Wait(ctx)
	require.NoError(t, err)
	return r
}

func TestCPUOnlyRunCompletes(t *testing.T) {
	t.Parallel()

	c := run.NewController(run.WithSystemCollector(nil))
	h, err := c.Start(context.Background(), testConfig(bench.KindCPU))
	require.NoError(t, err)

	r := wait(t, h)
	assert.Equal(t, report.StatusCompleted, r.Status)
	assert.Equal(t, h.ID(), r.ID)

	m, ok := r.RawMetrics.Get(bench.KindCPU)
	require.True(t, ok)
	assert.Greater(t, m.CPU.OpsPerSecond, 0.0)

	sub, ok := r.SubScores.Get(bench.KindCPU)
	require.True(t, ok)
	assert.GreaterOrEqual(t, sub.Value, 0.0)

	overall, ok := r.Overall()
	require.True(t, ok)
	assert.InDelta(t, sub.Value, overall, 1e-9)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	c := newController()
	h, err := c.Start(context.Background(), testConfig())

	var cfgErr config.InvalidConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Nil(t, h)

	_, active := c.Active()
	assert.False(t, active)
}

func TestAllTestsScoreAtBaseline(t *testing.T) {
	t.Parallel()

	c := newController(run.WithTestFactory(factory(nil)))
	h, err := c.Start(context.Background(), testConfig(bench.KindDisk, bench.KindCPU, bench.KindMemory))
	require.NoError(t, err)

	r := wait(t, h)
	assert.Equal(t, report.StatusCompleted, r.Status)
	assert.Equal(t, []bench.Kind{bench.KindCPU, bench.KindMemory, bench.KindDisk}, r.RawMetrics.Kinds())
	assert.Equal(t, r.RawMetrics.Kinds(), r.SubScores.Kinds())

	for _, k := range r.SubScores.Kinds() {
		sub, _ := r.SubScores.Get(k)
		assert.InDelta(t, 100, sub.Value, 1e-9, k)
	}
	overall, ok := r.Overall()
	require.True(t, ok)
	assert.InDelta(t, 100, overall, 1e-9)
	rating, _ := r.RatingValue()
	assert.Equal(t, score.RatingGood, rating)
}

func TestOnlyOneRunAtATime(t *testing.T) {
	t.Parallel()

	c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
		bench.KindCPU: blocking(bench.KindCPU),
	})))

	h, err := c.Start(context.Background(), testConfig(bench.KindCPU))
	require.NoError(t, err)
	assert.Equal(t, report.StatusRunning, h.State())

	_, err = c.Start(context.Background(), testConfig(bench.KindCPU))
	assert.ErrorIs(t, err, run.ErrRunInProgress)

	h.Cancel()
	r := wait(t, h)
	assert.Equal(t, report.StatusCancelled, r.Status)

	h2, err := c.Start(context.Background(), testConfig(bench.KindMemory))
	require.NoError(t, err)
	assert.NotEqual(t, h.ID(), h2.ID())
	assert.Equal(t, report.StatusCompleted, wait(t, h2).Status)
}

func TestCancelPreservesFinishedTests(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
		bench.KindMemory: fakeTest{kind: bench.KindMemory, run: func(ctx context.Context, _ bench.ProgressFn) (bench.RawMetric, error) {
			close(started)
			<-ctx.Done()
			return bench.RawMetric{}, ctx.Err()
		}},
	})))

	h, err := c.Start(context.Background(), testConfig(bench.Kinds[:]...))
	require.NoError(t, err)

	<-started
	h.Cancel()
	h.Cancel()

	r := wait(t, h)
	assert.Equal(t, report.StatusCancelled, r.Status)
	assert.Nil(t, r.Failure)
	assert.Equal(t, []bench.Kind{bench.KindCPU}, r.RawMetrics.Kinds())
	assert.Equal(t, r.RawMetrics.Kinds(), r.SubScores.Kinds())

	overall, ok := r.Overall()
	require.True(t, ok)
	assert.InDelta(t, 100, overall, 1e-9)

	// Cancelling a finished run changes nothing.
	h.Cancel()
	assert.Equal(t, report.StatusCancelled, h.State())
}

func TestCancelImmediatelyAfterStart(t *testing.T) {
	t.Parallel()

	for range 20 {
		c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
			bench.KindCPU:    blocking(bench.KindCPU),
			bench.KindMemory: blocking(bench.KindMemory),
			bench.KindDisk:   blocking(bench.KindDisk),
		})))
		h, err := c.Start(context.Background(), testConfig(bench.Kinds[:]...))
		require.NoError(t, err)
		h.Cancel()

		r := wait(t, h)
		assert.Equal(t, report.StatusCancelled, r.Status)
		assert.Zero(t, r.RawMetrics.Len())
		_, ok := r.Overall()
		assert.False(t, ok)
	}
}

func TestDeadlineIsCancellation(t *testing.T) {
	t.Parallel()

	c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
		bench.KindCPU: blocking(bench.KindCPU),
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	h, err := c.Start(ctx, testConfig(bench.KindCPU))
	require.NoError(t, err)
	assert.Equal(t, report.StatusCancelled, wait(t, h).Status)
}

func TestFaultsFailTheRun(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err   error
		fault report.Fault
	}{
		"timing": {
			err:   sampler.TimingFaultError{Trial: 1, Elapsed: -time.Millisecond},
			fault: report.FaultTiming,
		},
		"insufficient memory": {
			err:   bench.InsufficientResourceError{Kind: bench.KindMemory, Resource: "memory", Requested: 2 << 30, Available: 1 << 30},
			fault: report.FaultInsufficientResource,
		},
		"io": {
			err:   bench.IOError{Op: "write", Path: "/tmp/x", Err: errors.New("disk full")},
			fault: report.FaultIO,
		},
		"wrapped verification": {
			err:   errors.Join(errors.New("pass 2"), bench.VerificationError{BufferSize: 1 << 20, Offset: 42}),
			fault: report.FaultVerification,
		},
		"unclassified": {
			err:   errors.New("boom"),
			fault: report.FaultInternal,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
				bench.KindMemory: failing(bench.KindMemory, tt.err),
			})))
			h, err := c.Start(context.Background(), testConfig(bench.Kinds[:]...))
			require.NoError(t, err)

			r := wait(t, h)
			assert.Equal(t, report.StatusFailed, r.Status)
			require.NotNil(t, r.Failure)
			assert.Equal(t, bench.KindMemory, r.Failure.Kind)
			assert.Equal(t, tt.fault, r.Failure.Fault)
			assert.Equal(t, tt.err.Error(), r.Failure.Reason)

			// The CPU test finished before the fault; disk never ran.
			assert.Equal(t, []bench.Kind{bench.KindCPU}, r.RawMetrics.Kinds())
			assert.Equal(t, r.RawMetrics.Kinds(), r.SubScores.Kinds())
		})
	}
}

func TestPanicIsReportedAsFailure(t *testing.T) {
	t.Parallel()

	c := newController(run.WithTestFactory(factory(map[bench.Kind]bench.Test{
		bench.KindCPU: fakeTest{kind: bench.KindCPU, run: func(context.Context, bench.ProgressFn) (bench.RawMetric, error) {
			panic("unexpected")
		}},
	})))
	h, err := c.Start(context.Background(), testConfig(bench.KindCPU))
	require.NoError(t, err)

	r := wait(t, h)
	assert.Equal(t, report.StatusFailed, r.Status)
	require.NotNil(t, r.Failure)
	assert.Equal(t, report.FaultInternal, r.Failure.Fault)
	assert.Contains(t, r.Failure.Reason, "unexpected")

	_, active := c.Active()
	assert.False(t, active)
}

func TestEventsAreOrderedAndClosedBeforeReport(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		heard  []bench.ProgressEvent
		listen = func(ev bench.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			heard = append(heard, ev)
		}
	)

	c := newController(
		run.WithTestFactory(factory(nil)),
		run.WithListener(listen),
		run.WithEventBuffer(256),
	)
	h, err := c.Start(context.Background(), testConfig(bench.KindCPU, bench.KindDisk))
	require.NoError(t, err)

	var got []bench.ProgressEvent
	for ev := range h.Events() {
		got = append(got, ev)
	}

	r := wait(t, h)
	assert.Zero(t, r.DroppedEvents)

	stages := func(k bench.Kind) []bench.Stage {
		var out []bench.Stage
		for _, ev := range got {
			if ev.Kind == k {
				assert.Equal(t, h.ID(), ev.RunID)
				out = append(out, ev.Stage)
			}
		}
		return out
	}
	want := []bench.Stage{bench.StageStarted, bench.StageProgress, bench.StageProgress, bench.StageFinished}
	assert.Equal(t, want, stages(bench.KindCPU))
	assert.Equal(t, want, stages(bench.KindDisk))
	assert.Empty(t, stages(bench.KindMemory))

	assert.Equal(t, bench.KindCPU, got[0].Kind)
	assert.Equal(t, bench.KindDisk, got[len(got)-1].Kind)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, got, heard)
}

func TestSlowConsumerDropsOldestEvents(t *testing.T) {
	t.Parallel()

	chatty := fakeTest{kind: bench.KindCPU, run: func(ctx context.Context, progress bench.ProgressFn) (bench.RawMetric, error) {
		for i := range 100 {
			progress(bench.PhaseCompute, float64(i)/100, nil)
		}
		return baselineMetric(bench.KindCPU), nil
	}}
	c := newController(
		run.WithTestFactory(factory(map[bench.Kind]bench.Test{bench.KindCPU: chatty})),
		run.WithEventBuffer(2),
	)
	h, err := c.Start(context.Background(), testConfig(bench.KindCPU))
	require.NoError(t, err)

	r := wait(t, h)
	assert.Equal(t, report.StatusCompleted, r.Status)
	// started + 100 progress + finished, two of which fit in the buffer.
	assert.EqualValues(t, 100, r.DroppedEvents)

	var left []bench.ProgressEvent
	for ev := range h.Events() {
		left = append(left, ev)
	}
	require.Len(t, left, 2)
	assert.Equal(t, bench.StageProgress, left[0].Stage)
	assert.InDelta(t, 0.99, left[0].Fraction, 1e-9)
	assert.Equal(t, bench.StageFinished, left[1].Stage)
}

func TestProgressIsRateLimited(t *testing.T) {
	t.Parallel()

	chatty := fakeTest{kind: bench.KindCPU, run: func(ctx context.Context, progress bench.ProgressFn) (bench.RawMetric, error) {
		for i := range 1000 {
			progress(bench.PhaseCompute, float64(i)/1000, nil)
		}
		progress(bench.PhaseCompute, 1, nil)
		return baselineMetric(bench.KindCPU), nil
	}}
	c := run.NewController(
		run.WithSystemCollector(nil),
		run.WithTestFactory(factory(map[bench.Kind]bench.Test{bench.KindCPU: chatty})),
		run.WithProgressInterval(time.Hour),
		run.WithEventBuffer(2048),
	)
	h, err := c.Start(context.Background(), testConfig(bench.KindCPU))
	require.NoError(t, err)

	var progress []bench.ProgressEvent
	for ev := range h.Events() {
		if ev.Stage == bench.StageProgress {
			progress = append(progress, ev)
		}
	}
	wait(t, h)

	// The first event uses the limiter's burst and completion is never limited.
	require.Len(t, progress, 2)
	assert.Zero(t, progress[0].Fraction)
	assert.Equal(t, 1.0, progress[1].Fraction)
}

// regressingClock reads one second once and a millisecond afterwards.
type regressingClock struct {
	mu    sync.Mutex
	reads int
}

func (c *regressingClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.reads == 1 {
		return time.Second
	}
	return time.Millisecond
}

func TestDiskTimingFaultRemovesScratchFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(bench.KindDisk)
	cfg.Disk.ScratchDir = dir
	cfg.Disk.FileSize = 256 << 10
	cfg.Disk.ChunkSize = 64 << 10

	c := newController(run.WithSamplerOptions(sampler.WithClock(&regressingClock{})))
	h, err := c.Start(context.Background(), cfg)
	require.NoError(t, err)

	r := wait(t, h)
	assert.Equal(t, report.StatusFailed, r.Status)
	require.NotNil(t, r.Failure)
	assert.Equal(t, bench.KindDisk, r.Failure.Kind)
	assert.Equal(t, report.FaultTiming, r.Failure.Fault)
	assert.Zero(t, r.RawMetrics.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file left behind")
}

func TestWarmupReachesEveryTest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(bench.Kinds[:]...)
	cfg.Warmup = true
	cfg.Memory.Tiers = []config.ByteSize{64 << 10}
	cfg.Disk.ScratchDir = dir
	cfg.Disk.FileSize = 256 << 10
	cfg.Disk.ChunkSize = 64 << 10

	c := newController()
	h, err := c.Start(context.Background(), cfg)
	require.NoError(t, err)

	r := wait(t, h)
	require.Equal(t, report.StatusCompleted, r.Status)

	cpu, _ := r.RawMetrics.Get(bench.KindCPU)
	mem, _ := r.RawMetrics.Get(bench.KindMemory)
	disk, _ := r.RawMetrics.Get(bench.KindDisk)
	assert.True(t, cpu.CPU.Warmup)
	assert.True(t, mem.Memory.Warmup)
	assert.True(t, disk.Disk.Warmup)
}

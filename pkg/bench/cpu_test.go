// SPDX-License-Identifier: Apache-2.0

package bench_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/sampler"
)

func TestCPUTestMeasuresThroughput(t *testing.T) {
	t.Parallel()

	progress := &progressLog{}
	test := bench.NewCPUTest(bench.CPUOptions{Duration: 60 * time.Millisecond, Trials: 2}, sampler.New())

	m, err := test.Run(context.Background(), progress.fn())
	require.NoError(t, err)

	require.NotNil(t, m.CPU)
	assert.Equal(t, bench.KindCPU, m.Kind)
	assert.Equal(t, 1229, m.CPU.PrimesPerIteration)
	assert.Positive(t, m.CPU.Iterations)
	assert.GreaterOrEqual(t, m.CPU.Elapsed, 60*time.Millisecond)
	assert.Positive(t, m.CPU.OpsPerSecond)
	require.Len(t, m.Samples, 2)

	var total float64
	for _, s := range m.Samples {
		assert.Equal(t, bench.PhaseCompute, s.Phase)
		total += s.Units
	}
	assert.Equal(t, float64(m.CPU.Iterations), total)

	require.NotEmpty(t, progress.fractions)
	assert.Equal(t, 1.0, progress.fractions[len(progress.fractions)-1])
}

func TestCPUTestSingleTrialRateIsIterationsOverElapsed(t *testing.T) {
	t.Parallel()

	test := bench.NewCPUTest(bench.CPUOptions{Duration: 20 * time.Millisecond, Trials: 1, PrimeBound: 100, MathOps: 10}, sampler.New())

	m, err := test.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 25, m.CPU.PrimesPerIteration)
	assert.InDelta(t, float64(m.CPU.Iterations)/m.CPU.Elapsed.Seconds(), m.CPU.OpsPerSecond, 1e-6)
}

func TestCPUTestStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	test := bench.NewCPUTest(bench.CPUOptions{Duration: time.Minute}, sampler.New())
	m, err := test.Run(ctx, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, m.CPU)
}

func TestCPUTestReportsClockRegression(t *testing.T) {
	t.Parallel()

	clock := &scriptedClock{readings: []time.Duration{time.Second, time.Millisecond}}
	test := bench.NewCPUTest(bench.CPUOptions{Duration: time.Second, PrimeBound: 10, MathOps: 1}, sampler.New(sampler.WithClock(clock)))

	_, err := test.Run(context.Background(), nil)

	var fault sampler.TimingFaultError
	require.ErrorAs(t, err, &fault)
}

func TestCPUTestWarmupIterationIsNotTimed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Name   string
		Opts   []sampler.OptionFn
		Warmup bool
	}{
		{Name: "without warm-up"},
		{Name: "with warm-up", Opts: []sampler.OptionFn{sampler.WithWarmup()}, Warmup: true},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			t.Parallel()

			// The first trial iteration already sees the whole window elapsed.
			clock := &scriptedClock{readings: []time.Duration{0, 10 * time.Millisecond}}
			opts := append([]sampler.OptionFn{sampler.WithClock(clock)}, tt.Opts...)
			test := bench.NewCPUTest(bench.CPUOptions{Duration: 10 * time.Millisecond, PrimeBound: 10, MathOps: 1}, sampler.New(opts...))

			m, err := test.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, tt.Warmup, m.CPU.Warmup)
			assert.Equal(t, int64(1), m.CPU.Iterations)
			assert.Equal(t, 10*time.Millisecond, m.CPU.Elapsed)
			assert.Equal(t, 3, clock.i)
		})
	}
}

func TestCPUTestRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := bench.NewCPUTest(bench.CPUOptions{}, sampler.New()).Run(context.Background(), nil)

	var invalid bench.InvalidOptionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "duration", invalid.Field)
}

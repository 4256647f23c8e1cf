// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/xataio/hwbench/pkg/sampler"
)

const (
	DefaultPrimeBound = 10_000
	DefaultMathOps    = 10_000
)

// sink keeps workload results observable so the compiler cannot drop them.
var sink atomic.Uint64

type CPUOptions struct {
	Duration   time.Duration
	Trials     int
	PrimeBound int
	MathOps    int
}

type CPUTest struct {
	opts    CPUOptions
	sampler *sampler.Sampler
}

func NewCPUTest(opts CPUOptions, s *sampler.Sampler) *CPUTest {
	if opts.PrimeBound == 0 {
		opts.PrimeBound = DefaultPrimeBound
	}
	if opts.MathOps == 0 {
		opts.MathOps = DefaultMathOps
	}
	if opts.Trials == 0 {
		opts.Trials = 1
	}
	return &CPUTest{opts: opts, sampler: s}
}

func (t *CPUTest) Kind() Kind { return KindCPU }

// Run splits the configured duration evenly across trials. Each trial
// repeats the workload until its window has elapsed; the reported rate is
// the median of the per-trial iteration rates.
func (t *CPUTest) Run(ctx context.Context, progress ProgressFn) (RawMetric, error) {
	if t.opts.Duration <= 0 {
		return RawMetric{}, InvalidOptionError{Kind: KindCPU, Field: "duration", Reason: "must be positive"}
	}
	if t.opts.Trials < 1 {
		return RawMetric{}, InvalidOptionError{Kind: KindCPU, Field: "trials", Reason: "must be at least 1"}
	}

	window := t.opts.Duration / time.Duration(t.opts.Trials)
	m := &CPUMetric{Trials: t.opts.Trials}
	samples := make([]Sample, 0, t.opts.Trials)
	rates := make([]float64, 0, t.opts.Trials)
	var acc float64

	warmed, err := t.sampler.Warmup(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, v := cpuIteration(t.opts.PrimeBound, t.opts.MathOps)
		acc += v
		return nil
	})
	if err != nil {
		return RawMetric{}, err
	}
	m.Warmup = warmed

	for trial := 0; trial < t.opts.Trials; trial++ {
		var iterations int64
		start := t.sampler.Now()
		for {
			if err := ctx.Err(); err != nil {
				return RawMetric{}, err
			}

			primes, v := cpuIteration(t.opts.PrimeBound, t.opts.MathOps)
			m.PrimesPerIteration = primes
			acc += v
			iterations++

			elapsed := t.sampler.Now() - start
			if elapsed < 0 {
				return RawMetric{}, sampler.TimingFaultError{Trial: trial, Elapsed: elapsed}
			}
			if elapsed >= window {
				break
			}
			progress.report(PhaseCompute, (float64(trial)+float64(elapsed)/float64(window))/float64(t.opts.Trials), &Preview{
				Name:  "ops/s",
				Value: perSecond(iterations, elapsed),
				Unit:  "iter/s",
			})
		}

		elapsed, err := t.sampler.Elapsed(trial, start)
		if err != nil {
			return RawMetric{}, err
		}

		rate := perSecond(iterations, elapsed)
		rates = append(rates, rate)
		samples = append(samples, Sample{
			Phase:   PhaseCompute,
			Trial:   trial,
			Units:   float64(iterations),
			Elapsed: elapsed,
			Rate:    rate,
		})
		m.Iterations += iterations
		m.Elapsed += elapsed
	}

	sink.Store(math.Float64bits(acc))
	m.OpsPerSecond = sampler.Median(rates)
	progress.report(PhaseCompute, 1, &Preview{Name: "ops/s", Value: m.OpsPerSecond, Unit: "iter/s"})

	return RawMetric{Kind: KindCPU, CPU: m, Samples: samples}, nil
}

// cpuIteration is one unit of CPU work: counting the primes below bound by
// trial division followed by mathOps transcendental evaluations.
func cpuIteration(bound, mathOps int) (int, float64) {
	return countPrimes(bound), transcendentalSum(mathOps)
}

func countPrimes(bound int) int {
	count := 0
	for n := 2; n < bound; n++ {
		prime := true
		for d := 2; d*d <= n; d++ {
			if n%d == 0 {
				prime = false
				break
			}
		}
		if prime {
			count++
		}
	}
	return count
}

func transcendentalSum(n int) float64 {
	var sum float64
	for i := 1; i <= n; i++ {
		x := float64(i)
		sum += math.Sqrt(x)*math.Sin(x) + math.Cos(x)*math.Log(x+1)
	}
	return sum
}

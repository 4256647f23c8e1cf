// SPDX-License-Identifier: Apache-2.0

// Package sampler times repeated trials of a workload on a monotonic clock.
package sampler

import (
	"context"
	"time"
)

// Clock returns the time elapsed since some fixed origin. Implementations
// must be monotonic: wall-clock adjustments must not move the reading.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	epoch time.Time
}

// Now relies on the monotonic reading carried by time.Time values created
// with time.Now.
func (c monotonicClock) Now() time.Duration {
	return time.Since(c.epoch)
}

var processClock = monotonicClock{epoch: time.Now()}

// SystemClock returns the process-wide monotonic clock.
func SystemClock() Clock {
	return processClock
}

type Sampler struct {
	clock  Clock
	warmup bool
}

type OptionFn func(*Sampler)

// WithClock replaces the monotonic system clock.
func WithClock(c Clock) OptionFn {
	return func(s *Sampler) {
		s.clock = c
	}
}

// WithWarmup enables one untimed run of the workload before the first
// timed trial to reduce cold-cache bias. See Warmup.
func WithWarmup() OptionFn {
	return func(s *Sampler) {
		s.warmup = true
	}
}

func New(opts ...OptionFn) *Sampler {
	s := &Sampler{clock: SystemClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current clock reading.
func (s *Sampler) Now() time.Duration {
	return s.clock.Now()
}

// Elapsed returns the time passed since start. A non-positive result means
// the clock went backwards or did not advance and is reported as a
// TimingFaultError for the given trial.
func (s *Sampler) Elapsed(trial int, start time.Duration) (time.Duration, error) {
	d := s.clock.Now() - start
	if d <= 0 {
		return 0, TimingFaultError{Trial: trial, Elapsed: d}
	}
	return d, nil
}

// Warmup runs fn once, untimed, when warm-up is enabled and reports whether
// it did. Workloads that time themselves call it before their first trial.
func (s *Sampler) Warmup(fn func() error) (bool, error) {
	if !s.warmup {
		return false, nil
	}
	return true, fn()
}

// Measure runs workload trials times back to back and returns one elapsed
// duration per trial. Cancellation is observed between trials.
func (s *Sampler) Measure(ctx context.Context, trials int, workload func() error) ([]time.Duration, error) {
	if trials < 1 {
		return nil, InvalidTrialsError{Trials: trials}
	}

	if _, err := s.Warmup(workload); err != nil {
		return nil, err
	}

	durations := make([]time.Duration, 0, trials)
	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := s.clock.Now()
		if err := workload(); err != nil {
			return nil, err
		}
		d, err := s.Elapsed(i, start)
		if err != nil {
			return nil, err
		}
		durations = append(durations, d)
	}
	return durations, nil
}

// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"time"

	"github.com/xataio/hwbench/internal/sysinfo"
	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/sampler"
	"github.com/xataio/hwbench/pkg/score"
)

const (
	DefaultEventBuffer      = 64
	DefaultProgressInterval = 50 * time.Millisecond
)

// TestFactory builds the test of kind k for a run of cfg. Diagnostics of the
// test go to l.
type TestFactory func(k bench.Kind, cfg *config.Config, s *sampler.Sampler, r bench.Resources, l Logger) (bench.Test, error)

// SystemCollector gathers the host facts stored in a report.
type SystemCollector interface {
	Collect(ctx context.Context) (sysinfo.Info, error)
}

type options struct {
	// called synchronously for every delivered event; must not block
	listener func(bench.ProgressEvent)

	logger    Logger
	baselines score.Baselines
	resources bench.Resources
	system    SystemCollector
	factory   TestFactory

	// options applied to the sampler of every run
	samplerOpts []sampler.OptionFn

	// capacity of the events channel
	eventBuffer int

	// minimum spacing of intra-test progress events; 0 disables limiting
	progressInterval time.Duration
}

type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NewNoopLogger(),
		baselines:        score.DefaultBaselines(),
		resources:        bench.HostResources(),
		system:           sysinfo.NewHost(),
		factory:          DefaultTestFactory,
		eventBuffer:      DefaultEventBuffer,
		progressInterval: DefaultProgressInterval,
	}
}

// WithListener registers a callback receiving every progress event that is
// also sent on the events channel.
func WithListener(fn func(bench.ProgressEvent)) Option {
	return func(o *options) {
		o.listener = fn
	}
}

func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBaselines sets the reference measurements sub-scores are computed
// against.
func WithBaselines(b score.Baselines) Option {
	return func(o *options) {
		o.baselines = b
	}
}

// WithResources overrides how memory and disk headroom are measured.
func WithResources(r bench.Resources) Option {
	return func(o *options) {
		o.resources = r
	}
}

// WithSystemCollector overrides how host facts are gathered. A nil
// collector leaves the report without system information.
func WithSystemCollector(c SystemCollector) Option {
	return func(o *options) {
		o.system = c
	}
}

func WithTestFactory(f TestFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithSamplerOptions configures the sampler used by every test, for instance
// to substitute the clock.
func WithSamplerOptions(opts ...sampler.OptionFn) Option {
	return func(o *options) {
		o.samplerOpts = append(o.samplerOpts, opts...)
	}
}

func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// DefaultTestFactory builds the CPU, memory and disk tests from cfg.
func DefaultTestFactory(k bench.Kind, cfg *config.Config, s *sampler.Sampler, r bench.Resources, l Logger) (bench.Test, error) {
	switch k {
	case bench.KindCPU:
		return bench.NewCPUTest(cfg.CPUOptions(), s), nil
	case bench.KindMemory:
		return bench.NewMemoryTest(cfg.MemoryOptions(), s, r), nil
	case bench.KindDisk:
		opts := cfg.DiskOptions()
		opts.Debug = l.Debug
		return bench.NewDiskTest(opts, s, r), nil
	}
	return nil, bench.UnknownKindError{Name: string(k)}
}

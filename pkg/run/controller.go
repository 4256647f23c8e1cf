// SPDX-License-Identifier: Apache-2.0

// Package run executes benchmark runs: one goroutine per run, tests in a
// fixed order, cooperative cancellation and a single terminal report.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/sampler"
	"github.com/xataio/hwbench/pkg/score"
)

var ErrRunInProgress = errors.New("a benchmark run is already in progress")

// PanicError is the fault recorded when a test panics.
type PanicError struct {
	Kind  bench.Kind
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("%s test panicked: %v", e.Kind, e.Value)
}

// Controller starts benchmark runs, at most one at a time.
type Controller struct {
	opts options

	mu     sync.Mutex
	active *Handle
}

func NewController(opts ...Option) *Controller {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Controller{opts: o}
}

// Start validates cfg and begins a run on its own goroutine. The run works
// on a copy of cfg. Cancelling ctx cancels the run.
func (c *Controller) Start(ctx context.Context, cfg *config.Config) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, ErrRunInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:     uuid.NewString(),
		cfg:    cfg.Clone(),
		opts:   c.opts,
		scorer: score.New(c.opts.baselines),
		queue:  newEventQueue(c.opts.eventBuffer, c.opts.progressInterval, c.opts.listener),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = h

	go h.run(runCtx, c.release)
	return h, nil
}

// Active returns the run in progress, if any.
func (c *Controller) Active() (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != nil
}

func (c *Controller) release(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == h {
		c.active = nil
	}
}

// Handle observes and controls a single run.
type Handle struct {
	id     string
	cfg    *config.Config
	opts   options
	scorer *score.Scorer
	queue  *eventQueue
	cancel context.CancelFunc

	done   chan struct{}
	mu     sync.Mutex
	report *report.Report
}

func (h *Handle) ID() string {
	return h.id
}

// Events delivers progress in emission order. The channel is closed before
// the final report becomes available.
func (h *Handle) Events() <-chan bench.ProgressEvent {
	return h.queue.ch
}

// Cancel requests cooperative cancellation. It is safe to call more than
// once and has no effect after the run has ended.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the run reaches a terminal state or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*report.Report, error) {
	select {
	case <-h.done:
		r, _ := h.Report()
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Report returns the final report once the run has ended.
func (h *Handle) Report() (*report.Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report, h.report != nil
}

// Done is closed once the final report is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) State() report.Status {
	if r, ok := h.Report(); ok {
		return r.Status
	}
	return report.StatusRunning
}

func (h *Handle) run(ctx context.Context, release func(*Handle)) {
	defer h.cancel()

	log := h.opts.logger
	rep := report.New(h.id, h.cfg, time.Now())
	rep.Baselines = h.opts.baselines.Source
	log.LogRunStart(h.id, h.cfg.Tests)

	if h.opts.system != nil {
		info, err := h.opts.system.Collect(ctx)
		if err != nil {
			log.Info("collecting system information failed", "run", h.id, "error", err)
		} else {
			rep.System = &info
		}
	}

	status, failure := h.execute(ctx, rep)

	var overall *score.Overall
	if o, ok := h.scorer.Overall(rep.SubScores); ok {
		overall = &o
	}
	rep.DroppedEvents = h.queue.dropped.Load()
	if err := rep.Finalize(status, failure, overall, time.Now()); err != nil {
		log.Info("finalizing report failed", "run", h.id, "error", err)
	}
	h.queue.close()

	h.mu.Lock()
	h.report = rep
	h.mu.Unlock()

	log.LogRunComplete(rep)
	release(h)
	close(h.done)
}

// execute runs the selected tests in order and returns the terminal status.
func (h *Handle) execute(ctx context.Context, rep *report.Report) (report.Status, *report.Failure) {
	log := h.opts.logger

	samplerOpts := h.opts.samplerOpts
	if h.cfg.Warmup {
		samplerOpts = append(samplerOpts[:len(samplerOpts):len(samplerOpts)], sampler.WithWarmup())
	}
	s := sampler.New(samplerOpts...)

	for _, k := range bench.Kinds {
		if !h.cfg.Selected(k) {
			continue
		}
		if ctx.Err() != nil {
			return report.StatusCancelled, nil
		}

		log.LogTestStart(h.id, k)
		h.queue.push(bench.ProgressEvent{RunID: h.id, Kind: k, Stage: bench.StageStarted})

		m, err := h.runTest(ctx, k, s)
		if err == nil {
			var sub score.SubScore
			sub, err = h.scorer.Score(m)
			if err == nil {
				err = rep.Record(m, sub)
				log.LogTestComplete(h.id, sub)
			}
		}
		h.queue.push(bench.ProgressEvent{RunID: h.id, Kind: k, Stage: bench.StageFinished, Fraction: finishedFraction(err)})

		switch {
		case err == nil:
		case isCancellation(err):
			log.LogTestCancelled(h.id, k)
			return report.StatusCancelled, nil
		default:
			f := classify(k, err)
			log.LogTestFault(h.id, f)
			return report.StatusFailed, &f
		}
	}
	return report.StatusCompleted, nil
}

func (h *Handle) runTest(ctx context.Context, k bench.Kind, s *sampler.Sampler) (m bench.RawMetric, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Kind: k, Value: r}
		}
	}()

	t, err := h.opts.factory(k, h.cfg, s, h.opts.resources, h.opts.logger)
	if err != nil {
		return bench.RawMetric{}, err
	}

	progress := func(phase bench.Phase, fraction float64, preview *bench.Preview) {
		h.queue.progress(bench.ProgressEvent{
			RunID:    h.id,
			Kind:     k,
			Stage:    bench.StageProgress,
			Phase:    phase,
			Fraction: fraction,
			Preview:  preview,
		})
	}
	return t.Run(ctx, progress)
}

func finishedFraction(err error) float64 {
	if err != nil {
		return 0
	}
	return 1
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classify maps a test error onto the fault recorded in the report.
func classify(k bench.Kind, err error) report.Failure {
	f := report.Failure{Kind: k, Fault: report.FaultInternal, Reason: err.Error()}

	var (
		timing   sampler.TimingFaultError
		resource bench.InsufficientResourceError
		ioErr    bench.IOError
		verify   bench.VerificationError
	)
	switch {
	case errors.As(err, &timing):
		f.Fault = report.FaultTiming
	case errors.As(err, &resource):
		f.Fault = report.FaultInsufficientResource
	case errors.As(err, &ioErr):
		f.Fault = report.FaultIO
	case errors.As(err, &verify):
		f.Fault = report.FaultVerification
	}
	return f
}

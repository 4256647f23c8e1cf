// SPDX-License-Identifier: Apache-2.0

package run

import (
	"github.com/pterm/pterm"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/score"
)

// Logger is responsible for logging the lifecycle of a run.
type Logger interface {
	LogRunStart(id string, tests []bench.Kind)
	LogRunComplete(r *report.Report)

	LogTestStart(id string, k bench.Kind)
	LogTestComplete(id string, sub score.SubScore)
	LogTestCancelled(id string, k bench.Kind)
	LogTestFault(id string, f report.Failure)

	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type runLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

func NewLogger() Logger {
	return &runLogger{logger: pterm.DefaultLogger}
}

func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *runLogger) LogRunStart(id string, tests []bench.Kind) {
	l.logger.Info("starting benchmark run", l.logger.Args("run", id, "tests", tests))
}

func (l *runLogger) LogRunComplete(r *report.Report) {
	args := []any{
		"run", r.ID,
		"status", r.Status,
		"duration", r.Duration(),
	}
	if v, ok := r.Overall(); ok {
		args = append(args, "overall_score", v)
	}
	if r.DroppedEvents > 0 {
		args = append(args, "dropped_events", r.DroppedEvents)
	}
	l.logger.Info("benchmark run finished", l.logger.Args(args...))
}

func (l *runLogger) LogTestStart(id string, k bench.Kind) {
	l.logger.Debug("starting test", l.logger.Args("run", id, "test", k))
}

func (l *runLogger) LogTestComplete(id string, sub score.SubScore) {
	l.logger.Info("test completed", l.logger.Args("run", id, "test", sub.Kind, "score", sub.Value))
}

func (l *runLogger) LogTestCancelled(id string, k bench.Kind) {
	l.logger.Warn("test cancelled", l.logger.Args("run", id, "test", k))
}

func (l *runLogger) LogTestFault(id string, f report.Failure) {
	l.logger.Error("test failed", l.logger.Args("run", id, "test", f.Kind, "fault", f.Fault, "reason", f.Reason))
}

func (l *runLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args...))
}

func (l *runLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.logger.Args(args...))
}

func (l *noopLogger) LogRunStart(id string, tests []bench.Kind)     {}
func (l *noopLogger) LogRunComplete(r *report.Report)               {}
func (l *noopLogger) LogTestStart(id string, k bench.Kind)          {}
func (l *noopLogger) LogTestComplete(id string, sub score.SubScore) {}
func (l *noopLogger) LogTestCancelled(id string, k bench.Kind)      {}
func (l *noopLogger) LogTestFault(id string, f report.Failure)      {}
func (l *noopLogger) Info(msg string, args ...any)                  {}
func (l *noopLogger) Debug(msg string, args ...any)                 {}

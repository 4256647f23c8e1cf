// SPDX-License-Identifier: Apache-2.0

// Package report holds the outcome of a benchmark run and its exporters.
package report

import (
	"errors"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/xataio/hwbench/internal/sysinfo"
	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/score"
)

var (
	ErrFinalized   = errors.New("report is already finalized")
	ErrNotTerminal = errors.New("report must be finalized with a terminal status")
)

// Report is the outcome of one run. It is created Running, accumulates one
// raw metric and sub-score pair per finished test, and is finalized exactly
// once. After that it is read-only and safe to share.
type Report struct {
	FormatVersion string        `json:"format_version"`
	ID            string        `json:"id"`
	Status        Status        `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Config        config.Config `json:"config"`
	System        *sysinfo.Info `json:"system,omitempty"`
	Baselines     string        `json:"baselines"`

	RawMetrics bench.Set[bench.RawMetric] `json:"raw_metrics"`
	SubScores  bench.Set[score.SubScore]  `json:"sub_scores"`

	// OverallScore and Rating are null unless at least one test completed.
	OverallScore nullable.Nullable[float64]      `json:"overall_score"`
	Rating       nullable.Nullable[score.Rating] `json:"rating"`

	Failure       *Failure `json:"failure,omitempty"`
	DroppedEvents int64    `json:"dropped_progress_events"`
}

// New returns a Running report for a run of cfg.
func New(id string, cfg *config.Config, startedAt time.Time) *Report {
	return &Report{
		FormatVersion: FormatVersion,
		ID:            id,
		Status:        StatusRunning,
		StartedAt:     startedAt,
		Config:        *cfg.Clone(),
		OverallScore:  nullable.NewNullNullable[float64](),
		Rating:        nullable.NewNullNullable[score.Rating](),
	}
}

// Record stores the result of a finished test. The metric and its sub-score
// are always stored together.
func (r *Report) Record(m bench.RawMetric, s score.SubScore) error {
	if r.Status.IsTerminal() {
		return ErrFinalized
	}
	r.RawMetrics.Put(m.Kind, m)
	r.SubScores.Put(m.Kind, s)
	return nil
}

// Finalize moves the report to a terminal status. overall is ignored unless
// at least one test result was recorded.
func (r *Report) Finalize(status Status, failure *Failure, overall *score.Overall, finishedAt time.Time) error {
	if r.Status.IsTerminal() {
		return ErrFinalized
	}
	if !status.IsTerminal() {
		return ErrNotTerminal
	}

	r.Status = status
	r.Failure = failure
	r.FinishedAt = finishedAt
	if overall != nil && r.SubScores.Len() > 0 {
		r.OverallScore.Set(overall.Value)
		r.Rating.Set(overall.Rating)
	}
	return nil
}

// Overall returns the overall score and whether it is defined.
func (r *Report) Overall() (float64, bool) {
	if !r.OverallScore.IsSpecified() || r.OverallScore.IsNull() {
		return 0, false
	}
	v, err := r.OverallScore.Get()
	return v, err == nil
}

// RatingValue returns the rating and whether it is defined.
func (r *Report) RatingValue() (score.Rating, bool) {
	if !r.Rating.IsSpecified() || r.Rating.IsNull() {
		return "", false
	}
	v, err := r.Rating.Get()
	return v, err == nil
}

// Duration is the wall time between start and finalization.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

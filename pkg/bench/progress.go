// SPDX-License-Identifier: Apache-2.0

package bench

// Stage is the position of a ProgressEvent within a test.
type Stage string

const (
	StageStarted  Stage = "started"
	StageProgress Stage = "progress"
	StageFinished Stage = "finished"
)

// Preview is a provisional metric value shown while a test runs.
type Preview struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type ProgressEvent struct {
	RunID    string   `json:"run_id"`
	Kind     Kind     `json:"kind"`
	Stage    Stage    `json:"stage"`
	Phase    Phase    `json:"phase,omitempty"`
	Fraction float64  `json:"fraction"`
	Preview  *Preview `json:"preview,omitempty"`
}

// ProgressFn receives intra-test progress. fraction is within [0, 1].
type ProgressFn func(phase Phase, fraction float64, preview *Preview)

func (fn ProgressFn) report(phase Phase, fraction float64, preview *Preview) {
	if fn == nil {
		return
	}
	fn(phase, min(max(fraction, 0), 1), preview)
}

// SPDX-License-Identifier: Apache-2.0

// Package score turns raw measurements into sub-scores relative to reference
// baselines and combines them into an overall score and rating.
package score

import (
	"github.com/xataio/hwbench/pkg/bench"
)

// Component is one measured figure of a sub-score.
type Component struct {
	Name     string  `json:"name"`
	Measured float64 `json:"measured"`
	Baseline float64 `json:"baseline"`
	Weight   int     `json:"weight"`
}

type SubScore struct {
	Kind       bench.Kind  `json:"kind"`
	Value      float64     `json:"value"`
	Components []Component `json:"components"`
}

type Overall struct {
	Value  float64 `json:"value"`
	Rating Rating  `json:"rating"`
}

type Scorer struct {
	baselines Baselines
}

func New(b Baselines) *Scorer {
	return &Scorer{baselines: b}
}

func (s *Scorer) Baselines() Baselines {
	return s.baselines
}

// Score normalizes m against its baseline: the weighted mean of
// measured/baseline ratios, times 100, floored at 0 and uncapped.
func (s *Scorer) Score(m bench.RawMetric) (SubScore, error) {
	components, err := s.components(m)
	if err != nil {
		return SubScore{}, err
	}

	var sum float64
	var weights int
	for _, c := range components {
		sum += float64(c.Weight) * (c.Measured / c.Baseline)
		weights += c.Weight
	}

	return SubScore{
		Kind:       m.Kind,
		Value:      max(0, sum*100/float64(weights)),
		Components: components,
	}, nil
}

func (s *Scorer) components(m bench.RawMetric) ([]Component, error) {
	b := s.baselines
	switch m.Kind {
	case bench.KindCPU:
		if m.CPU == nil {
			return nil, MissingMetricError{Kind: m.Kind}
		}
		return []Component{
			{Name: "ops_per_second", Measured: m.CPU.OpsPerSecond, Baseline: b.CPU.OpsPerSecond, Weight: 1},
		}, nil
	case bench.KindMemory:
		if m.Memory == nil {
			return nil, MissingMetricError{Kind: m.Kind}
		}
		return []Component{
			{Name: "write_mb_per_second", Measured: m.Memory.WriteMBps, Baseline: b.Memory.WriteMBps, Weight: 1},
			{Name: "read_mb_per_second", Measured: m.Memory.ReadMBps, Baseline: b.Memory.ReadMBps, Weight: 1},
		}, nil
	case bench.KindDisk:
		if m.Disk == nil {
			return nil, MissingMetricError{Kind: m.Kind}
		}
		return []Component{
			{Name: "write_mb_per_second", Measured: m.Disk.WriteMBps, Baseline: b.Disk.WriteMBps, Weight: 1},
			{Name: "read_mb_per_second", Measured: m.Disk.ReadMBps, Baseline: b.Disk.ReadMBps, Weight: 1},
			{Name: "iops", Measured: m.Disk.IOPS, Baseline: b.Disk.IOPS, Weight: 1},
		}, nil
	}
	return nil, bench.UnknownKindError{Name: string(m.Kind)}
}

// Overall is the weighted arithmetic mean of the given sub-scores, with the
// weights renormalized over the kinds present. It reports false when subs
// is empty.
//
// Each weight is normalized before it is applied, so a single sub-score is
// returned unchanged whatever its weight.
func (s *Scorer) Overall(subs bench.Set[SubScore]) (Overall, bool) {
	kinds := subs.Kinds()
	if len(kinds) == 0 {
		return Overall{}, false
	}

	var total float64
	for _, k := range kinds {
		total += s.baselines.weight(k)
	}

	var value float64
	for _, k := range kinds {
		sub, _ := subs.Get(k)
		value += s.baselines.weight(k) / total * sub.Value
	}
	return Overall{Value: value, Rating: RatingFor(value)}, true
}

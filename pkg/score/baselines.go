// SPDX-License-Identifier: Apache-2.0

package score

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"

	"github.com/xataio/hwbench/pkg/bench"
)

// Reference machine figures used when no baselines file is supplied.
const (
	DefaultCPUOpsPerSecond = 1500
	DefaultMemoryWriteMBps = 8000
	DefaultMemoryReadMBps  = 10000
	DefaultDiskWriteMBps   = 500
	DefaultDiskReadMBps    = 1500
	DefaultDiskIOPS        = 20000
)

type CPUBaseline struct {
	OpsPerSecond float64 `json:"ops_per_second" validate:"gt=0"`
}

type MemoryBaseline struct {
	WriteMBps float64 `json:"write_mb_per_second" validate:"gt=0"`
	ReadMBps  float64 `json:"read_mb_per_second" validate:"gt=0"`
}

type DiskBaseline struct {
	WriteMBps float64 `json:"write_mb_per_second" validate:"gt=0"`
	ReadMBps  float64 `json:"read_mb_per_second" validate:"gt=0"`
	IOPS      float64 `json:"iops" validate:"gt=0"`
}

// Baselines are the reference measurements every sub-score is relative to,
// plus the per-kind weights of the overall score. Kinds without a weight
// count as 1.
type Baselines struct {
	Source  string             `json:"source,omitempty"`
	CPU     CPUBaseline        `json:"cpu"`
	Memory  MemoryBaseline     `json:"memory"`
	Disk    DiskBaseline       `json:"disk"`
	Weights bench.Set[float64] `json:"weights"`
}

var validate = validator.New()

func DefaultBaselines() Baselines {
	return Baselines{
		Source: "built-in",
		CPU:    CPUBaseline{OpsPerSecond: DefaultCPUOpsPerSecond},
		Memory: MemoryBaseline{WriteMBps: DefaultMemoryWriteMBps, ReadMBps: DefaultMemoryReadMBps},
		Disk:   DiskBaseline{WriteMBps: DefaultDiskWriteMBps, ReadMBps: DefaultDiskReadMBps, IOPS: DefaultDiskIOPS},
	}
}

func (b Baselines) Validate() error {
	if err := validate.Struct(b); err != nil {
		return InvalidBaselinesError{Reason: err.Error()}
	}
	for _, k := range b.Weights.Kinds() {
		if w, _ := b.Weights.Get(k); w <= 0 {
			return InvalidBaselinesError{Reason: fmt.Sprintf("weight of %s must be positive, got %g", k, w)}
		}
	}
	return nil
}

func (b Baselines) weight(k bench.Kind) float64 {
	if w, ok := b.Weights.Get(k); ok {
		return w
	}
	return 1
}

// LoadBaselines reads a YAML or JSON baselines file. Sections missing from
// the file keep their built-in values; a file without a source is named by
// its path.
func LoadBaselines(path string) (Baselines, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Baselines{}, fmt.Errorf("reading baselines: %w", err)
	}

	b := DefaultBaselines()
	b.Source = ""
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Baselines{}, fmt.Errorf("parsing baselines %s: %w", path, err)
	}
	if b.Source == "" {
		b.Source = path
	}
	if err := b.Validate(); err != nil {
		return Baselines{}, err
	}
	return b, nil
}

// WriteFile stores b as YAML.
func (b Baselines) WriteFile(path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Recalibrate returns a copy of b with every component measured in metrics
// replaced by its measured value, so that machine scores exactly 100.
func (b Baselines) Recalibrate(metrics bench.Set[bench.RawMetric], source string) Baselines {
	out := b
	out.Source = source
	if m, ok := metrics.Get(bench.KindCPU); ok && m.CPU != nil && m.CPU.OpsPerSecond > 0 {
		out.CPU.OpsPerSecond = m.CPU.OpsPerSecond
	}
	if m, ok := metrics.Get(bench.KindMemory); ok && m.Memory != nil {
		out.Memory.WriteMBps = positiveOr(m.Memory.WriteMBps, out.Memory.WriteMBps)
		out.Memory.ReadMBps = positiveOr(m.Memory.ReadMBps, out.Memory.ReadMBps)
	}
	if m, ok := metrics.Get(bench.KindDisk); ok && m.Disk != nil {
		out.Disk.WriteMBps = positiveOr(m.Disk.WriteMBps, out.Disk.WriteMBps)
		out.Disk.ReadMBps = positiveOr(m.Disk.ReadMBps, out.Disk.ReadMBps)
		out.Disk.IOPS = positiveOr(m.Disk.IOPS, out.Disk.IOPS)
	}
	return out
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

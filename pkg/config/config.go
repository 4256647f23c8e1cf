// SPDX-License-Identifier: Apache-2.0

// Package config defines the benchmark configuration, its presets and its
// validation.
package config

import (
	"slices"
	"time"

	"github.com/xataio/hwbench/pkg/bench"
)

const (
	DefaultTrials   = 3
	DefaultDuration = 10 * time.Second
	DefaultPreset   = PresetStandard

	MinDuration = 100 * time.Millisecond
	MaxDuration = time.Hour
	MaxTrials   = 100
)

// Config selects the tests of a run and their parameters. A running
// benchmark keeps its own copy; see Clone.
type Config struct {
	Tests    []bench.Kind `json:"tests" validate:"min=1,unique,dive,oneof=cpu memory disk"`
	Preset   Preset       `json:"preset,omitempty" validate:"omitempty,oneof=quick standard extended"`
	Duration Duration     `json:"duration"`
	Trials   int          `json:"trials" validate:"min=1,max=100"`
	Warmup   bool         `json:"warmup,omitempty"`

	CPU    CPUConfig    `json:"cpu"`
	Memory MemoryConfig `json:"memory"`
	Disk   DiskConfig   `json:"disk"`
}

type CPUConfig struct {
	Duration   Duration `json:"duration,omitempty"`
	PrimeBound int      `json:"prime_bound,omitempty" validate:"omitempty,min=2"`
	MathOps    int      `json:"math_ops,omitempty" validate:"omitempty,min=1"`
}

type MemoryConfig struct {
	Duration    Duration       `json:"duration,omitempty"`
	Tiers       []ByteSize     `json:"tiers,omitempty" validate:"dive,gt=0"`
	ChunkSize   ByteSize       `json:"chunk_size,omitempty" validate:"gte=0"`
	StopRule    bench.StopRule `json:"stop_rule,omitempty" validate:"omitempty,oneof=duration repetitions"`
	Repetitions int            `json:"repetitions,omitempty" validate:"gte=0"`
	MaxSize     ByteSize       `json:"max_size,omitempty" validate:"gte=0"`
}

type DiskConfig struct {
	Duration   Duration       `json:"duration,omitempty"`
	ScratchDir string         `json:"scratch_dir,omitempty"`
	FileSize   ByteSize       `json:"file_size,omitempty" validate:"gte=0"`
	ChunkSize  ByteSize       `json:"chunk_size,omitempty" validate:"gte=0"`
	BlockSize  ByteSize       `json:"block_size,omitempty" validate:"gte=0"`
	StopRule   bench.StopRule `json:"stop_rule,omitempty" validate:"omitempty,oneof=duration repetitions"`
	RandomOps  int            `json:"random_ops,omitempty" validate:"gte=0"`
}

// Default returns a configuration running every test with the standard preset.
func Default() *Config {
	return &Config{
		Tests:    slices.Clone(bench.Kinds[:]),
		Preset:   DefaultPreset,
		Duration: Duration(DefaultDuration),
		Trials:   DefaultTrials,
	}
}

// Selected reports whether k is among the configured tests.
func (c *Config) Selected(k bench.Kind) bool {
	return slices.Contains(c.Tests, k)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Tests = slices.Clone(c.Tests)
	out.Memory.Tiers = slices.Clone(c.Memory.Tiers)
	return &out
}

// ApplyPreset sets the run duration from the named preset.
func (c *Config) ApplyPreset(p Preset) error {
	d, ok := p.Duration()
	if !ok {
		return InvalidConfigError{Field: "preset", Reason: "unknown preset " + string(p)}
	}
	c.Preset = p
	c.Duration = Duration(d)
	return nil
}

func (c *Config) testDuration(override Duration) time.Duration {
	if override > 0 {
		return override.Std()
	}
	return c.Duration.Std()
}

func (c *Config) CPUOptions() bench.CPUOptions {
	return bench.CPUOptions{
		Duration:   c.testDuration(c.CPU.Duration),
		Trials:     c.Trials,
		PrimeBound: c.CPU.PrimeBound,
		MathOps:    c.CPU.MathOps,
	}
}

func (c *Config) MemoryOptions() bench.MemoryOptions {
	var tiers []int64
	for _, t := range c.Memory.Tiers {
		tiers = append(tiers, int64(t))
	}
	return bench.MemoryOptions{
		Tiers:       tiers,
		ChunkSize:   int64(c.Memory.ChunkSize),
		StopRule:    c.Memory.StopRule,
		Duration:    c.testDuration(c.Memory.Duration),
		Repetitions: c.Memory.Repetitions,
		MaxBytes:    uint64(c.Memory.MaxSize),
	}
}

// DiskOptions uses the run duration for the random-access phase; the
// sequential phases are bound by the file size.
func (c *Config) DiskOptions() bench.DiskOptions {
	return bench.DiskOptions{
		Dir:       c.Disk.ScratchDir,
		FileSize:  int64(c.Disk.FileSize),
		ChunkSize: int64(c.Disk.ChunkSize),
		BlockSize: int64(c.Disk.BlockSize),
		Trials:    c.Trials,
		StopRule:  c.Disk.StopRule,
		Duration:  c.testDuration(c.Disk.Duration),
		RandomOps: int64(c.Disk.RandomOps),
	}
}

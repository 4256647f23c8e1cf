// SPDX-License-Identifier: Apache-2.0

package bench

import "time"

// MiB is the unit used for every MB/s figure.
const MiB = 1 << 20

// Phase names a timed section of a test.
type Phase string

const (
	PhaseCompute  Phase = "compute"
	PhaseWrite    Phase = "write"
	PhaseRead     Phase = "read"
	PhaseChurn    Phase = "churn"
	PhaseSeqWrite Phase = "seq_write"
	PhaseSeqRead  Phase = "seq_read"
	PhaseRandom   Phase = "random"
)

// StopRule is how a repeated workload decides it is done.
type StopRule string

const (
	StopByDuration    StopRule = "duration"
	StopByRepetitions StopRule = "repetitions"
)

// Sample is one timed trial or pass of a phase.
type Sample struct {
	Phase   Phase         `json:"phase"`
	Trial   int           `json:"trial"`
	Size    int64         `json:"size,omitempty"`
	Units   float64       `json:"units"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Rate    float64       `json:"rate"`
}

// RawMetric is the measurement produced by a single test. Exactly one of
// the kind-specific sections is set.
type RawMetric struct {
	Kind    Kind          `json:"kind"`
	CPU     *CPUMetric    `json:"cpu,omitempty"`
	Memory  *MemoryMetric `json:"memory,omitempty"`
	Disk    *DiskMetric   `json:"disk,omitempty"`
	Samples []Sample      `json:"samples,omitempty"`
}

type CPUMetric struct {
	Iterations         int64         `json:"iterations"`
	Elapsed            time.Duration `json:"elapsed_ns"`
	OpsPerSecond       float64       `json:"ops_per_second"`
	PrimesPerIteration int           `json:"primes_per_iteration"`
	Trials             int           `json:"trials"`
	// Warmup is set when one untimed iteration ran before the first trial.
	Warmup bool `json:"warmup,omitempty"`
}

type MemoryMetric struct {
	Tiers          []int64       `json:"tiers"`
	StopRule       StopRule      `json:"stop_rule"`
	Passes         int           `json:"passes"`
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	WriteElapsed   time.Duration `json:"write_elapsed_ns"`
	ReadElapsed    time.Duration `json:"read_elapsed_ns"`
	WriteMBps      float64       `json:"write_mb_per_second"`
	ReadMBps       float64       `json:"read_mb_per_second"`
	ChunkAccesses  int64         `json:"chunk_accesses"`
	Latency        time.Duration `json:"latency_ns"`
	Allocations    int64         `json:"allocations"`
	AllocsPerSec   float64       `json:"allocations_per_second"`
	ChurnElapsed   time.Duration `json:"churn_elapsed_ns"`
	VerifiedChunks int64         `json:"verified_chunks"`
	// Warmup is set when each tier was filled once, untimed, before its
	// first pass.
	Warmup bool `json:"warmup,omitempty"`
}

type DiskMetric struct {
	FileSize      int64         `json:"file_size"`
	ChunkSize     int64         `json:"chunk_size"`
	BlockSize     int64         `json:"block_size"`
	StopRule      StopRule      `json:"stop_rule"`
	BytesWritten  int64         `json:"bytes_written"`
	BytesRead     int64         `json:"bytes_read"`
	WriteElapsed  time.Duration `json:"write_elapsed_ns"`
	ReadElapsed   time.Duration `json:"read_elapsed_ns"`
	WriteMBps     float64       `json:"write_mb_per_second"`
	ReadMBps      float64       `json:"read_mb_per_second"`
	RandomOps     int64         `json:"random_ops"`
	RandomElapsed time.Duration `json:"random_elapsed_ns"`
	IOPS          float64       `json:"iops"`
	RandomLatency time.Duration `json:"random_latency_ns"`
	// Warmup is set when the scratch file was written once, untimed, before
	// the first trial.
	Warmup bool `json:"warmup,omitempty"`
}

func mbPerSecond(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / MiB / elapsed.Seconds()
}

func perSecond(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}

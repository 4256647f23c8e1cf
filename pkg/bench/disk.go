// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"time"

	"github.com/cloudflare/backoff"

	"github.com/xataio/hwbench/pkg/sampler"
)

const (
	DefaultDiskFileSize  int64 = 50 * MiB
	DefaultDiskChunkSize int64 = 1 * MiB
	DefaultDiskBlockSize int64 = 4 << 10
	DefaultDiskRandomOps int64 = 10_000

	maxRemoveAttempts     = 5
	maxRemoveBackoff      = 2 * time.Second
	removeBackoffInterval = 50 * time.Millisecond

	scratchPattern = "hwbench-*.tmp"
)

type DiskOptions struct {
	// Dir is the scratch directory; the caller owns its lifecycle.
	Dir        string
	FileSize   int64
	ChunkSize  int64
	BlockSize  int64
	Trials     int
	StopRule   StopRule
	Duration   time.Duration
	RandomOps  int64
	RandomSeed uint64
	// Debug receives diagnostics such as scratch removal retries. Nil
	// discards them.
	Debug func(msg string, args ...any)
}

type DiskTest struct {
	opts      DiskOptions
	sampler   *sampler.Sampler
	resources Resources
}

func NewDiskTest(opts DiskOptions, s *sampler.Sampler, r Resources) *DiskTest {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.FileSize == 0 {
		opts.FileSize = DefaultDiskFileSize
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultDiskChunkSize
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultDiskBlockSize
	}
	if opts.Trials == 0 {
		opts.Trials = 1
	}
	if opts.StopRule == "" {
		opts.StopRule = StopByDuration
	}
	if opts.RandomOps == 0 {
		opts.RandomOps = DefaultDiskRandomOps
	}
	return &DiskTest{opts: opts, sampler: s, resources: r}
}

func (t *DiskTest) Kind() Kind { return KindDisk }

func (t *DiskTest) validate() error {
	switch {
	case t.opts.FileSize <= 0:
		return InvalidOptionError{Kind: KindDisk, Field: "file_size", Reason: "must be positive"}
	case t.opts.ChunkSize <= 0:
		return InvalidOptionError{Kind: KindDisk, Field: "chunk_size", Reason: "must be positive"}
	case t.opts.BlockSize <= 0 || t.opts.BlockSize > t.opts.FileSize:
		return InvalidOptionError{Kind: KindDisk, Field: "block_size", Reason: "must be positive and no larger than the file"}
	case t.opts.Trials < 1:
		return InvalidOptionError{Kind: KindDisk, Field: "trials", Reason: "must be at least 1"}
	case t.opts.StopRule == StopByDuration && t.opts.Duration <= 0:
		return InvalidOptionError{Kind: KindDisk, Field: "duration", Reason: "must be positive"}
	case t.opts.StopRule == StopByRepetitions && t.opts.RandomOps < 1:
		return InvalidOptionError{Kind: KindDisk, Field: "random_ops", Reason: "must be at least 1"}
	case t.opts.StopRule != StopByDuration && t.opts.StopRule != StopByRepetitions:
		return InvalidOptionError{Kind: KindDisk, Field: "stop_rule", Reason: "unknown rule"}
	}
	return nil
}

// Run writes and reads a scratch file sequentially Trials times, then
// performs a random read/write mix over fixed-size blocks. The page cache
// is not bypassed; each write phase ends with fsync before the next read.
// The scratch file is removed on every return path.
func (t *DiskTest) Run(ctx context.Context, progress ProgressFn) (_ RawMetric, err error) {
	if err := t.validate(); err != nil {
		return RawMetric{}, err
	}

	free, err := t.resources.FreeDiskSpace(ctx, t.opts.Dir)
	if err != nil {
		return RawMetric{}, err
	}
	if uint64(t.opts.FileSize) > free {
		return RawMetric{}, InsufficientResourceError{Kind: KindDisk, Resource: "disk space", Requested: uint64(t.opts.FileSize), Available: free}
	}

	f, err := os.CreateTemp(t.opts.Dir, scratchPattern)
	if err != nil {
		return RawMetric{}, IOError{Op: "create", Path: t.opts.Dir, Err: err}
	}
	defer func() {
		if cerr := closeAndRemove(f, t.opts.Debug); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s := &diskRun{
		DiskTest: t,
		f:        f,
		buf:      make([]byte, max(t.opts.ChunkSize, t.opts.BlockSize)),
		rng:      rand.New(rand.NewPCG(t.opts.RandomSeed, 0x9e3779b97f4a7c15)),
		metric: DiskMetric{
			FileSize:  t.opts.FileSize,
			ChunkSize: t.opts.ChunkSize,
			BlockSize: t.opts.BlockSize,
			StopRule:  t.opts.StopRule,
		},
		steps: float64(2*t.opts.Trials + 1),
	}
	for i := range s.buf {
		s.buf[i] = byte(s.rng.Uint32())
	}

	return s.run(ctx, progress)
}

// diskRun is the state of a single Run call.
type diskRun struct {
	*DiskTest
	f          *os.File
	buf        []byte
	rng        *rand.Rand
	metric     DiskMetric
	samples    []Sample
	writeRates []float64
	readRates  []float64
	steps      float64
	step       int
}

func (s *diskRun) run(ctx context.Context, progress ProgressFn) (RawMetric, error) {
	warmed, err := s.sampler.Warmup(func() error {
		return s.writeFile(ctx, nil)
	})
	if err != nil {
		return RawMetric{}, err
	}
	s.metric.Warmup = warmed

	for trial := 0; trial < s.opts.Trials; trial++ {
		if err := s.sequentialWrite(ctx, trial, progress); err != nil {
			return RawMetric{}, err
		}
		if err := s.sequentialRead(ctx, trial, progress); err != nil {
			return RawMetric{}, err
		}
	}
	if err := s.random(ctx, progress); err != nil {
		return RawMetric{}, err
	}

	s.metric.WriteMBps = sampler.Median(s.writeRates)
	s.metric.ReadMBps = sampler.Median(s.readRates)
	progress.report(PhaseRandom, 1, &Preview{Name: "iops", Value: s.metric.IOPS, Unit: "IOPS"})

	m := s.metric
	return RawMetric{Kind: KindDisk, Disk: &m, Samples: s.samples}, nil
}

func (s *diskRun) fraction(within float64) float64 {
	return (float64(s.step) + within) / s.steps
}

// writeFile writes the whole scratch file from the start in chunks and
// syncs it. onChunk, when set, is called with the bytes written so far.
func (s *diskRun) writeFile(ctx context.Context, onChunk func(written int64)) error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return IOError{Op: "seek", Path: s.f.Name(), Err: err}
	}

	size := s.opts.FileSize
	for written := int64(0); written < size; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(s.opts.ChunkSize, size-written)
		if _, err := s.f.Write(s.buf[:n]); err != nil {
			return IOError{Op: "write", Path: s.f.Name(), Err: err}
		}
		written += n
		if onChunk != nil {
			onChunk(written)
		}
	}
	if err := s.f.Sync(); err != nil {
		return IOError{Op: "sync", Path: s.f.Name(), Err: err}
	}
	return nil
}

func (s *diskRun) sequentialWrite(ctx context.Context, trial int, progress ProgressFn) error {
	size := s.opts.FileSize
	start := s.sampler.Now()
	err := s.writeFile(ctx, func(written int64) {
		progress.report(PhaseSeqWrite, s.fraction(float64(written)/float64(size)), nil)
	})
	if err != nil {
		return err
	}
	elapsed, err := s.sampler.Elapsed(trial, start)
	if err != nil {
		return err
	}

	rate := mbPerSecond(size, elapsed)
	s.writeRates = append(s.writeRates, rate)
	s.samples = append(s.samples, Sample{Phase: PhaseSeqWrite, Trial: trial, Size: size, Units: float64(size), Elapsed: elapsed, Rate: rate})
	s.metric.BytesWritten += size
	s.metric.WriteElapsed += elapsed
	s.step++
	progress.report(PhaseSeqWrite, s.fraction(0), &Preview{Name: "write", Value: rate, Unit: "MB/s"})
	return nil
}

func (s *diskRun) sequentialRead(ctx context.Context, trial int, progress ProgressFn) error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return IOError{Op: "seek", Path: s.f.Name(), Err: err}
	}

	size := s.opts.FileSize
	start := s.sampler.Now()
	for read := int64(0); read < size; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(s.opts.ChunkSize, size-read)
		if _, err := io.ReadFull(s.f, s.buf[:n]); err != nil {
			return IOError{Op: "read", Path: s.f.Name(), Err: err}
		}
		read += n
		progress.report(PhaseSeqRead, s.fraction(float64(read)/float64(size)), nil)
	}
	elapsed, err := s.sampler.Elapsed(trial, start)
	if err != nil {
		return err
	}

	rate := mbPerSecond(size, elapsed)
	s.readRates = append(s.readRates, rate)
	s.samples = append(s.samples, Sample{Phase: PhaseSeqRead, Trial: trial, Size: size, Units: float64(size), Elapsed: elapsed, Rate: rate})
	s.metric.BytesRead += size
	s.metric.ReadElapsed += elapsed
	s.step++
	progress.report(PhaseSeqRead, s.fraction(0), &Preview{Name: "read", Value: rate, Unit: "MB/s"})
	return nil
}

// random issues an even mix of block reads and writes at block-aligned
// offsets, ending with fsync inside the timed window.
func (s *diskRun) random(ctx context.Context, progress ProgressFn) error {
	block := s.opts.BlockSize
	blocks := s.opts.FileSize / block
	buf := s.buf[:block]

	var ops int64
	start := s.sampler.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		off := s.rng.Int64N(blocks) * block
		if s.rng.IntN(2) == 0 {
			if _, err := s.f.ReadAt(buf, off); err != nil {
				return IOError{Op: "read", Path: s.f.Name(), Err: err}
			}
			s.metric.BytesRead += block
		} else {
			if _, err := s.f.WriteAt(buf, off); err != nil {
				return IOError{Op: "write", Path: s.f.Name(), Err: err}
			}
			s.metric.BytesWritten += block
		}
		ops++

		var within float64
		if s.opts.StopRule == StopByRepetitions {
			if ops >= s.opts.RandomOps {
				break
			}
			within = float64(ops) / float64(s.opts.RandomOps)
		} else {
			elapsed := s.sampler.Now() - start
			if elapsed >= s.opts.Duration {
				break
			}
			within = float64(elapsed) / float64(s.opts.Duration)
		}
		progress.report(PhaseRandom, s.fraction(within), nil)
	}
	if err := s.f.Sync(); err != nil {
		return IOError{Op: "sync", Path: s.f.Name(), Err: err}
	}
	elapsed, err := s.sampler.Elapsed(0, start)
	if err != nil {
		return err
	}

	s.metric.RandomOps = ops
	s.metric.RandomElapsed = elapsed
	s.metric.IOPS = perSecond(ops, elapsed)
	s.metric.RandomLatency = elapsed / time.Duration(ops)
	s.samples = append(s.samples, Sample{Phase: PhaseRandom, Size: block, Units: float64(ops), Elapsed: elapsed, Rate: s.metric.IOPS})
	s.step++
	return nil
}

func closeAndRemove(f *os.File, debug func(string, ...any)) error {
	cerr := f.Close()
	if err := removeScratch(f.Name(), debug); err != nil {
		return err
	}
	if cerr != nil {
		return IOError{Op: "close", Path: f.Name(), Err: cerr}
	}
	return nil
}

// removeScratch deletes path, retrying with exponential backoff. It ignores
// cancellation so the file is removed even when the run was cancelled.
// Every failed attempt is passed to debug when it is set.
func removeScratch(path string, debug func(string, ...any)) error {
	b := backoff.New(maxRemoveBackoff, removeBackoffInterval)
	var err error
	for attempt := 1; attempt <= maxRemoveAttempts; attempt++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if debug != nil {
			debug("scratch file removal failed", "path", path, "attempt", attempt, "error", err)
		}
		if attempt < maxRemoveAttempts {
			time.Sleep(b.Duration())
		}
	}
	return IOError{Op: "remove", Path: path, Err: err}
}

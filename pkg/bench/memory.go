// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/xataio/hwbench/pkg/sampler"
)

const (
	DefaultMemoryChunkSize   int64 = 64 << 10
	DefaultMemoryRepetitions       = 3
	churnAllocsPerRepetition       = 10_000
	churnCheckEvery                = 256
	churnLive                      = 64
)

// DefaultMemoryTiers are the buffer sizes used when none are configured.
var DefaultMemoryTiers = []int64{1 * MiB, 16 * MiB, 128 * MiB}

var churnSizes = [...]int{64, 512, 4 << 10, 32 << 10}

type MemoryOptions struct {
	Tiers       []int64
	ChunkSize   int64
	StopRule    StopRule
	Duration    time.Duration
	Repetitions int
	// MaxBytes caps the largest tier; zero means only available memory applies.
	MaxBytes uint64
}

type MemoryTest struct {
	opts      MemoryOptions
	sampler   *sampler.Sampler
	resources Resources
}

func NewMemoryTest(opts MemoryOptions, s *sampler.Sampler, r Resources) *MemoryTest {
	if len(opts.Tiers) == 0 {
		opts.Tiers = DefaultMemoryTiers
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultMemoryChunkSize
	}
	if opts.StopRule == "" {
		opts.StopRule = StopByDuration
	}
	if opts.Repetitions == 0 {
		opts.Repetitions = DefaultMemoryRepetitions
	}
	return &MemoryTest{opts: opts, sampler: s, resources: r}
}

func (t *MemoryTest) Kind() Kind { return KindMemory }

func (t *MemoryTest) validate() error {
	for _, size := range t.opts.Tiers {
		if size <= 0 {
			return InvalidOptionError{Kind: KindMemory, Field: "tiers", Reason: fmt.Sprintf("buffer size must be positive, got %d", size)}
		}
	}
	if t.opts.ChunkSize <= 0 {
		return InvalidOptionError{Kind: KindMemory, Field: "chunk_size", Reason: "must be positive"}
	}
	switch t.opts.StopRule {
	case StopByDuration:
		if t.opts.Duration <= 0 {
			return InvalidOptionError{Kind: KindMemory, Field: "duration", Reason: "must be positive"}
		}
	case StopByRepetitions:
		if t.opts.Repetitions < 1 {
			return InvalidOptionError{Kind: KindMemory, Field: "repetitions", Reason: "must be at least 1"}
		}
	default:
		return InvalidOptionError{Kind: KindMemory, Field: "stop_rule", Reason: fmt.Sprintf("unknown rule %q", t.opts.StopRule)}
	}
	return nil
}

func (t *MemoryTest) checkResources(ctx context.Context) error {
	available, err := t.resources.AvailableMemory(ctx)
	if err != nil {
		return err
	}
	for _, size := range t.opts.Tiers {
		if t.opts.MaxBytes > 0 && uint64(size) > t.opts.MaxBytes {
			return InsufficientResourceError{Kind: KindMemory, Resource: "memory", Requested: uint64(size), Available: t.opts.MaxBytes}
		}
		if uint64(size) > available {
			return InsufficientResourceError{Kind: KindMemory, Resource: "memory", Requested: uint64(size), Available: available}
		}
	}
	return nil
}

// memoryTally accumulates per-pass results across tiers.
type memoryTally struct {
	metric     MemoryMetric
	writeRates []float64
	readRates  []float64
	samples    []Sample
}

// Run measures each tier in turn, then allocation churn. With the duration
// rule nine tenths of the budget is split evenly across tiers and the rest
// goes to churn.
func (t *MemoryTest) Run(ctx context.Context, progress ProgressFn) (RawMetric, error) {
	if err := t.validate(); err != nil {
		return RawMetric{}, err
	}
	if err := t.checkResources(ctx); err != nil {
		return RawMetric{}, err
	}

	tally := &memoryTally{metric: MemoryMetric{Tiers: t.opts.Tiers, StopRule: t.opts.StopRule}}
	tierWindow := t.opts.Duration * 9 / 10 / time.Duration(len(t.opts.Tiers))
	steps := float64(len(t.opts.Tiers) + 1)

	for i, size := range t.opts.Tiers {
		report := func(phase Phase, fraction float64, preview *Preview) {
			progress.report(phase, (float64(i)+fraction)/steps, preview)
		}
		if err := t.runTier(ctx, size, tierWindow, tally, report); err != nil {
			return RawMetric{}, err
		}
	}

	churnStep := func(fraction float64) {
		progress.report(PhaseChurn, (steps-1+fraction)/steps, nil)
	}
	if err := t.churn(ctx, t.opts.Duration/10, tally, churnStep); err != nil {
		return RawMetric{}, err
	}

	m := &tally.metric
	m.WriteMBps = sampler.Median(tally.writeRates)
	m.ReadMBps = sampler.Median(tally.readRates)
	if m.ChunkAccesses > 0 {
		m.Latency = (m.WriteElapsed + m.ReadElapsed) / time.Duration(m.ChunkAccesses)
	}
	progress.report(PhaseRead, 1, &Preview{Name: "read", Value: m.ReadMBps, Unit: "MB/s"})

	return RawMetric{Kind: KindMemory, Memory: m, Samples: tally.samples}, nil
}

// runTier owns the tier buffer for the duration of the call and releases it
// on every return path.
func (t *MemoryTest) runTier(ctx context.Context, size int64, window time.Duration, tally *memoryTally, progress ProgressFn) error {
	buf := make([]byte, size)
	defer func() {
		buf = nil
		debug.FreeOSMemory()
	}()

	patterns := [2][]byte{fillPattern(t.opts.ChunkSize, 0), fillPattern(t.opts.ChunkSize, 1)}
	chunks := (size + t.opts.ChunkSize - 1) / t.opts.ChunkSize

	// The warm-up fill uses the second pattern so the first timed pass
	// still changes every byte.
	warmed, err := t.sampler.Warmup(func() error {
		return t.fill(ctx, buf, patterns[1])
	})
	if err != nil {
		return err
	}
	tally.metric.Warmup = warmed

	tierStart := t.sampler.Now()
	for pass := 0; ; pass++ {
		pattern := patterns[pass%2]

		start := t.sampler.Now()
		if err := t.fill(ctx, buf, pattern); err != nil {
			return err
		}
		writeElapsed, err := t.sampler.Elapsed(pass, start)
		if err != nil {
			return err
		}

		start = t.sampler.Now()
		for off := int64(0); off < size; off += t.opts.ChunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(off+t.opts.ChunkSize, size)
			if !bytes.Equal(buf[off:end], pattern[:end-off]) {
				return VerificationError{BufferSize: size, Offset: off}
			}
		}
		readElapsed, err := t.sampler.Elapsed(pass, start)
		if err != nil {
			return err
		}

		tally.record(pass, size, chunks, writeElapsed, readElapsed)

		done := pass+1 >= t.opts.Repetitions
		fraction := float64(pass+1) / float64(t.opts.Repetitions)
		if t.opts.StopRule == StopByDuration {
			tierElapsed := t.sampler.Now() - tierStart
			done = tierElapsed >= window
			fraction = float64(tierElapsed) / float64(window)
		}
		progress(PhaseWrite, fraction, &Preview{Name: "write", Value: mbPerSecond(size, writeElapsed), Unit: "MB/s"})
		if done {
			return nil
		}
	}
}

// fill writes pattern over buf one chunk at a time.
func (t *MemoryTest) fill(ctx context.Context, buf, pattern []byte) error {
	size := int64(len(buf))
	for off := int64(0); off < size; off += t.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(buf[off:min(off+t.opts.ChunkSize, size)], pattern)
	}
	return nil
}

func (tally *memoryTally) record(pass int, size, chunks int64, writeElapsed, readElapsed time.Duration) {
	m := &tally.metric
	m.Passes++
	m.BytesWritten += size
	m.BytesRead += size
	m.WriteElapsed += writeElapsed
	m.ReadElapsed += readElapsed
	m.ChunkAccesses += 2 * chunks
	m.VerifiedChunks += chunks

	writeRate := mbPerSecond(size, writeElapsed)
	readRate := mbPerSecond(size, readElapsed)
	tally.writeRates = append(tally.writeRates, writeRate)
	tally.readRates = append(tally.readRates, readRate)
	tally.samples = append(tally.samples,
		Sample{Phase: PhaseWrite, Trial: pass, Size: size, Units: float64(size), Elapsed: writeElapsed, Rate: writeRate},
		Sample{Phase: PhaseRead, Trial: pass, Size: size, Units: float64(size), Elapsed: readElapsed, Rate: readRate},
	)
}

// churn allocates and drops short-lived blocks of mixed sizes, keeping a
// small ring of them live so they escape to the heap.
func (t *MemoryTest) churn(ctx context.Context, window time.Duration, tally *memoryTally, progress func(float64)) error {
	var live [churnLive][]byte
	var acc int
	target := int64(t.opts.Repetitions) * churnAllocsPerRepetition

	start := t.sampler.Now()
	var n int64
	for {
		if n%churnCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if t.opts.StopRule == StopByDuration && n > 0 {
				elapsed := t.sampler.Now() - start
				if elapsed >= window {
					break
				}
				progress(float64(elapsed) / float64(window))
			}
		}
		if t.opts.StopRule == StopByRepetitions && n >= target {
			break
		}

		b := make([]byte, churnSizes[n%int64(len(churnSizes))])
		b[0] = byte(n)
		b[len(b)-1] = byte(n >> 8)
		if live[n%churnLive] == nil {
			acc++
		}
		live[n%churnLive] = b
		n++
	}

	elapsed, err := t.sampler.Elapsed(0, start)
	if err != nil {
		return err
	}
	sink.Add(uint64(acc))

	m := &tally.metric
	m.Allocations = n
	m.ChurnElapsed = elapsed
	m.AllocsPerSec = perSecond(n, elapsed)
	tally.samples = append(tally.samples, Sample{Phase: PhaseChurn, Units: float64(n), Elapsed: elapsed, Rate: m.AllocsPerSec})
	return nil
}

// fillPattern returns a chunk of repeating bytes; different seeds yield
// patterns that differ at every offset.
func fillPattern(size int64, seed byte) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(i%251) ^ (seed * 0xA5)
	}
	return p
}

// SPDX-License-Identifier: Apache-2.0

package sampler

import (
	"math"
	"slices"
	"time"
)

// Summary describes a set of per-trial values.
type Summary struct {
	N           int     `json:"n"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	TrimmedMean float64 `json:"trimmed_mean"`
	StdDev      float64 `json:"stddev"`
}

// DefaultTrimFraction is the share of values dropped from each end by
// Summarize when computing the trimmed mean.
const DefaultTrimFraction = 0.1

// MedianDuration returns the median of ds. An even number of values yields
// the mean of the two middle values. It returns 0 for an empty slice.
func MedianDuration(ds []time.Duration) time.Duration {
	return median(ds)
}

// Median returns the median of xs, or 0 for an empty slice.
func Median(xs []float64) float64 {
	return median(xs)
}

// median sorts a copy of xs, leaving the input untouched.
func median[T time.Duration | float64](xs []T) T {
	if len(xs) == 0 {
		return 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// TrimmedMean drops floor(len*fraction) values from each end of the sorted
// input and averages the rest. Fractions are clamped to [0, 0.5); when
// trimming would remove everything the median is returned.
func TrimmedMean(xs []float64, fraction float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	fraction = max(0, min(fraction, 0.49))
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	k := int(math.Floor(float64(len(sorted)) * fraction))
	kept := sorted[k : len(sorted)-k]
	if len(kept) == 0 {
		return Median(sorted)
	}
	return mean(kept)
}

// Rates converts per-trial counts and durations into per-second rates.
// Values are paired by index; extra entries in either slice are ignored.
func Rates(counts []float64, elapsed []time.Duration) []float64 {
	n := min(len(counts), len(elapsed))
	rates := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if elapsed[i] <= 0 {
			continue
		}
		rates = append(rates, counts[i]/elapsed[i].Seconds())
	}
	return rates
}

func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return Summary{
		N:           len(xs),
		Min:         slices.Min(xs),
		Max:         slices.Max(xs),
		Mean:        m,
		Median:      Median(xs),
		TrimmedMean: TrimmedMean(xs, DefaultTrimFraction),
		StdDev:      math.Sqrt(sq / float64(len(xs))),
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

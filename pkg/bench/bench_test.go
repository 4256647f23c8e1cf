// SPDX-License-Identifier: Apache-2.0

package bench_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/pkg/bench"
)

type fakeResources struct {
	memory uint64
	disk   uint64
}

func (r fakeResources) AvailableMemory(context.Context) (uint64, error) { return r.memory, nil }

func (r fakeResources) FreeDiskSpace(context.Context, string) (uint64, error) { return r.disk, nil }

var plenty = fakeResources{memory: 1 << 40, disk: 1 << 40}

// scriptedClock returns the given readings in order, repeating the last one.
type scriptedClock struct {
	readings []time.Duration
	i        int
}

func (c *scriptedClock) Now() time.Duration {
	r := c.readings[min(c.i, len(c.readings)-1)]
	c.i++
	return r
}

// progressLog records reported fractions.
type progressLog struct {
	fractions []float64
}

func (p *progressLog) fn() bench.ProgressFn {
	return func(_ bench.Phase, fraction float64, _ *bench.Preview) {
		p.fractions = append(p.fractions, fraction)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Name     string
		Input    string
		Expected bench.Kind
		WantErr  bool
	}{
		{Name: "lower case", Input: "cpu", Expected: bench.KindCPU},
		{Name: "mixed case with spaces", Input: " Memory ", Expected: bench.KindMemory},
		{Name: "disk", Input: "DISK", Expected: bench.KindDisk},
		{Name: "unknown", Input: "gpu", WantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			t.Parallel()

			k, err := bench.ParseKind(tt.Input)
			if tt.WantErr {
				var unknown bench.UnknownKindError
				require.ErrorAs(t, err, &unknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.Expected, k)
		})
	}
}

func TestSetKeepsExecutionOrder(t *testing.T) {
	t.Parallel()

	var s bench.Set[float64]
	s.Put(bench.KindDisk, 3)
	s.Put(bench.KindCPU, 1)
	s.Put(bench.Kind("gpu"), 9)

	assert.Equal(t, []bench.Kind{bench.KindCPU, bench.KindDisk}, s.Kinds())
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Has(bench.KindMemory))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cpu":1,"disk":3}`, string(data))
	assert.Equal(t, `{"cpu":1,"disk":3}`, string(data))

	var decoded bench.Set[float64]
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)

	s.Delete(bench.KindCPU)
	assert.Equal(t, []bench.Kind{bench.KindDisk}, s.Kinds())
}

func TestSetRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	var s bench.Set[int]
	err := json.Unmarshal([]byte(`{"cpu":1,"gpu":2}`), &s)

	var unknown bench.UnknownKindError
	require.ErrorAs(t, err, &unknown)
}

func TestEmptySetMarshalsToEmptyObject(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(bench.Set[int]{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// SampleRow is one per-trial sample flattened for columnar analysis.
type SampleRow struct {
	RunID     string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartedAt int64   `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Kind      string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Phase     string  `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8"`
	Trial     int32   `parquet:"name=trial, type=INT32"`
	Size      int64   `parquet:"name=size, type=INT64"`
	Units     float64 `parquet:"name=units, type=DOUBLE"`
	ElapsedNs int64   `parquet:"name=elapsed_ns, type=INT64"`
	Rate      float64 `parquet:"name=rate, type=DOUBLE"`
}

// SampleRows flattens the samples of every recorded test in execution order.
func SampleRows(r *Report) []SampleRow {
	var rows []SampleRow
	for _, k := range r.RawMetrics.Kinds() {
		m, _ := r.RawMetrics.Get(k)
		for _, s := range m.Samples {
			rows = append(rows, SampleRow{
				RunID:     r.ID,
				StartedAt: r.StartedAt.UnixMilli(),
				Kind:      k.String(),
				Phase:     string(s.Phase),
				Trial:     int32(s.Trial),
				Size:      s.Size,
				Units:     s.Units,
				ElapsedNs: s.Elapsed.Nanoseconds(),
				Rate:      s.Rate,
			})
		}
	}
	return rows
}

// WriteSamplesParquet writes the samples of r to a Parquet file at path and
// returns the number of rows written.
func WriteSamplesParquet(path string, r *Report) (int, error) {
	file, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(file, new(SampleRow), 4)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	rows := SampleRows(r)
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			file.Close()
			return 0, fmt.Errorf("failed to write sample: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close parquet file: %w", err)
	}
	return len(rows), nil
}

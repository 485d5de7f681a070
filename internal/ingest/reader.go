// Package ingest streams a detection CSV export as bounded batches of typed
// records. The reader is forward-only: once a batch has been yielded it cannot
// be rewound, and re-reading the source requires opening a new Reader.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/areino/taegis-detection-analysis/api/schemas"
)

// Columns names the three required columns in the source export.
type Columns struct {
	Sensor   string
	Severity string
	Status   string
}

// Reader yields successive batches of at most chunkSize records, preserving
// input order. Peak memory is proportional to chunkSize regardless of the
// total file size.
type Reader struct {
	file      *os.File
	csv       *csv.Reader
	chunkSize int

	sensorIdx   int
	severityIdx int
	statusIdx   int

	rowsRead int64
	log      *zap.Logger
}

// Open opens the export at path and validates its header. The required
// columns are resolved exactly once here; a missing column aborts the whole
// run with an error naming the columns that are actually present.
func Open(path string, chunkSize int, cols Columns, logger *zap.Logger) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be a positive integer, got %d", chunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	cr := csv.NewReader(f)
	// The upstream export has minor quoting variance; tolerate it rather
	// than failing rows the extractor could still salvage.
	cr.LazyQuotes = true
	// Ragged rows are yielded with empty fields and counted as skipped by
	// the aggregator instead of failing the read.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("input file %s is empty", path)
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	r := &Reader{
		file:      f,
		csv:       cr,
		chunkSize: chunkSize,
		log:       logger.Named("ingest"),
	}

	if r.sensorIdx, err = resolveColumn(header, cols.Sensor); err != nil {
		f.Close()
		return nil, err
	}
	if r.severityIdx, err = resolveColumn(header, cols.Severity); err != nil {
		f.Close()
		return nil, err
	}
	if r.statusIdx, err = resolveColumn(header, cols.Status); err != nil {
		f.Close()
		return nil, err
	}

	r.log.Debug("Input schema validated.",
		zap.String("path", path),
		zap.Int("columns", len(header)),
		zap.Int("chunk_size", chunkSize))
	return r, nil
}

// resolveColumn finds name in the header. The error message carries the full
// set of available column names to aid diagnosis of a mismatched export.
func resolveColumn(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	available := make([]string, len(header))
	for i, h := range header {
		available[i] = strings.TrimSpace(h)
	}
	return 0, fmt.Errorf("required column %q not found in input (available columns: %s)",
		name, strings.Join(available, ", "))
}

// Next returns the next batch of up to chunkSize records. The final batch may
// be shorter; after it has been returned, Next returns io.EOF. Any other
// error is a failed read on the source and aborts the run.
func (r *Reader) Next() ([]schemas.Record, error) {
	batch := make([]schemas.Record, 0, r.chunkSize)
	for len(batch) < r.chunkSize {
		row, err := r.csv.Read()
		if err == io.EOF {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", r.rowsRead+1, err)
		}
		r.rowsRead++
		batch = append(batch, schemas.Record{
			SensorTypes: fieldAt(row, r.sensorIdx),
			Severity:    fieldAt(row, r.severityIdx),
			Status:      fieldAt(row, r.statusIdx),
		})
	}
	return batch, nil
}

// fieldAt tolerates ragged rows: a missing field reads as empty, which the
// aggregator counts as a skipped row.
func fieldAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// RowsRead reports the number of data rows yielded so far, excluding the
// header. Used for the conservation check after aggregation.
func (r *Reader) RowsRead() int64 {
	return r.rowsRead
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

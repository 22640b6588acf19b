package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joshuachristie/biofunc-models/internal/pathutil"
)

// CSVSink appends results to per-parameter CSV files under dataDir. Each run
// adds one line holding its persistence probability to the infinite
// approximation file and, when a curve was recorded, one row holding the
// curve to the finite generations file. Repeated runs of the same
// parameters accumulate in the same files.
type CSVSink struct {
	mu      sync.Mutex
	dataDir string
}

// NewCSVSink creates a sink rooted at dataDir.
func NewCSVSink(dataDir string) *CSVSink {
	return &CSVSink{dataDir: dataDir}
}

// Record appends run's results.
func (s *CSVSink) Record(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := InfiniteApproximationPath(s.dataDir, run)
	if err := appendCSVRecord(s.dataDir, path, []float64{run.Summary.Probability}); err != nil {
		return err
	}

	if len(run.Curve) == 0 {
		return nil
	}
	return appendCSVRecord(s.dataDir, FiniteGenerationsPath(s.dataDir, run), run.Curve)
}

// Close is a no-op; files are closed after every record.
func (s *CSVSink) Close() error { return nil }

func appendCSVRecord(dataDir, path string, values []float64) error {
	if err := prepareFile(dataDir, path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", pathutil.RedactPath(path), err)
	}

	record := make([]string, len(values))
	for i, v := range values {
		record[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", pathutil.RedactPath(path), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", pathutil.RedactPath(path), err)
	}
	return f.Close()
}

// ReadCSV reads every row of a result file written by CSVSink. Rows may
// differ in length.
func ReadCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pathutil.RedactPath(path), err)
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %d: %w", pathutil.RedactPath(path), i+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

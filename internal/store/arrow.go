package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/joshuachristie/biofunc-models/internal/pathutil"
)

// arrowBatchSize is the number of replicates per Arrow record batch.
const arrowBatchSize = 4096

// Metadata keys stored in the trajectory file schema.
const (
	arrowMetaRunID = "run_id"
	arrowMetaModel = "model"
)

// ArrowSink writes each run's raw trajectories to an Arrow IPC file with one
// row per replicate. A later run with the same parameters replaces the file.
// Runs without trajectories are skipped.
type ArrowSink struct {
	mu      sync.Mutex
	dataDir string
	alloc   memory.Allocator
}

// NewArrowSink creates a sink rooted at dataDir.
func NewArrowSink(dataDir string) *ArrowSink {
	return &ArrowSink{dataDir: dataDir, alloc: memory.DefaultAllocator}
}

func trajectorySchema(run Run) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{arrowMetaRunID, arrowMetaModel},
		[]string{run.ID, string(run.Model.Kind)},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "replicate", Type: arrow.PrimitiveTypes.Int64},
		{Name: "frequency", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	}, &md)
}

// Record writes run.Trajectories.
func (s *ArrowSink) Record(ctx context.Context, run Run) error {
	if len(run.Trajectories) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := TrajectoryPath(s.dataDir, run)
	if err := prepareFile(s.dataDir, path); err != nil {
		return err
	}

	// Write to a temporary file in the same directory and rename, so readers
	// never see a half-written file.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".trajectories-*.arrow")
	if err != nil {
		return fmt.Errorf("failed to create trajectory file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.writeTrajectories(ctx, tmp, run); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close trajectory file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}

func (s *ArrowSink) writeTrajectories(ctx context.Context, f *os.File, run Run) error {
	schema := trajectorySchema(run)
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(s.alloc))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(s.alloc, schema)
	defer b.Release()

	replicates := b.Field(0).(*array.Int64Builder)
	frequencies := b.Field(1).(*array.ListBuilder)
	values := frequencies.ValueBuilder().(*array.Float64Builder)

	for lo := 0; lo < len(run.Trajectories); lo += arrowBatchSize {
		if err := ctx.Err(); err != nil {
			w.Close()
			return err
		}
		hi := min(lo+arrowBatchSize, len(run.Trajectories))
		for i := lo; i < hi; i++ {
			replicates.Append(int64(i))
			frequencies.Append(true)
			values.AppendValues(run.Trajectories[i], nil)
		}

		rec := b.NewRecord()
		err := w.Write(rec)
		rec.Release()
		if err != nil {
			w.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish arrow file: %w", err)
	}
	return nil
}

// Close is a no-op; files are closed after every record.
func (s *ArrowSink) Close() error { return nil }

// TrajectoryFile is the content of a file written by ArrowSink.
type TrajectoryFile struct {
	RunID string `json:"run_id"`
	Model string `json:"model"`

	// Trajectories is indexed by replicate.
	Trajectories [][]float64 `json:"trajectories"`
}

// ReadTrajectories loads a trajectory file written by ArrowSink.
func ReadTrajectories(path string) (*TrajectoryFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pathutil.RedactPath(path), err)
	}
	defer r.Close()

	out := &TrajectoryFile{}
	md := r.Schema().Metadata()
	if i := md.FindKey(arrowMetaRunID); i >= 0 {
		out.RunID = md.Values()[i]
	}
	if i := md.FindKey(arrowMetaModel); i >= 0 {
		out.Model = md.Values()[i]
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		replicates, ok := rec.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("unexpected replicate column type %s", rec.Column(0).DataType())
		}
		lists, ok := rec.Column(1).(*array.List)
		if !ok {
			return nil, fmt.Errorf("unexpected frequency column type %s", rec.Column(1).DataType())
		}
		values := lists.ListValues().(*array.Float64).Float64Values()

		for row := 0; row < int(rec.NumRows()); row++ {
			rep := int(replicates.Value(row))
			if rep != len(out.Trajectories) {
				return nil, fmt.Errorf("replicate %d out of order", rep)
			}
			start, end := lists.ValueOffsets(row)
			traj := make([]float64, end-start)
			copy(traj, values[start:end])
			out.Trajectories = append(out.Trajectories, traj)
		}
	}
	return out, nil
}

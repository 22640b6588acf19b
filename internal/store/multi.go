package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuachristie/biofunc-models/internal/constants"
)

// namedSink pairs a sink with the output format it writes, for error messages.
type namedSink struct {
	format constants.OutputFormat
	sink   Sink
}

// MultiSink fans each run out to several sinks. A failing sink does not stop
// the others from recording; all errors are returned joined.
type MultiSink struct {
	sinks []namedSink
}

// NewMultiSink wraps the given sinks, which are recorded to in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.sinks = append(m.sinks, namedSink{sink: s})
	}
	return m
}

// OpenSinks opens one sink per requested format under dataDir. The SQLite
// store, if requested, is also returned so callers can query it.
func OpenSinks(dataDir string, formats []constants.OutputFormat) (*MultiSink, *SQLiteStore, error) {
	m := &MultiSink{}
	var db *SQLiteStore
	for _, f := range formats {
		switch f {
		case constants.FormatSQLite:
			if db != nil {
				continue
			}
			s, err := NewSQLiteStore(dataDir)
			if err != nil {
				m.Close()
				return nil, nil, err
			}
			db = s
			m.sinks = append(m.sinks, namedSink{f, s})
		case constants.FormatCSV:
			m.sinks = append(m.sinks, namedSink{f, NewCSVSink(dataDir)})
		case constants.FormatArrow:
			m.sinks = append(m.sinks, namedSink{f, NewArrowSink(dataDir)})
		default:
			m.Close()
			return nil, nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	return m, db, nil
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Record passes run to every sink.
func (m *MultiSink) Record(ctx context.Context, run Run) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.sink.Record(ctx, run); err != nil {
			errs = append(errs, s.wrap(err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, s.wrap(err))
		}
	}
	return errors.Join(errs...)
}

func (s namedSink) wrap(err error) error {
	if s.format == "" {
		return err
	}
	return fmt.Errorf("%s output: %w", s.format, err)
}

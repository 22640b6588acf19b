// Package logging provides leveled logging and run tracing for wfsim.
// It offers three outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A RunLogger for structured JSONL run events (<data>/runs.jsonl)
//   - AppendErrorLog for the per-parameter error files written when a run is refused
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// replicate outcome is written to the run log.
const LevelTrace = slog.LevelDebug - 4

// RunLogFile is the name of the JSONL run event log inside the data directory.
const RunLogFile = "runs.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "error", "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text records to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RunLogger appends structured run events to a JSONL file. Every line carries
// the run id and a timestamp. It is safe for concurrent use, and a nil
// *RunLogger is a no-op.
type RunLogger struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

// NewRunLogger opens dir/runs.jsonl for append and tags each event with runID.
// Below debug level it returns nil without touching the filesystem. It also
// returns nil if the file cannot be opened.
func NewRunLogger(dir, level, runID string) *RunLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, RunLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &RunLogger{file: f, runID: runID}
}

// Log writes event as one JSONL line with "run_id" and "time" added. The
// caller's map is left unchanged.
func (rl *RunLogger) Log(event map[string]any) {
	if rl == nil {
		return
	}

	entry := make(map[string]any, len(event)+2)
	for k, v := range event {
		entry[k] = v
	}
	entry["run_id"] = rl.runID
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return
	}
	_, _ = rl.file.Write(data)
}

// Close closes the underlying file.
func (rl *RunLogger) Close() error {
	if rl == nil {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// ErrorLogDir is the directory under the data root that holds error files.
const ErrorLogDir = "error_logs"

// AppendErrorLog appends a timestamped message to
// <dataDir>/error_logs/<name>_error.txt and returns the file's path.
func AppendErrorLog(dataDir, name, msg string) (string, error) {
	dir := filepath.Join(dataDir, ErrorLogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating error log directory: %w", err)
	}

	path := filepath.Join(dir, name+"_error.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return "", fmt.Errorf("opening error log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(msg))
	if _, err := f.WriteString(line); err != nil {
		return "", fmt.Errorf("writing error log: %w", err)
	}
	return path, nil
}

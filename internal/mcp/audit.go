package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// AuditLogFile is the name of the MCP audit log inside the data directory.
const AuditLogFile = "mcp_audit.jsonl"

// AuditEntry is the shape of one line of the audit log.
type AuditEntry struct {
	Time       time.Time         `json:"time"`
	Level      string            `json:"level"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLog records every tool call as a JSON line. Failed calls are logged
// at error level. A nil *AuditLog discards everything.
type AuditLog struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// OpenAuditLog opens dir/mcp_audit.jsonl for appending, readable by the
// owner only.
func OpenAuditLog(dir string) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, AuditLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.MessageKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return &AuditLog{file: f, logger: slog.New(handler)}, nil
}

// Record logs one call of tool that started at start and returned err.
func (a *AuditLog) Record(tool string, start time.Time, err error, params map[string]string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}

	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("tool", tool),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("status", "error"), slog.String("error", err.Error()))
	} else {
		attrs = append(attrs, slog.String("status", "success"))
	}
	if len(params) > 0 {
		attrs = append(attrs, slog.Any("params", params))
	}
	a.logger.LogAttrs(context.Background(), level, "", attrs...)
}

// Close closes the log file. Later calls to Record are dropped.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// auditParams renders tool parameters for the audit log. Zero values are
// omitted.
func auditParams(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch v := v.(type) {
		case string:
			if v != "" {
				out[k] = v
			}
		case int:
			if v != 0 {
				out[k] = strconv.Itoa(v)
			}
		case uint64:
			if v != 0 {
				out[k] = strconv.FormatUint(v, 10)
			}
		case float64:
			if v != 0 {
				out[k] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		case bool:
			if v {
				out[k] = "true"
			}
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func readAuditEntries(t *testing.T, dir string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, AuditLogFile))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("malformed audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLog_RecordAndClose(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenAuditLog(dir)
	if err != nil {
		t.Fatalf("OpenAuditLog() error = %v", err)
	}

	a.Record("wfsim_runs", time.Now(), nil, map[string]string{"limit": "5"})
	a.Record("wfsim_estimate", time.Now(), errors.New("boom"), nil)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readAuditEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Tool != "wfsim_runs" || first.Status != "success" || first.Level != "INFO" || first.Params["limit"] != "5" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Time.IsZero() {
		t.Error("entry has no timestamp")
	}
	second := entries[1]
	if second.Tool != "wfsim_estimate" || second.Status != "error" || second.Level != "ERROR" || second.Error != "boom" {
		t.Errorf("second entry = %+v", second)
	}

	// Recording after close is a no-op.
	a.Record("late", time.Now(), nil, nil)
	if got := len(readAuditEntries(t, dir)); got != 2 {
		t.Errorf("entries after close = %d, want 2", got)
	}

	info, err := os.Stat(filepath.Join(dir, AuditLogFile))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLog_OmitsMessage(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenAuditLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	a.Record("wfsim_diffusion", time.Now(), nil, nil)
	a.Close()

	data, err := os.ReadFile(filepath.Join(dir, AuditLogFile))
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(data, &line); err != nil {
		t.Fatalf("malformed line %q: %v", data, err)
	}
	if _, ok := line["msg"]; ok {
		t.Errorf("audit line carries an empty msg field: %s", data)
	}
	if _, ok := line["params"]; ok {
		t.Errorf("params should be omitted when empty: %s", data)
	}
}

func TestOpenAuditLog_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAuditLog(filepath.Join(file, "sub")); err == nil {
		t.Error("OpenAuditLog() under a regular file should fail")
	}
}

func TestAuditLog_NilSafe(t *testing.T) {
	var a *AuditLog
	a.Record("x", time.Now(), nil, nil)
	if err := a.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestAuditParams(t *testing.T) {
	got := auditParams(map[string]any{
		"model":      "HSE",
		"id":         "",
		"replicates": 100,
		"limit":      0,
		"seed":       uint64(42),
		"selection":  0.01,
		"save":       true,
		"other":      false,
	})
	want := map[string]string{
		"model":      "HSE",
		"replicates": "100",
		"seed":       "42",
		"selection":  "0.01",
		"save":       "true",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("auditParams() = %v, want %v", got, want)
	}

	if got := auditParams(map[string]any{"limit": 0}); got != nil {
		t.Errorf("auditParams(all zero) = %v, want nil", got)
	}
}

func TestServer_AuditsToolCalls(t *testing.T) {
	server, dataDir := setupTestServer(t)

	_, _, _ = server.handleDiffusion(t.Context(), nil, DiffusionInput{PopulationSize: 10, Selection: 0.1})
	_, _, err := server.handleDiffusion(t.Context(), nil, DiffusionInput{PopulationSize: 0})
	if err == nil {
		t.Fatal("expected an error for population_size 0")
	}
	server.audit.Record("wfsim_runs", time.Now(), errors.New("x"), nil)
	server.audit.Close()

	entries := readAuditEntries(t, dataDir)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Status != "success" || entries[0].Params["population_size"] != "10" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

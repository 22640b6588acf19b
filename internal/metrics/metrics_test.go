package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New(false)

	m.ObserveRun("HSE", 1000, 2*time.Second, 0.02)
	m.ObserveRun("HSE", 500, time.Second, 0.03)
	m.ObserveRun("DSE", 10, time.Millisecond, 0.5)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("HSE", StatusSuccess)); got != 2 {
		t.Errorf("HSE success runs = %g, want 2", got)
	}
	if got := testutil.ToFloat64(m.replicates.WithLabelValues("HSE")); got != 1500 {
		t.Errorf("HSE replicates = %g, want 1500", got)
	}
	if got := testutil.ToFloat64(m.probability.WithLabelValues("HSE")); got != 0.03 {
		t.Errorf("HSE probability = %g, want 0.03 (most recent)", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestObserveFailure(t *testing.T) {
	m := New(false)

	m.ObserveFailure("HTE", errors.New("bad config"))
	m.ObserveFailure("HTE", fmt.Errorf("simulation aborted: %w", context.Canceled))

	if got := testutil.ToFloat64(m.runs.WithLabelValues("HTE", StatusError)); got != 1 {
		t.Errorf("error runs = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("HTE", StatusCancelled)); got != 1 {
		t.Errorf("cancelled runs = %g, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRun("HSE", 1, time.Second, 1)
	m.ObserveFailure("HSE", errors.New("x"))
}

func TestHandler(t *testing.T) {
	m := New(true)
	m.ObserveRun("HTEOE", 42, time.Second, 0.25)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`wfsim_replicates_total{model="HTEOE"} 42`,
		`wfsim_persistence_probability{model="HTEOE"} 0.25`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New(false)
	m.ObserveRun("HSE", 7, time.Second, 0.1)

	path := filepath.Join(t.TempDir(), "wfsim.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `wfsim_runs_total{model="HSE",status="success"} 1`) {
		t.Errorf("textfile missing run counter:\n%s", data)
	}
	if strings.Contains(string(data), "go_goroutines") {
		t.Error("textfile should not include runtime metrics")
	}

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")); err == nil {
		t.Error("WriteTextfile() into a missing directory should fail")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	m := New(false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not stop after cancel")
	}
}

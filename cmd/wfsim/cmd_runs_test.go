package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/joshuachristie/biofunc-models/internal/store"
)

// recordRun runs a small simulation into dataDir and returns its id.
func recordRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	base := []string{"run", "--replicates", "30", "--seed", "5", "--data-dir", dataDir, "--json"}
	out, _, err := executeCmd(t, append(base, args...)...)
	if err != nil {
		t.Fatalf("run %v error = %v", args, err)
	}
	return decodeRuns(t, out)[0].ID
}

func TestRunsCmd_Subcommands(t *testing.T) {
	cmd := newRunsCmd()
	want := map[string]bool{"list": false, "show": false, "trajectories": false, "delete": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunsCmd_ListShowDelete(t *testing.T) {
	dataDir := isolateHome(t)
	hseID := recordRun(t, dataDir, "HSE", "--population", "10", "--selection", "0.05", "--curve-generations", "3")
	dseID := recordRun(t, dataDir, "DSE", "--population", "10", "--heterozygote", "0.1")

	t.Run("list", func(t *testing.T) {
		out, _, err := executeCmd(t, "runs", "list", "--data-dir", dataDir)
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		for _, want := range []string{shortID(hseID), shortID(dseID), "HSE_10_0.05_0", "PROBABILITY"} {
			if !strings.Contains(out, want) {
				t.Errorf("list output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("list model filter json", func(t *testing.T) {
		out, _, err := executeCmd(t, "runs", "list", "--model", "dse", "--data-dir", dataDir, "--json")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		var got struct {
			Runs  []store.Run `json:"runs"`
			Count int         `json:"count"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Count != 1 || got.Runs[0].ID != dseID {
			t.Errorf("filtered list = %+v", got)
		}
	})

	t.Run("show by prefix", func(t *testing.T) {
		out, _, err := executeCmd(t, "runs", "show", hseID[:8], "--curve", "--data-dir", dataDir)
		if err != nil {
			t.Fatalf("show error = %v", err)
		}
		for _, want := range []string{hseID, "haploid, single environment", "selection=0.05", "3 generations", "seed"} {
			if !strings.Contains(out, want) {
				t.Errorf("show output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		out, _, err := executeCmd(t, "runs", "delete", dseID, "--data-dir", dataDir, "--json")
		if err != nil {
			t.Fatalf("delete error = %v", err)
		}
		if !strings.Contains(out, `"deleted"`) {
			t.Errorf("delete output = %q", out)
		}
		if _, _, err := executeCmd(t, "runs", "show", dseID, "--data-dir", dataDir); err == nil {
			t.Error("show after delete should fail")
		}
	})
}

func TestRunsCmd_ListEmpty(t *testing.T) {
	dataDir := isolateHome(t)

	out, _, err := executeCmd(t, "runs", "list", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("output = %q", out)
	}

	out, _, err = executeCmd(t, "runs", "list", "--data-dir", dataDir, "--json")
	if err != nil {
		t.Fatalf("list --json error = %v", err)
	}
	if !strings.Contains(out, `"runs":[]`) {
		t.Errorf("output = %q, want an empty runs array", out)
	}
}

func TestRunsCmd_Trajectories(t *testing.T) {
	dataDir := isolateHome(t)
	id := recordRun(t, dataDir, "HSE", "--population", "8", "--selection", "0.1",
		"--curve-generations", "6", "--record-trajectories", "--formats", "sqlite,arrow")

	out, _, err := executeCmd(t, "runs", "trajectories", id, "--data-dir", dataDir, "--json")
	if err != nil {
		t.Fatalf("trajectories error = %v", err)
	}
	var file store.TrajectoryFile
	if err := json.Unmarshal([]byte(out), &file); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if file.RunID != id {
		t.Errorf("RunID = %q, want %q", file.RunID, id)
	}
	if len(file.Trajectories) != 30 {
		t.Fatalf("got %d trajectories, want 30", len(file.Trajectories))
	}
	for i, traj := range file.Trajectories {
		if len(traj) != 6 {
			t.Errorf("trajectory %d has %d generations, want 6", i, len(traj))
		}
	}

	out, _, err = executeCmd(t, "runs", "trajectories", id, "--limit", "2", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("trajectories error = %v", err)
	}
	if !strings.Contains(out, "30 trajectories") || !strings.Contains(out, "... 28 more") {
		t.Errorf("output = %q", out)
	}
}

func TestRunsCmd_TrajectoriesMissing(t *testing.T) {
	dataDir := isolateHome(t)
	id := recordRun(t, dataDir, "HSE", "--population", "8", "--formats", "sqlite")

	_, _, err := executeCmd(t, "runs", "trajectories", id, "--data-dir", dataDir)
	if err == nil || !strings.Contains(err.Error(), "no trajectories") {
		t.Errorf("error = %v, want no trajectories", err)
	}
}

func TestFormatTrajectory(t *testing.T) {
	tests := []struct {
		name string
		traj []float64
		want string
	}{
		{"empty", nil, ""},
		{"short", []float64{0.1, 0.2, 0}, "0.1 0.2 0"},
		{"long", []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}, "0.1 0.2 0.3 0.4 ... 0.7 0.8 0.9 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTrajectory(tt.traj); got != tt.want {
				t.Errorf("formatTrajectory() = %q, want %q", got, tt.want)
			}
		})
	}
}

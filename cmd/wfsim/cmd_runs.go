package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joshuachristie/biofunc-models/internal/store"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run history",
		Long: `List, show and delete runs recorded in the SQLite run history.

Run ids may be abbreviated to any unique prefix.

Examples:
  wfsim runs list --model HSE --limit 10
  wfsim runs show 3f2a
  wfsim runs trajectories 3f2a
  wfsim runs delete 3f2a`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsTrajectoriesCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

// openRunStore opens the run history in the configured data directory.
func openRunStore(cmd *cobra.Command) (*store.SQLiteStore, string, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, "", err
	}
	dataDir, err := settings.DataDir()
	if err != nil {
		return nil, "", err
	}
	db, err := store.NewSQLiteStore(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open run history: %w", err)
	}
	return db, dataDir, nil
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut := wantJSON(cmd)
			model, _ := cmd.Flags().GetString("model")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := store.RunFilter{Limit: limit}
			if model != "" {
				kind, err := wrightfisher.ParseModelKind(model)
				if err != nil {
					return err
				}
				filter.Model = kind
			}

			db, _, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(context.Background(), filter)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			st := newStyles(out)
			fmt.Fprintln(out, st.title.Render(fmt.Sprintf("%-8s  %-6s  %8s  %10s  %-12s  %s",
				"ID", "MODEL", "N", "REPLICATES", "PROBABILITY", "PARAMETERS")))
			for _, r := range runs {
				fmt.Fprintf(out, "%-8s  %-6s  %8d  %10d  %-12.6g  %s\n",
					shortID(r.ID), r.Model.Kind, r.Config.PopulationSize, r.Summary.Replicates,
					r.Summary.Probability, st.muted.Render(r.ParameterName()))
			}
			return nil
		},
	}

	cmd.Flags().String("model", "", "Only list runs of this model")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run with its inputs and curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut := wantJSON(cmd)
			showCurve, _ := cmd.Flags().GetBool("curve")

			db, _, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(run)
			}

			st := newStyles(out)
			const width = 14
			fmt.Fprintf(out, "%s %s\n", st.title.Render(string(run.Model.Kind)+" "+run.Name),
				st.muted.Render("("+run.Model.Kind.Description()+")"))
			st.field(out, width, "run id", run.ID)
			st.field(out, width, "created", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			st.field(out, width, "duration", run.Duration.String())
			st.field(out, width, "parameters", formatParameters(run.Model, run.Config.PopulationSize, run.Config.MaxReinvasions))
			st.field(out, width, "seed", strconv.FormatUint(run.Config.Seed, 10))
			st.field(out, width, "probability", fmt.Sprintf("%s ± %.2g", st.value.Render(fmt.Sprintf("%.6g", run.Summary.Probability)), run.Summary.StdErr))
			st.field(out, width, "replicates", fmt.Sprintf("%d (extinct %d, fixed %d, horizon %d)",
				run.Summary.Replicates, run.Summary.Extinct, run.Summary.Fixed, run.Summary.HorizonReached))
			if len(run.Curve) > 0 {
				st.field(out, width, "curve", fmt.Sprintf("%d generations", len(run.Curve)))
				if showCurve {
					for i, v := range run.Curve {
						fmt.Fprintf(out, "    %5d  %.6g\n", i+1, v)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("curve", false, "Print the per-generation presence curve")
	return cmd
}

func newRunsTrajectoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trajectories <id>",
		Short: "Summarise the raw trajectories written for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut := wantJSON(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			db, dataDir, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}

			path := store.TrajectoryPath(dataDir, *run)
			file, err := store.ReadTrajectories(path)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no trajectories for run %s (run with --record-trajectories and the arrow format)", shortID(run.ID))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(file)
			}

			fmt.Fprintf(out, "%s: %d trajectories (written by run %s)\n", path, len(file.Trajectories), shortID(file.RunID))
			if file.RunID != run.ID {
				fmt.Fprintln(out, "note: a later run with the same parameters replaced this file")
			}
			for i, traj := range file.Trajectories {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "  ... %d more\n", len(file.Trajectories)-limit)
					break
				}
				fmt.Fprintf(out, "  %5d  %s\n", i, formatTrajectory(traj))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "Maximum number of trajectories to print (0 for all)")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run and its curve from the run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut := wantJSON(cmd)

			db, _, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			run, err := db.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if err := db.DeleteRun(ctx, run.ID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     run.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTrajectory prints up to the first and last few frequencies of a
// trajectory.
func formatTrajectory(traj []float64) string {
	const edge = 4
	format := func(vs []float64) []string {
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = strconv.FormatFloat(v, 'g', 4, 64)
		}
		return out
	}
	if len(traj) <= 2*edge {
		return strings.Join(format(traj), " ")
	}
	return strings.Join(format(traj[:edge]), " ") + " ... " + strings.Join(format(traj[len(traj)-edge:]), " ")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshuachristie/biofunc-models/internal/config"
	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/diffusion"
	"github.com/joshuachristie/biofunc-models/internal/logging"
	"github.com/joshuachristie/biofunc-models/internal/metrics"
	"github.com/joshuachristie/biofunc-models/internal/store"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [HSE|DSE|HTE|HTEOE]",
		Short: "Estimate a persistence probability",
		Long: `Run a Wright-Fisher simulation and record its persistence probability.

Either name a model and give its coefficients as flags, or pass a
scenario file holding one or more YAML documents. Flags override the
settings in ~/.wfsim/config.yaml and in scenario files.

Results go to every configured output format under the data directory.
Invalid parameters are appended to error_logs/<params>_error.txt and the
command exits non-zero.

Examples:
  wfsim run HSE --population 1000 --selection 0.01
  wfsim run DSE --population 500 --homozygote 0 --heterozygote 1 --trait-index 1
  wfsim run HTE --population 1000 --a-env1 0.1 --resident-env2 0.05 --switch-generation 10
  wfsim run --scenario scenarios.yaml --replicates 20000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSimulations,
	}

	cmd.Flags().String("scenario", "", "YAML scenario file (one or more documents)")
	cmd.Flags().String("name", "", "Label stored with the run")
	cmd.Flags().Int("population", 0, "Population size N")

	// Model coefficients
	cmd.Flags().Float64("selection", 0, "HSE: selection coefficient of allele A")
	cmd.Flags().Float64("homozygote", 0, "DSE: selection coefficient of AA")
	cmd.Flags().Float64("heterozygote", 0, "DSE: selection coefficient of Aa")
	cmd.Flags().Int("trait-index", 0, "DSE: introduced genotype, 0 (AA) or 1 (Aa)")
	cmd.Flags().Float64("a-env1", 0, "HTE: coefficient of A in environment 1")
	cmd.Flags().Float64("a-env2", 0, "HTE: coefficient of A in environment 2")
	cmd.Flags().Float64("resident-env1", 0, "HTE: coefficient of a in environment 1")
	cmd.Flags().Float64("resident-env2", 0, "HTE: coefficient of a in environment 2")
	cmd.Flags().Int("switch-generation", 0, "HTE: generation at which environment 2 takes over")
	cmd.Flags().Float64("a1", 0, "HTEOE: first effect of A")
	cmd.Flags().Float64("a2", 0, "HTEOE: second effect of A")
	cmd.Flags().Float64("resident1", 0, "HTEOE: first effect of a")
	cmd.Flags().Float64("resident2", 0, "HTEOE: second effect of a")

	// Simulation settings
	cmd.Flags().Int("replicates", 0, "Number of replicates")
	cmd.Flags().Int("max-reinvasions", 0, "Reinvasion attempts per replicate")
	cmd.Flags().Int("max-generations", 0, "Per-attempt generation cap")
	cmd.Flags().Float64("tolerance", 0, "Absorption tolerance")
	cmd.Flags().Int("curve-generations", 0, "Generations of per-generation presence to record")
	cmd.Flags().Bool("record-trajectories", false, "Keep raw allele frequencies for the Arrow output")
	cmd.Flags().Uint64("seed", 0, "Base seed (0 draws a fresh one)")
	cmd.Flags().Int("workers", 0, "Replicate goroutines (0 means GOMAXPROCS)")

	cmd.Flags().String("formats", "", "Comma-separated output formats: sqlite, csv, arrow")
	cmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics for this invocation to a file")

	return cmd
}

// runOutput is the JSON document printed for each finished run.
type runOutput struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Model        wrightfisher.ModelSpec `json:"model"`
	Population   int                    `json:"population_size"`
	Seed         uint64                 `json:"seed"`
	Summary      wrightfisher.Summary   `json:"summary"`
	Diffusion    *float64               `json:"diffusion,omitempty"`
	Curve        []float64              `json:"curve,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
	ParamsName   string                 `json:"parameters"`
	Trajectories int                    `json:"trajectories,omitempty"`
}

func runSimulations(cmd *cobra.Command, args []string) error {
	jsonOut := wantJSON(cmd)
	scenarioPath, _ := cmd.Flags().GetString("scenario")

	if scenarioPath != "" && len(args) > 0 {
		return fmt.Errorf("cannot specify both a model and --scenario")
	}
	if scenarioPath == "" && len(args) == 0 {
		return fmt.Errorf("specify a model (HSE, DSE, HTE, HTEOE) or --scenario")
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("formats") {
		formats, _ := cmd.Flags().GetString("formats")
		parsed, err := constants.ParseOutputFormats(formats)
		if err != nil {
			return err
		}
		settings.Output.Formats = parsed
	}
	dataDir, err := settings.DataDir()
	if err != nil {
		return err
	}

	var scenarios []config.Scenario
	if scenarioPath != "" {
		scenarios, err = config.LoadScenarios(scenarioPath, settings.Simulation)
		if err != nil {
			return err
		}
	} else {
		s, err := scenarioFromFlags(cmd, args[0], settings.Simulation)
		if err != nil {
			return err
		}
		scenarios = []config.Scenario{s}
	}
	for i := range scenarios {
		applySimulationFlags(cmd, &scenarios[i].Simulation)
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			scenarios[i].Name = name
		}
	}

	sinks, _, err := store.OpenSinks(dataDir, settings.Output.Formats)
	if err != nil {
		return fmt.Errorf("failed to open outputs: %w", err)
	}
	defer sinks.Close()

	var m *metrics.Metrics
	textfile, _ := cmd.Flags().GetString("metrics-textfile")
	if textfile != "" {
		m = metrics.New(false)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r := &runner{
		out:      cmd.OutOrStdout(),
		logger:   newLogger(settings, cmd.ErrOrStderr()),
		level:    settings.Logging.Level,
		dataDir:  dataDir,
		sinks:    sinks,
		metrics:  m,
		jsonOut:  jsonOut,
		styles:   newStyles(cmd.OutOrStdout()),
		multiple: len(scenarios) > 1,
	}

	var errs []error
	for _, s := range scenarios {
		if err := r.run(ctx, s); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	if textfile != "" {
		if err := m.WriteTextfile(textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(scenarios) > 1 {
		errs = append(errs, fmt.Errorf("%d of %d scenarios failed", len(errs), len(scenarios)))
	}
	return errors.Join(errs...)
}

// scenarioFromFlags builds the scenario described by the model argument and
// the coefficient flags.
func scenarioFromFlags(cmd *cobra.Command, model string, defaults config.SimulationConfig) (config.Scenario, error) {
	kind, err := wrightfisher.ParseModelKind(model)
	if err != nil {
		return config.Scenario{}, err
	}
	population, _ := cmd.Flags().GetInt("population")
	if population < 1 {
		return config.Scenario{}, fmt.Errorf("--population must be >= 1")
	}

	f := cmd.Flags()
	spec := wrightfisher.ModelSpec{Kind: kind}
	spec.Selection, _ = f.GetFloat64("selection")
	spec.Homozygote, _ = f.GetFloat64("homozygote")
	spec.Heterozygote, _ = f.GetFloat64("heterozygote")
	spec.TraitIndex, _ = f.GetInt("trait-index")
	spec.AEnv1, _ = f.GetFloat64("a-env1")
	spec.AEnv2, _ = f.GetFloat64("a-env2")
	spec.ResidentEnv1, _ = f.GetFloat64("resident-env1")
	spec.ResidentEnv2, _ = f.GetFloat64("resident-env2")
	spec.SwitchGeneration, _ = f.GetInt("switch-generation")
	spec.A1, _ = f.GetFloat64("a1")
	spec.A2, _ = f.GetFloat64("a2")
	spec.Resident1, _ = f.GetFloat64("resident1")
	spec.Resident2, _ = f.GetFloat64("resident2")

	return config.Scenario{
		Name:           string(kind),
		PopulationSize: population,
		Model:          spec,
		Simulation:     defaults,
	}, nil
}

// applySimulationFlags overwrites the settings whose flags were given.
func applySimulationFlags(cmd *cobra.Command, sim *config.SimulationConfig) {
	f := cmd.Flags()
	if f.Changed("replicates") {
		sim.Replicates, _ = f.GetInt("replicates")
	}
	if f.Changed("max-reinvasions") {
		sim.MaxReinvasions, _ = f.GetInt("max-reinvasions")
	}
	if f.Changed("max-generations") {
		sim.MaxGenerations, _ = f.GetInt("max-generations")
	}
	if f.Changed("tolerance") {
		sim.Tolerance, _ = f.GetFloat64("tolerance")
	}
	if f.Changed("curve-generations") {
		sim.CurveGenerations, _ = f.GetInt("curve-generations")
	}
	if f.Changed("record-trajectories") {
		sim.RecordTrajectories, _ = f.GetBool("record-trajectories")
	}
	if f.Changed("seed") {
		sim.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("workers") {
		sim.Workers, _ = f.GetInt("workers")
	}
}

// runner executes scenarios and reports their results.
type runner struct {
	out      io.Writer
	logger   *slog.Logger
	level    string
	dataDir  string
	sinks    store.Sink
	metrics  *metrics.Metrics
	jsonOut  bool
	styles   styles
	multiple bool
}

func (r *runner) run(ctx context.Context, s config.Scenario) error {
	cfg := s.RunConfig()
	o, err := wrightfisher.NewOrchestrator(s.Model, cfg)
	if err != nil {
		r.metrics.ObserveFailure(string(s.Model.Kind), err)
		name := store.Run{Model: s.Model, Config: cfg}.ParameterName()
		path, logErr := logging.AppendErrorLog(r.dataDir, name, err.Error())
		if logErr != nil {
			r.logger.Warn("failed to write error log", "error", logErr)
			return err
		}
		return fmt.Errorf("%w (logged to %s)", err, path)
	}

	runID := uuid.NewString()
	events := logging.NewRunLogger(r.dataDir, r.level, runID)
	defer events.Close()
	if events != nil {
		o.SetLogger(r.logger, events)
	} else {
		o.SetLogger(r.logger, nil)
	}

	start := time.Now()
	result, err := o.Run(ctx)
	if err != nil {
		r.metrics.ObserveFailure(string(s.Model.Kind), err)
		return err
	}
	elapsed := time.Since(start)
	r.metrics.ObserveRun(string(s.Model.Kind), result.Replicates, elapsed, result.Probability())

	run := store.NewRun(s.Name, o, result, elapsed)
	run.ID = runID
	if err := r.sinks.Record(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	out := runOutput{
		ID:           run.ID,
		Name:         run.Name,
		Model:        run.Model,
		Population:   run.Config.PopulationSize,
		Seed:         o.Seed(),
		Summary:      run.Summary,
		Curve:        run.Curve,
		DurationMs:   elapsed.Milliseconds(),
		ParamsName:   run.ParameterName(),
		Trajectories: len(run.Trajectories),
	}
	if u, err := diffusion.ForModel(run.Model, run.Config.PopulationSize); err == nil {
		out.Diffusion = &u
	}

	if r.jsonOut {
		return json.NewEncoder(r.out).Encode(out)
	}
	r.print(out, run.Config)
	return nil
}

func (r *runner) print(out runOutput, cfg wrightfisher.SimulationConfig) {
	st := r.styles
	w := r.out
	const width = 14

	fmt.Fprintf(w, "%s %s\n", st.title.Render(string(out.Model.Kind)+" "+out.Name),
		st.muted.Render("("+out.Model.Kind.Description()+")"))
	st.field(w, width, "run id", out.ID)
	st.field(w, width, "parameters", formatParameters(out.Model, out.Population, cfg.MaxReinvasions))
	st.field(w, width, "seed", fmt.Sprintf("%d", out.Seed))

	sum := out.Summary
	st.field(w, width, "probability", fmt.Sprintf("%s ± %.2g (95%% CI %.6g to %.6g)",
		st.value.Render(fmt.Sprintf("%.6g", sum.Probability)), sum.StdErr, sum.CILow, sum.CIHigh))
	st.field(w, width, "replicates", fmt.Sprintf("%d (extinct %d, fixed %d, horizon %d)",
		sum.Replicates, sum.Extinct, sum.Fixed, sum.HorizonReached))
	if out.Diffusion != nil {
		st.field(w, width, "diffusion", fmt.Sprintf("%.6g", *out.Diffusion))
	}
	if sum.MeanExtinctionGeneration > 0 && !math.IsNaN(sum.MeanExtinctionGeneration) {
		st.field(w, width, "extinction", fmt.Sprintf("mean generation %.1f", sum.MeanExtinctionGeneration))
	}
	if len(sum.ReinvasionsSurvived) > 0 {
		parts := make([]string, len(sum.ReinvasionsSurvived))
		for i, c := range sum.ReinvasionsSurvived {
			parts[i] = fmt.Sprintf("%d:%d", i, c)
		}
		st.field(w, width, "reinvasions", strings.Join(parts, " "))
	}
	if n := len(out.Curve); n > 0 {
		st.field(w, width, "curve", fmt.Sprintf("%d generations, final %.6g", n, out.Curve[n-1]))
	}
	if out.Trajectories > 0 {
		st.field(w, width, "trajectories", fmt.Sprintf("%d recorded", out.Trajectories))
	}
	st.field(w, width, "duration", (time.Duration(out.DurationMs) * time.Millisecond).String())
	if cfg.MaxReinvasions > 0 && cfg.CurveGenerations > 0 {
		fmt.Fprintln(w, "  "+st.warn.Render("note: the curve reflects the initial invasion only"))
	}
	if r.multiple {
		fmt.Fprintln(w)
	}
}

// formatParameters renders N, the model coefficients and the reinvasion cap
// as "name=value" pairs.
func formatParameters(spec wrightfisher.ModelSpec, n, maxReinvasions int) string {
	parts := []string{fmt.Sprintf("N=%d", n)}
	for _, p := range spec.Parameters() {
		parts = append(parts, fmt.Sprintf("%s=%g", p.Name, p.Value))
	}
	parts = append(parts, fmt.Sprintf("max_reinvasions=%d", maxReinvasions))
	return strings.Join(parts, " ")
}

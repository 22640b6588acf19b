package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/diffusion"
	"github.com/joshuachristie/biofunc-models/internal/store"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const runResourcePrefix = "wfsim://runs/"

// registerTools registers all wfsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "wfsim_estimate",
		Description: "Estimate the persistence probability of a new trait with a Wright-Fisher Monte Carlo simulation",
	}, s.handleEstimate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "wfsim_runs",
		Description: "List stored simulation runs, or show one run with its per-generation curve",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "wfsim_diffusion",
		Description: "Compute Kimura's diffusion approximation to the fixation probability of a single new mutant",
	}, s.handleDiffusion)
}

// registerResources registers MCP resources for stored runs.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         runResourcePrefix + "recent",
		Name:        "wfsim-recent-runs",
		Description: "The most recent simulation runs and their persistence probabilities.",
		MIMEType:    "text/markdown",
	}, s.handleRecentRunsResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runResourcePrefix + "{id}",
		Name:        "wfsim-run",
		Description: "Inputs, summary and curve of one stored simulation run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

// modelSpec builds the ModelSpec an estimate request describes.
func (args EstimateInput) modelSpec() (wrightfisher.ModelSpec, error) {
	kind, err := wrightfisher.ParseModelKind(args.Model)
	if err != nil {
		return wrightfisher.ModelSpec{}, err
	}
	return wrightfisher.ModelSpec{
		Kind:             kind,
		Selection:        args.Selection,
		Homozygote:       args.Homozygote,
		Heterozygote:     args.Heterozygote,
		TraitIndex:       args.TraitIndex,
		AEnv1:            args.AEnv1,
		AEnv2:            args.AEnv2,
		ResidentEnv1:     args.ResidentEnv1,
		ResidentEnv2:     args.ResidentEnv2,
		SwitchGeneration: args.SwitchGen,
		A1:               args.A1,
		A2:               args.A2,
		Resident1:        args.Resident1,
		Resident2:        args.Resident2,
	}, nil
}

// handleEstimate implements the wfsim_estimate tool.
func (s *Server) handleEstimate(ctx context.Context, req *sdk.CallToolRequest, args EstimateInput) (_ *sdk.CallToolResult, _ EstimateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Record("wfsim_estimate", start, retErr, auditParams(map[string]any{
			"model":             args.Model,
			"population_size":   args.PopulationSize,
			"replicates":        args.Replicates,
			"max_reinvasions":   args.MaxReinvasions,
			"curve_generations": args.CurveGens,
			"seed":              args.Seed,
			"save":              args.Save,
		}))
	}()

	if err := s.limiter.Check("wfsim_estimate"); err != nil {
		return nil, EstimateOutput{}, err
	}

	spec, err := args.modelSpec()
	if err != nil {
		return nil, EstimateOutput{}, err
	}
	if args.PopulationSize < 1 || args.PopulationSize > constants.MaxMCPPopulationSize {
		return nil, EstimateOutput{}, fmt.Errorf("population_size must be between 1 and %d, got %d",
			constants.MaxMCPPopulationSize, args.PopulationSize)
	}
	if args.CurveGens < 0 || args.CurveGens > constants.MaxMCPCurveGenerations {
		return nil, EstimateOutput{}, fmt.Errorf("curve_generations must be between 0 and %d, got %d",
			constants.MaxMCPCurveGenerations, args.CurveGens)
	}

	replicates := args.Replicates
	var notes []string
	switch {
	case replicates <= 0:
		replicates = constants.DefaultMCPReplicates
	case replicates > constants.MaxMCPReplicates:
		notes = append(notes, fmt.Sprintf("replicates capped at %d", constants.MaxMCPReplicates))
		replicates = constants.MaxMCPReplicates
	}

	reinvasions := args.MaxReinvasions
	if reinvasions > constants.MaxMCPReinvasions {
		notes = append(notes, fmt.Sprintf("max_reinvasions capped at %d", constants.MaxMCPReinvasions))
		reinvasions = constants.MaxMCPReinvasions
	}

	cfg := s.settings.RunConfig(args.PopulationSize)
	cfg.Replicates = replicates
	cfg.MaxReinvasions = reinvasions
	cfg.CurveGenerations = args.CurveGens
	cfg.RecordTrajectories = false
	cfg.Seed = args.Seed

	o, err := wrightfisher.NewOrchestrator(spec, cfg)
	if err != nil {
		return nil, EstimateOutput{}, err
	}
	o.SetLogger(s.logger, nil)

	simStart := time.Now()
	result, err := o.Run(ctx)
	if err != nil {
		s.metrics.ObserveFailure(string(spec.Kind), err)
		return nil, EstimateOutput{}, err
	}
	elapsed := time.Since(simStart)
	s.metrics.ObserveRun(string(spec.Kind), result.Replicates, elapsed, result.Probability())

	run := store.NewRun("mcp", o, result, elapsed)
	out := EstimateOutput{
		Model:      string(spec.Kind),
		Seed:       o.Seed(),
		Summary:    run.Summary,
		Curve:      run.Curve,
		DurationMs: elapsed.Milliseconds(),
	}
	if u, err := diffusion.ForModel(spec, args.PopulationSize); err == nil {
		out.Diffusion = &u
	}
	if args.Save {
		if err := s.store.Record(ctx, run); err != nil {
			return nil, EstimateOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = run.ID
		notes = append(notes, "saved as "+run.ID)
	}

	msg := fmt.Sprintf("%s persistence probability %.6g ± %.2g over %d replicates",
		spec.Kind, run.Summary.Probability, run.Summary.StdErr, run.Summary.Replicates)
	if out.Diffusion != nil {
		msg += fmt.Sprintf(" (diffusion approximation %.6g)", *out.Diffusion)
	}
	if len(notes) > 0 {
		msg += "; " + strings.Join(notes, "; ")
	}
	out.Message = msg

	return nil, out, nil
}

// handleRuns implements the wfsim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Record("wfsim_runs", start, retErr, auditParams(map[string]any{
			"id": args.ID, "model": args.Model, "limit": args.Limit,
		}))
	}()

	if err := s.limiter.Check("wfsim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.ID != "" {
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Run: runDetail(*run), Count: 1}, nil
	}

	filter := store.RunFilter{Limit: args.Limit}
	if filter.Limit <= 0 {
		filter.Limit = constants.DefaultMCPListLimit
	}
	if args.Model != "" {
		kind, err := wrightfisher.ParseModelKind(args.Model)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		filter.Model = kind
	}

	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, runListItem(r))
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleDiffusion implements the wfsim_diffusion tool.
func (s *Server) handleDiffusion(ctx context.Context, req *sdk.CallToolRequest, args DiffusionInput) (_ *sdk.CallToolResult, _ DiffusionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Record("wfsim_diffusion", start, retErr, auditParams(map[string]any{
			"population_size": args.PopulationSize, "selection": args.Selection, "ploidy": args.Ploidy,
		}))
	}()

	if err := s.limiter.Check("wfsim_diffusion"); err != nil {
		return nil, DiffusionOutput{}, err
	}

	ploidy := args.Ploidy
	if ploidy == 0 {
		ploidy = 1
	}
	u, err := diffusion.FixationProbability(args.PopulationSize, args.Selection, ploidy)
	if err != nil {
		return nil, DiffusionOutput{}, err
	}
	neutral := 1 / float64(ploidy*args.PopulationSize)
	return nil, DiffusionOutput{
		Probability: u,
		Neutral:     neutral,
		Relative:    u / neutral,
	}, nil
}

// handleRecentRunsResource lists the most recent runs as markdown.
func (s *Server) handleRecentRunsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, store.RunFilter{Limit: constants.DefaultMCPListLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Recent wfsim runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No runs stored yet.\n")
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "- `%s` %s N=%d: P = %.6g ± %.2g (%d replicates, %s)\n",
			r.ID, r.Model.Kind, r.Config.PopulationSize, r.Summary.Probability, r.Summary.StdErr,
			r.Summary.Replicates, r.CreatedAt.Format(time.RFC3339))
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/markdown", Text: sb.String()},
		},
	}, nil
}

// handleRunResource returns full details of one stored run.
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runResourcePrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runResourcePrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", run.ID)
	if run.Name != "" {
		fmt.Fprintf(&sb, "**Name:** %s\n", run.Name)
	}
	fmt.Fprintf(&sb, "**Model:** %s (%s)\n", run.Model.Kind, run.Model.Kind.Description())
	fmt.Fprintf(&sb, "**Population size:** %d\n", run.Config.PopulationSize)
	fmt.Fprintf(&sb, "**Seed:** %d\n", run.Config.Seed)
	fmt.Fprintf(&sb, "**Created:** %s\n\n", run.CreatedAt.Format(time.RFC3339))

	sb.WriteString("## Parameters\n\n")
	for _, p := range run.Model.Parameters() {
		fmt.Fprintf(&sb, "- %s: %g\n", p.Name, p.Value)
	}
	fmt.Fprintf(&sb, "- max_reinvasions: %d\n", run.Config.MaxReinvasions)

	sum := run.Summary
	sb.WriteString("\n## Result\n\n")
	fmt.Fprintf(&sb, "- Persistence probability: %.6g ± %.2g\n", sum.Probability, sum.StdErr)
	fmt.Fprintf(&sb, "- 95%% CI: [%.6g, %.6g]\n", sum.CILow, sum.CIHigh)
	fmt.Fprintf(&sb, "- Replicates: %d (extinct %d, fixed %d, horizon reached %d)\n",
		sum.Replicates, sum.Extinct, sum.Fixed, sum.HorizonReached)

	if len(run.Curve) > 0 {
		sb.WriteString("\n## Curve\n\n")
		for gen, p := range run.Curve {
			fmt.Fprintf(&sb, "%d: %.6g\n", gen, p)
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: sb.String()},
		},
	}, nil
}

func runListItem(r store.Run) RunListItem {
	return RunListItem{
		ID:             r.ID,
		Name:           r.Name,
		Model:          string(r.Model.Kind),
		PopulationSize: r.Config.PopulationSize,
		Replicates:     r.Summary.Replicates,
		Probability:    r.Summary.Probability,
		StdErr:         r.Summary.StdErr,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func runDetail(r store.Run) *RunDetail {
	return &RunDetail{
		Item:    runListItem(r),
		Spec:    r.Model,
		Config:  r.Config,
		Summary: r.Summary,
		Curve:   r.Curve,
	}
}

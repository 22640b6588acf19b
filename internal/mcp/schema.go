// Package mcp provides an MCP (Model Context Protocol) server for wfsim.
package mcp

import (
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
)

// EstimateInput defines the input for the wfsim_estimate tool. Only the
// coefficients belonging to Model are read.
type EstimateInput struct {
	Model          string  `json:"model" jsonschema:"Model variant: HSE, DSE, HTE or HTEOE"`
	PopulationSize int     `json:"population_size" jsonschema:"Number of individuals N"`
	Selection      float64 `json:"selection,omitempty" jsonschema:"HSE selection coefficient of the trait allele"`
	Homozygote     float64 `json:"homozygote,omitempty" jsonschema:"DSE selection coefficient of the AA genotype"`
	Heterozygote   float64 `json:"heterozygote,omitempty" jsonschema:"DSE selection coefficient of the Aa genotype"`
	TraitIndex     int     `json:"trait_index,omitempty" jsonschema:"DSE genotype introduced: 0 for AA, 1 for Aa"`
	AEnv1          float64 `json:"a_env1,omitempty" jsonschema:"HTE coefficient of the trait allele in environment 1"`
	AEnv2          float64 `json:"a_env2,omitempty" jsonschema:"HTE coefficient of the trait allele in environment 2"`
	ResidentEnv1   float64 `json:"resident_env1,omitempty" jsonschema:"HTE coefficient of the resident allele in environment 1"`
	ResidentEnv2   float64 `json:"resident_env2,omitempty" jsonschema:"HTE coefficient of the resident allele in environment 2"`
	SwitchGen      int     `json:"switch_generation,omitempty" jsonschema:"HTE generation at which environment 2 takes over"`
	A1             float64 `json:"a1,omitempty" jsonschema:"HTEOE first additive effect of the trait allele"`
	A2             float64 `json:"a2,omitempty" jsonschema:"HTEOE second additive effect of the trait allele"`
	Resident1      float64 `json:"resident1,omitempty" jsonschema:"HTEOE first additive effect of the resident allele"`
	Resident2      float64 `json:"resident2,omitempty" jsonschema:"HTEOE second additive effect of the resident allele"`
	Replicates     int     `json:"replicates,omitempty" jsonschema:"Number of replicates (default 10000, capped at 200000)"`
	MaxReinvasions int     `json:"max_reinvasions,omitempty" jsonschema:"Reinvasion attempts per replicate (default 0, capped at 100)"`
	CurveGens      int     `json:"curve_generations,omitempty" jsonschema:"Generations of per-generation presence to record (capped at 1000)"`
	Seed           uint64  `json:"seed,omitempty" jsonschema:"Seed for a reproducible run; omit for a fresh seed"`
	Save           bool    `json:"save,omitempty" jsonschema:"Store the run in the run history (default false)"`
}

// EstimateOutput defines the output for the wfsim_estimate tool.
type EstimateOutput struct {
	RunID      string               `json:"run_id,omitempty" jsonschema:"ID of the stored run, if saved"`
	Model      string               `json:"model" jsonschema:"Model variant"`
	Seed       uint64               `json:"seed" jsonschema:"Seed the run used"`
	Summary    wrightfisher.Summary `json:"summary" jsonschema:"Persistence probability and replicate statistics"`
	Curve      []float64            `json:"curve,omitempty" jsonschema:"Per-generation presence probability"`
	Diffusion  *float64             `json:"diffusion,omitempty" jsonschema:"Kimura diffusion approximation, for HSE and DSE"`
	DurationMs int64                `json:"duration_ms" jsonschema:"Wall time of the simulation"`
	Message    string               `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the wfsim_runs tool.
type RunsInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Run ID or unique prefix; when set, returns that run with its curve"`
	Model string `json:"model,omitempty" jsonschema:"Only list runs of this model variant"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
}

// RunsOutput defines the output for the wfsim_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs,omitempty" jsonschema:"Stored runs, newest first"`
	Run   *RunDetail    `json:"run,omitempty" jsonschema:"The requested run"`
	Count int           `json:"count" jsonschema:"Number of runs returned"`
}

// RunListItem provides a list view of a stored run.
type RunListItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	Model          string  `json:"model"`
	PopulationSize int     `json:"population_size"`
	Replicates     int     `json:"replicates"`
	Probability    float64 `json:"probability"`
	StdErr         float64 `json:"std_err"`
	CreatedAt      string  `json:"created_at"`
}

// RunDetail is a stored run with its inputs and curve.
type RunDetail struct {
	Item    RunListItem                   `json:"run"`
	Spec    wrightfisher.ModelSpec        `json:"spec"`
	Config  wrightfisher.SimulationConfig `json:"config"`
	Summary wrightfisher.Summary          `json:"summary"`
	Curve   []float64                     `json:"curve,omitempty"`
}

// DiffusionInput defines the input for the wfsim_diffusion tool.
type DiffusionInput struct {
	PopulationSize int     `json:"population_size" jsonschema:"Number of individuals N"`
	Selection      float64 `json:"selection" jsonschema:"Selection coefficient s"`
	Ploidy         int     `json:"ploidy,omitempty" jsonschema:"1 for haploid, 2 for diploid (default 1)"`
}

// DiffusionOutput defines the output for the wfsim_diffusion tool.
type DiffusionOutput struct {
	Probability float64 `json:"probability" jsonschema:"Fixation probability of a single new mutant"`
	Neutral     float64 `json:"neutral" jsonschema:"Fixation probability of a neutral mutant, 1/(ploidy*N)"`
	Relative    float64 `json:"relative" jsonschema:"Probability divided by the neutral value"`
}

// Package constants provides named constants used throughout wfsim.
// This centralizes directory names and limits shared by the CLI, the stores
// and the MCP server.
package constants

// Directory and file layout
const (
	// AppDirName is the per-user directory holding config and default data: ~/.wfsim
	AppDirName = ".wfsim"

	// ConfigFileName is the YAML config file inside AppDirName.
	ConfigFileName = "config.yaml"

	// DefaultDataDirName is the data directory inside AppDirName used when
	// output.data_dir is not set.
	DefaultDataDirName = "data"

	// DatabaseFileName is the SQLite run history inside the data directory.
	DatabaseFileName = "runs.db"
)

// Result layout under the data directory. The two probability directories
// and the raw trajectory directory each hold one subdirectory per model.
const (
	InfiniteApproximationDir = "conditional_existence_probability/infinite_approximation"
	FiniteGenerationsDir     = "conditional_existence_probability/finite_generations"
	RawTraitDataDir          = "raw_trait_data"
)

// MCP limits. Estimates requested over MCP run inline while the client
// waits, so they are capped well below CLI defaults.
const (
	// MaxMCPReplicates is the largest replicate count wfsim_estimate accepts.
	MaxMCPReplicates = 200_000

	// DefaultMCPReplicates is used when wfsim_estimate is called without one.
	DefaultMCPReplicates = 10_000

	// MaxMCPPopulationSize bounds N for wfsim_estimate.
	MaxMCPPopulationSize = 100_000

	// MaxMCPCurveGenerations bounds the recorded curve returned over MCP.
	MaxMCPCurveGenerations = 1_000

	// MaxMCPReinvasions bounds the reinvasion attempts per replicate over MCP.
	MaxMCPReinvasions = 100

	// DefaultMCPListLimit is the default page size for wfsim_runs.
	DefaultMCPListLimit = 20
)

// ValidPloidies are the ploidy values the diffusion baseline accepts.
var ValidPloidies = map[int]bool{
	1: true,
	2: true,
}

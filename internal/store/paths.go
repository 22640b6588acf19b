package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/pathutil"
)

// GlobalWfsimPath returns the path to the per-user .wfsim directory.
// On Unix: ~/.wfsim
// On Windows: %USERPROFILE%\.wfsim
func GlobalWfsimPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.AppDirName), nil
}

// DatabasePath returns the SQLite run history path inside dataDir.
func DatabasePath(dataDir string) string {
	return filepath.Join(dataDir, constants.DatabaseFileName)
}

// InfiniteApproximationPath returns the CSV file holding a run's
// infinite-horizon persistence probability.
func InfiniteApproximationPath(dataDir string, run Run) string {
	return filepath.Join(dataDir, constants.InfiniteApproximationDir, string(run.Model.Kind), run.ParameterName()+".csv")
}

// FiniteGenerationsPath returns the CSV file holding a run's per-generation curve.
func FiniteGenerationsPath(dataDir string, run Run) string {
	return filepath.Join(dataDir, constants.FiniteGenerationsDir, string(run.Model.Kind), run.ParameterName()+".csv")
}

// TrajectoryPath returns the Arrow IPC file holding a run's raw trajectories.
func TrajectoryPath(dataDir string, run Run) string {
	return filepath.Join(dataDir, constants.RawTraitDataDir, string(run.Model.Kind), run.ParameterName()+".arrow")
}

// prepareFile checks that path lies inside dataDir and creates its parent
// directory.
func prepareFile(dataDir, path string) error {
	if err := pathutil.ValidatePath(path, []string{dataDir}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", pathutil.RedactPath(filepath.Dir(path)), err)
	}
	return nil
}

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuachristie/biofunc-models/internal/constants"
)

// Keys lists the dot-notation keys accepted by Get and Set, in display order.
var Keys = []string{
	"simulation.replicates",
	"simulation.max_reinvasions",
	"simulation.max_generations",
	"simulation.tolerance",
	"simulation.curve_generations",
	"simulation.record_trajectories",
	"simulation.workers",
	"simulation.seed",
	"output.data_dir",
	"output.formats",
	"logging.level",
}

// Get retrieves a configuration value by dot-notation key.
func (c *WfsimConfig) Get(key string) (any, bool) {
	switch key {
	case "simulation.replicates":
		return c.Simulation.Replicates, true
	case "simulation.max_reinvasions":
		return c.Simulation.MaxReinvasions, true
	case "simulation.max_generations":
		return c.Simulation.MaxGenerations, true
	case "simulation.tolerance":
		return c.Simulation.Tolerance, true
	case "simulation.curve_generations":
		return c.Simulation.CurveGenerations, true
	case "simulation.record_trajectories":
		return c.Simulation.RecordTrajectories, true
	case "simulation.workers":
		return c.Simulation.Workers, true
	case "simulation.seed":
		return c.Simulation.Seed, true
	case "output.data_dir":
		return c.Output.DataDir, true
	case "output.formats":
		names := make([]string, len(c.Output.Formats))
		for i, f := range c.Output.Formats {
			names[i] = f.String()
		}
		return strings.Join(names, ","), true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set parses value and stores it under the dot-notation key. The resulting
// configuration is validated and left unchanged if invalid.
func (c *WfsimConfig) Set(key, value string) error {
	next := *c
	next.Output.Formats = append([]constants.OutputFormat(nil), c.Output.Formats...)

	var err error
	switch key {
	case "simulation.replicates":
		next.Simulation.Replicates, err = parseInt(key, value)
	case "simulation.max_reinvasions":
		next.Simulation.MaxReinvasions, err = parseInt(key, value)
	case "simulation.max_generations":
		next.Simulation.MaxGenerations, err = parseInt(key, value)
	case "simulation.curve_generations":
		next.Simulation.CurveGenerations, err = parseInt(key, value)
	case "simulation.workers":
		next.Simulation.Workers, err = parseInt(key, value)
	case "simulation.tolerance":
		next.Simulation.Tolerance, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s: %s (must be a number)", key, value)
		}
	case "simulation.record_trajectories":
		next.Simulation.RecordTrajectories = value == "true" || value == "1"
	case "simulation.seed":
		next.Simulation.Seed, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s: %s (must be a non-negative integer)", key, value)
		}
	case "output.data_dir":
		next.Output.DataDir = expandHome(value)
	case "output.formats":
		next.Output.Formats, err = constants.ParseOutputFormats(value)
	case "logging.level":
		next.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return err
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	"gopkg.in/yaml.v3"
)

// Scenario describes one run: a model, a population size and the
// simulation settings that differ from the configured defaults.
//
// A scenario file holds one or more YAML documents:
//
//	name: weak-advantage
//	population_size: 1000
//	model:
//	  kind: HSE
//	  selection: 0.01
//	simulation:
//	  replicates: 20000
//	  curve_generations: 100
//	---
//	population_size: 500
//	model: {kind: DSE, homozygote: 0, heterozygote: 1}
type Scenario struct {
	Name           string                 `json:"name,omitempty" yaml:"name,omitempty"`
	PopulationSize int                    `json:"population_size" yaml:"population_size"`
	Model          wrightfisher.ModelSpec `json:"model" yaml:"model"`
	Simulation     SimulationConfig       `json:"simulation" yaml:"simulation"`
}

// RunConfig returns the engine configuration for the scenario.
func (s Scenario) RunConfig() wrightfisher.SimulationConfig {
	c := WfsimConfig{Simulation: s.Simulation}
	return c.RunConfig(s.PopulationSize)
}

// LoadScenarios reads every scenario document in path. Settings a document
// leaves out take their value from defaults.
func LoadScenarios(path string, defaults SimulationConfig) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenarios(data, defaults)
}

// ParseScenarios decodes the scenario documents in data.
func ParseScenarios(data []byte, defaults SimulationConfig) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var scenarios []Scenario
	for i := 0; ; i++ {
		s := Scenario{Simulation: defaults}
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing scenario %d: %w", i+1, err)
		}

		kind, err := wrightfisher.ParseModelKind(string(s.Model.Kind))
		if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
		s.Model.Kind = kind
		if s.PopulationSize < 1 {
			return nil, fmt.Errorf("scenario %d: population_size must be >= 1, got %d", i+1, s.PopulationSize)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s-%d", kind, i+1)
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, errors.New("scenario file contains no scenarios")
	}
	return scenarios, nil
}

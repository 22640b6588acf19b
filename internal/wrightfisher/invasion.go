package wrightfisher

import "math/rand/v2"

// Invasion is the result of one invasion attempt.
type Invasion struct {
	// Status is the terminal state of the attempt.
	Status Status

	// Generations is the number of generations simulated before absorption.
	Generations int

	// Presence holds, for each generation inside the short horizon, whether
	// the trait was present. Its length equals the horizon when recording.
	Presence []bool

	// Trajectory holds the allele frequency of each generation inside the
	// short horizon when raw recording is enabled.
	Trajectory []float64
}

// Invade drives state through model until it is absorbed. state is mutated
// in place and holds the absorbed frequencies on return.
//
// When record is true the first cfg.CurveGenerations generations are
// recorded. Recording continues past absorption, repeating the absorbed
// value, so Presence always has exactly cfg.CurveGenerations entries.
func Invade(model Model, state FrequencyState, cfg SimulationConfig, rng *rand.Rand, record bool) Invasion {
	horizon := 0
	if record {
		horizon = cfg.CurveGenerations
	}

	inv := Invasion{Status: Running}
	if horizon > 0 {
		inv.Presence = make([]bool, 0, horizon)
		if cfg.RecordTrajectories {
			inv.Trajectory = make([]float64, 0, horizon)
		}
	}

	gen := 0
	for tick := 0; ; tick++ {
		if inv.Status == Running {
			model.Advance(state, gen, rng)
			gen++
			inv.Status = Classify(state.AlleleFrequency(), gen, cfg)
		}

		if tick < horizon {
			freq := state.AlleleFrequency()
			inv.Presence = append(inv.Presence, !IsExtinct(freq, cfg.Tolerance))
			if inv.Trajectory != nil {
				inv.Trajectory = append(inv.Trajectory, freq)
			}
		}

		if inv.Status.Absorbed() && tick+1 >= horizon {
			break
		}
	}

	inv.Generations = gen
	return inv
}

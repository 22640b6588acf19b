package wrightfisher

import "testing"

func testConfig(n, replicates int) SimulationConfig {
	cfg := DefaultSimulationConfig(n)
	cfg.Replicates = replicates
	cfg.Seed = 20240611
	cfg.Workers = 4
	return cfg
}

func TestInvade_HorizonPadding(t *testing.T) {
	tests := []struct {
		name    string
		spec    ModelSpec
		n       int
		horizon int
	}{
		{"haploid lost early", ModelSpec{Kind: HSE, Selection: -0.5}, 10, 200},
		{"haploid fixed early", ModelSpec{Kind: HSE, Selection: 2}, 4, 300},
		{"diploid", ModelSpec{Kind: DSE, Homozygote: 0.1, Heterozygote: 0.05}, 20, 150},
		{"two environments", ModelSpec{Kind: HTE, AEnv1: 0.2, AEnv2: -0.2, SwitchGeneration: 3}, 20, 100},
		{"short horizon", ModelSpec{Kind: HTEOE, A1: 0.1, A2: 0.1}, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.n, 1)
			cfg.CurveGenerations = tt.horizon
			cfg.RecordTrajectories = true
			model, err := NewModel(tt.spec, tt.n)
			if err != nil {
				t.Fatalf("NewModel: %v", err)
			}

			for rep := 0; rep < 50; rep++ {
				state := NewFrequencyState(model.Dimension(), model.TraitIndex(), 1/float64(tt.n))
				inv := Invade(model, state, cfg, ReplicateRand(cfg.Seed, rep), true)

				if !inv.Status.Absorbed() {
					t.Fatalf("rep %d: status %v is not terminal", rep, inv.Status)
				}
				if len(inv.Presence) != tt.horizon {
					t.Fatalf("rep %d: len(Presence) = %d, want %d", rep, len(inv.Presence), tt.horizon)
				}
				if len(inv.Trajectory) != tt.horizon {
					t.Fatalf("rep %d: len(Trajectory) = %d, want %d", rep, len(inv.Trajectory), tt.horizon)
				}

				// Once absorbed the recorded values stop changing.
				if inv.Generations < tt.horizon {
					last := inv.Trajectory[inv.Generations-1]
					for g := inv.Generations; g < tt.horizon; g++ {
						if inv.Trajectory[g] != last {
							t.Fatalf("rep %d: trajectory changed after absorption at %d", rep, g)
						}
						if inv.Presence[g] != (inv.Status != Extinct) {
							t.Fatalf("rep %d: presence %v after %v", rep, inv.Presence[g], inv.Status)
						}
					}
				}
			}
		})
	}
}

func TestInvade_NoRecording(t *testing.T) {
	cfg := testConfig(10, 1)
	cfg.CurveGenerations = 100
	cfg.RecordTrajectories = true
	model, _ := NewModel(ModelSpec{Kind: HSE}, 10)

	inv := Invade(model, NewFrequencyState(1, 0, 0.1), cfg, ReplicateRand(1, 0), false)
	if inv.Presence != nil || inv.Trajectory != nil {
		t.Errorf("expected no recording, got %d presence / %d trajectory entries", len(inv.Presence), len(inv.Trajectory))
	}
	if inv.Generations < 1 {
		t.Errorf("Generations = %d, want >= 1", inv.Generations)
	}
}

func TestInvade_GenerationCap(t *testing.T) {
	cfg := testConfig(1000, 1)
	cfg.MaxGenerations = 1
	model, _ := NewModel(ModelSpec{Kind: HSE}, 1000)

	for rep := 0; rep < 100; rep++ {
		inv := Invade(model, NewFrequencyState(1, 0, 0.5), cfg, ReplicateRand(cfg.Seed, rep), false)
		if inv.Generations != 1 {
			t.Fatalf("Generations = %d, want 1", inv.Generations)
		}
		if inv.Status != HorizonReached {
			t.Fatalf("status = %v, want horizon_reached", inv.Status)
		}
	}
}

package wrightfisher

import (
	"math/rand/v2"
	"testing"
)

func TestSampleBinomial_Boundaries(t *testing.T) {
	src := rand.NewPCG(1, 2)
	for i := 0; i < 100; i++ {
		if got := sampleBinomial(50, 0, src); got != 0 {
			t.Fatalf("p=0: got %d, want 0", got)
		}
		if got := sampleBinomial(50, 1, src); got != 50 {
			t.Fatalf("p=1: got %d, want 50", got)
		}
		if got := sampleBinomial(50, -1e-15, src); got != 0 {
			t.Fatalf("p<0: got %d, want 0", got)
		}
		if got := sampleBinomial(50, 1+1e-15, src); got != 50 {
			t.Fatalf("p>1: got %d, want 50", got)
		}
	}
	if got := sampleBinomial(0, 0.5, src); got != 0 {
		t.Errorf("n=0: got %d, want 0", got)
	}
}

func TestSampleBinomial_Range(t *testing.T) {
	src := rand.NewPCG(3, 4)
	sum := 0
	const draws = 5000
	for i := 0; i < draws; i++ {
		k := sampleBinomial(100, 0.3, src)
		if k < 0 || k > 100 {
			t.Fatalf("draw %d out of range", k)
		}
		sum += k
	}
	mean := float64(sum) / draws
	// sd of the mean is sqrt(100*0.3*0.7/5000) ~ 0.065
	if mean < 29.5 || mean > 30.5 {
		t.Errorf("mean = %g, want ~30", mean)
	}
}

func TestSampleMultinomial(t *testing.T) {
	src := rand.NewPCG(5, 6)

	tests := []struct {
		name  string
		probs []float64
		want  []int
	}{
		{"all first", []float64{1, 0, 0}, []int{40, 0, 0}},
		{"all middle", []float64{0, 1, 0}, []int{0, 40, 0}},
		{"all last", []float64{0, 0, 1}, []int{0, 0, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := make([]int, 3)
			sampleMultinomial(40, tt.probs, src, counts)
			for i := range tt.want {
				if counts[i] != tt.want[i] {
					t.Errorf("counts = %v, want %v", counts, tt.want)
					break
				}
			}
		})
	}

	t.Run("conserves total", func(t *testing.T) {
		counts := make([]int, 3)
		for i := 0; i < 1000; i++ {
			sampleMultinomial(37, []float64{0.25, 0.5, 0.25}, src, counts)
			if total := counts[0] + counts[1] + counts[2]; total != 37 {
				t.Fatalf("total = %d, want 37 (counts %v)", total, counts)
			}
		}
	})
}

func TestModelAdvance_AbsorbedStatesStay(t *testing.T) {
	rng := ReplicateRand(42, 0)
	for _, kind := range ModelKinds {
		m, err := NewModel(ModelSpec{Kind: kind, Selection: 0.3, Heterozygote: 0.3, AEnv1: 0.3, A1: 0.3}, 100)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}

		lost := make(FrequencyState, m.Dimension())
		for gen := 0; gen < 20; gen++ {
			m.Advance(lost, gen, rng)
			if lost.AlleleFrequency() != 0 {
				t.Fatalf("%s: lost allele came back: %v", kind, lost)
			}
		}

		fixed := make(FrequencyState, m.Dimension())
		fixed[0] = 1
		for gen := 0; gen < 20; gen++ {
			m.Advance(fixed, gen, rng)
			if fixed.AlleleFrequency() != 1 {
				t.Fatalf("%s: fixed allele drifted: %v", kind, fixed)
			}
		}
	}
}

func TestModelAdvance_OutOfRangeStatesAbsorb(t *testing.T) {
	rng := ReplicateRand(7, 0)
	tests := []struct {
		name  string
		spec  ModelSpec
		state FrequencyState
		want  float64
	}{
		// AA pushed below zero after an Aa-only state was reinvaded.
		{"diploid below zero", ModelSpec{Kind: DSE, Homozygote: 0.5, Heterozygote: 0.5}, FrequencyState{-0.1, 0.1}, 0},
		{"diploid above one", ModelSpec{Kind: DSE, Homozygote: 0.5, Heterozygote: 0.5}, FrequencyState{1.05, -0.05}, 1},
		{"haploid below zero", ModelSpec{Kind: HSE, Selection: 0.5}, FrequencyState{-0.01}, 0},
		{"haploid above one", ModelSpec{Kind: HSE, Selection: 0.5}, FrequencyState{1.01}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(tt.spec, 10)
			if err != nil {
				t.Fatal(err)
			}
			for gen := 0; gen < 5; gen++ {
				m.Advance(tt.state, gen, rng)
				if got := tt.state.AlleleFrequency(); got != tt.want {
					t.Fatalf("generation %d: allele frequency = %g, want %g (state %v)", gen, got, tt.want, tt.state)
				}
				for i, f := range tt.state {
					if f < 0 || f > 1 {
						t.Fatalf("generation %d: component %d = %g outside [0, 1]", gen, i, f)
					}
				}
			}
		})
	}
}

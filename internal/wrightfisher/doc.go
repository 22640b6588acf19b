// Package wrightfisher estimates, by Monte Carlo simulation, the probability
// that a trait introduced at low frequency persists in a finite Wright-Fisher
// population under selection and drift.
//
// Four model variants are supported: haploid single environment (HSE),
// diploid single environment (DSE), haploid two environments (HTE) and
// haploid two effects in one environment (HTEOE). Each variant is a Model
// whose Advance method applies one generation of selection followed by
// binomial (haploid) or multinomial (diploid) sampling.
//
// An Orchestrator runs independent replicates, each optionally followed by
// reinvasion attempts, and folds their outcomes into an AggregateResult:
//
//	spec := wrightfisher.ModelSpec{Kind: wrightfisher.HSE, Selection: 0.01}
//	cfg := wrightfisher.DefaultSimulationConfig(1000)
//	orch, err := wrightfisher.NewOrchestrator(spec, cfg)
//	if err != nil {
//	    return err
//	}
//	result, err := orch.Run(ctx)
//	fmt.Println(result.Probability())
//
// Every replicate owns its own PRNG stream derived from the run seed and the
// replicate index, so a seeded run produces identical results for any number
// of workers. The package performs no file or network I/O.
package wrightfisher

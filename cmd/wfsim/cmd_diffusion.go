package main

import (
	"encoding/json"
	"fmt"

	"github.com/joshuachristie/biofunc-models/internal/diffusion"
	"github.com/spf13/cobra"
)

func newDiffusionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffusion",
		Short: "Kimura's fixation probability for a single new mutant",
		Long: `Compute the diffusion approximation to the fixation probability of a
single new mutant with selection coefficient s in a population of N
individuals:

  u = (1 - e^(-2s)) / (1 - e^(-2·ploidy·N·s))

With --steps, evaluate u over an evenly spaced range of selection
coefficients instead.

Examples:
  wfsim diffusion --population 1000 --selection 0.01
  wfsim diffusion --population 500 --selection 0.01 --ploidy 2
  wfsim diffusion --population 1000 --from -0.01 --to 0.05 --steps 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut := wantJSON(cmd)
			n, _ := cmd.Flags().GetInt("population")
			s, _ := cmd.Flags().GetFloat64("selection")
			ploidy, _ := cmd.Flags().GetInt("ploidy")
			steps, _ := cmd.Flags().GetInt("steps")
			out := cmd.OutOrStdout()

			if steps > 0 {
				lo, _ := cmd.Flags().GetFloat64("from")
				hi, _ := cmd.Flags().GetFloat64("to")
				points, err := diffusion.Sweep(n, ploidy, lo, hi, steps)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"population_size": n,
						"ploidy":          ploidy,
						"points":          points,
					})
				}
				st := newStyles(out)
				fmt.Fprintln(out, st.title.Render(fmt.Sprintf("%12s  %12s  %10s", "SELECTION", "FIXATION", "RELATIVE")))
				for _, p := range points {
					fmt.Fprintf(out, "%12.6g  %12.6g  %10.4g\n", p.Selection, p.Probability, p.Probability*float64(ploidy*n))
				}
				return nil
			}

			u, err := diffusion.FixationProbability(n, s, ploidy)
			if err != nil {
				return err
			}
			rel, err := diffusion.RelativeFixation(n, s, ploidy)
			if err != nil {
				return err
			}
			neutral := 1 / float64(ploidy*n)

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"population_size": n,
					"selection":       s,
					"ploidy":          ploidy,
					"probability":     u,
					"neutral":         neutral,
					"relative":        rel,
				})
			}
			st := newStyles(out)
			const width = 12
			st.field(out, width, "fixation", st.value.Render(fmt.Sprintf("%.6g", u)))
			st.field(out, width, "neutral", fmt.Sprintf("%.6g", neutral))
			st.field(out, width, "relative", fmt.Sprintf("%.4g", rel))
			return nil
		},
	}

	cmd.Flags().Int("population", 0, "Population size N")
	cmd.Flags().Float64("selection", 0, "Selection coefficient s")
	cmd.Flags().Int("ploidy", 1, "Gene copies per individual (1 or 2)")
	cmd.Flags().Float64("from", 0, "Sweep: lowest selection coefficient")
	cmd.Flags().Float64("to", 0, "Sweep: highest selection coefficient")
	cmd.Flags().Int("steps", 0, "Sweep: number of coefficients (0 disables the sweep)")
	cmd.MarkFlagRequired("population")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/params"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify one sample given as flags; unset parameters are undefined",
	Example: "  potability predict --ph 7 --hardness 150 --turbidity 1 --arsenic 0.005 \\\n" +
		"    --chloramine 2 --bacteria 0 --lead 0.005 --nitrates 5 --mercury 0.001",
	RunE: func(cmd *cobra.Command, args []string) error {
		set := make(params.Set, params.Count)
		for _, name := range params.Names() {
			set[name] = math.NaN()
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetFloat64(name)
				set[name] = v
			}
		}

		loaded, err := loadPipeline(cmd.Context(), loader.Options{})
		if err != nil {
			return err
		}
		defer loaded.Close()

		res, err := loaded.Pipeline.Infer(cmd.Context(), set)
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("votes")
		printResult(cmd.OutOrStdout(), res, verbose)
		if !res.Valid() {
			return fmt.Errorf("%d invalid parameter(s)", len(res.Violations))
		}
		return nil
	},
}

func init() {
	for _, d := range params.Definitions() {
		predictCmd.Flags().Float64(d.Name, 0, fmt.Sprintf("%s in %s (%g - %g)", d.Name, d.Unit, d.Min, d.Max))
	}
	predictCmd.Flags().Bool("votes", false, "Also print the base model votes")
}

// printResult writes either the verdict or every violation message.
func printResult(w io.Writer, res ensemble.Result, votes bool) {
	if !res.Valid() {
		for _, msg := range res.Violations.Messages() {
			fmt.Fprintln(w, msg)
		}
		return
	}
	fmt.Fprintln(w, "All inputs are valid!")
	fmt.Fprintf(w, "The water is predicted to be: %s\n", res.Verdict)
	if votes {
		parts := make([]string, 0, ensemble.NumSlots)
		for _, s := range ensemble.Slots() {
			parts = append(parts, fmt.Sprintf("%s(%s)=%d", s.Column(), s.ArtifactName(), res.Votes[s]))
		}
		fmt.Fprintf(w, "votes: %s meta=%d\n", strings.Join(parts, " "), res.Label)
	}
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/params"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Enter samples interactively, one parameter per prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadPipeline(cmd.Context(), loader.Options{})
		if err != nil {
			return err
		}
		defer loaded.Close()

		in := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Water potability check. Leave a value empty to mark it undefined; 'quit' to exit.")

		for sample := 1; ; sample++ {
			fmt.Fprintf(out, "\nSample %d\n", sample)
			set, ok := readSample(in, out)
			if !ok {
				return in.Err()
			}
			res, err := loaded.Pipeline.Infer(cmd.Context(), set)
			if err != nil {
				logger.Error("inference failed", "error", err)
				fmt.Fprintln(out, "Prediction failed; see log.")
				continue
			}
			printResult(out, res, true)
		}
	},
}

// readSample prompts for every parameter. ok is false on EOF or quit.
func readSample(in *bufio.Scanner, out io.Writer) (params.Set, bool) {
	set := make(params.Set, params.Count)
	for _, p := range params.All() {
		d := p.Definition()
		for {
			fmt.Fprintf(out, "  %s (%g - %g %s): ", p.Label(), d.Min, d.Max, d.Unit)
			if !in.Scan() {
				return nil, false
			}
			text := strings.TrimSpace(in.Text())
			if text == "quit" || text == "exit" {
				return nil, false
			}
			if text == "" {
				set[d.Name] = math.NaN()
				break
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				fmt.Fprintf(out, "  not a number: %q\n", text)
				continue
			}
			set[d.Name] = v
			break
		}
	}
	return set, true
}

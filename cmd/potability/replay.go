package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded fixture against the current artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("fixture")
		fixture, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}

		loaded, err := loadPipeline(cmd.Context(), loader.Options{})
		if err != nil {
			return err
		}
		defer loaded.Close()

		results := replay.Replay(cmd.Context(), loaded.Pipeline, fixture.ToCases())

		w := cmd.OutOrStdout()
		if fixture.Description != "" {
			fmt.Fprintf(w, "Fixture: %s\n", fixture.Description)
		}
		for _, r := range results {
			fmt.Fprintf(w, "[%s] %s: got %s\n", r.Action, r.Name, r.Got)
			if r.Reason != "" && r.Action != "match" {
				fmt.Fprintf(w, "    %s\n", r.Reason)
			}
		}

		s := replay.Summarize(results)
		fmt.Fprintf(w, "\n%d cases: %d match, %d mismatch, %d error (%d rejected)\n",
			s.TotalCases, s.Matches, s.Mismatches, s.Errors, s.Rejections)
		if !s.Passed() {
			return fmt.Errorf("replay failed: %d mismatches, %d errors", s.Mismatches, s.Errors)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().String("fixture", "", "Path to a JSON replay fixture")
	replayCmd.MarkFlagRequired("fixture")
}

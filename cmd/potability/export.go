package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/replay"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Record the current outcomes for a CSV of samples as a replay fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")
		outPath, _ := cmd.Flags().GetString("out")
		desc, _ := cmd.Flags().GetString("description")

		f, err := os.Open(csvPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", csvPath, err)
		}
		defer f.Close()

		loaded, err := loadPipeline(cmd.Context(), loader.Options{})
		if err != nil {
			return err
		}
		defer loaded.Close()

		if desc == "" {
			desc = fmt.Sprintf("recorded from %s against %s", csvPath, loaded.Source)
		}
		fixture, err := replay.Export(cmd.Context(), loaded.Pipeline, f, desc)
		if err != nil {
			return err
		}
		if err := replay.WriteFixture(outPath, fixture); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cases to %s\n", len(fixture.Cases), outPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("csv", "", "CSV file with one sample per row")
	exportCmd.Flags().String("out", "fixture.json", "Output fixture path")
	exportCmd.Flags().String("description", "", "Fixture description")
	exportCmd.MarkFlagRequired("csv")
}

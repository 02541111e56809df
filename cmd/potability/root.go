package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/config"
	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/logging"
)

// #region globals
var (
	cfg    config.Config
	logger *slog.Logger
)

// #endregion globals

var rootCmd = &cobra.Command{
	Use:           "potability",
	Short:         "Water potability ensemble classifier",
	Long:          "potability validates nine water-quality measurements and classifies the sample as Safe or Not Safe with a stacked ensemble.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("models"); dir != "" {
			c.Artifacts.Source = config.SourceDir
			c.Artifacts.Dir = dir
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			c.Artifacts.StorePath = db
		}
		if err := c.Validate(); err != nil {
			return err
		}
		l, err := logging.NewLogger(os.Stderr, c.Log.Level, c.Log.Format)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		slog.SetDefault(l)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", envOr("POTABILITY_CONFIG", "potability.yaml"), "Path to YAML config file")
	rootCmd.PersistentFlags().String("models", "", "Load artifacts from this bundle directory (overrides artifacts.source)")
	rootCmd.PersistentFlags().String("db", "", "Path to the bundle database (overrides artifacts.store_path)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
}

// #region helpers

// loadPipeline loads artifacts per the resolved config.
func loadPipeline(ctx context.Context, opts loader.Options) (*loader.Loaded, error) {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return loader.Load(ctx, cfg, opts)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers

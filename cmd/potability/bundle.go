package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potability/internal/bundle"
	"github.com/danielpatrickdp/potability/internal/config"
	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/logging"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Manage versioned artifact bundles",
}

// #region import
var bundleImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Check a bundle directory and store it as the active bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bundle.NewStore(cfg.Artifacts.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := bundle.ReadDir(args[0], ensemble.ArtifactNames())
		if err != nil {
			return err
		}

		checkCfg := cfg
		checkCfg.Artifacts.Source = config.SourceDir
		loaded, checkErr := loader.FromBundle(cmd.Context(), checkCfg, loader.Options{Logger: logger}, b)
		rec := logging.LoadRecord{Source: args[0], Artifacts: ensemble.ArtifactNames(), Probes: len(b.Manifest.Probes)}
		if checkErr != nil {
			if loaded != nil {
				for _, m := range loaded.Eval.Metrics {
					if !m.Pass {
						rec.Failed = append(rec.Failed, m.Name)
					}
				}
			}
			logDecision(store, logging.ProvenanceEntry{
				TriggerType: "import",
				DetailsJSON: logging.Details(rec),
				Decision:    "reject",
				Reason:      checkErr.Error(),
			})
			return checkErr
		}

		stored, err := store.Import(b)
		if err != nil {
			return err
		}
		logDecision(store, logging.ProvenanceEntry{
			BundleID:    stored.ID,
			TriggerType: "import",
			DetailsJSON: logging.Details(rec),
			Decision:    "accept",
			Reason:      loaded.Eval.Reason,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s (parent %s), now active\n", stored.ID, orDash(stored.ParentID))
		return nil
	},
}

// #endregion import

// #region list
var bundleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored bundles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bundle.NewStore(cfg.Artifacts.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		list, err := store.List(limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-1s %-36s  %-20s  %s\n", "", "ID", "Created", "Source")
		fmt.Fprintln(w, strings.Repeat("─", 90))
		for _, s := range list {
			mark := " "
			if s.Active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %-36s  %-20s  %s\n", mark, s.ID, s.CreatedAt.Format(time.DateTime), s.Source)
		}
		fmt.Fprintf(w, "\n%d bundles\n", len(list))
		return nil
	},
}

// #endregion list

// #region show
var bundleShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a bundle (the active one by default) and its decision history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bundle.NewStore(cfg.Artifacts.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		var b bundle.Bundle
		if len(args) == 1 {
			b, err = store.Get(args[0])
		} else {
			b, err = store.GetActive()
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:          %s\n", b.ID)
		fmt.Fprintf(w, "Parent:      %s\n", orDash(b.ParentID))
		fmt.Fprintf(w, "Source:      %s\n", orDash(b.Source))
		fmt.Fprintf(w, "Created:     %s\n", b.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "Description: %s\n", orDash(b.Manifest.Description))
		fmt.Fprintf(w, "Probes:      %d\n", len(b.Manifest.Probes))
		fmt.Fprintln(w, "Artifacts:")
		names := make([]string, 0, len(b.Manifest.Artifacts))
		for name := range b.Manifest.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-7s %s\n", name, b.Manifest.Artifacts[name].SHA256)
		}

		hist, err := logging.HistoryFor(store.DB(), b.ID, 20)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "History:")
		for _, e := range hist {
			fmt.Fprintf(w, "  %s  %-12s %-6s %s\n", e.CreatedAt.Format(time.DateTime), e.TriggerType, e.Decision, e.Reason)
		}
		return nil
	},
}

// #endregion show

// #region activate
var bundleActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a stored bundle active (rollback or roll forward)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bundle.NewStore(cfg.Artifacts.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Activate(args[0]); err != nil {
			return err
		}
		logDecision(store, logging.ProvenanceEntry{
			BundleID:    args[0],
			TriggerType: "activate",
			Decision:    "accept",
			Reason:      "manual activation",
		})
		fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", args[0])
		return nil
	},
}

// #endregion activate

func init() {
	bundleListCmd.Flags().Int("limit", 20, "Maximum number of bundles to list")

	bundleCmd.AddCommand(bundleImportCmd)
	bundleCmd.AddCommand(bundleListCmd)
	bundleCmd.AddCommand(bundleShowCmd)
	bundleCmd.AddCommand(bundleActivateCmd)
}

// #region helpers
func logDecision(store *bundle.Store, entry logging.ProvenanceEntry) {
	if err := logging.LogDecision(store.DB(), entry); err != nil {
		logger.Warn("provenance write failed", "error", err)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers

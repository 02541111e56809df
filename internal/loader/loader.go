// Package loader builds the inference context at process start. A load either
// yields a complete, probe-checked pipeline or fails; nothing is served from a
// partial set of artifacts.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/potability/internal/bundle"
	"github.com/danielpatrickdp/potability/internal/codec"
	"github.com/danielpatrickdp/potability/internal/config"
	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/eval"
	"github.com/danielpatrickdp/potability/internal/logging"
	"github.com/danielpatrickdp/potability/internal/model"
)

// ErrArtifact marks any failure to produce a complete predictor set.
var ErrArtifact = errors.New("artifact load failed")

// #region types

// Options carries the collaborators a load wires into the pipeline.
type Options struct {
	Logger   *slog.Logger
	Observer ensemble.Observer
}

// Loaded is a ready pipeline plus what it was built from.
type Loaded struct {
	Pipeline *ensemble.Context
	// Models maps artifact name to predictor, base slots and meta.
	Models   map[string]ensemble.Predictor
	Source   string
	BundleID string
	Eval     eval.EvalResult

	closer func() error
}

// Close releases remote connections held by the predictors.
func (l *Loaded) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer()
}

// #endregion types

// #region load

// Load builds the pipeline from cfg.Artifacts.Source. The whole load runs
// under cfg.Artifacts.LoadTimeout.
func Load(ctx context.Context, cfg config.Config, opts Options) (*Loaded, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Artifacts.LoadTimeout)
	defer cancel()

	type outcome struct {
		loaded *Loaded
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		l, err := load(ctx, cfg, opts, logger)
		done <- outcome{l, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		logger.Info("artifacts loaded",
			"source", out.loaded.Source,
			"bundle", out.loaded.BundleID,
			"checks", len(out.loaded.Eval.Metrics),
		)
		return out.loaded, nil
	case <-ctx.Done():
		// A load finishing after the deadline still owns its connections.
		go func() {
			if out := <-done; out.loaded != nil {
				out.loaded.Close()
			}
		}()
		return nil, fmt.Errorf("%w: load timed out after %s: %w", ErrArtifact, cfg.Artifacts.LoadTimeout, ctx.Err())
	}
}

func load(ctx context.Context, cfg config.Config, opts Options, logger *slog.Logger) (*Loaded, error) {
	switch cfg.Artifacts.Source {
	case config.SourceDir:
		b, err := bundle.ReadDir(cfg.Artifacts.Dir, ensemble.ArtifactNames())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
		}
		return FromBundle(ctx, cfg, opts, b)
	case config.SourceStore:
		return fromStore(ctx, cfg, opts, logger)
	case config.SourceRemote:
		return fromRemote(ctx, cfg, opts)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrArtifact, cfg.Artifacts.Source)
	}
}

// #endregion load

// #region sources

func fromStore(ctx context.Context, cfg config.Config, opts Options, logger *slog.Logger) (*Loaded, error) {
	store, err := bundle.NewStore(cfg.Artifacts.StorePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}
	defer store.Close()

	b, err := store.GetActive()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}

	l, loadErr := FromBundle(ctx, cfg, opts, b)

	entry := logging.ProvenanceEntry{
		BundleID:    b.ID,
		TriggerType: "startup_load",
		Decision:    "accept",
		Reason:      "all checks passed",
	}
	rec := logging.LoadRecord{Source: config.SourceStore, Artifacts: ensemble.ArtifactNames(), Probes: len(b.Manifest.Probes)}
	if loadErr != nil {
		entry.Decision = "reject"
		entry.Reason = loadErr.Error()
	}
	if l != nil {
		rec.Failed = failedMetrics(l.Eval)
	}
	entry.DetailsJSON = logging.Details(rec)
	if err := logging.LogDecision(store.DB(), entry); err != nil {
		logger.Warn("provenance write failed", "bundle", b.ID, "error", err)
	}
	return l, loadErr
}

// FromBundle verifies, decodes and probe-checks an in-memory bundle.
func FromBundle(ctx context.Context, cfg config.Config, opts Options, b bundle.Bundle) (*Loaded, error) {
	if err := b.Verify(ensemble.ArtifactNames()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}

	models := make(map[string]ensemble.Predictor, len(ensemble.ArtifactNames()))
	for _, name := range ensemble.ArtifactNames() {
		m, err := model.DecodeBytes(b.Artifacts[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrArtifact, name, err)
		}
		models[name] = m
	}

	source := cfg.Artifacts.Source
	if b.Source != "" && cfg.Artifacts.Source == config.SourceDir {
		source = b.Source
	}
	return assemble(ctx, cfg, opts, models, b.Manifest.Probes, source, b.ID, nil)
}

func fromRemote(ctx context.Context, cfg config.Config, opts Options) (*Loaded, error) {
	client, err := codec.NewCodecClient(cfg.Remote.Addr, cfg.Remote.CallTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}

	models := make(map[string]ensemble.Predictor, len(ensemble.ArtifactNames()))
	for _, name := range ensemble.ArtifactNames() {
		models[name] = client.Predictor(name)
	}

	// The remote side carries no manifest; probes come from the local bundle
	// directory when one is configured. The artifact files live with the
	// sidecar, so only the manifest is read.
	var probes []bundle.Probe
	if cfg.Artifacts.Dir != "" {
		m, err := bundle.ReadManifest(cfg.Artifacts.Dir, nil)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
		}
		probes = m.Probes
	}

	l, err := assemble(ctx, cfg, opts, models, probes, "remote:"+cfg.Remote.Addr, "", client.Close)
	if err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

// #endregion sources

// #region assemble

func assemble(ctx context.Context, cfg config.Config, opts Options, models map[string]ensemble.Predictor,
	probes []bundle.Probe, source, bundleID string, closer func() error) (*Loaded, error) {
	var base ensemble.BaseSet
	for _, s := range ensemble.Slots() {
		base[s] = models[s.ArtifactName()]
	}

	pipeline, err := ensemble.NewContext(base, models[ensemble.MetaArtifact],
		ensemble.WithParallelBase(cfg.Inference.ParallelBase),
		ensemble.WithObserver(opts.Observer),
		ensemble.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}

	// Probes run without the observer so startup checks stay out of request metrics.
	probePipeline, err := ensemble.NewContext(base, models[ensemble.MetaArtifact])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}
	evalCfg := eval.DefaultEvalConfig()
	evalCfg.RequireProbes = cfg.Artifacts.RequireProbes
	result := eval.NewEvalHarness(evalCfg).Run(ctx, probePipeline, probes)
	if !result.Passed {
		return &Loaded{Eval: result, BundleID: bundleID, Source: source},
			fmt.Errorf("%w: %s", ErrArtifact, result.Reason)
	}

	return &Loaded{
		Pipeline: pipeline,
		Models:   models,
		Source:   source,
		BundleID: bundleID,
		Eval:     result,
		closer:   closer,
	}, nil
}

func failedMetrics(r eval.EvalResult) []string {
	var out []string
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m.Name)
		}
	}
	return out
}

// #endregion assemble

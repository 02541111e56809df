package loader

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/potability/internal/bundle"
	"github.com/danielpatrickdp/potability/internal/codec"
	"github.com/danielpatrickdp/potability/internal/config"
	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/logging"
	"github.com/danielpatrickdp/potability/internal/params"
)

const bundleDir = "testdata/bundle"

func dirConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.Artifacts.Source = config.SourceDir
	cfg.Artifacts.Dir = dir
	cfg.Artifacts.LoadTimeout = 5 * time.Second
	return cfg
}

// copyBundle copies the test bundle so a test can corrupt it.
func copyBundle(t *testing.T) string {
	t.Helper()
	dst := t.TempDir()
	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(bundleDir, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", e.Name(), err)
		}
	}
	return dst
}

func scenario() params.Set {
	return params.Set{
		"ph": 7, "hardness": 150, "turbidity": 1, "arsenic": 0.005, "chloramine": 2,
		"bacteria": 0, "lead": 0.005, "nitrates": 5, "mercury": 0.001,
	}
}

// #region dir-tests
func TestLoad_Dir(t *testing.T) {
	l, err := Load(context.Background(), dirConfig(bundleDir), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Close()

	if !l.Eval.Passed || len(l.Eval.Metrics) != 6 {
		t.Fatalf("expected 3 probes with votes to pass, got %+v", l.Eval)
	}
	if len(l.Models) != 5 {
		t.Errorf("expected 5 models, got %d", len(l.Models))
	}

	res, err := l.Pipeline.Infer(context.Background(), scenario())
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if res.Verdict != ensemble.VerdictSafe {
		t.Errorf("expected Safe, got %s", res.Verdict)
	}
}

func TestLoad_DirRejectsWithoutPredicting(t *testing.T) {
	l, err := Load(context.Background(), dirConfig(bundleDir), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	in := scenario()
	in["mercury"] = math.NaN()
	res, err := l.Pipeline.Infer(context.Background(), in)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if got := res.Violations.Messages(); len(got) != 1 || got[0] != "Mercury contains NaN value." {
		t.Errorf("unexpected violations %v", got)
	}
}

func TestLoad_ParallelBaseSameVerdicts(t *testing.T) {
	cfg := dirConfig(bundleDir)
	cfg.Inference.ParallelBase = true
	l, err := Load(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !l.Eval.Passed {
		t.Fatalf("probes should pass in parallel mode: %s", l.Eval.Reason)
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	dir := copyBundle(t)
	os.Remove(filepath.Join(dir, "forest.json"))

	_, err := Load(context.Background(), dirConfig(dir), Options{})
	if !errors.Is(err, ErrArtifact) || !errors.Is(err, bundle.ErrMissingArtifact) {
		t.Fatalf("expected missing artifact error, got %v", err)
	}
}

func TestLoad_ChecksumMismatch(t *testing.T) {
	dir := copyBundle(t)
	path := filepath.Join(dir, "meta.json")
	data, _ := os.ReadFile(path)
	os.WriteFile(path, []byte(strings.Replace(string(data), "-2.25", "-0.25", 1)), 0o644)

	_, err := Load(context.Background(), dirConfig(dir), Options{})
	if !errors.Is(err, bundle.ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestLoad_UndecodableArtifact(t *testing.T) {
	dir := copyBundle(t)
	os.Remove(filepath.Join(dir, bundle.ManifestFile))
	os.WriteFile(filepath.Join(dir, "svm.json"), []byte(`{"format":"other"}`), 0o644)

	_, err := Load(context.Background(), dirConfig(dir), Options{})
	if !errors.Is(err, ErrArtifact) || !strings.Contains(err.Error(), "svm") {
		t.Fatalf("expected decode failure naming svm, got %v", err)
	}
}

func TestLoad_ProbeMismatchIsFatal(t *testing.T) {
	dir := copyBundle(t)
	path := filepath.Join(dir, bundle.ManifestFile)
	data, _ := os.ReadFile(path)
	// Swapped column order in the recorded votes.
	os.WriteFile(path, []byte(strings.Replace(string(data), "votes: [0, 1, 0, 1]", "votes: [1, 0, 1, 0]", 1)), 0o644)

	_, err := Load(context.Background(), dirConfig(dir), Options{})
	if !errors.Is(err, ErrArtifact) || !strings.Contains(err.Error(), "lead_spike") {
		t.Fatalf("expected probe failure, got %v", err)
	}
}

func TestLoad_RequireProbes(t *testing.T) {
	dir := copyBundle(t)
	os.Remove(filepath.Join(dir, bundle.ManifestFile))

	cfg := dirConfig(dir)
	if _, err := Load(context.Background(), cfg, Options{}); err != nil {
		t.Fatalf("bundle without manifest should load: %v", err)
	}
	cfg.Artifacts.RequireProbes = true
	if _, err := Load(context.Background(), cfg, Options{}); !errors.Is(err, ErrArtifact) {
		t.Fatalf("expected failure when probes are required, got %v", err)
	}
}

// #endregion dir-tests

// #region store-tests
func TestLoad_StoreLogsProvenance(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bundles.db")
	store, err := bundle.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	b, err := bundle.ReadDir(bundleDir, ensemble.ArtifactNames())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	imported, err := store.Import(b)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	store.Close()

	cfg := dirConfig("")
	cfg.Artifacts.Source = config.SourceStore
	cfg.Artifacts.StorePath = dbPath

	l, err := Load(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.BundleID != imported.ID {
		t.Errorf("expected bundle %s, got %s", imported.ID, l.BundleID)
	}

	store, _ = bundle.NewStore(dbPath)
	defer store.Close()
	hist, err := logging.History(store.DB(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].TriggerType != "startup_load" || hist[0].Decision != "accept" {
		t.Fatalf("unexpected provenance %+v", hist)
	}
}

func TestLoad_StoreEmpty(t *testing.T) {
	cfg := dirConfig("")
	cfg.Artifacts.Source = config.SourceStore
	cfg.Artifacts.StorePath = filepath.Join(t.TempDir(), "empty.db")

	_, err := Load(context.Background(), cfg, Options{})
	if !errors.Is(err, bundle.ErrNoActive) {
		t.Fatalf("expected ErrNoActive, got %v", err)
	}
}

// #endregion store-tests

// #region remote-tests
func serve(t *testing.T, models map[string]ensemble.Predictor) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	codec.Register(srv, codec.NewServer(models, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestLoad_Remote(t *testing.T) {
	local, err := Load(context.Background(), dirConfig(bundleDir), Options{})
	if err != nil {
		t.Fatalf("local Load: %v", err)
	}

	cfg := dirConfig(bundleDir)
	cfg.Artifacts.Source = config.SourceRemote
	cfg.Remote.Addr = serve(t, local.Models)

	l, err := Load(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("remote Load: %v", err)
	}
	defer l.Close()
	if !l.Eval.Passed || len(l.Eval.Metrics) == 0 {
		t.Fatalf("expected remote probes to run and pass: %+v", l.Eval)
	}
	if !strings.HasPrefix(l.Source, "remote:") {
		t.Errorf("unexpected source %q", l.Source)
	}
}

// manifestOnly copies just the manifest, as a remote deployment would have it.
func manifestOnly(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join(bundleDir, bundle.ManifestFile))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, bundle.ManifestFile), data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestLoad_RemoteManifestOnlyRunsChecks(t *testing.T) {
	local, err := Load(context.Background(), dirConfig(bundleDir), Options{})
	if err != nil {
		t.Fatalf("local Load: %v", err)
	}

	cfg := dirConfig(manifestOnly(t))
	cfg.Artifacts.Source = config.SourceRemote
	cfg.Remote.Addr = serve(t, local.Models)

	l, err := Load(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("remote Load: %v", err)
	}
	defer l.Close()
	if len(l.Eval.Metrics) != 6 {
		t.Fatalf("expected all 3 manifest cases checked, got %+v", l.Eval.Metrics)
	}
}

func TestLoad_RemoteManifestOnlyMismatchIsFatal(t *testing.T) {
	zero := ensemble.PredictorFunc(func(context.Context, []float64) (ensemble.Label, error) {
		return 0, nil
	})
	models := map[string]ensemble.Predictor{}
	for _, name := range ensemble.ArtifactNames() {
		models[name] = zero
	}

	cfg := dirConfig(manifestOnly(t))
	cfg.Artifacts.Source = config.SourceRemote
	cfg.Remote.Addr = serve(t, models)

	_, err := Load(context.Background(), cfg, Options{})
	if !errors.Is(err, ErrArtifact) || !strings.Contains(err.Error(), "clean") {
		t.Fatalf("expected a recorded-vote mismatch to abort the load, got %v", err)
	}
}

func TestLoad_RemoteBadManifest(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, bundle.ManifestFile), []byte("probes: [unclosed"), 0o644)

	cfg := dirConfig(dir)
	cfg.Artifacts.Source = config.SourceRemote
	cfg.Remote.Addr = serve(t, map[string]ensemble.Predictor{})

	if _, err := Load(context.Background(), cfg, Options{}); !errors.Is(err, ErrArtifact) {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestLoad_RemoteTimeout(t *testing.T) {
	block := ensemble.PredictorFunc(func(ctx context.Context, _ []float64) (ensemble.Label, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	models := map[string]ensemble.Predictor{}
	for _, name := range ensemble.ArtifactNames() {
		models[name] = block
	}

	cfg := dirConfig(bundleDir)
	cfg.Artifacts.Source = config.SourceRemote
	cfg.Artifacts.LoadTimeout = 200 * time.Millisecond
	cfg.Remote.Addr = serve(t, models)
	cfg.Remote.CallTimeout = 0

	start := time.Now()
	_, err := Load(context.Background(), cfg, Options{})
	if !errors.Is(err, ErrArtifact) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("load should be bounded by its timeout, took %s", elapsed)
	}
}

// #endregion remote-tests

// Package config loads service configuration from a YAML file, environment
// overrides and built-in defaults, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Artifact sources.
const (
	SourceDir    = "dir"
	SourceStore  = "store"
	SourceRemote = "remote"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POTABILITY_"

var validate = validator.New()

// #region types

// Config is the full service configuration.
type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Remote    RemoteConfig    `yaml:"remote"`
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Log       LogConfig       `yaml:"log"`
}

// ArtifactsConfig selects where the model artifacts come from.
type ArtifactsConfig struct {
	Source        string        `yaml:"source" validate:"oneof=dir store remote"`
	Dir           string        `yaml:"dir" validate:"required_if=Source dir"`
	StorePath     string        `yaml:"store_path" validate:"required_if=Source store"`
	LoadTimeout   time.Duration `yaml:"load_timeout" validate:"gt=0"`
	RequireProbes bool          `yaml:"require_probes"`
}

// RemoteConfig points at a gRPC predictor service.
type RemoteConfig struct {
	Addr        string        `yaml:"addr" validate:"omitempty,hostname_port"`
	CallTimeout time.Duration `yaml:"call_timeout" validate:"gte=0"`
}

// ServerConfig holds listen addresses. An empty GRPCAddr disables the
// predictor service.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" validate:"required,hostname_port"`
	GRPCAddr string `yaml:"grpc_addr" validate:"omitempty,hostname_port"`
}

// InferenceConfig tunes the pipeline.
type InferenceConfig struct {
	ParallelBase bool `yaml:"parallel_base"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// #endregion types

// #region defaults

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Artifacts: ArtifactsConfig{
			Source:      SourceDir,
			Dir:         "models",
			StorePath:   "potability.db",
			LoadTimeout: 30 * time.Second,
		},
		Remote: RemoteConfig{
			Addr:        "localhost:50051",
			CallTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: "localhost:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// #endregion defaults

// #region load

// Load reads path (if non-empty and present) over the defaults, applies
// POTABILITY_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Artifacts.Source == SourceRemote && c.Remote.Addr == "" {
		return errors.New("invalid config: remote.addr is required when artifacts.source is remote")
	}
	return nil
}

// #endregion load

// #region env

func (c *Config) applyEnv() error {
	c.Artifacts.Source = envOr(EnvPrefix+"ARTIFACT_SOURCE", c.Artifacts.Source)
	c.Artifacts.Dir = envOr(EnvPrefix+"ARTIFACT_DIR", c.Artifacts.Dir)
	c.Artifacts.StorePath = envOr(EnvPrefix+"DB", c.Artifacts.StorePath)
	c.Remote.Addr = envOr(EnvPrefix+"CODEC_ADDR", c.Remote.Addr)
	c.Server.HTTPAddr = envOr(EnvPrefix+"HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = envOr(EnvPrefix+"GRPC_ADDR", c.Server.GRPCAddr)
	c.Log.Level = envOr(EnvPrefix+"LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr(EnvPrefix+"LOG_FORMAT", c.Log.Format)

	var err error
	if c.Artifacts.LoadTimeout, err = envDuration(EnvPrefix+"LOAD_TIMEOUT", c.Artifacts.LoadTimeout); err != nil {
		return err
	}
	if c.Remote.CallTimeout, err = envDuration(EnvPrefix+"CALL_TIMEOUT", c.Remote.CallTimeout); err != nil {
		return err
	}
	if v := os.Getenv(EnvPrefix + "PARALLEL_BASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sPARALLEL_BASE: %w", EnvPrefix, err)
		}
		c.Inference.ParallelBase = b
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// #endregion env

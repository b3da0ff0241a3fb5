// Package config loads loader and tooling configuration.
//
// Configuration comes from a single YAML file named by the --config flag
// or the NPDM_LOADER_CONFIG environment variable. There is no discovery
// and no per-field environment override.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/npdm"
)

// EnvVar names the environment variable read by LoadFromEnv.
const EnvVar = "NPDM_LOADER_CONFIG"

// MaxBufferSize bounds the metadata buffer.
const MaxBufferSize = 1 << 20

// Config is the loader configuration.
type Config struct {
	// Metadata locates metadata blobs.
	Metadata MetadataConfig `yaml:"metadata"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log"`

	// BufferSize is the metadata cache capacity in bytes.
	// Default: 0x8000
	BufferSize int `yaml:"buffer_size"`

	// Host describes the running kernel.
	Host HostConfig `yaml:"host"`
}

// MetadataConfig locates metadata blobs on disk.
type MetadataConfig struct {
	// Root is the directory the path template is resolved against.
	// ${VAR} references are expanded.
	Root string `yaml:"root"`

	// Path is a fmt template applied to the program identity.
	// Default: %016x/main.npdm
	Path string `yaml:"path"`
}

// HostConfig answers host capability queries.
type HostConfig struct {
	// ExtendedDebugFlags enables the allow-debug classification bit.
	ExtendedDebugFlags bool `yaml:"extended_debug_flags"`
}

// SupportsExtendedDebugFlags implements npdmloader.Host.
func (h HostConfig) SupportsExtendedDebugFlags() bool {
	return h.ExtendedDebugFlags
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Development selects zap's development encoder.
	Development bool `yaml:"development"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BufferSize: npdm.DefaultBufferSize,
		Metadata: MetadataConfig{
			Root: ".",
			Path: npdm.DefaultPattern,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads the file named by NPDM_LOADER_CONFIG.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, loadererrors.InvalidInput(loadererrors.PhaseConfig,
			EnvVar+" environment variable not set; set it to a config file or use --config")
	}
	return Load(path)
}

// Load reads a config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadererrors.Wrap(loadererrors.PhaseConfig, loadererrors.KindInvalidInput, err,
			fmt.Sprintf("read config %s", path))
	}
	return Parse(data)
}

// Parse decodes YAML config data over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, loadererrors.Wrap(loadererrors.PhaseConfig, loadererrors.KindInvalidInput, err, "decode config")
	}
	cfg.Metadata.Root = os.ExpandEnv(cfg.Metadata.Root)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.BufferSize <= npdm.HeaderSize || c.BufferSize > MaxBufferSize {
		errs = append(errs, loadererrors.New(loadererrors.PhaseConfig, loadererrors.KindInvalidInput).
			Path("buffer_size").
			Value(c.BufferSize).
			Detail("must be above %#x and at most %#x", npdm.HeaderSize, MaxBufferSize).
			Build())
	}

	if c.Metadata.Path == "" {
		errs = append(errs, loadererrors.New(loadererrors.PhaseConfig, loadererrors.KindInvalidInput).
			Path("metadata", "path").
			Detail("is required").
			Build())
	} else if !strings.Contains(c.Metadata.Path, "%") {
		errs = append(errs, loadererrors.New(loadererrors.PhaseConfig, loadererrors.KindInvalidInput).
			Path("metadata", "path").
			Value(c.Metadata.Path).
			Detail("must contain a verb for the program identity").
			Build())
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, loadererrors.New(loadererrors.PhaseConfig, loadererrors.KindInvalidInput).
			Path("log", "level").
			Value(c.Log.Level).
			Cause(err).
			Detail("unknown level").
			Build())
	}

	return errors.Join(errs...)
}

// Logger builds a zap logger from the log settings.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, loadererrors.Wrap(loadererrors.PhaseConfig, loadererrors.KindInvalidInput, err, "log level")
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

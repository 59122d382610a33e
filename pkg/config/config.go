// Package config loads globalesm settings from a YAML file, the environment,
// and an optional browser-style import map.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

const (
	configName = ".globalesm"
	configType = "yaml"
	envPrefix  = "GLOBALESM"
)

// Default configuration values.
const (
	DefaultRuntimeModule   = true
	DefaultWorkers         = 0
	DefaultCacheEnabled    = false
	DefaultCacheMaxEntries = 4096
	DefaultCacheMaxSize    = "64MB"
	DefaultLogLevel        = "info"
)

// Config holds all globalesm configuration.
type Config struct {
	RuntimeModule bool              `mapstructure:"runtime_module"`
	Registry      string            `mapstructure:"registry"`
	ModulePrefix  string            `mapstructure:"module_prefix"`
	ImportPaths   map[string]string `mapstructure:"-"`
	ImportMap     string            `mapstructure:"import_map"`

	Build     BuildConfig     `mapstructure:"build"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// BuildConfig configures batch builds.
type BuildConfig struct {
	// Workers bounds concurrent compiles. Zero means runtime.NumCPU().
	Workers   int    `mapstructure:"workers"`
	KeepGoing bool   `mapstructure:"keep_going"`
	OutDir    string `mapstructure:"out_dir"`
}

// CacheConfig configures the transform cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	MaxEntries int    `mapstructure:"max_entries"`
	// MaxSize is a humanized size such as "64MB".
	MaxSize string `mapstructure:"max_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// Load reads configuration. An empty path searches for .globalesm.yaml in
// the working directory, then in $HOME; a missing file is not an error
// unless path was given explicitly.
func Load(path string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if path != "" {
		viperCfg.SetConfigFile(path)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType(configType)
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	cfg.File = viperCfg.ConfigFileUsed()

	err := cfg.loadImportPaths()
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("runtime_module", DefaultRuntimeModule)
	viperCfg.SetDefault("registry", esm.DefaultRegistry)
	viperCfg.SetDefault("module_prefix", "")
	viperCfg.SetDefault("import_map", "")

	viperCfg.SetDefault("build.workers", DefaultWorkers)
	viperCfg.SetDefault("build.keep_going", false)
	viperCfg.SetDefault("build.out_dir", "")

	viperCfg.SetDefault("cache.enabled", DefaultCacheEnabled)
	viperCfg.SetDefault("cache.dir", "")
	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
	viperCfg.SetDefault("cache.max_size", DefaultCacheMaxSize)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", false)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}

// loadImportPaths builds the remap table: import-map entries first, then
// import_paths on top. Viper folds map keys to lower case and splits them on
// dots, so import_paths is read from the file directly.
func (c *Config) loadImportPaths() error {
	paths := make(map[string]string)

	if c.ImportMap != "" {
		mapPath := c.ImportMap
		if !filepath.IsAbs(mapPath) && c.File != "" {
			mapPath = filepath.Join(filepath.Dir(c.File), mapPath)
		}

		imports, err := LoadImportMap(mapPath)
		if err != nil {
			return err
		}

		maps.Copy(paths, imports)
	}

	fromFile, err := c.fileImportPaths()
	if err != nil {
		return err
	}

	maps.Copy(paths, fromFile)

	c.ImportPaths = paths

	return nil
}

func (c *Config) fileImportPaths() (map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(c.File))
	if c.File == "" || (ext != ".yaml" && ext != ".yml") {
		return nil, nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw struct {
		ImportPaths map[string]string `yaml:"import_paths"`
	}

	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return raw.ImportPaths, nil
}

// Validate checks semantic constraints. Failures are *esm.ConfigurationError.
func (c *Config) Validate() error {
	if c.Build.Workers < 0 {
		return &esm.ConfigurationError{Field: "build.workers", Msg: fmt.Sprintf("must not be negative, got %d", c.Build.Workers)}
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return &esm.ConfigurationError{Field: "telemetry.sample_ratio", Msg: fmt.Sprintf("must be within [0, 1], got %g", c.Telemetry.SampleRatio)}
	}

	if c.Cache.MaxEntries < 0 {
		return &esm.ConfigurationError{Field: "cache.max_entries", Msg: fmt.Sprintf("must not be negative, got %d", c.Cache.MaxEntries)}
	}

	if _, err := c.CacheMaxBytes(); err != nil {
		return err
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	for from, to := range c.ImportPaths {
		if from == "" || to == "" {
			return &esm.ConfigurationError{Field: "import_paths", Msg: fmt.Sprintf("empty entry %q: %q", from, to)}
		}
	}

	return nil
}

// CacheMaxBytes parses cache.max_size.
func (c *Config) CacheMaxBytes() (int64, error) {
	if c.Cache.MaxSize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.Cache.MaxSize)
	if err != nil {
		return 0, &esm.ConfigurationError{Field: "cache.max_size", Msg: err.Error()}
	}

	return int64(size), nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return level, &esm.ConfigurationError{Field: "log.level", Msg: err.Error()}
	}

	return level, nil
}

// Options builds the per-invocation lowering options. The remap table is
// copied, so later changes to c never reach a running invocation.
func (c *Config) Options(moduleName string) esm.Options {
	var paths map[string]string
	if len(c.ImportPaths) > 0 {
		paths = maps.Clone(c.ImportPaths)
	}

	return esm.Options{
		ModuleName:    moduleName,
		RuntimeModule: c.RuntimeModule,
		ImportPaths:   paths,
		Registry:      c.Registry,
	}
}

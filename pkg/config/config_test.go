package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/globalesm/pkg/config"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeFile(t, t.TempDir(), "empty.yaml", ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRuntimeModule, cfg.RuntimeModule)
	assert.Equal(t, esm.DefaultRegistry, cfg.Registry)
	assert.Equal(t, config.DefaultWorkers, cfg.Build.Workers)
	assert.Equal(t, config.DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Empty(t, cfg.ImportPaths)

	size, err := cfg.CacheMaxBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64_000_000), size)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_FileValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "importmap.json", `{"imports": {"vue": "/vendor/vue.js", "React": "/vendor/from-map.js"}}`)
	path := writeFile(t, dir, ".globalesm.yaml", `runtime_module: false
registry: window.__registry
module_prefix: app/
import_map: importmap.json
import_paths:
  React: /vendor/react.js
  "@scope/Pkg": /vendor/pkg.js
  ./local/util.js: /vendor/util.js
build:
  workers: 3
  keep_going: true
  out_dir: dist
cache:
  enabled: true
  max_size: 1MiB
log:
  level: debug
  json: true
telemetry:
  sample_ratio: 0.25
  metrics_addr: ":9090"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.RuntimeModule)
	assert.Equal(t, "window.__registry", cfg.Registry)
	assert.Equal(t, "app/", cfg.ModulePrefix)
	assert.Equal(t, map[string]string{
		"React":           "/vendor/react.js",
		"@scope/Pkg":      "/vendor/pkg.js",
		"./local/util.js": "/vendor/util.js",
		"vue":             "/vendor/vue.js",
	}, cfg.ImportPaths)
	assert.Equal(t, 3, cfg.Build.Workers)
	assert.True(t, cfg.Build.KeepGoing)
	assert.Equal(t, "dist", cfg.Build.OutDir)
	assert.True(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Log.JSON)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Equal(t, ":9090", cfg.Telemetry.MetricsAddr)
	assert.Equal(t, path, cfg.File)

	size, err := cfg.CacheMaxBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), size)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GLOBALESM_BUILD_WORKERS", "7")
	t.Setenv("GLOBALESM_REGISTRY", "self.mods")

	cfg, err := config.Load(writeFile(t, t.TempDir(), "c.yaml", "build:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Build.Workers)
	assert.Equal(t, "self.mods", cfg.Registry)
}

func TestLoad_NoFileFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.True(t, cfg.RuntimeModule)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"negative workers", "build:\n  workers: -1\n", "build.workers"},
		{"sample ratio", "telemetry:\n  sample_ratio: 1.5\n", "telemetry.sample_ratio"},
		{"cache size", "cache:\n  max_size: lots\n", "cache.max_size"},
		{"log level", "log:\n  level: chatty\n", "log.level"},
		{"empty remap", "import_paths:\n  react: \"\"\n", "import_paths"},
		{"bad import map", "import_map: map.json\n", "import_map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, dir, "map.json", `{"imports": {"a": 1}}`)

			_, err := config.Load(writeFile(t, dir, "c.yaml", tt.content))
			require.ErrorIs(t, err, esm.ErrConfiguration)

			var cfgErr *esm.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParseImportMap(t *testing.T) {
	t.Parallel()

	imports, err := config.ParseImportMap([]byte(`{"imports": {"lodash": "/l.js"}, "scopes": {"/x/": {"a": "/b.js"}}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lodash": "/l.js"}, imports)

	for _, bad := range []string{`{}`, `{"imports": []}`, `{"imports": {"a": ""}}`, `{"imports": {}, "extra": 1}`, `not json`} {
		_, err := config.ParseImportMap([]byte(bad))
		require.ErrorIs(t, err, esm.ErrConfiguration, bad)
	}
}

func TestOptions_CopiesRemapTable(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		RuntimeModule: true,
		Registry:      "global.__modules",
		ImportPaths:   map[string]string{"react": "/r.js"},
	}

	opts := cfg.Options("app/main.js")
	cfg.ImportPaths["react"] = "/changed.js"

	assert.Equal(t, "app/main.js", opts.ModuleName)
	assert.True(t, opts.RuntimeModule)
	assert.Equal(t, "/r.js", opts.ImportPaths["react"])
	assert.Nil(t, (&config.Config{}).Options("x").ImportPaths)
}

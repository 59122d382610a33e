package commands_test

// Commands set color.NoColor and the global OTel providers, so these tests
// do not run in parallel.

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/globalesm/cmd/globalesm/commands"
	"github.com/Sumatoshi-tech/globalesm/internal/build"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

const appSource = `import React from "react";
export const App = () => React;
`

const appLowered = `const __react = global.__modules.import("react");
const React = __react.default;
const App = () => React;
global.__modules.init("app.js");
global.__modules.export("app.js", { App });
`

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	var stdout, stderr bytes.Buffer

	cmd := commands.NewRootCommand()
	cmd.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func writeModule(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "globalesm "), stdout)
	assert.Contains(t, stdout, "commit:")
}

func TestTransform_Stdin(t *testing.T) {
	stdout, _, err := execute(t, appSource, "transform", "--module-name", "app.js")
	require.NoError(t, err)
	assert.Equal(t, appLowered, stdout)
}

func TestTransform_StdinDash(t *testing.T) {
	stdout, _, err := execute(t, appSource, "transform", "-m", "app.js", "-")
	require.NoError(t, err)
	assert.Equal(t, appLowered, stdout)
}

func TestTransform_StdinNeedsModuleName(t *testing.T) {
	_, _, err := execute(t, appSource, "transform")
	require.ErrorIs(t, err, esm.ErrConfiguration)
}

func TestTransform_Static(t *testing.T) {
	stdout, _, err := execute(t, appSource, "transform", "--static")
	require.NoError(t, err)
	assert.Contains(t, stdout, `import React from "react";`)
	assert.Contains(t, stdout, "export const App = () => React;")
	assert.NotContains(t, stdout, "global.__modules")
}

func TestTransform_FlagsOverrideConfig(t *testing.T) {
	stdout, _, err := execute(t, appSource, "transform", "-m", "app.js",
		"--registry", "window.mods", "--import-path", "react=/vendor/react.js")
	require.NoError(t, err)
	assert.Contains(t, stdout, `const __react = window.mods.import("/vendor/react.js");`)
	assert.Contains(t, stdout, `window.mods.export("app.js", { App });`)
}

func TestTransform_InvalidRegistry(t *testing.T) {
	_, _, err := execute(t, appSource, "transform", "-m", "app.js", "--registry", "1bad")
	require.ErrorIs(t, err, esm.ErrConfiguration)
}

func TestTransform_DirectoryToOut(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()

	writeModule(t, root, "app.js", appSource)
	writeModule(t, root, "lib/util.ts", "export const util = 1;\n")

	stdout, stderr, err := execute(t, "", "transform", "--out", out, root)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "compiled 2 modules (0 cached)")
	assert.Contains(t, stderr, "wrote 2 files")

	code, err := os.ReadFile(filepath.Join(out, "lib", "util.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(code), `global.__modules.export("lib/util.ts", { util });`)
}

func TestTransform_MultipleToStdout(t *testing.T) {
	root := t.TempDir()
	a := writeModule(t, root, "a.js", "export const a = 1;\n")
	b := writeModule(t, root, "b.js", "export const b = 2;\n")

	stdout, _, err := execute(t, "", "transform", "--quiet", a, b)
	require.NoError(t, err)
	assert.Contains(t, stdout, "// ==> "+a+" <==")
	assert.Contains(t, stdout, "// ==> "+b+" <==")
}

func TestTransform_KeepGoing(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "ok.js", "export const ok = 1;\n")
	bad := writeModule(t, root, "bad.js", "export const = ;\n")

	_, stderr, err := execute(t, "", "transform", "--keep-going", "--out", t.TempDir(), root)
	require.ErrorIs(t, err, build.ErrFailed)
	assert.Contains(t, stderr, bad+" [syntax]")
	assert.Contains(t, stderr, "1 failed")
}

func TestTransform_FirstErrorStops(t *testing.T) {
	root := t.TempDir()
	bad := writeModule(t, root, "bad.js", "export const = ;\n")

	_, _, err := execute(t, "", "transform", bad)
	require.Error(t, err)
	require.NotErrorIs(t, err, build.ErrFailed)
	assert.Contains(t, err.Error(), bad)
}

func TestTransform_ModuleNameNeedsOneModule(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "a.js", "export {};\n")
	writeModule(t, root, "b.js", "export {};\n")

	_, _, err := execute(t, "", "transform", "-m", "x.js", root)
	require.ErrorIs(t, err, commands.ErrModuleNameAmbiguous)
}

func TestTransform_OutWithStdin(t *testing.T) {
	_, _, err := execute(t, appSource, "transform", "-m", "app.js", "--out", t.TempDir())
	require.ErrorIs(t, err, commands.ErrOutWithStdin)
}

func TestTransform_Diff(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "app.js", appSource)
	out := t.TempDir()

	stdout, _, err := execute(t, "", "transform", "--diff", "-m", "app.js", "--out", out, path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "--- "+path)
	assert.Contains(t, stdout, `-import React from "react";`)
	assert.Contains(t, stdout, `+const __react = global.__modules.import("react");`)
	assert.Contains(t, stdout, `+global.__modules.init("app.js");`)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "diff mode writes nothing")
}

func TestInspect_JSON(t *testing.T) {
	stdout, _, err := execute(t, appSource, "inspect", "--format", "json")
	require.NoError(t, err)

	var reports []commands.ModuleReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, "<stdin>", report.File)
	assert.Equal(t, "stdin.js", report.Module)
	assert.Equal(t, []esm.ImportBinding{{Local: "React", Source: "react", Kind: esm.KindDefault}}, report.Imports)
	assert.Equal(t, []esm.ExportBinding{{Local: "App", Kind: esm.KindNamed}}, report.Exports)
	assert.Equal(t, []esm.Handle{{Source: "react", Name: "__react", Path: "react"}}, report.Handles)
}

func TestInspect_YAML(t *testing.T) {
	stdout, _, err := execute(t, appSource, "inspect", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kind: default")
	assert.Contains(t, stdout, "source: react")
	assert.Contains(t, stdout, "local: App")
}

func TestInspect_Table(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "app.js", appSource)

	stdout, _, err := execute(t, "", "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)
	assert.Contains(t, stdout, "react")
	assert.Contains(t, stdout, "1 imports")
	assert.Contains(t, stdout, "1 exports")
}

func TestInspect_UnknownFormat(t *testing.T) {
	_, _, err := execute(t, appSource, "inspect", "--format", "xml")
	require.ErrorIs(t, err, commands.ErrUnknownFormat)
}

func TestWatch_NeedsOutDir(t *testing.T) {
	_, _, err := execute(t, "", "watch", t.TempDir())
	require.ErrorIs(t, err, commands.ErrNoOutDir)
}

func TestMCPCommand_DebugFlag(t *testing.T) {
	cmd, _, err := commands.NewRootCommand().Find([]string{"mcp"})
	require.NoError(t, err)
	assert.Equal(t, "mcp", cmd.Name())
	assert.NotEmpty(t, cmd.Long)

	flag := cmd.Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRoot_VerboseAndQuietExclusive(t *testing.T) {
	_, _, err := execute(t, "", "version", "--verbose", "--quiet")
	require.Error(t, err)
}

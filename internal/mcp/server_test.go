package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/globalesm/internal/mcp"
	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

func connect(t *testing.T, deps mcp.ServerDeps) *mcpsdk.ClientSession {
	t.Helper()

	srv := mcp.NewServer(deps)
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callText(t *testing.T, session *mcpsdk.ClientSession, tool string, args map[string]any) (string, bool) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text, result.IsError
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	assert.Equal(t, []string{mcp.ToolNameInspect, mcp.ToolNameTransform}, srv.ListToolNames())
}

func TestServer_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.ServerDeps{})

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 2)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}

func TestServer_Transform(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.ServerDeps{
		Defaults: func(name string) esm.Options {
			return esm.Options{ModuleName: name, RuntimeModule: true, ImportPaths: map[string]string{"a": "/a.js"}}
		},
	})

	text, isErr := callText(t, session, mcp.ToolNameTransform, map[string]any{
		"code":         "import x from \"a\";\nimport y from \"b\";\nexport { x, y };\n",
		"module_name":  "main.js",
		"registry":     "window.mods",
		"import_paths": map[string]any{"b": "/b.js"},
	})
	require.False(t, isErr, text)

	var out compiler.Output
	require.NoError(t, json.Unmarshal([]byte(text), &out))

	assert.Contains(t, out.Code, `window.mods.import("/a.js")`)
	assert.Contains(t, out.Code, `window.mods.import("/b.js")`)
	assert.Contains(t, out.Code, `window.mods.init("main.js")`)
	assert.Len(t, out.Imports, 2)
	assert.Len(t, out.Exports, 2)
}

func TestServer_TransformStatic(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.ServerDeps{})

	text, isErr := callText(t, session, mcp.ToolNameTransform, map[string]any{
		"code":   "export const a = 1;\n",
		"static": true,
	})
	require.False(t, isErr, text)
	assert.NotContains(t, text, "global.__modules")
}

func TestServer_Inspect(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.ServerDeps{})

	text, isErr := callText(t, session, mcp.ToolNameInspect, map[string]any{
		"code":     "import type { T } from \"./t\";\nimport * as ns from \"ns\";\nexport default ns;\n",
		"language": "typescript",
	})
	require.False(t, isErr, text)

	var res mcp.InspectResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))

	assert.Equal(t, "typescript", res.Language)
	require.Len(t, res.Imports, 1)
	assert.Equal(t, esm.ImportBinding{Local: "ns", Source: "ns", Kind: esm.KindNamespaceOrAll, Retained: true}, res.Imports[0])
	require.Len(t, res.Exports, 1)
	assert.Equal(t, esm.KindDefault, res.Exports[0].Kind)
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.ServerDeps{})

	tests := []struct {
		name string
		tool string
		args map[string]any
		kind string
	}{
		{"empty code", mcp.ToolNameTransform, map[string]any{"code": ""}, compiler.KindOther},
		{"syntax", mcp.ToolNameTransform, map[string]any{"code": "export const = ;"}, compiler.KindSyntax},
		{"language", mcp.ToolNameInspect, map[string]any{"code": "export {};", "language": "cobol"}, compiler.KindLanguage},
		{"registry", mcp.ToolNameTransform, map[string]any{"code": "export {};", "registry": "not-valid"}, compiler.KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			text, isErr := callText(t, session, tt.tool, tt.args)
			require.True(t, isErr)

			var payload mcp.ToolError
			require.NoError(t, json.Unmarshal([]byte(text), &payload))
			assert.Equal(t, tt.kind, payload.Kind)
			assert.NotEmpty(t, payload.Message)

			if tt.kind == compiler.KindSyntax {
				require.NotNil(t, payload.Pos)
				assert.Equal(t, 1, payload.Pos.Line)
			}
		})
	}
}

func TestServer_TraceIDAppendedWhenSampled(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	session := connect(t, mcp.ServerDeps{Tracer: tp.Tracer("test")})

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameInspect,
		Arguments: map[string]any{"code": "export {};\n"},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 2)

	text, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "trace_id=")
}

func TestServer_Run_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, mcp.NewServer(mcp.ServerDeps{}).Run(ctx))
}

// Package mcp implements a Model Context Protocol server exposing module
// lowering and binding inspection as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
	"github.com/Sumatoshi-tech/globalesm/pkg/version"
)

const serverName = "globalesm"

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Compiler runs every tool call. Nil uses a compiler without cache or metrics.
	Compiler *compiler.Compiler

	// Defaults returns the configured options for a module name. Tool
	// arguments override them. Nil means runtime mode against the default
	// registry.
	Defaults func(moduleName string) esm.Options

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the lowering tools.
type Server struct {
	inner    *mcpsdk.Server
	tools    []string
	comp     *compiler.Compiler
	defaults func(string) esm.Options
	tracer   trace.Tracer
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	comp := deps.Compiler
	if comp == nil {
		comp = compiler.New()
	}

	defaults := deps.Defaults
	if defaults == nil {
		defaults = func(name string) esm.Options {
			return esm.Options{ModuleName: name, RuntimeModule: true}
		}
	}

	srv := &Server{
		inner:    inner,
		comp:     comp,
		defaults: defaults,
		tracer:   deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	return slices.Sorted(slices.Values(s.tools))
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	addTool(s, ToolNameTransform, transformToolDescription, s.handleTransform)
	addTool(s, ToolNameInspect, inspectToolDescription, s.handleInspect)
}

type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func addTool[In any](s *Server, name, description string, handler toolHandler[In]) {
	traced := withTracing(s.tracer, name, handler)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
			return traced(ctx, req, input)
		})

	s.tools = append(s.tools, name)
}

// withTracing runs each call of a tool inside an "mcp.<tool>" span. Failed
// calls mark the span as errored; sampled calls get a trace_id=<id> text
// item appended to the result so agents can quote it back.
func withTracing[In any](tracer trace.Tracer, toolName string, handler toolHandler[In]) toolHandler[In] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, "mcp."+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			span.SetStatus(codes.Error, "tool error")
		}

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

const (
	transformToolDescription = "Lower the import/export declarations of a JavaScript or TypeScript module " +
		"into calls on a global module registry, or canonicalize them when static is set. " +
		"Returns the rewritten code and the collected bindings."

	inspectToolDescription = "List the import and export bindings a JavaScript or TypeScript module declares, " +
		"without rewriting it."
)

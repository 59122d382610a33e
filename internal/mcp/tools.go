package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Tool name constants.
const (
	ToolNameTransform = "esm_transform"
	ToolNameInspect   = "esm_inspect"
)

// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
const MaxCodeInputBytes = 1 << 20

// defaultModuleName keys registry calls when the caller names no module.
const defaultModuleName = "module.js"

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
)

// TransformInput is the input schema for the esm_transform tool.
type TransformInput struct {
	Code        string            `json:"code"                   jsonschema:"module source code"`
	ModuleName  string            `json:"module_name,omitempty"  jsonschema:"registry key of the module (default: module.js)"`
	Language    string            `json:"language,omitempty"     jsonschema:"javascript, typescript or tsx (default: detected)"`
	Static      bool              `json:"static,omitempty"       jsonschema:"canonicalize static import/export syntax instead of lowering"`
	Registry    string            `json:"registry,omitempty"     jsonschema:"dotted registry expression (default: global.__modules)"`
	ImportPaths map[string]string `json:"import_paths,omitempty" jsonschema:"import source remapping applied to registry import calls"`
}

// InspectInput is the input schema for the esm_inspect tool.
type InspectInput struct {
	Code     string `json:"code"               jsonschema:"module source code"`
	Language string `json:"language,omitempty" jsonschema:"javascript, typescript or tsx (default: detected)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// InspectResult is the esm_inspect payload.
type InspectResult struct {
	Language string              `json:"language"`
	Imports  []esm.ImportBinding `json:"imports"`
	Exports  []esm.ExportBinding `json:"exports"`
	Warnings []esm.Warning       `json:"warnings,omitempty"`
}

// ToolError is the structured payload of a failed call.
type ToolError struct {
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Pos     *jsast.Position `json:"pos,omitempty"`
}

func (s *Server) handleTransform(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input TransformInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCode(input.Code)
	if err != nil {
		return errorResult(err)
	}

	name := input.ModuleName
	if name == "" {
		name = defaultModuleName
	}

	opts := s.defaults(name)
	opts.RuntimeModule = !input.Static

	if input.Registry != "" {
		opts.Registry = input.Registry
	}

	if len(input.ImportPaths) > 0 {
		if opts.ImportPaths == nil {
			opts.ImportPaths = make(map[string]string, len(input.ImportPaths))
		}

		maps.Copy(opts.ImportPaths, input.ImportPaths)
	}

	out, err := s.comp.Compile(ctx, compiler.Input{
		Filename: name,
		Source:   []byte(input.Code),
		Language: input.Language,
		Options:  opts,
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(out)
}

func (s *Server) handleInspect(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input InspectInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCode(input.Code)
	if err != nil {
		return errorResult(err)
	}

	out, err := s.comp.Compile(ctx, compiler.Input{
		Filename: defaultModuleName,
		Source:   []byte(input.Code),
		Language: input.Language,
		Options:  esm.Options{ModuleName: defaultModuleName},
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(InspectResult{
		Language: out.Language,
		Imports:  out.Imports,
		Exports:  out.Exports,
		Warnings: out.Warnings,
	})
}

// errorResult builds a CallToolResult with isError set. The text carries the
// error kind so agents can tell bad input from unsupported syntax.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	payload := ToolError{Kind: compiler.ErrorKind(err), Message: err.Error()}

	if pos, ok := compiler.ErrorPosition(err); ok {
		payload.Pos = &pos
	}

	data, encodeErr := json.Marshal(payload)
	if encodeErr != nil {
		data = []byte(err.Error())
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateCode(code string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}

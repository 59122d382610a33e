// Package compiler is the single-module entry point: it parses a source
// file, lowers its module declarations, and prints the result, with tracing,
// metrics, and an optional result cache around the pipeline.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/globalesm/internal/cache"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
	"github.com/Sumatoshi-tech/globalesm/pkg/jsparse"
	"github.com/Sumatoshi-tech/globalesm/pkg/version"
)

const spanName = "globalesm.compile"

// Error kinds reported in metrics and logs.
const (
	KindSyntax        = "syntax"
	KindUnsupported   = "unsupported"
	KindInvariant     = "invariant"
	KindConfiguration = "configuration"
	KindLanguage      = "language"
	KindOther         = "other"
)

// Cache stores serialized outputs by content address.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// Input is one module to compile.
type Input struct {
	// Filename is used for language detection and diagnostics.
	Filename string
	Source   []byte
	// Language overrides detection when set.
	Language string
	Options  esm.Options
}

// Output is a compiled module.
type Output struct {
	Code     string              `json:"code" yaml:"-"`
	Language string              `json:"language" yaml:"language"`
	Imports  []esm.ImportBinding `json:"imports" yaml:"imports"`
	Exports  []esm.ExportBinding `json:"exports" yaml:"exports"`
	Handles  []esm.Handle        `json:"handles" yaml:"handles"`
	Warnings []esm.Warning       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Cached   bool                `json:"-" yaml:"-"`
	Duration time.Duration       `json:"-" yaml:"-"`
}

// Compiler compiles modules. It is safe for concurrent use; each Compile call
// owns its own lowering state.
type Compiler struct {
	parser  *jsparse.Parser
	cache   Cache
	metrics *observability.CompileMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(comp *Compiler) {
		comp.cache = c
	}
}

// WithMetrics records compile metrics.
func WithMetrics(m *observability.CompileMetrics) Option {
	return func(comp *Compiler) {
		comp.metrics = m
	}
}

// WithTracer records a span per compiled module.
func WithTracer(t trace.Tracer) Option {
	return func(comp *Compiler) {
		comp.tracer = t
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(comp *Compiler) {
		comp.logger = l
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	comp := &Compiler{
		parser: jsparse.New(),
		tracer: nooptrace.NewTracerProvider().Tracer(""),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(comp)
	}

	return comp
}

// Compile parses, lowers, and prints one module.
func (c *Compiler) Compile(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()

	language := in.Language
	if language == "" {
		language = jsparse.DetectLanguage(in.Filename, in.Source)
	}

	ctx, span := c.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("module.file", in.Filename),
		attribute.String("module.name", in.Options.ModuleName),
		attribute.String("module.language", language),
		attribute.Bool("module.runtime", in.Options.RuntimeModule),
		attribute.Int("module.bytes", len(in.Source)),
	))
	defer span.End()

	out, err := c.compile(ctx, in, language)
	if err != nil {
		kind := ErrorKind(err)

		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		c.metrics.RecordError(ctx, kind)
		c.metrics.RecordModule(ctx, observability.StatusError, time.Since(start))
		c.logger.DebugContext(ctx, "compile failed", "file", in.Filename, "kind", kind, "error", err)

		return nil, err
	}

	out.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("module.imports", len(out.Imports)),
		attribute.Int("module.exports", len(out.Exports)),
		attribute.Bool("module.cached", out.Cached),
	)
	c.metrics.RecordModule(ctx, observability.StatusOK, out.Duration)
	c.metrics.RecordBindings(ctx, len(out.Imports), len(out.Exports))
	c.logger.DebugContext(ctx, "compiled module",
		"file", in.Filename,
		"module", in.Options.ModuleName,
		"imports", len(out.Imports),
		"exports", len(out.Exports),
		"cached", out.Cached,
		"duration", out.Duration,
	)

	return out, nil
}

func (c *Compiler) compile(ctx context.Context, in Input, language string) (*Output, error) {
	err := in.Options.Validate()
	if err != nil {
		return nil, err
	}

	var key string

	if c.cache != nil {
		key = cache.Key(version.Version, language, Fingerprint(in.Options), in.Source)

		if out, ok := c.lookup(ctx, key); ok {
			return out, nil
		}
	}

	mod, err := c.parser.Parse(ctx, in.Filename, in.Source, language)
	if err != nil {
		return nil, err
	}

	res, err := esm.Transform(mod, in.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayName(in.Filename), err)
	}

	for _, warning := range res.Warnings {
		c.logger.WarnContext(ctx, warning.Msg,
			"file", displayName(in.Filename),
			"line", warning.Pos.Line,
			"column", warning.Pos.Column,
		)
	}

	out := &Output{
		Code:     jsast.Print(res.Module),
		Language: language,
		Imports:  res.Imports,
		Exports:  res.Exports,
		Handles:  res.Handles,
		Warnings: res.Warnings,
	}

	if c.cache != nil {
		c.store(ctx, key, out)
	}

	return out, nil
}

func (c *Compiler) lookup(ctx context.Context, key string) (*Output, bool) {
	data, ok, err := c.cache.Get(key)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed", "error", err)
	}

	if !ok {
		c.metrics.RecordCacheLookup(ctx, false)

		return nil, false
	}

	var out Output

	err = json.Unmarshal(data, &out)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry undecodable", "error", err)
		c.metrics.RecordCacheLookup(ctx, false)

		return nil, false
	}

	c.metrics.RecordCacheLookup(ctx, true)
	out.Cached = true

	return &out, true
}

func (c *Compiler) store(ctx context.Context, key string, out *Output) {
	data, err := json.Marshal(out)
	if err == nil {
		err = c.cache.Put(key, data)
	}

	if err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
}

// Fingerprint renders every option that influences output, with the remap
// table in sorted order.
func Fingerprint(opts esm.Options) string {
	var sb strings.Builder

	sb.WriteString(strconv.FormatBool(opts.RuntimeModule))
	sb.WriteByte('|')
	sb.WriteString(strconv.Quote(opts.Registry))
	sb.WriteByte('|')
	sb.WriteString(strconv.Quote(opts.ModuleName))

	for _, from := range slices.Sorted(maps.Keys(opts.ImportPaths)) {
		sb.WriteByte('|')
		sb.WriteString(strconv.Quote(from))
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(opts.ImportPaths[from]))
	}

	return sb.String()
}

// ErrorKind classifies a compile error for metrics and reports.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, jsparse.ErrSyntax):
		return KindSyntax
	case errors.Is(err, esm.ErrUnsupportedSyntax):
		return KindUnsupported
	case errors.Is(err, esm.ErrInvariant):
		return KindInvariant
	case errors.Is(err, esm.ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, jsparse.ErrUnknownLanguage):
		return KindLanguage
	default:
		return KindOther
	}
}

// ErrorPosition returns the source position carried by err, if any.
func ErrorPosition(err error) (jsast.Position, bool) {
	var syntaxErr *jsparse.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Pos, true
	}

	var unsupportedErr *esm.UnsupportedSyntaxError
	if errors.As(err, &unsupportedErr) {
		return unsupportedErr.Pos, true
	}

	return jsast.Position{}, false
}

func displayName(filename string) string {
	if filename == "" {
		return "<stdin>"
	}

	return filename
}

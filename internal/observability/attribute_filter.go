package observability

import (
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedPrefixes lists the attribute namespaces globalesm spans may carry
// out of the process.
var exportedPrefixes = []string{"module.", "error.", "http.", "url.", "mcp.", "cache."}

// secretKeys never leave the process: module text can hold credentials or
// unreleased code.
var secretKeys = map[attribute.Key]struct{}{
	"module.source": {},
	"module.code":   {},
	"request.body":  {},
	"response.body": {},
}

// attributeFilter is a SpanProcessor that hands its delegate a view of each
// ended span restricted to exported attributes.
type attributeFilter struct {
	sdktrace.SpanProcessor

	keep attribute.Filter
}

// NewAttributeFilter wraps delegate. When logger is non-nil every dropped key
// is logged at debug level.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{
		SpanProcessor: delegate,
		keep: func(kv attribute.KeyValue) bool {
			if exportable(kv.Key) {
				return true
			}

			if logger != nil {
				logger.Debug("span attribute dropped", "key", string(kv.Key))
			}

			return false
		},
	}
}

func exportable(key attribute.Key) bool {
	if _, secret := secretKeys[key]; secret {
		return false
	}

	if key == "error" {
		return true
	}

	for _, prefix := range exportedPrefixes {
		if strings.HasPrefix(string(key), prefix) {
			return true
		}
	}

	return false
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.SpanProcessor.OnEnd(filteredSpan{ReadOnlySpan: s, keep: f.keep})
}

// filteredSpan overrides Attributes; ReadOnlySpan itself cannot be mutated.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	keep attribute.Filter
}

func (s filteredSpan) Attributes() []attribute.KeyValue {
	var out []attribute.KeyValue

	for _, kv := range s.ReadOnlySpan.Attributes() {
		if s.keep(kv) {
			out = append(out, kv)
		}
	}

	return out
}

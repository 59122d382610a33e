package esm

import (
	"strings"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// DefaultRegistry is the expression registry calls are made against.
const DefaultRegistry = "global.__modules"

// Options configure one invocation. They must not change while it runs.
type Options struct {
	// ModuleName keys every registry call for this module.
	ModuleName string
	// RuntimeModule selects registry lowering; false canonicalizes static syntax.
	RuntimeModule bool
	// ImportPaths remaps source strings in registry import calls.
	ImportPaths map[string]string
	// Registry is a dotted path such as "global.__modules". Empty means DefaultRegistry.
	Registry string
}

// Validate checks the options before any rewriting happens.
func (o Options) Validate() error {
	if o.RuntimeModule && strings.TrimSpace(o.ModuleName) == "" {
		return &ConfigurationError{Field: "moduleName", Msg: "required in runtime mode"}
	}

	for _, segment := range o.registryPath() {
		if !jsast.IsIdentifierName(segment) {
			return &ConfigurationError{Field: "registry", Msg: "not a dotted identifier path: " + o.registry()}
		}
	}

	for from, to := range o.ImportPaths {
		if from == "" {
			return &ConfigurationError{Field: "importPaths", Msg: "empty source key"}
		}

		if to == "" {
			return &ConfigurationError{Field: "importPaths", Msg: "empty replacement for " + from}
		}
	}

	return nil
}

func (o Options) registry() string {
	if o.Registry == "" {
		return DefaultRegistry
	}

	return o.Registry
}

func (o Options) registryPath() []string {
	return strings.Split(o.registry(), ".")
}

// remap returns the physical path registry calls should use for source.
func (o Options) remap(source string) string {
	if to, ok := o.ImportPaths[source]; ok {
		return to
	}

	return source
}

package esm

import (
	"fmt"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Kind classifies a binding.
type Kind int

// Binding kinds.
const (
	// KindDefault is `import x from "m"` or an `export default`.
	KindDefault Kind = iota
	// KindNamed is `import { x as y }` or `export { x as y }`.
	KindNamed
	// KindDefaultAsNamed is the import side of `export { default as x } from "m"`.
	KindDefaultAsNamed
	// KindNamespaceOrAll is `import * as x`, `export * from` and `export * as x from`.
	KindNamespaceOrAll
	// KindSideEffect is `import "m"`, which binds nothing.
	KindSideEffect
)

var kindNames = [...]string{
	KindDefault:        "default",
	KindNamed:          "named",
	KindDefaultAsNamed: "default-as-named",
	KindNamespaceOrAll: "namespace",
	KindSideEffect:     "side-effect",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// MarshalText renders the kind by name in reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)

			return nil
		}
	}

	return fmt.Errorf("unknown binding kind %q", text)
}

// ImportBinding is one imported local binding.
type ImportBinding struct {
	Local string `json:"local,omitempty" yaml:"local,omitempty"`
	// Imported is the name exported by the source; empty means Local.
	Imported string `json:"imported,omitempty" yaml:"imported,omitempty"`
	Source   string `json:"source" yaml:"source"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	// Retained is set when the original declaration stays in the body.
	Retained bool `json:"retained,omitempty" yaml:"retained,omitempty"`
}

// ImportedName returns the name read from the source module's exports.
func (b ImportBinding) ImportedName() string {
	switch b.Kind {
	case KindDefault, KindDefaultAsNamed:
		return "default"
	case KindNamed:
		if b.Imported != "" {
			return b.Imported
		}

		return b.Local
	default:
		return ""
	}
}

// ExportBinding is one exported local binding.
type ExportBinding struct {
	Local string `json:"local" yaml:"local"`
	// Exported is the public name; empty means Local.
	Exported string `json:"exported,omitempty" yaml:"exported,omitempty"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Retained bool   `json:"retained,omitempty" yaml:"retained,omitempty"`
}

// ExportedName returns the key the binding is registered under.
func (b ExportBinding) ExportedName() string {
	switch {
	case b.Kind == KindDefault:
		return "default"
	case b.Exported != "":
		return b.Exported
	default:
		return b.Local
	}
}

// Warning is a non-fatal note about a lowered declaration.
type Warning struct {
	Pos jsast.Position `json:"pos" yaml:"pos"`
	Msg string         `json:"msg" yaml:"msg"`
}

// Collection is the output of one Collector pass.
type Collection struct {
	Imports  []ImportBinding
	Exports  []ExportBinding
	Body     []jsast.Stmt
	Warnings []Warning
}

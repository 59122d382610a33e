// Package esm lowers ECMAScript module declarations. The Collector extracts
// every import and export of a module into flat binding lists; the Emitter
// turns those lists into calls against a global module registry, or into
// canonical import and export statements.
package esm

import (
	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Result is a lowered module together with the bindings that shaped it.
type Result struct {
	Module   *jsast.Module
	Imports  []ImportBinding
	Exports  []ExportBinding
	Handles  []Handle
	Warnings []Warning
}

// Transform lowers one module. On error nothing is returned, so a failed
// module is never partially rewritten.
func Transform(mod *jsast.Module, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	namer := NewNamer(mod.Identifiers)

	col, err := NewCollector(opts, namer).Collect(mod)
	if err != nil {
		return nil, err
	}

	if err := verifyExports(col); err != nil {
		return nil, err
	}

	emitter := NewEmitter(opts, namer)

	body, err := emitter.Emit(col)
	if err != nil {
		return nil, err
	}

	return &Result{
		Module: &jsast.Module{
			Hashbang: mod.Hashbang,
			Body:     body,
			Language: mod.Language,
		},
		Imports:  col.Imports,
		Exports:  col.Exports,
		Handles:  emitter.Handles(),
		Warnings: col.Warnings,
	}, nil
}

// verifyExports checks that every export refers to a binding the rewritten
// module declares: a surviving declaration, a retained import, or an import
// binding the emitter will synthesize.
func verifyExports(col *Collection) error {
	declared := make(map[string]struct{})

	for _, imp := range col.Imports {
		if imp.Local != "" {
			declared[imp.Local] = struct{}{}
		}
	}

	for _, stmt := range col.Body {
		for _, name := range declaredBy(stmt) {
			declared[name] = struct{}{}
		}
	}

	for _, exp := range col.Exports {
		if _, ok := declared[exp.Local]; !ok {
			return &InvariantError{Local: exp.Local, Exported: exp.ExportedName()}
		}
	}

	return nil
}

func declaredBy(stmt jsast.Stmt) []string {
	switch st := stmt.(type) {
	case *jsast.RawStmt:
		return st.Declares
	case *jsast.VarDecl:
		return []string{st.Name}
	case *jsast.ExportDecl:
		return st.Declaration.Names
	case *jsast.ExportDefaultDecl:
		if st.Name != "" {
			return []string{st.Name}
		}
	case *jsast.ImportDecl:
		names := make([]string, 0, len(st.Specifiers))

		for _, spec := range st.Specifiers {
			names = append(names, spec.Local)
		}

		return names
	case *jsast.Unsupported:
		return st.Declares
	}

	return nil
}

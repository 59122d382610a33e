package esm

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Collector extracts the import and export bindings of one module and
// rewrites its statement list. A Collector serves a single invocation.
type Collector struct {
	runtime bool
	namer   *Namer
	out     Collection
}

// NewCollector creates a Collector that draws synthesized names from namer.
func NewCollector(opts Options, namer *Namer) *Collector {
	return &Collector{runtime: opts.RuntimeModule, namer: namer}
}

// Collect walks the top-level statements once, in source order.
func (c *Collector) Collect(mod *jsast.Module) (*Collection, error) {
	for _, stmt := range mod.Body {
		if err := c.statement(stmt); err != nil {
			return nil, err
		}
	}

	out := c.out
	c.out = Collection{}

	return &out, nil
}

func (c *Collector) statement(stmt jsast.Stmt) error {
	switch st := stmt.(type) {
	case *jsast.ImportDecl:
		c.importDecl(st)
	case *jsast.ExportDecl:
		return c.exportDecl(st)
	case *jsast.ExportDefaultDecl:
		c.exportDefaultDecl(st)
	case *jsast.ExportDefaultExpr:
		c.exportDefaultExpr(st)
	case *jsast.ExportNamed:
		if st.HasSource {
			return c.reExport(st)
		}

		c.exportNamed(st)
	case *jsast.ExportAll:
		c.exportAll(st)
	case *jsast.Unsupported:
		if c.runtime {
			return &UnsupportedSyntaxError{Pos: st.Pos, Construct: st.Construct, Msg: "no registry equivalent"}
		}

		c.keep(st)
	case *jsast.EmptyStmt:
		// Pruned.
	default:
		c.keep(stmt)
	}

	return nil
}

func (c *Collector) keep(stmt jsast.Stmt) {
	c.out.Body = append(c.out.Body, stmt)
}

func (c *Collector) addImport(b ImportBinding) {
	b.Retained = !c.runtime
	c.out.Imports = append(c.out.Imports, b)
}

func (c *Collector) addExport(b ExportBinding) {
	b.Retained = !c.runtime
	c.out.Exports = append(c.out.Exports, b)
}

// addReExport records the import/export pair a re-export lowers to. The
// re-export statement never survives, so in static mode the emitter rebuilds
// it as a canonical import followed by a plain export.
func (c *Collector) addReExport(imp ImportBinding, exp ExportBinding) {
	c.out.Imports = append(c.out.Imports, imp)
	c.out.Exports = append(c.out.Exports, exp)
}

func (c *Collector) warn(pos jsast.Position, format string, args ...any) {
	c.out.Warnings = append(c.out.Warnings, Warning{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (c *Collector) importDecl(st *jsast.ImportDecl) {
	if st.TypeOnly {
		c.keep(st)

		return
	}

	if len(st.Specifiers) == 0 {
		c.addImport(ImportBinding{Source: st.Source, Kind: KindSideEffect})

		if !c.runtime {
			c.keep(st)
		}

		return
	}

	var typeSpecs []jsast.ImportSpecifier

	for _, spec := range st.Specifiers {
		if spec.TypeOnly {
			typeSpecs = append(typeSpecs, spec)

			continue
		}

		binding := ImportBinding{Local: spec.Local, Source: st.Source}

		switch spec.Kind {
		case jsast.SpecDefault:
			binding.Kind = KindDefault
		case jsast.SpecNamespace:
			binding.Kind = KindNamespaceOrAll
		case jsast.SpecNamed:
			binding.Kind = KindNamed

			if spec.Imported != spec.Local {
				binding.Imported = spec.Imported
			}
		}

		c.addImport(binding)
	}

	if !c.runtime {
		c.keep(st)

		return
	}

	if len(typeSpecs) > 0 {
		c.keep(typeResidueImport(st.Source, typeSpecs))
	}
}

func (c *Collector) exportDecl(st *jsast.ExportDecl) error {
	decl := st.Declaration
	if decl.TypeOnly {
		c.keep(st)

		return nil
	}

	if decl.FirstIsPattern {
		return &UnsupportedSyntaxError{
			Pos:       st.Pos,
			Construct: "exported destructuring declaration",
			Msg:       "the first declarator must be a plain identifier",
		}
	}

	if len(decl.Names) == 0 {
		return &UnsupportedSyntaxError{Pos: st.Pos, Construct: "export " + string(decl.Kind), Msg: "declaration has no name"}
	}

	if len(decl.Names) > 1 && (decl.Kind == jsast.DeclConst || decl.Kind == jsast.DeclLet || decl.Kind == jsast.DeclVar) {
		c.warn(st.Pos, "only %q is exported; %s declared alongside it stay module-local",
			decl.Names[0], strings.Join(decl.Names[1:], ", "))
	}

	c.addExport(ExportBinding{Local: decl.Names[0], Kind: KindNamed})

	if !c.runtime {
		c.keep(st)

		return nil
	}

	c.keep(&jsast.RawStmt{Text: decl.Text, Declares: decl.Names, Pos: st.Pos})

	return nil
}

func (c *Collector) exportDefaultDecl(st *jsast.ExportDefaultDecl) {
	if st.TypeOnly {
		c.keep(st)

		return
	}

	if st.Name == "" {
		c.defaultValue(&jsast.RawExpr{Text: st.Text})

		return
	}

	c.keep(&jsast.RawStmt{Text: st.Text, Declares: []string{st.Name}, Pos: st.Pos})
	c.addExport(ExportBinding{Local: st.Name, Kind: KindDefault})

	if !c.runtime {
		c.keep(&jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: st.Name}})
	}
}

func (c *Collector) exportDefaultExpr(st *jsast.ExportDefaultExpr) {
	c.defaultValue(st.Expr)
}

// defaultValue binds an anonymous default export to a synthesized name.
func (c *Collector) defaultValue(value *jsast.RawExpr) {
	name := c.namer.Fresh(nameExportDefault)

	c.keep(&jsast.VarDecl{Kind: jsast.DeclConst, Name: name, Init: value})
	c.addExport(ExportBinding{Local: name, Kind: KindDefault})

	if !c.runtime {
		c.keep(&jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: name}})
	}
}

func (c *Collector) exportNamed(st *jsast.ExportNamed) {
	if st.TypeOnly {
		c.keep(st)

		return
	}

	var typeSpecs []jsast.ExportSpecifier

	for _, spec := range st.Specifiers {
		if spec.TypeOnly {
			typeSpecs = append(typeSpecs, spec)

			continue
		}

		binding := ExportBinding{Local: spec.Local, Kind: KindNamed}
		if exported := spec.ExportedName(); exported != spec.Local {
			binding.Exported = exported
		}

		c.addExport(binding)
	}

	if !c.runtime {
		c.keep(st)

		return
	}

	if len(typeSpecs) > 0 {
		c.keep(&jsast.ExportNamed{Specifiers: typeSpecs, TypeOnly: true})
	}
}

func (c *Collector) reExport(st *jsast.ExportNamed) error {
	if st.TypeOnly {
		c.keep(st)

		return nil
	}

	var typeSpecs []jsast.ExportSpecifier

	for _, spec := range st.Specifiers {
		if spec.StringName {
			return &UnsupportedSyntaxError{
				Pos:       st.Pos,
				Construct: "string-literal re-export name",
				Msg:       fmt.Sprintf("cannot re-export %q from %q", spec.ExportedName(), st.Source),
			}
		}

		if spec.TypeOnly {
			typeSpecs = append(typeSpecs, spec)

			continue
		}

		kind, base := KindNamed, spec.ExportedName()
		if spec.Local == "default" {
			kind, base = KindDefaultAsNamed, nameDefault
		}

		local := c.namer.Fresh(base)

		imported := ImportBinding{Local: local, Source: st.Source, Kind: kind}
		if spec.Local != local {
			imported.Imported = spec.Local
		}

		binding := ExportBinding{Local: local, Kind: KindNamed}
		if exported := spec.ExportedName(); exported != local {
			binding.Exported = exported
		}

		c.addReExport(imported, binding)
	}

	if len(typeSpecs) > 0 {
		c.keep(&jsast.ExportNamed{Specifiers: typeSpecs, Source: st.Source, HasSource: true, TypeOnly: true})
	}

	return nil
}

func (c *Collector) exportAll(st *jsast.ExportAll) {
	if st.TypeOnly {
		c.keep(st)

		return
	}

	if st.Namespace != "" {
		local := c.namer.Fresh(nameReExport)

		c.addReExport(
			ImportBinding{Local: local, Source: st.Source, Kind: KindNamespaceOrAll},
			ExportBinding{Local: local, Exported: st.Namespace, Kind: KindNamed},
		)
	} else {
		local := c.namer.Fresh(nameReExportAll)

		c.addReExport(
			ImportBinding{Local: local, Source: st.Source, Kind: KindNamespaceOrAll},
			ExportBinding{Local: local, Kind: KindNamespaceOrAll},
		)
	}
}

// typeResidueImport keeps type-only specifiers of a lowered import visible
// to later type erasure.
func typeResidueImport(source string, specs []jsast.ImportSpecifier) *jsast.ImportDecl {
	out := &jsast.ImportDecl{Source: source, TypeOnly: true}

	for _, spec := range specs {
		spec.TypeOnly = false
		out.Specifiers = append(out.Specifiers, spec)
	}

	return out
}

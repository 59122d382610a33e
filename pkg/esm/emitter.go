package esm

import (
	"fmt"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Registry operations called by runtime-mode output.
const (
	opImport    = "import"
	opImportAll = "importAll"
	opExport    = "export"
	opExportAll = "exportAll"
	opInit      = "init"
	opReset     = "reset"
)

// Handle is a per-source handle allocated by the emitter.
type Handle struct {
	Source string `json:"source" yaml:"source"`
	Name   string `json:"name" yaml:"name"`
	// Path is the argument passed to the registry after remapping.
	Path string `json:"path" yaml:"path"`
}

// Emitter synthesizes the statements around a collected body. An Emitter
// owns its handle table and serves a single invocation.
type Emitter struct {
	opts    Options
	namer   *Namer
	handles *handleTable
}

// NewEmitter creates an Emitter drawing handle names from namer.
func NewEmitter(opts Options, namer *Namer) *Emitter {
	return &Emitter{opts: opts, namer: namer, handles: newHandleTable()}
}

// Emit returns the final statement list: handle declarations, per-binding
// projections, the collected body, then export registration.
func (e *Emitter) Emit(col *Collection) ([]jsast.Stmt, error) {
	if e.opts.RuntimeModule {
		return e.emitRuntime(col)
	}

	return e.emitStatic(col)
}

// Handles returns the allocated handles in first-reference order.
func (e *Emitter) Handles() []Handle {
	out := make([]Handle, 0, len(e.handles.order))

	for _, source := range e.handles.order {
		out = append(out, Handle{Source: source, Name: e.handles.names[source], Path: e.opts.remap(source)})
	}

	return out
}

func (e *Emitter) emitRuntime(col *Collection) ([]jsast.Stmt, error) {
	for _, imp := range col.Imports {
		if imp.Kind == KindNamespaceOrAll {
			continue
		}

		if err := e.allocHandle(imp.Source); err != nil {
			return nil, err
		}
	}

	handleDecls := make([]jsast.Stmt, 0, len(e.handles.order))

	for _, source := range e.handles.order {
		handleDecls = append(handleDecls, &jsast.VarDecl{
			Kind: jsast.DeclConst,
			Name: e.handles.names[source],
			Init: e.registryCall(opImport, &jsast.StringLit{Value: e.opts.remap(source)}),
		})
	}

	projections := make([]jsast.Stmt, 0, len(col.Imports))

	for _, imp := range col.Imports {
		var value jsast.Expr

		switch imp.Kind {
		case KindDefault, KindDefaultAsNamed, KindNamed:
			handle, _ := e.handles.get(imp.Source)
			value = &jsast.Member{Object: &jsast.Ident{Name: handle}, Property: imp.ImportedName()}
		case KindNamespaceOrAll:
			value = e.registryCall(opImportAll, &jsast.StringLit{Value: e.opts.remap(imp.Source)})
		case KindSideEffect:
			continue
		}

		projections = append(projections, &jsast.VarDecl{Kind: jsast.DeclConst, Name: imp.Local, Init: value})
	}

	out := make([]jsast.Stmt, 0, len(handleDecls)+len(projections)+len(col.Body)+3) //nolint:mnd // init, export, exportAll
	out = append(out, handleDecls...)
	out = append(out, projections...)
	out = append(out, col.Body...)
	out = append(out, e.registration(col.Exports)...)

	return out, nil
}

func (e *Emitter) allocHandle(source string) error {
	if _, ok := e.handles.get(source); ok {
		return nil
	}

	base, err := handleBase(source)
	if err != nil {
		return fmt.Errorf("handle for %q: %w", source, err)
	}

	e.handles.add(source, e.namer.Fresh(base))

	return nil
}

// registration builds the export registration calls.
func (e *Emitter) registration(exports []ExportBinding) []jsast.Stmt {
	name := &jsast.StringLit{Value: e.opts.ModuleName}

	if len(exports) == 0 {
		return []jsast.Stmt{&jsast.ExprStmt{X: e.registryCall(opReset, name)}}
	}

	named, spread := partitionExports(exports)
	out := []jsast.Stmt{&jsast.ExprStmt{X: e.registryCall(opInit, name)}}

	if len(named) > 0 {
		out = append(out, &jsast.ExprStmt{X: e.registryCall(opExport, name, namedObject(named))})
	}

	if len(spread) > 0 {
		out = append(out, &jsast.ExprStmt{X: e.registryCall(opExportAll, name, spreadObject(spread))})
	}

	return out
}

func (e *Emitter) registryCall(op string, args ...jsast.Expr) *jsast.Call {
	path := e.opts.registryPath()
	path = append(path, op)

	return &jsast.Call{Callee: jsast.Chain(path[0], path[1:]...), Args: args}
}

func (e *Emitter) emitStatic(col *Collection) ([]jsast.Stmt, error) {
	var imports []jsast.Stmt

	for _, imp := range col.Imports {
		if imp.Retained {
			continue
		}

		imports = append(imports, staticImport(imp))
	}

	exports, err := staticExports(col)
	if err != nil {
		return nil, err
	}

	out := make([]jsast.Stmt, 0, len(imports)+len(col.Body)+len(exports))
	out = append(out, imports...)
	out = append(out, col.Body...)
	out = append(out, exports...)

	return out, nil
}

// staticImport reconstructs one binding as its own import declaration. The
// source is never remapped.
func staticImport(imp ImportBinding) *jsast.ImportDecl {
	decl := &jsast.ImportDecl{Source: imp.Source}

	switch imp.Kind {
	case KindDefault:
		decl.Specifiers = []jsast.ImportSpecifier{{Kind: jsast.SpecDefault, Local: imp.Local}}
	case KindNamespaceOrAll:
		decl.Specifiers = []jsast.ImportSpecifier{{Kind: jsast.SpecNamespace, Local: imp.Local}}
	case KindNamed, KindDefaultAsNamed:
		decl.Specifiers = []jsast.ImportSpecifier{{Kind: jsast.SpecNamed, Local: imp.Local, Imported: imp.ImportedName()}}
	case KindSideEffect:
	}

	return decl
}

// staticExports reconstructs plain export statements for bindings whose
// original syntax did not survive.
func staticExports(col *Collection) ([]jsast.Stmt, error) {
	var pending []ExportBinding

	for _, exp := range col.Exports {
		if !exp.Retained {
			pending = append(pending, exp)
		}
	}

	if len(pending) == 0 {
		return nil, nil
	}

	named, spread := partitionExports(pending)

	var out []jsast.Stmt

	if len(named) > 0 {
		clause := &jsast.ExportNamed{}

		for _, exp := range named {
			clause.Specifiers = append(clause.Specifiers, jsast.ExportSpecifier{Local: exp.Local, Exported: exp.ExportedName()})
		}

		out = append(out, clause)
	}

	for _, exp := range spread {
		source, ok := importSource(col.Imports, exp.Local)
		if !ok {
			return nil, &InvariantError{Local: exp.Local, Exported: "*"}
		}

		out = append(out, &jsast.ExportAll{Source: source})
	}

	return out, nil
}

func importSource(imports []ImportBinding, local string) (string, bool) {
	for _, imp := range imports {
		if imp.Local == local && imp.Kind == KindNamespaceOrAll {
			return imp.Source, true
		}
	}

	return "", false
}

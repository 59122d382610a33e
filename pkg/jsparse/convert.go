package jsparse

import (
	"fmt"
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Tree-sitter node types the converter dispatches on.
const (
	nodeError            = "ERROR"
	nodeHashBang         = "hash_bang_line"
	nodeImport           = "import_statement"
	nodeExport           = "export_statement"
	nodeEmpty            = "empty_statement"
	nodeImportClause     = "import_clause"
	nodeImportRequire    = "import_require_clause"
	nodeNamespaceImport  = "namespace_import"
	nodeNamedImports     = "named_imports"
	nodeImportSpecifier  = "import_specifier"
	nodeExportClause     = "export_clause"
	nodeExportSpecifier  = "export_specifier"
	nodeNamespaceExport  = "namespace_export"
	nodeDecorator        = "decorator"
	nodeString           = "string"
	nodeIdentifier       = "identifier"
	nodeVarDeclarator    = "variable_declarator"
	nodeLexicalDecl      = "lexical_declaration"
	nodeVariableDecl     = "variable_declaration"
	nodeInternalModule   = "internal_module"
	nodeExpressionStmt   = "expression_statement"
	nodeAmbientDecl      = "ambient_declaration"
	nodeImportAlias      = "import_alias"
	nodeFunctionDecl     = "function_declaration"
	nodeGeneratorDecl    = "generator_function_declaration"
	nodeClassDecl        = "class_declaration"
	nodeAbstractClass    = "abstract_class_declaration"
	nodeEnumDecl         = "enum_declaration"
	nodeModuleDecl       = "module"
	nodeInterfaceDecl    = "interface_declaration"
	nodeTypeAliasDecl    = "type_alias_declaration"
	nodeFunctionSig      = "function_signature"
	nodeObjectPattern    = "object_pattern"
	nodeArrayPattern     = "array_pattern"
	nodePairPattern      = "pair_pattern"
	nodeRestPattern      = "rest_pattern"
	nodeObjAssignPattern = "object_assignment_pattern"
	nodeAssignPattern    = "assignment_pattern"
	nodeShorthandPattern = "shorthand_property_identifier_pattern"
	nodeForIn            = "for_in_statement"
)

// scopeNodes bound var hoisting: a var inside them is not module-level.
var scopeNodes = map[string]bool{
	nodeFunctionDecl:      true,
	nodeGeneratorDecl:     true,
	"function":            true,
	"function_expression": true,
	"generator_function":  true,
	"arrow_function":      true,
	"method_definition":   true,
	nodeClassDecl:         true,
	nodeAbstractClass:     true,
	"class":               true,
	nodeInternalModule:    true,
	nodeModuleDecl:        true,
}

// converter classifies the top-level statements of one parse tree.
type converter struct {
	filename string
	src      []byte
	idents   map[string]struct{}
	firstErr *SyntaxError
}

func newConverter(filename string, src []byte) *converter {
	return &converter{
		filename: filename,
		src:      src,
		idents:   make(map[string]struct{}),
	}
}

func (c *converter) module(root sitter.Node) (*jsast.Module, error) {
	mod := &jsast.Module{}

	if root.Type() == nodeError {
		return nil, &SyntaxError{Filename: c.filename, Pos: c.pos(root), Msg: "unparsable module"}
	}

	for idx := range root.NamedChildCount() {
		child := root.NamedChild(idx)

		c.scan(child, isReExport(child))

		if c.firstErr != nil {
			return nil, c.firstErr
		}

		stmt, err := c.statement(child, mod)
		if err != nil {
			return nil, err
		}

		if stmt != nil {
			mod.Body = append(mod.Body, stmt)
		}
	}

	mod.Identifiers = make([]string, 0, len(c.idents))
	for name := range c.idents {
		mod.Identifiers = append(mod.Identifiers, name)
	}

	slices.Sort(mod.Identifiers)

	return mod, nil
}

// scan records identifiers and the first ERROR node below n.
func (c *converter) scan(n sitter.Node, skipIdents bool) {
	if c.firstErr != nil {
		return
	}

	typ := n.Type()
	if typ == nodeError {
		c.firstErr = &SyntaxError{Filename: c.filename, Pos: c.pos(n), Msg: "unexpected " + describe(c.text(n))}

		return
	}

	if !skipIdents && strings.HasSuffix(typ, "identifier") {
		c.idents[c.text(n)] = struct{}{}
	}

	for idx := range n.NamedChildCount() {
		c.scan(n.NamedChild(idx), skipIdents)
	}
}

func (c *converter) statement(n sitter.Node, mod *jsast.Module) (jsast.Stmt, error) {
	switch n.Type() {
	case nodeHashBang:
		mod.Hashbang = c.text(n)

		return nil, nil
	case nodeImport:
		return c.importStmt(n)
	case nodeExport:
		return c.exportStmt(n)
	case nodeEmpty:
		return &jsast.EmptyStmt{}, nil
	default:
		return &jsast.RawStmt{Text: c.text(n), Declares: c.declaredNames(n), Pos: c.pos(n)}, nil
	}
}

func (c *converter) importStmt(n sitter.Node) (jsast.Stmt, error) {
	text, pos := c.text(n), c.pos(n)

	if clause, ok := namedChild(n, nodeImportRequire); ok {
		unsupported := &jsast.Unsupported{Construct: "import-equals declaration", Text: text, Pos: pos}
		if id, found := namedChild(clause, nodeIdentifier); found {
			unsupported.Declares = []string{c.text(id)}
		}

		return unsupported, nil
	}

	decl := &jsast.ImportDecl{
		TypeOnly: hasToken(n, "type") || hasToken(n, "typeof"),
		Text:     text,
		Pos:      pos,
	}

	source, err := c.stringField(n, "source")
	if err != nil {
		return nil, err
	}

	decl.Source = source

	clause, ok := namedChild(n, nodeImportClause)
	if !ok {
		return decl, nil
	}

	for idx := range clause.NamedChildCount() {
		part := clause.NamedChild(idx)

		switch part.Type() {
		case nodeIdentifier:
			decl.Specifiers = append(decl.Specifiers, jsast.ImportSpecifier{Kind: jsast.SpecDefault, Local: c.text(part)})
		case nodeNamespaceImport:
			if id, found := namedChild(part, nodeIdentifier); found {
				decl.Specifiers = append(decl.Specifiers, jsast.ImportSpecifier{Kind: jsast.SpecNamespace, Local: c.text(id)})
			}
		case nodeNamedImports:
			specs, specErr := c.importSpecifiers(part)
			if specErr != nil {
				return nil, specErr
			}

			decl.Specifiers = append(decl.Specifiers, specs...)
		}
	}

	return decl, nil
}

func (c *converter) importSpecifiers(list sitter.Node) ([]jsast.ImportSpecifier, error) {
	var specs []jsast.ImportSpecifier

	for idx := range list.NamedChildCount() {
		spec := list.NamedChild(idx)
		if spec.Type() != nodeImportSpecifier {
			continue
		}

		imported, isString, err := c.moduleExportName(spec.ChildByFieldName("name"))
		if err != nil {
			return nil, err
		}

		local := imported

		if alias := spec.ChildByFieldName("alias"); !alias.IsNull() {
			local = c.text(alias)
		}

		specs = append(specs, jsast.ImportSpecifier{
			Kind:       jsast.SpecNamed,
			Local:      local,
			Imported:   imported,
			StringName: isString,
			TypeOnly:   hasToken(spec, "type") || hasToken(spec, "typeof"),
		})
	}

	return specs, nil
}

func (c *converter) exportStmt(n sitter.Node) (jsast.Stmt, error) {
	text, pos := c.text(n), c.pos(n)

	switch {
	case hasToken(n, "="):
		return &jsast.Unsupported{Construct: "export assignment", Text: text, Pos: pos}, nil
	case hasToken(n, "namespace"):
		return &jsast.Unsupported{Construct: "export as namespace", Text: text, Pos: pos}, nil
	case hasToken(n, "import") || hasNamedChild(n, nodeImportAlias):
		unsupported := &jsast.Unsupported{Construct: "export import alias", Text: text, Pos: pos}
		if alias, ok := namedChild(n, nodeImportAlias); ok {
			unsupported.Declares = c.declaredNames(alias)
		} else if id, ok := namedChild(n, nodeIdentifier); ok {
			unsupported.Declares = []string{c.text(id)}
		}

		return unsupported, nil
	}

	typeOnly := hasToken(n, "type")
	isDefault := hasToken(n, "default")

	if decl := n.ChildByFieldName("declaration"); !decl.IsNull() {
		return c.exportDeclaration(n, decl, isDefault, text, pos)
	}

	if value := n.ChildByFieldName("value"); !value.IsNull() {
		return &jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: c.text(value)}, Text: text, Pos: pos}, nil
	}

	hasSource := !n.ChildByFieldName("source").IsNull()

	source, err := c.stringField(n, "source")
	if err != nil {
		return nil, err
	}

	if clause, ok := namedChild(n, nodeExportClause); ok {
		specs, specErr := c.exportSpecifiers(clause)
		if specErr != nil {
			return nil, specErr
		}

		return &jsast.ExportNamed{
			Specifiers: specs,
			Source:     source,
			HasSource:  hasSource,
			TypeOnly:   typeOnly,
			Text:       text,
			Pos:        pos,
		}, nil
	}

	if nsExport, ok := namedChild(n, nodeNamespaceExport); ok && hasSource {
		all := &jsast.ExportAll{Source: source, TypeOnly: typeOnly, Text: text, Pos: pos}

		if nsExport.NamedChildCount() > 0 {
			name, isString, nameErr := c.moduleExportName(nsExport.NamedChild(0))
			if nameErr != nil {
				return nil, nameErr
			}

			all.Namespace = name
			all.StringName = isString
		}

		return all, nil
	}

	if hasToken(n, "*") && hasSource {
		return &jsast.ExportAll{Source: source, TypeOnly: typeOnly, Text: text, Pos: pos}, nil
	}

	return &jsast.Unsupported{Construct: "export statement", Text: text, Pos: pos}, nil
}

func (c *converter) exportDeclaration(n, decl sitter.Node, isDefault bool, text string, pos jsast.Position) (jsast.Stmt, error) {
	prefix := c.decorators(n)

	if isDefault {
		out := &jsast.ExportDefaultDecl{
			Kind: declKind(decl),
			Text: prefix + c.text(decl),
			Pos:  pos,
		}

		out.TypeOnly = out.Kind == jsast.DeclType

		if name := decl.ChildByFieldName("name"); !name.IsNull() {
			out.Name = c.text(name)
		}

		return out, nil
	}

	kind := declKind(decl)
	if kind == "" {
		return &jsast.Unsupported{Construct: "export of " + decl.Type(), Text: text, Pos: pos}, nil
	}

	out := &jsast.Declaration{
		Kind:     kind,
		TypeOnly: kind == jsast.DeclType,
		Text:     prefix + c.text(decl),
	}

	switch decl.Type() {
	case nodeLexicalDecl, nodeVariableDecl:
		for idx := range decl.NamedChildCount() {
			declarator := decl.NamedChild(idx)
			if declarator.Type() != nodeVarDeclarator {
				continue
			}

			name := declarator.ChildByFieldName("name")
			if name.IsNull() {
				continue
			}

			if len(out.Names) == 0 && name.Type() != nodeIdentifier {
				out.FirstIsPattern = true
			}

			out.Names = append(out.Names, c.patternNames(name)...)
		}
	default:
		if name := decl.ChildByFieldName("name"); !name.IsNull() {
			out.Names = append(out.Names, c.text(name))
		}

		if decl.Type() == nodeModuleDecl && !decl.ChildByFieldName("name").IsNull() &&
			decl.ChildByFieldName("name").Type() == nodeString {
			out.TypeOnly = true
			out.Kind = jsast.DeclType
		}
	}

	return &jsast.ExportDecl{Declaration: out, Text: text, Pos: pos}, nil
}

func (c *converter) exportSpecifiers(clause sitter.Node) ([]jsast.ExportSpecifier, error) {
	var specs []jsast.ExportSpecifier

	for idx := range clause.NamedChildCount() {
		spec := clause.NamedChild(idx)
		if spec.Type() != nodeExportSpecifier {
			continue
		}

		local, localString, err := c.moduleExportName(spec.ChildByFieldName("name"))
		if err != nil {
			return nil, err
		}

		out := jsast.ExportSpecifier{
			Local:      local,
			StringName: localString,
			TypeOnly:   hasToken(spec, "type"),
		}

		if alias := spec.ChildByFieldName("alias"); !alias.IsNull() {
			exported, aliasString, aliasErr := c.moduleExportName(alias)
			if aliasErr != nil {
				return nil, aliasErr
			}

			out.Exported = exported
			out.StringName = out.StringName || aliasString
		}

		specs = append(specs, out)
	}

	return specs, nil
}

// moduleExportName returns the name written by an identifier or string node.
func (c *converter) moduleExportName(n sitter.Node) (string, bool, error) {
	if n.IsNull() {
		return "", false, &SyntaxError{Filename: c.filename, Msg: "missing specifier name"}
	}

	if n.Type() != nodeString {
		return c.text(n), false, nil
	}

	value, err := jsast.Unquote(c.text(n))
	if err != nil {
		return "", false, &SyntaxError{Filename: c.filename, Pos: c.pos(n), Msg: err.Error()}
	}

	return value, true, nil
}

func (c *converter) stringField(n sitter.Node, field string) (string, error) {
	lit := n.ChildByFieldName(field)
	if lit.IsNull() {
		return "", nil
	}

	value, err := jsast.Unquote(c.text(lit))
	if err != nil {
		return "", &SyntaxError{Filename: c.filename, Pos: c.pos(lit), Msg: err.Error()}
	}

	return value, nil
}

func (c *converter) decorators(n sitter.Node) string {
	var sb strings.Builder

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if child.Type() != nodeDecorator {
			continue
		}

		sb.WriteString(c.text(child))
		sb.WriteByte(' ')
	}

	return sb.String()
}

// declaredNames lists the top-level bindings a plain statement introduces,
// including vars hoisted out of nested blocks.
func (c *converter) declaredNames(n sitter.Node) []string {
	switch n.Type() {
	case nodeLexicalDecl, nodeVariableDecl:
		return c.declaratorNames(n)
	case nodeFunctionDecl, nodeGeneratorDecl, nodeClassDecl, nodeAbstractClass, nodeEnumDecl,
		nodeInternalModule, nodeModuleDecl, nodeInterfaceDecl, nodeTypeAliasDecl, nodeFunctionSig:
		name := n.ChildByFieldName("name")
		if name.IsNull() || name.Type() == nodeString {
			return nil
		}

		return []string{c.text(name)}
	case nodeAmbientDecl:
		var names []string

		for idx := range n.NamedChildCount() {
			names = append(names, c.declaredNames(n.NamedChild(idx))...)
		}

		return names
	case nodeExpressionStmt:
		if inner, ok := namedChild(n, nodeInternalModule); ok {
			return c.declaredNames(inner)
		}
	case nodeImportAlias:
		if id, ok := namedChild(n, nodeIdentifier); ok {
			return []string{c.text(id)}
		}
	default:
		return c.hoistedVars(n)
	}

	return nil
}

func (c *converter) declaratorNames(n sitter.Node) []string {
	var names []string

	for idx := range n.NamedChildCount() {
		declarator := n.NamedChild(idx)
		if declarator.Type() != nodeVarDeclarator {
			continue
		}

		if name := declarator.ChildByFieldName("name"); !name.IsNull() {
			names = append(names, c.patternNames(name)...)
		}
	}

	return names
}

// hoistedVars lists the var bindings below n that belong to the module
// scope: `if (c) { var x }`, `for (var i;;)`, `for (var k in o)`.
func (c *converter) hoistedVars(n sitter.Node) []string {
	var names []string

	if n.Type() == nodeForIn && hasToken(n, "var") {
		if left := n.ChildByFieldName("left"); !left.IsNull() {
			names = append(names, c.patternNames(left)...)
		}
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		switch {
		case scopeNodes[child.Type()]:
		case child.Type() == nodeVariableDecl:
			names = append(names, c.declaratorNames(child)...)
		default:
			names = append(names, c.hoistedVars(child)...)
		}
	}

	return names
}

// patternNames lists the identifiers bound by a binding target.
func (c *converter) patternNames(n sitter.Node) []string {
	switch n.Type() {
	case nodeIdentifier, nodeShorthandPattern:
		return []string{c.text(n)}
	case nodePairPattern:
		if value := n.ChildByFieldName("value"); !value.IsNull() {
			return c.patternNames(value)
		}
	case nodeObjAssignPattern, nodeAssignPattern:
		if left := n.ChildByFieldName("left"); !left.IsNull() {
			return c.patternNames(left)
		}
	case nodeObjectPattern, nodeArrayPattern, nodeRestPattern:
		var names []string

		for idx := range n.NamedChildCount() {
			names = append(names, c.patternNames(n.NamedChild(idx))...)
		}

		return names
	}

	return nil
}

func (c *converter) text(n sitter.Node) string {
	return n.Content(c.src)
}

func (c *converter) pos(n sitter.Node) jsast.Position {
	start := n.StartPoint()

	return jsast.Position{
		Line:   int(start.Row) + 1,
		Column: int(start.Column) + 1,
		Offset: int(n.StartByte()),
	}
}

func declKind(decl sitter.Node) jsast.DeclKind {
	switch decl.Type() {
	case nodeLexicalDecl:
		if decl.ChildCount() > 0 && decl.Child(0).Type() == "let" {
			return jsast.DeclLet
		}

		return jsast.DeclConst
	case nodeVariableDecl:
		return jsast.DeclVar
	case nodeFunctionDecl, nodeGeneratorDecl:
		return jsast.DeclFunction
	case nodeClassDecl, nodeAbstractClass:
		return jsast.DeclClass
	case nodeEnumDecl:
		return jsast.DeclEnum
	case nodeInternalModule, nodeModuleDecl:
		return jsast.DeclNamespace
	case nodeInterfaceDecl, nodeTypeAliasDecl, nodeAmbientDecl, nodeFunctionSig:
		return jsast.DeclType
	default:
		return ""
	}
}

func isReExport(n sitter.Node) bool {
	return n.Type() == nodeExport && !n.ChildByFieldName("source").IsNull()
}

// hasToken reports whether n has a direct anonymous child of the given kind.
func hasToken(n sitter.Node, token string) bool {
	for idx := range n.ChildCount() {
		child := n.Child(idx)
		if !child.IsNamed() && child.Type() == token {
			return true
		}
	}

	return false
}

func namedChild(n sitter.Node, typ string) (sitter.Node, bool) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if child.Type() == typ {
			return child, true
		}
	}

	return sitter.Node{}, false
}

func hasNamedChild(n sitter.Node, typ string) bool {
	_, ok := namedChild(n, typ)

	return ok
}

// describe shortens erroneous source for an error message.
func describe(text string) string {
	const maxLen = 20

	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}

	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}

	if text == "" {
		return "end of input"
	}

	return fmt.Sprintf("%q", text)
}

// Package jsast defines the structured form of an ECMAScript module that the
// lowering passes consume and produce.
//
// Statements taken from source keep their original text and print verbatim.
// Statements synthesized by a pass are built from expression nodes and print
// canonically.
package jsast

// Position is a 1-based location in the source text.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
	Offset int `json:"offset" yaml:"offset"`
}

// Node is implemented by every statement and expression.
type Node interface {
	node()
}

// Stmt is a top-level module item.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression used by synthesized statements.
type Expr interface {
	Node
	expr()
}

// Module is one parsed module.
type Module struct {
	// Hashbang is the leading "#!" line, printed before anything else.
	Hashbang string
	Body     []Stmt
	// Identifiers holds every identifier written in the module, except those
	// inside re-export statements.
	Identifiers []string
	Language    string
}

// SpecifierKind classifies an import specifier.
type SpecifierKind int

// Import specifier kinds.
const (
	SpecDefault SpecifierKind = iota
	SpecNamed
	SpecNamespace
)

// ImportSpecifier is one binding introduced by an import declaration.
type ImportSpecifier struct {
	Kind  SpecifierKind
	Local string
	// Imported is the name exported by the source module for named specifiers.
	Imported string
	// StringName is set when the imported name is written as a string literal.
	StringName bool
	TypeOnly   bool
}

// ImportDecl is `import ... from "m"`. No specifiers means a side-effect import.
type ImportDecl struct {
	Specifiers []ImportSpecifier
	Source     string
	TypeOnly   bool
	Text       string
	Pos        Position
}

// DeclKind names the syntactic form of an exported declaration.
type DeclKind string

// Declaration kinds.
const (
	DeclConst     DeclKind = "const"
	DeclLet       DeclKind = "let"
	DeclVar       DeclKind = "var"
	DeclFunction  DeclKind = "function"
	DeclClass     DeclKind = "class"
	DeclEnum      DeclKind = "enum"
	DeclNamespace DeclKind = "namespace"
	DeclType      DeclKind = "type"
)

// Declaration is the declaration part of `export <declaration>`.
type Declaration struct {
	Kind DeclKind
	// Names lists the bound names in source order. For variable declarations
	// the first entry belongs to the first declarator.
	Names []string
	// FirstIsPattern marks a first declarator written as a destructuring pattern.
	FirstIsPattern bool
	TypeOnly       bool
	Text           string
}

// ExportDecl is `export <declaration>`.
type ExportDecl struct {
	Declaration *Declaration
	Text        string
	Pos         Position
}

// ExportDefaultDecl is `export default function/class`. An empty Name marks
// the anonymous form.
type ExportDefaultDecl struct {
	Name string
	Kind DeclKind
	// Text is the declaration without the `export default` prefix.
	Text     string
	TypeOnly bool
	Pos      Position
}

// ExportDefaultExpr is `export default <expr>`.
type ExportDefaultExpr struct {
	Expr *RawExpr
	Text string
	Pos  Position
}

// ExportSpecifier is one entry of an export clause.
type ExportSpecifier struct {
	Local    string
	Exported string
	// StringName is set when either side is written as a string literal.
	StringName bool
	TypeOnly   bool
}

// ExportedName returns the name the specifier is visible under.
func (s ExportSpecifier) ExportedName() string {
	if s.Exported != "" {
		return s.Exported
	}

	return s.Local
}

// ExportNamed is `export { ... }` with an optional source.
type ExportNamed struct {
	Specifiers []ExportSpecifier
	Source     string
	HasSource  bool
	TypeOnly   bool
	Text       string
	Pos        Position
}

// ExportAll is `export * from "m"` or `export * as ns from "m"`.
type ExportAll struct {
	Source     string
	Namespace  string
	StringName bool
	TypeOnly   bool
	Text       string
	Pos        Position
}

// Unsupported is a module form with no ECMAScript module equivalent.
type Unsupported struct {
	Construct string
	Text      string
	// Declares lists the names an import-equals form binds.
	Declares []string
	Pos      Position
}

// RawStmt is any other top-level statement, kept as written.
type RawStmt struct {
	Text string
	// Declares lists the top-level names the statement binds.
	Declares []string
	Pos      Position
}

// EmptyStmt is a lone semicolon.
type EmptyStmt struct{}

// VarDecl is a synthesized single-binding variable declaration.
type VarDecl struct {
	Kind DeclKind
	Name string
	Init Expr
}

// ExprStmt is a synthesized expression statement.
type ExprStmt struct {
	X Expr
}

// Ident is an identifier reference.
type Ident struct {
	Name string
}

// Member is a static property access.
type Member struct {
	Object   Expr
	Property string
}

// Call is a call expression.
type Call struct {
	Callee Expr
	Args   []Expr
}

// StringLit is a string literal holding its decoded value.
type StringLit struct {
	Value string
}

// Prop is one property of an object literal.
type Prop struct {
	Key       string
	Value     Expr
	Shorthand bool
	Spread    bool
}

// Object is an object literal.
type Object struct {
	Props []Prop
}

// RawExpr is an expression kept as written.
type RawExpr struct {
	Text string
}

func (*ImportDecl) node()        {}
func (*ExportDecl) node()        {}
func (*ExportDefaultDecl) node() {}
func (*ExportDefaultExpr) node() {}
func (*ExportNamed) node()       {}
func (*ExportAll) node()         {}
func (*Unsupported) node()       {}
func (*RawStmt) node()           {}
func (*EmptyStmt) node()         {}
func (*VarDecl) node()           {}
func (*ExprStmt) node()          {}
func (*Ident) node()             {}
func (*Member) node()            {}
func (*Call) node()              {}
func (*StringLit) node()         {}
func (*Object) node()            {}
func (*RawExpr) node()           {}

func (*ImportDecl) stmt()        {}
func (*ExportDecl) stmt()        {}
func (*ExportDefaultDecl) stmt() {}
func (*ExportDefaultExpr) stmt() {}
func (*ExportNamed) stmt()       {}
func (*ExportAll) stmt()         {}
func (*Unsupported) stmt()       {}
func (*RawStmt) stmt()           {}
func (*EmptyStmt) stmt()         {}
func (*VarDecl) stmt()           {}
func (*ExprStmt) stmt()          {}

func (*Ident) expr()     {}
func (*Member) expr()    {}
func (*Call) expr()      {}
func (*StringLit) expr() {}
func (*Object) expr()    {}
func (*RawExpr) expr()   {}

// Chain builds a member expression from a dotted path such as "global.__modules".
func Chain(head string, rest ...string) Expr {
	var out Expr = &Ident{Name: head}

	for _, prop := range rest {
		out = &Member{Object: out, Property: prop}
	}

	return out
}

package jsast

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Print serializes a module, one top-level statement per line.
func Print(mod *Module) string {
	var sb strings.Builder

	if mod.Hashbang != "" {
		sb.WriteString(mod.Hashbang)
		sb.WriteByte('\n')
	}

	for _, stmt := range mod.Body {
		PrintStmt(&sb, stmt)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// PrintStmt writes one statement without a trailing newline.
func PrintStmt(sb *strings.Builder, stmt Stmt) {
	switch st := stmt.(type) {
	case *RawStmt:
		sb.WriteString(st.Text)
	case *Unsupported:
		sb.WriteString(st.Text)
	case *EmptyStmt:
		sb.WriteByte(';')
	case *VarDecl:
		sb.WriteString(string(st.Kind))
		sb.WriteByte(' ')
		sb.WriteString(st.Name)
		sb.WriteString(" = ")
		PrintExpr(sb, st.Init)
		sb.WriteByte(';')
	case *ExprStmt:
		PrintExpr(sb, st.X)
		sb.WriteByte(';')
	case *ImportDecl:
		printImport(sb, st)
	case *ExportDecl:
		if st.Text != "" {
			sb.WriteString(st.Text)

			return
		}

		sb.WriteString("export ")
		sb.WriteString(st.Declaration.Text)
	case *ExportDefaultDecl:
		sb.WriteString("export default ")
		sb.WriteString(st.Text)
	case *ExportDefaultExpr:
		if st.Text != "" {
			sb.WriteString(st.Text)

			return
		}

		sb.WriteString("export default ")
		PrintExpr(sb, st.Expr)
		sb.WriteByte(';')
	case *ExportNamed:
		printExportNamed(sb, st)
	case *ExportAll:
		printExportAll(sb, st)
	}
}

func printImport(sb *strings.Builder, st *ImportDecl) {
	if st.Text != "" {
		sb.WriteString(st.Text)

		return
	}

	sb.WriteString("import ")

	if st.TypeOnly {
		sb.WriteString("type ")
	}

	var named []string

	wroteClause := false

	for _, spec := range st.Specifiers {
		switch spec.Kind {
		case SpecDefault:
			sb.WriteString(spec.Local)

			wroteClause = true
		case SpecNamespace:
			if wroteClause {
				sb.WriteString(", ")
			}

			sb.WriteString("* as ")
			sb.WriteString(spec.Local)

			wroteClause = true
		case SpecNamed:
			named = append(named, aliasPair(spec.Imported, spec.Local))
		}
	}

	if len(named) > 0 {
		if wroteClause {
			sb.WriteString(", ")
		}

		sb.WriteString("{ ")
		sb.WriteString(strings.Join(named, ", "))
		sb.WriteString(" }")

		wroteClause = true
	}

	if wroteClause {
		sb.WriteString(" from ")
	}

	sb.WriteString(Quote(st.Source))
	sb.WriteByte(';')
}

func printExportNamed(sb *strings.Builder, st *ExportNamed) {
	if st.Text != "" {
		sb.WriteString(st.Text)

		return
	}

	parts := make([]string, 0, len(st.Specifiers))

	for _, spec := range st.Specifiers {
		parts = append(parts, aliasPair(spec.Local, spec.ExportedName()))
	}

	sb.WriteString("export ")

	if st.TypeOnly {
		sb.WriteString("type ")
	}

	if len(parts) == 0 {
		sb.WriteString("{}")
	} else {
		sb.WriteString("{ ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(" }")
	}

	if st.HasSource {
		sb.WriteString(" from ")
		sb.WriteString(Quote(st.Source))
	}

	sb.WriteByte(';')
}

func printExportAll(sb *strings.Builder, st *ExportAll) {
	if st.Text != "" {
		sb.WriteString(st.Text)

		return
	}

	sb.WriteString("export * ")

	if st.Namespace != "" {
		sb.WriteString("as ")
		sb.WriteString(st.Namespace)
		sb.WriteByte(' ')
	}

	sb.WriteString("from ")
	sb.WriteString(Quote(st.Source))
	sb.WriteByte(';')
}

func aliasPair(from, to string) string {
	if from == "" || from == to {
		return to
	}

	return from + " as " + to
}

// PrintExpr writes one expression.
func PrintExpr(sb *strings.Builder, expr Expr) {
	switch ex := expr.(type) {
	case *Ident:
		sb.WriteString(ex.Name)
	case *RawExpr:
		sb.WriteString(ex.Text)
	case *StringLit:
		sb.WriteString(Quote(ex.Value))
	case *Member:
		PrintExpr(sb, ex.Object)

		if IsIdentifierName(ex.Property) {
			sb.WriteByte('.')
			sb.WriteString(ex.Property)
		} else {
			sb.WriteByte('[')
			sb.WriteString(Quote(ex.Property))
			sb.WriteByte(']')
		}
	case *Call:
		PrintExpr(sb, ex.Callee)
		sb.WriteByte('(')

		for i, arg := range ex.Args {
			if i > 0 {
				sb.WriteString(", ")
			}

			PrintExpr(sb, arg)
		}

		sb.WriteByte(')')
	case *Object:
		printObject(sb, ex)
	}
}

func printObject(sb *strings.Builder, obj *Object) {
	if len(obj.Props) == 0 {
		sb.WriteString("{}")

		return
	}

	sb.WriteString("{ ")

	for i, prop := range obj.Props {
		if i > 0 {
			sb.WriteString(", ")
		}

		switch {
		case prop.Spread:
			sb.WriteString("...")
			PrintExpr(sb, prop.Value)
		case prop.Shorthand:
			sb.WriteString(prop.Key)
		default:
			if IsIdentifierName(prop.Key) {
				sb.WriteString(prop.Key)
			} else {
				sb.WriteString(Quote(prop.Key))
			}

			sb.WriteString(": ")
			PrintExpr(sb, prop.Value)
		}
	}

	sb.WriteString(" }")
}

// Quote renders s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	var sb strings.Builder

	sb.Grow(len(s) + 2) //nolint:mnd // two quote characters

	sb.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028', '\u2029', utf8.RuneError:
			sb.WriteString(`\u`)
			sb.WriteString(hex4(r))
		default:
			if r < ' ' || r == 0x7f {
				sb.WriteString(`\u`)
				sb.WriteString(hex4(r))

				continue
			}

			sb.WriteRune(r)
		}
	}

	sb.WriteByte('"')

	return sb.String()
}

func hex4(r rune) string {
	h := strconv.FormatInt(int64(r), 16)

	return strings.Repeat("0", 4-len(h)) + h
}

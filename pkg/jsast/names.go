package jsast

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrBadString is returned by Unquote for malformed string literals.
var ErrBadString = errors.New("malformed string literal")

// reservedWords cannot be used as binding identifiers in module code.
var reservedWords = map[string]struct{}{
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {},
	"enum": {}, "export": {}, "extends": {}, "false": {}, "finally": {}, "for": {},
	"function": {}, "if": {}, "implements": {}, "import": {}, "in": {},
	"instanceof": {}, "interface": {}, "let": {}, "new": {}, "null": {}, "package": {},
	"private": {}, "protected": {}, "public": {}, "return": {}, "static": {},
	"super": {}, "switch": {}, "this": {}, "throw": {}, "true": {}, "try": {},
	"typeof": {}, "var": {}, "void": {}, "while": {}, "with": {}, "yield": {},
	"arguments": {}, "eval": {},
}

// IsReserved reports whether name cannot be bound in strict module code.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]

	return ok
}

// IsIdentifierName reports whether s can follow a dot in a member expression.
func IsIdentifierName(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '$' || r == '_':
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)):
		default:
			return false
		}
	}

	return true
}

// IsBindingIdentifier reports whether s can name a local binding.
func IsBindingIdentifier(s string) bool {
	return IsIdentifierName(s) && !IsReserved(s)
}

// Unquote decodes a single- or double-quoted JavaScript string literal.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 { //nolint:mnd // opening and closing quote
		return "", ErrBadString
	}

	quote := lit[0]
	if (quote != '"' && quote != '\'') || lit[len(lit)-1] != quote {
		return "", ErrBadString
	}

	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var sb strings.Builder

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			i++

			continue
		}

		if i+1 >= len(body) {
			return "", ErrBadString
		}

		n, err := unescape(&sb, body[i+1:])
		if err != nil {
			return "", err
		}

		i += 1 + n
	}

	return sb.String(), nil
}

// unescape decodes the escape sequence at the start of s (after the
// backslash) and returns how many bytes it consumed.
func unescape(sb *strings.Builder, s string) (int, error) {
	switch s[0] {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\r':
		if len(s) > 1 && s[1] == '\n' {
			return 2, nil //nolint:mnd // CRLF line continuation
		}
	case '\n':
	case 'x':
		return writeHex(sb, s, 1, 3) //nolint:mnd // \xHH
	case 'u':
		if len(s) > 1 && s[1] == '{' {
			end := strings.IndexByte(s, '}')
			if end < 0 {
				return 0, ErrBadString
			}

			return writeHex(sb, s, 2, end) //nolint:mnd // \u{...}
		}

		return writeHex(sb, s, 1, 5) //nolint:mnd // \uHHHH
	default:
		r, size := utf8.DecodeRuneInString(s)
		if r == '\u2028' || r == '\u2029' {
			return size, nil
		}

		sb.WriteRune(r)

		return size, nil
	}

	return 1, nil
}

func writeHex(sb *strings.Builder, s string, from, to int) (int, error) {
	if to > len(s) || from >= to {
		return 0, ErrBadString
	}

	v, err := strconv.ParseUint(s[from:to], 16, 32)
	if err != nil {
		return 0, ErrBadString
	}

	sb.WriteRune(rune(v))

	if from == 2 { //nolint:mnd // braced form also consumes the closing brace
		return to + 1, nil
	}

	return to, nil
}

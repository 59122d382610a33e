// Package jsparse turns JavaScript and TypeScript source into the structured
// module form used by the lowering passes.
package jsparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Sentinel errors for parsing.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownLanguage = errors.New("unknown language")
	errNoRootNode      = errors.New("jsparse: no root node")
	errPoolType        = errors.New("jsparse: pool returned unexpected type")
)

// SyntaxError reports the first location tree-sitter could not parse.
type SyntaxError struct {
	Filename string
	Pos      jsast.Position
	Msg      string
}

func (e *SyntaxError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<input>"
	}

	return fmt.Sprintf("%s:%d:%d: %s", name, e.Pos.Line, e.Pos.Column, e.Msg)
}

// Unwrap makes SyntaxError match ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Parser parses module source. It is safe for concurrent use; each grammar
// keeps its own pool of tree-sitter parsers.
type Parser struct {
	pools map[string]*sync.Pool
}

// New creates a Parser for every supported grammar.
func New() *Parser {
	parser := &Parser{pools: make(map[string]*sync.Pool, len(languageFuncs))}

	for name, fn := range languageFuncs {
		lang := sitter.NewLanguage(fn())

		parser.pools[name] = &sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		}
	}

	return parser
}

// Parse parses content with the given grammar. An empty language selects one
// from the filename and content.
func (parser *Parser) Parse(ctx context.Context, filename string, content []byte, language string) (*jsast.Module, error) {
	if language == "" {
		language = DetectLanguage(filename, content)
	}

	pool, ok := parser.pools[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, language)
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("jsparse: failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	conv := newConverter(filename, content)

	mod, err := conv.module(root)
	if err != nil {
		return nil, err
	}

	mod.Language = language

	return mod, nil
}

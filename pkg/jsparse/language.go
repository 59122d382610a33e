package jsparse

import (
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	"github.com/src-d/enry/v2"
)

// Supported grammar names.
const (
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
)

// languageFuncs maps grammar names to their tree-sitter GetLanguage functions.
var languageFuncs = map[string]func() unsafe.Pointer{
	LangJavaScript: javascript.GetLanguage,
	LangTypeScript: typescript.GetLanguage,
	LangTSX:        tsx.GetLanguage,
}

// extensionLanguages maps module file extensions to grammar names.
var extensionLanguages = map[string]string{
	".js":  LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".jsx": LangJavaScript,
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
}

// enryLanguages maps linguist language names to grammar names.
var enryLanguages = map[string]string{
	"JavaScript": LangJavaScript,
	"JSX":        LangJavaScript,
	"TypeScript": LangTypeScript,
	"TSX":        LangTSX,
}

// Languages returns the supported grammar names.
func Languages() []string {
	return []string{LangJavaScript, LangTypeScript, LangTSX}
}

// IsSupported reports whether name is a supported grammar.
func IsSupported(name string) bool {
	_, ok := languageFuncs[name]

	return ok
}

// IsModuleFile reports whether path has a module source extension.
// Declaration files are excluded since they carry no runtime code.
func IsModuleFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".d.ts") || strings.HasSuffix(base, ".d.mts") || strings.HasSuffix(base, ".d.cts") {
		return false
	}

	_, ok := extensionLanguages[filepath.Ext(base)]

	return ok
}

// DetectLanguage picks a grammar for a file: by extension first, then by
// content classification, falling back to JavaScript.
func DetectLanguage(filename string, content []byte) string {
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
		return lang
	}

	if filename != "" {
		if lang, ok := enryLanguages[enry.GetLanguage(filepath.Base(filename), content)]; ok {
			return lang
		}
	}

	return LangJavaScript
}

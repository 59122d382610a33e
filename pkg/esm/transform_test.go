package esm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

const testModuleName = "test.js"

func runtimeOpts() esm.Options {
	return esm.Options{ModuleName: testModuleName, RuntimeModule: true}
}

func staticOpts() esm.Options {
	return esm.Options{ModuleName: testModuleName}
}

func module(idents []string, body ...jsast.Stmt) *jsast.Module {
	return &jsast.Module{Body: body, Identifiers: idents}
}

func defaultImport(local, source string) *jsast.ImportDecl {
	return &jsast.ImportDecl{
		Specifiers: []jsast.ImportSpecifier{{Kind: jsast.SpecDefault, Local: local}},
		Source:     source,
		Text:       "import " + local + " from '" + source + "';",
	}
}

func namedImport(source string, pairs ...string) *jsast.ImportDecl {
	decl := &jsast.ImportDecl{Source: source, Text: "import {...} from '" + source + "';"}

	for i := 0; i+1 < len(pairs); i += 2 {
		decl.Specifiers = append(decl.Specifiers, jsast.ImportSpecifier{Kind: jsast.SpecNamed, Imported: pairs[i], Local: pairs[i+1]})
	}

	return decl
}

func exportConst(name, text string) *jsast.ExportDecl {
	return &jsast.ExportDecl{
		Declaration: &jsast.Declaration{Kind: jsast.DeclConst, Names: []string{name}, Text: text},
		Text:        "export " + text,
	}
}

func raw(text string, declares ...string) *jsast.RawStmt {
	return &jsast.RawStmt{Text: text, Declares: declares}
}

func lower(t *testing.T, mod *jsast.Module, opts esm.Options) string {
	t.Helper()

	res, err := esm.Transform(mod, opts)
	require.NoError(t, err)

	return jsast.Print(res.Module)
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestTransform_DefaultImport(t *testing.T) {
	t.Parallel()

	got := lower(t, module([]string{"React"}, defaultImport("React", "react")), runtimeOpts())

	assert.Equal(t, lines(
		`const __react = global.__modules.import("react");`,
		`const React = __react.default;`,
		`global.__modules.reset("test.js");`,
	), got)
}

func TestTransform_ExportConst(t *testing.T) {
	t.Parallel()

	got := lower(t, module([]string{"named", "f"}, exportConst("named", "const named = f();")), runtimeOpts())

	assert.Equal(t, lines(
		`const named = f();`,
		`global.__modules.init("test.js");`,
		`global.__modules.export("test.js", { named });`,
	), got)
}

func TestTransform_ExportAll(t *testing.T) {
	t.Parallel()

	got := lower(t, module(nil, &jsast.ExportAll{Source: "module", Text: "export * from 'module';"}), runtimeOpts())

	assert.Equal(t, lines(
		`const __re_export_all = global.__modules.importAll("module");`,
		`global.__modules.init("test.js");`,
		`global.__modules.exportAll("test.js", { ...__re_export_all });`,
	), got)
}

func TestTransform_RemappedImport(t *testing.T) {
	t.Parallel()

	opts := runtimeOpts()
	opts.ImportPaths = map[string]string{"react": "node_modules/react/cjs/react.development.js"}

	got := lower(t, module([]string{"React"}, defaultImport("React", "react")), opts)

	assert.Equal(t, lines(
		`const __react = global.__modules.import("node_modules/react/cjs/react.development.js");`,
		`const React = __react.default;`,
		`global.__modules.reset("test.js");`,
	), got)
}

func TestTransform_NamedReExport(t *testing.T) {
	t.Parallel()

	reExport := &jsast.ExportNamed{
		Specifiers: []jsast.ExportSpecifier{{Local: "a"}, {Local: "b", Exported: "c"}},
		Source:     "module",
		HasSource:  true,
		Text:       "export { a, b as c } from 'module';",
	}

	got := lower(t, module(nil, reExport), runtimeOpts())

	assert.Equal(t, lines(
		`const __module = global.__modules.import("module");`,
		`const a = __module.a;`,
		`const c = __module.b;`,
		`global.__modules.init("test.js");`,
		`global.__modules.export("test.js", { a, c });`,
	), got)
}

func TestTransform_HandleSharing(t *testing.T) {
	t.Parallel()

	mod := module([]string{"React", "useState", "lodash", "map"},
		defaultImport("React", "react"),
		namedImport("lodash", "map", "map"),
		namedImport("react", "useState", "useState"),
	)

	res, err := esm.Transform(mod, runtimeOpts())
	require.NoError(t, err)

	out := jsast.Print(res.Module)

	assert.Equal(t, 1, strings.Count(out, `import("react")`))
	assert.Equal(t, 1, strings.Count(out, `import("lodash")`))
	require.Len(t, res.Handles, 2)
	assert.Equal(t, "react", res.Handles[0].Source)
	assert.Equal(t, "lodash", res.Handles[1].Source)
	assert.NotEqual(t, res.Handles[0].Name, res.Handles[1].Name)
	assert.Contains(t, out, "const useState = __react.useState;")
}

func TestTransform_RemapOnlyAffectsRegistryCalls(t *testing.T) {
	t.Parallel()

	remap := map[string]string{"react": "/vendor/react.js"}

	runtime := runtimeOpts()
	runtime.ImportPaths = remap

	static := staticOpts()
	static.ImportPaths = remap

	mod := func() *jsast.Module {
		return module([]string{"React", "ns"},
			defaultImport("React", "react"),
			&jsast.ImportDecl{
				Specifiers: []jsast.ImportSpecifier{{Kind: jsast.SpecNamespace, Local: "ns"}},
				Source:     "react",
				Text:       "import * as ns from 'react';",
			},
		)
	}

	runtimeOut := lower(t, mod(), runtime)
	assert.Contains(t, runtimeOut, `global.__modules.import("/vendor/react.js")`)
	assert.Contains(t, runtimeOut, `const ns = global.__modules.importAll("/vendor/react.js");`)

	staticOut := lower(t, mod(), static)
	assert.NotContains(t, staticOut, "/vendor/react.js")
	assert.Contains(t, staticOut, "import React from 'react';")
}

func TestTransform_ExportFreeModuleResets(t *testing.T) {
	t.Parallel()

	got := lower(t, module([]string{"x", "console"},
		raw("const x = 1;", "x"),
		raw("console.log(x);"),
	), runtimeOpts())

	assert.Equal(t, lines(
		`const x = 1;`,
		`console.log(x);`,
		`global.__modules.reset("test.js");`,
	), got)
	assert.NotContains(t, got, ".init(")
	assert.NotContains(t, got, ".export(")
}

func TestTransform_AnonymousDefaultHygiene(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stmt jsast.Stmt
		init string
	}{
		{
			name: "function",
			stmt: &jsast.ExportDefaultDecl{Kind: jsast.DeclFunction, Text: "function () { return 1; }"},
			init: "function () { return 1; }",
		},
		{
			name: "class",
			stmt: &jsast.ExportDefaultDecl{Kind: jsast.DeclClass, Text: "class {}"},
			init: "class {}",
		},
		{
			name: "expression",
			stmt: &jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: "1 + 2"}, Text: "export default 1 + 2;"},
			init: "1 + 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// A user binding already named like the synthesized identifier.
			mod := module([]string{"__export_default"}, raw("const __export_default = 0;", "__export_default"), tt.stmt)

			got := lower(t, mod, runtimeOpts())

			assert.Equal(t, lines(
				`const __export_default = 0;`,
				`const __export_default1 = `+tt.init+`;`,
				`global.__modules.init("test.js");`,
				`global.__modules.export("test.js", { default: __export_default1 });`,
			), got)
		})
	}
}

func TestTransform_NamedDefaultDeclaration(t *testing.T) {
	t.Parallel()

	stmt := &jsast.ExportDefaultDecl{Name: "f", Kind: jsast.DeclFunction, Text: "function f() {}"}

	assert.Equal(t, lines(
		`function f() {}`,
		`global.__modules.init("test.js");`,
		`global.__modules.export("test.js", { default: f });`,
	), lower(t, module([]string{"f"}, stmt), runtimeOpts()))

	stmt = &jsast.ExportDefaultDecl{Name: "f", Kind: jsast.DeclFunction, Text: "function f() {}"}

	assert.Equal(t, lines(
		`function f() {}`,
		`export default f;`,
	), lower(t, module([]string{"f"}, stmt), staticOpts()))
}

func TestTransform_MixedModule(t *testing.T) {
	t.Parallel()

	mod := module([]string{"React", "useState", "a", "b", "helper"},
		defaultImport("React", "react"),
		namedImport("react", "useState", "useState"),
		exportConst("a", "const a = 1;"),
		raw("function helper() {}", "helper"),
		&jsast.ExportNamed{Specifiers: []jsast.ExportSpecifier{{Local: "helper", Exported: "b"}}, Text: "export { helper as b };"},
		&jsast.ExportNamed{
			Specifiers: []jsast.ExportSpecifier{{Local: "default", Exported: "Button"}},
			Source:     "@app/components",
			HasSource:  true,
			Text:       "export { default as Button } from '@app/components';",
		},
		&jsast.ExportAll{Source: "./utils", Namespace: "utils", Text: "export * as utils from './utils';"},
		&jsast.ExportAll{Source: "./more", Text: "export * from './more';"},
		&jsast.EmptyStmt{},
	)

	got := lower(t, mod, runtimeOpts())

	assert.Equal(t, lines(
		`const __react = global.__modules.import("react");`,
		`const ___app_components = global.__modules.import("@app/components");`,
		`const React = __react.default;`,
		`const useState = __react.useState;`,
		`const __default = ___app_components.default;`,
		`const __re_export = global.__modules.importAll("./utils");`,
		`const __re_export_all = global.__modules.importAll("./more");`,
		`const a = 1;`,
		`function helper() {}`,
		`global.__modules.init("test.js");`,
		`global.__modules.export("test.js", { a, b: helper, Button: __default, utils: __re_export });`,
		`global.__modules.exportAll("test.js", { ...__re_export_all });`,
	), got)
}

func TestTransform_StaticModeKeepsDeclarations(t *testing.T) {
	t.Parallel()

	mod := module([]string{"React", "a", "f"},
		defaultImport("React", "react"),
		exportConst("a", "const a = f();"),
		&jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: "a"}, Text: "export default a;"},
		&jsast.ExportAll{Source: "m", Text: "export * from 'm';"},
	)

	got := lower(t, mod, staticOpts())

	assert.Equal(t, lines(
		`import * as __re_export_all from "m";`,
		`import React from 'react';`,
		`export const a = f();`,
		`const __export_default = a;`,
		`export default __export_default;`,
		`export * from "m";`,
	), got)
	assert.NotContains(t, got, "__modules")
}

func TestTransform_StaticModeCanonicalizesReExports(t *testing.T) {
	t.Parallel()

	static := staticOpts()
	static.ImportPaths = map[string]string{"module": "/vendor/module.js"}

	mod := module([]string{"local"},
		raw("const local = 1;", "local"),
		&jsast.ExportNamed{
			Specifiers: []jsast.ExportSpecifier{{Local: "a"}, {Local: "b", Exported: "c"}, {Local: "default", Exported: "d"}},
			Source:     "module",
			HasSource:  true,
			Text:       "export { a, b as c, default as d } from 'module';",
		},
		&jsast.ExportAll{Source: "./utils", Namespace: "utils", Text: "export * as utils from './utils';"},
	)

	res, err := esm.Transform(mod, static)
	require.NoError(t, err)

	for _, imp := range res.Imports {
		assert.False(t, imp.Retained, imp.Local)
	}

	assert.Equal(t, lines(
		`import { a } from "module";`,
		`import { b as c } from "module";`,
		`import { default as __default } from "module";`,
		`import * as __re_export from "./utils";`,
		`const local = 1;`,
		`export { a, c, __default as d, __re_export as utils };`,
	), jsast.Print(res.Module))
}

func TestTransform_SideEffectImportKeepsOrder(t *testing.T) {
	t.Parallel()

	mod := module([]string{"x"},
		&jsast.ImportDecl{Source: "./polyfill", Text: "import './polyfill';"},
		defaultImport("x", "x"),
	)

	got := lower(t, mod, runtimeOpts())

	assert.Equal(t, lines(
		`const ____polyfill = global.__modules.import("./polyfill");`,
		`const __x = global.__modules.import("x");`,
		`const x = __x.default;`,
		`global.__modules.reset("test.js");`,
	), got)
}

func TestTransform_CustomRegistry(t *testing.T) {
	t.Parallel()

	opts := runtimeOpts()
	opts.Registry = "globalThis.__registry"

	got := lower(t, module(nil, raw("run();")), opts)

	assert.Equal(t, lines(`run();`, `globalThis.__registry.reset("test.js");`), got)
}

func TestTransform_TypeOnlyPassThrough(t *testing.T) {
	t.Parallel()

	typeImport := &jsast.ImportDecl{
		Specifiers: []jsast.ImportSpecifier{{Kind: jsast.SpecNamed, Imported: "T", Local: "T"}},
		Source:     "./types",
		TypeOnly:   true,
		Text:       "import type { T } from './types';",
	}
	iface := &jsast.ExportDecl{
		Declaration: &jsast.Declaration{Kind: jsast.DeclType, Names: []string{"Props"}, TypeOnly: true, Text: "interface Props {}"},
		Text:        "export interface Props {}",
	}
	mixed := &jsast.ImportDecl{
		Specifiers: []jsast.ImportSpecifier{
			{Kind: jsast.SpecNamed, Imported: "U", Local: "U", TypeOnly: true},
			{Kind: jsast.SpecNamed, Imported: "v", Local: "v"},
		},
		Source: "./v",
		Text:   "import { type U, v } from './v';",
	}

	res, err := esm.Transform(module([]string{"T", "Props", "U", "v"}, typeImport, iface, mixed), runtimeOpts())
	require.NoError(t, err)

	assert.Equal(t, lines(
		`const ____v = global.__modules.import("./v");`,
		`const v = ____v.v;`,
		`import type { T } from './types';`,
		`export interface Props {}`,
		`import type { U } from "./v";`,
		`global.__modules.reset("test.js");`,
	), jsast.Print(res.Module))
	assert.Len(t, res.Imports, 1)
	assert.Empty(t, res.Exports)
}

func TestTransform_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *jsast.Module {
		return module([]string{"a", "b"},
			namedImport("x", "a", "a"),
			namedImport("y", "b", "b"),
			&jsast.ExportAll{Source: "z", Text: "export * from 'z';"},
			&jsast.ExportDefaultExpr{Expr: &jsast.RawExpr{Text: "a + b"}, Text: "export default a + b;"},
		)
	}

	first := lower(t, build(), runtimeOpts())

	for range 5 {
		assert.Equal(t, first, lower(t, build(), runtimeOpts()))
	}
}

func TestTransform_HashbangStaysFirst(t *testing.T) {
	t.Parallel()

	mod := module([]string{"x"}, defaultImport("x", "x"))
	mod.Hashbang = "#!/usr/bin/env node"

	got := lower(t, mod, runtimeOpts())

	assert.True(t, strings.HasPrefix(got, "#!/usr/bin/env node\nconst __x ="))
}

func TestTransform_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mod    *jsast.Module
		opts   esm.Options
		target error
	}{
		{
			name:   "missing module name",
			mod:    module(nil),
			opts:   esm.Options{RuntimeModule: true},
			target: esm.ErrConfiguration,
		},
		{
			name:   "bad registry",
			mod:    module(nil),
			opts:   esm.Options{ModuleName: "m", RuntimeModule: true, Registry: "global['x']"},
			target: esm.ErrConfiguration,
		},
		{
			name:   "empty remap target",
			mod:    module(nil),
			opts:   esm.Options{ModuleName: "m", RuntimeModule: true, ImportPaths: map[string]string{"react": ""}},
			target: esm.ErrConfiguration,
		},
		{
			name: "string re-export name",
			mod: module(nil, &jsast.ExportNamed{
				Specifiers: []jsast.ExportSpecifier{{Local: "a-b", Exported: "ab", StringName: true}},
				Source:     "m",
				HasSource:  true,
			}),
			opts:   runtimeOpts(),
			target: esm.ErrUnsupportedSyntax,
		},
		{
			name: "destructuring export",
			mod: module([]string{"a"}, &jsast.ExportDecl{
				Declaration: &jsast.Declaration{Kind: jsast.DeclConst, Names: []string{"a"}, FirstIsPattern: true, Text: "const { a } = o;"},
			}),
			opts:   runtimeOpts(),
			target: esm.ErrUnsupportedSyntax,
		},
		{
			name:   "export assignment",
			mod:    module([]string{"x"}, &jsast.Unsupported{Construct: "export assignment", Text: "export = x;"}),
			opts:   runtimeOpts(),
			target: esm.ErrUnsupportedSyntax,
		},
		{
			name:   "undeclared export",
			mod:    module([]string{"ghost"}, &jsast.ExportNamed{Specifiers: []jsast.ExportSpecifier{{Local: "ghost"}}}),
			opts:   runtimeOpts(),
			target: esm.ErrInvariant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := esm.Transform(tt.mod, tt.opts)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestTransform_StaticModeAllowsUnsupportedForms(t *testing.T) {
	t.Parallel()

	mod := module([]string{"x"}, raw("const x = 1;", "x"), &jsast.Unsupported{Construct: "export assignment", Text: "export = x;"})

	assert.Equal(t, lines(`const x = 1;`, `export = x;`), lower(t, mod, staticOpts()))
}

func TestTransform_MultipleDeclaratorsWarn(t *testing.T) {
	t.Parallel()

	stmt := &jsast.ExportDecl{
		Declaration: &jsast.Declaration{Kind: jsast.DeclLet, Names: []string{"a", "b"}, Text: "let a = 1, b = 2;"},
	}

	res, err := esm.Transform(module([]string{"a", "b"}, stmt), runtimeOpts())
	require.NoError(t, err)

	require.Len(t, res.Exports, 1)
	assert.Equal(t, "a", res.Exports[0].Local)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Msg, `"a"`)
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"go/ast"
	"strings"

	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/env"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// printFragment runs frag through the full scan→parse→type-check→
// pretty-print pipeline (spec.md §4.4) against scope, returning
// rendered backend source text. An empty Identity means "no such
// fragment configured" and prints as "" with no error. Diagnostics are
// surfaced as a single error carrying every accumulated problem
// (spec.md §4.4: "any error aborts emission of that fragment; all
// diagnostics for the fragment are surfaced together").
func printFragment(tc *sltype.TypeContext, scope dsl.Scope, frag model.CodeFragment) (string, error) {
	if frag.Identity == "" {
		return "", nil
	}
	a, err := dsl.Parse(frag.Tokens)
	if err != nil {
		return "", fmt.Errorf("%s: %w", frag.Identity, err)
	}
	eh := &dsl.ErrorHandler{}
	dsl.NewTypeChecker(tc).Check(a, scope, eh)
	if eh.HasErrors() {
		return "", fmt.Errorf("%s: %s", frag.Identity, eh.Error())
	}
	return dsl.NewPrinter(tc, scope).Print(a)
}

// printExprFragment runs an expression-only fragment (a threshold
// condition or event-threshold guard, which have no statement form)
// through the same type-check/print pipeline as printFragment, wrapping
// the parsed expression in a synthetic statement so dsl.TypeChecker's
// statement-shaped Check can walk it.
func printExprFragment(tc *sltype.TypeContext, scope dsl.Scope, frag model.CodeFragment) (string, error) {
	if frag.Identity == "" {
		return "", nil
	}
	expr, fset, err := dsl.ParseExpr(frag.Tokens)
	if err != nil {
		return "", fmt.Errorf("%s: %w", frag.Identity, err)
	}
	a := &dsl.AST{Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ExprStmt{X: expr}}}, FSet: fset, Name: frag.Identity}
	eh := &dsl.ErrorHandler{}
	dsl.NewTypeChecker(tc).Check(a, scope, eh)
	if eh.HasErrors() {
		return "", fmt.Errorf("%s: %s", frag.Identity, eh.Error())
	}
	return dsl.NewPrinter(tc, scope).PrintExpr(expr)
}

// declLines renders a slice of env.Declaration as backend source
// lines, one per declaration, in order.
func declLines(decls []env.Declaration) string {
	var b strings.Builder
	for _, d := range decls {
		b.WriteString(d.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// emitted collects one code fragment's rendered text plus the local
// declarations its evaluation triggered, so callers can interleave
// "declare, then use" in source order.
type emitted struct {
	Decls []env.Declaration
	Text  string
}

// emitWithLocals prints frag against the given LocalVarCache-backed
// scope, draining whatever declarations that printing newly triggered
// (spec.md §4.5: "first reference to a cached local emits its
// declaration inline, immediately before the statement that uses it").
func emitWithLocals(tc *sltype.TypeContext, locals *env.LocalVarCache, frag model.CodeFragment) (emitted, error) {
	text, err := printFragment(tc, locals, frag)
	if err != nil {
		return emitted{}, err
	}
	return emitted{Decls: locals.PendingDeclarations(), Text: text}, nil
}

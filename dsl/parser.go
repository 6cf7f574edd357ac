// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsl

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
)

// AST is the parsed form of a code fragment: a statement-list tree
// wrapped in a synthetic function body, per spec.md §4.4's "parse
// (expression and statement trees; no implicit semicolons)". Re-using
// go/parser (as the teacher re-uses the Go toolchain end to end rather
// than hand-rolling a parser) gives a battle-tested expression/
// statement grammar; only the surrounding wrap/unwrap and everything
// after parsing — type-checking and printing — is this package's own.
type AST struct {
	Body  *ast.BlockStmt
	FSet  *token.FileSet
	Name  string
}

// wrapName is the synthetic function identifier fragments are parsed
// inside of; never visible in output.
const wrapName = "_fragment_"

// Parse builds an AST from a TokenStream's original fragment text. It
// re-scans via go/parser rather than reconstructing source from
// TokenStream (go/parser needs byte offsets it owns), but TokenStream
// remains the canonical record everything else queries.
func Parse(ts TokenStream) (*AST, error) {
	src := desigil(ts.Fragment)
	wrapped := "package p\nfunc " + wrapName + "() {\n" + src + "\n}\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, ts.Name, wrapped, parser.AllErrors)
	if err != nil {
		return nil, &SyntaxError{Fragment: ts.Name, Message: err.Error()}
	}
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if ok && fd.Name.Name == wrapName {
			return &AST{Body: fd.Body, FSet: fset, Name: ts.Name}, nil
		}
	}
	return nil, &SyntaxError{Fragment: ts.Name, Message: "internal: wrapped function body not found"}
}

// ParseExpr parses a single expression fragment (e.g. a threshold
// condition or an event-code guard), returning its AST node.
func ParseExpr(ts TokenStream) (ast.Expr, *token.FileSet, error) {
	src := desigil(ts.Fragment)
	fset := token.NewFileSet()
	expr, err := parser.ParseExprFrom(fset, ts.Name, src, 0)
	if err != nil {
		return nil, nil, &SyntaxError{Fragment: ts.Name, Message: err.Error()}
	}
	return expr, fset, nil
}

// Pos formats a fset position relative to the synthetic wrapper (line
// 1 is "package p", line 2 is the func signature, so fragment line 1
// is file line 3); callers report Line-2 to the user so diagnostics
// point at the fragment's own line numbering.
func Pos(fset *token.FileSet, pos token.Pos) (line, col int) {
	p := fset.Position(pos)
	line = p.Line - 2
	if line < 1 {
		line = 1
	}
	return line, p.Column
}

func fragmentPos(fset *token.FileSet, pos token.Pos, name string) string {
	line, col := Pos(fset, pos)
	return fmt.Sprintf("%s:%d:%d", name, line, col)
}

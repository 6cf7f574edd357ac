// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsl

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/goki/snngen/sltype"
)

// Printer renders a type-checked AST as backend source text,
// substituting each identifier's Scope expansion and inlining function
// substitution templates (spec.md §4.4's pretty-print stage). Unlike
// the teacher's slprint (a fork of go/printer, which formats Go syntax
// verbatim), this printer must rewrite identifier text per occurrence,
// so it walks the AST itself rather than delegating to go/printer.
type Printer struct {
	TC    *sltype.TypeContext
	Scope Scope
}

func NewPrinter(tc *sltype.TypeContext, scope Scope) *Printer {
	return &Printer{TC: tc, Scope: scope}
}

// Print renders a's body as a sequence of backend statements, one
// source line per Go statement, semicolon-terminated.
func (p *Printer) Print(a *AST) (string, error) {
	var b strings.Builder
	for _, stmt := range a.Body.List {
		if err := p.printStmt(&b, stmt, 0); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// PrintExpr renders a single expression (e.g. a threshold condition).
func (p *Printer) PrintExpr(e ast.Expr) (string, error) {
	var b strings.Builder
	if err := p.expr(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func (p *Printer) printStmt(b *strings.Builder, s ast.Stmt, depth int) error {
	indent(b, depth)
	switch st := s.(type) {
	case *ast.ExprStmt:
		if err := p.expr(b, st.X); err != nil {
			return err
		}
		b.WriteString(";\n")
	case *ast.AssignStmt:
		for i, lhs := range st.Lhs {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := p.expr(b, lhs); err != nil {
				return err
			}
		}
		b.WriteString(" " + st.Tok.String() + " ")
		for i, rhs := range st.Rhs {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := p.expr(b, rhs); err != nil {
				return err
			}
		}
		b.WriteString(";\n")
	case *ast.IncDecStmt:
		if err := p.expr(b, st.X); err != nil {
			return err
		}
		b.WriteString(st.Tok.String() + ";\n")
	case *ast.DeclStmt:
		gd := st.Decl.(*ast.GenDecl)
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			ctype := p.cType(vs.Type)
			for i, name := range vs.Names {
				b.WriteString(ctype + " " + name.Name)
				if i < len(vs.Values) {
					b.WriteString(" = ")
					if err := p.expr(b, vs.Values[i]); err != nil {
						return err
					}
				}
				b.WriteString(";\n")
				if i < len(vs.Names)-1 {
					indent(b, depth)
				}
			}
		}
	case *ast.IfStmt:
		b.WriteString("if (")
		if err := p.expr(b, st.Cond); err != nil {
			return err
		}
		b.WriteString(") {\n")
		for _, inner := range st.Body.List {
			if err := p.printStmt(b, inner, depth+1); err != nil {
				return err
			}
		}
		indent(b, depth)
		b.WriteString("}\n")
		if st.Else != nil {
			indent(b, depth)
			b.WriteString("else ")
			switch els := st.Else.(type) {
			case *ast.BlockStmt:
				b.WriteString("{\n")
				for _, inner := range els.List {
					if err := p.printStmt(b, inner, depth+1); err != nil {
						return err
					}
				}
				indent(b, depth)
				b.WriteString("}\n")
			default:
				if err := p.printStmt(b, els, depth); err != nil {
					return err
				}
			}
		}
	case *ast.ForStmt:
		b.WriteString("for (")
		if st.Init != nil {
			if err := p.forClause(b, st.Init); err != nil {
				return err
			}
		}
		b.WriteString("; ")
		if st.Cond != nil {
			if err := p.expr(b, st.Cond); err != nil {
				return err
			}
		}
		b.WriteString("; ")
		if st.Post != nil {
			if err := p.forClause(b, st.Post); err != nil {
				return err
			}
		}
		b.WriteString(") {\n")
		for _, inner := range st.Body.List {
			if err := p.printStmt(b, inner, depth+1); err != nil {
				return err
			}
		}
		indent(b, depth)
		b.WriteString("}\n")
	case *ast.BlockStmt:
		b.WriteString("{\n")
		for _, inner := range st.List {
			if err := p.printStmt(b, inner, depth+1); err != nil {
				return err
			}
		}
		indent(b, depth)
		b.WriteString("}\n")
	case *ast.ReturnStmt:
		b.WriteString("return")
		if len(st.Results) > 0 {
			b.WriteString(" ")
			if err := p.expr(b, st.Results[0]); err != nil {
				return err
			}
		}
		b.WriteString(";\n")
	default:
		return fmt.Errorf("dsl: unsupported statement kind %T", s)
	}
	return nil
}

// forClause renders the init/post clause of a for-statement without a
// trailing semicolon or newline.
func (p *Printer) forClause(b *strings.Builder, s ast.Stmt) error {
	var tmp strings.Builder
	if err := p.printStmt(&tmp, s, 0); err != nil {
		return err
	}
	b.WriteString(strings.TrimSuffix(strings.TrimSuffix(tmp.String(), "\n"), ";"))
	return nil
}

func (p *Printer) expr(b *strings.Builder, e ast.Expr) error {
	switch ex := e.(type) {
	case *ast.Ident:
		b.WriteString(p.resolveIdent(ex.Name))
	case *ast.BasicLit:
		b.WriteString(literalText(ex))
	case *ast.ParenExpr:
		b.WriteString("(")
		if err := p.expr(b, ex.X); err != nil {
			return err
		}
		b.WriteString(")")
	case *ast.BinaryExpr:
		if err := p.expr(b, ex.X); err != nil {
			return err
		}
		b.WriteString(" " + ex.Op.String() + " ")
		if err := p.expr(b, ex.Y); err != nil {
			return err
		}
	case *ast.UnaryExpr:
		b.WriteString(ex.Op.String())
		if err := p.expr(b, ex.X); err != nil {
			return err
		}
	case *ast.SelectorExpr:
		// "pkg.Ident" from a legacy-qualified reference: fold to the
		// bare selector, matching the teacher's package-prefix removal
		// (extract.go's "remove package prefixes").
		b.WriteString(p.resolveIdent(ex.Sel.Name))
	case *ast.IndexExpr:
		if err := p.expr(b, ex.X); err != nil {
			return err
		}
		b.WriteString("[")
		if err := p.expr(b, ex.Index); err != nil {
			return err
		}
		b.WriteString("]")
	case *ast.CallExpr:
		return p.call(b, ex)
	default:
		return fmt.Errorf("dsl: unsupported expression kind %T", e)
	}
	return nil
}

func (p *Printer) resolveIdent(name string) string {
	if bind, ok := p.Scope.Lookup(name); ok && bind.Expansion != "" {
		return bind.Expansion
	}
	return name
}

func (p *Printer) call(b *strings.Builder, ex *ast.CallExpr) error {
	fn, ok := ex.Fun.(*ast.Ident)
	if !ok {
		return fmt.Errorf("dsl: unsupported call target %T", ex.Fun)
	}
	args := make([]string, len(ex.Args))
	for i, a := range ex.Args {
		var tmp strings.Builder
		if err := p.expr(&tmp, a); err != nil {
			return err
		}
		args[i] = tmp.String()
	}
	if sig, ok := p.TC.Lookup(fn.Name); ok && sig.Substitute != "" {
		b.WriteString(substitutePositional(sig.Substitute, args))
		return nil
	}
	b.WriteString(fn.Name + "(" + strings.Join(args, ", ") + ")")
	return nil
}

// substitutePositional replaces "$(0)", "$(1)", … in template with the
// corresponding argument text (spec.md §4.4's function-substitution
// form).
func substitutePositional(template string, args []string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		if template[i] == '$' && i+1 < len(template) && template[i+1] == '(' {
			j := i + 2
			for j < len(template) && template[j] != ')' {
				j++
			}
			if j < len(template) {
				if n, err := strconv.Atoi(template[i+2 : j]); err == nil && n < len(args) {
					b.WriteString(args[n])
					i = j + 1
					continue
				}
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}

func literalText(lit *ast.BasicLit) string {
	switch lit.Kind {
	case token.FLOAT:
		if !strings.ContainsAny(lit.Value, "eE.") {
			return lit.Value + ".0f"
		}
		return lit.Value + "f"
	default:
		return lit.Value
	}
}

func (p *Printer) cType(expr ast.Expr) string {
	id, ok := expr.(*ast.Ident)
	if !ok {
		return "scalar"
	}
	switch id.Name {
	case "float32", "float64":
		return p.TC.Precision.String()
	case "int", "int32":
		return "int"
	case "uint32":
		return "unsigned int"
	case "bool":
		return "bool"
	default:
		return id.Name
	}
}

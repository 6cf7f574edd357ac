// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dsl implements the embedded code-fragment transpiler:
// scan, parse, type-check and pretty-print user-supplied model code
// (membrane update, weight update, threshold, decay, reset,
// connectivity build, …) into backend source text.
package dsl

import (
	"fmt"
	"go/scanner"
	"go/token"
	"strings"
)

// TokenKind classifies a scanned lexeme. It mirrors go/token.Token but
// is kept as our own type so downstream packages never import
// go/token directly (spec.md §4.4's "scanner recognises the embedded-
// DSL token classes").
type TokenKind int

const (
	TokInvalid TokenKind = iota
	TokIdent
	TokIntLit
	TokFloatLit
	TokStringLit
	TokOp
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokComma
	TokSemicolon
	TokComment
	TokEOF
)

// Token is one lexeme with its source location inside the fragment.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
}

// TokenStream is the tokenised form of a single user code fragment.
// Every IR object scans its fragments exactly once at construction
// time (spec.md §4.1); everything downstream — hashing, fusion,
// parsing, identifier-reference queries — reads only the stream, never
// the raw fragment string again (except to re-derive the stream).
type TokenStream struct {
	Fragment string // original source text, kept for parse/reparse
	Name     string // fragment identity, e.g. "Synapse group 'S' sim code"
	Tokens   []Token
}

// desigil rewrites the legacy "$(name)" alias form into a bare
// identifier before scanning, per spec.md §4.4 ("the reserved sigil
// $(name) form accepted as an alias for bare identifier").
func desigil(src string) string {
	var b strings.Builder
	i := 0
	for i < len(src) {
		if src[i] == '$' && i+1 < len(src) && src[i+1] == '(' {
			j := i + 2
			for j < len(src) && src[j] != ')' {
				j++
			}
			if j < len(src) {
				name := src[i+2 : j]
				// positional placeholders "$(0)", "$(1)", … are a
				// pretty-print-time construct (function substitution),
				// not a scan-time alias; leave them untouched here.
				if _, err := parseUint(name); err == nil {
					b.WriteString(src[i : j+1])
					i = j + 1
					continue
				}
				b.WriteString(name)
				i = j + 1
				continue
			}
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}

func parseUint(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a digit: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// Scan tokenises a code fragment, returning a structured SyntaxError
// (wrapping ErrSyntax-compatible context) on the first scan failure.
// It is the first stage of the spec.md §4.4 pipeline.
func Scan(name, fragment string) (TokenStream, error) {
	src := desigil(fragment)
	fset := token.NewFileSet()
	file := fset.AddFile(name, fset.Base(), len(src))

	var errs scanner.ErrorList
	eh := func(pos token.Position, msg string) { errs.Add(pos, msg) }

	var sc scanner.Scanner
	sc.Init(file, []byte(src), eh, scanner.ScanComments)

	ts := TokenStream{Fragment: fragment, Name: name}
	for {
		pos, tok, lit := sc.Scan()
		if tok == token.EOF {
			ts.Tokens = append(ts.Tokens, Token{Kind: TokEOF, Line: fset.Position(pos).Line, Column: fset.Position(pos).Column})
			break
		}
		k, text := classify(tok, lit)
		p := fset.Position(pos)
		ts.Tokens = append(ts.Tokens, Token{Kind: k, Text: text, Line: p.Line, Column: p.Column})
	}
	if len(errs) > 0 {
		first := errs[0]
		return ts, &SyntaxError{Fragment: name, Line: first.Pos.Line, Column: first.Pos.Column, Message: first.Msg}
	}
	return ts, nil
}

func classify(tok token.Token, lit string) (TokenKind, string) {
	switch {
	case tok == token.IDENT:
		return TokIdent, lit
	case tok == token.INT:
		return TokIntLit, lit
	case tok == token.FLOAT:
		return TokFloatLit, lit
	case tok == token.STRING:
		return TokStringLit, lit
	case tok == token.LPAREN:
		return TokLParen, "("
	case tok == token.RPAREN:
		return TokRParen, ")"
	case tok == token.LBRACE:
		return TokLBrace, "{"
	case tok == token.RBRACE:
		return TokRBrace, "}"
	case tok == token.COMMA:
		return TokComma, ","
	case tok == token.SEMICOLON:
		return TokSemicolon, lit
	case tok == token.COMMENT:
		return TokComment, lit
	case tok.IsOperator() || tok.IsKeyword():
		if lit == "" {
			lit = tok.String()
		}
		return TokOp, lit
	default:
		return TokInvalid, lit
	}
}

// Identifiers returns the set of distinct identifier lexemes in the
// stream, in first-seen order. Used by finalise's delay-queue scan
// (spec.md §4.1) and by hashing's code-shape digest.
func (ts TokenStream) Identifiers() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range ts.Tokens {
		if t.Kind == TokIdent && !seen[t.Text] {
			seen[t.Text] = true
			out = append(out, t.Text)
		}
	}
	return out
}

// HasIdentifier reports whether name appears anywhere in the stream as
// an identifier token.
func (ts TokenStream) HasIdentifier(name string) bool {
	for _, t := range ts.Tokens {
		if t.Kind == TokIdent && t.Text == name {
			return true
		}
	}
	return false
}

// SyntaxError is a scan-time diagnostic carrying fragment context, per
// spec.md §7's code-fragment error taxonomy.
type SyntaxError struct {
	Fragment string
	Line, Column int
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Fragment, e.Line, e.Column, e.Message)
}

func (e *SyntaxError) Is(target error) bool {
	return target == errSyntaxMarker
}

var errSyntaxMarker = fmt.Errorf("dsl: syntax error")

// ErrSyntax is the sentinel code-fragment errors.Is against.
var ErrSyntax = errSyntaxMarker

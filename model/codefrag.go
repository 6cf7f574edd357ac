// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "github.com/goki/snngen/sltype"
import "github.com/goki/snngen/dsl"

// TokenStream aliases dsl.TokenStream: every code fragment stored on an
// IR object is represented as tokens, never a raw string, once past
// construction (spec.md §3's CodeTokens).
type TokenStream = dsl.TokenStream

// CodeFragment pairs a fragment's scanned tokens with the raw source
// used to build it, plus a human-readable identity used in diagnostics
// ("Synapse group 'S' weight update model sim code").
type CodeFragment struct {
	Identity string
	Source   string
	Tokens   TokenStream
}

// scanFragment scans source under a diagnostic identity, wrapping any
// scan failure as a *dsl.SyntaxError so callers can errors.Is(err,
// dsl.ErrSyntax).
func scanFragment(identity, source string) (TokenStream, error) {
	return dsl.Scan(identity, source)
}

// NewCodeFragment scans source immediately and returns the fragment or
// the scan error.
func NewCodeFragment(identity, source string) (CodeFragment, error) {
	ts, err := scanFragment(identity, source)
	if err != nil {
		return CodeFragment{}, err
	}
	return CodeFragment{Identity: identity, Source: source, Tokens: ts}, nil
}

// Precision re-exports sltype.Precision so model callers need not
// import sltype directly for the common case of SetPrecision.
type Precision = sltype.Precision

const (
	PrecisionFloat      = sltype.PrecisionFloat
	PrecisionDouble     = sltype.PrecisionDouble
	PrecisionLongDouble = sltype.PrecisionLongDouble
)

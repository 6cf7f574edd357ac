// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"strings"

	"github.com/goki/snngen/sltype"
)

// ParamMap is a frozen (after Finalise) name→value table for a group's
// parameters.
type ParamMap map[string]float64

// Clone returns an independent copy of m.
func (m ParamMap) Clone() ParamMap {
	out := make(ParamMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DerivedParamFunc computes one derived parameter from the frozen
// parameter map and the model's dt, evaluated once during Finalise
// (spec.md §4.1).
type DerivedParamFunc func(params ParamMap, dt float64) float64

// DerivedParam is a named derived parameter plus its computation.
type DerivedParam struct {
	Name string
	Func DerivedParamFunc
	// value is filled in by Finalise.
	value  float64
	filled bool
}

// Value returns the derived parameter's frozen value; ok is false
// before Finalise has evaluated it. Exposed so any code-emission
// pass holding a []DerivedParam slice (neuron, PSM, WUM, current
// source) can read it without a per-owner accessor like
// NeuronGroup.DerivedParamValue.
func (dp DerivedParam) Value() (float64, bool) { return dp.value, dp.filled }

// VarAccess enumerates how a variable is read/written by the code that
// references it. REDUCE_SUM/REDUCE_MAX are used by custom updates that
// combine a referenced variable across parallel members (GeNN's
// VarAccessMode, supplemented per SPEC_FULL.md).
type VarAccess int

const (
	VarReadWrite VarAccess = iota
	VarReadOnly
	VarReadOnlyDuplicate
	VarReduceSum
	VarReduceMax
)

func (a VarAccess) String() string {
	switch a {
	case VarReadOnly:
		return "READ_ONLY"
	case VarReadOnlyDuplicate:
		return "READ_ONLY_DUPLICATE"
	case VarReduceSum:
		return "REDUCE_SUM"
	case VarReduceMax:
		return "REDUCE_MAX"
	default:
		return "READ_WRITE"
	}
}

// InitialiserKind distinguishes a constant-valued variable initialiser
// from one expressed as code (which may draw on a per-backend RNG).
type InitialiserKind int

const (
	InitConstant InitialiserKind = iota
	InitCode
)

// rngIdentifiers are the names an initialiser's code fragment must
// contain one of for UsesRNG to be inferred true; matches the
// population-RNG helper names the backend contract (spec.md §6)
// exposes to init code.
var rngIdentifiers = []string{"urand", "nrand", "exprand", "gennrand"}

// Initialiser describes how a variable or a synapse weight gets its
// starting value: either a single constant (fusable, RNG-free) or a
// code fragment (which may call into the backend RNG).
type Initialiser struct {
	Kind     InitialiserKind
	Constant float64
	Code     string
	Params   ParamMap
	tokens   TokenStream
}

// NewConstantInit builds a constant initialiser.
func NewConstantInit(v float64) Initialiser {
	return Initialiser{Kind: InitConstant, Constant: v}
}

// NewCodeInit builds a code initialiser, scanning its fragment
// immediately (spec.md §4.1: "every code fragment is scanned
// immediately").
func NewCodeInit(name, code string, params ParamMap) (Initialiser, error) {
	ts, err := scanFragment(name, code)
	if err != nil {
		return Initialiser{}, err
	}
	return Initialiser{Kind: InitCode, Code: code, Params: params, tokens: ts}, nil
}

// UsesRNG reports whether this initialiser's code references a
// backend RNG helper. Constant initialisers never use RNG.
func (in Initialiser) UsesRNG() bool {
	if in.Kind != InitCode {
		return false
	}
	for _, id := range rngIdentifiers {
		if in.tokens.HasIdentifier(id) {
			return true
		}
	}
	return false
}

// IsConstant reports whether in is a plain constant value — required
// for PS/WUM pre/post fusion (spec.md §4.3: "every PS initialiser is a
// constant").
func (in Initialiser) IsConstant() bool { return in.Kind == InitConstant }

// Fragment wraps a code initialiser's already-scanned tokens as a
// CodeFragment, for code-emission passes that want to run it through
// the dsl pipeline directly rather than rescanning in.Code (spec.md
// §4.1: "every code fragment is scanned immediately" — once, at
// construction, not again at emission time).
func (in Initialiser) Fragment(identity string) CodeFragment {
	return CodeFragment{Identity: identity, Source: in.Code, Tokens: in.tokens}
}

// VarInit is a state variable declaration: name, resolved kind, access
// mode and its initialiser.
type VarInit struct {
	Name   string
	Kind   sltype.Kind
	Access VarAccess
	Init   Initialiser
}

// ExtraGlobalParam is a model-level array or scalar exposed to code
// fragments but not backed by a per-member field; its value (or array
// contents) is supplied by the host at runtime.
type ExtraGlobalParam struct {
	Name    string
	Kind    sltype.Kind
	IsArray bool
}

// referencesIdentifier is a small helper shared by the EGP-fuse checks
// and the delay-queue scan: does any of the given fragments mention
// name.
func referencesIdentifier(name string, fragments ...TokenStream) bool {
	for _, f := range fragments {
		if f.HasIdentifier(name) {
			return true
		}
	}
	return false
}

// trimmed reports s with surrounding whitespace removed, used when
// comparing fragment text for equality checks that ignore formatting.
func trimmed(s string) string { return strings.TrimSpace(s) }

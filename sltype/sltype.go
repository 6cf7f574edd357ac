// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sltype defines the resolved scalar and vector types used
// throughout model code fragments and generated kernels: the numeric
// precision a model was built with, fixed-width vector aliases, and the
// pointer/const wrapper kinds the transpiler attaches to resolved
// identifiers.
package sltype

import "fmt"

// Float is identical to a float32; it is the scalar type of "scalar"
// when a model's precision is set to float.
type Float = float32

// Double is identical to a float64; the scalar type of "scalar" when a
// model's precision is set to double.
type Double = float64

// Float2, Float3, Float4 are fixed-width float32 vectors, laid out the
// way a generated struct field for a kernel/Toeplitz initialiser value
// is laid out: contiguous, no padding beyond natural alignment.
type Float2 struct{ X, Y float32 }
type Float3 struct{ X, Y, Z float32 }
type Float4 struct{ X, Y, Z, W float32 }

// Precision is the numeric kind backing "scalar" or "t" in generated
// code, set via Model.SetPrecision / Model.SetTimePrecision.
type Precision int

const (
	PrecisionFloat Precision = iota
	PrecisionDouble
	PrecisionLongDouble
)

// ParsePrecision parses one of Precision's String() forms, for
// config-file loading (spec.md §6's precision/timePrecision options).
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "float", "":
		return PrecisionFloat, nil
	case "double":
		return PrecisionDouble, nil
	case "long double":
		return PrecisionLongDouble, nil
	}
	return PrecisionFloat, fmt.Errorf("sltype: unknown Precision %q", s)
}

func (p Precision) String() string {
	switch p {
	case PrecisionFloat:
		return "float"
	case PrecisionDouble:
		return "double"
	case PrecisionLongDouble:
		return "long double"
	}
	return "unknown"
}

// Kind is the resolved type of an identifier inside a code fragment,
// after the type-checker has run.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindUint8
	KindUint16
	KindScalar // precision-dependent "scalar"
	KindTimeScalar
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int"
	case KindUint32:
		return "unsigned int"
	case KindUint8:
		return "uint8_t"
	case KindUint16:
		return "uint16_t"
	case KindScalar:
		return "scalar"
	case KindTimeScalar:
		return "timescalar"
	case KindVoid:
		return "void"
	}
	return "invalid"
}

// IsNumeric reports whether values of this kind participate in
// arithmetic (as opposed to KindVoid or KindInvalid).
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt32, KindUint32, KindUint8, KindUint16, KindScalar, KindTimeScalar:
		return true
	}
	return false
}

// ByteWidth returns k's storage width in bytes, resolving KindScalar/
// KindTimeScalar against precision the way Model.Precision()/
// TimePrecision() would. Used by the runtime's array-size diagnostics.
func (k Kind) ByteWidth(precision Precision) int {
	switch k {
	case KindBool, KindUint8:
		return 1
	case KindUint16:
		return 2
	case KindInt32, KindUint32:
		return 4
	case KindScalar, KindTimeScalar:
		if precision == PrecisionFloat {
			return 4
		}
		return 8
	}
	return 0
}

// ResolvedType is the full type of an identifier or expression as seen
// by the type-checker: a base Kind plus pointer/const wrappers. Pointer
// types arise from field accessors over merged-group arrays; Const
// wrappers arise from read-only bindings (e.g. "Isyn" as an alias over
// "_Isyn", or any captured loop variable the environment marks
// immutable).
type ResolvedType struct {
	Kind    Kind
	Pointer bool
	Const   bool
}

// Scalar returns the ResolvedType for a plain, non-pointer, non-const
// value of the given kind.
func Scalar(k Kind) ResolvedType { return ResolvedType{Kind: k} }

// Ptr returns a pointer wrapper of t.
func Ptr(t ResolvedType) ResolvedType { t.Pointer = true; return t }

// ConstOf returns a const wrapper of t.
func ConstOf(t ResolvedType) ResolvedType { t.Const = true; return t }

func (t ResolvedType) String() string {
	s := t.Kind.String()
	if t.Const {
		s = "const " + s
	}
	if t.Pointer {
		s += "*"
	}
	return s
}

// AssignableFrom reports whether a value of type src may be written
// into a binding of type t: kinds must both be numeric (scalar
// conversions are always legal, matching the embedded DSL's C-like
// implicit numeric promotion) or identical, t must not be const, and
// pointer-ness must match exactly (no implicit address-of or deref).
func (t ResolvedType) AssignableFrom(src ResolvedType) bool {
	if t.Const {
		return false
	}
	if t.Pointer != src.Pointer {
		return false
	}
	if t.Kind == src.Kind {
		return true
	}
	return t.Kind.IsNumeric() && src.Kind.IsNumeric()
}

// Limits holds the representable numeric range of an integer Kind, used
// by the type-checker to reject out-of-range integer literals and by
// the runtime to size narrow sparse-connectivity index arrays.
type Limits struct {
	Min, Max int64
}

// NumericLimits returns the representable range of integer kind k. It
// panics if k is not an integer kind; callers are expected to have
// already checked k.IsNumeric() and excluded the floating scalar kinds.
func NumericLimits(k Kind) Limits {
	switch k {
	case KindUint8:
		return Limits{0, 255}
	case KindUint16:
		return Limits{0, 65535}
	case KindUint32:
		return Limits{0, 4294967295}
	case KindInt32:
		return Limits{-2147483648, 2147483647}
	}
	panic(fmt.Sprintf("sltype: NumericLimits called on non-integer kind %v", k))
}

// NarrowIndexKind picks the narrowest unsigned integer kind that can
// index numPost distinct columns, per spec.md's narrowSparseInd rule:
// uint8 when numPost<=255, uint16 when numPost<=65535, uint32 otherwise.
func NarrowIndexKind(numPost int) Kind {
	switch {
	case numPost <= 255:
		return KindUint8
	case numPost <= 65535:
		return KindUint16
	default:
		return KindUint32
	}
}

// TypeContext is the precision policy threaded through scanning,
// type-checking and pretty-printing: it resolves the precision-
// dependent KindScalar/KindTimeScalar kinds to concrete backend types,
// and carries the registry of named snippet-builder functions
// (replacing the teacher's global mutable registration pattern with an
// explicit, passed-around table).
type TypeContext struct {
	Precision     Precision
	TimePrecision Precision
	Registry      map[string]FunctionSig
}

// FunctionSig describes a callable available to code fragments: either
// a built-in math function (exp, log, pow, …) or a user-registered
// custom function substitution (the "$(0)" positional-parameter style
// described in spec.md §4.4).
type FunctionSig struct {
	Name       string
	NumArgs    int
	ReturnKind Kind
	// Substitute, if non-empty, is a printf-style template using
	// "$(0)", "$(1)", … placeholders for positional arguments; when
	// empty the function name itself is emitted verbatim (built-ins).
	Substitute string
}

// NewTypeContext builds a TypeContext for the given precisions, seeded
// with the built-in math function table every backend is required to
// support (exp, log, pow, sqrt, fmin, fmax, fabs).
func NewTypeContext(precision, timePrecision Precision) *TypeContext {
	tc := &TypeContext{
		Precision:     precision,
		TimePrecision: timePrecision,
		Registry:      map[string]FunctionSig{},
	}
	for _, fn := range []string{"exp", "log", "pow", "sqrt", "fmin", "fmax", "fabs"} {
		nargs := 1
		if fn == "pow" || fn == "fmin" || fn == "fmax" {
			nargs = 2
		}
		tc.Registry[fn] = FunctionSig{Name: fn, NumArgs: nargs, ReturnKind: KindScalar}
	}
	return tc
}

// ScalarType resolves KindScalar to the concrete Kind implied by
// Precision: KindScalar itself stands in for float/double/long double,
// so callers needing the *printed* C type should use Precision.String()
// directly; ScalarType exists for numeric-compatibility checks that
// only need to know "this is the model's scalar kind".
func (tc *TypeContext) ScalarType() ResolvedType { return Scalar(KindScalar) }

// TimeType resolves KindTimeScalar analogously, for "t", "dt", "sT", …
func (tc *TypeContext) TimeType() ResolvedType { return Scalar(KindTimeScalar) }

// Lookup resolves a function name against the registry, reporting
// whether it is known.
func (tc *TypeContext) Lookup(name string) (FunctionSig, bool) {
	fn, ok := tc.Registry[name]
	return fn, ok
}

// Register adds or replaces a function substitution, e.g. a backend
// registering its FastExp intrinsic or a user registering a custom
// weight-update helper. Replaces the teacher's global mutable
// registration pattern (spec.md §9, "Global mutable state for
// registered snippets").
func (tc *TypeContext) Register(fn FunctionSig) {
	tc.Registry[fn.Name] = fn
}

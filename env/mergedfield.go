// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package env

import (
	"fmt"
	"strconv"

	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/sltype"
)

// MergedFieldEnvironment is EnvironmentGroupMergedField<T, G>: adding a
// field binds it against a merged group on first reference, emitting a
// per-member runtime array field when the value is heterogeneous
// across members, or inlining the shared value as a compile-time
// constant when it is homogeneous (spec.md §4.3/§4.5).
type MergedFieldEnvironment[T any] struct {
	*Environment
	mg        *merge.MergedGroup[T]
	groupExpr string // backend expression for "this merged group's struct", e.g. "group"
	indexExpr string // backend expression for the active member's slot, e.g. "idx"
}

// NewMergedFieldEnvironment opens a field-binding frame over mg, nested
// inside parent. groupExpr/indexExpr are the backend text used to
// address a per-member field (`<groupExpr>.<field>[<indexExpr>]`).
func NewMergedFieldEnvironment[T any](parent dsl.Scope, mg *merge.MergedGroup[T], groupExpr, indexExpr string) *MergedFieldEnvironment[T] {
	return &MergedFieldEnvironment[T]{
		Environment: NewEnvironment(parent),
		mg:          mg,
		groupExpr:   groupExpr,
		indexExpr:   indexExpr,
	}
}

// AddField registers name as a merged-group field computed by applying
// accessor to every member (merge.AddField's heterogeneity check),
// then binds it: heterogeneous fields expand to an indexed array read,
// homogeneous fields expand to the shared value formatted as a backend
// literal.
func (e *MergedFieldEnvironment[T]) AddField(name string, kind sltype.Kind, readOnly bool, accessor func(T) any) dsl.Binding {
	f := merge.AddField(e.mg, name, kind, accessor)
	var expansion string
	if f.Heterogeneous {
		expansion = fmt.Sprintf("%s.%s[%s]", e.groupExpr, name, e.indexExpr)
	} else {
		expansion = literal(f.Value(0), kind)
	}
	typ := sltype.Scalar(kind)
	if readOnly {
		typ = sltype.ConstOf(typ)
	}
	b := dsl.Binding{Type: typ, Expansion: expansion, ReadOnly: readOnly}
	e.Add(name, b)
	return b
}

// IsHeterogeneous reports whether the named field (already added via
// AddField) is a per-member runtime field rather than a shared
// constant.
func (e *MergedFieldEnvironment[T]) IsHeterogeneous(name string) bool {
	return e.mg.IsParamHeterogeneous(name)
}

// literal formats a raw accessor value as backend source text
// appropriate to kind, matching dsl.Printer's own literal formatting
// for float/int constants (a trailing "f" for scalar kinds).
func literal(v any, kind sltype.Kind) string {
	switch x := v.(type) {
	case float64:
		if kind == sltype.KindScalar || kind == sltype.KindTimeScalar {
			return strconv.FormatFloat(x, 'g', -1, 64) + "f"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32) + "f"
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

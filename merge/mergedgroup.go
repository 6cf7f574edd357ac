// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package merge builds MergedGroup[T] aggregates from the Model IR by
// partitioning user-declared groups on their structural digest.Digest,
// and separately decides which *instances* additionally fuse (share
// backing state) per spec.md §4.3.
package merge

import (
	"github.com/goki/snngen/digest"
	"github.com/goki/snngen/dsl/layout"
	"github.com/goki/snngen/sltype"
)

// MergedGroup is an ordered, stably-sorted aggregate of groups of kind
// T whose structural digest is equal (spec.md §3). The first member in
// declaration order is the archetype, whose code shape is emitted
// verbatim; the rest only ever contribute per-field values.
type MergedGroup[T any] struct {
	Index   int
	Members []T

	fieldOrder []string
	fields     map[string]*Field
}

// Field is a value accessor registered against a merged group, unique
// by symbolic name within the group (spec.md §3 "Field addition
// guarantees uniqueness by symbolic name").
type Field struct {
	Name          string
	Kind          sltype.Kind
	Heterogeneous bool
	values        []any
}

// Value returns the field's value for member index i: the shared
// constant if homogeneous (index ignored), else the per-member value.
func (f *Field) Value(i int) any {
	if !f.Heterogeneous {
		return f.values[0]
	}
	return f.values[i]
}

func newMergedGroup[T any](index int, members []T) *MergedGroup[T] {
	return &MergedGroup[T]{Index: index, Members: members, fields: map[string]*Field{}}
}

// NewMergedGroup wraps an already-decided member set as a MergedGroup
// at index 0, for callers that assembled members by some means other
// than Partition (the kernel emitter builds one from a FusedGroup's
// Members() to open an EnvironmentGroupMergedField over it).
func NewMergedGroup[T any](members []T) *MergedGroup[T] {
	return newMergedGroup[T](0, members)
}

// Archetype returns the designated representative (first member in
// declaration order).
func (mg *MergedGroup[T]) Archetype() T { return mg.Members[0] }

// Size returns the number of members aggregated into this group.
func (mg *MergedGroup[T]) Size() int { return len(mg.Members) }

// AddField registers (or looks up, if already added) a field computed
// by applying accessor to every member; it is homogeneous iff every
// member's value compares equal (spec.md §4.3's heterogeneous-
// parameter predicate, generalised here as one generic predicate
// parameterised by an accessor function object, per spec.md §9's
// design note replacing the teacher-domain's one-predicate-per-
// parameter-kind pattern).
func AddField[T any](mg *MergedGroup[T], name string, kind sltype.Kind, accessor func(T) any) *Field {
	if f, ok := mg.fields[name]; ok {
		return f
	}
	values := make([]any, len(mg.Members))
	hetero := false
	for i, m := range mg.Members {
		values[i] = accessor(m)
		if i > 0 && values[i] != values[0] {
			hetero = true
		}
	}
	f := &Field{Name: name, Kind: kind, Heterogeneous: hetero, values: values}
	mg.fields[name] = f
	mg.fieldOrder = append(mg.fieldOrder, name)
	return f
}

// Field looks up a previously-added field by name.
func (mg *MergedGroup[T]) Field(name string) (*Field, bool) {
	f, ok := mg.fields[name]
	return f, ok
}

// Fields returns every registered field in the order it was added.
func (mg *MergedGroup[T]) Fields() []*Field {
	out := make([]*Field, len(mg.fieldOrder))
	for i, n := range mg.fieldOrder {
		out[i] = mg.fields[n]
	}
	return out
}

// CheckLayout validates that this group's registered fields would pack
// into a device buffer cleanly under precision, per dsl/layout's
// alignment rule. Called once a merged group's fields are fully
// registered, before the kernel emitter prints the push/pull routines
// that rely on the packed layout.
func (mg *MergedGroup[T]) CheckLayout(precision sltype.Precision) error {
	members := make([]layout.Member, len(mg.fieldOrder))
	for i, n := range mg.fieldOrder {
		f := mg.fields[n]
		members[i] = layout.Member{Name: f.Name, Kind: f.Kind}
	}
	return layout.CheckMembers(members, precision)
}

// IsParamHeterogeneous reports whether the named field (if registered)
// is heterogeneous; unregistered fields are reported homogeneous, the
// conservative default for a field no emission pass bothered to query.
func (mg *MergedGroup[T]) IsParamHeterogeneous(name string) bool {
	f, ok := mg.fields[name]
	return ok && f.Heterogeneous
}

// Partition groups items into MergedGroup[T]s keyed by digest equality,
// preserving declaration order: the first item seen for a given digest
// becomes that group's archetype (spec.md §4.3 "one archetype is
// picked (lowest stable index)").
func Partition[T any](items []T, keyFn func(T) digest.Digest) []*MergedGroup[T] {
	var order []digest.Digest
	buckets := map[digest.Digest][]T{}
	for _, it := range items {
		k := keyFn(it)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], it)
	}
	out := make([]*MergedGroup[T], 0, len(order))
	for i, k := range order {
		out = append(out, newMergedGroup[T](i, buckets[k]))
	}
	return out
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package env

import (
	"fmt"

	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// DelayAdapter supplies the backend text for reading and writing a
// named variable's backing array, already offset by whichever
// read-slot/write-slot the containing group's delay queue requires —
// this is the spec's Adapter type parameter of
// EnvironmentLocalVarCache<Adapter, T, G>, reduced to the one capability
// the cache layer actually needs from it.
type DelayAdapter interface {
	ReadExpr(varName string) string
	WriteExpr(varName string) string
}

// localVar tracks one registered variable's caching state.
type localVar struct {
	kind     sltype.Kind
	access   model.VarAccess
	declared bool
}

// LocalVarCache is EnvironmentLocalVarCache<Adapter, T, G>: the first
// Lookup of a registered variable emits a typed local declaration
// seeded from the adapter's read expression; every reference after
// that resolves to the bare local alias. On scope exit, Flush emits
// the write-back for every variable that was both referenced and not
// read-only, using the adapter's write expression (spec.md §4.4's
// "pretty-printing honours the Environment's local-var cache").
type LocalVarCache struct {
	*Environment
	tc      *sltype.TypeContext
	adapter DelayAdapter
	locals  map[string]*localVar
	order   []string
	pending []Declaration
}

// NewLocalVarCache opens a local-var caching frame nested inside
// parent.
func NewLocalVarCache(parent dsl.Scope, tc *sltype.TypeContext, adapter DelayAdapter) *LocalVarCache {
	return &LocalVarCache{
		Environment: NewEnvironment(parent),
		tc:          tc,
		adapter:     adapter,
		locals:      map[string]*localVar{},
	}
}

// RegisterVar declares name as a cache-eligible variable of kind/access
// without yet emitting anything; the declaration is deferred to the
// first Lookup (first use), matching the spec's lazy semantics.
func (c *LocalVarCache) RegisterVar(name string, kind sltype.Kind, access model.VarAccess) dsl.Binding {
	lv := &localVar{kind: kind, access: access}
	c.locals[name] = lv
	c.order = append(c.order, name)
	b := dsl.Binding{
		Type:      sltype.Scalar(kind),
		Expansion: localAlias(name),
		ReadOnly:  access == model.VarReadOnly || access == model.VarReadOnlyDuplicate,
	}
	c.Environment.Add(name, b)
	return b
}

// Lookup overrides Environment.Lookup: a registered local triggers its
// first-use declaration before resolving through to the normal
// binding; anything else falls through to the embedded Environment
// (its own frame, then its parent).
func (c *LocalVarCache) Lookup(name string) (dsl.Binding, bool) {
	if lv, ok := c.locals[name]; ok {
		if !lv.declared {
			c.pending = append(c.pending, Declaration{
				Text: fmt.Sprintf("%s %s = %s;", ctypeText(c.tc, lv.kind), localAlias(name), c.adapter.ReadExpr(name)),
			})
			lv.declared = true
		}
	}
	return c.Environment.Lookup(name)
}

// PendingDeclarations drains and returns the declarations first-use
// Lookup calls have queued since the last drain, in the order their
// variables were first referenced.
func (c *LocalVarCache) PendingDeclarations() []Declaration {
	out := c.pending
	c.pending = nil
	return out
}

// Flush returns the write-back Declaration for every registered
// variable that was referenced at least once and is not read-only,
// in registration order, and resets each entry's declared flag so a
// reopened scope starts fresh.
func (c *LocalVarCache) Flush() []Declaration {
	var out []Declaration
	for _, name := range c.order {
		lv := c.locals[name]
		if !lv.declared {
			continue
		}
		lv.declared = false
		if lv.access == model.VarReadOnly || lv.access == model.VarReadOnlyDuplicate {
			continue
		}
		out = append(out, Declaration{Text: fmt.Sprintf("%s = %s;", c.adapter.WriteExpr(name), localAlias(name))})
	}
	return out
}

func localAlias(name string) string { return "l" + name }

// ctypeText maps a resolved Kind to backend source text, resolving the
// precision-dependent scalar kinds against tc the way dsl.Printer.cType
// resolves Go source type names — the local declaration's own C type,
// rather than a Go one, since this text is emitted straight into
// generated backend source.
func ctypeText(tc *sltype.TypeContext, k sltype.Kind) string {
	switch k {
	case sltype.KindScalar:
		return tc.Precision.String()
	case sltype.KindTimeScalar:
		return tc.TimePrecision.String()
	default:
		return k.String()
	}
}

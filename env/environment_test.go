// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package env

import (
	"testing"

	"github.com/goki/snngen/digest"
	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

func TestInnerShadowsOuter(t *testing.T) {
	outer := NewEnvironment(nil)
	outer.Add("a", dsl.Binding{Expansion: "outerA"})
	inner := outer.Push()
	inner.Add("a", dsl.Binding{Expansion: "innerA"})

	b, ok := inner.Lookup("a")
	if !ok || b.Expansion != "innerA" {
		t.Fatalf("expected inner binding to shadow outer, got %+v ok=%v", b, ok)
	}
	b, ok = outer.Lookup("a")
	if !ok || b.Expansion != "outerA" {
		t.Fatalf("expected outer binding unaffected, got %+v ok=%v", b, ok)
	}
}

func TestLookupMissFallsThroughToUnknown(t *testing.T) {
	e := NewEnvironment(nil)
	if _, ok := e.Lookup("nope"); ok {
		t.Fatalf("expected lookup miss for unbound name")
	}
	if _, err := e.Resolve("nope"); err == nil {
		t.Fatalf("expected ErrUnknownIdentifier from Resolve")
	}
}

func TestMergedFieldHomogeneousInlinesConstant(t *testing.T) {
	type member struct{ a float64 }
	members := []member{{a: 0.02}, {a: 0.02}}
	groups := merge.Partition(members, func(member) digest.Digest { return digest.Digest{} })
	fenv := NewMergedFieldEnvironment(nil, groups[0], "group", "idx")
	fenv.AddField("a", sltype.KindScalar, false, func(m member) any { return m.a })

	b, ok := fenv.Lookup("a")
	if !ok {
		t.Fatalf("expected field binding to resolve")
	}
	if b.Expansion != "0.02f" {
		t.Fatalf("expected homogeneous field to inline as constant, got %q", b.Expansion)
	}
	if fenv.IsHeterogeneous("a") {
		t.Fatalf("expected homogeneous field")
	}
}

func TestMergedFieldHeterogeneousIndexesArray(t *testing.T) {
	type member struct{ a float64 }
	members := []member{{a: 0.02}, {a: 0.03}}
	groups := merge.Partition(members, func(member) digest.Digest { return digest.Digest{} })
	fenv := NewMergedFieldEnvironment(nil, groups[0], "group", "idx")
	fenv.AddField("a", sltype.KindScalar, false, func(m member) any { return m.a })

	b, _ := fenv.Lookup("a")
	if b.Expansion != "group.a[idx]" {
		t.Fatalf("expected heterogeneous field to index the array, got %q", b.Expansion)
	}
	if !fenv.IsHeterogeneous("a") {
		t.Fatalf("expected heterogeneous field")
	}
}

type stubAdapter struct{}

func (stubAdapter) ReadExpr(name string) string  { return "group->" + name + "[readIdx]" }
func (stubAdapter) WriteExpr(name string) string { return "group->" + name + "[writeIdx]" }

func TestLocalVarCacheDeclaresOnFirstUseAndFlushes(t *testing.T) {
	tc := sltype.NewTypeContext(sltype.PrecisionFloat, sltype.PrecisionFloat)
	lc := NewLocalVarCache(nil, tc, stubAdapter{})
	lc.RegisterVar("V", sltype.KindScalar, model.VarReadWrite)

	if len(lc.PendingDeclarations()) != 0 {
		t.Fatalf("expected no declarations before first use")
	}
	if _, ok := lc.Lookup("V"); !ok {
		t.Fatalf("expected V to resolve")
	}
	decls := lc.PendingDeclarations()
	if len(decls) != 1 || decls[0].Text != "float lV = group->V[readIdx];" {
		t.Fatalf("unexpected declarations: %+v", decls)
	}
	// second lookup must not re-declare.
	lc.Lookup("V")
	if len(lc.PendingDeclarations()) != 0 {
		t.Fatalf("expected no further declarations on repeated use")
	}

	flush := lc.Flush()
	if len(flush) != 1 || flush[0].Text != "group->V[writeIdx] = lV;" {
		t.Fatalf("unexpected flush: %+v", flush)
	}
}

func TestLocalVarCacheSkipsReadOnlyOnFlush(t *testing.T) {
	tc := sltype.NewTypeContext(sltype.PrecisionFloat, sltype.PrecisionFloat)
	lc := NewLocalVarCache(nil, tc, stubAdapter{})
	lc.RegisterVar("Isyn", sltype.KindScalar, model.VarReadOnly)
	lc.Lookup("Isyn")
	lc.PendingDeclarations()

	if flush := lc.Flush(); len(flush) != 0 {
		t.Fatalf("expected no flush for read-only var, got %+v", flush)
	}
}

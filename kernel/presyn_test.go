// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"strings"
	"testing"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/backend/cpuref"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

func synapseModel(t *testing.T, matrixType model.MatrixType, span model.SpanType) (*model.Model, *model.SynapseGroup) {
	t.Helper()
	m := model.NewModel("t")
	if _, err := m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 5, SimCode: "V += 0;"}); err != nil {
		t.Fatalf("add pre: %v", err)
	}
	if _, err := m.AddNeuronPopulation("Post", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"}); err != nil {
		t.Fatalf("add post: %v", err)
	}
	sg, err := m.AddSynapsePopulation("S", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post", MatrixType: matrixType, Span: span,
		WUM: model.WeightUpdateModel{
			Vars:    []model.VarInit{{Name: "g", Kind: sltype.KindScalar, Init: model.NewConstantInit(0.5)}},
			SimCode: mustFrag(t, "S sim", "addToInSyn(g)"),
		},
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return m, sg
}

func denseSynapseModel(t *testing.T, span model.SpanType) (*model.Model, *model.SynapseGroup) {
	return synapseModel(t, model.Dense, span)
}

func TestEmitPresynapticUpdateDensePresynapticUsesRegisterAccumulation(t *testing.T) {
	m, sg := denseSynapseModel(t, model.SpanPresynaptic)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"for (int j = 0; j < group.numPost; j++)",
		"int postIdx = j;",
		"int synIdx = preIdx * group.rowStride + postIdx;",
		"linSyn = 0",
		"float lg = syn.g[synIdx];",
		"linSyn += lg",
		"outPost[postIdx] += linSyn",
		"syn.g[synIdx] = lg;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
	if strings.Contains(body, "cpuAtomicAdd(&outPost") {
		t.Errorf("register accumulation should not use an atomic, got:\n%s", body)
	}
	if strings.Contains(body, "rowLength[preIdx]") {
		t.Errorf("DENSE has no stored row to read, got:\n%s", body)
	}
}

func TestEmitPresynapticUpdateSparsePresynapticReadsRowArrays(t *testing.T) {
	m, sg := synapseModel(t, model.Sparse, model.SpanPresynaptic)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"for (int j = 0; j < rowLength[preIdx]; j++)",
		"int postIdx = ind[preIdx * group.rowStride + j];",
		"int synIdx = preIdx * group.rowStride + j;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestEmitPresynapticUpdateBitmaskPresynapticTestsPackedBits(t *testing.T) {
	m, sg := synapseModel(t, model.Bitmask, model.SpanPresynaptic)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"for (int j = 0; j < group.rowStride; j++)",
		"gp[(preIdx * group.rowStride + j) / 32]",
		"int postIdx = j;",
		"int synIdx = preIdx * group.rowStride + postIdx;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestEmitPresynapticUpdateSparsePostsynapticUsesReverseMap(t *testing.T) {
	m, sg := synapseModel(t, model.Sparse, model.SpanPostsynaptic)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"for (int k = 0; k < colLength[postIdx]; k++)",
		"colInd[postIdx * group.colStride + k] == preIdx",
		"remap[postIdx * group.colStride + k]",
		"if (synIdx < 0) continue;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
	if strings.Contains(body, "preIdx * group.rowStride + postIdx") {
		t.Errorf("SPARSE has no (preIdx,postIdx)-addressable slot, got:\n%s", body)
	}
}

func TestEmitPresynapticUpdateProceduralEvaluatesRowBuildInline(t *testing.T) {
	m := model.NewModel("t")
	if _, err := m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 5, SimCode: "V += 0;"}); err != nil {
		t.Fatalf("add pre: %v", err)
	}
	if _, err := m.AddNeuronPopulation("Post", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"}); err != nil {
		t.Fatalf("add post: %v", err)
	}
	sg, err := m.AddSynapsePopulation("S", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post", MatrixType: model.Procedural, Span: model.SpanPresynaptic,
		Connectivity: &model.ConnectivityInitialiser{
			RowBuildCode: mustFrag(t, "row build", "addSynapse(id_post)"),
			MaxRowLength: 10,
		},
		WUM: model.WeightUpdateModel{
			Vars:    []model.VarInit{{Name: "g", Kind: sltype.KindScalar, Init: model.NewConstantInit(0.5)}},
			SimCode: mustFrag(t, "S sim", "addToInSyn(g)"),
		},
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"int synIdx = postIdx;",
		"float lg = syn.g[synIdx];",
		"cpuAtomicAdd(&outPost[postIdx], lg)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
	for _, unwanted := range []string{"rowLength[preIdx]", "ind[preIdx"} {
		if strings.Contains(body, unwanted) {
			t.Errorf("PROCEDURAL has no stored connectivity array, got:\n%s", body)
		}
	}
}

func TestEmitPresynapticUpdatePostsynapticSpanUsesGlobalAtomic(t *testing.T) {
	m, sg := denseSynapseModel(t, model.SpanPostsynaptic)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"for (int s = 0; s < numSrcSpikes; s++)",
		"int preIdx = srcSpikes[s];",
		"cpuAtomicAdd(&outPost[postIdx], lg)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestEmitPresynapticUpdateEventThresholdGuardsSimCode(t *testing.T) {
	m := model.NewModel("t")
	if _, err := m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 5, SimCode: "V += 0;"}); err != nil {
		t.Fatalf("add pre: %v", err)
	}
	if _, err := m.AddNeuronPopulation("Post", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"}); err != nil {
		t.Fatalf("add post: %v", err)
	}
	sg, err := m.AddSynapsePopulation("S", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post", MatrixType: model.Dense, Span: model.SpanPresynaptic,
		WUM: model.WeightUpdateModel{
			Vars:               []model.VarInit{{Name: "g", Kind: sltype.KindScalar, Init: model.NewConstantInit(0.5)}},
			EventThresholdCode: mustFrag(t, "S event", "g > 0"),
			SimCode:            mustFrag(t, "S sim", "addToInSyn(g)"),
		},
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	body, err := EmitPresynapticUpdate(tc, be, sg, 32, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"float lg = syn.g[synIdx];",
		"if (lg > 0) {",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
	ifIdx := strings.Index(body, "if (lg > 0) {")
	declIdx := strings.Index(body, "float lg = syn.g[synIdx];")
	if declIdx == -1 || ifIdx == -1 || declIdx > ifIdx {
		t.Errorf("expected lg's declaration before the event-threshold guard, got:\n%s", body)
	}
}

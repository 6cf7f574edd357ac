// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package merge

import (
	"testing"

	"github.com/goki/snngen/model"
)

func frag(t *testing.T, name, code string) model.CodeFragment {
	t.Helper()
	f, err := model.NewCodeFragment(name, code)
	if err != nil {
		t.Fatalf("fragment %q: %v", name, err)
	}
	return f
}

func twoDenseProjections(t *testing.T, m *model.Model, gPS0, gPS1 float64) (*model.SynapseGroup, *model.SynapseGroup) {
	t.Helper()
	m.AddNeuronPopulation("Pre0", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += 0;"})
	m.AddNeuronPopulation("Pre1", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += 0;"})
	m.AddNeuronPopulation("Post", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"})

	mk := func(name, src string, g float64) *model.SynapseGroup {
		sg, err := m.AddSynapsePopulation(name, model.SynapseGroupConfig{
			Source: src, Target: "Post", MatrixType: model.Dense,
			WUM: model.WeightUpdateModel{
				Vars:    []model.VarInit{{Name: "g", Init: model.NewConstantInit(g)}},
				SimCode: frag(t, name+" sim", "addToInSyn(g)"),
			},
			PSM: model.PostsynapticModel{
				Vars:           []model.VarInit{{Name: "tau", Init: model.NewConstantInit(5)}},
				ApplyInputCode: frag(t, name+" apply", "Isyn += inSyn"),
				DecayCode:      frag(t, name+" decay", "inSyn *= tau"),
			},
		})
		if err != nil {
			t.Fatalf("add synapse %q: %v", name, err)
		}
		return sg
	}
	s0 := mk("S0", "Pre0", gPS0)
	s1 := mk("S1", "Pre1", gPS1)
	return s0, s1
}

func TestFusePostsynapticModelsSameShapeSameValue(t *testing.T) {
	m := model.NewModel("t")
	s0, s1 := twoDenseProjections(t, m, 1.0, 1.0)
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	groups := FusePostsynapticModels([]*model.SynapseGroup{s0, s1}, true)
	if len(groups) != 1 {
		t.Fatalf("expected a single fused PS group, got %d", len(groups))
	}
	if len(groups[0].Consumers) != 1 {
		t.Fatalf("expected archetype + 1 consumer, got %d consumers", len(groups[0].Consumers))
	}
}

func TestFuseDisabledKeepsGroupsSeparate(t *testing.T) {
	m := model.NewModel("t")
	s0, s1 := twoDenseProjections(t, m, 1.0, 1.0)
	m.Finalise()
	groups := FusePostsynapticModels([]*model.SynapseGroup{s0, s1}, false)
	if len(groups) != 2 {
		t.Fatalf("expected 2 singleton groups when fusion disabled, got %d", len(groups))
	}
}

func TestFuseScopedByTarget(t *testing.T) {
	m := model.NewModel("t")
	m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += 0;"})
	m.AddNeuronPopulation("PostA", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"})
	m.AddNeuronPopulation("PostB", model.NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"})

	mkTo := func(name, tgt string) *model.SynapseGroup {
		sg, err := m.AddSynapsePopulation(name, model.SynapseGroupConfig{
			Source: "Pre", Target: tgt, MatrixType: model.Dense,
			WUM: model.WeightUpdateModel{
				Vars:    []model.VarInit{{Name: "g", Init: model.NewConstantInit(1.0)}},
				SimCode: frag(t, name+" sim", "addToInSyn(g)"),
			},
			PSM: model.PostsynapticModel{
				ApplyInputCode: frag(t, name+" apply", "Isyn += inSyn"),
				DecayCode:      frag(t, name+" decay", "inSyn = 0"),
			},
		})
		if err != nil {
			t.Fatalf("add synapse %q: %v", name, err)
		}
		return sg
	}
	sa := mkTo("SA", "PostA")
	sb := mkTo("SB", "PostB")
	m.Finalise()

	groups := FusePostsynapticModels([]*model.SynapseGroup{sa, sb}, true)
	if len(groups) != 2 {
		t.Fatalf("expected groups targeting different neuron groups to stay unfused, got %d groups", len(groups))
	}
}

func TestPartitionNeuronGroupsIgnoresParamValues(t *testing.T) {
	m := model.NewModel("t")
	n0, err := m.AddNeuronPopulation("N0", model.NeuronGroupConfig{
		NumNeurons: 10,
		Params:     model.ParamMap{"a": 0.02},
		SimCode:    "V += a",
	})
	if err != nil {
		t.Fatalf("add N0: %v", err)
	}
	n1, err := m.AddNeuronPopulation("N1", model.NeuronGroupConfig{
		NumNeurons: 10,
		Params:     model.ParamMap{"a": 0.05},
		SimCode:    "V += a",
	})
	if err != nil {
		t.Fatalf("add N1: %v", err)
	}
	m.Finalise()

	mgs := PartitionNeuronGroups([]*model.NeuronGroup{n0, n1}, m.Precision(), m.TimePrecision())
	if len(mgs) != 1 {
		t.Fatalf("expected both groups to structurally merge despite differing param values, got %d merged groups", len(mgs))
	}
	if mgs[0].Size() != 2 {
		t.Fatalf("expected merged group of size 2, got %d", mgs[0].Size())
	}
}

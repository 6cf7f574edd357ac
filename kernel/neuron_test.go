// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"strings"
	"testing"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/backend/cpuref"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

func mustFrag(t *testing.T, name, code string) model.CodeFragment {
	t.Helper()
	f, err := model.NewCodeFragment(name, code)
	if err != nil {
		t.Fatalf("fragment %q: %v", name, err)
	}
	return f
}

func izhikevichModel(t *testing.T) (*model.Model, *model.NeuronGroup, *model.SynapseGroup) {
	t.Helper()
	m := model.NewModel("t")
	if _, err := m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 5, SimCode: "V += 0;"}); err != nil {
		t.Fatalf("add pre: %v", err)
	}
	_, err := m.AddNeuronPopulation("Post", model.NeuronGroupConfig{
		NumNeurons: 10,
		Params:     model.ParamMap{"a": 0.02, "b": 0.2, "c": -65, "d": 8},
		Vars: []model.VarInit{
			{Name: "V", Init: model.NewConstantInit(-65)},
			{Name: "U", Init: model.NewConstantInit(-13)},
		},
		SimCode:       "V += dt * (0.04*V*V + 5*V + 140 - U + Isyn); U += dt * (a*(b*V - U))",
		ThresholdCode: "V >= 30",
		ResetCode:     "V = c; U += d",
	})
	if err != nil {
		t.Fatalf("add post: %v", err)
	}
	sg, err := m.AddSynapsePopulation("S", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post", MatrixType: model.Dense,
		WUM: model.WeightUpdateModel{
			Vars:    []model.VarInit{{Name: "g", Init: model.NewConstantInit(0.5)}},
			SimCode: mustFrag(t, "S sim", "addToInSyn(g)"),
		},
		PSM: model.PostsynapticModel{
			ApplyInputCode: mustFrag(t, "S apply", "Isyn += inSyn"),
			DecayCode:      mustFrag(t, "S decay", "inSyn = 0"),
		},
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	post, _ := m.NeuronGroup("Post")
	return m, post, sg
}

func TestEmitNeuronUpdateEmitsSimAndThreshold(t *testing.T) {
	m, post, _ := izhikevichModel(t)
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})

	mg := merge.NewMergedGroup([]*model.NeuronGroup{post})
	psm := merge.FusePostsynapticModels(post.Incoming(), true)

	body, err := EmitNeuronUpdate(tc, be, mg, psm, nil, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{
		"_Isyn = 0", "linSyn", "_Isyn += linSyn_S", "linSyn_S = 0",
		"0.04", "lV >= 30", "emitTrueSpike", "lV = -65f", "lU += 8f",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestEmitNeuronUpdateNoThresholdOmitsSpikeBlock(t *testing.T) {
	m := model.NewModel("t")
	if _, err := m.AddNeuronPopulation("N", model.NeuronGroupConfig{
		NumNeurons: 4,
		Vars:       []model.VarInit{{Name: "V", Init: model.NewConstantInit(0)}},
		SimCode:    "V += 0;",
	}); err != nil {
		t.Fatalf("add neuron: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	n, _ := m.NeuronGroup("N")
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	be := cpuref.New(backend.Preferences{})
	mg := merge.NewMergedGroup([]*model.NeuronGroup{n})

	body, err := EmitNeuronUpdate(tc, be, mg, nil, nil, m.DT())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if strings.Contains(body, "emitTrueSpike") {
		t.Errorf("expected no spike block without a threshold condition, got:\n%s", body)
	}
}

func TestEmitCurrentSourceInjectsIntoIsyn(t *testing.T) {
	m := model.NewModel("t")
	m.AddNeuronPopulation("N", model.NeuronGroupConfig{NumNeurons: 4, SimCode: "V += Isyn;"})
	_, err := m.AddCurrentSource("cs0", model.CurrentSourceConfig{
		Target:        "N",
		Params:        model.ParamMap{"amp": 1.0},
		InjectionCode: "injectCurrent(amp)",
	})
	if err != nil {
		t.Fatalf("add current source: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	n, _ := m.NeuronGroup("N")
	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())

	txt, err := emitCurrentSource(tc, nil, n.CurrentSources()[0])
	if err != nil {
		t.Fatalf("emit current source: %v", err)
	}
	if !strings.Contains(txt, "_Isyn += 1") {
		t.Errorf("expected injection into _Isyn, got: %q", txt)
	}
}

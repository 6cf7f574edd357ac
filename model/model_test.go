// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"testing"
)

func izhikevichCfg(a, b, c, d float64) NeuronGroupConfig {
	return NeuronGroupConfig{
		NumNeurons: 10,
		Params:     ParamMap{"a": a, "b": b, "c": c, "d": d},
		Vars: []VarInit{
			{Name: "V", Init: NewConstantInit(c)},
			{Name: "U", Init: NewConstantInit(b * c)},
		},
		SimCode:       "V += dt * (0.04*V*V + 5*V + 140 - U + Isyn); U += dt * (a*(b*V - U))",
		ThresholdCode: "V >= 30",
		ResetCode:     "V = c; U += d",
	}
}

func TestDuplicateNeuronGroupName(t *testing.T) {
	m := NewModel("t")
	if _, err := m.AddNeuronPopulation("N0", izhikevichCfg(0.02, 0.2, -65, 8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := m.AddNeuronPopulation("N0", izhikevichCfg(0.02, 0.2, -65, 8))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestFrozenAfterFinalise(t *testing.T) {
	m := NewModel("t")
	if _, err := m.AddNeuronPopulation("N0", izhikevichCfg(0.02, 0.2, -65, 8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if !m.IsFrozen() {
		t.Fatalf("expected frozen model")
	}
	if _, err := m.AddNeuronPopulation("N1", izhikevichCfg(0.02, 0.2, -65, 8)); !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	// idempotent second call
	if err := m.Finalise(); err != nil {
		t.Fatalf("second finalise should be a no-op, got %v", err)
	}
}

func TestSyntaxErrorOnBadFragment(t *testing.T) {
	m := NewModel("t")
	cfg := izhikevichCfg(0.02, 0.2, -65, 8)
	cfg.SimCode = "V += 1 @ 2"
	_, err := m.AddNeuronPopulation("N0", cfg)
	if err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestDelayQueueAdvanceInvariant(t *testing.T) {
	m := NewModel("t")
	m.AddNeuronPopulation("N0", NeuronGroupConfig{NumNeurons: 10, SimCode: "V += 0;"})
	m.AddNeuronPopulation("N1", NeuronGroupConfig{NumNeurons: 10, SimCode: "V += Isyn;"})
	_, err := m.AddSynapsePopulation("S", SynapseGroupConfig{
		Source: "N0", Target: "N1", MatrixType: Dense,
		AxonalDelaySteps: 3,
		WUM: WeightUpdateModel{
			Vars:    []VarInit{{Name: "g", Init: NewConstantInit(1.0)}},
			SimCode: mustFrag("S sim code", "addToInSyn(g)"),
		},
		PSM: PostsynapticModel{
			ApplyInputCode: mustFrag("S apply-input", "Isyn += inSyn"),
			DecayCode:      mustFrag("S decay", "inSyn = 0"),
		},
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	n0, _ := m.NeuronGroup("N0")
	if n0.NumDelaySlots() != 4 {
		t.Fatalf("expected 4 delay slots (3+1), got %d", n0.NumDelaySlots())
	}
}

func mustFrag(name, code string) CodeFragment {
	f, err := NewCodeFragment(name, code)
	if err != nil {
		panic(err)
	}
	return f
}

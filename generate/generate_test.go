// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"strings"
	"testing"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/backend/cpuref"
	"github.com/goki/snngen/model"
)

func mustFrag(name, code string) model.CodeFragment {
	f, err := model.NewCodeFragment(name, code)
	if err != nil {
		panic(err)
	}
	return f
}

func izhikevichModel() (*model.Model, error) {
	m := model.NewModel("izhikevich")
	cfg := model.NeuronGroupConfig{
		NumNeurons: 10,
		Vars: []model.VarInit{
			{Name: "V", Init: model.NewConstantInit(-65)},
			{Name: "U", Init: model.NewConstantInit(-13)},
		},
		SimCode:       "V += dt * (0.04*V*V + 5*V + 140 - U + Isyn); U += dt * (0.02*(0.2*V - U))",
		ThresholdCode: "V >= 30",
		ResetCode:     "V = -65; U += 8",
	}
	if _, err := m.AddNeuronPopulation("Pre", cfg); err != nil {
		return nil, err
	}
	if _, err := m.AddNeuronPopulation("Post", cfg); err != nil {
		return nil, err
	}
	if _, err := m.AddSynapsePopulation("Conn", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post",
		MatrixType: model.Dense,
		WUM: model.WeightUpdateModel{
			Vars:    []model.VarInit{{Name: "g", Init: model.NewConstantInit(0.5)}},
			SimCode: mustFrag("Conn sim code", "addToInSyn(g)"),
		},
		PSM: model.PostsynapticModel{
			ApplyInputCode: mustFrag("Conn apply-input", "Isyn += inSyn; inSyn = 0"),
		},
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func TestRunEmitsExpectedFiles(t *testing.T) {
	be := cpuref.New(backend.Preferences{})
	files, err := Run(izhikevichModel, be, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{
		"rngSupport.c",
		"neuronUpdate_Pre.c",
		"neuronUpdate_Post.c",
		"presynapticUpdate_Conn.c",
		"neuronInit_Pre.c",
		"neuronInit_Post.c",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("Run: missing expected output file %q", name)
		}
	}
	if !strings.Contains(files["rngSupport.c"], "cpuRNGInit") {
		t.Errorf("rngSupport.c missing cpuRNGInit definition")
	}
}

func TestApplyRejectsUnknownPrecision(t *testing.T) {
	m, err := izhikevichModel()
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Precision = "quad"
	if err := cfg.Apply(m); err == nil {
		t.Fatal("expected error for unknown precision")
	}
}

func TestApplySetsBatchSizeAndDT(t *testing.T) {
	m, err := izhikevichModel()
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	cfg.DT = 0.5
	if err := cfg.Apply(m); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.DT() != 0.5 {
		t.Errorf("DT = %v, want 0.5", m.DT())
	}
}

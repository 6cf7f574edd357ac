// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

import (
	"errors"
	"testing"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/backend/cpuref"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
)

func mustFrag(name, code string) model.CodeFragment {
	f, err := model.NewCodeFragment(name, code)
	if err != nil {
		panic(err)
	}
	return f
}

func izhikevichCfg() model.NeuronGroupConfig {
	return model.NeuronGroupConfig{
		NumNeurons: 70,
		Vars: []model.VarInit{
			{Name: "V", Init: model.NewConstantInit(-65)},
			{Name: "U", Init: model.NewConstantInit(-13)},
		},
		SimCode:       "V += dt * (0.04*V*V + 5*V + 140 - U + Isyn); U += dt * (0.02*(0.2*V - U))",
		ThresholdCode: "V >= 30",
		ResetCode:     "V = -65; U += 8",
	}
}

// buildTestModel assembles a small two-population model exercising
// the arrays Allocate creates: a plain feedforward dense synapse
// group (no extras) and a sparse, event-driven, post-learning, den-
// dritic-delayed synapse group feeding the same target, so the source
// group needs spkEvntCnt/spkEvnt and the sparse group needs rowLength/
// ind/denDelay/denDelayPtr (but no colLength/remap, since cpuref does
// not require the postsynaptic remap).
func buildTestModel(t *testing.T) (*model.Model, *model.SynapseGroup, *model.SynapseGroup) {
	t.Helper()
	m := model.NewModel("runtime-test")

	if _, err := m.AddNeuronPopulation("Pre", izhikevichCfg()); err != nil {
		t.Fatalf("AddNeuronPopulation Pre: %v", err)
	}
	if _, err := m.AddNeuronPopulation("Post", izhikevichCfg()); err != nil {
		t.Fatalf("AddNeuronPopulation Post: %v", err)
	}

	dense, err := m.AddSynapsePopulation("Dense", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post",
		MatrixType: model.Dense,
		WUM: model.WeightUpdateModel{
			Vars:    []model.VarInit{{Name: "g", Init: model.NewConstantInit(0.5)}},
			SimCode: mustFrag("Dense sim code", "addToInSyn(g)"),
		},
		PSM: model.PostsynapticModel{
			ApplyInputCode: mustFrag("Dense apply-input", "Isyn += inSyn; inSyn = 0"),
		},
	})
	if err != nil {
		t.Fatalf("AddSynapsePopulation Dense: %v", err)
	}

	sparse, err := m.AddSynapsePopulation("SparseEvt", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post",
		MatrixType:                 model.Sparse,
		MaxDendriticDelayTimesteps: 4,
		Connectivity: &model.ConnectivityInitialiser{
			RowBuildCode: mustFrag("SparseEvt row-build", "for (int j = 0; j < 5; j++) { addSynapse(j); }"),
			MaxRowLength: 5,
		},
		WUM: model.WeightUpdateModel{
			Vars:               []model.VarInit{{Name: "g", Init: model.NewConstantInit(0.2)}},
			EventThresholdCode: mustFrag("SparseEvt event-threshold", "V > -50"),
			EventCode:          mustFrag("SparseEvt event code", "addToPostDelay(g, 2)"),
			PostLearnCode:      mustFrag("SparseEvt post-learn", "g -= 0.01"),
		},
		PSM: model.PostsynapticModel{
			ApplyInputCode: mustFrag("SparseEvt apply-input", "Isyn += inSyn; inSyn = 0"),
		},
	})
	if err != nil {
		t.Fatalf("AddSynapsePopulation SparseEvt: %v", err)
	}

	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return m, dense, sparse
}

func fusionPlan(m *model.Model) FusionPlan {
	groups := m.SynapseGroups()
	return FusionPlan{
		PSM:    merge.FusePostsynapticModels(groups, m.FusePostsynapticModels()),
		WUPre:  merge.FuseWUPre(groups, m.FusePrePostWeightUpdateModels()),
		WUPost: merge.FuseWUPost(groups, m.FusePrePostWeightUpdateModels()),
	}
}

func TestAllocateNeuronAndSynapseArrays(t *testing.T) {
	m, dense, sparse := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)

	if err := rt.Allocate(fusionPlan(m), RecordingRequest{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	mustHave := func(group, name string) {
		t.Helper()
		if _, ok := rt.Array(group, name); !ok {
			t.Errorf("expected array %s.%s to exist", group, name)
		}
	}
	mustNotHave := func(group, name string) {
		t.Helper()
		if _, ok := rt.Array(group, name); ok {
			t.Errorf("expected array %s.%s NOT to exist", group, name)
		}
	}

	mustHave("Pre", "spkCnt")
	mustHave("Pre", "spk")
	mustHave("Pre", "V")
	mustHave("Pre", "U")
	mustHave("Pre", "spkEvntCnt") // Pre drives SparseEvt, an event-coded synapse group
	mustHave("Pre", "spkEvnt")

	mustHave("Post", "spkCnt")
	mustHave("Post", "spk")

	mustHave(dense.Name(), "g")
	mustHave(sparse.Name(), "g")
	mustHave(sparse.Name(), "rowLength")
	mustHave(sparse.Name(), "ind")
	mustHave(sparse.Name(), "denDelay")
	mustHave(sparse.Name(), "denDelayPtr")

	// no reverse remap without IsPostsynapticRemapRequired (cpuref reports false)
	mustNotHave(sparse.Name(), "colLength")
	mustNotHave(sparse.Name(), "remap")

	// no recording arrays were requested
	mustNotHave("Pre", "recordSpk")

	mustHave(dense.Name(), "outPost")
	mustHave(sparse.Name(), "outPost")
}

func TestAllocateEventArraysOnSourceOfEventSynapse(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	if err := rt.Allocate(fusionPlan(m), RecordingRequest{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, ok := rt.Array("Pre", "spkEvntCnt"); !ok {
		t.Fatalf("expected Pre.spkEvntCnt since Pre drives an event-coded synapse group")
	}
	if _, ok := rt.Array("Pre", "spkEvnt"); !ok {
		t.Fatalf("expected Pre.spkEvnt")
	}
}

func TestAllocateDuplicateArrayFails(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	plan := fusionPlan(m)
	if err := rt.Allocate(plan, RecordingRequest{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := rt.Allocate(plan, RecordingRequest{}); !errors.Is(err, ErrDuplicateArray) {
		t.Fatalf("expected ErrDuplicateArray on second allocate, got %v", err)
	}
}

func TestAllocateRecordingUnsetFailsWithoutSize(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	err := rt.Allocate(fusionPlan(m), RecordingRequest{Requested: true})
	if !errors.Is(err, model.ErrRecordingUnset) {
		t.Fatalf("expected ErrRecordingUnset, got %v", err)
	}
}

func TestAllocateRecordingBufferSizing(t *testing.T) {
	// spec scenario: N=70, batch=4, numRecordingTimesteps=1000 => 3*4*1000 = 12000 words
	words := recordingWords(70, 4, 1000)
	if words != 12000 {
		t.Fatalf("expected 12000 words, got %d", words)
	}

	m := model.NewModel("recording-test")
	if _, err := m.AddNeuronPopulation("N", izhikevichCfg()); err != nil {
		t.Fatalf("AddNeuronPopulation: %v", err)
	}
	if err := m.SetBatchSize(4); err != nil {
		t.Fatalf("SetBatchSize: %v", err)
	}
	if err := m.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}

	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	if err := rt.Allocate(fusionPlan(m), RecordingRequest{Requested: true, NumTimesteps: 1000}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	a, err := rt.GetArray("N", "recordSpk")
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	if a.Count() != 12000 {
		t.Fatalf("expected recordSpk count 12000, got %d", a.Count())
	}
}

func TestLoadInitializeStepTimeGetTime(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	if err := rt.Allocate(fusionPlan(m), RecordingRequest{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	var allocated, freed, initialized, initializedSparse bool
	var steps []uint64
	lib := NewMapLibrary(map[string]Symbol{
		symAllocateMem:      func() { allocated = true },
		symFreeMem:          func() { freed = true },
		symInitialize:       func() { initialized = true },
		symInitializeSparse: func() { initializedSparse = true },
		symStepTime: func(timestep, numRecordingTimesteps uint64) {
			steps = append(steps, timestep)
		},
	})
	loader := NewMapLoader(map[string]*MapLibrary{"libtest.so": lib})

	if err := rt.Load(loader, "libtest.so"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !allocated {
		t.Fatalf("expected allocateMem to be called on load")
	}
	if err := rt.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !initialized {
		t.Fatalf("expected initialize to be called")
	}
	if err := rt.InitializeSparse(); err != nil {
		t.Fatalf("initializeSparse: %v", err)
	}
	if !initializedSparse {
		t.Fatalf("expected initializeSparse to be called")
	}

	for i := 0; i < 3; i++ {
		if err := rt.StepTime(0); err != nil {
			t.Fatalf("stepTime %d: %v", i, err)
		}
	}
	if len(steps) != 3 || steps[0] != 0 || steps[1] != 1 || steps[2] != 2 {
		t.Fatalf("expected stepTime called with 0,1,2, got %v", steps)
	}
	wantTime := m.DT() * 3
	if rt.GetTime() != wantTime {
		t.Fatalf("expected GetTime %v, got %v", wantTime, rt.GetTime())
	}

	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !freed {
		t.Fatalf("expected freeMem to be called on close")
	}
	if !lib.closed {
		t.Fatalf("expected library to be closed")
	}
}

func TestLoadFailureWrapsSentinel(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	loader := NewMapLoader(map[string]*MapLibrary{})
	if err := rt.Load(loader, "missing.so"); !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
}

func TestLoadSymbolMissingWrapsSentinel(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	lib := NewMapLibrary(map[string]Symbol{
		symAllocateMem: func() {},
		// freeMem deliberately omitted
	})
	loader := NewMapLoader(map[string]*MapLibrary{"partial.so": lib})
	if err := rt.Load(loader, "partial.so"); !errors.Is(err, ErrSymbolMissing) {
		t.Fatalf("expected ErrSymbolMissing, got %v", err)
	}
}

func TestPushMergedGroupOptional(t *testing.T) {
	m, _, _ := buildTestModel(t)
	be := cpuref.New(backend.Preferences{})
	rt := New(m, be)
	var pushed bool
	lib := NewMapLibrary(map[string]Symbol{
		symAllocateMem:      func() {},
		symFreeMem:          func() {},
		symInitialize:       func() {},
		symInitializeSparse: func() {},
		symStepTime:         func(uint64, uint64) {},
		"pushMergedNeuronGroup0ToDevice": func() { pushed = true },
	})
	loader := NewMapLoader(map[string]*MapLibrary{"lib.so": lib})
	if err := rt.Load(loader, "lib.so"); err != nil {
		t.Fatalf("load: %v", err)
	}

	ok, err := rt.PushMergedGroup("Neuron", 0)
	if err != nil {
		t.Fatalf("PushMergedGroup: %v", err)
	}
	if !ok || !pushed {
		t.Fatalf("expected PushMergedGroup to find and call the symbol")
	}

	ok, err = rt.PushMergedGroup("Neuron", 1)
	if err != nil {
		t.Fatalf("PushMergedGroup: %v", err)
	}
	if ok {
		t.Fatalf("expected no symbol for group index 1")
	}
}

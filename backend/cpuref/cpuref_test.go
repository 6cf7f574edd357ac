// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpuref

import (
	"testing"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

func TestCreateArrayAllocatesRequestedCount(t *testing.T) {
	b := New(backend.Preferences{})
	a, err := b.CreateArray(sltype.KindScalar, 10, model.HostDevice)
	if err != nil {
		t.Fatalf("create array: %v", err)
	}
	if a.Count() != 10 {
		t.Fatalf("expected count 10, got %d", a.Count())
	}
	if err := a.Allocate(20); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.Count() != 20 {
		t.Fatalf("expected count 20 after reallocate, got %d", a.Count())
	}
	if err := a.Free(); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := a.Allocate(5); err == nil {
		t.Fatalf("expected error allocating a freed array")
	}
}

func TestDefaultBlockSizesAreSingleThreaded(t *testing.T) {
	b := New(backend.Preferences{})
	p := b.Preferences()
	if p.BlockSize.Neuron != 1 || p.BlockSize.PresynUpdate != 1 {
		t.Fatalf("expected single-threaded default block sizes, got %+v", p.BlockSize)
	}
}

func TestSynapticMatrixRowStrideDelegatesToModel(t *testing.T) {
	m := model.NewModel("t")
	m.AddNeuronPopulation("Pre", model.NeuronGroupConfig{NumNeurons: 5, SimCode: "V += 0;"})
	m.AddNeuronPopulation("Post", model.NeuronGroupConfig{NumNeurons: 7, SimCode: "V += Isyn;"})
	sg, err := m.AddSynapsePopulation("S", model.SynapseGroupConfig{
		Source: "Pre", Target: "Post", MatrixType: model.Dense,
	})
	if err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	b := New(backend.Preferences{})
	if got := b.SynapticMatrixRowStride(sg); got != 7 {
		t.Fatalf("expected row stride 7 (numPost), got %d", got)
	}
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpuref is a reference, single-threaded CPU implementation of
// backend.Backend, used by this module's own tests (spec.md §1 "only
// the backend contract is specified, matching a single-threaded
// reference backend supplied for testing"). It never copies between
// host and device — an array records only its kind, element count and
// location, holding no element storage — and its atomics are named
// cpuAtomicAdd/cpuAtomicOr helpers, since there is exactly one thread.
package cpuref

import (
	"fmt"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// array is the cpuref.ArrayHandle: a descriptor recording kind, count
// and location with no element storage behind it; push/pull are no-ops
// since host and "device" are the same memory here.
type array struct {
	kind     sltype.Kind
	count    int
	loc      model.VarLocation
	freed    bool
}

func (a *array) Kind() sltype.Kind            { return a.kind }
func (a *array) Count() int                   { return a.count }
func (a *array) Location() model.VarLocation  { return a.loc }

func (a *array) Allocate(count int) error {
	if a.freed {
		return fmt.Errorf("cpuref: allocate on freed array")
	}
	a.count = count
	return nil
}

func (a *array) Free() error {
	a.freed = true
	return nil
}

func (a *array) Push() error { return nil }
func (a *array) Pull() error { return nil }

// Backend is the reference single-threaded CPU backend.
type Backend struct {
	prefs backend.Preferences
}

// New constructs a reference backend with the given preferences; zero
// value Preferences{} is a reasonable default (no debug code, no
// automatic copy, block size 1 everywhere a single-threaded backend
// can only ever mean "one iteration per launch").
func New(prefs backend.Preferences) *Backend {
	if prefs.BlockSize == (backend.BlockSizes{}) {
		prefs.BlockSize = backend.BlockSizes{
			Neuron: 1, PresynUpdate: 1, PostsynUpdate: 1, SynapseDynamics: 1,
			Init: 1, InitSparse: 1, CustomUpdate: 1, CustomTranspose: 1,
		}
	}
	return &Backend{prefs: prefs}
}

func (b *Backend) CreateArray(kind sltype.Kind, count int, loc model.VarLocation) (backend.ArrayHandle, error) {
	return &array{kind: kind, count: count, loc: loc}, nil
}

// SynapticMatrixRowStride delegates to the model's own row-stride
// computation: a single-threaded backend needs no padding beyond what
// SynapseGroup.RowStride already reports.
func (b *Backend) SynapticMatrixRowStride(sg *model.SynapseGroup) int { return sg.RowStride() }

func (b *Backend) PointerPrefix() string { return "" }
func (b *Backend) SharedPrefix() string  { return "" }

func (b *Backend) ThreadID(axis backend.Axis) string { return "0" }
func (b *Backend) BlockID(axis backend.Axis) string  { return "0" }
func (b *Backend) CLZ(expr string) string            { return fmt.Sprintf("__builtin_clz(%s)", expr) }

// Atomic returns the helper name "cpuAtomicOr" for AtomicOr and
// "cpuAtomicAdd" for every other op, ignoring kind and space: with one
// thread there is never contention, so no hardware atomic is needed
// (a single-threaded CPU reading of GeNN's backendSIMT.h contract).
func (b *Backend) Atomic(kind sltype.Kind, op backend.AtomicOp, space backend.MemSpace) string {
	switch op {
	case backend.AtomicOr:
		return "cpuAtomicOr"
	default:
		return "cpuAtomicAdd"
	}
}

func (b *Backend) SharedMemBarrier() string { return "" }

func (b *Backend) PopulationRNGInit(seed uint32) string    { return fmt.Sprintf("cpuRNGInit(%d)", seed) }
func (b *Backend) PopulationRNGPreamble() string            { return "" }
func (b *Backend) PopulationRNGPostamble() string           { return "" }
func (b *Backend) GlobalRNGSkipAhead(offsetExpr string) string {
	return fmt.Sprintf("cpuRNGSkipAhead(%s)", offsetExpr)
}

func (b *Backend) IsPostsynapticRemapRequired() bool { return false }
func (b *Backend) IsPopulationRNGRequired() bool     { return true }
func (b *Backend) IsDeviceScalarRequired() bool      { return false }
func (b *Backend) AreSharedMemAtomicsSlow() bool     { return true }

func (b *Backend) Preferences() backend.Preferences { return b.prefs }

var _ backend.Backend = (*Backend)(nil)

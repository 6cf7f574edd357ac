// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend defines the abstract backend contract the kernel
// emitter targets (spec.md §6 "Backend contract"): array creation,
// atomics, memory-space prefixes, thread/block addressing, population
// RNG hooks, and the recognised preference keys. Concrete device
// backends (CUDA, OpenCL, …) are out of scope for this module — only
// the contract and a reference single-threaded CPU implementation
// (package backend/cpuref, used by tests) are provided.
package backend

import (
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// AtomicOp selects the operation an atomic update performs.
type AtomicOp int

const (
	AtomicAdd AtomicOp = iota
	AtomicOr
)

// MemSpace selects the memory space an atomic or barrier targets.
type MemSpace int

const (
	MemGlobal MemSpace = iota
	MemShared
)

// Axis selects a thread/block index dimension.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// BlockSizes is the per-pass launch geometry a backend exposes through
// Preferences (spec.md §6's "blockSize{Neuron,PresynUpdate,…}").
type BlockSizes struct {
	Neuron            int
	PresynUpdate      int
	PostsynUpdate     int
	SynapseDynamics   int
	Init              int
	InitSparse        int
	CustomUpdate      int
	CustomTranspose   int
}

// Preferences is the options struct spec.md §6 requires getPreferences
// to return, with every recognised key named there.
type Preferences struct {
	DebugCode                        bool
	AutomaticCopy                    bool
	BlockSize                        BlockSizes
	EnableBitmaskOptimisations       bool
	GenerateSimpleCode               bool
	GenerateEmptyStateForFusedGroups bool
}

// ArrayHandle is a backend-created, typed, sized buffer with a
// location, matching spec.md §3's Array: "supports push, pull,
// allocate, free".
type ArrayHandle interface {
	Kind() sltype.Kind
	Count() int
	Location() model.VarLocation
	Allocate(count int) error
	Free() error
	Push() error
	Pull() error
}

// Backend is the contract every concrete device backend (and the
// reference backend/cpuref) must satisfy (spec.md §6).
type Backend interface {
	CreateArray(kind sltype.Kind, count int, loc model.VarLocation) (ArrayHandle, error)

	// SynapticMatrixRowStride returns the rounded-up row length used to
	// size dense/sparse weight arrays for sg.
	SynapticMatrixRowStride(sg *model.SynapseGroup) int

	PointerPrefix() string
	SharedPrefix() string
	ThreadID(axis Axis) string
	BlockID(axis Axis) string
	CLZ(expr string) string

	// Atomic returns the backend-specific identifier for an atomic
	// operation of the requested flavour, e.g. "atomicAdd".
	Atomic(kind sltype.Kind, op AtomicOp, space MemSpace) string
	SharedMemBarrier() string

	PopulationRNGInit(seed uint32) string
	PopulationRNGPreamble() string
	PopulationRNGPostamble() string
	GlobalRNGSkipAhead(offsetExpr string) string

	// RNGSupportCode returns the backend's own source text implementing
	// every identifier PopulationRNGInit/GlobalRNGSkipAhead and
	// model.Initialiser.UsesRNG's recognised call names (urand, nrand,
	// exprand, gennrand) resolve to. It is emitted once per generated
	// project alongside the per-group kernel files, never per group.
	RNGSupportCode() string

	IsPostsynapticRemapRequired() bool
	IsPopulationRNGRequired() bool
	IsDeviceScalarRequired() bool
	AreSharedMemAtomicsSlow() bool

	Preferences() Preferences
}

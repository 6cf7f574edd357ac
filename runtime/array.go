// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runtime drives a generated-and-loaded simulation library
// against a frozen model.Model: it allocates the backend arrays every
// group needs (spec.md §4.7 "allocate"), loads and calls the library's
// exported entrypoints (initialize/initializeSparse/stepTime), and
// exposes array contents back to the host (getArray). Concrete
// dynamic-library loading (dlopen, LoadLibrary) is out of scope for
// this module, same as concrete device backends in package backend —
// only the Library/Loader contract and a reference in-process
// implementation (used by this package's own tests) are provided.
package runtime

import (
	"fmt"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// arrayKey identifies one allocated array by the group/fused-group name
// that owns it and the array's role, matching spec.md §4.7's "Duplicate
// allocation for the same (group, name) fails with DuplicateArray".
type arrayKey struct {
	Group string
	Name  string
}

func (k arrayKey) String() string { return fmt.Sprintf("%s.%s", k.Group, k.Name) }

// Runtime owns the backend arrays allocated for one model, the loaded
// library, and the local step counter (spec.md §4.7 / §5 "the Runtime's
// array map ... must not be accessed concurrently").
type Runtime struct {
	model *model.Model
	be    backend.Backend

	arrays map[arrayKey]backend.ArrayHandle
	order  []arrayKey

	lib      Library
	timestep uint64
	timing   Timing

	fnAllocateMem      func()
	fnFreeMem          func()
	fnInitialize       func()
	fnInitializeSparse func()
	fnStepTime         func(timestep, numRecordingTimesteps uint64)
}

// New builds a Runtime over m using be to create arrays. m must already
// be finalised (spec.md §4.7 "allocate walks the model after code-gen").
func New(m *model.Model, be backend.Backend) *Runtime {
	return &Runtime{model: m, be: be, arrays: map[arrayKey]backend.ArrayHandle{}}
}

// createArray allocates one array under key, failing with
// ErrDuplicateArray if key was already allocated (spec.md §4.7).
func (rt *Runtime) createArray(key arrayKey, kind sltype.Kind, count int, loc model.VarLocation) error {
	if _, exists := rt.arrays[key]; exists {
		return wrapf(ErrDuplicateArray, "array %s", key)
	}
	a, err := rt.be.CreateArray(kind, count, loc)
	if err != nil {
		return wrapf(ErrBackendError, "create array %s", key)
	}
	rt.arrays[key] = a
	rt.order = append(rt.order, key)
	return nil
}

// Array looks up a previously allocated array by (group, name) — the
// host-facing half of spec.md §4.7's getArray(group, name).
func (rt *Runtime) Array(group, name string) (backend.ArrayHandle, bool) {
	a, ok := rt.arrays[arrayKey{Group: group, Name: name}]
	return a, ok
}

// GetArray returns the array backing (group, name), or an error if no
// such array was ever allocated.
func (rt *Runtime) GetArray(group, name string) (backend.ArrayHandle, error) {
	a, ok := rt.Array(group, name)
	if !ok {
		return nil, fmt.Errorf("snngen/runtime: no array %s.%s allocated", group, name)
	}
	return a, nil
}

// SetTiming configures per-step progress logging for StepTime.
func (rt *Runtime) SetTiming(t Timing) { rt.timing = t }

// Arrays returns every allocated array's key in allocation order, for
// diagnostics and tests.
func (rt *Runtime) Arrays() []string {
	out := make([]string, len(rt.order))
	for i, k := range rt.order {
		out[i] = k.String()
	}
	return out
}

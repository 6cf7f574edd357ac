// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

import "fmt"

// coreSymbols names the entrypoints spec.md §6 requires generated core
// code to export; all but pushMerged*ToDevice functions (which callers
// fetch individually via PushMergedGroup) are mandatory.
const (
	symAllocateMem      = "allocateMem"
	symFreeMem          = "freeMem"
	symInitialize       = "initialize"
	symInitializeSparse = "initializeSparse"
	symStepTime         = "stepTime"
)

// Load resolves l's mandatory entrypoints and calls allocateMem,
// matching spec.md §4.7's "library load failure surfaces as
// LoadFailure" and "missing symbols surface as SymbolMissing(name)
// unless the symbol is documented as optional" — none of the five
// entrypoints resolved here are optional.
func (rt *Runtime) Load(loader Loader, path string) error {
	lib, err := loader.Load(path)
	if err != nil {
		return err
	}

	allocateMem, err := bindFunc0(lib, symAllocateMem)
	if err != nil {
		return err
	}
	freeMem, err := bindFunc0(lib, symFreeMem)
	if err != nil {
		return err
	}
	initialize, err := bindFunc0(lib, symInitialize)
	if err != nil {
		return err
	}
	initializeSparse, err := bindFunc0(lib, symInitializeSparse)
	if err != nil {
		return err
	}
	stepTime, err := bindStepTimeFunc(lib, symStepTime)
	if err != nil {
		return err
	}

	rt.lib = lib
	rt.fnAllocateMem = allocateMem
	rt.fnFreeMem = freeMem
	rt.fnInitialize = initialize
	rt.fnInitializeSparse = initializeSparse
	rt.fnStepTime = stepTime

	rt.fnAllocateMem()
	return nil
}

// bindFunc0 resolves name against lib and asserts it to func().
func bindFunc0(lib Library, name string) (func(), error) {
	sym, err := lib.Symbol(name)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func())
	if !ok {
		return nil, wrapf(ErrSymbolMissing, "symbol %q has wrong signature", name)
	}
	return fn, nil
}

// bindStepTimeFunc resolves name against lib and asserts it to the
// stepTime(timestep, numRecordingTimesteps) signature.
func bindStepTimeFunc(lib Library, name string) (func(uint64, uint64), error) {
	sym, err := lib.Symbol(name)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(uint64, uint64))
	if !ok {
		return nil, wrapf(ErrSymbolMissing, "symbol %q has wrong signature", name)
	}
	return fn, nil
}

// PushMergedGroup resolves and calls pushMerged<kind>Group<index>ToDevice,
// one of the optional per-merged-group entrypoints spec.md §6 documents
// for pushing host-modified state back to a device backend before the
// first stepTime call. Backends for which host and device share memory
// (e.g. backend/cpuref) never export these, so a missing symbol here is
// not itself fatal — callers decide whether to treat it as one.
func (rt *Runtime) PushMergedGroup(kind string, index int) (bool, error) {
	name := fmt.Sprintf("pushMerged%sGroup%dToDevice", kind, index)
	sym, ok := rt.lib.OptionalSymbol(name)
	if !ok {
		return false, nil
	}
	fn, ok := sym.(func())
	if !ok {
		return false, wrapf(ErrSymbolMissing, "symbol %q has wrong signature", name)
	}
	fn()
	return true, nil
}

// Initialize calls the library's initialize entrypoint (spec.md §4.7
// "initialize": dense/default var init, RNG seeding) and resets the
// local step counter.
func (rt *Runtime) Initialize() error {
	if rt.fnInitialize == nil {
		return fmt.Errorf("snngen/runtime: Load must be called before Initialize")
	}
	rt.fnInitialize()
	rt.timestep = 0
	return nil
}

// InitializeSparse calls the library's initializeSparse entrypoint
// (spec.md §4.7 "initializeSparse": connectivity-dependent var init,
// row-length-derived allocation), which must run after Initialize and
// after any host-side connectivity has been pushed.
func (rt *Runtime) InitializeSparse() error {
	if rt.fnInitializeSparse == nil {
		return fmt.Errorf("snngen/runtime: Load must be called before InitializeSparse")
	}
	rt.fnInitializeSparse()
	return nil
}

// StepTime advances the simulation by one dt, calling the library's
// stepTime(timestep, numRecordingTimesteps) entrypoint and incrementing
// the local step counter (spec.md §4.7 "stepTime").
func (rt *Runtime) StepTime(numRecordingTimesteps uint64) error {
	if rt.fnStepTime == nil {
		return fmt.Errorf("snngen/runtime: Load must be called before StepTime")
	}
	rt.fnStepTime(rt.timestep, numRecordingTimesteps)
	rt.timestep++
	rt.logStep(rt.timing)
	return nil
}

// GetTime returns the current simulation time in model units, t = dt *
// timestep (spec.md §4.7 "getTime").
func (rt *Runtime) GetTime() float64 {
	return rt.model.DT() * float64(rt.timestep)
}

// Timestep returns the number of StepTime calls made so far.
func (rt *Runtime) Timestep() uint64 { return rt.timestep }

// Close calls freeMem and unloads the library (spec.md §4.7
// "destruction calls freeMem then unloads"), in that order.
func (rt *Runtime) Close() error {
	if rt.fnFreeMem != nil {
		rt.fnFreeMem()
	}
	if rt.lib != nil {
		return rt.lib.Close()
	}
	return nil
}

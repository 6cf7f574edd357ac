// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

// Symbol is an exported entrypoint resolved from a loaded library, of
// whatever concrete function type the caller expects — the same shape
// as the standard library's plugin.Symbol, since a Library's symbol
// table is not statically typed until a caller asserts it to the
// signature spec.md §6 documents for that name.
type Symbol any

// Library is a loaded simulation library exposing the exported symbols
// spec.md §6 requires core to produce: allocateMem, freeMem, initialize,
// initializeSparse, stepTime, plus one pushMerged<Kind>Group<Index>ToDevice
// per merged group. Concrete loaders (dlopen/dlsym on Unix,
// LoadLibrary/GetProcAddress on Windows) are out of scope for this
// module; only this contract and a reference in-process implementation
// (MapLibrary, below) are provided.
type Library interface {
	// Symbol resolves name, failing with ErrSymbolMissing if absent.
	Symbol(name string) (Symbol, error)
	// OptionalSymbol resolves name without failing if absent, for
	// per-merged-group push entrypoints a caller may not need.
	OptionalSymbol(name string) (Symbol, bool)
	// Close releases the library, matching spec.md §4.7's "destruction
	// calls freeMem then unloads" — callers call Runtime.Close, which
	// calls freeMem before this.
	Close() error
}

// Loader opens a library from a path, failing with ErrLoadFailure
// carrying the OS error text (spec.md §4.7 "Library load failure
// surfaces as LoadFailure carrying the OS error text").
type Loader interface {
	Load(path string) (Library, error)
}

// MapLibrary is a reference Library backed by a plain Go map, standing
// in for an OS-loaded shared object the way backend/cpuref stands in
// for a concrete device backend. Used by this package's own tests and
// by any caller content to drive an in-process "library" (e.g. a
// generated Go package compiled directly into the test binary) rather
// than an actual dynamic library.
type MapLibrary struct {
	symbols map[string]Symbol
	closed  bool
}

// NewMapLibrary builds a MapLibrary over the given symbol table.
func NewMapLibrary(symbols map[string]Symbol) *MapLibrary {
	return &MapLibrary{symbols: symbols}
}

func (l *MapLibrary) Symbol(name string) (Symbol, error) {
	s, ok := l.symbols[name]
	if !ok {
		return nil, wrapf(ErrSymbolMissing, "symbol %q", name)
	}
	return s, nil
}

func (l *MapLibrary) OptionalSymbol(name string) (Symbol, bool) {
	s, ok := l.symbols[name]
	return s, ok
}

func (l *MapLibrary) Close() error {
	l.closed = true
	return nil
}

// MapLoader resolves paths against a fixed registry of pre-built
// MapLibrary instances, the reference Loader implementation.
type MapLoader struct {
	libraries map[string]*MapLibrary
}

// NewMapLoader builds a MapLoader over the given path→library registry.
func NewMapLoader(libraries map[string]*MapLibrary) *MapLoader {
	return &MapLoader{libraries: libraries}
}

func (l *MapLoader) Load(path string) (Library, error) {
	lib, ok := l.libraries[path]
	if !ok {
		return nil, wrapf(ErrLoadFailure, "no such library %q", path)
	}
	return lib, nil
}

var _ Library = (*MapLibrary)(nil)
var _ Loader = (*MapLoader)(nil)

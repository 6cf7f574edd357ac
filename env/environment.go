// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package env implements the layered name-resolution stack the kernel
// emitter opens over a merged group before invoking the transpiler on
// each of its code fragments (spec.md §4.5): a plain Environment (the
// spec's EnvironmentExternalBase), a merged-group field layer
// (EnvironmentGroupMergedField), and a local-variable caching layer
// (EnvironmentLocalVarCache). All three implement dsl.Scope, so any of
// them can be handed straight to dsl.TypeChecker.Check or dsl.Printer.
package env

import (
	"errors"
	"fmt"

	"github.com/goki/snngen/dsl"
)

// ErrUnknownIdentifier is returned by Resolve (never by Lookup, which
// is the dsl.Scope-shaped "found, ok" query) when a caller explicitly
// demands that a name exist (spec.md §4.5 "an unresolved name aborts
// with UnknownIdentifier").
var ErrUnknownIdentifier = errors.New("env: unknown identifier")

// Declaration is one line of source text an Environment layer needs
// emitted before the code that depends on it — a field-cache seed, a
// local-var declaration, or a scope-exit flush (spec.md §4.5 "adding a
// binding returns an initialiser list").
type Declaration struct {
	Text string
}

// Environment is a single stack frame of name bindings, falling back
// to an outer Scope on lookup miss (spec.md §4.5 "inner-first, falling
// back to the outer environment"). It is the concrete equivalent of
// the spec's abstract EnvironmentExternalBase: every richer layer in
// this package embeds one.
type Environment struct {
	parent   dsl.Scope
	bindings map[string]dsl.Binding
	order    []string
}

// NewEnvironment opens a fresh frame; parent may be nil for the
// outermost (model-global) scope.
func NewEnvironment(parent dsl.Scope) *Environment {
	return &Environment{parent: parent, bindings: map[string]dsl.Binding{}}
}

// Add registers (or replaces) a plain binding in this frame.
func (e *Environment) Add(name string, b dsl.Binding) {
	if _, exists := e.bindings[name]; !exists {
		e.order = append(e.order, name)
	}
	e.bindings[name] = b
}

// Lookup implements dsl.Scope: this frame's own bindings first, then
// the parent chain.
func (e *Environment) Lookup(name string) (dsl.Binding, bool) {
	if b, ok := e.bindings[name]; ok {
		return b, true
	}
	if e.parent != nil {
		return e.parent.Lookup(name)
	}
	return dsl.Binding{}, false
}

// Resolve is Lookup with the spec's UnknownIdentifier failure mode for
// callers (outside the type-checker) that need a hard error rather
// than an ok-bool, e.g. the kernel emitter resolving a named target
// variable before it ever reaches the transpiler.
func (e *Environment) Resolve(name string) (dsl.Binding, error) {
	b, ok := e.Lookup(name)
	if !ok {
		return dsl.Binding{}, fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
	}
	return b, nil
}

// Names returns the names bound directly in this frame, in the order
// they were added (not including the parent chain).
func (e *Environment) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Push opens a child frame nested inside e.
func (e *Environment) Push() *Environment { return NewEnvironment(e) }

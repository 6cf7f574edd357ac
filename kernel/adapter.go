// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel assembles complete neuron-update, presynaptic-update
// and init-pass kernel source from a model.Model's merged groups,
// opening an env.Environment over each group's fields and invoking the
// dsl transpiler on every code fragment involved (spec.md §4.6).
package kernel

import (
	"fmt"

	"github.com/goki/snngen/env"
	"github.com/goki/snngen/model"
)

// neuronDelayAdapter is the env.DelayAdapter for a neuron group's own
// state variables: reads use the read-slot offset, writes use the
// write-slot offset, both expressed in terms of a ring-buffer pointer
// (spec.md §4.1 "the read index is (queuePtr + numSlots - delaySteps)
// mod numSlots; the write index is queuePtr"). Variables not marked
// delayed by Finalise collapse to a plain, unslotted index.
type neuronDelayAdapter struct {
	group *model.NeuronGroup
}

func (a *neuronDelayAdapter) ReadExpr(name string) string {
	if a.group.NeedsSpikeQueue() && a.group.IsVarDelayed(name) {
		return fmt.Sprintf("group.%s[readDelaySlot * group.numNeurons + idx]", name)
	}
	return fmt.Sprintf("group.%s[idx]", name)
}

func (a *neuronDelayAdapter) WriteExpr(name string) string {
	if a.group.NeedsSpikeQueue() && a.group.IsVarDelayed(name) {
		return fmt.Sprintf("group.%s[writeDelaySlot * group.numNeurons + idx]", name)
	}
	return fmt.Sprintf("group.%s[idx]", name)
}

var _ env.DelayAdapter = (*neuronDelayAdapter)(nil)

// staticAdapter is an env.DelayAdapter for state that is never delayed
// (synapse pre/post vars, current-source vars): reads and writes both
// target the same plain index.
type staticAdapter struct {
	groupExpr, indexExpr string
}

func (a *staticAdapter) ReadExpr(name string) string {
	return fmt.Sprintf("%s.%s[%s]", a.groupExpr, name, a.indexExpr)
}

func (a *staticAdapter) WriteExpr(name string) string {
	return fmt.Sprintf("%s.%s[%s]", a.groupExpr, name, a.indexExpr)
}

var _ env.DelayAdapter = (*staticAdapter)(nil)

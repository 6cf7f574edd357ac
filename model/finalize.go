// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
)

// delaySuffixes are the identifier suffixes Finalise scans consumer
// code for to decide whether a variable requires a delay queue
// (spec.md §4.1).
var delaySuffixes = []string{"_pre", "_post"}

// delayBareNames are bare identifiers (no suffix needed) that always
// imply their owning group needs delay-queue bookkeeping when
// referenced from the other side of a synapse group, mapped to the
// spike-time state flag that identifier requires (spec.md §4.7's
// "sT, prevST, seT, prevSET as needed").
var delayBareNames = map[string]func(*NeuronGroup){
	"st_pre":         func(g *NeuronGroup) { g.needsSpikes = true },
	"st_post":        func(g *NeuronGroup) { g.needsSpikes = true },
	"prev_st_pre":    func(g *NeuronGroup) { g.needsPrevSpikes = true },
	"prev_st_post":   func(g *NeuronGroup) { g.needsPrevSpikes = true },
	"set_pre":        func(g *NeuronGroup) { g.needsSpikeEvents = true },
	"set_post":       func(g *NeuronGroup) { g.needsSpikeEvents = true },
	"prev_set_pre":   func(g *NeuronGroup) { g.needsPrevSpikeEvt = true },
	"prev_set_post":  func(g *NeuronGroup) { g.needsPrevSpikeEvt = true },
}

// Finalise computes every derived parameter, finalises variable
// initialisers, marks which neuron-group variables require a delay
// queue, computes each group's numDelaySlots, and determines
// dendritic-delay requirements. After it returns successfully the
// Model is frozen: any further Add*/Set* call fails with ErrFrozen
// (spec.md §4.1). Finalise is idempotent: a second call on an already-
// frozen model is a no-op (spec.md §8 "Round-trip / idempotence").
func (m *Model) Finalise() error {
	if m.frozen {
		return nil
	}

	if err := m.evalDerivedParams(); err != nil {
		return err
	}
	m.computeDelayRequirements()
	if err := m.computeDendriticDelay(); err != nil {
		return err
	}
	if err := m.checkDelayInvariant(); err != nil {
		return err
	}

	for _, g := range m.neuronOrder {
		g.finalised = true
	}
	for _, sg := range m.synapseOrder {
		sg.finalised = true
	}
	m.frozen = true
	return nil
}

func evalGroup(params ParamMap, derived []DerivedParam, dt float64) {
	for i := range derived {
		derived[i].value = derived[i].Func(params, dt)
		derived[i].filled = true
	}
}

func (m *Model) evalDerivedParams() error {
	for _, g := range m.neuronOrder {
		evalGroup(g.Params, g.DerivedParams, m.dt)
	}
	for _, sg := range m.synapseOrder {
		evalGroup(sg.WUM.Params, sg.WUM.DerivedParams, m.dt)
		evalGroup(sg.PSM.Params, sg.PSM.DerivedParams, m.dt)
	}
	for _, cs := range m.currentSourceOrder {
		evalGroup(cs.Params, cs.DerivedParams, m.dt)
	}
	for _, cu := range m.customUpdateOrder {
		evalGroup(cu.Params, cu.DerivedParams, m.dt)
	}
	for _, ccu := range m.customConnUpdateOrder {
		evalGroup(ccu.Params, ccu.DerivedParams, m.dt)
	}
	return nil
}

// computeDelayRequirements implements spec.md §4.1's delay-queue
// scan: for every neuron group, walk the code of every synapse group
// attached to it (as source or target) looking for "<var>_pre",
// "<var>_post", "st_pre", "prev_st_pre", "st_post", "prev_st_post",
// "set_pre", "prev_set_pre"; any hit marks the corresponding var (or
// the bare spike/spike-event state) as requiring a delay queue. It
// also computes numDelaySlots = 1 + max(axonalDelay, backPropDelay)
// over all attached synapse groups (spec.md §3's invariant).
func (m *Model) computeDelayRequirements() {
	for _, g := range m.neuronOrder {
		g.delayedVars = map[string]bool{}
		maxSlots := 1

		for _, sg := range g.outgoing {
			if sg.AxonalDelaySteps+1 > maxSlots {
				maxSlots = sg.AxonalDelaySteps + 1
			}
			scanConsumerCode(g, sg.allPreFacingCode())
		}
		for _, sg := range g.incoming {
			if sg.BackPropDelaySteps+1 > maxSlots {
				maxSlots = sg.BackPropDelaySteps + 1
			}
			scanConsumerCode(g, sg.allPostFacingCode())
		}
		g.numDelaySlots = maxSlots
	}
}

// allPreFacingCode returns the WUM fragments that reference the
// source-side ("_pre") neuron group state.
func (sg *SynapseGroup) allPreFacingCode() []CodeFragment {
	return []CodeFragment{sg.WUM.EventThresholdCode, sg.WUM.EventCode, sg.WUM.SimCode,
		sg.WUM.SynapseDynamicsCode, sg.WUM.PreSpikeCode, sg.WUM.PreDynamicsCode}
}

// allPostFacingCode returns the WUM fragments that reference the
// target-side ("_post") neuron group state.
func (sg *SynapseGroup) allPostFacingCode() []CodeFragment {
	return []CodeFragment{sg.WUM.SimCode, sg.WUM.PostLearnCode, sg.WUM.SynapseDynamicsCode,
		sg.WUM.PostSpikeCode, sg.WUM.PostDynamicsCode}
}

func scanConsumerCode(g *NeuronGroup, frags []CodeFragment) {
	for _, f := range frags {
		if f.Identity == "" {
			continue
		}
		for _, id := range f.Tokens.Identifiers() {
			if mark, ok := delayBareNames[id]; ok {
				mark(g)
			}
			for _, v := range g.Vars {
				for _, suf := range delaySuffixes {
					if id == v.Name+suf {
						g.delayedVars[v.Name] = true
					}
				}
			}
		}
	}
}

// computeDendriticDelay implements spec.md §4.1's dendritic-delay
// rule: if any WUM code references addToPostDelay, the synapse group
// requires a dendritic delay buffer sized
// maxDendriticDelayTimesteps*numPostNeurons*batchSize.
func (m *Model) computeDendriticDelay() error {
	for _, sg := range m.synapseOrder {
		refs := referencesIdentifier("addToPostDelay",
			sg.WUM.SimCode.Tokens, sg.WUM.EventCode.Tokens, sg.WUM.SynapseDynamicsCode.Tokens)
		if !refs {
			continue
		}
		sg.needsDendriticDelay = true
		if sg.MaxDendriticDelayTimesteps < 1 {
			return fmt.Errorf("%w: synapse group %q: addToPostDelay used but maxDendriticDelayTimesteps < 1", ErrIncompatibleInit, sg.name)
		}
	}
	return nil
}

// checkDelayInvariant verifies spec.md §8's invariant: numDelaySlots
// >= 1 + max(axonalDelay over outgoing SGs, backPropDelay over
// incoming SGs). computeDelayRequirements already establishes this by
// construction; this is a defensive re-check.
func (m *Model) checkDelayInvariant() error {
	for _, g := range m.neuronOrder {
		need := 1
		for _, sg := range g.outgoing {
			if sg.AxonalDelaySteps+1 > need {
				need = sg.AxonalDelaySteps + 1
			}
		}
		for _, sg := range g.incoming {
			if sg.BackPropDelaySteps+1 > need {
				need = sg.BackPropDelaySteps + 1
			}
		}
		if g.numDelaySlots < need {
			return fmt.Errorf("neuron group %q: numDelaySlots %d below required %d", g.name, g.numDelaySlots, need)
		}
	}
	return nil
}

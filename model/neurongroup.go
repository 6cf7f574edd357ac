// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "github.com/goki/snngen/sltype"

// NeuronGroup is a named population of NumNeurons neurons simulated
// with one neuron model (spec.md §3). Groups are owned exclusively by
// the Model arena (spec.md §3 "Ownership lifecycle"); callers only
// ever see a *NeuronGroup handed back by Model.AddNeuronPopulation,
// whose address is stable for the arena's lifetime.
type NeuronGroup struct {
	name       string
	numNeurons int

	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam

	SimCode       CodeFragment
	ThresholdCode CodeFragment // empty Identity means "no threshold"
	ResetCode     CodeFragment // empty Identity means "no reset"

	AutoRefractoryRequired bool
	AdditionalInputVars    []VarInit

	defaultVarLocation VarLocation

	// derived by Finalise:
	numDelaySlots      int
	needsSpikes        bool
	needsPrevSpikes    bool
	needsSpikeEvents   bool
	needsPrevSpikeEvt  bool
	delayedVars        map[string]bool
	finalised          bool

	// incoming/outgoing synapse groups, recorded by AddSynapsePopulation
	// so Finalise can compute numDelaySlots and spike requirements.
	outgoing []*SynapseGroup
	incoming []*SynapseGroup
	// current sources injecting into this group.
	currentSources []*CurrentSource
}

// Name returns the group's unique name.
func (g *NeuronGroup) Name() string { return g.name }

// NumNeurons returns the population size.
func (g *NeuronGroup) NumNeurons() int { return g.numNeurons }

// NumDelaySlots returns the ring-buffer depth computed by Finalise; it
// is 1 (no delay) until Finalise has run, or if no synapse group
// attaches any delay.
func (g *NeuronGroup) NumDelaySlots() int { return g.numDelaySlots }

// NeedsSpikeQueue reports whether any referenced code requires a delay
// queue for spikes at all (numDelaySlots > 1).
func (g *NeuronGroup) NeedsSpikeQueue() bool { return g.numDelaySlots > 1 }

// NeedsSpikeTime, NeedsPrevSpikeTime, NeedsSpikeEventTime and
// NeedsPrevSpikeEventTime report whether Finalise's delay-queue scan
// found a reference to "st_pre"/"st_post", "prev_st_pre"/"prev_st_post",
// "set_pre"/"set_post" or "prev_set_pre"/"prev_set_post" respectively in
// any attached synapse group's code — i.e. whether the sT, prevST, seT
// or prevSET array (spec.md §4.7) must be allocated for this group.
func (g *NeuronGroup) NeedsSpikeTime() bool          { return g.needsSpikes }
func (g *NeuronGroup) NeedsPrevSpikeTime() bool       { return g.needsPrevSpikes }
func (g *NeuronGroup) NeedsSpikeEventTime() bool      { return g.needsSpikeEvents }
func (g *NeuronGroup) NeedsPrevSpikeEventTime() bool  { return g.needsPrevSpikeEvt }

// IsVarDelayed reports whether varName requires a delay queue, as
// determined by Finalise scanning consumer code for <var>_pre,
// <var>_post, etc. (spec.md §4.1).
func (g *NeuronGroup) IsVarDelayed(varName string) bool {
	if g.delayedVars == nil {
		return false
	}
	return g.delayedVars[varName]
}

// Outgoing returns the synapse groups sourced from this neuron group,
// in declaration order — used by the kernel emitter to walk
// presynaptic-dynamics code and fused pre-output accumulation.
func (g *NeuronGroup) Outgoing() []*SynapseGroup { return g.outgoing }

// Incoming returns the synapse groups targeting this neuron group, in
// declaration order — used by the kernel emitter to walk postsynaptic
// dynamics code and fused PS apply-input/decay.
func (g *NeuronGroup) Incoming() []*SynapseGroup { return g.incoming }

// CurrentSources returns the current sources injecting into this
// neuron group, in declaration order.
func (g *NeuronGroup) CurrentSources() []*CurrentSource { return g.currentSources }

// Param looks up a parameter's frozen value.
func (g *NeuronGroup) Param(name string) (float64, bool) {
	v, ok := g.Params[name]
	return v, ok
}

// DerivedParamValue returns a derived parameter's value; valid only
// after Finalise.
func (g *NeuronGroup) DerivedParamValue(name string) (float64, bool) {
	for _, dp := range g.DerivedParams {
		if dp.Name == name && dp.filled {
			return dp.value, true
		}
	}
	return 0, false
}

// NeuronGroupConfig is the declarative description passed to
// Model.AddNeuronPopulation.
type NeuronGroupConfig struct {
	NumNeurons             int
	Params                 ParamMap
	DerivedParams          []DerivedParam
	Vars                   []VarInit
	ExtraGlobalParams      []ExtraGlobalParam
	SimCode                string
	ThresholdCode          string // empty: no spiking threshold
	ResetCode              string // empty: no reset
	AutoRefractoryRequired bool
	AdditionalInputVars    []VarInit
	VarLocation            VarLocation
}

func (m *Model) addNeuronPopulation(name string, cfg NeuronGroupConfig) (*NeuronGroup, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, wrapf(ErrDuplicateName, "neuron group name must be non-empty")
	}
	if _, exists := m.neuronGroups[name]; exists {
		return nil, wrapf(ErrDuplicateName, "neuron group %q", name)
	}

	g := &NeuronGroup{
		name:                   name,
		numNeurons:             cfg.NumNeurons,
		Params:                 cfg.Params.Clone(),
		DerivedParams:          cfg.DerivedParams,
		Vars:                   cfg.Vars,
		ExtraGlobalParams:      cfg.ExtraGlobalParams,
		AutoRefractoryRequired: cfg.AutoRefractoryRequired,
		AdditionalInputVars:    cfg.AdditionalInputVars,
		defaultVarLocation:     cfg.VarLocation,
		numDelaySlots:          1,
	}
	var err error
	if g.SimCode, err = NewCodeFragment(name+" sim code", cfg.SimCode); err != nil {
		return nil, err
	}
	if cfg.ThresholdCode != "" {
		if g.ThresholdCode, err = NewCodeFragment(name+" threshold condition code", cfg.ThresholdCode); err != nil {
			return nil, err
		}
	}
	if cfg.ResetCode != "" {
		if g.ResetCode, err = NewCodeFragment(name+" reset code", cfg.ResetCode); err != nil {
			return nil, err
		}
	}
	for i := range g.Vars {
		if g.Vars[i].Kind == sltype.KindInvalid {
			g.Vars[i].Kind = scalarKind(m.precision)
		}
		if g.Vars[i].Init.Kind == InitCode {
			ts, serr := scanFragment(name+" var "+g.Vars[i].Name+" init code", g.Vars[i].Init.Code)
			if serr != nil {
				return nil, serr
			}
			g.Vars[i].Init.tokens = ts
		}
	}

	m.neuronGroups[name] = g
	m.neuronOrder = append(m.neuronOrder, g)
	return g, nil
}

// scalarKind resolves a model precision to the sltype Kind used for
// "scalar"-typed variables declared without an explicit kind.
func scalarKind(_ Precision) sltype.Kind { return sltype.KindScalar }

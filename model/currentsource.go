// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// CurrentSource is a per-neuron injection attached to a NeuronGroup,
// not sourced from a synapse (spec.md §3).
type CurrentSource struct {
	name   string
	target *NeuronGroup

	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	InjectionCode     CodeFragment
}

func (cs *CurrentSource) Name() string          { return cs.name }
func (cs *CurrentSource) Target() *NeuronGroup  { return cs.target }

// CurrentSourceConfig is the declarative description passed to
// Model.AddCurrentSource.
type CurrentSourceConfig struct {
	Target            string
	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	InjectionCode     string
}

func (m *Model) addCurrentSource(name string, cfg CurrentSourceConfig) (*CurrentSource, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, wrapf(ErrDuplicateName, "current source name must be non-empty")
	}
	if _, exists := m.currentSources[name]; exists {
		return nil, wrapf(ErrDuplicateName, "current source %q", name)
	}
	tgt, ok := m.neuronGroups[cfg.Target]
	if !ok {
		return nil, wrapf(ErrUnknownTargetVar, "current source %q: unknown target neuron group %q", name, cfg.Target)
	}

	cs := &CurrentSource{
		name:              name,
		target:            tgt,
		Params:            cfg.Params.Clone(),
		DerivedParams:     cfg.DerivedParams,
		Vars:              cfg.Vars,
		ExtraGlobalParams: cfg.ExtraGlobalParams,
	}
	var err error
	if cs.InjectionCode, err = NewCodeFragment(name+" injection code", cfg.InjectionCode); err != nil {
		return nil, err
	}

	m.currentSources[name] = cs
	m.currentSourceOrder = append(m.currentSourceOrder, cs)
	tgt.currentSources = append(tgt.currentSources, cs)
	return cs, nil
}

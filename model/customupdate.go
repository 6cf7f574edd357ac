// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// VarReference points a CustomUpdate at a variable living on some
// other already-declared group, carrying the access mode it uses that
// variable with.
type VarReference struct {
	GroupName string
	VarName   string
	Access    VarAccess
}

// CustomUpdate is a user-defined pass executed out-of-band from
// neuron/synapse updates, within a named update group (spec.md §3).
type CustomUpdate struct {
	name        string
	updateGroup string

	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	VarReferences     []VarReference
	UpdateCode        CodeFragment
}

func (cu *CustomUpdate) Name() string        { return cu.name }
func (cu *CustomUpdate) UpdateGroup() string { return cu.updateGroup }

// CustomUpdateConfig is the declarative description passed to
// Model.AddCustomUpdate.
type CustomUpdateConfig struct {
	UpdateGroup       string
	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	VarReferences     []VarReference
	UpdateCode        string
}

func (m *Model) addCustomUpdate(name string, cfg CustomUpdateConfig) (*CustomUpdate, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, wrapf(ErrDuplicateName, "custom update name must be non-empty")
	}
	if _, exists := m.customUpdates[name]; exists {
		return nil, wrapf(ErrDuplicateName, "custom update %q", name)
	}
	for _, ref := range cfg.VarReferences {
		if !m.hasGroupNamed(ref.GroupName) {
			return nil, wrapf(ErrUnknownTargetVar, "custom update %q: unknown referenced group %q", name, ref.GroupName)
		}
	}

	cu := &CustomUpdate{
		name:              name,
		updateGroup:       cfg.UpdateGroup,
		Params:            cfg.Params.Clone(),
		DerivedParams:     cfg.DerivedParams,
		Vars:              cfg.Vars,
		ExtraGlobalParams: cfg.ExtraGlobalParams,
		VarReferences:     cfg.VarReferences,
	}
	var err error
	if cu.UpdateCode, err = NewCodeFragment(name+" update code", cfg.UpdateCode); err != nil {
		return nil, err
	}

	m.customUpdates[name] = cu
	m.customUpdateOrder = append(m.customUpdateOrder, cu)
	return cu, nil
}

// CustomConnectivityUpdate is a user-defined pass over a synapse
// group's connectivity (row/col remap, pruning, structural plasticity),
// with an optional host-side update step (SPEC_FULL.md "Supplemented
// features", grounded on GeNN's customConnectivityUpdateModels).
type CustomConnectivityUpdate struct {
	name            string
	synapseGroup    *SynapseGroup
	updateGroup     string

	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	PreVars           []VarInit
	PostVars          []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	VarReferences     []VarReference

	RowUpdateCode  CodeFragment
	HostUpdateCode CodeFragment // empty Identity: no host-side step
}

func (ccu *CustomConnectivityUpdate) Name() string               { return ccu.name }
func (ccu *CustomConnectivityUpdate) SynapseGroup() *SynapseGroup { return ccu.synapseGroup }
func (ccu *CustomConnectivityUpdate) UpdateGroup() string         { return ccu.updateGroup }

// CustomConnectivityUpdateConfig is the declarative description passed
// to Model.AddCustomConnectivityUpdate.
type CustomConnectivityUpdateConfig struct {
	SynapseGroup      string
	UpdateGroup       string
	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	PreVars           []VarInit
	PostVars          []VarInit
	ExtraGlobalParams []ExtraGlobalParam
	VarReferences     []VarReference
	RowUpdateCode     string
	HostUpdateCode    string
}

func (m *Model) addCustomConnectivityUpdate(name string, cfg CustomConnectivityUpdateConfig) (*CustomConnectivityUpdate, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, wrapf(ErrDuplicateName, "custom connectivity update name must be non-empty")
	}
	if _, exists := m.customConnUpdates[name]; exists {
		return nil, wrapf(ErrDuplicateName, "custom connectivity update %q", name)
	}
	sg, ok := m.synapseGroups[cfg.SynapseGroup]
	if !ok {
		return nil, wrapf(ErrUnknownTargetVar, "custom connectivity update %q: unknown synapse group %q", name, cfg.SynapseGroup)
	}

	ccu := &CustomConnectivityUpdate{
		name:              name,
		synapseGroup:      sg,
		updateGroup:       cfg.UpdateGroup,
		Params:            cfg.Params.Clone(),
		DerivedParams:     cfg.DerivedParams,
		Vars:              cfg.Vars,
		PreVars:           cfg.PreVars,
		PostVars:          cfg.PostVars,
		ExtraGlobalParams: cfg.ExtraGlobalParams,
		VarReferences:     cfg.VarReferences,
	}
	var err error
	if ccu.RowUpdateCode, err = NewCodeFragment(name+" row update code", cfg.RowUpdateCode); err != nil {
		return nil, err
	}
	if cfg.HostUpdateCode != "" {
		if ccu.HostUpdateCode, err = NewCodeFragment(name+" host update code", cfg.HostUpdateCode); err != nil {
			return nil, err
		}
	}

	m.customConnUpdates[name] = ccu
	m.customConnUpdateOrder = append(m.customConnUpdateOrder, ccu)
	return ccu, nil
}

func (m *Model) hasGroupNamed(name string) bool {
	if _, ok := m.neuronGroups[name]; ok {
		return true
	}
	if _, ok := m.synapseGroups[name]; ok {
		return true
	}
	return false
}

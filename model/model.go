// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model implements the spiking-neural-network model
// intermediate representation: NeuronGroup, SynapseGroup,
// CurrentSource, CustomUpdate and CustomConnectivityUpdate objects,
// their validation, and the Finalise pass that computes derived
// parameters and delay-queue requirements (spec.md §3, §4.1).
package model

import (
	"github.com/google/uuid"
)

// Model is the exclusive owner of every IR object built against it
// (spec.md §3 "Ownership lifecycle": "the Model IR exclusively owns
// groups ... erased only at model destruction"). Groups refer to each
// other by raw pointer into this arena rather than by value, so a
// SynapseGroup's Source()/Target() stay valid for as long as the Model
// itself does (spec.md §9's cyclic-reference design note).
type Model struct {
	Name string
	BuildID string

	precision     Precision
	timePrecision Precision
	dt            float64
	batchSize     int
	seed          uint32

	defaultVarLocation            VarLocation
	defaultExtraGlobalParamLoc    VarLocation
	defaultSparseConnectivityLoc  VarLocation
	defaultNarrowSparseInd        bool

	fusePostsynapticModels        bool
	fusePrePostWeightUpdateModels bool

	neuronGroups  map[string]*NeuronGroup
	neuronOrder   []*NeuronGroup
	synapseGroups map[string]*SynapseGroup
	synapseOrder  []*SynapseGroup
	currentSources      map[string]*CurrentSource
	currentSourceOrder  []*CurrentSource
	customUpdates       map[string]*CustomUpdate
	customUpdateOrder   []*CustomUpdate
	customConnUpdates      map[string]*CustomConnectivityUpdate
	customConnUpdateOrder  []*CustomConnectivityUpdate

	frozen bool
}

// NewModel constructs an empty Model with the spec's documented
// defaults: float precision, dt=1.0, batchSize=1, seed=0 (auto),
// default locations HOST_DEVICE.
func NewModel(name string) *Model {
	return &Model{
		Name:          name,
		BuildID:       uuid.NewString(),
		precision:     PrecisionFloat,
		timePrecision: PrecisionFloat,
		dt:            1.0,
		batchSize:     1,

		defaultVarLocation:           HostDevice,
		defaultExtraGlobalParamLoc:   HostDevice,
		defaultSparseConnectivityLoc: HostDevice,

		neuronGroups:       map[string]*NeuronGroup{},
		synapseGroups:      map[string]*SynapseGroup{},
		currentSources:     map[string]*CurrentSource{},
		customUpdates:      map[string]*CustomUpdate{},
		customConnUpdates:  map[string]*CustomConnectivityUpdate{},
	}
}

func (m *Model) checkMutable() error {
	if m.frozen {
		return wrapf(ErrFrozen, "model %q", m.Name)
	}
	return nil
}

// AddNeuronPopulation declares a new NeuronGroup.
func (m *Model) AddNeuronPopulation(name string, cfg NeuronGroupConfig) (*NeuronGroup, error) {
	return m.addNeuronPopulation(name, cfg)
}

// AddSynapsePopulation declares a new SynapseGroup.
func (m *Model) AddSynapsePopulation(name string, cfg SynapseGroupConfig) (*SynapseGroup, error) {
	return m.addSynapsePopulation(name, cfg)
}

// AddCurrentSource declares a new CurrentSource.
func (m *Model) AddCurrentSource(name string, cfg CurrentSourceConfig) (*CurrentSource, error) {
	return m.addCurrentSource(name, cfg)
}

// AddCustomUpdate declares a new CustomUpdate.
func (m *Model) AddCustomUpdate(name string, cfg CustomUpdateConfig) (*CustomUpdate, error) {
	return m.addCustomUpdate(name, cfg)
}

// AddCustomConnectivityUpdate declares a new CustomConnectivityUpdate.
func (m *Model) AddCustomConnectivityUpdate(name string, cfg CustomConnectivityUpdateConfig) (*CustomConnectivityUpdate, error) {
	return m.addCustomConnectivityUpdate(name, cfg)
}

// SetPrecision sets the numeric type of "scalar".
func (m *Model) SetPrecision(p Precision) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.precision = p
	return nil
}

// SetTimePrecision sets the numeric type of "t", "sT", etc.
func (m *Model) SetTimePrecision(p Precision) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.timePrecision = p
	return nil
}

// SetDT sets the integration step.
func (m *Model) SetDT(dt float64) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.dt = dt
	return nil
}

// SetBatchSize sets the batch replication factor (must be >= 1).
func (m *Model) SetBatchSize(n int) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if n < 1 {
		n = 1
	}
	m.batchSize = n
	return nil
}

// SetSeed sets the deterministic RNG seed (0 means auto).
func (m *Model) SetSeed(seed uint32) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.seed = seed
	return nil
}

func (m *Model) SetDefaultVarLocation(l VarLocation) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.defaultVarLocation = l
	return nil
}

func (m *Model) SetDefaultExtraGlobalParamLocation(l VarLocation) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.defaultExtraGlobalParamLoc = l
	return nil
}

func (m *Model) SetDefaultSparseConnectivityLocation(l VarLocation) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.defaultSparseConnectivityLoc = l
	return nil
}

// SetFusePostsynapticModels enables/disables PS-model fusion.
func (m *Model) SetFusePostsynapticModels(on bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.fusePostsynapticModels = on
	return nil
}

// SetFusePrePostWeightUpdateModels enables/disables WUM pre/post fusion.
func (m *Model) SetFusePrePostWeightUpdateModels(on bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.fusePrePostWeightUpdateModels = on
	return nil
}

// Precision, TimePrecision, DT, BatchSize, Seed are read accessors used
// by hashing, merge and kernel emission.
func (m *Model) Precision() Precision         { return m.precision }
func (m *Model) TimePrecision() Precision     { return m.timePrecision }
func (m *Model) DT() float64                  { return m.dt }
func (m *Model) BatchSize() int               { return m.batchSize }
func (m *Model) Seed() uint32                 { return m.seed }
func (m *Model) FusePostsynapticModels() bool { return m.fusePostsynapticModels }
func (m *Model) FusePrePostWeightUpdateModels() bool { return m.fusePrePostWeightUpdateModels }
func (m *Model) IsFrozen() bool               { return m.frozen }

// DefaultVarLocation, DefaultExtraGlobalParamLocation and
// DefaultSparseConnectivityLocation return the model-level array
// placement defaults (spec.md §6's configuration options), consulted
// by the runtime's allocation pass for any array with no more specific
// per-group override.
func (m *Model) DefaultVarLocation() VarLocation               { return m.defaultVarLocation }
func (m *Model) DefaultExtraGlobalParamLocation() VarLocation   { return m.defaultExtraGlobalParamLoc }
func (m *Model) DefaultSparseConnectivityLocation() VarLocation { return m.defaultSparseConnectivityLoc }

// NeuronGroups returns all neuron groups in declaration order.
func (m *Model) NeuronGroups() []*NeuronGroup { return m.neuronOrder }

// SynapseGroups returns all synapse groups in declaration order.
func (m *Model) SynapseGroups() []*SynapseGroup { return m.synapseOrder }

// CurrentSources returns all current sources in declaration order.
func (m *Model) CurrentSources() []*CurrentSource { return m.currentSourceOrder }

// CustomUpdates returns all custom updates in declaration order.
func (m *Model) CustomUpdates() []*CustomUpdate { return m.customUpdateOrder }

// CustomConnectivityUpdates returns all custom connectivity updates in
// declaration order.
func (m *Model) CustomConnectivityUpdates() []*CustomConnectivityUpdate {
	return m.customConnUpdateOrder
}

// NeuronGroup looks up a neuron group by name.
func (m *Model) NeuronGroup(name string) (*NeuronGroup, bool) {
	g, ok := m.neuronGroups[name]
	return g, ok
}

// SynapseGroup looks up a synapse group by name.
func (m *Model) SynapseGroup(name string) (*SynapseGroup, bool) {
	g, ok := m.synapseGroups[name]
	return g, ok
}

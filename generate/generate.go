// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package generate drives the model-to-kernel-source pipeline end to
// end (spec.md §4's Model -> Finalise -> merge -> kernel emission), the
// way the teacher's process.go drives Go-to-HLSL translation: apply a
// project's Config to a freshly-built *model.Model, finalise it,
// partition/fuse its groups, emit one source file per merged group, and
// hand the result back as an in-memory filename->text map for the
// caller to write out. This package has no concrete "entry point"
// binary of its own; cmd/snngen (and any user's own main package) calls
// Run directly, the same way callers of go/format import it as
// a library rather than invoke a gofmt binary.
package generate

import (
	"fmt"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/kernel"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// Config mirrors spec.md §6's model-level configuration options, the
// project-file shape cmd/snngen reads from a project's snngen.toml via
// github.com/BurntSushi/toml.
type Config struct {
	Precision     string `toml:"precision"`
	TimePrecision string `toml:"timePrecision"`
	DT            float64 `toml:"dt"`
	BatchSize     int    `toml:"batchSize"`
	Seed          uint32 `toml:"seed"`

	DefaultVarLocation           string `toml:"defaultVarLocation"`
	DefaultExtraGlobalParamLoc   string `toml:"defaultExtraGlobalParamLocation"`
	DefaultSparseConnectivityLoc string `toml:"defaultSparseConnectivityLocation"`

	FusePostsynapticModels        bool `toml:"fusePostsynapticModels"`
	FusePrePostWeightUpdateModels bool `toml:"fusePrePostWeightUpdateModels"`

	OutDir string `toml:"outDir"`
	Timing bool   `toml:"timing"`
}

// DefaultConfig matches Model's own NewModel defaults (spec.md §6).
func DefaultConfig() Config {
	return Config{
		Precision:     "float",
		TimePrecision: "float",
		DT:            1.0,
		BatchSize:     1,
		OutDir:        "generated",
	}
}

// Apply sets m's configuration fields from cfg; m must not yet be
// frozen (spec.md §4.1 "Add*/Set* fail once Finalise has run").
func (cfg Config) Apply(m *model.Model) error {
	precision, err := sltype.ParsePrecision(cfg.Precision)
	if err != nil {
		return err
	}
	timePrecision, err := sltype.ParsePrecision(cfg.TimePrecision)
	if err != nil {
		return err
	}
	varLoc, err := model.ParseVarLocation(cfg.DefaultVarLocation)
	if err != nil {
		return err
	}
	egpLoc, err := model.ParseVarLocation(cfg.DefaultExtraGlobalParamLoc)
	if err != nil {
		return err
	}
	connLoc, err := model.ParseVarLocation(cfg.DefaultSparseConnectivityLoc)
	if err != nil {
		return err
	}

	for _, step := range []func() error{
		func() error { return m.SetPrecision(precision) },
		func() error { return m.SetTimePrecision(timePrecision) },
		func() error { return m.SetDT(cfg.DT) },
		func() error { return m.SetBatchSize(cfg.BatchSize) },
		func() error { return m.SetSeed(cfg.Seed) },
		func() error { return m.SetDefaultVarLocation(varLoc) },
		func() error { return m.SetDefaultExtraGlobalParamLocation(egpLoc) },
		func() error { return m.SetDefaultSparseConnectivityLocation(connLoc) },
		func() error { return m.SetFusePostsynapticModels(cfg.FusePostsynapticModels) },
		func() error { return m.SetFusePrePostWeightUpdateModels(cfg.FusePrePostWeightUpdateModels) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ModelBuilder constructs a fresh, unfinalised model. Callers (cmd/
// snngen's demo, or a user's own main package) supply one.
type ModelBuilder func() (*model.Model, error)

// Run applies cfg to the model build returns, finalises it, partitions
// and fuses its synapse groups, and emits kernel source for every
// merged neuron/synapse group (spec.md §4.6). The returned map's keys
// are filenames relative to cfg.OutDir.
func Run(build ModelBuilder, be backend.Backend, cfg Config) (map[string]string, error) {
	m, err := build()
	if err != nil {
		return nil, fmt.Errorf("generate: build model: %w", err)
	}
	if err := cfg.Apply(m); err != nil {
		return nil, fmt.Errorf("generate: apply config: %w", err)
	}
	if err := m.Finalise(); err != nil {
		return nil, fmt.Errorf("generate: finalise: %w", err)
	}

	tc := sltype.NewTypeContext(m.Precision(), m.TimePrecision())
	groups := m.SynapseGroups()
	psmFused := merge.FusePostsynapticModels(groups, m.FusePostsynapticModels())
	wuPreFused := merge.FuseWUPre(groups, m.FusePrePostWeightUpdateModels())

	out := map[string]string{}

	if be.IsPopulationRNGRequired() {
		out["rngSupport.c"] = be.RNGSupportCode()
	}

	neuronMerges := merge.PartitionNeuronGroups(m.NeuronGroups(), m.Precision(), m.TimePrecision())
	for _, mg := range neuronMerges {
		var psmIn, preOut []*merge.FusedGroup
		for _, fg := range psmFused {
			if fg.Archetype.Target() == mg.Archetype() {
				psmIn = append(psmIn, fg)
			}
		}
		for _, fg := range wuPreFused {
			if fg.Archetype.Source() == mg.Archetype() && fg.Archetype.PreTargetVar != "" {
				preOut = append(preOut, fg)
			}
		}
		src, err := kernel.EmitNeuronUpdate(tc, be, mg, psmIn, preOut, m.DT())
		if err != nil {
			return nil, fmt.Errorf("generate: emit neuron update %s: %w", mg.Archetype().Name(), err)
		}
		if err := mg.CheckLayout(m.Precision()); err != nil {
			return nil, fmt.Errorf("generate: merged group %s: %w", mg.Archetype().Name(), err)
		}
		out[fmt.Sprintf("neuronUpdate_%s.c", mg.Archetype().Name())] = src
	}

	for _, sg := range groups {
		blockSize := be.Preferences().BlockSize.PresynUpdate
		src, err := kernel.EmitPresynapticUpdate(tc, be, sg, blockSize, m.DT())
		if err != nil {
			return nil, fmt.Errorf("generate: emit presynaptic update %s: %w", sg.Name(), err)
		}
		out[fmt.Sprintf("presynapticUpdate_%s.c", sg.Name())] = src

		initSrc, err := kernel.EmitSparseConnectivityInit(tc, be, sg)
		if err != nil {
			return nil, fmt.Errorf("generate: emit connectivity init %s: %w", sg.Name(), err)
		}
		if initSrc != "" {
			out[fmt.Sprintf("connectivityInit_%s.c", sg.Name())] = initSrc
		}

		if sg.NeedsPostsynapticRemap(be.IsPostsynapticRemapRequired()) {
			out[fmt.Sprintf("remapBuild_%s.c", sg.Name())] = kernel.EmitSparseRemapBuild(be, sg)
		}
	}

	for _, g := range m.NeuronGroups() {
		initSrc, err := kernel.EmitNeuronGroupInit(tc, be, g)
		if err != nil {
			return nil, fmt.Errorf("generate: emit neuron init %s: %w", g.Name(), err)
		}
		out[fmt.Sprintf("neuronInit_%s.c", g.Name())] = initSrc
	}

	return out, nil
}

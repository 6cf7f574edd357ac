// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatrixType is the storage format of a synapse group's connectivity,
// optionally combined with a weight-storage flag (spec.md §3).
type MatrixType int

const (
	Dense MatrixType = iota
	Sparse
	Bitmask
	Procedural
	Toeplitz
)

func (t MatrixType) String() string {
	switch t {
	case Dense:
		return "DENSE"
	case Sparse:
		return "SPARSE"
	case Bitmask:
		return "BITMASK"
	case Procedural:
		return "PROCEDURAL"
	case Toeplitz:
		return "TOEPLITZ"
	}
	return "UNKNOWN"
}

// WeightFlag is a bitmask combined with MatrixType describing how
// weight values are stored.
type WeightFlag int

const (
	WeightGlobal     WeightFlag = 0
	WeightIndividual WeightFlag = 1 << iota
	WeightKernel
	WeightProceduralG
)

// SpanType selects the axis of parallelism for presynaptic spike
// propagation (spec.md §4.6 / Glossary "Span").
type SpanType int

const (
	SpanPresynaptic SpanType = iota
	SpanPostsynaptic
)

// WeightUpdateModel groups the code fragments and state describing how
// a synapse group's weights evolve (spec.md §3).
type WeightUpdateModel struct {
	Params            ParamMap
	DerivedParams      []DerivedParam
	Vars               []VarInit
	PreVars            []VarInit
	PostVars           []VarInit
	ExtraGlobalParams  []ExtraGlobalParam

	EventThresholdCode CodeFragment
	EventCode          CodeFragment
	SimCode            CodeFragment
	PostLearnCode      CodeFragment
	SynapseDynamicsCode CodeFragment
	PreSpikeCode       CodeFragment
	PostSpikeCode      CodeFragment
	PreDynamicsCode    CodeFragment
	PostDynamicsCode   CodeFragment
}

// PostsynapticModel groups the decay/apply-input code and state of a
// synapse group's postsynaptic integration (spec.md §3).
type PostsynapticModel struct {
	Params            ParamMap
	DerivedParams     []DerivedParam
	Vars              []VarInit
	ExtraGlobalParams []ExtraGlobalParam

	ApplyInputCode CodeFragment
	DecayCode      CodeFragment
}

// ConnectivityInitialiser describes how a synapse group's sparse/
// bitmask/procedural connectivity is built.
type ConnectivityInitialiser struct {
	Params      ParamMap
	RowBuildCode CodeFragment
	ColBuildCode CodeFragment // empty Identity: no column build
	MaxRowLength int
	MaxColLength int
}

// ToeplitzInitialiser describes a Toeplitz-structured convolution-like
// connectivity kernel. Exactly one of KernelCode or StaticKernel is
// set: KernelCode is scanned/type-checked like any other fragment and
// evaluated per-element on the backend; StaticKernel is a host-computed
// constant kernel (e.g. a fixed Gaussian or difference-of-Gaussians
// filter) flattened directly into the generated initialiser's constant
// array, skipping code generation entirely for that kernel.
type ToeplitzInitialiser struct {
	Params       ParamMap
	KernelCode   CodeFragment
	KernelShape  []int // kernel size per dimension
	StaticKernel *mat.Dense
}

// FlattenedKernel returns StaticKernel's values in row-major order,
// nil if no static kernel was supplied.
func (ti *ToeplitzInitialiser) FlattenedKernel() []float64 {
	if ti.StaticKernel == nil {
		return nil
	}
	r, c := ti.StaticKernel.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, ti.StaticKernel.At(i, j))
		}
	}
	return out
}

// SynapseGroupConfig is the declarative description passed to
// Model.AddSynapsePopulation.
type SynapseGroupConfig struct {
	Source, Target     string
	MatrixType         MatrixType
	WeightFlags        WeightFlag
	AxonalDelaySteps   int
	BackPropDelaySteps int
	MaxDendriticDelayTimesteps int
	WUM                WeightUpdateModel
	PSM                PostsynapticModel
	Connectivity       *ConnectivityInitialiser
	ToeplitzInit       *ToeplitzInitialiser
	Span               SpanType
	ThreadsPerSpike    int
	NarrowSparseInd    bool
	PreTargetVar       string // defaults to "" (no pre-output accumulation)
	PostTargetVar      string // defaults to "Isyn"
}

// SynapseGroup is a directed edge between two NeuronGroups (spec.md §3).
type SynapseGroup struct {
	name   string
	source *NeuronGroup
	target *NeuronGroup

	MatrixType         MatrixType
	WeightFlags        WeightFlag
	AxonalDelaySteps   int
	BackPropDelaySteps int
	MaxDendriticDelayTimesteps int

	WUM          WeightUpdateModel
	PSM          PostsynapticModel
	Connectivity *ConnectivityInitialiser
	ToeplitzInit *ToeplitzInitialiser

	Span            SpanType
	ThreadsPerSpike int
	NarrowSparseInd bool
	PreTargetVar    string
	PostTargetVar   string

	needsDendriticDelay bool
	finalised           bool
}

func (sg *SynapseGroup) Name() string           { return sg.name }
func (sg *SynapseGroup) Source() *NeuronGroup    { return sg.source }
func (sg *SynapseGroup) Target() *NeuronGroup    { return sg.target }
func (sg *SynapseGroup) NeedsDendriticDelay() bool { return sg.needsDendriticDelay }

// RowStride returns the per-row element count used to size dense/
// sparse weight arrays (spec.md §4.7): numPost for DENSE and TOEPLITZ
// (row-major over source), the connectivity initialiser's MaxRowLength
// for SPARSE/BITMASK (numPost when none is declared), and 1 for
// PROCEDURAL.
func (sg *SynapseGroup) RowStride() int {
	switch sg.MatrixType {
	case Dense:
		return sg.target.NumNeurons()
	case Sparse, Bitmask:
		if sg.Connectivity != nil && sg.Connectivity.MaxRowLength > 0 {
			return sg.Connectivity.MaxRowLength
		}
		return sg.target.NumNeurons()
	case Toeplitz:
		return sg.target.NumNeurons()
	default:
		return 1
	}
}

// ColStride returns the per-column element count used to size a
// SPARSE group's reverse-mapping arrays (colInd/remap): the
// connectivity initialiser's declared max column length, falling back
// to the number of source neurons (spec.md §9 design note (c)).
func (sg *SynapseGroup) ColStride() int {
	if sg.Connectivity != nil && sg.Connectivity.MaxColLength > 0 {
		return sg.Connectivity.MaxColLength
	}
	return sg.source.NumNeurons()
}

// NeedsPostsynapticRemap reports whether this SPARSE group's
// postIdx-indexed reverse mapping (colLength/colInd/remap) must exist:
// a SpanPostsynaptic presynaptic-update kernel always needs it to
// address a synapse that has no row position to derive one from; post-
// learn code needs it too, but only when the backend reports it
// requires one (spec.md §9 design note (c): "spec leaves the exact
// form to the backend"). Always false outside SPARSE, since every
// other matrix type is either fully addressable by row/column index
// already or has no stored connectivity to remap at all.
func (sg *SynapseGroup) NeedsPostsynapticRemap(remapRequiredByBackend bool) bool {
	if sg.MatrixType != Sparse {
		return false
	}
	return sg.Span == SpanPostsynaptic || (sg.WUM.PostLearnCode.Identity != "" && remapRequiredByBackend)
}

func (m *Model) addSynapsePopulation(name string, cfg SynapseGroupConfig) (*SynapseGroup, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" || func() bool { _, ok := m.synapseGroups[name]; return ok }() {
		return nil, wrapf(ErrDuplicateName, "synapse group %q", name)
	}
	src, ok := m.neuronGroups[cfg.Source]
	if !ok {
		return nil, wrapf(ErrUnknownTargetVar, "synapse group %q: unknown source neuron group %q", name, cfg.Source)
	}
	tgt, ok := m.neuronGroups[cfg.Target]
	if !ok {
		return nil, wrapf(ErrUnknownTargetVar, "synapse group %q: unknown target neuron group %q", name, cfg.Target)
	}

	if err := validateSynapseConfig(name, cfg); err != nil {
		return nil, err
	}

	postTarget := cfg.PostTargetVar
	if postTarget == "" {
		postTarget = "Isyn"
	}
	if err := validateTargetVar(tgt, postTarget); err != nil {
		return nil, wrapf(ErrUnknownTargetVar, "synapse group %q", name)
	}

	threads := cfg.ThreadsPerSpike
	if threads <= 0 {
		threads = 1
	}

	sg := &SynapseGroup{
		name:                       name,
		source:                     src,
		target:                     tgt,
		MatrixType:                 cfg.MatrixType,
		WeightFlags:                cfg.WeightFlags,
		AxonalDelaySteps:           cfg.AxonalDelaySteps,
		BackPropDelaySteps:         cfg.BackPropDelaySteps,
		MaxDendriticDelayTimesteps: cfg.MaxDendriticDelayTimesteps,
		WUM:                        cfg.WUM,
		PSM:                        cfg.PSM,
		Connectivity:               cfg.Connectivity,
		ToeplitzInit:               cfg.ToeplitzInit,
		Span:                       cfg.Span,
		ThreadsPerSpike:            threads,
		NarrowSparseInd:            cfg.NarrowSparseInd,
		PreTargetVar:               cfg.PreTargetVar,
		PostTargetVar:              postTarget,
	}

	src.outgoing = append(src.outgoing, sg)
	tgt.incoming = append(tgt.incoming, sg)

	m.synapseGroups[name] = sg
	m.synapseOrder = append(m.synapseOrder, sg)
	return sg, nil
}

func validateSynapseConfig(name string, cfg SynapseGroupConfig) error {
	hasColBuild := cfg.Connectivity != nil && cfg.Connectivity.ColBuildCode.Identity != ""
	hasPostLearn := cfg.WUM.PostLearnCode.Identity != ""
	hasSynDynamics := cfg.WUM.SynapseDynamicsCode.Identity != ""

	switch cfg.MatrixType {
	case Toeplitz:
		if hasColBuild {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: TOEPLITZ forbids column-build connectivity", name)
		}
		if hasPostLearn {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: TOEPLITZ forbids post-learn code", name)
		}
		if cfg.ToeplitzInit == nil {
			return wrapf(ErrIncompatibleInit, "synapse group %q: TOEPLITZ requires a Toeplitz initialiser", name)
		}
		if cfg.ToeplitzInit != nil && cfg.ToeplitzInit.KernelCode.Identity != "" && cfg.ToeplitzInit.StaticKernel != nil {
			return wrapf(ErrIncompatibleInit, "synapse group %q: TOEPLITZ initialiser sets both KernelCode and StaticKernel", name)
		}
	case Procedural:
		if hasColBuild {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: PROCEDURAL forbids column-build connectivity", name)
		}
		if hasPostLearn {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: PROCEDURAL forbids post-learn code", name)
		}
		if hasSynDynamics {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: PROCEDURAL forbids synapse-dynamics code", name)
		}
		if cfg.Span == SpanPostsynaptic {
			return wrapf(ErrInvalidMatrixType, "synapse group %q: PROCEDURAL requires SpanPresynaptic", name)
		}
	}

	// weight initialisers: RNG-free unless procedural connectivity.
	if cfg.MatrixType != Procedural {
		for _, v := range cfg.WUM.Vars {
			if v.Init.UsesRNG() {
				return wrapf(ErrIncompatibleInit, "synapse group %q: weight var %q initialiser uses RNG but matrix type is not PROCEDURAL", name, v.Name)
			}
		}
	}

	// kernel size <-> matrix-type compatibility.
	kernelFlag := cfg.WeightFlags&WeightKernel != 0
	if kernelFlag && cfg.MatrixType != Toeplitz && cfg.MatrixType != Procedural && cfg.MatrixType != Dense {
		return fmt.Errorf("%w: synapse group %q: WeightKernel flag requires a DENSE/PROCEDURAL/TOEPLITZ matrix", ErrInvalidMatrixType, name)
	}
	if cfg.MatrixType == Toeplitz && cfg.ToeplitzInit != nil && len(cfg.ToeplitzInit.KernelShape) == 0 {
		return fmt.Errorf("%w: synapse group %q: TOEPLITZ initialiser missing kernel shape", ErrIncompatibleInit, name)
	}
	return nil
}

// validateTargetVar checks that varName names either the implicit
// "Isyn" accumulator or one of tgt's AdditionalInputVars.
func validateTargetVar(tgt *NeuronGroup, varName string) error {
	if varName == "Isyn" {
		return nil
	}
	for _, v := range tgt.AdditionalInputVars {
		if v.Name == varName {
			return nil
		}
	}
	return fmt.Errorf("target variable %q not found on neuron group %q", varName, tgt.Name())
}

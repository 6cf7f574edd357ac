// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

import (
	"github.com/goki/ki/ints"

	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// RecordingRequest describes a caller's ask for spike-recording
// buffers (spec.md §4.7): Requested with NumTimesteps<=0 fails with
// model.ErrRecordingUnset; !Requested allocates no recording arrays at
// all, regardless of NumTimesteps.
type RecordingRequest struct {
	Requested    bool
	NumTimesteps int
}

// FusionPlan carries the fused-group partitions Allocate needs to know
// which arrays are shared across synapse groups rather than allocated
// once per group (spec.md §4.3 "fuse ... letting multiple consumers
// share the same backing arrays"). Computed by the caller's code-
// generation pass (merge.FusePostsynapticModels / FuseWUPre / FuseWUPost)
// the same way kernel.EmitNeuronUpdate takes its psmGroups parameter.
type FusionPlan struct {
	PSM    []*merge.FusedGroup
	WUPre  []*merge.FusedGroup
	WUPost []*merge.FusedGroup
}

// Allocate walks the model and creates every array spec.md §4.7 lists:
// per-neuron-group spike/state arrays, per-synapse-group weight and
// connectivity arrays, and the fused accumulator/pre-post arrays named
// by plan. It must be called at most once per Runtime for a given
// (group, name) pair; a second call duplicating an already-allocated
// array fails with ErrDuplicateArray.
func (rt *Runtime) Allocate(plan FusionPlan, rec RecordingRequest) error {
	if rec.Requested && rec.NumTimesteps <= 0 {
		return wrapf(model.ErrRecordingUnset, "recording requested for model %q", rt.model.Name)
	}

	batch := rt.model.BatchSize()
	for _, g := range rt.model.NeuronGroups() {
		if err := rt.allocateNeuronGroup(g, batch, rec); err != nil {
			return err
		}
	}
	for _, sg := range rt.model.SynapseGroups() {
		if err := rt.allocateSynapseGroup(sg, batch); err != nil {
			return err
		}
	}
	for _, fg := range plan.PSM {
		if err := rt.allocateFusedOutPost(fg, batch); err != nil {
			return err
		}
	}
	for _, fg := range plan.WUPre {
		if err := rt.allocateFusedWUPre(fg, batch); err != nil {
			return err
		}
	}
	for _, fg := range plan.WUPost {
		if err := rt.allocateFusedWUPost(fg, batch); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) allocateNeuronGroup(g *model.NeuronGroup, batch int, rec RecordingRequest) error {
	name := g.Name()
	loc := rt.model.DefaultVarLocation()
	slots := g.NumDelaySlots()

	if err := rt.createArray(arrayKey{name, "spkCnt"}, sltype.KindUint32, batch*slots, loc); err != nil {
		return err
	}
	if err := rt.createArray(arrayKey{name, "spk"}, sltype.KindUint32, batch*g.NumNeurons()*slots, loc); err != nil {
		return err
	}
	if rt.neuronGroupHasEvents(g) {
		if err := rt.createArray(arrayKey{name, "spkEvntCnt"}, sltype.KindUint32, batch*slots, loc); err != nil {
			return err
		}
		if err := rt.createArray(arrayKey{name, "spkEvnt"}, sltype.KindUint32, batch*g.NumNeurons()*slots, loc); err != nil {
			return err
		}
	}

	if rec.Requested {
		words := recordingWords(g.NumNeurons(), batch, rec.NumTimesteps)
		if err := rt.createArray(arrayKey{name, "recordSpk"}, sltype.KindUint32, words, loc); err != nil {
			return err
		}
		if rt.neuronGroupHasEvents(g) {
			if err := rt.createArray(arrayKey{name, "recordSpkEvnt"}, sltype.KindUint32, words, loc); err != nil {
				return err
			}
		}
	}

	timeArrays := []struct {
		name string
		need bool
	}{
		{"sT", g.NeedsSpikeTime()},
		{"prevST", g.NeedsPrevSpikeTime()},
		{"seT", g.NeedsSpikeEventTime()},
		{"prevSET", g.NeedsPrevSpikeEventTime()},
	}
	for _, ta := range timeArrays {
		if !ta.need {
			continue
		}
		if err := rt.createArray(arrayKey{name, ta.name}, sltype.KindTimeScalar, batch*g.NumNeurons(), loc); err != nil {
			return err
		}
	}

	for _, v := range allNeuronVars(g) {
		count := batch * g.NumNeurons()
		if g.IsVarDelayed(v.Name) {
			count *= slots
		}
		if err := rt.createArray(arrayKey{name, v.Name}, v.Kind, count, loc); err != nil {
			return err
		}
	}
	return nil
}

// allNeuronVars returns a neuron group's state vars plus any additional
// input vars it declares, the full set of per-neuron arrays spec.md
// §4.7's "per-neuron-group NeuronVar arrays" covers.
func allNeuronVars(g *model.NeuronGroup) []model.VarInit {
	out := make([]model.VarInit, 0, len(g.Vars)+len(g.AdditionalInputVars))
	out = append(out, g.Vars...)
	out = append(out, g.AdditionalInputVars...)
	return out
}

// neuronGroupHasEvents reports whether any outgoing synapse group uses
// event-driven propagation (spec.md §4.7 "optional spkEvntCnt/spkEvnt"),
// i.e. declares event-threshold or event code.
func (rt *Runtime) neuronGroupHasEvents(g *model.NeuronGroup) bool {
	for _, sg := range g.Outgoing() {
		if sg.WUM.EventThresholdCode.Identity != "" || sg.WUM.EventCode.Identity != "" {
			return true
		}
	}
	return false
}

// recordingWords computes spec.md §8 scenario 6's recording-buffer
// size: ceil(N/32) words per timestep per batch member, clamped to at
// least one word so a (degenerate) zero-neuron group never requests a
// zero-length array.
func recordingWords(numNeurons, batch, numRecordingTimesteps int) int {
	wordsPerBatch := ints.MaxInt((numNeurons+31)/32, 1)
	return wordsPerBatch * batch * numRecordingTimesteps
}

// allocateSynapseGroup creates a synapse group's weight, postsynaptic-
// var, connectivity and dendritic-delay arrays. WUM pre/post vars and
// the outPost/outPre accumulators are deliberately NOT allocated here:
// every synapse group, fused or not, appears as some FusedGroup's
// Archetype in FusionPlan (merge.fuseBy emits a singleton FusedGroup
// for any group that doesn't actually fuse with anything), so
// allocateFusedOutPost/WUPre/WUPost already cover every group exactly
// once.
func (rt *Runtime) allocateSynapseGroup(sg *model.SynapseGroup, batch int) error {
	name := sg.Name()
	loc := rt.model.DefaultVarLocation()
	connLoc := rt.model.DefaultSparseConnectivityLocation()

	weightCount := rt.synapseWeightCount(sg)
	for _, v := range sg.WUM.Vars {
		if err := rt.createArray(arrayKey{name, v.Name}, v.Kind, weightCount, loc); err != nil {
			return err
		}
	}
	for _, v := range sg.PSM.Vars {
		count := batch * sg.Target().NumNeurons()
		if err := rt.createArray(arrayKey{name, v.Name}, v.Kind, count, loc); err != nil {
			return err
		}
	}

	if err := rt.allocateConnectivity(sg, connLoc); err != nil {
		return err
	}
	return rt.allocateDendriticDelay(sg, batch)
}

// synapseWeightCount sizes a synapse group's weight array per spec.md
// §4.7: kernel-flattened for WeightKernel groups with a Toeplitz
// initialiser, numPre*rowStride for DENSE/SPARSE/BITMASK groups,
// numPost for PROCEDURAL (no per-synapse storage, broadcast per
// target), and 1 otherwise. The weight flags are not consulted for
// DENSE/SPARSE/BITMASK: a WeightGlobal group still gets numPre*rowStride
// elements rather than a single shared scalar.
func (rt *Runtime) synapseWeightCount(sg *model.SynapseGroup) int {
	if sg.WeightFlags&model.WeightKernel != 0 && sg.ToeplitzInit != nil {
		n := 1
		for _, d := range sg.ToeplitzInit.KernelShape {
			n *= d
		}
		return n
	}
	switch sg.MatrixType {
	case model.Dense, model.Sparse, model.Bitmask:
		return sg.Source().NumNeurons() * rt.be.SynapticMatrixRowStride(sg)
	case model.Procedural:
		return sg.Target().NumNeurons()
	default:
		return 1
	}
}

// allocateConnectivity creates a sparse/bitmask synapse group's
// connectivity arrays (spec.md §4.7): BITMASK gets a single packed
// "gp" word array; SPARSE gets "rowLength"+"ind", plus the
// "colLength"+"colInd"+"remap" reverse mapping whenever something
// needs to address a synapse by (postIdx, preIdx) rather than by row
// position — post-learn code asking for it via the backend's
// IsPostsynapticRemapRequired, or a SpanPostsynaptic presynaptic-update
// kernel, which has no other way to find a SPARSE synapse's slot
// (spec.md §9 design note (c); kernel.EmitPresynapticUpdate's
// SpanPostsynaptic/SPARSE branch is the reverse map's only other
// consumer). DENSE/PROCEDURAL/TOEPLITZ store no connectivity array at
// all: DENSE is implicitly fully connected, PROCEDURAL computes
// connectivity on the fly, TOEPLITZ uses its kernel shape instead.
func (rt *Runtime) allocateConnectivity(sg *model.SynapseGroup, loc model.VarLocation) error {
	name := sg.Name()
	numPre := sg.Source().NumNeurons()
	numPost := sg.Target().NumNeurons()
	rowStride := rt.be.SynapticMatrixRowStride(sg)

	switch sg.MatrixType {
	case model.Bitmask:
		words := (numPre*rowStride + 31) / 32
		return rt.createArray(arrayKey{name, "gp"}, sltype.KindUint32, words, loc)
	case model.Sparse:
		if err := rt.createArray(arrayKey{name, "rowLength"}, sltype.KindUint32, numPre, loc); err != nil {
			return err
		}
		indKind := sltype.KindUint32
		if sg.NarrowSparseInd {
			indKind = sltype.NarrowIndexKind(numPost)
		}
		if err := rt.createArray(arrayKey{name, "ind"}, indKind, numPre*rowStride, loc); err != nil {
			return err
		}
		if sg.NeedsPostsynapticRemap(rt.be.IsPostsynapticRemapRequired()) {
			colStride := sg.ColStride()
			if err := rt.createArray(arrayKey{name, "colLength"}, sltype.KindUint32, numPost, loc); err != nil {
				return err
			}
			if err := rt.createArray(arrayKey{name, "colInd"}, sltype.KindUint32, numPost*colStride, loc); err != nil {
				return err
			}
			if err := rt.createArray(arrayKey{name, "remap"}, sltype.KindUint32, numPost*colStride, loc); err != nil {
				return err
			}
		}
	}
	return nil
}

// allocateDendriticDelay creates the denDelay ring buffer and its
// per-batch head pointer for a synapse group whose WUM code writes via
// addToPostDelay (spec.md §4.1 / §4.7).
func (rt *Runtime) allocateDendriticDelay(sg *model.SynapseGroup, batch int) error {
	if !sg.NeedsDendriticDelay() {
		return nil
	}
	name := sg.Name()
	loc := rt.model.DefaultVarLocation()
	count := sg.MaxDendriticDelayTimesteps * sg.Target().NumNeurons() * batch
	if err := rt.createArray(arrayKey{name, "denDelay"}, sltype.KindScalar, count, loc); err != nil {
		return err
	}
	return rt.createArray(arrayKey{name, "denDelayPtr"}, sltype.KindUint32, batch, loc)
}

// allocateFusedOutPost creates one shared postsynaptic-input
// accumulator array for a fused group of synapse groups targeting the
// same neuron group, keyed by the archetype's name so every consumer
// resolves to the same array (spec.md §4.3, §4.7 "fused outPost").
func (rt *Runtime) allocateFusedOutPost(fg *merge.FusedGroup, batch int) error {
	arch := fg.Archetype
	count := batch * arch.Target().NumNeurons()
	return rt.createArray(arrayKey{arch.Name(), "outPost"}, sltype.KindScalar, count, rt.model.DefaultVarLocation())
}

// allocateFusedWUPre creates a fused group's shared pre-output
// accumulator (when PreTargetVar is set) and its fused WUM pre-vars.
func (rt *Runtime) allocateFusedWUPre(fg *merge.FusedGroup, batch int) error {
	arch := fg.Archetype
	loc := rt.model.DefaultVarLocation()
	if arch.PreTargetVar != "" {
		count := batch * arch.Source().NumNeurons()
		if err := rt.createArray(arrayKey{arch.Name(), "outPre"}, sltype.KindScalar, count, loc); err != nil {
			return err
		}
	}
	for _, v := range arch.WUM.PreVars {
		count := batch * arch.Source().NumNeurons()
		if err := rt.createArray(arrayKey{arch.Name(), v.Name}, v.Kind, count, loc); err != nil {
			return err
		}
	}
	return nil
}

// allocateFusedWUPost creates a fused group's shared WUM post-vars.
func (rt *Runtime) allocateFusedWUPost(fg *merge.FusedGroup, batch int) error {
	arch := fg.Archetype
	loc := rt.model.DefaultVarLocation()
	for _, v := range arch.WUM.PostVars {
		count := batch * arch.Target().NumNeurons()
		if err := rt.createArray(arrayKey{arch.Name(), v.Name}, v.Kind, count, loc); err != nil {
			return err
		}
	}
	return nil
}

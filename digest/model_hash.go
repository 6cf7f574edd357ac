// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digest

import "github.com/goki/snngen/model"

// NeuronGroupHash is getHashDigest for a NeuronGroup: equality drives
// fusion into a single merged neuron-update group. It combines code
// shape, var/EGP shapes, the autoRefractoryRequired flag, whether a
// delay queue is needed at all, and precision — never parameter
// values, never NumNeurons (spec.md §4.2/§4.3).
func NeuronGroupHash(g *model.NeuronGroup, precision, timePrecision model.Precision) Digest {
	b := New()
	b.WriteTokens(g.SimCode.Tokens)
	b.WriteTokens(g.ThresholdCode.Tokens)
	b.WriteTokens(g.ResetCode.Tokens)
	b.WriteParamNames(g.Params)
	b.WriteVarShapes(g.Vars)
	b.WriteVarShapes(g.AdditionalInputVars)
	b.WriteEGPShapes(g.ExtraGlobalParams)
	b.WriteBool(g.AutoRefractoryRequired)
	b.WriteBool(g.NeedsSpikeQueue())
	b.WritePrecision(precision)
	b.WritePrecision(timePrecision)
	return b.Sum()
}

// synapseShapeCommon writes the parts of a SynapseGroup's identity
// every emission-pass digest shares: matrix type, weight flags, span,
// threads-per-spike, delay counts, the dendritic-delay and narrow-index
// flags, and the pre/post target variable names.
func synapseShapeCommon(b *Builder, sg *model.SynapseGroup) {
	b.WriteInt(int(sg.MatrixType))
	b.WriteInt(int(sg.WeightFlags))
	b.WriteInt(int(sg.Span))
	b.WriteInt(sg.ThreadsPerSpike)
	b.WriteInt(sg.AxonalDelaySteps)
	b.WriteInt(sg.BackPropDelaySteps)
	b.WriteBool(sg.NeedsDendriticDelay())
	b.WriteBool(sg.NarrowSparseInd)
	b.WriteString(sg.PreTargetVar)
	b.WriteString(sg.PostTargetVar)
}

// WUHash is getWUHashDigest: the synapse-dynamics/sim-code emission
// pass's equality.
func WUHash(sg *model.SynapseGroup) Digest {
	b := New()
	synapseShapeCommon(b, sg)
	b.WriteTokens(sg.WUM.EventThresholdCode.Tokens)
	b.WriteTokens(sg.WUM.EventCode.Tokens)
	b.WriteTokens(sg.WUM.SimCode.Tokens)
	b.WriteTokens(sg.WUM.SynapseDynamicsCode.Tokens)
	b.WriteVarShapes(sg.WUM.Vars)
	b.WriteParamNames(sg.WUM.Params)
	b.WriteEGPShapes(sg.WUM.ExtraGlobalParams)
	return b.Sum()
}

// WUPreHash is getWUPreHashDigest: the presynaptic-dynamics emission
// pass's equality.
func WUPreHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteTokens(sg.WUM.PreSpikeCode.Tokens)
	b.WriteTokens(sg.WUM.PreDynamicsCode.Tokens)
	b.WriteVarShapes(sg.WUM.PreVars)
	b.WriteParamNames(sg.WUM.Params)
	return b.Sum()
}

// WUPostHash is getWUPostHashDigest: the postsynaptic-dynamics
// emission pass's equality.
func WUPostHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteTokens(sg.WUM.PostSpikeCode.Tokens)
	b.WriteTokens(sg.WUM.PostDynamicsCode.Tokens)
	b.WriteTokens(sg.WUM.PostLearnCode.Tokens)
	b.WriteVarShapes(sg.WUM.PostVars)
	b.WriteParamNames(sg.WUM.Params)
	return b.Sum()
}

// PSHash is getPSHashDigest: the postsynaptic-model emission pass's
// equality (apply-input + decay code).
func PSHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteString(sg.PostTargetVar)
	b.WriteTokens(sg.PSM.ApplyInputCode.Tokens)
	b.WriteTokens(sg.PSM.DecayCode.Tokens)
	b.WriteVarShapes(sg.PSM.Vars)
	b.WriteParamNames(sg.PSM.Params)
	b.WriteEGPShapes(sg.PSM.ExtraGlobalParams)
	return b.Sum()
}

// PreOutputHash is getPreOutputHashDigest: the pre-output accumulation
// pass's equality (fires only when PreTargetVar is set).
func PreOutputHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteString(sg.PreTargetVar)
	b.WriteBool(sg.PreTargetVar != "")
	return b.Sum()
}

// DendriticDelayUpdateHash is getDendriticDelayUpdateHashDigest: the
// dendritic-delay head-pointer-advance pass's equality.
func DendriticDelayUpdateHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteBool(sg.NeedsDendriticDelay())
	b.WriteInt(sg.MaxDendriticDelayTimesteps)
	return b.Sum()
}

// WUInitHash is getWUInitHashDigest: equality for the weight/
// connectivity init pass.
func WUInitHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteInt(int(sg.MatrixType))
	b.WriteVarShapes(sg.WUM.Vars)
	if sg.Connectivity != nil {
		b.WriteTokens(sg.Connectivity.RowBuildCode.Tokens)
		b.WriteTokens(sg.Connectivity.ColBuildCode.Tokens)
		b.WriteInt(sg.Connectivity.MaxRowLength)
		b.WriteInt(sg.Connectivity.MaxColLength)
	}
	if sg.ToeplitzInit != nil {
		b.WriteTokens(sg.ToeplitzInit.KernelCode.Tokens)
		b.WriteInt(len(sg.ToeplitzInit.KernelShape))
		for _, k := range sg.ToeplitzInit.KernelShape {
			b.WriteInt(k)
		}
	}
	return b.Sum()
}

// WUPreInitHash / WUPostInitHash are getWUPreInitHashDigest /
// getWUPostInitHashDigest: equality for pre/post var init passes.
func WUPreInitHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteVarShapes(sg.WUM.PreVars)
	return b.Sum()
}

func WUPostInitHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteVarShapes(sg.WUM.PostVars)
	return b.Sum()
}

// PSInitHash is getPSInitHashDigest: equality for the PS-var init pass.
func PSInitHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteVarShapes(sg.PSM.Vars)
	return b.Sum()
}

// canPSBeFused implements spec.md §4.3: every PS initialiser must be a
// constant and no PS extra-global-param may be referenced in decay or
// apply-input code.
func canPSBeFused(sg *model.SynapseGroup) bool {
	for _, v := range sg.PSM.Vars {
		if !v.Init.IsConstant() {
			return false
		}
	}
	for _, e := range sg.PSM.ExtraGlobalParams {
		if sg.PSM.ApplyInputCode.Tokens.HasIdentifier(e.Name) || sg.PSM.DecayCode.Tokens.HasIdentifier(e.Name) {
			return false
		}
	}
	return true
}

// CanPSBeFused exports canPSBeFused for package merge.
func CanPSBeFused(sg *model.SynapseGroup) bool { return canPSBeFused(sg) }

// canWUPrePostPartBeFused is the WUM pre/post analogue of canPSBeFused.
func canWUPrePostPartBeFused(vars []model.VarInit, egps []model.ExtraGlobalParam, frags ...model.TokenStream) bool {
	for _, v := range vars {
		if !v.Init.IsConstant() {
			return false
		}
	}
	for _, e := range egps {
		for _, f := range frags {
			if f.HasIdentifier(e.Name) {
				return false
			}
		}
	}
	return true
}

// CanWUPreBeFused / CanWUPostBeFused export the pre/post fusability
// predicates for package merge.
func CanWUPreBeFused(sg *model.SynapseGroup) bool {
	return canWUPrePostPartBeFused(sg.WUM.PreVars, sg.WUM.ExtraGlobalParams, sg.WUM.PreSpikeCode.Tokens, sg.WUM.PreDynamicsCode.Tokens)
}

func CanWUPostBeFused(sg *model.SynapseGroup) bool {
	return canWUPrePostPartBeFused(sg.WUM.PostVars, sg.WUM.ExtraGlobalParams, sg.WUM.PostSpikeCode.Tokens, sg.WUM.PostDynamicsCode.Tokens)
}

// PSFuseHash is getPSFuseHashDigest: the stricter instance-level
// equality used to decide whether two synapse groups' PS state may be
// fused (share the same backing inSyn array): the post-target var, the
// apply-input and decay code tokens, each PS var's name and constant
// initial value, and the values of any referenced parameter (spec.md
// §4.2/§4.3).
func PSFuseHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteString(sg.PostTargetVar)
	b.WriteTokens(sg.PSM.ApplyInputCode.Tokens)
	b.WriteTokens(sg.PSM.DecayCode.Tokens)
	for _, v := range sg.PSM.Vars {
		b.WriteString(v.Name)
		b.WriteFloat(v.Init.Constant)
	}
	b.WriteReferencedParamValues(sg.PSM.Params, sg.PSM.ApplyInputCode.Tokens, sg.PSM.DecayCode.Tokens)
	return b.Sum()
}

// WUPreFuseHash / WUPostFuseHash are the WUM pre/post analogues of
// PSFuseHash.
func WUPreFuseHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteTokens(sg.WUM.PreSpikeCode.Tokens)
	b.WriteTokens(sg.WUM.PreDynamicsCode.Tokens)
	for _, v := range sg.WUM.PreVars {
		b.WriteString(v.Name)
		b.WriteFloat(v.Init.Constant)
	}
	b.WriteReferencedParamValues(sg.WUM.Params, sg.WUM.PreSpikeCode.Tokens, sg.WUM.PreDynamicsCode.Tokens)
	return b.Sum()
}

func WUPostFuseHash(sg *model.SynapseGroup) Digest {
	b := New()
	b.WriteTokens(sg.WUM.PostSpikeCode.Tokens)
	b.WriteTokens(sg.WUM.PostDynamicsCode.Tokens)
	for _, v := range sg.WUM.PostVars {
		b.WriteString(v.Name)
		b.WriteFloat(v.Init.Constant)
	}
	b.WriteReferencedParamValues(sg.WUM.Params, sg.WUM.PostSpikeCode.Tokens, sg.WUM.PostDynamicsCode.Tokens)
	return b.Sum()
}

// VarLocationHash is getVarLocationHashDigest: equality of memory-
// placement choices across a neuron group's vars.
func VarLocationHash(g *model.NeuronGroup, loc model.VarLocation) Digest {
	b := New()
	b.WriteInt(int(loc))
	b.WriteInt(len(g.Vars))
	return b.Sum()
}

// CurrentSourceHash is getHashDigest for a CurrentSource.
func CurrentSourceHash(cs *model.CurrentSource) Digest {
	b := New()
	b.WriteTokens(cs.InjectionCode.Tokens)
	b.WriteVarShapes(cs.Vars)
	b.WriteParamNames(cs.Params)
	b.WriteEGPShapes(cs.ExtraGlobalParams)
	return b.Sum()
}

// CustomUpdateHash is getHashDigest for a CustomUpdate.
func CustomUpdateHash(cu *model.CustomUpdate) Digest {
	b := New()
	b.WriteString(cu.UpdateGroup())
	b.WriteTokens(cu.UpdateCode.Tokens)
	b.WriteVarShapes(cu.Vars)
	b.WriteParamNames(cu.Params)
	b.WriteInt(len(cu.VarReferences))
	for _, r := range cu.VarReferences {
		b.WriteString(r.VarName)
		b.WriteInt(int(r.Access))
	}
	return b.Sum()
}

// CustomConnectivityUpdateHash is getHashDigest for a
// CustomConnectivityUpdate.
func CustomConnectivityUpdateHash(ccu *model.CustomConnectivityUpdate) Digest {
	b := New()
	b.WriteString(ccu.UpdateGroup())
	b.WriteTokens(ccu.RowUpdateCode.Tokens)
	b.WriteTokens(ccu.HostUpdateCode.Tokens)
	b.WriteVarShapes(ccu.Vars)
	b.WriteVarShapes(ccu.PreVars)
	b.WriteVarShapes(ccu.PostVars)
	return b.Sum()
}

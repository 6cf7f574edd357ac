// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"strings"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/env"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// rngFunctionNames are the distribution-sampling calls an init code
// fragment may reference (model.Initialiser.UsesRNG scans for the same
// set). The backend contract exposes no per-distribution hook, so each
// substitutes to a plain call against the population RNG state
// variable "rng"; EmitVarInit brackets each RNG-using variable
// initialiser with PopulationRNGPreamble/Postamble (spec.md §6
// "population RNG hooks").
var rngFunctionNames = []string{"urand", "nrand", "exprand", "gennrand"}

func withRNGFunctions(tc *sltype.TypeContext) *sltype.TypeContext {
	fns := make([]sltype.FunctionSig, len(rngFunctionNames))
	for i, name := range rngFunctionNames {
		fns[i] = sltype.FunctionSig{Name: name, NumArgs: 0, ReturnKind: sltype.KindScalar, Substitute: name + "(&rng)"}
	}
	return withFunctions(tc, fns...)
}

// EmitVarInit renders one state variable's initialiser: a plain
// assignment for a constant initialiser, or — for a code initialiser —
// the RNG preamble/postamble bracket (only when the code actually
// draws on RNG), the code itself with its own Params bound as
// constants, and a write to the variable's backing array slot
// (spec.md §4.6 "per-variable initialiser code").
func EmitVarInit(tc *sltype.TypeContext, be backend.Backend, groupExpr, idxExpr string, v model.VarInit) (string, error) {
	if v.Init.IsConstant() {
		return fmt.Sprintf("%s.%s[%s] = %s;\n", groupExpr, v.Name, idxExpr, scalarLit(v.Init.Constant)), nil
	}

	usesRNG := v.Init.UsesRNG()
	fnTC := tc
	if usesRNG {
		fnTC = withRNGFunctions(tc)
	}
	scope := env.NewEnvironment(nil)
	bindConstParams(scope, v.Init.Params, nil)

	txt, err := printExprFragment(fnTC, scope, v.Init.Fragment(v.Name+" init"))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if usesRNG {
		if pre := be.PopulationRNGPreamble(); pre != "" {
			b.WriteString(pre + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("%s.%s[%s] = %s;\n", groupExpr, v.Name, idxExpr, txt))
	if usesRNG {
		if post := be.PopulationRNGPostamble(); post != "" {
			b.WriteString(post + "\n")
		}
	}
	return b.String(), nil
}

// EmitNeuronGroupInit renders every per-neuron state variable
// initialiser for one neuron group, one thread per neuron ("idx"), with
// the population RNG seeded through PopulationRNGInit(0) before any
// initialiser runs. The seed is always 0; the model's Seed is not
// passed in.
func EmitNeuronGroupInit(tc *sltype.TypeContext, be backend.Backend, g *model.NeuronGroup) (string, error) {
	var b strings.Builder
	if be.IsPopulationRNGRequired() {
		b.WriteString(be.PopulationRNGInit(0) + "\n")
	}
	for _, v := range g.Vars {
		txt, err := EmitVarInit(tc, be, "group", "idx", v)
		if err != nil {
			return "", err
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}

// EmitSparseConnectivityInit renders a sparse (or bitmask) synapse
// group's connectivity build: the row-build code, which must increment
// the shared rowLength counter atomically and bounds-check it against
// the declared maximum, followed by the column-build code if the
// connectivity initialiser supplies one (spec.md §4.6 "sparse-
// connectivity build (row-build then, if present, column-build) with
// atomic increments to row-length counters, with bounds checks against
// declared max row/col lengths").
func EmitSparseConnectivityInit(tc *sltype.TypeContext, be backend.Backend, sg *model.SynapseGroup) (string, error) {
	conn := sg.Connectivity
	if conn == nil {
		return "", nil
	}

	fnTC := withFunctions(tc,
		sltype.FunctionSig{Name: "addSynapse", NumArgs: 1, ReturnKind: sltype.KindVoid,
			Substitute: rowAddSubstitute(be, conn.MaxRowLength)},
	)
	rowScope := env.NewEnvironment(nil)
	bindConstParams(rowScope, conn.Params, nil)
	rowScope.Add("id_post", dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindInt32)), Expansion: "postIdx", ReadOnly: true})

	var b strings.Builder
	rowTxt, err := printFragment(fnTC, rowScope, conn.RowBuildCode)
	if err != nil {
		return "", err
	}
	b.WriteString(rowTxt)

	if conn.ColBuildCode.Identity != "" {
		colTC := withFunctions(tc,
			sltype.FunctionSig{Name: "addSynapse", NumArgs: 1, ReturnKind: sltype.KindVoid,
				Substitute: colAddSubstitute(be, conn.MaxColLength)},
		)
		colScope := env.NewEnvironment(nil)
		bindConstParams(colScope, conn.Params, nil)
		colScope.Add("id_pre", dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindInt32)), Expansion: "preIdx", ReadOnly: true})

		colTxt, err := printFragment(colTC, colScope, conn.ColBuildCode)
		if err != nil {
			return "", err
		}
		b.WriteString(colTxt)
	}
	return b.String(), nil
}

// rowAddSubstitute renders addSynapse(postIdx)'s expansion for a
// row-build pass: bounds-check against MaxRowLength, then an atomic
// fetch-add of the row's length counter to claim the next slot before
// writing the target index into it.
func rowAddSubstitute(be backend.Backend, maxRowLength int) string {
	atomic := be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemGlobal)
	return fmt.Sprintf(
		"do { if ($(0) >= 0) { int slot = %s(&rowLength[preIdx], 1); if (slot < %d) { ind[preIdx * group.rowStride + slot] = $(0); } } } while(0)",
		atomic, maxRowLength)
}

// EmitSparseRemapBuild derives a SPARSE group's postIdx-indexed reverse
// mapping (colLength/colInd/remap) straight from its already-built
// row-major connectivity (rowLength/ind), one thread per source
// neuron: for every row entry it claims the target's next free column
// slot and records both which source neuron it came from and the row-
// major synIdx weight/state arrays index it by (spec.md §9 design note
// (c) — "spec leaves the exact form to the backend"; this backend
// derives it from the row data rather than asking ColBuildCode to
// maintain it independently, since nothing else needs ColBuildCode's
// own resampled view of the same connectivity to agree bit-for-bit
// with the row build's).
func EmitSparseRemapBuild(be backend.Backend, sg *model.SynapseGroup) string {
	atomic := be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemGlobal)
	var b strings.Builder
	b.WriteString("for (int j = 0; j < rowLength[preIdx]; j++) {\n")
	b.WriteString("    int synIdx = preIdx * group.rowStride + j;\n")
	b.WriteString("    int postIdx = ind[synIdx];\n")
	b.WriteString(fmt.Sprintf("    int slot = %s(&colLength[postIdx], 1);\n", atomic))
	b.WriteString("    colInd[postIdx * group.colStride + slot] = preIdx;\n")
	b.WriteString("    remap[postIdx * group.colStride + slot] = synIdx;\n")
	b.WriteString("}\n")
	return b.String()
}

// colAddSubstitute is rowAddSubstitute's column-major mirror, indexing
// by the target neuron's own column counter instead of the source
// neuron's row counter.
func colAddSubstitute(be backend.Backend, maxColLength int) string {
	atomic := be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemGlobal)
	return fmt.Sprintf(
		"do { if ($(0) >= 0) { int slot = %s(&colLength[postIdx], 1); if (slot < %d) { colInd[postIdx * group.colStride + slot] = $(0); } } } while(0)",
		atomic, maxColLength)
}

// EmitKernelWeightInit renders a Toeplitz/kernel-structured weight
// initialiser: the kernel-index-space walk decomposes a single flat
// kernel index into per-dimension indices via successive modular
// decomposition (spec.md §4.6 "kernel-weight init walks the kernel
// index space with modular decomposition across kernel dimensions"),
// binding one identifier per dimension ("k0", "k1", …) before running
// the kernel code.
func EmitKernelWeightInit(tc *sltype.TypeContext, toep *model.ToeplitzInitialiser) (string, error) {
	if toep == nil || toep.KernelCode.Identity == "" {
		return "", nil
	}
	scope := env.NewEnvironment(nil)
	bindConstParams(scope, toep.Params, nil)

	var b strings.Builder
	b.WriteString("int kRemain = kernelIdx;\n")
	for i := len(toep.KernelShape) - 1; i >= 0; i-- {
		dim := toep.KernelShape[i]
		name := fmt.Sprintf("k%d", i)
		b.WriteString(fmt.Sprintf("int %s = kRemain %% %d;\nkRemain /= %d;\n", name, dim, dim))
		scope.Add(name, dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindInt32)), Expansion: name, ReadOnly: true})
	}

	txt, err := printFragment(tc, scope, toep.KernelCode)
	if err != nil {
		return "", err
	}
	b.WriteString(txt)
	return b.String(), nil
}

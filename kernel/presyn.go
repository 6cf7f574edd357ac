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

// accumStrategy names how a presynaptic-span thread folds its
// per-target contribution into the shared outPost accumulator
// (spec.md §4.6 "Accumulation uses a per-thread register when the
// matrix is DENSE or BITMASK... otherwise uses shared-memory
// accumulation when target count fits the block size and the backend
// permits fast shared atomics; otherwise falls back to global
// atomics").
type accumStrategy int

const (
	accumRegister accumStrategy = iota
	accumShared
	accumGlobal
)

func chooseAccumStrategy(be backend.Backend, sg *model.SynapseGroup, blockSize int) accumStrategy {
	switch sg.MatrixType {
	case model.Dense, model.Bitmask:
		if sg.Span == model.SpanPresynaptic {
			return accumRegister
		}
	}
	if sg.Target().NumNeurons() <= blockSize && !be.AreSharedMemAtomicsSlow() {
		return accumShared
	}
	return accumGlobal
}

// EmitPresynapticUpdate assembles one synapse group's spike-
// propagation kernel body: on every presynaptic spike, its weight-
// update model's sim code runs once per connected target (guarded by
// the event-threshold condition when one is set; the event code is not
// emitted here), accumulating into the shared outPost buffer (or,
// for addToPostDelay, the dendritic-delay ring) and optionally into
// outPre for pre-output accumulation (spec.md §4.6's presynaptic-
// update step, §4.6 "For presynaptic spike propagation").
//
// Span selects the loop nest: SpanPresynaptic assigns one thread per
// source neuron, iterating its row of targets; SpanPostsynaptic
// assigns one thread per target neuron, iterating the presynaptic
// spikes of the step and testing connectivity per candidate (spec.md
// Glossary "Span"). Both forms reference free identifiers supplied by
// the launch-grid wrapper: "preIdx"/"postIdx" (thread's own neuron
// index along its span axis) and "spikeIdx" (position within the
// step's spike list being iterated). dt is the model's frozen
// integration step (Model.DT()), bound as the read-only "dt"
// identifier sim/dynamics code may reference directly.
func EmitPresynapticUpdate(tc *sltype.TypeContext, be backend.Backend, sg *model.SynapseGroup, blockSize int, dt float64) (string, error) {
	strat := chooseAccumStrategy(be, sg, blockSize)

	fnTC := withFunctions(tc,
		sltype.FunctionSig{Name: "addToInSyn", NumArgs: 1, ReturnKind: sltype.KindVoid, Substitute: accumSubstitute(be, strat)},
		sltype.FunctionSig{Name: "addToPostDelay", NumArgs: 2, ReturnKind: sltype.KindVoid, Substitute: delayAccumSubstitute(be)},
		sltype.FunctionSig{Name: "addToPre", NumArgs: 1, ReturnKind: sltype.KindVoid, Substitute: "outPre[preIdx] += $(0)"},
	)

	scope := env.NewEnvironment(nil)
	bindConstParams(scope, sg.WUM.Params, sg.WUM.DerivedParams)
	bindDT(scope, dt)

	synAdapter := &staticAdapter{groupExpr: "syn", indexExpr: "synIdx"}
	synLocals := env.NewLocalVarCache(scope, fnTC, synAdapter)
	for _, v := range sg.WUM.Vars {
		synLocals.RegisterVar(v.Name, v.Kind, v.Access)
	}
	preAdapter := &staticAdapter{groupExpr: "preSyn", indexExpr: "preIdx"}
	preLocals := env.NewLocalVarCache(synLocals, fnTC, preAdapter)
	for _, v := range sg.WUM.PreVars {
		preLocals.RegisterVar(v.Name, v.Kind, v.Access)
	}
	postAdapter := &staticAdapter{groupExpr: "postSyn", indexExpr: "postIdx"}
	postLocals := env.NewLocalVarCache(preLocals, fnTC, postAdapter)
	for _, v := range sg.WUM.PostVars {
		postLocals.RegisterVar(v.Name, v.Kind, v.Access)
	}

	body, err := synapseBody(tc, fnTC, sg, strat, synLocals, preLocals, postLocals)
	if err != nil {
		return "", err
	}

	if sg.MatrixType == model.Procedural && sg.Span == model.SpanPresynaptic {
		return emitProceduralPropagation(fnTC, sg, body)
	}

	var b strings.Builder
	b.WriteString(openPropagationLoop(sg))
	b.WriteString(body)
	b.WriteString(closePropagationLoop(sg))
	return b.String(), nil
}

// synapseBody renders one synapse's update: the event-threshold guard
// (if any), the sim code, register-accumulation bookkeeping, and the
// three local-var caches' write-backs, all addressed through whatever
// preIdx/postIdx/synIdx bindings are in scope when it is spliced in —
// a plain for-loop body for DENSE/SPARSE/BITMASK, or the body of a
// PROCEDURAL row-build's addSynapse call (spec.md §4.6).
func synapseBody(tc *sltype.TypeContext, fnTC *sltype.TypeContext, sg *model.SynapseGroup, strat accumStrategy,
	synLocals, preLocals, postLocals *env.LocalVarCache) (string, error) {

	var b strings.Builder
	if sg.WUM.EventThresholdCode.Identity != "" {
		cond, err := printExprFragment(fnTC, postLocals, sg.WUM.EventThresholdCode)
		if err != nil {
			return "", err
		}
		b.WriteString(drainPending(synLocals, preLocals, postLocals))
		b.WriteString(fmt.Sprintf("if (%s) {\n", cond))
	}

	if strat == accumRegister {
		b.WriteString(fmt.Sprintf("%s linSyn = 0;\n", tc.Precision.String()))
	}

	simText, err := printFragment(fnTC, postLocals, sg.WUM.SimCode)
	if err != nil {
		return "", err
	}
	b.WriteString(drainPending(synLocals, preLocals, postLocals))
	b.WriteString(simText)

	if strat == accumRegister {
		b.WriteString("outPost[postIdx] += linSyn;\n")
	}

	if sg.WUM.EventThresholdCode.Identity != "" {
		b.WriteString("}\n")
	}

	b.WriteString(declLines(postLocals.Flush()))
	b.WriteString(declLines(preLocals.Flush()))
	b.WriteString(declLines(synLocals.Flush()))
	return b.String(), nil
}

// emitProceduralPropagation renders a PROCEDURAL synapse group's
// presynaptic update by running its connectivity's RowBuildCode
// in-thread, exactly as the connectivity initialiser does, except
// addSynapse's expansion splices body in directly instead of claiming
// a stored-array slot — PROCEDURAL has no rowLength/ind to read back
// (runtime/allocate.go allocates no connectivity array for it at all),
// so the candidate targets it would have recorded are instead acted on
// the moment the row-build code discovers them (spec.md §4.7). synIdx
// addresses the per-target weight broadcast synapseWeightCount sizes
// PROCEDURAL groups with (numPost, not numPre*rowStride), so it is
// just the candidate post index, not a row-major offset.
func emitProceduralPropagation(fnTC *sltype.TypeContext, sg *model.SynapseGroup, body string) (string, error) {
	conn := sg.Connectivity
	if conn == nil {
		return "", fmt.Errorf("synapse group %q: PROCEDURAL matrix type requires a connectivity initialiser", sg.Name())
	}

	rowTC := withFunctions(fnTC,
		sltype.FunctionSig{Name: "addSynapse", NumArgs: 1, ReturnKind: sltype.KindVoid,
			Substitute: proceduralAddSynapseSubstitute(body)},
	)
	rowScope := env.NewEnvironment(nil)
	bindConstParams(rowScope, conn.Params, nil)
	rowScope.Add("id_post", dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindInt32)), Expansion: "postIdx", ReadOnly: true})

	return printFragment(rowTC, rowScope, conn.RowBuildCode)
}

// proceduralAddSynapseSubstitute mirrors rowAddSubstitute's bounds-free
// cousin: no counter to claim, no max to check against, just bind
// synIdx and run the synapse body for the candidate target the
// row-build code just produced.
func proceduralAddSynapseSubstitute(body string) string {
	return "do { int synIdx = $(0); " + body + " } while(0)"
}

// drainPending collects and renders each cache's newly queued first-use
// declarations, in the order the caches are given — syn before pre
// before post, matching their nesting — so a variable declares at the
// point its owning cache first saw it referenced, regardless of which
// (possibly more deeply nested) scope the reference was printed through.
func drainPending(caches ...*env.LocalVarCache) string {
	var b strings.Builder
	for _, c := range caches {
		b.WriteString(declLines(c.PendingDeclarations()))
	}
	return b.String()
}

// accumSubstitute renders addToInSyn(x)'s expansion for the chosen
// accumulation strategy: a bare register add, a shared-memory atomic,
// or a global atomic (spec.md §4.6).
func accumSubstitute(be backend.Backend, strat accumStrategy) string {
	switch strat {
	case accumRegister:
		return "linSyn += $(0)"
	case accumShared:
		return be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemShared) + "(&shOutPost[postIdx], $(0))"
	default:
		return be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemGlobal) + "(&outPost[postIdx], $(0))"
	}
}

// delayAccumSubstitute renders addToPostDelay(x, d)'s expansion: always
// a global atomic, since the delay-ring offset depends on per-call
// data and can collide across threads regardless of span (spec.md
// §4.6 "Dendritic-delay writes ALWAYS use atomics").
func delayAccumSubstitute(be backend.Backend) string {
	return be.Atomic(sltype.KindScalar, backend.AtomicAdd, backend.MemGlobal) +
		"(&denDelay[((denDelayPtr + $(1)) % group.maxDendriticDelayTimesteps) * group.numNeurons + postIdx], $(0))"
}

// openPropagationLoop emits the loop nest matching sg's span and
// matrix type: SpanPresynaptic walks one thread per source neuron over
// its connectivity row, shaped by how that connectivity is actually
// stored (runtime/allocate.go's allocateConnectivity) — DENSE has no
// stored row at all (it is implicitly fully connected) so the thread
// just counts targets 0..numPost; SPARSE/BITMASK read back the
// rowLength+ind / gp arrays allocateConnectivity creates for them.
// PROCEDURAL never reaches here (EmitPresynapticUpdate routes it to
// emitProceduralPropagation instead, since it has no stored row to
// walk). SpanPostsynaptic walks one thread per target neuron over the
// step's presynaptic spike list, testing connectivity per candidate.
func openPropagationLoop(sg *model.SynapseGroup) string {
	var b strings.Builder
	switch sg.Span {
	case model.SpanPresynaptic:
		switch sg.MatrixType {
		case model.Sparse:
			b.WriteString("for (int j = 0; j < rowLength[preIdx]; j++) {\n")
			b.WriteString("    int postIdx = ind[preIdx * group.rowStride + j];\n")
			b.WriteString("    int synIdx = preIdx * group.rowStride + j;\n")
		case model.Bitmask:
			b.WriteString("for (int j = 0; j < group.rowStride; j++) {\n")
			b.WriteString("    if (!(gp[(preIdx * group.rowStride + j) / 32] & (1u << ((preIdx * group.rowStride + j) % 32)))) continue;\n")
			b.WriteString("    int postIdx = j;\n")
			b.WriteString("    int synIdx = preIdx * group.rowStride + postIdx;\n")
		default: // model.Dense, model.Toeplitz: fully connected, no stored row.
			b.WriteString("for (int j = 0; j < group.numPost; j++) {\n")
			b.WriteString("    int postIdx = j;\n")
			b.WriteString("    int synIdx = preIdx * group.rowStride + postIdx;\n")
		}
	case model.SpanPostsynaptic:
		b.WriteString("for (int s = 0; s < numSrcSpikes; s++) {\n")
		b.WriteString("    int preIdx = srcSpikes[s];\n")
		switch sg.MatrixType {
		case model.Sparse:
			// No (preIdx,postIdx)-addressable slot in row-major ind/weight
			// storage (insertion order during connectivity build decides
			// each synapse's slot) — scan postIdx's own reverse-mapped
			// column for preIdx instead (spec.md §9 design note (c)).
			b.WriteString("    int synIdx = -1;\n")
			b.WriteString("    for (int k = 0; k < colLength[postIdx]; k++) {\n")
			b.WriteString("        if (colInd[postIdx * group.colStride + k] == preIdx) { synIdx = remap[postIdx * group.colStride + k]; break; }\n")
			b.WriteString("    }\n")
			b.WriteString("    if (synIdx < 0) continue;\n")
		case model.Bitmask:
			b.WriteString("    if (!connected(preIdx, postIdx)) continue;\n")
			b.WriteString("    int synIdx = preIdx * group.rowStride + postIdx;\n")
		default:
			b.WriteString("    int synIdx = preIdx * group.rowStride + postIdx;\n")
		}
	}
	return b.String()
}

func closePropagationLoop(sg *model.SynapseGroup) string {
	return "}\n"
}

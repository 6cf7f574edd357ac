// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goki/snngen/backend"
	"github.com/goki/snngen/dsl"
	"github.com/goki/snngen/env"
	"github.com/goki/snngen/merge"
	"github.com/goki/snngen/model"
	"github.com/goki/snngen/sltype"
)

// scalarLit formats a constant parameter value as backend source
// text, matching dsl.Printer's own float-literal rendering (a
// trailing "f" marks it as the model's scalar type).
func scalarLit(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "f"
}

// withFunctions returns a TypeContext sharing base's precision but
// carrying its own copy of the function registry overlaid with fns —
// used to register a call-site-specific substitution (injectCurrent's
// target variable) without mutating the TypeContext every other
// fragment in the same kernel is type-checked against.
func withFunctions(base *sltype.TypeContext, fns ...sltype.FunctionSig) *sltype.TypeContext {
	reg := make(map[string]sltype.FunctionSig, len(base.Registry)+len(fns))
	for k, v := range base.Registry {
		reg[k] = v
	}
	for _, fn := range fns {
		reg[fn.Name] = fn
	}
	return &sltype.TypeContext{Precision: base.Precision, TimePrecision: base.TimePrecision, Registry: reg}
}

// bindConstParams registers params and their derived parameters as
// read-only constant bindings on scope. Referenced parameter values
// are guaranteed equal across a FusedGroup's members (digest.
// PSFuseHash/WUPreFuseHash/WUPostFuseHash hash exactly the values a
// fragment reads), so emitting the archetype's own values is correct
// for every fused consumer, not just the archetype itself.
func bindConstParams(scope *env.Environment, params model.ParamMap, derived []model.DerivedParam) {
	for name, v := range params {
		scope.Add(name, dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindScalar)), Expansion: scalarLit(v), ReadOnly: true})
	}
	for _, dp := range derived {
		if v, ok := dp.Value(); ok {
			scope.Add(dp.Name, dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindScalar)), Expansion: scalarLit(v), ReadOnly: true})
		}
	}
}

// bindDT registers the model's integration step as a read-only
// constant named "dt" (spec.md glossary "dt: double — integration
// step"), available to any sim/dynamics code fragment that references
// it directly rather than through a derived parameter.
func bindDT(scope *env.Environment, dt float64) {
	scope.Add("dt", dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindScalar)), Expansion: scalarLit(dt), ReadOnly: true})
}

// bindMergedParams registers a merged neuron group's params/derived
// params on fenv: homogeneous across the merged instances inlines as
// a constant, heterogeneous expands to a per-instance array read
// (spec.md §4.3/§4.5).
func bindMergedParams(fenv *env.MergedFieldEnvironment[*model.NeuronGroup], archetype *model.NeuronGroup) {
	for name := range archetype.Params {
		name := name
		fenv.AddField(name, sltype.KindScalar, true, func(g *model.NeuronGroup) any {
			v, _ := g.Param(name)
			return v
		})
	}
	for _, dp := range archetype.DerivedParams {
		name := dp.Name
		fenv.AddField(name, sltype.KindScalar, true, func(g *model.NeuronGroup) any {
			v, _ := g.DerivedParamValue(name)
			return v
		})
	}
}

// ctypeOf renders a resolved Kind as backend source text, resolving
// the precision-dependent scalar kinds against tc.
func ctypeOf(tc *sltype.TypeContext, k sltype.Kind) string {
	switch k {
	case sltype.KindScalar:
		return tc.Precision.String()
	case sltype.KindTimeScalar:
		return tc.TimePrecision.String()
	default:
		return k.String()
	}
}

// synSuffix disambiguates per-synapse-group array names when several
// fused groups of the same kind are emitted into one neuron-update
// body, mirroring the teacher-domain's own "fieldSuffix" convention of
// appending a declaration index to a shared field name.
func synSuffix(name string) string { return "_" + name }

// EmitNeuronUpdate assembles one merged neuron group's per-timestep
// update body (spec.md §4.6, steps 1-8): delay-aware local variable
// aliases, fused postsynaptic integration, fused pre-output
// accumulation, current-source injection, a read-only Isyn alias, the
// group's own sim code, attached WUM pre/post dynamics and spike-event
// conditions, and threshold/reset with auto-refractory handling.
//
// psmGroups and preOutGroups are this group's incoming/outgoing fused
// groups, already restricted to mg's archetype: the caller runs
// merge.FusePostsynapticModels/FuseWUPre once over the whole model and
// filters by Archetype().Target()/Source() before calling in. The
// emitted body references two free identifiers supplied by whatever
// wraps it in a full kernel function: "idx" (the neuron's position
// within its own group) and "groupIndex" (which merged instance this
// launch is handling) — assigning those is the launch-grid's job, not
// this package's (spec.md's kernel/backend split). dt is the model's
// frozen integration step (Model.DT()), bound as the read-only "dt"
// identifier any sim/reset code may reference directly.
func EmitNeuronUpdate(tc *sltype.TypeContext, be backend.Backend, mg *merge.MergedGroup[*model.NeuronGroup], psmGroups, preOutGroups []*merge.FusedGroup, dt float64) (string, error) {
	g := mg.Archetype()
	var body strings.Builder

	fenv := env.NewMergedFieldEnvironment(nil, mg, "group", "groupIndex")
	bindMergedParams(fenv, g)

	root := env.NewEnvironment(fenv)
	bindDT(root, dt)
	body.WriteString(fmt.Sprintf("%s _Isyn = 0;\n", tc.Precision.String()))
	root.Add("Isyn", dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(sltype.KindScalar)), Expansion: "_Isyn", ReadOnly: true})
	for _, v := range g.AdditionalInputVars {
		init := "0"
		if v.Init.IsConstant() {
			init = scalarLit(v.Init.Constant)
		}
		body.WriteString(fmt.Sprintf("%s _%s = %s;\n", ctypeOf(tc, v.Kind), v.Name, init))
		root.Add(v.Name, dsl.Binding{Type: sltype.ConstOf(sltype.Scalar(v.Kind)), Expansion: "_" + v.Name, ReadOnly: true})
	}

	adapter := &neuronDelayAdapter{group: g}
	locals := env.NewLocalVarCache(root, tc, adapter)
	for _, v := range g.Vars {
		locals.RegisterVar(v.Name, v.Kind, v.Access)
		locals.Lookup(v.Name) // force step-1 eager declaration, rather than lazy-on-first-use
	}
	body.WriteString(declLines(locals.PendingDeclarations()))

	// 2. fused postsynaptic input.
	for _, fg := range psmGroups {
		txt, err := emitFusedPSM(tc, be, fg, dt)
		if err != nil {
			return "", err
		}
		body.WriteString(txt)
	}

	// 3. fused pre-output accumulation.
	for _, fg := range preOutGroups {
		body.WriteString(emitFusedPreOutput(fg))
	}

	// 4. current sources.
	for _, cs := range g.CurrentSources() {
		txt, err := emitCurrentSource(tc, locals, cs)
		if err != nil {
			return "", err
		}
		body.WriteString(txt)
	}

	// 5/8a. snapshot the threshold condition before sim code changes
	// state, if auto-refractory tracking needs the rising edge.
	oldSpikeTxt, err := emitOldSpikeSnapshot(tc, locals, g)
	if err != nil {
		return "", err
	}
	body.WriteString(oldSpikeTxt)

	// 6. user sim code.
	simTxt, err := printFragment(tc, locals, g.SimCode)
	if err != nil {
		return "", err
	}
	body.WriteString(declLines(locals.PendingDeclarations()))
	body.WriteString(simTxt)

	// 7. WUM pre/post dynamics and spike-event conditions.
	for _, sg := range g.Outgoing() {
		txt, err := emitPreDynamics(tc, locals, sg)
		if err != nil {
			return "", err
		}
		body.WriteString(txt)
	}
	for _, sg := range g.Incoming() {
		txt, err := emitPostDynamics(tc, locals, sg)
		if err != nil {
			return "", err
		}
		body.WriteString(txt)
	}
	for _, sg := range g.Outgoing() {
		txt, err := emitSpikeEventCondition(tc, locals, sg)
		if err != nil {
			return "", err
		}
		body.WriteString(txt)
	}

	// 8. threshold test, true-spike reset, delay-slot copy.
	thresholdTxt, err := emitThresholdAndReset(tc, locals, g)
	if err != nil {
		return "", err
	}
	body.WriteString(thresholdTxt)

	body.WriteString(declLines(locals.Flush()))
	return body.String(), nil
}

// emitFusedPSM assembles one fused postsynaptic-model group's
// contribution: read the shared inSyn accumulator into linSyn, add and
// zero the dendritic-delay slot when required, run the apply-input and
// decay code, then write linSyn back (grounded on GeNN's
// NeuronUpdateGroupMerged::InSynPSM::generate).
func emitFusedPSM(tc *sltype.TypeContext, be backend.Backend, fg *merge.FusedGroup, dt float64) (string, error) {
	arch := fg.Archetype
	psm := arch.PSM
	suffix := synSuffix(arch.Name())

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s linSyn%s = outPost%s[idx];\n", tc.Precision.String(), suffix, suffix))
	if arch.NeedsDendriticDelay() {
		b.WriteString(fmt.Sprintf("%s%s *denDelayFront%s = &denDelay%s[(denDelayPtr%s * group.numNeurons) + idx];\n",
			be.PointerPrefix(), tc.Precision.String(), suffix, suffix, suffix))
		b.WriteString(fmt.Sprintf("linSyn%s += *denDelayFront%s;\n", suffix, suffix))
		b.WriteString(fmt.Sprintf("*denDelayFront%s = 0;\n", suffix))
	}

	scope := env.NewEnvironment(nil)
	bindConstParams(scope, psm.Params, psm.DerivedParams)
	bindDT(scope, dt)
	scope.Add("inSyn", dsl.Binding{Expansion: "linSyn" + suffix})
	scope.Add("Isyn", dsl.Binding{Expansion: "_" + arch.PostTargetVar})

	applyTxt, err := printFragment(tc, scope, psm.ApplyInputCode)
	if err != nil {
		return "", err
	}
	decayTxt, err := printFragment(tc, scope, psm.DecayCode)
	if err != nil {
		return "", err
	}
	b.WriteString(applyTxt)
	b.WriteString(decayTxt)
	b.WriteString(fmt.Sprintf("outPost%s[idx] = linSyn%s;\n", suffix, suffix))
	return b.String(), nil
}

// emitFusedPreOutput accumulates a fused pre-output group's outPre
// slot into its configured pre-target variable and zeroes the slot
// (grounded on GeNN's OutSynPreOutput::generate).
func emitFusedPreOutput(fg *merge.FusedGroup) string {
	arch := fg.Archetype
	suffix := synSuffix(arch.Name())
	target := arch.PreTargetVar
	return fmt.Sprintf("_%s += outPre%s[idx];\noutPre%s[idx] = 0;\n", target, suffix, suffix)
}

// emitCurrentSource runs one current source's injection code, with
// injectCurrent(x) substituting to "<target> += x" (grounded on GeNN's
// CurrentSource::generate; current sources always target Isyn in this
// module — the original's per-source configurable target var was not
// carried over, see DESIGN.md).
func emitCurrentSource(tc *sltype.TypeContext, parent dsl.Scope, cs *model.CurrentSource) (string, error) {
	scope := env.NewEnvironment(parent)
	bindConstParams(scope, cs.Params, cs.DerivedParams)

	adapter := &staticAdapter{groupExpr: "cs" + synSuffix(cs.Name()), indexExpr: "idx"}
	locals := env.NewLocalVarCache(scope, tc, adapter)
	for _, v := range cs.Vars {
		locals.RegisterVar(v.Name, v.Kind, v.Access)
	}
	fnTC := withFunctions(tc, sltype.FunctionSig{Name: "injectCurrent", NumArgs: 1, ReturnKind: sltype.KindVoid, Substitute: "_Isyn += $(0)"})

	out, err := emitWithLocals(fnTC, locals, cs.InjectionCode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(declLines(out.Decls))
	b.WriteString(out.Text)
	b.WriteString(declLines(locals.Flush()))
	return b.String(), nil
}

// emitPreDynamics runs an outgoing synapse group's WUM pre-dynamics
// code, executed once per presynaptic neuron per timestep regardless
// of how many postsynaptic targets the synapse group has (grounded on
// GeNN's OutSynWUMPreCode::generate).
func emitPreDynamics(tc *sltype.TypeContext, parent dsl.Scope, sg *model.SynapseGroup) (string, error) {
	if sg.WUM.PreDynamicsCode.Identity == "" {
		return "", nil
	}
	scope := env.NewEnvironment(parent)
	bindConstParams(scope, sg.WUM.Params, sg.WUM.DerivedParams)

	adapter := &staticAdapter{groupExpr: "preSyn" + synSuffix(sg.Name()), indexExpr: "idx"}
	locals := env.NewLocalVarCache(scope, tc, adapter)
	for _, v := range sg.WUM.PreVars {
		locals.RegisterVar(v.Name, v.Kind, v.Access)
	}
	out, err := emitWithLocals(tc, locals, sg.WUM.PreDynamicsCode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(declLines(out.Decls))
	b.WriteString(out.Text)
	b.WriteString(declLines(locals.Flush()))
	return b.String(), nil
}

// emitPostDynamics is emitPreDynamics's mirror for an incoming synapse
// group's WUM post-dynamics code, run once per postsynaptic neuron.
func emitPostDynamics(tc *sltype.TypeContext, parent dsl.Scope, sg *model.SynapseGroup) (string, error) {
	if sg.WUM.PostDynamicsCode.Identity == "" {
		return "", nil
	}
	scope := env.NewEnvironment(parent)
	bindConstParams(scope, sg.WUM.Params, sg.WUM.DerivedParams)

	adapter := &staticAdapter{groupExpr: "postSyn" + synSuffix(sg.Name()), indexExpr: "idx"}
	locals := env.NewLocalVarCache(scope, tc, adapter)
	for _, v := range sg.WUM.PostVars {
		locals.RegisterVar(v.Name, v.Kind, v.Access)
	}
	out, err := emitWithLocals(tc, locals, sg.WUM.PostDynamicsCode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(declLines(out.Decls))
	b.WriteString(out.Text)
	b.WriteString(declLines(locals.Flush()))
	return b.String(), nil
}

// emitSpikeEventCondition emits the spike-like-event guard for an
// outgoing synapse group, running its event code when the threshold
// fires (grounded on GeNN's SynSpikeEvent::generateEventCondition,
// simplified: this module does not carry over the original's separate
// spike-event delay-time bookkeeping, see DESIGN.md).
func emitSpikeEventCondition(tc *sltype.TypeContext, parent dsl.Scope, sg *model.SynapseGroup) (string, error) {
	if sg.WUM.EventThresholdCode.Identity == "" {
		return "", nil
	}
	scope := env.NewEnvironment(parent)
	bindConstParams(scope, sg.WUM.Params, sg.WUM.DerivedParams)

	cond, err := printExprFragment(tc, scope, sg.WUM.EventThresholdCode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("if (%s) {\n", cond))
	if sg.WUM.EventCode.Identity != "" {
		eventTxt, err := printFragment(tc, scope, sg.WUM.EventCode)
		if err != nil {
			return "", err
		}
		b.WriteString(eventTxt)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// emitOldSpikeSnapshot captures the threshold condition's value before
// sim code runs, when auto-refractory tracking needs it to detect a
// rising edge later (grounded on GeNN's "const bool oldSpike = (...)"
// snapshot in generateNeuronUpdate).
func emitOldSpikeSnapshot(tc *sltype.TypeContext, scope dsl.Scope, g *model.NeuronGroup) (string, error) {
	if g.ThresholdCode.Identity == "" || !g.AutoRefractoryRequired {
		return "", nil
	}
	cond, err := printExprFragment(tc, scope, g.ThresholdCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("const bool oldSpike = (%s);\n", cond), nil
}

// emitThresholdAndReset re-evaluates the threshold condition after sim
// code and attached WUM dynamics have run; on a rising edge (and not
// already spiking, if refractory) it records the spike and runs the
// reset code. The else branch advances the spike-time delay slot when
// the group carries a delay queue (pre/post weight-update variable
// delay-slot copying is deferred — see DESIGN.md).
func emitThresholdAndReset(tc *sltype.TypeContext, scope dsl.Scope, g *model.NeuronGroup) (string, error) {
	if g.ThresholdCode.Identity == "" {
		return "", nil
	}
	cond, err := printExprFragment(tc, scope, g.ThresholdCode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("if ((" + cond + ")")
	if g.AutoRefractoryRequired {
		b.WriteString(" && !oldSpike")
	}
	b.WriteString(") {\n")
	b.WriteString("    emitTrueSpike();\n")
	if g.ResetCode.Identity != "" {
		resetTxt, err := printFragment(tc, scope, g.ResetCode)
		if err != nil {
			return "", err
		}
		b.WriteString(resetTxt)
	}
	b.WriteString("}\n")
	if g.NeedsSpikeQueue() {
		b.WriteString("else {\n")
		b.WriteString("    sT[writeDelaySlot * group.numNeurons + idx] = sT[readDelaySlot * group.numNeurons + idx];\n")
		b.WriteString("}\n")
	}
	return b.String(), nil
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package merge

import (
	"golang.org/x/exp/slices"

	"github.com/goki/snngen/digest"
	"github.com/goki/snngen/model"
)

// FusedGroup is a set of synapse groups whose per-instance state
// (spec.md §4.3's "fuse", not merely "merge") can share one backing
// array: one archetype owns the array, the rest are its fused
// consumers.
type FusedGroup struct {
	Archetype *model.SynapseGroup
	Consumers []*model.SynapseGroup
}

// Members returns archetype + consumers together, in declaration order.
func (f *FusedGroup) Members() []*model.SynapseGroup {
	out := make([]*model.SynapseGroup, 0, 1+len(f.Consumers))
	out = append(out, f.Archetype)
	return append(out, f.Consumers...)
}

// fuseScope buckets candidate synapse groups before fusion-hash
// partitioning: PS fusion only applies within groups sharing the same
// target (they all write the same neuron group's inSyn); WU pre/post
// fusion only applies within groups sharing the same source/target
// respectively. Returns the buckets plus first-seen key order, so a
// caller ranging over scopes gets deterministic output (spec.md §8
// "Round-trip / idempotence" requires repeated generation from an
// unchanged model to emit byte-identical kernels).
func fuseScope(groups []*model.SynapseGroup, scopeKey func(*model.SynapseGroup) string) (map[string][]*model.SynapseGroup, []string) {
	scopes := map[string][]*model.SynapseGroup{}
	var order []string
	for _, sg := range groups {
		k := scopeKey(sg)
		if !slices.Contains(order, k) {
			order = append(order, k)
		}
		scopes[k] = append(scopes[k], sg)
	}
	return scopes, order
}

// fuseBy partitions groups into FusedGroups: within each scope bucket,
// groups are further partitioned by fuseKey; a partition with more than
// one member only actually fuses if every member satisfies canFuse,
// otherwise each member of that partition stays its own singleton
// FusedGroup (spec.md §4.3's CannotFuse is non-fatal: "the offending
// group is simply not fused").
func fuseBy(groups []*model.SynapseGroup, scopeKey func(*model.SynapseGroup) string,
	fuseKey func(*model.SynapseGroup) digest.Digest, canFuse func(*model.SynapseGroup) bool, enabled bool) []*FusedGroup {

	var out []*FusedGroup
	scopes, order := fuseScope(groups, scopeKey)
	for _, key := range order {
		scoped := scopes[key]
		if !enabled {
			for _, sg := range scoped {
				out = append(out, &FusedGroup{Archetype: sg})
			}
			continue
		}
		mgs := Partition(scoped, fuseKey)
		for _, mg := range mgs {
			allFusable := len(mg.Members) > 1
			for _, m := range mg.Members {
				if !canFuse(m) {
					allFusable = false
					break
				}
			}
			if allFusable {
				out = append(out, &FusedGroup{Archetype: mg.Members[0], Consumers: mg.Members[1:]})
			} else {
				for _, m := range mg.Members {
					out = append(out, &FusedGroup{Archetype: m})
				}
			}
		}
	}
	return out
}

// FusePostsynapticModels fuses incoming synapse groups that target the
// same neuron group and whose PSFuseHash matches, provided every
// member satisfies canPSBeFused (spec.md §4.3). Pass enabled=false to
// honour Model.SetFusePostsynapticModels(false).
func FusePostsynapticModels(groups []*model.SynapseGroup, enabled bool) []*FusedGroup {
	return fuseBy(groups,
		func(sg *model.SynapseGroup) string { return sg.Target().Name() },
		digest.PSFuseHash, digest.CanPSBeFused, enabled)
}

// FuseWUPre fuses outgoing synapse groups sharing a source neuron
// group whose WUPreFuseHash matches and which are all pre-fusable.
func FuseWUPre(groups []*model.SynapseGroup, enabled bool) []*FusedGroup {
	return fuseBy(groups,
		func(sg *model.SynapseGroup) string { return sg.Source().Name() },
		digest.WUPreFuseHash, digest.CanWUPreBeFused, enabled)
}

// FuseWUPost fuses incoming synapse groups sharing a target neuron
// group whose WUPostFuseHash matches and which are all post-fusable.
func FuseWUPost(groups []*model.SynapseGroup, enabled bool) []*FusedGroup {
	return fuseBy(groups,
		func(sg *model.SynapseGroup) string { return sg.Target().Name() },
		digest.WUPostFuseHash, digest.CanWUPostBeFused, enabled)
}

// PartitionNeuronGroups builds the merged neuron-update groups: one
// MergedGroup per distinct NeuronGroupHash (spec.md §4.3).
func PartitionNeuronGroups(groups []*model.NeuronGroup, precision, timePrecision model.Precision) []*MergedGroup[*model.NeuronGroup] {
	return Partition(groups, func(g *model.NeuronGroup) digest.Digest {
		return digest.NeuronGroupHash(g, precision, timePrecision)
	})
}

// PartitionSynapseWU builds the merged presynaptic-update groups: one
// MergedGroup per distinct WUHash.
func PartitionSynapseWU(groups []*model.SynapseGroup) []*MergedGroup[*model.SynapseGroup] {
	return Partition(groups, digest.WUHash)
}

// PartitionSynapseInit builds the merged weight/connectivity-init
// groups: one MergedGroup per distinct WUInitHash.
func PartitionSynapseInit(groups []*model.SynapseGroup) []*MergedGroup[*model.SynapseGroup] {
	return Partition(groups, digest.WUInitHash)
}

// PartitionCurrentSources builds the merged current-source groups.
func PartitionCurrentSources(sources []*model.CurrentSource) []*MergedGroup[*model.CurrentSource] {
	return Partition(sources, digest.CurrentSourceHash)
}

// PartitionCustomUpdates builds the merged custom-update groups,
// scoped by update group name (spec.md §3: "executed out-of-band ...
// within a named update group" — two custom updates in different
// update groups never share a kernel launch even if structurally
// identical).
func PartitionCustomUpdates(updates []*model.CustomUpdate) []*MergedGroup[*model.CustomUpdate] {
	byGroup := map[string][]*model.CustomUpdate{}
	var order []string
	for _, u := range updates {
		if _, ok := byGroup[u.UpdateGroup()]; !ok {
			order = append(order, u.UpdateGroup())
		}
		byGroup[u.UpdateGroup()] = append(byGroup[u.UpdateGroup()], u)
	}
	var out []*MergedGroup[*model.CustomUpdate]
	for _, grp := range order {
		out = append(out, Partition(byGroup[grp], digest.CustomUpdateHash)...)
	}
	return out
}

// PartitionCustomConnectivityUpdates builds the merged custom-
// connectivity-update groups, scoped the same way.
func PartitionCustomConnectivityUpdates(updates []*model.CustomConnectivityUpdate) []*MergedGroup[*model.CustomConnectivityUpdate] {
	byGroup := map[string][]*model.CustomConnectivityUpdate{}
	var order []string
	for _, u := range updates {
		if _, ok := byGroup[u.UpdateGroup()]; !ok {
			order = append(order, u.UpdateGroup())
		}
		byGroup[u.UpdateGroup()] = append(byGroup[u.UpdateGroup()], u)
	}
	var out []*MergedGroup[*model.CustomConnectivityUpdate]
	for _, grp := range order {
		out = append(out, Partition(byGroup[grp], digest.CustomConnectivityUpdateHash)...)
	}
	return out
}

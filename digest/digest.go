// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package digest computes the structural 160-bit digests spec.md §4.2
// describes: one flavour per emission pass, used by package merge to
// decide which user-declared groups collapse into a shared merged
// group, and a stricter "fuse" flavour used to decide which *instances*
// may additionally share backing state.
//
// There is no hashing library among the retrieved example dependencies
// suited to a deterministic, order-sensitive 160-bit combine; crypto/
// sha1 is the standard library's own 160-bit digest and is used here
// purely as a combine primitive (never for anything security-
// sensitive), matching the original GeNN implementation's use of
// boost::hash_combine over the same kind of shape data.
package digest

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"github.com/goki/snngen/model"
	"github.com/goki/snngen/slbool"
	"github.com/goki/snngen/sltype"
)

// Digest is a 160-bit structural fingerprint.
type Digest [sha1.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Equal reports bitwise equality, the basis for every "equality for
// fusion decisions" comparison in spec.md §4.2.
func (d Digest) Equal(o Digest) bool { return d == o }

// Builder accumulates the ingredients of a digest in a fixed,
// documented order so that two structurally-identical groups always
// produce the same bytes regardless of map iteration order elsewhere
// in the codebase (spec.md §8's "byte-identical digests across runs").
type Builder struct {
	h hash.Hash
}

func New() *Builder { return &Builder{h: sha1.New()} }

func (b *Builder) WriteString(s string) *Builder {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	b.h.Write(lenBuf[:])
	b.h.Write([]byte(s))
	return b
}

func (b *Builder) WriteInt(i int) *Builder {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	b.h.Write(buf[:])
	return b
}

// WriteBool folds v in via slbool's int32 encoding rather than Go's
// own bool representation, so the digest reflects the same 0/1 pattern
// a generated kernel's backend-portable boolean field would hold.
func (b *Builder) WriteBool(v bool) *Builder {
	return b.WriteInt(int(slbool.FromBool(v)))
}

func (b *Builder) WriteFloat(f float64) *Builder {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	b.h.Write(buf[:])
	return b
}

func (b *Builder) WriteTokens(ts model.TokenStream) *Builder {
	b.WriteInt(len(ts.Tokens))
	for _, t := range ts.Tokens {
		b.WriteInt(int(t.Kind))
		b.WriteString(t.Text)
	}
	return b
}

// WriteVarShape writes a VarInit's name/kind/access but never its
// initialiser *value* — shape equality is what structural fusion
// requires; values only matter for the stricter fuse-hash.
func (b *Builder) WriteVarShape(v model.VarInit) *Builder {
	b.WriteString(v.Name)
	b.WriteInt(int(v.Kind))
	b.WriteInt(int(v.Access))
	b.WriteBool(v.Init.IsConstant())
	return b
}

func (b *Builder) WriteVarShapes(vs []model.VarInit) *Builder {
	b.WriteInt(len(vs))
	for _, v := range vs {
		b.WriteVarShape(v)
	}
	return b
}

func (b *Builder) WriteEGPShape(e model.ExtraGlobalParam) *Builder {
	b.WriteString(e.Name)
	b.WriteInt(int(e.Kind))
	b.WriteBool(e.IsArray)
	return b
}

func (b *Builder) WriteEGPShapes(es []model.ExtraGlobalParam) *Builder {
	b.WriteInt(len(es))
	for _, e := range es {
		b.WriteEGPShape(e)
	}
	return b
}

// WriteParamNames writes only the sorted parameter *names*, never
// values (structural equality ignores concrete parameter values so
// that heterogeneous parameters can still share a merged group).
func (b *Builder) WriteParamNames(p model.ParamMap) *Builder {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	b.WriteInt(len(names))
	for _, n := range names {
		b.WriteString(n)
	}
	return b
}

// WriteReferencedParamValues writes the *values* of only those
// parameters in p whose name is referenced by some token in frags —
// the rule spec.md §4.2 requires for fuse-hash computation: "Parameter
// values NOT referenced in the relevant code MUST NOT contribute to
// the fuse hash".
func (b *Builder) WriteReferencedParamValues(p model.ParamMap, frags ...model.TokenStream) *Builder {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		referenced := false
		for _, f := range frags {
			if f.HasIdentifier(n) {
				referenced = true
				break
			}
		}
		if referenced {
			b.WriteString(n)
			b.WriteFloat(p[n])
		}
	}
	return b
}

func (b *Builder) WritePrecision(p sltype.Precision) *Builder {
	b.WriteInt(int(p))
	return b
}

func (b *Builder) Sum() Digest {
	var d Digest
	copy(d[:], b.h.Sum(nil))
	return d
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout checks that the field struct a kernel emitter builds
// for a merged group is safe to push to a device as a flat, packed
// buffer. It generalizes the teacher's alignsl package (which checked
// that a shader constant-buffer struct's size was an even multiple of
// 16 bytes, the size of a float4 register) to the backend-portable
// rule: every field must resolve to a storable, fixed-width kind, and
// the struct's total size must be a multiple of the backend's scalar
// width rather than a fixed 16-byte GPU register size.
package layout

import (
	"fmt"

	"github.com/goki/snngen/sltype"
)

// Alignment is the byte width a merged group's packed field struct must
// be a multiple of. The teacher's alignsl required 16 (four float32
// lanes); a non-graphics backend only guarantees scalar-width access,
// so the requirement narrows to that.
const Alignment = 4

// Member describes one field of a merged group's packed struct, the
// layout-relevant projection of merge.Field (Name and Kind; Heterogeneous
// doesn't affect layout since every member, homogeneous or not, still
// occupies a slot in the struct).
type Member struct {
	Name string
	Kind sltype.Kind
}

// CheckMembers reports whether members packs cleanly: every member must
// resolve to a nonzero byte width under precision (alignsl's "basic type
// != [U]Int32 or Float32" check), and the summed width must be a
// multiple of Alignment (alignsl's "total size not even multiple of
// 16"). An empty member list is trivially valid, matching alignsl's
// CheckStruct skipping zero-field structs.
func CheckMembers(members []Member, precision sltype.Precision) error {
	if len(members) == 0 {
		return nil
	}
	total := 0
	for _, m := range members {
		w := m.Kind.ByteWidth(precision)
		if w == 0 {
			return fmt.Errorf("layout: field %q: kind %v has no fixed storage width", m.Name, m.Kind)
		}
		total += w
	}
	if total%Alignment != 0 {
		return fmt.Errorf("layout: packed struct size %d is not a multiple of %d bytes", total, Alignment)
	}
	return nil
}

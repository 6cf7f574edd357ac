// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
package slbool defines a backend-portable int32 Bool type -- the native
bool type varies in size and alignment across C-like backends, which
makes it unsafe to use directly in a struct shared between host and
device memory. Every device-visible flag field (autoRefractoryRequired,
per-member heterogeneous-field presence, …) uses this type instead.
*/
package slbool

type Bool int32

const (
	False Bool = 0
	True  Bool = 1
)

func IsTrue(b Bool) bool {
	return b == True
}

func IsFalse(b Bool) bool {
	return b == False
}

func FromBool(b bool) Bool {
	if b {
		return True
	}
	return False
}

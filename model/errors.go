// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"

	"github.com/goki/snngen/dsl"
)

// Configuration-error sentinels (spec.md §7): detected at IR
// construction time, unrecoverable, surfaced immediately via errors.Is.
var (
	ErrDuplicateName        = fmt.Errorf("snngen/model: duplicate name")
	ErrInvalidMatrixType    = fmt.Errorf("snngen/model: invalid matrix type")
	ErrIncompatibleInit     = fmt.Errorf("snngen/model: incompatible initialiser")
	ErrUnknownTargetVar     = fmt.Errorf("snngen/model: unknown target variable")
	ErrFrozen               = fmt.Errorf("snngen/model: model is frozen")
	ErrSyntax               = dsl.ErrSyntax
	ErrRecordingUnset       = fmt.Errorf("snngen/model: recording requested without a size")
)

// wrapf annotates err (one of the sentinels above) with call-specific
// context, keeping errors.Is(result, err) true.
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}

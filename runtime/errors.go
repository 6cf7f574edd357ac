// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

import "fmt"

// Runtime-environment error sentinels (spec.md §7): fatal for the run,
// detected only once a generated library is actually loaded and driven
// rather than at IR-construction time like model's configuration
// errors.
var (
	ErrLoadFailure    = fmt.Errorf("snngen/runtime: library load failed")
	ErrSymbolMissing  = fmt.Errorf("snngen/runtime: symbol missing")
	ErrDuplicateArray = fmt.Errorf("snngen/runtime: duplicate array")
	ErrBackendError   = fmt.Errorf("snngen/runtime: backend error")
)

// wrapf annotates err (one of the sentinels above, or model.ErrRecordingUnset)
// with call-specific context, keeping errors.Is(result, err) true.
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}

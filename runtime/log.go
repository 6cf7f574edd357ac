// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtime

import (
	"log"

	"github.com/c2h5oh/datasize"
	"github.com/dustin/go-humanize"
)

// Timing, when set, makes StepTime log a running step count through
// humanize.Comma every LogEvery steps. Off by default, matching the
// teacher's own log.Println-only-when-asked idiom in process.go.
type Timing struct {
	Enabled  bool
	LogEvery uint64
}

// LogAllocationSummary prints the total bytes allocated across every
// array Allocate has created so far, in human units, the way a
// diagnostic build log reports memory footprint before a run starts.
func (rt *Runtime) LogAllocationSummary() {
	var total uint64
	for _, a := range rt.arrays {
		total += uint64(a.Count()) * uint64(a.Kind().ByteWidth(rt.model.Precision()))
	}
	log.Printf("snngen/runtime: %s allocated across %d arrays (%s)",
		datasize.ByteSize(total).String(), len(rt.arrays), rt.model.Name)
}

// logStep reports progress during StepTime when t.Enabled, printing
// the comma-formatted step count every t.LogEvery steps.
func (rt *Runtime) logStep(t Timing) {
	if !t.Enabled || t.LogEvery == 0 {
		return
	}
	if rt.timestep%t.LogEvery == 0 {
		log.Printf("snngen/runtime: %s: step %s (t=%.3f)",
			rt.model.Name, humanize.Comma(int64(rt.timestep)), rt.GetTime())
	}
}

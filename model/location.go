// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "fmt"

// VarLocation is where an Array's backing memory lives, per spec.md §3.
type VarLocation int

const (
	HostOnly VarLocation = iota
	DeviceOnly
	HostDevice
	HostDeviceZeroCopy
)

func (l VarLocation) String() string {
	switch l {
	case HostOnly:
		return "HOST_ONLY"
	case DeviceOnly:
		return "DEVICE_ONLY"
	case HostDevice:
		return "HOST_DEVICE"
	case HostDeviceZeroCopy:
		return "HOST_DEVICE_ZERO_COPY"
	}
	return "UNKNOWN"
}

// ParseVarLocation parses one of VarLocation's String() forms, for
// config-file loading (spec.md §6's default-location options read from
// a project's snngen.toml).
func ParseVarLocation(s string) (VarLocation, error) {
	switch s {
	case "HOST_ONLY":
		return HostOnly, nil
	case "DEVICE_ONLY":
		return DeviceOnly, nil
	case "HOST_DEVICE", "":
		return HostDevice, nil
	case "HOST_DEVICE_ZERO_COPY":
		return HostDeviceZeroCopy, nil
	}
	return HostDevice, fmt.Errorf("model: unknown VarLocation %q", s)
}

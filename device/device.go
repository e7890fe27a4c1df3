// Copyright 2026 The Kiln Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the public API for accelerator devices and
// their compiled-program registries.
//
// A qualified GPU device compiles WGSL programs through WebGPU;
// registration is idempotent per program, so wiring the same layer
// twice compiles once:
//
//	dev := device.NewQualified(device.KindGPU, 0, 0)
//	_ = nn.AssignDevice(net, dev)
package device

import (
	"github.com/kiln-ml/kiln/internal/device"
)

// Kind classifies the hardware behind a device.
type Kind = device.Kind

const (
	KindNone = device.KindNone
	KindCPU  = device.KindCPU
	KindGPU  = device.KindGPU
)

type (
	// Device is a capability descriptor plus an owned program registry.
	Device = device.Device
	// ProgramRegistry caches compiled programs by name and source.
	ProgramRegistry = device.ProgramRegistry
	// Program is a compiled kernel handle.
	Program = device.Program
	// Compiler turns kernel source into programs.
	Compiler = device.Compiler
	// Op is the slice of a layer needed for program registration.
	Op = device.Op
)

// New returns an unqualified device that cannot register ops.
func New(kind Kind) *Device {
	return device.New(kind)
}

// NewQualified returns a device with platform and device identifiers.
// GPU devices open a WebGPU context when the runtime is available.
func NewQualified(kind Kind, platformID, deviceID int) *Device {
	return device.NewQualified(kind, platformID, deviceID)
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	return device.IsAvailable()
}

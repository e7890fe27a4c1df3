// Package core defines the backend-dispatch vocabulary shared by layers,
// kernels and devices: engine tags, operation identifiers, the
// per-operation capability table, spatial operation parameters and the
// channel connection table.
package core

import (
	"errors"
	"fmt"
)

// Engine selects the numeric kernel family a layer dispatches to.
// Dispatch is a runtime tag check, not compile-time polymorphism, because
// a layer may be retargeted to a different engine after construction.
type Engine int

const (
	// EngineInternal is the portable reference implementation.
	EngineInternal Engine = iota
	// EngineVectorized is the cache-friendly im2col/matmul formulation
	// with data-parallel loops.
	EngineVectorized
	// EngineAccelerated offloads to a compiled GPU program. Forward-only,
	// with stricter preconditions enforced by the capability table.
	EngineAccelerated
)

func (e Engine) String() string {
	switch e {
	case EngineInternal:
		return "internal"
	case EngineVectorized:
		return "vectorized"
	case EngineAccelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// Op identifies a numeric operation subject to engine dispatch.
type Op int

const (
	OpConv2D Op = iota
	OpDeconv2D
	OpMaxPool
	OpFullyConnected
)

func (o Op) String() string {
	switch o {
	case OpConv2D:
		return "conv2d"
	case OpDeconv2D:
		return "deconv2d"
	case OpMaxPool:
		return "maxpool"
	case OpFullyConnected:
		return "fully-connected"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// ErrNotSupported is the sentinel wrapped by every capability failure.
// Callers that want to retry on the internal engine match it with
// errors.Is.
var ErrNotSupported = errors.New("operation not supported")

// CapabilityError reports an operation requested on an engine that
// cannot perform it, or whose preconditions the layer configuration
// violates. It is fatal to the requested operation, not to the process.
type CapabilityError struct {
	Engine Engine
	Op     Op
	Reason string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s on %s engine: %s", ErrNotSupported, e.Op, e.Engine, e.Reason)
}

func (e *CapabilityError) Unwrap() error {
	return ErrNotSupported
}

// Capability describes what one engine supports for one operation.
type Capability struct {
	Forward            bool
	Backward           bool
	RequiresBias       bool // engine mandates a bias term
	RequiresUnitStride bool // engine only handles stride 1
	RequiresGPU        bool // engine needs a GPU-capable device
}

// capabilities is the authoritative per-operation capability table.
// The accelerated engine compiles forward-only programs and mandates a
// bias term; its convolution additionally requires unit stride.
var capabilities = map[Engine]map[Op]Capability{
	EngineInternal: {
		OpConv2D:         {Forward: true, Backward: true},
		OpDeconv2D:       {Forward: true, Backward: true},
		OpMaxPool:        {Forward: true, Backward: true},
		OpFullyConnected: {Forward: true, Backward: true},
	},
	EngineVectorized: {
		OpConv2D:         {Forward: true, Backward: true},
		OpDeconv2D:       {Forward: true, Backward: true},
		OpMaxPool:        {Forward: true, Backward: true},
		OpFullyConnected: {Forward: true, Backward: true},
	},
	EngineAccelerated: {
		OpConv2D:         {Forward: true, RequiresBias: true, RequiresUnitStride: true, RequiresGPU: true},
		OpFullyConnected: {Forward: true, RequiresBias: true, RequiresGPU: true},
	},
}

// Lookup returns the capability entry for an engine/op pair. The second
// result is false when the engine does not implement the operation at
// all.
func Lookup(e Engine, op Op) (Capability, bool) {
	ops, ok := capabilities[e]
	if !ok {
		return Capability{}, false
	}
	c, ok := ops[op]
	return c, ok
}

// CheckConfiguration validates an engine/op pairing against the layer's
// construction-time parameters. It is called once at layer setup so
// capability violations fail fast instead of per-call.
func CheckConfiguration(e Engine, op Op, hasBias bool, strideW, strideH int) error {
	c, ok := Lookup(e, op)
	if !ok || !c.Forward {
		return &CapabilityError{Engine: e, Op: op, Reason: "no kernel registered"}
	}
	if c.RequiresBias && !hasBias {
		return &CapabilityError{Engine: e, Op: op, Reason: "a bias term is required"}
	}
	if c.RequiresUnitStride && (strideW != 1 || strideH != 1) {
		return &CapabilityError{Engine: e, Op: op,
			Reason: fmt.Sprintf("stride must be 1, got %dx%d", strideW, strideH)}
	}
	return nil
}

// CheckBackward validates that an engine can run the backward pass of an
// operation.
func CheckBackward(e Engine, op Op) error {
	c, ok := Lookup(e, op)
	if !ok || !c.Backward {
		return &CapabilityError{Engine: e, Op: op, Reason: "backward pass not implemented"}
	}
	return nil
}

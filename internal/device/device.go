// Package device models the compute devices a layer graph can target
// and the per-device registry of compiled accelerated programs.
//
// A Device is a capability descriptor: its kind (CPU, GPU or none) plus
// the platform/device identifiers that qualify it for program
// compilation. Each device owns its program registry, so independent
// test runs reset cleanly.
package device

import (
	"fmt"
	"sync"

	"github.com/kiln-ml/kiln/internal/core"
)

// Kind enumerates device categories.
type Kind int

const (
	KindNone Kind = iota
	KindCPU
	KindGPU
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCPU:
		return "cpu"
	case KindGPU:
		return "gpu"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Op is the slice of a layer the device needs for program registration.
type Op interface {
	// LayerType is the stable string identifier of the layer.
	LayerType() string
	// Engine is the layer's dispatch tag.
	Engine() core.Engine
	// OpKind identifies which dispatched operation the layer performs.
	OpKind() core.Op
	// KernelSource returns the accelerated kernel source (WGSL) for the
	// layer, empty when the layer has none.
	KernelSource() string
}

// Program is a compiled accelerated kernel held by a device registry.
type Program interface {
	Name() string
}

// Compiler turns kernel source into a Program. The production compiler
// wraps WebGPU; tests may inject a stub.
type Compiler interface {
	Compile(name, source string) (Program, error)
}

// Device describes one compute target. A device constructed without
// platform/device identifiers is not capability-qualified and refuses
// program registration.
type Device struct {
	kind       Kind
	platformID int
	deviceID   int
	qualified  bool
	registry   *ProgramRegistry
	gpu        *Context
}

// New creates a bare device descriptor without platform/device
// identifiers. Such a device cannot compile programs.
func New(kind Kind) *Device {
	return &Device{
		kind:     kind,
		registry: NewProgramRegistry(nil),
	}
}

// NewQualified creates a capability-qualified device. For GPU devices a
// WebGPU context is opened when the runtime is available; when it is
// not, programs are registered in deferred form and fail at dispatch
// time rather than registration time.
func NewQualified(kind Kind, platformID, deviceID int) *Device {
	d := &Device{
		kind:       kind,
		platformID: platformID,
		deviceID:   deviceID,
		qualified:  true,
	}
	var compiler Compiler
	if kind == KindGPU {
		if ctx, err := OpenContext(); err == nil {
			d.gpu = ctx
			compiler = &gpuCompiler{ctx: ctx}
		} else {
			compiler = deferredCompiler{}
		}
	}
	d.registry = NewProgramRegistry(compiler)
	return d
}

// Kind returns the device kind.
func (d *Device) Kind() Kind { return d.kind }

// PlatformID returns the platform identifier (meaningful only for
// qualified devices).
func (d *Device) PlatformID() int { return d.platformID }

// DeviceID returns the device identifier (meaningful only for qualified
// devices).
func (d *Device) DeviceID() int { return d.deviceID }

// Context returns the live GPU context, or nil when the WebGPU runtime
// was unavailable at construction.
func (d *Device) Context() *Context { return d.gpu }

// Registry returns the device-owned program registry.
func (d *Device) Registry() *ProgramRegistry { return d.registry }

// RegisterOp compiles the layer's accelerated program into the device
// registry. Registration requires a capability-qualified GPU device and
// a layer dispatching to the accelerated engine. Re-registering an
// identical op is a no-op: the registry is checked before compiling.
func (d *Device) RegisterOp(op Op) error {
	if !d.qualified {
		return &core.CapabilityError{Engine: core.EngineAccelerated, Op: op.OpKind(),
			Reason: fmt.Sprintf("%s device lacks platform/device identifiers; construct it with both to register ops", d.kind)}
	}
	if d.kind != KindGPU {
		return &core.CapabilityError{Engine: core.EngineAccelerated, Op: op.OpKind(),
			Reason: fmt.Sprintf("cannot compile programs on a %s device", d.kind)}
	}
	if op.Engine() != core.EngineAccelerated {
		return &core.CapabilityError{Engine: op.Engine(), Op: op.OpKind(),
			Reason: fmt.Sprintf("layer %q dispatches to the %s engine; retarget it to %s before registering",
				op.LayerType(), op.Engine(), core.EngineAccelerated)}
	}
	source := op.KernelSource()
	if source == "" {
		return &core.CapabilityError{Engine: op.Engine(), Op: op.OpKind(),
			Reason: fmt.Sprintf("layer %q has no accelerated kernel", op.LayerType())}
	}
	_, err := d.registry.GetOrCompile(op.LayerType(), source)
	return err
}

// ProgramRegistry caches compiled programs keyed by op identity
// (layer type plus kernel source), guaranteeing idempotent
// registration.
type ProgramRegistry struct {
	mu       sync.Mutex
	compiler Compiler
	programs map[string]Program
}

// NewProgramRegistry creates an empty registry using the given compiler.
// A nil compiler rejects every compilation.
func NewProgramRegistry(compiler Compiler) *ProgramRegistry {
	return &ProgramRegistry{
		compiler: compiler,
		programs: make(map[string]Program),
	}
}

// SetCompiler replaces the registry's compiler. Used by tests to inject
// a stub and by callers that acquire a GPU context after construction.
func (r *ProgramRegistry) SetCompiler(c Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiler = c
}

// GetOrCompile returns the cached program for (name, source) or compiles
// and caches a new one.
func (r *ProgramRegistry) GetOrCompile(name, source string) (Program, error) {
	key := name + "\x00" + source

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.programs[key]; ok {
		return p, nil
	}
	if r.compiler == nil {
		return nil, fmt.Errorf("no compiler available for program %q", name)
	}
	p, err := r.compiler.Compile(name, source)
	if err != nil {
		return nil, fmt.Errorf("compiling program %q: %w", name, err)
	}
	r.programs[key] = p
	return p, nil
}

// NumPrograms returns the number of compiled programs.
func (r *ProgramRegistry) NumPrograms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.programs)
}

// Reset drops all compiled programs, releasing GPU-side resources.
// Called between independent runs.
func (r *ProgramRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.programs {
		if rel, ok := p.(interface{ Release() }); ok {
			rel.Release()
		}
	}
	r.programs = make(map[string]Program)
}

// deferredCompiler produces placeholder programs when the WebGPU runtime
// is absent. Registration bookkeeping (idempotence, counting) still
// works; dispatching such a program fails with a capability error.
type deferredCompiler struct{}

type deferredProgram struct {
	name   string
	source string
}

func (p *deferredProgram) Name() string { return p.name }

func (deferredCompiler) Compile(name, source string) (Program, error) {
	return &deferredProgram{name: name, source: source}, nil
}

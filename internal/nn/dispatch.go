package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/device"
)

// acceleratedRunner resolves the compiled GPU program for an op,
// failing with a capability error when no GPU device is assigned or the
// runtime could only record the program without compiling it.
func acceleratedRunner(op device.Op, dev *device.Device) (device.Runner, error) {
	if dev == nil || dev.Kind() != device.KindGPU {
		return nil, &core.CapabilityError{
			Engine: core.EngineAccelerated,
			Op:     op.OpKind(),
			Reason: "no GPU device assigned to the layer",
		}
	}

	prog, err := dev.Registry().GetOrCompile(op.LayerType(), op.KernelSource())
	if err != nil {
		return nil, err
	}
	runner, ok := prog.(device.Runner)
	if !ok {
		return nil, &core.CapabilityError{
			Engine: core.EngineAccelerated,
			Op:     op.OpKind(),
			Reason: "GPU runtime unavailable on this device",
		}
	}
	return runner, nil
}

package nn

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// ConfigError reports an invalid layer configuration discovered at
// construction or setup. It is fatal to the operation, not the process.
type ConfigError struct {
	LayerType string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nn: invalid configuration for layer %q: %s", e.LayerType, e.Reason)
}

// ConnectionError reports a shape mismatch between two layers being
// connected. It carries both layer types and the conflicting shapes.
type ConnectionError struct {
	HeadType string
	TailType string
	OutShape tensor.Shape3D
	InShape  tensor.Shape3D
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("nn: cannot connect %q (out %v) to %q (in %v): shape sizes differ",
		e.HeadType, e.OutShape, e.TailType, e.InShape)
}

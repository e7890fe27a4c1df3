package nn

import (
	"math"

	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Activation is an element-wise nonlinearity strategy. Layers either
// fuse one after their affine step or wrap one in an ActivationLayer.
// Backward accumulates dy*f'(x) into dx, computing the derivative from
// the forward output y so no layer retains pre-activation values.
type Activation interface {
	Name() string
	Forward(x, y []float32)
	Backward(y, dy, dx []float32)
	Range() (lo, hi float32)
}

// Identity passes values through unchanged.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Forward(x, y []float32) {
	copy(y, x)
}

func (Identity) Backward(y, dy, dx []float32) {
	for i := range dy {
		dx[i] += dy[i]
	}
}

func (Identity) Range() (float32, float32) {
	return float32(math.Inf(-1)), float32(math.Inf(1))
}

// Sigmoid is the logistic function 1/(1+e^-x).
type Sigmoid struct{}

func (Sigmoid) Name() string { return "sigmoid" }

func (Sigmoid) Forward(x, y []float32) {
	for i, v := range x {
		y[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
	}
}

func (Sigmoid) Backward(y, dy, dx []float32) {
	for i := range dy {
		dx[i] += dy[i] * y[i] * (1 - y[i])
	}
}

func (Sigmoid) Range() (float32, float32) { return 0, 1 }

// Tanh is the hyperbolic tangent.
type Tanh struct{}

func (Tanh) Name() string { return "tanh" }

func (Tanh) Forward(x, y []float32) {
	for i, v := range x {
		y[i] = float32(math.Tanh(float64(v)))
	}
}

func (Tanh) Backward(y, dy, dx []float32) {
	for i := range dy {
		dx[i] += dy[i] * (1 - y[i]*y[i])
	}
}

func (Tanh) Range() (float32, float32) { return -1, 1 }

// ReLU rectifies negative values to zero.
type ReLU struct{}

func (ReLU) Name() string { return "relu" }

func (ReLU) Forward(x, y []float32) {
	for i, v := range x {
		if v > 0 {
			y[i] = v
		} else {
			y[i] = 0
		}
	}
}

func (ReLU) Backward(y, dy, dx []float32) {
	for i := range dy {
		if y[i] > 0 {
			dx[i] += dy[i]
		}
	}
}

func (ReLU) Range() (float32, float32) { return 0, float32(math.Inf(1)) }

// Self-normalizing exponential linear unit constants.
const (
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

// SELU is the scaled exponential linear unit.
type SELU struct{}

func (SELU) Name() string { return "selu" }

func (SELU) Forward(x, y []float32) {
	for i, v := range x {
		if v > 0 {
			y[i] = float32(seluLambda * float64(v))
		} else {
			y[i] = float32(seluLambda * seluAlpha * (math.Exp(float64(v)) - 1))
		}
	}
}

func (SELU) Backward(y, dy, dx []float32) {
	for i := range dy {
		if y[i] > 0 {
			dx[i] += dy[i] * seluLambda
		} else {
			// for x<0, dy/dx = y + lambda*alpha
			dx[i] += dy[i] * (y[i] + seluLambda*seluAlpha)
		}
	}
}

func (SELU) Range() (float32, float32) {
	return float32(-seluLambda * seluAlpha), float32(math.Inf(1))
}

// ActivationLayer applies an activation as a standalone graph node. Its
// input shape may be left empty and inferred from the producing layer
// at connect time.
type ActivationLayer struct {
	Base
	act   Activation
	shape tensor.Shape3D
}

// NewActivationLayer wraps an activation. Pass a shape when the layer
// is used standalone; omit it to infer from the connected producer.
func NewActivationLayer(act Activation, shape ...tensor.Shape3D) *ActivationLayer {
	l := &ActivationLayer{
		Base: newBase(1, 1, defaultEngine),
		act:  act,
	}
	if len(shape) > 0 {
		l.setShape(shape[0])
	}
	return l
}

func (l *ActivationLayer) setShape(s tensor.Shape3D) {
	l.shape = s
	l.inShapes = []tensor.Shape3D{s}
	l.outShapes = []tensor.Shape3D{s}
}

// InferShape adopts the producer's output shape when none was declared.
func (l *ActivationLayer) InferShape(s tensor.Shape3D) {
	if l.shape.IsZero() {
		l.setShape(s)
	}
}

func (l *ActivationLayer) LayerType() string { return l.act.Name() + "-activation" }

func (l *ActivationLayer) FanInSize() int  { return 1 }
func (l *ActivationLayer) FanOutSize() int { return 1 }

// OutValueRange reports the activation's output interval.
func (l *ActivationLayer) OutValueRange() (float32, float32) { return l.act.Range() }

func (l *ActivationLayer) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]
	parallel.ForSamples(in.Rows(), func(sample int) {
		l.act.Forward(in.RowData(sample), out.RowData(sample))
	}, l.parallelize)
	return nil
}

func (l *ActivationLayer) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	out, dy, dx := outs[0], outGrads[0], inGrads[0]
	parallel.ForSamples(out.Rows(), func(sample int) {
		l.act.Backward(out.RowData(sample), dy.RowData(sample), dx.RowData(sample))
	}, l.parallelize)
	return nil
}

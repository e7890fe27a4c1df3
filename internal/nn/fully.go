package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/core/kernels"
	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// FullyConnected is a dense layer: out = W*in + b with W stored
// [outSize, inSize] row-major.
type FullyConnected struct {
	Base
	p   core.FullyParams
	act Activation

	weight *Parameter
	bias   *Parameter

	actDelta *tensor.Tensor
}

// NewFullyConnected builds a dense layer. Engine preconditions are
// checked at construction.
func NewFullyConnected(inSize, outSize int, opts ...ConvOption) (*FullyConnected, error) {
	cfg := defaultConvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if inSize <= 0 || outSize <= 0 {
		return nil, &ConfigError{LayerType: "fully-connected", Reason: "sizes must be positive"}
	}
	if err := core.CheckConfiguration(cfg.engine, core.OpFullyConnected, cfg.hasBias, 1, 1); err != nil {
		return nil, err
	}

	l := &FullyConnected{
		Base: newBase(1, 1, cfg.engine),
		p:    core.FullyParams{InSize: inSize, OutSize: outSize, HasBias: cfg.hasBias},
		act:  cfg.act,
	}
	l.parallelize = cfg.parallelize
	l.inShapes = []tensor.Shape3D{tensor.NewShape3D(inSize, 1, 1)}
	l.outShapes = []tensor.Shape3D{tensor.NewShape3D(outSize, 1, 1)}

	l.weight = NewParameter(outSize, inSize, 1, 1, ParamWeight)
	l.params = append(l.params, l.weight)
	if cfg.hasBias {
		l.bias = NewParameter(outSize, 1, 1, 1, ParamBias)
		l.params = append(l.params, l.bias)
	}
	return l, nil
}

func (l *FullyConnected) LayerType() string { return "fully-connected" }

func (l *FullyConnected) FanInSize() int  { return l.p.InSize }
func (l *FullyConnected) FanOutSize() int { return l.p.OutSize }

// Weight is the [outSize, inSize] matrix parameter.
func (l *FullyConnected) Weight() *Parameter { return l.weight }

// Bias is the bias parameter, nil when disabled.
func (l *FullyConnected) Bias() *Parameter { return l.bias }

// OpKind identifies the operation for capability checks.
func (l *FullyConnected) OpKind() core.Op { return core.OpFullyConnected }

// KernelSource is the WGSL program for the accelerated forward pass.
func (l *FullyConnected) KernelSource() string { return device.ShaderFullyForward }

func (l *FullyConnected) biasData() []float32 {
	if l.bias == nil {
		return nil
	}
	return l.bias.Data().Data()
}

func (l *FullyConnected) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]
	out.Fill(0)

	switch l.engine {
	case core.EngineVectorized:
		kernels.FullyForwardVectorized(l.p, in, l.weight.Data().Data(), l.biasData(), out, l.parallelize)
	case core.EngineAccelerated:
		if err := l.forwardAccelerated(in, out); err != nil {
			return err
		}
	default:
		kernels.FullyForward(l.p, in, l.weight.Data().Data(), l.biasData(), out, l.parallelize)
	}

	if l.act != nil {
		parallel.ForSamples(out.Rows(), func(sample int) {
			row := out.RowData(sample)
			l.act.Forward(row, row)
		}, l.parallelize)
	}
	return nil
}

func (l *FullyConnected) forwardAccelerated(in, out *tensor.Tensor) error {
	runner, err := acceleratedRunner(l, l.dev)
	if err != nil {
		return err
	}

	dims := []uint32{uint32(l.p.InSize), uint32(l.p.OutSize)}
	w := l.weight.Data().Data()
	for sample := 0; sample < in.Rows(); sample++ {
		inputs := [][]float32{in.RowData(sample), w, l.biasData()}
		if err := runner.Run(inputs, out.RowData(sample), dims); err != nil {
			return err
		}
	}
	return nil
}

func (l *FullyConnected) localDelta(out, outGrad *tensor.Tensor) *tensor.Tensor {
	if l.act == nil {
		return outGrad
	}
	if l.actDelta == nil {
		l.actDelta = tensor.New(tensor.Shape{out.Rows(), l.p.OutSize})
	} else {
		l.actDelta.ResizeRows(out.Rows())
	}
	l.actDelta.Fill(0)
	parallel.ForSamples(out.Rows(), func(sample int) {
		l.act.Backward(out.RowData(sample), outGrad.RowData(sample), l.actDelta.RowData(sample))
	}, l.parallelize)
	return l.actDelta
}

func (l *FullyConnected) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	if err := core.CheckBackward(l.engine, core.OpFullyConnected); err != nil {
		return err
	}

	curr := l.localDelta(outs[0], outGrads[0])
	var dB *tensor.Tensor
	if l.bias != nil {
		dB = l.bias.Grad()
	}
	w := l.weight.Data().Data()

	switch l.engine {
	case core.EngineVectorized:
		kernels.FullyBackwardVectorized(l.p, ins[0], w, l.weight.Grad(), dB, curr, inGrads[0], l.parallelize)
	default:
		kernels.FullyBackward(l.p, ins[0], w, l.weight.Grad(), dB, curr, inGrads[0], l.parallelize)
	}
	return nil
}

package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/core/kernels"
	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// ConvOption configures a Conv2D or Deconv2D layer.
type ConvOption func(*convConfig)

type convConfig struct {
	pad         core.Padding
	strideW     int
	strideH     int
	hasBias     bool
	engine      core.Engine
	table       core.ConnectionTable
	act         Activation
	parallelize bool
}

func defaultConvConfig() convConfig {
	return convConfig{
		pad:         core.PaddingValid,
		strideW:     1,
		strideH:     1,
		hasBias:     true,
		engine:      defaultEngine,
		parallelize: true,
	}
}

// WithPadding selects valid or same padding.
func WithPadding(pad core.Padding) ConvOption {
	return func(c *convConfig) { c.pad = pad }
}

// WithStride sets both spatial strides.
func WithStride(w, h int) ConvOption {
	return func(c *convConfig) { c.strideW, c.strideH = w, h }
}

// WithBias enables or disables the additive bias term.
func WithBias(hasBias bool) ConvOption {
	return func(c *convConfig) { c.hasBias = hasBias }
}

// WithEngine selects the backend engine tag.
func WithEngine(engine core.Engine) ConvOption {
	return func(c *convConfig) { c.engine = engine }
}

// WithConnectionTable restricts which input channels feed which output
// channels.
func WithConnectionTable(table core.ConnectionTable) ConvOption {
	return func(c *convConfig) { c.table = table }
}

// WithActivation fuses an element-wise activation after the affine
// step.
func WithActivation(act Activation) ConvOption {
	return func(c *convConfig) { c.act = act }
}

// WithParallelize toggles the worker-pool heuristic at construction.
func WithParallelize(parallelize bool) ConvOption {
	return func(c *convConfig) { c.parallelize = parallelize }
}

// Conv2D slides a window x window kernel over a 3-d input, gated by an
// optional channel connection table. Same padding is handled as an
// explicit pad copy into a working buffer before the kernel runs.
type Conv2D struct {
	Base
	p   core.ConvParams
	act Activation

	weight *Parameter
	bias   *Parameter

	// working buffers for same padding, lazily sized to the batch
	paddedIn    *tensor.Tensor
	paddedDelta *tensor.Tensor
	actDelta    *tensor.Tensor
}

// NewConv2D builds a convolution layer over an inWidth x inHeight x
// inChannels input with a square window and outChannels output maps.
// The engine's capability preconditions are checked here, so an
// unsupported configuration fails at construction rather than at the
// first pass.
func NewConv2D(inWidth, inHeight, window, inChannels, outChannels int, opts ...ConvOption) (*Conv2D, error) {
	cfg := defaultConvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if window <= 0 || inWidth < window || inHeight < window {
		return nil, &ConfigError{
			LayerType: "conv",
			Reason:    "window must be positive and no larger than the input",
		}
	}
	if err := core.CheckConfiguration(cfg.engine, core.OpConv2D, cfg.hasBias, cfg.strideW, cfg.strideH); err != nil {
		return nil, err
	}

	in := tensor.NewShape3D(inWidth, inHeight, inChannels)
	p := core.NewConvParams(in, window, window, outChannels,
		cfg.pad, cfg.hasBias, cfg.strideW, cfg.strideH, cfg.table)

	l := &Conv2D{
		Base: newBase(1, 1, cfg.engine),
		p:    p,
		act:  cfg.act,
	}
	l.parallelize = cfg.parallelize
	l.inShapes = []tensor.Shape3D{in}
	l.outShapes = []tensor.Shape3D{p.Out}

	l.weight = NewParameter(outChannels, inChannels, window, window, ParamWeight)
	l.params = append(l.params, l.weight)
	if cfg.hasBias {
		l.bias = NewParameter(outChannels, 1, 1, 1, ParamBias)
		l.params = append(l.params, l.bias)
	}
	return l, nil
}

func (l *Conv2D) LayerType() string { return "conv" }

// FanInSize is the number of inputs feeding one output unit.
func (l *Conv2D) FanInSize() int {
	return l.p.Weight.Width * l.p.Weight.Height * l.p.In.Depth
}

// FanOutSize is the number of outputs fed by one input unit.
func (l *Conv2D) FanOutSize() int {
	return l.p.Weight.Width * l.p.Weight.Height * l.p.Out.Depth
}

// Weight is the kernel parameter.
func (l *Conv2D) Weight() *Parameter { return l.weight }

// Bias is the bias parameter, nil when disabled.
func (l *Conv2D) Bias() *Parameter { return l.bias }

// OpKind identifies the operation for capability checks.
func (l *Conv2D) OpKind() core.Op { return core.OpConv2D }

// KernelSource is the WGSL program for the accelerated forward pass.
func (l *Conv2D) KernelSource() string { return device.ShaderConv2DForward }

func (l *Conv2D) biasData() []float32 {
	if l.bias == nil {
		return nil
	}
	return l.bias.Data().Data()
}

func (l *Conv2D) workingInput(in *tensor.Tensor) *tensor.Tensor {
	if l.p.Pad != core.PaddingSame {
		return in
	}
	if l.paddedIn == nil {
		l.paddedIn = tensor.New(tensor.Shape{in.Rows(), l.p.InPadded.Size()})
	} else {
		l.paddedIn.ResizeRows(in.Rows())
	}
	padInput(l.p.In, l.p.InPadded, in, l.paddedIn, l.parallelize)
	return l.paddedIn
}

func (l *Conv2D) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]
	src := l.workingInput(in)
	out.Fill(0)

	switch l.engine {
	case core.EngineVectorized:
		kernels.Conv2DForwardVectorized(l.p, src, l.weight.Data().Data(), l.biasData(), out, l.parallelize)
	case core.EngineAccelerated:
		if err := l.forwardAccelerated(src, out); err != nil {
			return err
		}
	default:
		kernels.Conv2DForward(l.p, src, l.weight.Data().Data(), l.biasData(), out, l.parallelize)
	}

	if l.act != nil {
		parallel.ForSamples(out.Rows(), func(sample int) {
			row := out.RowData(sample)
			l.act.Forward(row, row)
		}, l.parallelize)
	}
	return nil
}

func (l *Conv2D) forwardAccelerated(src, out *tensor.Tensor) error {
	runner, err := acceleratedRunner(l, l.dev)
	if err != nil {
		return err
	}

	dims := []uint32{
		uint32(l.p.InPadded.Width), uint32(l.p.InPadded.Height), uint32(l.p.InPadded.Depth),
		uint32(l.p.Weight.Width), uint32(l.p.Weight.Height),
		uint32(l.p.Out.Width), uint32(l.p.Out.Height), uint32(l.p.Out.Depth),
	}
	w := l.weight.Data().Data()
	for sample := 0; sample < src.Rows(); sample++ {
		inputs := [][]float32{src.RowData(sample), w, l.biasData()}
		if err := runner.Run(inputs, out.RowData(sample), dims); err != nil {
			return err
		}
	}
	return nil
}

// localDelta folds the fused activation derivative into a scratch copy
// of the output gradient. Without a fused activation the output
// gradient is used directly.
func (l *Conv2D) localDelta(out, outGrad *tensor.Tensor) *tensor.Tensor {
	if l.act == nil {
		return outGrad
	}
	if l.actDelta == nil {
		l.actDelta = tensor.New(tensor.Shape{out.Rows(), l.p.Out.Size()})
	} else {
		l.actDelta.ResizeRows(out.Rows())
	}
	l.actDelta.Fill(0)
	parallel.ForSamples(out.Rows(), func(sample int) {
		l.act.Backward(out.RowData(sample), outGrad.RowData(sample), l.actDelta.RowData(sample))
	}, l.parallelize)
	return l.actDelta
}

func (l *Conv2D) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	if err := core.CheckBackward(l.engine, core.OpConv2D); err != nil {
		return err
	}

	in, out := ins[0], outs[0]
	curr := l.localDelta(out, outGrads[0])

	prevOut := l.workingInput(in)
	prevDelta := inGrads[0]
	if l.p.Pad == core.PaddingSame {
		if l.paddedDelta == nil {
			l.paddedDelta = tensor.New(tensor.Shape{in.Rows(), l.p.InPadded.Size()})
		} else {
			l.paddedDelta.ResizeRows(in.Rows())
		}
		l.paddedDelta.Fill(0)
		prevDelta = l.paddedDelta
	}

	var dB *tensor.Tensor
	if l.bias != nil {
		dB = l.bias.Grad()
	}
	w := l.weight.Data().Data()

	switch l.engine {
	case core.EngineVectorized:
		kernels.Conv2DBackwardVectorized(l.p, prevOut, w, l.weight.Grad(), dB, curr, prevDelta, l.parallelize)
	default:
		kernels.Conv2DBackward(l.p, prevOut, w, l.weight.Grad(), dB, curr, prevDelta, l.parallelize)
	}

	if l.p.Pad == core.PaddingSame {
		unpadDelta(l.p.In, l.p.InPadded, l.paddedDelta, inGrads[0], l.parallelize)
	}
	return nil
}

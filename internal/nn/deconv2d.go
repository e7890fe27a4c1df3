package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/core/kernels"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Deconv2D is the transposed convolution: every input element scatters
// a weighted kernel patch into a larger output. The full scatter target
// grows to stride*(in-1)+window per axis; same padding crops it back to
// stride*in as an explicit copy step.
type Deconv2D struct {
	Base
	p   core.DeconvParams
	act Activation

	weight *Parameter
	bias   *Parameter

	fullOut   *tensor.Tensor
	fullDelta *tensor.Tensor
	actDelta  *tensor.Tensor
}

// NewDeconv2D builds a transposed convolution layer with a square
// window.
func NewDeconv2D(inWidth, inHeight, window, inChannels, outChannels int, opts ...ConvOption) (*Deconv2D, error) {
	cfg := defaultConvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if window <= 0 || inWidth <= 0 || inHeight <= 0 {
		return nil, &ConfigError{
			LayerType: "deconv",
			Reason:    "window and input extents must be positive",
		}
	}
	if err := core.CheckConfiguration(cfg.engine, core.OpDeconv2D, cfg.hasBias, cfg.strideW, cfg.strideH); err != nil {
		return nil, err
	}

	in := tensor.NewShape3D(inWidth, inHeight, inChannels)
	p := core.NewDeconvParams(in, window, window, outChannels,
		cfg.pad, cfg.hasBias, cfg.strideW, cfg.strideH, cfg.table)

	l := &Deconv2D{
		Base: newBase(1, 1, cfg.engine),
		p:    p,
		act:  cfg.act,
	}
	l.parallelize = cfg.parallelize
	l.inShapes = []tensor.Shape3D{in}
	l.outShapes = []tensor.Shape3D{p.OutUnpadded}

	l.weight = NewParameter(outChannels, inChannels, window, window, ParamWeight)
	l.params = append(l.params, l.weight)
	if cfg.hasBias {
		l.bias = NewParameter(outChannels, 1, 1, 1, ParamBias)
		l.params = append(l.params, l.bias)
	}
	return l, nil
}

func (l *Deconv2D) LayerType() string { return "deconv" }

func (l *Deconv2D) FanInSize() int {
	return l.p.Weight.Width * l.p.Weight.Height * l.p.In.Depth
}

func (l *Deconv2D) FanOutSize() int {
	return l.p.Weight.Width * l.p.Weight.Height * l.p.Out.Depth
}

// Weight is the kernel parameter.
func (l *Deconv2D) Weight() *Parameter { return l.weight }

// Bias is the bias parameter, nil when disabled.
func (l *Deconv2D) Bias() *Parameter { return l.bias }

func (l *Deconv2D) biasData() []float32 {
	if l.bias == nil {
		return nil
	}
	return l.bias.Data().Data()
}

func (l *Deconv2D) cropped() bool {
	return !l.p.Out.Equal(l.p.OutUnpadded)
}

func (l *Deconv2D) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]

	target := out
	if l.cropped() {
		if l.fullOut == nil {
			l.fullOut = tensor.New(tensor.Shape{in.Rows(), l.p.Out.Size()})
		} else {
			l.fullOut.ResizeRows(in.Rows())
		}
		target = l.fullOut
	}
	target.Fill(0)

	switch l.engine {
	case core.EngineVectorized:
		kernels.Deconv2DForwardVectorized(l.p, in, l.weight.Data().Data(), l.biasData(), target, l.parallelize)
	default:
		kernels.Deconv2DForward(l.p, in, l.weight.Data().Data(), l.biasData(), target, l.parallelize)
	}

	if l.cropped() {
		cropOutput(l.p.Out, l.p.OutUnpadded, l.fullOut, out, l.parallelize)
	}

	if l.act != nil {
		parallel.ForSamples(out.Rows(), func(sample int) {
			row := out.RowData(sample)
			l.act.Forward(row, row)
		}, l.parallelize)
	}
	return nil
}

func (l *Deconv2D) localDelta(out, outGrad *tensor.Tensor) *tensor.Tensor {
	if l.act == nil {
		return outGrad
	}
	if l.actDelta == nil {
		l.actDelta = tensor.New(tensor.Shape{out.Rows(), l.p.OutUnpadded.Size()})
	} else {
		l.actDelta.ResizeRows(out.Rows())
	}
	l.actDelta.Fill(0)
	parallel.ForSamples(out.Rows(), func(sample int) {
		l.act.Backward(out.RowData(sample), outGrad.RowData(sample), l.actDelta.RowData(sample))
	}, l.parallelize)
	return l.actDelta
}

func (l *Deconv2D) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	if err := core.CheckBackward(l.engine, core.OpDeconv2D); err != nil {
		return err
	}

	in := ins[0]
	curr := l.localDelta(outs[0], outGrads[0])

	// the kernel gathers over the full scatter target, so a cropped
	// delta is embedded back into full geometry first
	if l.cropped() {
		if l.fullDelta == nil {
			l.fullDelta = tensor.New(tensor.Shape{in.Rows(), l.p.Out.Size()})
		} else {
			l.fullDelta.ResizeRows(in.Rows())
		}
		embedDelta(l.p.Out, l.p.OutUnpadded, curr, l.fullDelta, l.parallelize)
		curr = l.fullDelta
	}

	var dB *tensor.Tensor
	if l.bias != nil {
		dB = l.bias.Grad()
	}
	w := l.weight.Data().Data()

	switch l.engine {
	case core.EngineVectorized:
		kernels.Deconv2DBackwardVectorized(l.p, in, w, l.weight.Grad(), dB, curr, inGrads[0], l.parallelize)
	default:
		kernels.Deconv2DBackward(l.p, in, w, l.weight.Grad(), dB, curr, inGrads[0], l.parallelize)
	}
	return nil
}

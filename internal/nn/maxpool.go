package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/core/kernels"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// MaxPool selects the maximum over each pooling window. The out-to-in
// and in-to-out index maps are built once at construction; forward
// records the winning input index per output so backward can route the
// gradient to the winner only.
type MaxPool struct {
	Base
	p core.MaxPoolParams

	out2in [][]int
	in2out []int
	argmax [][]int
}

// NewMaxPool builds a pooling layer over an inWidth x inHeight x
// channels input. The stride defaults to the pool extent.
func NewMaxPool(inWidth, inHeight, channels, pool int, opts ...ConvOption) (*MaxPool, error) {
	cfg := defaultConvConfig()
	cfg.strideW, cfg.strideH = pool, pool
	for _, opt := range opts {
		opt(&cfg)
	}

	if pool <= 0 || inWidth < pool || inHeight < pool {
		return nil, &ConfigError{
			LayerType: "max-pool",
			Reason:    "pool extent must be positive and no larger than the input",
		}
	}
	if err := core.CheckConfiguration(cfg.engine, core.OpMaxPool, true, 1, 1); err != nil {
		return nil, err
	}

	in := tensor.NewShape3D(inWidth, inHeight, channels)
	p := core.NewMaxPoolParams(in, pool, pool, cfg.strideW, cfg.strideH, cfg.pad)

	l := &MaxPool{
		Base:   newBase(1, 1, cfg.engine),
		p:      p,
		argmax: make([][]int, 1),
	}
	l.parallelize = cfg.parallelize
	l.inShapes = []tensor.Shape3D{in}
	l.outShapes = []tensor.Shape3D{p.Out}
	l.argmax[0] = make([]int, p.Out.Size())
	l.buildMaps()
	return l, nil
}

// buildMaps precomputes the window membership of every output index and
// the owning output of every input index. Windows are clamped at the
// input border.
func (l *MaxPool) buildMaps() {
	p := l.p
	l.out2in = make([][]int, p.Out.Size())
	l.in2out = make([]int, p.In.Size())

	for c := 0; c < p.In.Depth; c++ {
		for oy := 0; oy < p.Out.Height; oy++ {
			for ox := 0; ox < p.Out.Width; ox++ {
				out := p.Out.Index(ox, oy, c)

				ymax := minInt(p.PoolH, p.In.Height-oy*p.StrideH)
				xmax := minInt(p.PoolW, p.In.Width-ox*p.StrideW)
				for dy := 0; dy < ymax; dy++ {
					for dx := 0; dx < xmax; dx++ {
						in := p.In.Index(ox*p.StrideW+dx, oy*p.StrideH+dy, c)
						l.out2in[out] = append(l.out2in[out], in)
						l.in2out[in] = out
					}
				}
			}
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (l *MaxPool) LayerType() string { return "max-pool" }

func (l *MaxPool) FanInSize() int  { return l.p.PoolW * l.p.PoolH }
func (l *MaxPool) FanOutSize() int { return 1 }

// resizeSampleState grows the per-sample winner index storage with the
// batch. Existing rows keep their backing arrays.
func (l *MaxPool) resizeSampleState(samples int) {
	for len(l.argmax) < samples {
		l.argmax = append(l.argmax, make([]int, l.p.Out.Size()))
	}
	l.argmax = l.argmax[:samples]
}

func (l *MaxPool) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	kernels.MaxPoolForward(ins[0], outs[0], l.out2in, l.argmax, l.parallelize)
	return nil
}

func (l *MaxPool) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	if err := core.CheckBackward(l.engine, core.OpMaxPool); err != nil {
		return err
	}
	kernels.MaxPoolBackward(l.in2out, l.argmax, outGrads[0], inGrads[0], l.parallelize)
	return nil
}

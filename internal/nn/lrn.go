package nn

import (
	"fmt"
	"math"

	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// LRN is local response normalization across channels: each value is
// scaled by (1 + alpha/size * sum of squares over a channel window)
// raised to -beta. It is inference-only; backward reports not
// supported.
type LRN struct {
	Base
	in    tensor.Shape3D
	size  int
	alpha float32
	beta  float32
}

// NewLRN builds a normalization layer over a window of size channels
// centered on each channel.
func NewLRN(inWidth, inHeight, channels, size int, alpha, beta float32) (*LRN, error) {
	if size <= 0 || channels <= 0 {
		return nil, &ConfigError{
			LayerType: "lrn",
			Reason:    "window size and channel count must be positive",
		}
	}

	in := tensor.NewShape3D(inWidth, inHeight, channels)
	l := &LRN{
		Base:  newBase(1, 1, defaultEngine),
		in:    in,
		size:  size,
		alpha: alpha,
		beta:  beta,
	}
	l.inShapes = []tensor.Shape3D{in}
	l.outShapes = []tensor.Shape3D{in}
	return l, nil
}

func (l *LRN) LayerType() string { return "lrn" }

func (l *LRN) FanInSize() int  { return l.size }
func (l *LRN) FanOutSize() int { return l.size }

func (l *LRN) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]
	area := l.in.Area()
	half := l.size / 2

	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		for i := 0; i < area; i++ {
			for c := 0; c < l.in.Depth; c++ {
				lo := maxInt(0, c-half)
				hi := minInt(l.in.Depth-1, c+half)

				sum := float32(0)
				for cc := lo; cc <= hi; cc++ {
					v := src[cc*area+i]
					sum += v * v
				}

				scale := 1 + l.alpha/float32(l.size)*sum
				dst[c*area+i] = src[c*area+i] *
					float32(math.Pow(float64(scale), -float64(l.beta)))
			}
		}
	}, l.parallelize)
	return nil
}

func (l *LRN) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	return fmt.Errorf("lrn: backward pass: %w", core.ErrNotSupported)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

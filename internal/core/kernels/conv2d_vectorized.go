package kernels

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Conv2DForwardVectorized computes the same convolution as Conv2DForward
// through an im2col/matmul formulation: input patches are unrolled into
// a column matrix once per sample so the inner product runs over
// contiguous memory. Sparse connection tables fall back to the gated
// direct loop, which the unrolled layout cannot express without
// materializing a mask.
func Conv2DForwardVectorized(p core.ConvParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	if !p.Table.IsEmpty() {
		Conv2DForward(p, in, w, bias, out, parallelize)
		return
	}

	colWidth := p.In.Depth * p.Weight.Height * p.Weight.Width
	colHeight := p.Out.Height * p.Out.Width

	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		colBuf := make([]float32, colHeight*colWidth)
		im2col(p, src, colBuf)

		// weight layout [out.Depth, colWidth] is already the matmul shape
		for o := 0; o < p.Out.Depth; o++ {
			wRow := w[o*colWidth : (o+1)*colWidth]
			b := float32(0)
			if p.HasBias {
				b = bias[o]
			}
			for j := 0; j < colHeight; j++ {
				col := colBuf[j*colWidth : (j+1)*colWidth]
				sum := b
				for k, wv := range wRow {
					sum += wv * col[k]
				}
				dst[o*colHeight+j] += sum
			}
		}
	}, parallelize)
}

// im2col unrolls one sample's padded input into a [outH*outW, colWidth]
// column matrix. Row j holds the input patch under output position j,
// channel-major to match the weight layout of Shape3D.Index.
func im2col(p core.ConvParams, src, colBuf []float32) {
	colWidth := p.In.Depth * p.Weight.Height * p.Weight.Width
	row := 0
	for outY := 0; outY < p.Out.Height; outY++ {
		for outX := 0; outX < p.Out.Width; outX++ {
			buf := colBuf[row*colWidth:]
			i := 0
			for c := 0; c < p.In.Depth; c++ {
				plane := src[p.InPadded.Index(0, 0, c):]
				base := outY*p.StrideH*p.InPadded.Width + outX*p.StrideW
				for wy := 0; wy < p.Weight.Height; wy++ {
					off := base + wy*p.InPadded.Width
					for wx := 0; wx < p.Weight.Width; wx++ {
						buf[i] = plane[off+wx]
						i++
					}
				}
			}
			row++
		}
	}
}

// Conv2DBackwardVectorized runs the direct backward accumulations with
// the sample loop parallelized. The backward pass writes scattered
// per-sample rows, so the im2col trick buys nothing there; the win is
// the batch-level data parallelism.
func Conv2DBackwardVectorized(p core.ConvParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	Conv2DBackward(p, prevOut, w, dW, dB, currDelta, prevDelta, parallelize)
}

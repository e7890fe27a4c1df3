package kernels

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Deconv2DForward computes the transposed convolution: each input
// element scatters a weighted kernel patch into the full-sized output
// buffer [samples, p.Out.Size()]. The same-padding crop to
// p.OutUnpadded is the layer's copy step, not the kernel's concern.
func Deconv2DForward(p core.DeconvParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		for o := 0; o < p.Out.Depth; o++ {
			for inc := 0; inc < p.In.Depth; inc++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				pw := w[p.Weight.Index(0, 0, p.In.Depth*o+inc):]
				pi := src[p.In.Index(0, 0, inc):]
				pa := dst[p.Out.Index(0, 0, o):]

				for y := 0; y < p.In.Height; y++ {
					for x := 0; x < p.In.Width; x++ {
						v := pi[y*p.In.Width+x]
						base := (y*p.StrideH)*p.Out.Width + x*p.StrideW
						wi := 0
						for wy := 0; wy < p.Weight.Height; wy++ {
							row := base + wy*p.Out.Width
							for wx := 0; wx < p.Weight.Width; wx++ {
								pa[row+wx] += pw[wi] * v
								wi++
							}
						}
					}
				}
			}

			if p.HasBias {
				pa := dst[p.Out.Index(0, 0, o):]
				for i := 0; i < p.Out.Area(); i++ {
					pa[i] += bias[o]
				}
			}
		}
	}, parallelize)
}

// Deconv2DBackward accumulates the three transposed-convolution
// gradients per sample. currDelta is sized to the full output
// p.Out (the layer re-pads a cropped delta before calling in the
// same-padding case).
func Deconv2DBackward(p core.DeconvParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(prevOut.Rows(), func(sample int) {
		prev := prevOut.RowData(sample)
		curr := currDelta.RowData(sample)
		prevD := prevDelta.RowData(sample)
		dWs := dW.RowData(sample)

		// propagate delta to previous layer: gather back through the
		// scattered windows
		for inc := 0; inc < p.In.Depth; inc++ {
			for o := 0; o < p.Out.Depth; o++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				pw := w[p.Weight.Index(0, 0, p.In.Depth*o+inc):]
				src := curr[p.Out.Index(0, 0, o):]
				dst := prevD[p.In.Index(0, 0, inc):]

				for y := 0; y < p.In.Height; y++ {
					for x := 0; x < p.In.Width; x++ {
						base := y*p.StrideH*p.Out.Width + x*p.StrideW
						sum := float32(0)
						wi := 0
						for wy := 0; wy < p.Weight.Height; wy++ {
							row := base + wy*p.Out.Width
							for wx := 0; wx < p.Weight.Width; wx++ {
								sum += pw[wi] * src[row+wx]
								wi++
							}
						}
						dst[y*p.In.Width+x] += sum
					}
				}
			}
		}

		// accumulate dW as correlation of prevOut and currDelta
		for inc := 0; inc < p.In.Depth; inc++ {
			for o := 0; o < p.Out.Depth; o++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				po := prev[p.In.Index(0, 0, inc):]
				src := curr[p.Out.Index(0, 0, o):]

				for wy := 0; wy < p.Weight.Height; wy++ {
					for wx := 0; wx < p.Weight.Width; wx++ {
						sum := float32(0)
						for y := 0; y < p.In.Height; y++ {
							for x := 0; x < p.In.Width; x++ {
								sum += po[y*p.In.Width+x] *
									src[(y*p.StrideH+wy)*p.Out.Width+x*p.StrideW+wx]
							}
						}
						dWs[p.Weight.Index(wx, wy, p.In.Depth*o+inc)] += sum
					}
				}
			}
		}

		// accumulate db over the full output area per channel
		if p.HasBias {
			dBs := dB.RowData(sample)
			for o := 0; o < p.Out.Depth; o++ {
				src := curr[p.Out.Index(0, 0, o):]
				sum := float32(0)
				for i := 0; i < p.Out.Area(); i++ {
					sum += src[i]
				}
				dBs[o] += sum
			}
		}
	}, parallelize)
}

// Deconv2DForwardVectorized runs the scatter with the sample loop
// parallelized. Scatter writes are sample-local, so batch parallelism is
// the whole optimization.
func Deconv2DForwardVectorized(p core.DeconvParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	Deconv2DForward(p, in, w, bias, out, parallelize)
}

// Deconv2DBackwardVectorized mirrors Deconv2DBackward under batch
// parallelism.
func Deconv2DBackwardVectorized(p core.DeconvParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	Deconv2DBackward(p, prevOut, w, dW, dB, currDelta, prevDelta, parallelize)
}

// Package kernels implements the CPU numeric kernels behind the
// internal and vectorized engines. Every function is a pure function of
// the buffers it is handed: batch tensors are shaped [samples, flatSize],
// weights and biases are flat slices, and gradient outputs are
// accumulated (never overwritten) into per-sample rows so that samples
// can run concurrently without sharing any destination memory.
package kernels

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Conv2DForward computes the direct convolution of every sample in the
// batch. in is the padded working buffer [samples, p.InPadded.Size()];
// out [samples, p.Out.Size()] must be zero-filled by the caller since
// channel contributions accumulate.
func Conv2DForward(p core.ConvParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		for o := 0; o < p.Out.Depth; o++ {
			for inc := 0; inc < p.In.Depth; inc++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				pw := w[p.Weight.Index(0, 0, p.In.Depth*o+inc):]
				pi := src[p.InPadded.Index(0, 0, inc):]
				pa := dst[p.Out.Index(0, 0, o):]

				for y := 0; y < p.Out.Height; y++ {
					for x := 0; x < p.Out.Width; x++ {
						sum := float32(0)
						base := p.InPadded.Width*(y*p.StrideH) + x*p.StrideW
						wi := 0
						for wy := 0; wy < p.Weight.Height; wy++ {
							row := base + wy*p.InPadded.Width
							for wx := 0; wx < p.Weight.Width; wx++ {
								sum += pw[wi] * pi[row+wx]
								wi++
							}
						}
						pa[y*p.Out.Width+x] += sum
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

// Conv2DBackward runs the three gradient accumulations of the direct
// convolution for every sample: current delta through the transposed
// kernel into prevDelta, the weight gradient as a correlation of
// prevOut and currDelta, and the bias gradient as the per-channel sum of
// currDelta. dW and dB are per-sample gradient rows; each sample writes
// only its own row, so the batch loop is race-free and the reduction
// happens later in Parameter.MergeGrads.
func Conv2DBackward(p core.ConvParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(prevOut.Rows(), func(sample int) {
		prev := prevOut.RowData(sample)
		curr := currDelta.RowData(sample)
		prevD := prevDelta.RowData(sample)
		dWs := dW.RowData(sample)

		// propagate delta to previous layer
		for inc := 0; inc < p.In.Depth; inc++ {
			for o := 0; o < p.Out.Depth; o++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				pw := w[p.Weight.Index(0, 0, p.In.Depth*o+inc):]
				src := curr[p.Out.Index(0, 0, o):]
				dst := prevD[p.InPadded.Index(0, 0, inc):]

				for y := 0; y < p.Out.Height; y++ {
					for x := 0; x < p.Out.Width; x++ {
						delta := src[y*p.Out.Width+x]
						base := y*p.StrideH*p.InPadded.Width + x*p.StrideW
						wi := 0
						for wy := 0; wy < p.Weight.Height; wy++ {
							row := base + wy*p.InPadded.Width
							for wx := 0; wx < p.Weight.Width; wx++ {
								dst[row+wx] += pw[wi] * delta
								wi++
							}
						}
					}
				}
			}
		}

		// accumulate dW
		for inc := 0; inc < p.In.Depth; inc++ {
			for o := 0; o < p.Out.Depth; o++ {
				if !p.Table.IsConnected(o, inc) {
					continue
				}

				for wy := 0; wy < p.Weight.Height; wy++ {
					for wx := 0; wx < p.Weight.Width; wx++ {
						sum := float32(0)
						po := prev[p.InPadded.Index(wx, wy, inc):]
						src := curr[p.Out.Index(0, 0, o):]

						for y := 0; y < p.Out.Height; y++ {
							prevRow := y * p.StrideH * p.InPadded.Width
							deltaRow := y * p.Out.Width
							for x := 0; x < p.Out.Width; x++ {
								sum += po[prevRow+x*p.StrideW] * src[deltaRow+x]
							}
						}

						dWs[p.Weight.Index(wx, wy, p.In.Depth*o+inc)] += sum
					}
				}
			}
		}

		// accumulate db
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

package kernels

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// FullyForward computes out = W·in (+ bias) per sample. The weight
// layout is [outSize, inSize] row-major; out must be zero-filled by the
// caller.
func FullyForward(p core.FullyParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		for o := 0; o < p.OutSize; o++ {
			row := w[o*p.InSize : (o+1)*p.InSize]
			sum := float32(0)
			for i, v := range src[:p.InSize] {
				sum += row[i] * v
			}
			if p.HasBias {
				sum += bias[o]
			}
			dst[o] += sum
		}
	}, parallelize)
}

// FullyBackward accumulates the fully-connected gradients per sample:
// prevDelta through the transposed weights, dW as the outer product of
// currDelta and prevOut, and dB as currDelta itself.
func FullyBackward(p core.FullyParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(prevOut.Rows(), func(sample int) {
		prev := prevOut.RowData(sample)
		curr := currDelta.RowData(sample)
		prevD := prevDelta.RowData(sample)
		dWs := dW.RowData(sample)

		for i := 0; i < p.InSize; i++ {
			sum := float32(0)
			for o := 0; o < p.OutSize; o++ {
				sum += w[o*p.InSize+i] * curr[o]
			}
			prevD[i] += sum
		}

		for o := 0; o < p.OutSize; o++ {
			delta := curr[o]
			row := dWs[o*p.InSize : (o+1)*p.InSize]
			for i := 0; i < p.InSize; i++ {
				row[i] += delta * prev[i]
			}
		}

		if p.HasBias {
			dBs := dB.RowData(sample)
			for o := 0; o < p.OutSize; o++ {
				dBs[o] += curr[o]
			}
		}
	}, parallelize)
}

// FullyForwardVectorized computes the same product with output neurons
// data-parallel across workers inside each sample, which pays off for
// the wide layers the batch loop alone cannot saturate.
func FullyForwardVectorized(p core.FullyParams, in *tensor.Tensor, w, bias []float32, out *tensor.Tensor, parallelize bool) {
	cfg := parallel.DefaultConfig()
	cfg.Enabled = cfg.Enabled && parallelize

	for sample := 0; sample < in.Rows(); sample++ {
		src := in.RowData(sample)
		dst := out.RowData(sample)

		parallel.For(p.OutSize, func(o int) {
			row := w[o*p.InSize : (o+1)*p.InSize]
			sum := float32(0)
			for i, v := range src[:p.InSize] {
				sum += row[i] * v
			}
			if p.HasBias {
				sum += bias[o]
			}
			dst[o] += sum
		}, cfg)
	}
}

// FullyBackwardVectorized mirrors FullyBackward under batch parallelism.
func FullyBackwardVectorized(p core.FullyParams, prevOut *tensor.Tensor, w []float32,
	dW, dB, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	FullyBackward(p, prevOut, w, dW, dB, currDelta, prevDelta, parallelize)
}

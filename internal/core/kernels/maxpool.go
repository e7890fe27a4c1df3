package kernels

import (
	"math"

	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// MaxPoolForward selects the maximum input among each output's mapped
// window. out2in is the precomputed out→in (one-to-many) index table;
// argmax[sample][outIndex] records which input index won, which the
// backward pass needs to route gradients.
func MaxPoolForward(in, out *tensor.Tensor, out2in [][]int, argmax [][]int, parallelize bool) {
	parallel.ForSamples(in.Rows(), func(sample int) {
		src := in.RowData(sample)
		dst := out.RowData(sample)
		winners := argmax[sample]

		for o, mapped := range out2in {
			maxVal := float32(math.Inf(-1))
			maxIdx := mapped[0]
			for _, i := range mapped {
				if src[i] > maxVal {
					maxVal = src[i]
					maxIdx = i
				}
			}
			dst[o] = maxVal
			winners[o] = maxIdx
		}
	}, parallelize)
}

// MaxPoolBackward routes each upstream gradient only to the input index
// that won the forward max, zero elsewhere. in2out is the precomputed
// in→out (many-to-one) table.
func MaxPoolBackward(in2out []int, argmax [][]int, currDelta, prevDelta *tensor.Tensor, parallelize bool) {
	parallel.ForSamples(currDelta.Rows(), func(sample int) {
		curr := currDelta.RowData(sample)
		prev := prevDelta.RowData(sample)
		winners := argmax[sample]

		for i, o := range in2out {
			if winners[o] == i {
				prev[i] = curr[o]
			} else {
				prev[i] = 0
			}
		}
	}, parallelize)
}

package nn

import (
	"github.com/kiln-ml/kiln/internal/parallel"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Padding bookkeeping between the externally visible buffers and the
// padded working buffers. Each helper is one explicit copy step, run
// once per pass.

// padInput copies each unpadded sample row into the center of the
// padded working buffer. The border stays zero.
func padInput(in, inPadded tensor.Shape3D, src, dst *tensor.Tensor, parallelize bool) {
	ox := (inPadded.Width - in.Width) / 2
	oy := (inPadded.Height - in.Height) / 2

	dst.Fill(0)
	parallel.ForSamples(src.Rows(), func(sample int) {
		s := src.RowData(sample)
		d := dst.RowData(sample)
		for c := 0; c < in.Depth; c++ {
			for y := 0; y < in.Height; y++ {
				from := in.Index(0, y, c)
				to := inPadded.Index(ox, oy+y, c)
				copy(d[to:to+in.Width], s[from:from+in.Width])
			}
		}
	}, parallelize)
}

// unpadDelta accumulates the center of each padded gradient row into
// the unpadded destination. Accumulation keeps fan-out edges correct.
func unpadDelta(in, inPadded tensor.Shape3D, src, dst *tensor.Tensor, parallelize bool) {
	ox := (inPadded.Width - in.Width) / 2
	oy := (inPadded.Height - in.Height) / 2

	parallel.ForSamples(src.Rows(), func(sample int) {
		s := src.RowData(sample)
		d := dst.RowData(sample)
		for c := 0; c < in.Depth; c++ {
			for y := 0; y < in.Height; y++ {
				from := inPadded.Index(ox, oy+y, c)
				to := in.Index(0, y, c)
				for x := 0; x < in.Width; x++ {
					d[to+x] += s[from+x]
				}
			}
		}
	}, parallelize)
}

// cropOutput copies the center of each full sample row into the
// externally visible destination.
func cropOutput(full, visible tensor.Shape3D, src, dst *tensor.Tensor, parallelize bool) {
	ox := (full.Width - visible.Width) / 2
	oy := (full.Height - visible.Height) / 2

	parallel.ForSamples(src.Rows(), func(sample int) {
		s := src.RowData(sample)
		d := dst.RowData(sample)
		for c := 0; c < visible.Depth; c++ {
			for y := 0; y < visible.Height; y++ {
				from := full.Index(ox, oy+y, c)
				to := visible.Index(0, y, c)
				copy(d[to:to+visible.Width], s[from:from+visible.Width])
			}
		}
	}, parallelize)
}

// embedDelta places each visible gradient row into the center of the
// full working buffer. The border stays zero.
func embedDelta(full, visible tensor.Shape3D, src, dst *tensor.Tensor, parallelize bool) {
	ox := (full.Width - visible.Width) / 2
	oy := (full.Height - visible.Height) / 2

	dst.Fill(0)
	parallel.ForSamples(src.Rows(), func(sample int) {
		s := src.RowData(sample)
		d := dst.RowData(sample)
		for c := 0; c < visible.Depth; c++ {
			for y := 0; y < visible.Height; y++ {
				from := visible.Index(0, y, c)
				to := full.Index(ox, oy+y, c)
				copy(d[to:to+visible.Width], s[from:from+visible.Width])
			}
		}
	}, parallelize)
}

package core

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// Padding selects the spatial padding policy.
type Padding int

const (
	// PaddingValid applies no padding; the output shrinks by the window.
	PaddingValid Padding = iota
	// PaddingSame zero-pads so the output preserves width and height.
	PaddingSame
)

func (p Padding) String() string {
	switch p {
	case PaddingValid:
		return "valid"
	case PaddingSame:
		return "same"
	default:
		return fmt.Sprintf("padding(%d)", int(p))
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ConvOutLength computes one spatial output extent of a convolution.
func ConvOutLength(in, window, stride int, pad Padding) int {
	if pad == PaddingSame {
		return ceilDiv(in, stride)
	}
	return ceilDiv(in-window+1, stride)
}

// ConvInPaddedLength computes the extent of the padded working buffer.
func ConvInPaddedLength(in, window int, pad Padding) int {
	if pad == PaddingSame {
		return in + window - 1
	}
	return in
}

// DeconvOutLength computes the full (pre-crop) output extent of a
// transposed convolution: every input element scatters a window-sized
// patch at stride intervals.
func DeconvOutLength(in, window, stride int) int {
	return stride*(in-1) + window
}

// DeconvOutUnpaddedLength computes the externally visible output extent.
// Same padding crops the full output back to stride*in.
func DeconvOutUnpaddedLength(in, window, stride int, pad Padding) int {
	if pad == PaddingSame {
		return stride * in
	}
	return DeconvOutLength(in, window, stride)
}

// ConvParams carries the shape bookkeeping of a convolution. Kernels read
// it instead of re-deriving geometry, so the padded/unpadded distinction
// lives in exactly one place.
type ConvParams struct {
	In       tensor.Shape3D // externally visible input
	InPadded tensor.Shape3D // working input, equal to In for valid padding
	Out      tensor.Shape3D
	Weight   tensor.Shape3D // window width × window height × (in.Depth*out.Depth)
	HasBias  bool
	Pad      Padding
	StrideW  int
	StrideH  int
	Table    ConnectionTable
}

// NewConvParams derives all convolution geometry from the layer's
// hyperparameters.
func NewConvParams(in tensor.Shape3D, windowW, windowH, outChannels int,
	pad Padding, hasBias bool, strideW, strideH int, table ConnectionTable) ConvParams {
	return ConvParams{
		In: in,
		InPadded: tensor.NewShape3D(
			ConvInPaddedLength(in.Width, windowW, pad),
			ConvInPaddedLength(in.Height, windowH, pad),
			in.Depth),
		Out: tensor.NewShape3D(
			ConvOutLength(in.Width, windowW, strideW, pad),
			ConvOutLength(in.Height, windowH, strideH, pad),
			outChannels),
		Weight:  tensor.NewShape3D(windowW, windowH, in.Depth*outChannels),
		HasBias: hasBias,
		Pad:     pad,
		StrideW: strideW,
		StrideH: strideH,
		Table:   table,
	}
}

// DeconvParams carries the shape bookkeeping of a transposed
// convolution. Out is the full scatter target; OutUnpadded is what the
// rest of the graph sees after the same-padding crop.
type DeconvParams struct {
	In          tensor.Shape3D
	Out         tensor.Shape3D
	OutUnpadded tensor.Shape3D
	Weight      tensor.Shape3D
	HasBias     bool
	Pad         Padding
	StrideW     int
	StrideH     int
	Table       ConnectionTable
}

// NewDeconvParams derives all transposed-convolution geometry.
func NewDeconvParams(in tensor.Shape3D, windowW, windowH, outChannels int,
	pad Padding, hasBias bool, strideW, strideH int, table ConnectionTable) DeconvParams {
	return DeconvParams{
		In: in,
		Out: tensor.NewShape3D(
			DeconvOutLength(in.Width, windowW, strideW),
			DeconvOutLength(in.Height, windowH, strideH),
			outChannels),
		OutUnpadded: tensor.NewShape3D(
			DeconvOutUnpaddedLength(in.Width, windowW, strideW, pad),
			DeconvOutUnpaddedLength(in.Height, windowH, strideH, pad),
			outChannels),
		Weight:  tensor.NewShape3D(windowW, windowH, in.Depth*outChannels),
		HasBias: hasBias,
		Pad:     pad,
		StrideW: strideW,
		StrideH: strideH,
		Table:   table,
	}
}

// MaxPoolParams carries the shape bookkeeping of max pooling.
type MaxPoolParams struct {
	In      tensor.Shape3D
	Out     tensor.Shape3D
	PoolW   int
	PoolH   int
	StrideW int
	StrideH int
	Pad     Padding
}

// NewMaxPoolParams derives pooling geometry from the layer's
// hyperparameters.
func NewMaxPoolParams(in tensor.Shape3D, poolW, poolH, strideW, strideH int, pad Padding) MaxPoolParams {
	return MaxPoolParams{
		In: in,
		Out: tensor.NewShape3D(
			ConvOutLength(in.Width, poolW, strideW, pad),
			ConvOutLength(in.Height, poolH, strideH, pad),
			in.Depth),
		PoolW:   poolW,
		PoolH:   poolH,
		StrideW: strideW,
		StrideH: strideH,
		Pad:     pad,
	}
}

// FullyParams carries the dimensions of a fully-connected operation.
type FullyParams struct {
	InSize  int
	OutSize int
	HasBias bool
}

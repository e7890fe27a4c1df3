// Package nn implements the layer graph: parameters, typed edges, the
// layer protocol (setup, connect, forward, backward, update), activation
// strategies, and the concrete spatial layers. Shape bookkeeping lives
// in core parameter structs; the arithmetic is delegated to the engine
// kernels.
package nn

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// ParamType classifies a trainable parameter.
type ParamType int

const (
	// ParamWeight is a multiplicative kernel or matrix.
	ParamWeight ParamType = iota
	// ParamBias is an additive per-channel offset.
	ParamBias
)

func (t ParamType) String() string {
	switch t {
	case ParamWeight:
		return "weight"
	case ParamBias:
		return "bias"
	default:
		return fmt.Sprintf("param(%d)", int(t))
	}
}

// Parameter is one trainable tensor owned by a layer. The data tensor
// is flat; the gradient tensor is shaped [samples, size] so every batch
// sample accumulates into its own row and the batch reduction happens
// once, in MergeGrads.
type Parameter struct {
	typ    ParamType
	outCh  int
	inCh   int
	width  int
	height int

	data *tensor.Tensor
	grad *tensor.Tensor

	trainable   bool
	initialized bool
}

// NewParameter allocates a zeroed parameter of outCh*inCh*width*height
// elements with a single gradient row.
func NewParameter(outCh, inCh, width, height int, typ ParamType) *Parameter {
	size := outCh * inCh * width * height
	return &Parameter{
		typ:       typ,
		outCh:     outCh,
		inCh:      inCh,
		width:     width,
		height:    height,
		data:      tensor.New(tensor.Shape{size}),
		grad:      tensor.New(tensor.Shape{1, size}),
		trainable: true,
	}
}

// Type reports whether this is a weight or a bias.
func (p *Parameter) Type() ParamType { return p.typ }

// Size is the number of elements in the data tensor.
func (p *Parameter) Size() int { return p.data.Size() }

// Data is the flat parameter tensor.
func (p *Parameter) Data() *tensor.Tensor { return p.data }

// Grad is the [samples, size] gradient accumulator.
func (p *Parameter) Grad() *tensor.Tensor { return p.grad }

// Trainable reports whether UpdateParameters touches this parameter.
func (p *Parameter) Trainable() bool { return p.trainable }

// SetTrainable freezes or unfreezes the parameter.
func (p *Parameter) SetTrainable(trainable bool) { p.trainable = trainable }

// Initialized reports whether an initializer has filled the data.
func (p *Parameter) Initialized() bool { return p.initialized }

// SetData replaces the parameter values. The lengths must match.
func (p *Parameter) SetData(values []float32) error {
	if len(values) != p.data.Size() {
		return fmt.Errorf("parameter: data length %d does not match size %d",
			len(values), p.data.Size())
	}
	copy(p.data.Data(), values)
	p.initialized = true
	return nil
}

// Initialize fills the data per the initializer policy and marks the
// parameter initialized.
func (p *Parameter) Initialize(init Initializer, fanIn, fanOut int) {
	init.Fill(p.data.Data(), fanIn, fanOut)
	p.initialized = true
}

// ResizeGrad exposes exactly samples gradient rows. Capacity is
// retained across shrinks; newly exposed rows are zeroed.
func (p *Parameter) ResizeGrad(samples int) {
	p.grad.ResizeRows(samples)
}

// MergeGrads sums every per-sample gradient row into dst, which is
// reshaped to a flat tensor of Size() elements.
func (p *Parameter) MergeGrads(dst *tensor.Tensor) {
	size := p.data.Size()
	dst.Reshape(tensor.Shape{size})
	acc := dst.Data()

	copy(acc, p.grad.RowData(0))
	for sample := 1; sample < p.grad.Rows(); sample++ {
		row := p.grad.RowData(sample)
		for i := 0; i < size; i++ {
			acc[i] += row[i]
		}
	}
}

// ClearGrads zero-fills every gradient row.
func (p *Parameter) ClearGrads() {
	p.grad.Fill(0)
}

// HasSameValues reports whether both parameters hold the same data
// within eps.
func (p *Parameter) HasSameValues(other *Parameter, eps float32) bool {
	if p.Size() != other.Size() {
		return false
	}
	a, b := p.data.Data(), other.data.Data()
	for i := range a {
		d := a[i] - b[i]
		if d < -eps || d > eps {
			return false
		}
	}
	return true
}

package nn

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// VectorType classifies what an edge carries. Only data edges
// participate in batch resizing and connect-time shape checks.
type VectorType int

const (
	// VectorData is activation data flowing between layers.
	VectorData VectorType = iota
	// VectorWeight marks a weight-carrying edge.
	VectorWeight
	// VectorBias marks a bias-carrying edge.
	VectorBias
)

func (v VectorType) String() string {
	switch v {
	case VectorData:
		return "data"
	case VectorWeight:
		return "weight"
	case VectorBias:
		return "bias"
	default:
		return "unknown"
	}
}

// Edge is a graph arc between a producer layer and its consumers. It
// owns a (data, grad) tensor pair shaped [samples, shape.Size()]. The
// producer writes data during forward; every consumer accumulates into
// grad during backward.
type Edge struct {
	shape tensor.Shape3D
	vtype VectorType
	data  *tensor.Tensor
	grad  *tensor.Tensor
	prev  Layer
	next  []Layer
}

func newEdge(shape tensor.Shape3D, vtype VectorType) *Edge {
	return &Edge{
		shape: shape,
		vtype: vtype,
		data:  tensor.New(tensor.Shape{1, shape.Size()}),
		grad:  tensor.New(tensor.Shape{1, shape.Size()}),
	}
}

// newParamEdge exposes a parameter's tensors as a weight- or bias-typed
// edge owned by the layer. The shared batch-resize sweep skips non-data
// edges, so resizing never touches parameter storage.
func newParamEdge(p *Parameter, owner Layer) *Edge {
	vtype := VectorWeight
	if p.Type() == ParamBias {
		vtype = VectorBias
	}
	return &Edge{
		shape: tensor.NewShape3D(p.width, p.height, p.inCh*p.outCh),
		vtype: vtype,
		data:  p.data,
		grad:  p.grad,
		prev:  owner,
	}
}

// Shape is the per-sample geometry carried by the edge.
func (e *Edge) Shape() tensor.Shape3D { return e.shape }

// Type classifies the edge contents.
func (e *Edge) Type() VectorType { return e.vtype }

// Data is the [samples, size] activation tensor.
func (e *Edge) Data() *tensor.Tensor { return e.data }

// Grad is the [samples, size] gradient tensor.
func (e *Edge) Grad() *tensor.Tensor { return e.grad }

// Prev is the producing layer, nil for network inputs.
func (e *Edge) Prev() Layer { return e.prev }

// Next lists the consuming layers.
func (e *Edge) Next() []Layer { return e.next }

func (e *Edge) addNext(l Layer) {
	for _, n := range e.next {
		if n == l {
			return
		}
	}
	e.next = append(e.next, l)
}

// Resize exposes exactly samples rows on both tensors. Non-data edges
// are left untouched.
func (e *Edge) Resize(samples int) {
	if e.vtype != VectorData {
		return
	}
	e.data.ResizeRows(samples)
	e.grad.ResizeRows(samples)
}

// ClearGrads zero-fills the gradient tensor. Consumers accumulate into
// it, so the producer clears it once per forward pass.
func (e *Edge) ClearGrads() {
	e.grad.Fill(0)
}

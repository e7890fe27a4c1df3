// Package tensor provides the float32 data containers that flow through
// the layer graph: N-dimensional Tensor buffers, generic Shape descriptors
// and the Shape3D spatial descriptor with its fixed linearization order.
package tensor

import "fmt"

// Tensor owns a contiguous float32 buffer plus a shape.
//
// Invariant: len(Data()) == Shape().NumElements(). Layout is row-major
// with the first-listed index outermost, so two tensors built from the
// same nested sequence flatten identically.
//
// A Tensor either exclusively owns its buffer or, when constructed by
// SubView/Row, aliases a sub-range of another tensor's storage. Mutating
// a view mutates the parent; a view must not outlive its parent.
type Tensor struct {
	data  []float32
	shape Shape
	view  bool
}

// New allocates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
	}
}

// FromSlice creates a tensor that copies data into freshly owned storage.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return t.shape.NumElements()
}

// IsView reports whether this tensor aliases another tensor's storage.
func (t *Tensor) IsView() bool {
	return t.view
}

// Data returns the flat storage slice.
//
// WARNING: modifications to the returned slice modify the tensor (and,
// for views, the parent).
func (t *Tensor) Data() []float32 {
	return t.data
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Reshape changes the tensor's shape. When the total element count
// matches, storage is reinterpreted in place; otherwise the tensor is
// reinitialized with a zero-filled buffer of the new size. A view cannot
// change its total size, since it does not own its storage.
func (t *Tensor) Reshape(shape Shape) {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: reshape: %v", err))
	}
	n := shape.NumElements()
	if n == t.Size() {
		t.shape = shape.Clone()
		return
	}
	if t.view {
		panic(fmt.Sprintf("tensor: cannot resize view from %v to %v", t.shape, shape))
	}
	if n <= cap(t.data) {
		t.data = t.data[:n]
		for i := range t.data {
			t.data[i] = 0
		}
	} else {
		t.data = make([]float32, n)
	}
	t.shape = shape.Clone()
}

// offset computes the flat index for a multi-index, panicking on any
// out-of-range index. An out-of-range access is a caller bug, never
// silently truncated.
func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	strides := t.shape.ComputeStrides()
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		off += idx * strides[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices)]
}

// SetAt sets the element at the given multi-index.
func (t *Tensor) SetAt(v float32, indices ...int) {
	t.data[t.offset(indices)] = v
}

// Rows returns the extent of the first axis (1 for a scalar).
func (t *Tensor) Rows() int {
	if len(t.shape) == 0 {
		return 1
	}
	return t.shape[0]
}

// SubView returns a non-owning tensor aliasing rows [start, start+count)
// of the first axis. The view shares storage with the parent.
func (t *Tensor) SubView(start, count int) *Tensor {
	if len(t.shape) == 0 {
		panic("tensor: cannot take a sub-view of a scalar")
	}
	if start < 0 || count < 0 || start+count > t.shape[0] {
		panic(fmt.Sprintf("tensor: sub-view rows [%d,%d) out of bounds for first axis of size %d", start, start+count, t.shape[0]))
	}
	rowSize := t.Size() / t.shape[0]
	shape := t.shape.Clone()
	shape[0] = count
	return &Tensor{
		data:  t.data[start*rowSize : (start+count)*rowSize],
		shape: shape,
		view:  true,
	}
}

// Row returns a view of row i with the first axis dropped.
func (t *Tensor) Row(i int) *Tensor {
	v := t.SubView(i, 1)
	v.shape = v.shape[1:].Clone()
	return v
}

// RowData returns the storage slice for row i of the first axis.
// The slice aliases the tensor's storage.
func (t *Tensor) RowData(i int) []float32 {
	return t.Row(i).data
}

// ResizeRows sets the first axis to exactly rows, retaining storage
// capacity across shrink/grow cycles so repeated batch-size changes do
// not thrash the allocator. Newly exposed rows are zero-filled.
func (t *Tensor) ResizeRows(rows int) {
	if len(t.shape) == 0 {
		panic("tensor: cannot resize a scalar by rows")
	}
	if t.shape[0] == rows {
		return
	}
	if t.view {
		panic(fmt.Sprintf("tensor: cannot resize view to %d rows", rows))
	}
	shape := t.shape.Clone()
	shape[0] = rows
	n := shape.NumElements()
	if n <= cap(t.data) {
		prev := len(t.data)
		t.data = t.data[:n]
		for i := prev; i < n; i++ {
			t.data[i] = 0
		}
	} else {
		grown := make([]float32, n)
		copy(grown, t.data)
		t.data = grown
	}
	t.shape = shape
}

// Clone returns a deep copy with exclusively owned storage.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape)
	copy(c.data, t.data)
	return c
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}

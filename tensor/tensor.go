// Copyright 2026 The Kiln Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for kiln's numeric containers.
//
// A Tensor is a contiguous float32 buffer with an ordered shape,
// supporting reshape, fill, bounds-checked element access, and aliasing
// sub-views over the first axis. Shape3D is the width x height x depth
// descriptor every spatial layer addresses through.
//
// Example:
//
//	t := tensor.New(tensor.Shape{2, 3})
//	t.Fill(1)
//	v := t.At(1, 2)
package tensor

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Shape is the ordered dimension sizes of a tensor. The first listed
// index is outermost in the row-major layout.
type Shape = tensor.Shape

// Shape3D is the width x height x depth descriptor used by spatial
// layers. Index(x, y, c) linearizes as c*width*height + y*width + x.
type Shape3D = tensor.Shape3D

// Tensor owns a contiguous float32 buffer, unless built as a view, in
// which case it aliases its parent's storage.
type Tensor = tensor.Tensor

// NewShape3D builds a width x height x depth descriptor.
func NewShape3D(width, height, depth int) Shape3D {
	return tensor.NewShape3D(width, height, depth)
}

// New allocates a zeroed tensor. It panics on an invalid shape.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice wraps existing data in a tensor. The data length must
// match the shape's element count.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

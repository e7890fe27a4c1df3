package tensor

import "fmt"

// Shape3D is the width × height × depth descriptor used by spatial layers.
//
// Elements are linearized channel-major: all of channel 0's rows, then
// channel 1's, and so on. Every spatial kernel depends on this exact
// ordering, so Index is the single source of truth for it.
type Shape3D struct {
	Width  int
	Height int
	Depth  int
}

// NewShape3D constructs a Shape3D from width, height and depth.
func NewShape3D(width, height, depth int) Shape3D {
	return Shape3D{Width: width, Height: height, Depth: depth}
}

// Size returns the number of elements, width*height*depth.
func (s Shape3D) Size() int {
	return s.Width * s.Height * s.Depth
}

// Area returns the size of one channel plane, width*height.
func (s Shape3D) Area() int {
	return s.Width * s.Height
}

// Index returns the flat offset of element (x, y, c):
//
//	c*width*height + y*width + x
func (s Shape3D) Index(x, y, c int) int {
	return (s.Height*c+y)*s.Width + x
}

// Equal reports whether two descriptors have identical dimensions.
func (s Shape3D) Equal(other Shape3D) bool {
	return s == other
}

// IsZero reports whether the descriptor is the empty (0,0,0) value,
// used by layers that infer their input shape at connect time.
func (s Shape3D) IsZero() bool {
	return s.Width == 0 && s.Height == 0 && s.Depth == 0
}

func (s Shape3D) String() string {
	return fmt.Sprintf("[%dx%dx%d]", s.Width, s.Height, s.Depth)
}

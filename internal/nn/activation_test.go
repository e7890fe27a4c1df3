package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/tensor"
)

func TestSigmoidValues(t *testing.T) {
	var s Sigmoid
	x := []float32{0, 1, -1, 10}
	y := make([]float32, len(x))
	s.Forward(x, y)

	assert.InDelta(t, 0.5, y[0], 1e-6)
	assert.InDelta(t, 0.7310586, y[1], 1e-6)
	assert.InDelta(t, 0.2689414, y[2], 1e-6)
	assert.InDelta(t, 0.9999546, y[3], 1e-6)
}

func TestSigmoidBackwardUsesOutput(t *testing.T) {
	var s Sigmoid
	y := []float32{0.5, 0.7310586}
	dy := []float32{1, 2}
	dx := make([]float32, 2)
	s.Backward(y, dy, dx)

	// dy * y * (1 - y)
	assert.InDelta(t, 0.25, dx[0], 1e-6)
	assert.InDelta(t, 2*0.7310586*(1-0.7310586), dx[1], 1e-6)
}

func TestBackwardAccumulates(t *testing.T) {
	var r ReLU
	y := []float32{2}
	dy := []float32{3}
	dx := []float32{10}
	r.Backward(y, dy, dx)
	assert.InDelta(t, 13, dx[0], 1e-6)
}

func TestTanhValues(t *testing.T) {
	var a Tanh
	x := []float32{0, 1, -1}
	y := make([]float32, len(x))
	a.Forward(x, y)

	assert.InDelta(t, 0, y[0], 1e-6)
	assert.InDelta(t, math.Tanh(1), float64(y[1]), 1e-6)
	assert.InDelta(t, math.Tanh(-1), float64(y[2]), 1e-6)

	dy := []float32{1, 1, 1}
	dx := make([]float32, 3)
	a.Backward(y, dy, dx)
	assert.InDelta(t, 1, dx[0], 1e-6)
	assert.InDelta(t, 1-math.Tanh(1)*math.Tanh(1), float64(dx[1]), 1e-6)
}

func TestReLUValues(t *testing.T) {
	var r ReLU
	x := []float32{-2, 0, 3}
	y := make([]float32, len(x))
	r.Forward(x, y)
	assert.Equal(t, []float32{0, 0, 3}, y)

	dy := []float32{1, 1, 1}
	dx := make([]float32, 3)
	r.Backward(y, dy, dx)
	assert.Equal(t, []float32{0, 0, 1}, dx)
}

func TestSELUValues(t *testing.T) {
	var s SELU
	x := []float32{0, 1, -1}
	y := make([]float32, len(x))
	s.Forward(x, y)

	const lambda = 1.0507009873554805
	const alpha = 1.6732632423543772

	assert.InDelta(t, 0, y[0], 1e-6)
	assert.InDelta(t, lambda, y[1], 1e-6)
	assert.InDelta(t, lambda*alpha*(math.Exp(-1)-1), float64(y[2]), 1e-6)

	dy := []float32{1, 1, 1}
	dx := make([]float32, 3)
	s.Backward(y, dy, dx)
	// positive side: lambda; negative side: y + lambda*alpha
	assert.InDelta(t, lambda*alpha, float64(dx[0]), 1e-6)
	assert.InDelta(t, lambda, dx[1], 1e-6)
	assert.InDelta(t, float64(y[2])+lambda*alpha, float64(dx[2]), 1e-6)
}

func TestActivationRanges(t *testing.T) {
	lo, hi := Sigmoid{}.Range()
	assert.InDelta(t, 0, lo, 1e-6)
	assert.InDelta(t, 1, hi, 1e-6)

	lo, hi = Tanh{}.Range()
	assert.InDelta(t, -1, lo, 1e-6)
	assert.InDelta(t, 1, hi, 1e-6)

	lo, hi = ReLU{}.Range()
	assert.InDelta(t, 0, lo, 1e-6)
	assert.True(t, math.IsInf(float64(hi), 1))
}

func TestActivationLayerForwardBackward(t *testing.T) {
	layer := NewActivationLayer(ReLU{}, tensor.NewShape3D(4, 1, 1))
	require.NoError(t, Setup(layer, true))

	require.NoError(t, SetInputData(layer, 0, [][]float32{{-1, 2, -3, 4}}))
	require.NoError(t, Forward(layer))
	assert.Equal(t, []float32{0, 2, 0, 4}, layer.OutEdge(0).Data().RowData(0))

	layer.OutEdge(0).Grad().Fill(1)
	require.NoError(t, Backward(layer))
	assert.Equal(t, []float32{0, 1, 0, 1}, layer.InEdge(0).Grad().RowData(0))
}

func TestActivationLayerType(t *testing.T) {
	assert.Equal(t, "sigmoid-activation", NewActivationLayer(Sigmoid{}).LayerType())
	assert.Equal(t, "relu-activation", NewActivationLayer(ReLU{}).LayerType())
}

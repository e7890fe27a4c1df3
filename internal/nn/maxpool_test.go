package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/core"
)

func TestMaxPoolForward(t *testing.T) {
	pool, err := NewMaxPool(4, 4, 1, 2, WithParallelize(false))
	require.NoError(t, err)
	require.NoError(t, Setup(pool, true))

	input := []float32{
		0, 1, 2, 3,
		8, 7, 5, 6,
		4, 3, 1, 2,
		0, -1, -2, -3,
	}
	require.NoError(t, SetInputData(pool, 0, [][]float32{input}))
	require.NoError(t, Forward(pool))

	want := []float32{8, 6, 4, 2}
	assert.InDeltaSlice(t, want, pool.OutEdge(0).Data().RowData(0), 1e-6)
}

func TestMaxPoolBackwardRoutesToArgmax(t *testing.T) {
	pool, err := NewMaxPool(4, 4, 1, 2, WithParallelize(false))
	require.NoError(t, err)
	require.NoError(t, Setup(pool, true))

	input := []float32{
		0, 1, 2, 3,
		8, 7, 5, 6,
		4, 3, 1, 2,
		0, -1, -2, -3,
	}
	require.NoError(t, SetInputData(pool, 0, [][]float32{input}))
	require.NoError(t, Forward(pool))

	grad := pool.OutEdge(0).Grad()
	copy(grad.RowData(0), []float32{10, 20, 30, 40})
	require.NoError(t, Backward(pool))

	prevGrad := pool.InEdge(0).Grad().RowData(0)
	want := make([]float32, 16)
	want[4] = 10  // 8
	want[7] = 20  // 6
	want[8] = 30  // 4
	want[11] = 40 // 2
	assert.InDeltaSlice(t, want, prevGrad, 1e-6)
}

func TestMaxPoolNonSquareStride(t *testing.T) {
	pool, err := NewMaxPool(4, 2, 1, 2, WithStride(2, 1), WithParallelize(false))
	require.NoError(t, err)
	out := pool.OutShapes()[0]
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 1, out.Height)
}

func TestMaxPoolBorderClamping(t *testing.T) {
	// 3x3 input with pool 2, stride 2 and same padding: the last
	// column and row windows are clamped to stay inside the input
	pool, err := NewMaxPool(3, 3, 1, 2,
		WithStride(2, 2),
		WithPadding(core.PaddingSame),
		WithParallelize(false))
	require.NoError(t, err)
	require.NoError(t, Setup(pool, true))

	input := []float32{
		1, 2, 9,
		3, 4, 5,
		6, 7, 8,
	}
	require.NoError(t, SetInputData(pool, 0, [][]float32{input}))
	require.NoError(t, Forward(pool))

	want := []float32{4, 9, 7, 8}
	assert.InDeltaSlice(t, want, pool.OutEdge(0).Data().RowData(0), 1e-6)
}

func TestMaxPoolAcceleratedRejected(t *testing.T) {
	_, err := NewMaxPool(4, 4, 1, 2, WithEngine(core.EngineAccelerated))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

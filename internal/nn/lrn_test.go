package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/core"
)

func TestLRNForwardAcrossChannels(t *testing.T) {
	lrn, err := NewLRN(1, 1, 3, 3, 2.0, 0.75)
	require.NoError(t, err)
	require.NoError(t, Setup(lrn, true))

	require.NoError(t, SetInputData(lrn, 0, [][]float32{{1, 2, 3}}))
	require.NoError(t, Forward(lrn))

	out := lrn.OutEdge(0).Data().RowData(0)

	// window size 3 centered on each channel, clamped at the borders
	scale := func(sum float32) float32 {
		return float32(math.Pow(float64(1+2.0/3*sum), -0.75))
	}
	assert.InDelta(t, 1*scale(1+4), out[0], 1e-5)
	assert.InDelta(t, 2*scale(1+4+9), out[1], 1e-5)
	assert.InDelta(t, 3*scale(4+9), out[2], 1e-5)
}

func TestLRNIdentityWithZeroAlpha(t *testing.T) {
	lrn, err := NewLRN(2, 2, 2, 3, 0, 0.75)
	require.NoError(t, err)
	require.NoError(t, Setup(lrn, true))

	in := []float32{1, -2, 3, -4, 5, -6, 7, -8}
	require.NoError(t, SetInputData(lrn, 0, [][]float32{in}))
	require.NoError(t, Forward(lrn))

	assert.InDeltaSlice(t, in, lrn.OutEdge(0).Data().RowData(0), 1e-6)
}

func TestLRNBackwardNotSupported(t *testing.T) {
	lrn, err := NewLRN(1, 1, 3, 3, 2.0, 0.75)
	require.NoError(t, err)

	err = lrn.BackPropagation(nil, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestLRNRejectsBadWindow(t *testing.T) {
	_, err := NewLRN(1, 1, 3, 0, 2.0, 0.75)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

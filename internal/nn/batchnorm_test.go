package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchNormForwardNormalizes(t *testing.T) {
	bn, err := NewBatchNorm(2, 1, 2, 0.9, 1e-5)
	require.NoError(t, err)
	require.NoError(t, Setup(bn, true))

	// channel 0: {1,3,5,7}  channel 1: {2,2,2,2}
	batch := [][]float32{
		{1, 3, 2, 2},
		{5, 7, 2, 2},
	}
	require.NoError(t, SetInputData(bn, 0, batch))
	require.NoError(t, Forward(bn))

	out0 := bn.OutEdge(0).Data().RowData(0)
	out1 := bn.OutEdge(0).Data().RowData(1)

	// channel 0: mean 4, variance 5
	sd := float32(math.Sqrt(5 + 1e-5))
	assert.InDelta(t, (1-4)/sd, out0[0], 1e-5)
	assert.InDelta(t, (3-4)/sd, out0[1], 1e-5)
	assert.InDelta(t, (5-4)/sd, out1[0], 1e-5)
	assert.InDelta(t, (7-4)/sd, out1[1], 1e-5)

	// constant channel normalizes to zero
	assert.InDelta(t, 0, out0[2], 1e-3)
	assert.InDelta(t, 0, out0[3], 1e-3)
	assert.InDelta(t, 0, out1[2], 1e-3)
}

func TestBatchNormPostUpdateFoldsRunningStats(t *testing.T) {
	bn, err := NewBatchNorm(1, 1, 1, 0.5, 1e-5)
	require.NoError(t, err)
	require.NoError(t, Setup(bn, true))

	require.NoError(t, SetInputData(bn, 0, [][]float32{{2}, {6}}))
	require.NoError(t, Forward(bn))
	bn.PostUpdate()

	// batch mean 4, variance 4; running starts at mean 0, variance 1
	assert.InDelta(t, 0.5*0+0.5*4, bn.RunningMean()[0], 1e-5)
	assert.InDelta(t, 0.5*1+0.5*4, bn.RunningVariance()[0], 1e-5)
}

func TestBatchNormTestPhaseUsesRunningStats(t *testing.T) {
	bn, err := NewBatchNorm(1, 1, 1, 0.9, 0)
	require.NoError(t, err)
	require.NoError(t, Setup(bn, true))
	bn.SetPhase(PhaseTest)

	// running mean 0, variance 1: test phase is the identity
	require.NoError(t, SetInputData(bn, 0, [][]float32{{3}, {-2}}))
	require.NoError(t, Forward(bn))

	assert.InDelta(t, 3, bn.OutEdge(0).Data().RowData(0)[0], 1e-6)
	assert.InDelta(t, -2, bn.OutEdge(0).Data().RowData(1)[0], 1e-6)
}

func TestBatchNormBackwardZeroMeanGradient(t *testing.T) {
	bn, err := NewBatchNorm(1, 1, 1, 0.9, 1e-5)
	require.NoError(t, err)
	require.NoError(t, Setup(bn, true))

	require.NoError(t, SetInputData(bn, 0, [][]float32{{1}, {3}, {5}, {7}}))
	require.NoError(t, Forward(bn))

	grad := bn.OutEdge(0).Grad()
	for s, v := range []float32{1, -1, 2, -2} {
		grad.RowData(s)[0] = v
	}
	require.NoError(t, Backward(bn))

	// the projected gradient sums to zero across the batch
	sum := float32(0)
	for s := 0; s < 4; s++ {
		sum += bn.InEdge(0).Grad().RowData(s)[0]
	}
	assert.InDelta(t, 0, sum, 1e-4)
}

func TestBatchNormRejectsZeroChannels(t *testing.T) {
	_, err := NewBatchNorm(1, 1, 0, 0.9, 1e-5)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityTable(t *testing.T) {
	tests := []struct {
		name    string
		engine  Engine
		op      Op
		hasBias bool
		stride  int
		wantErr bool
	}{
		{"internal conv any stride", EngineInternal, OpConv2D, false, 2, false},
		{"vectorized conv no bias", EngineVectorized, OpConv2D, false, 1, false},
		{"accelerated conv ok", EngineAccelerated, OpConv2D, true, 1, false},
		{"accelerated conv no bias", EngineAccelerated, OpConv2D, false, 1, true},
		{"accelerated conv stride 2", EngineAccelerated, OpConv2D, true, 2, true},
		{"accelerated fully ok", EngineAccelerated, OpFullyConnected, true, 1, false},
		{"accelerated fully no bias", EngineAccelerated, OpFullyConnected, false, 1, true},
		{"accelerated deconv", EngineAccelerated, OpDeconv2D, true, 1, true},
		{"accelerated maxpool", EngineAccelerated, OpMaxPool, true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfiguration(tt.engine, tt.op, tt.hasBias, tt.stride, tt.stride)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotSupported)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckBackward(t *testing.T) {
	assert.NoError(t, CheckBackward(EngineInternal, OpConv2D))
	assert.NoError(t, CheckBackward(EngineVectorized, OpFullyConnected))

	err := CheckBackward(EngineAccelerated, OpConv2D)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSupported)

	var capErr *CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, EngineAccelerated, capErr.Engine)
	assert.Equal(t, OpConv2D, capErr.Op)
}

func TestEngineAndOpStrings(t *testing.T) {
	assert.Equal(t, "internal", EngineInternal.String())
	assert.Equal(t, "vectorized", EngineVectorized.String())
	assert.Equal(t, "accelerated", EngineAccelerated.String())
	assert.Equal(t, "conv2d", OpConv2D.String())
}

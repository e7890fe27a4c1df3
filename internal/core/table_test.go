package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionTableEmptyMeansFullyConnected(t *testing.T) {
	var table ConnectionTable
	assert.True(t, table.IsEmpty())
	assert.True(t, table.IsConnected(0, 0))
	assert.True(t, table.IsConnected(3, 7))
	assert.Equal(t, 4, table.InCount(0, 4))
}

func TestConnectionTableGating(t *testing.T) {
	// 2 input channels, 2 output channels; (out 0, in 1) disconnected
	flags := []bool{
		true, true, // in 0 -> out 0, out 1
		false, true, // in 1 -> out 0 cut, out 1 kept
	}
	table, err := NewConnectionTable(2, 2, flags)
	require.NoError(t, err)

	assert.False(t, table.IsEmpty())
	assert.True(t, table.IsConnected(0, 0))
	assert.True(t, table.IsConnected(1, 0))
	assert.False(t, table.IsConnected(0, 1))
	assert.True(t, table.IsConnected(1, 1))

	assert.Equal(t, 1, table.InCount(0, 2))
	assert.Equal(t, 2, table.InCount(1, 2))
}

func TestConnectionTableLengthValidation(t *testing.T) {
	_, err := NewConnectionTable(2, 2, []bool{true, false})
	assert.Error(t, err)
}

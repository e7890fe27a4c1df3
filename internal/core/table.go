package core

import "fmt"

// ConnectionTable is the sparse boolean wiring map between input and
// output channels of a convolution. An empty table means fully connected
// channel-to-channel wiring.
//
// Storage is row-per-input-channel: entry (out, in) lives at
// in*outCount + out, matching the historical LeNet-5 style tables where
// each row lists which output maps an input map feeds.
type ConnectionTable struct {
	inCount   int
	outCount  int
	connected []bool
}

// NewConnectionTable builds a table for inCount input channels and
// outCount output channels from a flat row-per-input-channel flag slice.
func NewConnectionTable(inCount, outCount int, connected []bool) (ConnectionTable, error) {
	if len(connected) != inCount*outCount {
		return ConnectionTable{}, fmt.Errorf("connection table needs %d flags for %dx%d wiring, got %d",
			inCount*outCount, inCount, outCount, len(connected))
	}
	flags := make([]bool, len(connected))
	copy(flags, connected)
	return ConnectionTable{inCount: inCount, outCount: outCount, connected: flags}, nil
}

// IsEmpty reports whether the table carries no wiring information, which
// means every channel pair is connected.
func (t ConnectionTable) IsEmpty() bool {
	return t.connected == nil
}

// IsConnected reports whether output channel out receives input channel
// in. An empty table is always connected.
func (t ConnectionTable) IsConnected(out, in int) bool {
	if t.IsEmpty() {
		return true
	}
	return t.connected[in*t.outCount+out]
}

// InCount returns how many connected input channels feed output channel
// out, used for fan-in scaled initialization of sparse convolutions.
func (t ConnectionTable) InCount(out, inChannels int) int {
	if t.IsEmpty() {
		return inChannels
	}
	n := 0
	for in := 0; in < t.inCount; in++ {
		if t.IsConnected(out, in) {
			n++
		}
	}
	return n
}

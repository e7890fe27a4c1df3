// Package optim implements the gradient-descent update rules. Stateful
// optimizers key their accumulators by the identity of the weight
// buffer they update, so every distinct parameter gets its own state,
// lazily created on first use.
package optim

import "math"

// Optimizer mutates a weight buffer in place from its merged, batch-
// scaled gradient. Reset drops all accumulator state for a fresh
// training run.
type Optimizer interface {
	Update(dW, w []float32)
	Reset()
}

// stateKey identifies a weight buffer by the address of its first
// element. Buffers are never reallocated by the layer after creation.
type stateKey = *float32

func keyOf(w []float32) stateKey {
	return &w[0]
}

// stateMap lazily allocates one accumulator per weight buffer.
type stateMap map[stateKey][]float32

func (m stateMap) get(w []float32) []float32 {
	k := keyOf(w)
	if s, ok := m[k]; ok {
		return s
	}
	s := make([]float32, len(w))
	m[k] = s
	return s
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

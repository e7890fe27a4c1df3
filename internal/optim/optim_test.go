package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSGDStep(t *testing.T) {
	o := NewSGD()
	w := []float32{1, -2}
	o.Update([]float32{0.5, -0.5}, w)

	assert.InDelta(t, 1-0.01*0.5, w[0], 1e-6)
	assert.InDelta(t, -2+0.01*0.5, w[1], 1e-6)
}

func TestSGDWeightDecay(t *testing.T) {
	o := &SGD{Alpha: 0.1, Lambda: 0.5}
	w := []float32{2}
	o.Update([]float32{0}, w)

	// pure decay: w -= alpha * lambda * w
	assert.InDelta(t, 2-0.1*0.5*2, w[0], 1e-6)
}

func TestMomentumAccumulatesVelocity(t *testing.T) {
	o := NewMomentum()
	w := []float32{0}
	dW := []float32{1}

	o.Update(dW, w)
	// v1 = -0.01, w = -0.01
	assert.InDelta(t, -0.01, w[0], 1e-6)

	o.Update(dW, w)
	// v2 = 0.9*(-0.01) - 0.01 = -0.019, w = -0.029
	assert.InDelta(t, -0.029, w[0], 1e-6)
}

func TestMomentumStatePerBuffer(t *testing.T) {
	o := NewMomentum()
	a := []float32{0}
	b := []float32{0}

	o.Update([]float32{1}, a)
	o.Update([]float32{1}, a)
	o.Update([]float32{1}, b)

	// b took only one step so its velocity is fresh
	assert.InDelta(t, -0.029, a[0], 1e-6)
	assert.InDelta(t, -0.01, b[0], 1e-6)
}

func TestMomentumReset(t *testing.T) {
	o := NewMomentum()
	w := []float32{0}
	o.Update([]float32{1}, w)
	o.Reset()
	w[0] = 0
	o.Update([]float32{1}, w)

	assert.InDelta(t, -0.01, w[0], 1e-6)
}

func TestAdagradStep(t *testing.T) {
	o := NewAdagrad()
	w := []float32{1}
	o.Update([]float32{2}, w)

	// g = 4, step = 0.01 * 2 / (2 + eps)
	assert.InDelta(t, 1-0.01, w[0], 1e-6)

	o.Update([]float32{2}, w)
	// g = 8, step = 0.01 * 2 / sqrt(8)
	assert.InDelta(t, 1-0.01-0.01*2/float32(math.Sqrt(8)), w[0], 1e-6)
}

func TestRMSpropStep(t *testing.T) {
	o := NewRMSprop()
	w := []float32{1}
	o.Update([]float32{1}, w)

	// g = 0.01, step = 0.0001 / sqrt(0.01 + eps)
	want := 1 - 0.0001/float32(math.Sqrt(0.01+1e-8))
	assert.InDelta(t, want, w[0], 1e-6)
}

func TestAdamStep(t *testing.T) {
	o := NewAdam()
	w := []float32{1}
	o.Update([]float32{1}, w)

	// m = 0.1, v = 0.001; mHat = m/(1-0.9) = 1, vHat = v/(1-0.999) = 1
	// step = alpha * 1 / (1 + eps)
	assert.InDelta(t, 1-0.001, w[0], 1e-5)
}

func TestAdamDecayPowersAdvance(t *testing.T) {
	o := NewAdam()
	w := []float32{0}
	o.Update([]float32{1}, w)
	assert.InDelta(t, 0.81, o.B1t, 1e-6)
	assert.InDelta(t, 0.999*0.999, o.B2t, 1e-6)

	o.Update([]float32{1}, w)
	assert.InDelta(t, 0.729, o.B1t, 1e-6)
}

func TestAdamReset(t *testing.T) {
	o := NewAdam()
	w := []float32{0}
	o.Update([]float32{1}, w)
	o.Reset()

	assert.InDelta(t, 0.9, o.B1t, 1e-6)
	assert.InDelta(t, 0.999, o.B2t, 1e-6)

	w[0] = 0
	o.Update([]float32{1}, w)
	assert.InDelta(t, -0.001, w[0], 1e-5)
}

func TestStateSurvivesAcrossCalls(t *testing.T) {
	o := NewAdagrad()
	w := []float32{0}
	o.Update([]float32{1}, w)
	first := -w[0]
	o.Update([]float32{1}, w)
	second := -(w[0] + first)

	// the second step is smaller because the accumulator grew
	assert.Less(t, second, first)
	assert.Greater(t, second, float32(0))
}

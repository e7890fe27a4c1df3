package nn

import (
	"math"
	"math/rand"
)

// Initializer fills a parameter buffer using the owning layer's fan-in
// and fan-out counts for scaling.
type Initializer interface {
	Fill(data []float32, fanIn, fanOut int)
}

// Constant fills every element with Value.
type Constant struct {
	Value float32
}

func (c Constant) Fill(data []float32, fanIn, fanOut int) {
	for i := range data {
		data[i] = c.Value
	}
}

// Xavier draws from a uniform distribution over
// [-sqrt(Scale/(fanIn+fanOut)), +sqrt(Scale/(fanIn+fanOut))].
type Xavier struct {
	Scale float64
}

// NewXavier returns the standard scale of 6.
func NewXavier() Xavier {
	return Xavier{Scale: 6.0}
}

func (x Xavier) Fill(data []float32, fanIn, fanOut int) {
	limit := math.Sqrt(x.Scale / float64(fanIn+fanOut))
	uniform(data, -limit, limit)
}

// LeCun draws from a uniform distribution over
// [-1/sqrt(fanIn), +1/sqrt(fanIn)].
type LeCun struct{}

func (LeCun) Fill(data []float32, fanIn, fanOut int) {
	limit := 1.0 / math.Sqrt(float64(fanIn))
	uniform(data, -limit, limit)
}

// Gaussian draws from a normal distribution with the given standard
// deviation, ignoring fan counts.
type Gaussian struct {
	Sigma float64
}

func (g Gaussian) Fill(data []float32, fanIn, fanOut int) {
	for i := range data {
		data[i] = float32(rand.NormFloat64() * g.Sigma)
	}
}

func uniform(data []float32, lo, hi float64) {
	for i := range data {
		data[i] = float32(lo + rand.Float64()*(hi-lo))
	}
}

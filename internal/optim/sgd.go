package optim

// SGD is plain stochastic gradient descent with optional weight decay:
// w -= alpha * (dW + lambda*w).
type SGD struct {
	Alpha  float32 // learning rate
	Lambda float32 // weight decay
}

// NewSGD returns SGD with the standard learning rate of 0.01.
func NewSGD() *SGD {
	return &SGD{Alpha: 0.01}
}

func (o *SGD) Update(dW, w []float32) {
	for i := range w {
		w[i] -= o.Alpha * (dW[i] + o.Lambda*w[i])
	}
}

// Reset is a no-op; plain SGD carries no state.
func (o *SGD) Reset() {}

// Momentum accumulates a velocity per weight buffer:
// v = mu*v - alpha*(dW + lambda*w); w += v.
type Momentum struct {
	Alpha  float32
	Lambda float32
	Mu     float32

	velocity stateMap
}

// NewMomentum returns momentum SGD with alpha 0.01 and mu 0.9.
func NewMomentum() *Momentum {
	return &Momentum{Alpha: 0.01, Mu: 0.9, velocity: stateMap{}}
}

func (o *Momentum) Update(dW, w []float32) {
	if o.velocity == nil {
		o.velocity = stateMap{}
	}
	v := o.velocity.get(w)
	for i := range w {
		v[i] = o.Mu*v[i] - o.Alpha*(dW[i]+o.Lambda*w[i])
		w[i] += v[i]
	}
}

func (o *Momentum) Reset() {
	o.velocity = stateMap{}
}

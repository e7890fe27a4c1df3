package optim

// Adam combines per-weight first and second moment estimates with
// bias-corrected decay powers. The decay powers b1^t and b2^t are
// shared mutable state across every parameter this instance updates and
// advance once per Update call.
type Adam struct {
	Alpha float32
	B1    float32
	B2    float32
	B1t   float32
	B2t   float32
	Eps   float32

	mt stateMap
	vt stateMap
}

// NewAdam returns Adam with the standard alpha 0.001, b1 0.9, b2 0.999.
func NewAdam() *Adam {
	return &Adam{
		Alpha: 0.001,
		B1:    0.9,
		B2:    0.999,
		B1t:   0.9,
		B2t:   0.999,
		Eps:   1e-8,
		mt:    stateMap{},
		vt:    stateMap{},
	}
}

func (o *Adam) Update(dW, w []float32) {
	if o.mt == nil {
		o.mt = stateMap{}
		o.vt = stateMap{}
	}
	mt := o.mt.get(w)
	vt := o.vt.get(w)

	for i := range w {
		mt[i] = o.B1*mt[i] + (1-o.B1)*dW[i]
		vt[i] = o.B2*vt[i] + (1-o.B2)*dW[i]*dW[i]

		mHat := mt[i] / (1 - o.B1t)
		vHat := vt[i] / (1 - o.B2t)
		w[i] -= o.Alpha * mHat / (sqrt32(vHat) + o.Eps)
	}

	o.B1t *= o.B1
	o.B2t *= o.B2
}

// Reset drops the moment estimates and restores the decay powers.
func (o *Adam) Reset() {
	o.mt = stateMap{}
	o.vt = stateMap{}
	o.B1t = o.B1
	o.B2t = o.B2
}

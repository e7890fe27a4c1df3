package optim

// Adagrad scales each step by the accumulated squared gradient:
// g += dW^2; w -= alpha * dW / (sqrt(g) + eps).
type Adagrad struct {
	Alpha float32
	Eps   float32

	accum stateMap
}

// NewAdagrad returns Adagrad with alpha 0.01.
func NewAdagrad() *Adagrad {
	return &Adagrad{Alpha: 0.01, Eps: 1e-8, accum: stateMap{}}
}

func (o *Adagrad) Update(dW, w []float32) {
	if o.accum == nil {
		o.accum = stateMap{}
	}
	g := o.accum.get(w)
	for i := range w {
		g[i] += dW[i] * dW[i]
		w[i] -= o.Alpha * dW[i] / (sqrt32(g[i]) + o.Eps)
	}
}

func (o *Adagrad) Reset() {
	o.accum = stateMap{}
}

// RMSprop keeps an exponential moving average of squared gradients:
// g = mu*g + (1-mu)*dW^2; w -= alpha * dW / sqrt(g + eps).
type RMSprop struct {
	Alpha float32
	Mu    float32
	Eps   float32

	accum stateMap
}

// NewRMSprop returns RMSprop with alpha 0.0001 and mu 0.99.
func NewRMSprop() *RMSprop {
	return &RMSprop{Alpha: 0.0001, Mu: 0.99, Eps: 1e-8, accum: stateMap{}}
}

func (o *RMSprop) Update(dW, w []float32) {
	if o.accum == nil {
		o.accum = stateMap{}
	}
	g := o.accum.get(w)
	for i := range w {
		g[i] = o.Mu*g[i] + (1-o.Mu)*dW[i]*dW[i]
		w[i] -= o.Alpha * dW[i] / sqrt32(g[i]+o.Eps)
	}
}

func (o *RMSprop) Reset() {
	o.accum = stateMap{}
}

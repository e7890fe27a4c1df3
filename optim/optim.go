// Copyright 2026 The Kiln Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the public API for the gradient update rules.
//
// Every optimizer mutates weights in place from a merged, batch-scaled
// gradient. Stateful optimizers key their accumulators by the weight
// buffer being updated, so one instance can serve a whole network:
//
//	opt := optim.NewAdam()
//	_ = nn.UpdateParameters(layer, opt, batchSize)
package optim

import (
	"github.com/kiln-ml/kiln/internal/optim"
)

// Optimizer mutates a weight buffer in place from its gradient. Reset
// drops accumulator state between independent training runs.
type Optimizer = optim.Optimizer

type (
	SGD      = optim.SGD
	Momentum = optim.Momentum
	Adagrad  = optim.Adagrad
	RMSprop  = optim.RMSprop
	Adam     = optim.Adam
)

var (
	NewSGD      = optim.NewSGD
	NewMomentum = optim.NewMomentum
	NewAdagrad  = optim.NewAdagrad
	NewRMSprop  = optim.NewRMSprop
	NewAdam     = optim.NewAdam
)

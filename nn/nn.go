// Copyright 2026 The Kiln Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for building and running layer
// graphs: parameters, layers, graph wiring, and the forward, backward,
// and update protocol.
//
// Layers are constructed with their hyperparameters, wired with
// Connect or Sequence, and driven with Forward, Backward, and
// UpdateParameters:
//
//	conv, _ := nn.NewConv2D(5, 5, 3, 1, 2, nn.WithActivation(nn.Sigmoid{}))
//	pool, _ := nn.NewMaxPool(3, 3, 2, 3)
//	_ = nn.Sequence(conv, pool)
//	_ = nn.SetInputData(conv, 0, batch)
//	_ = nn.Forward(conv)
//	_ = nn.Forward(pool)
package nn

import (
	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/nn"
)

// Core graph types.
type (
	Layer     = nn.Layer
	Base      = nn.Base
	Edge      = nn.Edge
	Parameter = nn.Parameter

	ConfigError     = nn.ConfigError
	ConnectionError = nn.ConnectionError
)

// Parameter roles and edge classifications.
type (
	ParamType  = nn.ParamType
	VectorType = nn.VectorType
)

const (
	ParamWeight = nn.ParamWeight
	ParamBias   = nn.ParamBias

	VectorData   = nn.VectorData
	VectorWeight = nn.VectorWeight
	VectorBias   = nn.VectorBias
)

// Initializer policies.
type (
	Initializer = nn.Initializer
	Constant    = nn.Constant
	Xavier      = nn.Xavier
	LeCun       = nn.LeCun
	Gaussian    = nn.Gaussian
)

// NewXavier returns the standard Xavier initializer.
func NewXavier() Xavier { return nn.NewXavier() }

// Activation strategies.
type (
	Activation = nn.Activation
	Identity   = nn.Identity
	Sigmoid    = nn.Sigmoid
	Tanh       = nn.Tanh
	ReLU       = nn.ReLU
	SELU       = nn.SELU
)

// Concrete layers.
type (
	ActivationLayer = nn.ActivationLayer
	FullyConnected  = nn.FullyConnected
	Conv2D          = nn.Conv2D
	Deconv2D        = nn.Deconv2D
	MaxPool         = nn.MaxPool
	LRN             = nn.LRN
	BatchNorm       = nn.BatchNorm
)

// Phase selects training or inference behavior.
type Phase = nn.Phase

const (
	PhaseTrain = nn.PhaseTrain
	PhaseTest  = nn.PhaseTest
)

// Engine and padding tags re-exported from the dispatch core.
type (
	Engine  = core.Engine
	Padding = core.Padding
)

const (
	EngineInternal    = core.EngineInternal
	EngineVectorized  = core.EngineVectorized
	EngineAccelerated = core.EngineAccelerated

	PaddingValid = core.PaddingValid
	PaddingSame  = core.PaddingSame
)

// ConnectionTable restricts channel wiring in convolution layers.
type ConnectionTable = core.ConnectionTable

// NewConnectionTable builds a channel wiring table from a row-major
// flag matrix.
func NewConnectionTable(inCount, outCount int, connected []bool) (ConnectionTable, error) {
	return core.NewConnectionTable(inCount, outCount, connected)
}

// Layer options.
type ConvOption = nn.ConvOption

var (
	WithPadding         = nn.WithPadding
	WithStride          = nn.WithStride
	WithBias            = nn.WithBias
	WithEngine          = nn.WithEngine
	WithConnectionTable = nn.WithConnectionTable
	WithActivation      = nn.WithActivation
	WithParallelize     = nn.WithParallelize
)

// Layer constructors.
var (
	NewActivationLayer = nn.NewActivationLayer
	NewFullyConnected  = nn.NewFullyConnected
	NewConv2D          = nn.NewConv2D
	NewDeconv2D        = nn.NewDeconv2D
	NewMaxPool         = nn.NewMaxPool
	NewLRN             = nn.NewLRN
	NewBatchNorm       = nn.NewBatchNorm
	NewParameter       = nn.NewParameter
)

// Graph protocol.
var (
	Setup             = nn.Setup
	Connect           = nn.Connect
	Sequence          = nn.Sequence
	SetInputData      = nn.SetInputData
	Forward           = nn.Forward
	Backward          = nn.Backward
	UpdateParameters  = nn.UpdateParameters
	Traverse          = nn.Traverse
	HasSameParameters = nn.HasSameParameters
)

// Optimizer is the update-rule contract consumed by UpdateParameters.
type Optimizer = nn.Optimizer

// AssignDevice propagates a device across the whole reachable graph
// and registers accelerated ops on it.
func AssignDevice(root Layer, dev *device.Device) error {
	return nn.AssignDevice(root, dev)
}

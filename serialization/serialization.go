// Copyright 2026 The Kiln Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package serialization saves and restores layer parameters as a text
// stream. Layers must be constructed and set up before loading; the
// stream only carries parameter values, never architecture.
package serialization

import (
	"io"

	"github.com/kiln-ml/kiln/internal/serialization"
	"github.com/kiln-ml/kiln/nn"
)

// SaveLayer writes one layer's parameters.
func SaveLayer(w io.Writer, l nn.Layer) error {
	return serialization.SaveLayer(w, l)
}

// LoadLayer reads parameters back into an already constructed layer.
func LoadLayer(r io.Reader, l nn.Layer) error {
	return serialization.LoadLayer(r, l)
}

// SaveLayers writes several layers' parameters in order.
func SaveLayers(w io.Writer, layers ...nn.Layer) error {
	return serialization.SaveLayers(w, layers...)
}

// LoadLayers reads parameters back into layers in the saved order.
func LoadLayers(r io.Reader, layers ...nn.Layer) error {
	return serialization.LoadLayers(r, layers...)
}

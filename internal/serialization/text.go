// Package serialization reads and writes layer parameters as a text
// stream. Each layer is written as its type name followed by every
// parameter's role, size, and flat values, so a load into a different
// layer type is rejected by the header check.
package serialization

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/kiln-ml/kiln/internal/nn"
)

// SaveLayer writes one layer's parameter stream.
func SaveLayer(w io.Writer, l nn.Layer) error {
	bw := bufio.NewWriter(w)
	params := l.Parameters()

	if _, err := fmt.Fprintf(bw, "%s %d\n", l.LayerType(), len(params)); err != nil {
		return err
	}
	for _, p := range params {
		if _, err := fmt.Fprintf(bw, "%s %d\n", p.Type(), p.Size()); err != nil {
			return err
		}
		for i, v := range p.Data().Data() {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadLayer reads a parameter stream into an already constructed layer.
// The declared layer type and every parameter's role and size must
// match the layer exactly.
func LoadLayer(r io.Reader, l nn.Layer) error {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var layerType string
	var count int
	if _, err := fmt.Fscan(br, &layerType, &count); err != nil {
		return fmt.Errorf("serialization: reading header: %w", err)
	}
	if layerType != l.LayerType() {
		return fmt.Errorf("serialization: stream holds layer type %q, target is %q",
			layerType, l.LayerType())
	}

	params := l.Parameters()
	if count != len(params) {
		return fmt.Errorf("serialization: stream holds %d parameters, layer %q has %d",
			count, l.LayerType(), len(params))
	}

	for _, p := range params {
		var role string
		var size int
		if _, err := fmt.Fscan(br, &role, &size); err != nil {
			return fmt.Errorf("serialization: reading parameter header: %w", err)
		}
		if role != p.Type().String() {
			return fmt.Errorf("serialization: stream holds a %s parameter, layer expects %s",
				role, p.Type())
		}
		if size != p.Size() {
			return fmt.Errorf("serialization: %s parameter size %d does not match layer's %d",
				role, size, p.Size())
		}

		values := make([]float32, size)
		for i := range values {
			if _, err := fmt.Fscan(br, &values[i]); err != nil {
				return fmt.Errorf("serialization: reading %s value %d: %w", role, i, err)
			}
		}
		if err := p.SetData(values); err != nil {
			return err
		}
	}
	return nil
}

// SaveLayers writes the parameter streams of several layers in order.
func SaveLayers(w io.Writer, layers ...nn.Layer) error {
	for _, l := range layers {
		if err := SaveLayer(w, l); err != nil {
			return err
		}
	}
	return nil
}

// LoadLayers reads parameter streams back into the same layer order
// they were saved in.
func LoadLayers(r io.Reader, layers ...nn.Layer) error {
	br := bufio.NewReader(r)
	for _, l := range layers {
		if err := LoadLayer(br, l); err != nil {
			return err
		}
	}
	return nil
}

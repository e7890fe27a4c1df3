package nn

import (
	"math"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// Phase selects between training and inference behavior for layers
// that differ between the two.
type Phase int

const (
	// PhaseTrain uses statistics of the current batch.
	PhaseTrain Phase = iota
	// PhaseTest uses the accumulated running statistics.
	PhaseTest
)

// BatchNorm normalizes each channel to zero mean and unit variance
// over the batch and spatial positions. Running statistics accumulate
// through the post-update hook and drive inference.
type BatchNorm struct {
	Base
	in       tensor.Shape3D
	momentum float32
	eps      float32
	phase    Phase

	mean     []float32 // running
	variance []float32 // running

	meanCurrent []float32
	varCurrent  []float32
	stddev      []float32
}

// NewBatchNorm builds a normalization layer for an inWidth x inHeight x
// channels input. momentum weighs the running statistics; eps guards
// the variance denominator.
func NewBatchNorm(inWidth, inHeight, channels int, momentum, eps float32) (*BatchNorm, error) {
	if channels <= 0 {
		return nil, &ConfigError{LayerType: "batch-norm", Reason: "channel count must be positive"}
	}

	in := tensor.NewShape3D(inWidth, inHeight, channels)
	l := &BatchNorm{
		Base:        newBase(1, 1, defaultEngine),
		in:          in,
		momentum:    momentum,
		eps:         eps,
		mean:        make([]float32, channels),
		variance:    make([]float32, channels),
		meanCurrent: make([]float32, channels),
		varCurrent:  make([]float32, channels),
		stddev:      make([]float32, channels),
	}
	for i := range l.variance {
		l.variance[i] = 1
	}
	l.inShapes = []tensor.Shape3D{in}
	l.outShapes = []tensor.Shape3D{in}
	return l, nil
}

func (l *BatchNorm) LayerType() string { return "batch-norm" }

func (l *BatchNorm) FanInSize() int  { return 1 }
func (l *BatchNorm) FanOutSize() int { return 1 }

// SetPhase switches between batch statistics and running statistics.
func (l *BatchNorm) SetPhase(phase Phase) { l.phase = phase }

// RunningMean is the per-channel running mean.
func (l *BatchNorm) RunningMean() []float32 { return l.mean }

// RunningVariance is the per-channel running variance.
func (l *BatchNorm) RunningVariance() []float32 { return l.variance }

func (l *BatchNorm) ForwardPropagation(ins, outs []*tensor.Tensor) error {
	in, out := ins[0], outs[0]
	area := l.in.Area()
	samples := in.Rows()
	n := float32(samples * area)

	mean := l.mean
	variance := l.variance
	if l.phase == PhaseTrain {
		for c := 0; c < l.in.Depth; c++ {
			sum := float32(0)
			for s := 0; s < samples; s++ {
				row := in.RowData(s)
				for i := 0; i < area; i++ {
					sum += row[c*area+i]
				}
			}
			l.meanCurrent[c] = sum / n
		}
		for c := 0; c < l.in.Depth; c++ {
			sum := float32(0)
			m := l.meanCurrent[c]
			for s := 0; s < samples; s++ {
				row := in.RowData(s)
				for i := 0; i < area; i++ {
					d := row[c*area+i] - m
					sum += d * d
				}
			}
			l.varCurrent[c] = sum / n
		}
		mean = l.meanCurrent
		variance = l.varCurrent
	}

	for c := 0; c < l.in.Depth; c++ {
		l.stddev[c] = float32(math.Sqrt(float64(variance[c] + l.eps)))
	}

	for s := 0; s < samples; s++ {
		src := in.RowData(s)
		dst := out.RowData(s)
		for c := 0; c < l.in.Depth; c++ {
			m, sd := mean[c], l.stddev[c]
			for i := 0; i < area; i++ {
				dst[c*area+i] = (src[c*area+i] - m) / sd
			}
		}
	}
	return nil
}

func (l *BatchNorm) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	out, dy, dx := outs[0], outGrads[0], inGrads[0]
	area := l.in.Area()
	samples := out.Rows()
	n := float32(samples * area)

	for c := 0; c < l.in.Depth; c++ {
		meanDelta := float32(0)
		meanDotY := float32(0)
		for s := 0; s < samples; s++ {
			y := out.RowData(s)
			g := dy.RowData(s)
			for i := 0; i < area; i++ {
				meanDelta += g[c*area+i]
				meanDotY += g[c*area+i] * y[c*area+i]
			}
		}
		meanDelta /= n
		meanDotY /= n

		sd := l.stddev[c]
		for s := 0; s < samples; s++ {
			y := out.RowData(s)
			g := dy.RowData(s)
			d := dx.RowData(s)
			for i := 0; i < area; i++ {
				d[c*area+i] += (g[c*area+i] - meanDelta - y[c*area+i]*meanDotY) / sd
			}
		}
	}
	return nil
}

// PostUpdate folds the current batch statistics into the running
// statistics.
func (l *BatchNorm) PostUpdate() {
	for c := range l.mean {
		l.mean[c] = l.momentum*l.mean[c] + (1-l.momentum)*l.meanCurrent[c]
		l.variance[c] = l.momentum*l.variance[c] + (1-l.momentum)*l.varCurrent[c]
	}
}

package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// miscountLayer declares two input shapes but carries a single input
// edge.
type miscountLayer struct {
	Base
}

func newMiscountLayer() *miscountLayer {
	l := &miscountLayer{Base: newBase(1, 1, defaultEngine)}
	l.inShapes = []tensor.Shape3D{
		tensor.NewShape3D(2, 2, 1),
		tensor.NewShape3D(2, 2, 1),
	}
	l.outShapes = []tensor.Shape3D{tensor.NewShape3D(2, 2, 1)}
	return l
}

func (l *miscountLayer) LayerType() string { return "miscount" }
func (l *miscountLayer) FanInSize() int    { return 1 }
func (l *miscountLayer) FanOutSize() int   { return 1 }

func (l *miscountLayer) ForwardPropagation(ins, outs []*tensor.Tensor) error { return nil }
func (l *miscountLayer) BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error {
	return nil
}

func TestSetupShapeCountMismatch(t *testing.T) {
	err := Setup(newMiscountLayer(), false)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "miscount", cfgErr.LayerType)
}

func TestSetupInitializesParameters(t *testing.T) {
	fc, err := NewFullyConnected(3, 2)
	require.NoError(t, err)
	require.False(t, fc.Weight().Initialized())

	require.NoError(t, Setup(fc, false))
	assert.True(t, fc.Weight().Initialized())
	assert.True(t, fc.Bias().Initialized())
}

func TestSetupResetWeights(t *testing.T) {
	fc, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	fc.SetWeightInit(Constant{Value: 1})
	require.NoError(t, Setup(fc, false))

	fc.Weight().Data().Data()[0] = 9

	// without reset the mutated value survives
	require.NoError(t, Setup(fc, false))
	assert.Equal(t, float32(9), fc.Weight().Data().Data()[0])

	require.NoError(t, Setup(fc, true))
	assert.Equal(t, float32(1), fc.Weight().Data().Data()[0])
}

func TestConnectShapeMismatch(t *testing.T) {
	a, err := NewFullyConnected(4, 3)
	require.NoError(t, err)
	b, err := NewFullyConnected(5, 2)
	require.NoError(t, err)

	err = Connect(a, b, 0, 0)
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "fully-connected", connErr.HeadType)
	assert.Equal(t, 3, connErr.OutShape.Size())
	assert.Equal(t, 5, connErr.InShape.Size())
}

func TestConnectSharesEdge(t *testing.T) {
	a, err := NewFullyConnected(4, 3)
	require.NoError(t, err)
	b, err := NewFullyConnected(3, 2)
	require.NoError(t, err)

	require.NoError(t, Connect(a, b, 0, 0))
	assert.Same(t, a.OutEdge(0), b.InEdge(0))
	assert.Equal(t, []Layer{b}, a.OutEdge(0).Next())
}

func TestConnectInfersActivationShape(t *testing.T) {
	fc, err := NewFullyConnected(4, 6)
	require.NoError(t, err)
	act := NewActivationLayer(Sigmoid{})

	require.NoError(t, Connect(fc, act, 0, 0))
	require.Len(t, act.InShapes(), 1)
	assert.Equal(t, 6, act.InShapes()[0].Size())
	assert.Equal(t, act.InShapes()[0], act.OutShapes()[0])
}

func TestSetupUnconnectedActivationFails(t *testing.T) {
	act := NewActivationLayer(Tanh{})
	assert.Error(t, Setup(act, false))
}

func TestSequenceForwardBackward(t *testing.T) {
	fc, err := NewFullyConnected(2, 3, WithParallelize(false))
	require.NoError(t, err)
	fc.SetWeightInit(Constant{Value: 0.5})
	act := NewActivationLayer(Identity{})

	require.NoError(t, Sequence(fc, act))
	require.NoError(t, SetInputData(fc, 0, [][]float32{{1, 2}, {3, 4}}))
	require.NoError(t, Forward(fc))
	require.NoError(t, Forward(act))

	out := act.OutEdge(0).Data()
	require.Equal(t, 2, out.Rows())
	// 0.5*(1+2) = 1.5; 0.5*(3+4) = 3.5
	assert.InDeltaSlice(t, []float32{1.5, 1.5, 1.5}, out.RowData(0), 1e-6)
	assert.InDeltaSlice(t, []float32{3.5, 3.5, 3.5}, out.RowData(1), 1e-6)

	// drive a gradient of ones back through both layers
	g := act.OutEdge(0).Grad()
	g.Fill(1)
	require.NoError(t, Backward(act))
	require.NoError(t, Backward(fc))

	// dW for sample 0 is the outer product of delta and input
	dW := fc.Weight().Grad()
	require.Equal(t, 2, dW.Rows())
	assert.InDeltaSlice(t, []float32{1, 2, 1, 2, 1, 2}, dW.RowData(0), 1e-6)
	assert.InDeltaSlice(t, []float32{3, 4, 3, 4, 3, 4}, dW.RowData(1), 1e-6)
}

func TestForwardGrowOnlyBatchResize(t *testing.T) {
	fc, err := NewFullyConnected(2, 2, WithParallelize(false))
	require.NoError(t, err)

	require.NoError(t, SetInputData(fc, 0, [][]float32{{1, 1}, {2, 2}, {3, 3}}))
	require.NoError(t, Forward(fc))
	assert.Equal(t, 3, fc.OutEdge(0).Data().Rows())
	assert.Equal(t, 3, fc.SampleCount())

	require.NoError(t, SetInputData(fc, 0, [][]float32{{1, 1}}))
	require.NoError(t, Forward(fc))
	assert.Equal(t, 1, fc.OutEdge(0).Data().Rows())
	assert.Equal(t, 1, fc.SampleCount())
}

type recordingOptimizer struct {
	updates [][]float32
}

func (o *recordingOptimizer) Update(dW, w []float32) {
	g := make([]float32, len(dW))
	copy(g, dW)
	o.updates = append(o.updates, g)
}

func TestUpdateParametersMergesAndScales(t *testing.T) {
	fc, err := NewFullyConnected(1, 2, WithBias(false), WithParallelize(false))
	require.NoError(t, err)
	fc.SetWeightInit(Constant{Value: 0})
	require.NoError(t, Setup(fc, false))

	fc.Weight().ResizeGrad(2)
	copy(fc.Weight().Grad().RowData(0), []float32{2, 4})
	copy(fc.Weight().Grad().RowData(1), []float32{4, 8})

	opt := &recordingOptimizer{}
	require.NoError(t, UpdateParameters(fc, opt, 2))

	require.Len(t, opt.updates, 1)
	assert.InDeltaSlice(t, []float32{3, 6}, opt.updates[0], 1e-6)

	// gradients cleared afterwards
	for s := 0; s < fc.Weight().Grad().Rows(); s++ {
		for _, v := range fc.Weight().Grad().RowData(s) {
			assert.Zero(t, v)
		}
	}
}

func TestUpdateParametersSkipsFrozen(t *testing.T) {
	fc, err := NewFullyConnected(1, 1, WithBias(false))
	require.NoError(t, err)
	require.NoError(t, Setup(fc, false))
	fc.Weight().SetTrainable(false)
	fc.Weight().Grad().RowData(0)[0] = 5

	opt := &recordingOptimizer{}
	require.NoError(t, UpdateParameters(fc, opt, 1))
	assert.Empty(t, opt.updates)
	assert.Zero(t, fc.Weight().Grad().RowData(0)[0])
}

func TestParamEdgesTypedAndResizeExempt(t *testing.T) {
	fc, err := NewFullyConnected(2, 3)
	require.NoError(t, err)
	require.NoError(t, Setup(fc, true))

	weight := fc.ParamEdge(0)
	bias := fc.ParamEdge(1)
	assert.Equal(t, VectorWeight, weight.Type())
	assert.Equal(t, VectorBias, bias.Type())
	assert.Equal(t, VectorData, fc.OutEdge(0).Type())

	// the edge aliases the parameter's storage
	assert.Same(t, fc.Weight().Data(), weight.Data())
	assert.Same(t, fc.Bias().Grad(), bias.Grad())

	batch := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	require.NoError(t, SetInputData(fc, 0, batch))
	require.NoError(t, Forward(fc))

	// the batch sweep resized data edges but left parameter storage
	// alone; only the per-sample gradient rows grew
	assert.Equal(t, 3, fc.OutEdge(0).Data().Rows())
	assert.Equal(t, 6, weight.Data().Size())
	assert.Equal(t, 3, weight.Grad().Rows())

	// resizing a non-data edge directly is a no-op
	weight.Resize(7)
	assert.Equal(t, 6, weight.Data().Size())
}

func TestTraverseDiamond(t *testing.T) {
	src, err := NewFullyConnected(2, 4, WithParallelize(false))
	require.NoError(t, err)
	left, err := NewFullyConnected(4, 4)
	require.NoError(t, err)
	right, err := NewFullyConnected(4, 4)
	require.NoError(t, err)

	// fan out: both branches consume the same output edge
	require.NoError(t, Connect(src, left, 0, 0))
	require.NoError(t, Connect(src, right, 0, 0))

	var visited []Layer
	Traverse(left, func(l Layer) { visited = append(visited, l) })

	assert.Len(t, visited, 3)
	assert.Contains(t, visited, Layer(src))
	assert.Contains(t, visited, Layer(left))
	assert.Contains(t, visited, Layer(right))
}

func TestHasSameParameters(t *testing.T) {
	a, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	b, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	a.SetWeightInit(Constant{Value: 1})
	b.SetWeightInit(Constant{Value: 1})
	require.NoError(t, Setup(a, false))
	require.NoError(t, Setup(b, false))

	assert.True(t, HasSameParameters(a, b, 1e-6))

	b.Weight().Data().Data()[0] = 2
	assert.False(t, HasSameParameters(a, b, 1e-6))
}

package nn

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/core"
	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/tensor"
)

const defaultEngine = core.EngineInternal

// Layer is the execution unit of the graph. Concrete layers embed Base
// for edge and parameter bookkeeping and implement the propagation
// methods as pure functions of the tensors they are handed.
type Layer interface {
	// LayerType is a stable string identifier used in diagnostics and
	// persistence headers.
	LayerType() string

	InShapes() []tensor.Shape3D
	OutShapes() []tensor.Shape3D
	FanInSize() int
	FanOutSize() int
	Parameters() []*Parameter

	// ForwardPropagation writes outs from ins. Both slices are batch
	// tensors shaped [samples, shape.Size()].
	ForwardPropagation(ins, outs []*tensor.Tensor) error

	// BackPropagation accumulates into inGrads (and the layer's own
	// parameter gradients). It must not modify ins or outs.
	BackPropagation(ins, outs, outGrads, inGrads []*tensor.Tensor) error

	base() *Base
}

// ShapeInferrer is implemented by layers that can adopt the producing
// layer's output shape at connect time. Only activation-style layers do.
type ShapeInferrer interface {
	InferShape(s tensor.Shape3D)
}

// PostUpdater is implemented by layers that need a hook after each
// parameter update, such as batch normalization's running statistics.
type PostUpdater interface {
	PostUpdate()
}

// OutRanger reports the interval output values fall into, used by
// persistence headers and diagnostics.
type OutRanger interface {
	OutValueRange() (lo, hi float32)
}

// sampleSizer is implemented by layers with per-sample working state
// beyond their edges, such as max pooling's winner indices.
type sampleSizer interface {
	resizeSampleState(samples int)
}

// Base carries the state shared by every layer: typed edges, owned
// parameters, the engine tag, and batch bookkeeping. Concrete layers
// embed it by value.
type Base struct {
	inShapes  []tensor.Shape3D
	outShapes []tensor.Shape3D
	inEdges   []*Edge
	outEdges  []*Edge

	params     []*Parameter
	paramEdges []*Edge
	weightInit Initializer
	biasInit   Initializer

	engine      core.Engine
	dev         *device.Device
	parallelize bool
	trainable   bool
	initialized bool
	sampleCount int
}

func newBase(inCount, outCount int, engine core.Engine) Base {
	return Base{
		inEdges:     make([]*Edge, inCount),
		outEdges:    make([]*Edge, outCount),
		weightInit:  NewXavier(),
		biasInit:    Constant{},
		engine:      engine,
		parallelize: true,
		trainable:   true,
		sampleCount: 1,
	}
}

func (b *Base) base() *Base { return b }

// InShapes lists the per-sample input geometries.
func (b *Base) InShapes() []tensor.Shape3D { return b.inShapes }

// OutShapes lists the per-sample output geometries.
func (b *Base) OutShapes() []tensor.Shape3D { return b.outShapes }

// Engine reports the layer's backend tag.
func (b *Base) Engine() core.Engine { return b.engine }

// Device is the accelerator assigned to the layer, nil for CPU engines.
func (b *Base) Device() *device.Device { return b.dev }

// Parameters lists the layer's owned parameters, weights first.
func (b *Base) Parameters() []*Parameter { return b.params }

// Trainable reports whether UpdateParameters touches this layer.
func (b *Base) Trainable() bool { return b.trainable }

// SetTrainable freezes or unfreezes the whole layer.
func (b *Base) SetTrainable(trainable bool) { b.trainable = trainable }

// SetParallelize toggles the worker-pool execution heuristic.
func (b *Base) SetParallelize(parallelize bool) { b.parallelize = parallelize }

// SetWeightInit overrides the weight initializer policy.
func (b *Base) SetWeightInit(init Initializer) { b.weightInit = init }

// SetBiasInit overrides the bias initializer policy.
func (b *Base) SetBiasInit(init Initializer) { b.biasInit = init }

// InEdge returns the i-th input edge, nil when not yet connected.
func (b *Base) InEdge(i int) *Edge { return b.inEdges[i] }

// OutEdge returns the i-th output edge, nil before setup.
func (b *Base) OutEdge(i int) *Edge { return b.outEdges[i] }

// ParamEdge is the i-th parameter viewed as a weight- or bias-typed
// edge, available after setup.
func (b *Base) ParamEdge(i int) *Edge { return b.paramEdges[i] }

// SampleCount is the batch size of the most recent forward pass.
func (b *Base) SampleCount() int { return b.sampleCount }

// Setup validates the layer's declared shapes against its edge counts,
// lazily allocates output edges, and initializes parameters that are
// not yet initialized or when resetWeights is set. It must run before
// the first Forward.
func Setup(l Layer, resetWeights bool) error {
	b := l.base()

	if len(l.InShapes()) != len(b.inEdges) {
		return &ConfigError{
			LayerType: l.LayerType(),
			Reason: fmt.Sprintf("declared %d input shapes but %d input edges",
				len(l.InShapes()), len(b.inEdges)),
		}
	}
	if len(l.OutShapes()) != len(b.outEdges) {
		return &ConfigError{
			LayerType: l.LayerType(),
			Reason: fmt.Sprintf("declared %d output shapes but %d output edges",
				len(l.OutShapes()), len(b.outEdges)),
		}
	}
	for i, s := range l.InShapes() {
		if s.IsZero() {
			return &ConfigError{
				LayerType: l.LayerType(),
				Reason:    fmt.Sprintf("input shape %d is undeclared and was never inferred", i),
			}
		}
	}

	for i, s := range l.OutShapes() {
		if b.outEdges[i] == nil {
			e := newEdge(s, VectorData)
			e.prev = l
			b.outEdges[i] = e
		}
	}

	for _, p := range b.params {
		if !p.Initialized() || resetWeights {
			switch p.Type() {
			case ParamBias:
				p.Initialize(b.biasInit, l.FanInSize(), l.FanOutSize())
			default:
				p.Initialize(b.weightInit, l.FanInSize(), l.FanOutSize())
			}
		}
	}

	if len(b.paramEdges) != len(b.params) {
		b.paramEdges = make([]*Edge, len(b.params))
		for i, p := range b.params {
			b.paramEdges[i] = newParamEdge(p, l)
		}
	}

	b.initialized = true
	return nil
}

// Connect wires head's headIdx-th output edge into tail's tailIdx-th
// input slot. Head is set up first when needed. When tail infers shapes
// and has none declared, it adopts head's output shape; otherwise the
// flattened sizes must match exactly.
func Connect(head, tail Layer, headIdx, tailIdx int) error {
	hb, tb := head.base(), tail.base()

	if !hb.initialized {
		if err := Setup(head, false); err != nil {
			return err
		}
	}
	if headIdx < 0 || headIdx >= len(hb.outEdges) {
		return &ConfigError{
			LayerType: head.LayerType(),
			Reason:    fmt.Sprintf("output edge %d out of range", headIdx),
		}
	}
	if tailIdx < 0 || tailIdx >= len(tb.inEdges) {
		return &ConfigError{
			LayerType: tail.LayerType(),
			Reason:    fmt.Sprintf("input edge %d out of range", tailIdx),
		}
	}

	outShape := head.OutShapes()[headIdx]
	if si, ok := tail.(ShapeInferrer); ok {
		if len(tail.InShapes()) == 0 || tail.InShapes()[tailIdx].IsZero() {
			si.InferShape(outShape)
		}
	}

	inShape := tail.InShapes()[tailIdx]
	if outShape.Size() != inShape.Size() {
		return &ConnectionError{
			HeadType: head.LayerType(),
			TailType: tail.LayerType(),
			OutShape: outShape,
			InShape:  inShape,
		}
	}

	e := hb.outEdges[headIdx]
	e.addNext(tail)
	tb.inEdges[tailIdx] = e
	return nil
}

// Sequence connects the layers one after another through their first
// edges, mirroring a linear network definition.
func Sequence(layers ...Layer) error {
	for i := 0; i+1 < len(layers); i++ {
		if err := Connect(layers[i], layers[i+1], 0, 0); err != nil {
			return err
		}
	}
	return nil
}

// SetInputData copies one sample row per batch entry into the layer's
// idx-th input edge, creating the edge when the layer is a network
// input.
func SetInputData(l Layer, idx int, samples [][]float32) error {
	b := l.base()
	if idx < 0 || idx >= len(b.inEdges) {
		return &ConfigError{
			LayerType: l.LayerType(),
			Reason:    fmt.Sprintf("input edge %d out of range", idx),
		}
	}
	if len(samples) == 0 {
		return &ConfigError{LayerType: l.LayerType(), Reason: "empty batch"}
	}

	shape := l.InShapes()[idx]
	if b.inEdges[idx] == nil {
		b.inEdges[idx] = newEdge(shape, VectorData)
	}
	e := b.inEdges[idx]
	e.data.ResizeRows(len(samples))
	e.grad.ResizeRows(len(samples))

	for i, s := range samples {
		if len(s) != shape.Size() {
			return &ConfigError{
				LayerType: l.LayerType(),
				Reason: fmt.Sprintf("sample %d has %d values, input shape %v needs %d",
					i, len(s), shape, shape.Size()),
			}
		}
		copy(e.data.RowData(i), s)
	}
	return nil
}

// Forward runs one forward pass: it sizes every data edge to the
// incoming sample count (grow-only storage, exact logical size), clears
// the output gradient buffers, and invokes the layer's propagation.
func Forward(l Layer) error {
	b := l.base()
	if !b.initialized {
		if err := Setup(l, false); err != nil {
			return err
		}
	}

	samples := 1
	ins := make([]*tensor.Tensor, len(b.inEdges))
	for i, e := range b.inEdges {
		if e == nil {
			return &ConfigError{
				LayerType: l.LayerType(),
				Reason:    fmt.Sprintf("input edge %d is not connected and has no data", i),
			}
		}
		samples = e.data.Rows()
		ins[i] = e.data
	}

	b.sampleCount = samples
	outs := make([]*tensor.Tensor, len(b.outEdges))
	for i, e := range b.outEdges {
		e.Resize(samples)
		e.ClearGrads()
		outs[i] = e.data
	}
	for _, e := range b.inEdges {
		e.Resize(samples)
	}
	// no-ops for weight and bias edges; the per-sample gradient rows
	// are grown through the parameter instead
	for _, e := range b.paramEdges {
		e.Resize(samples)
	}
	for _, p := range b.params {
		p.ResizeGrad(samples)
	}
	if ss, ok := l.(sampleSizer); ok {
		ss.resizeSampleState(samples)
	}

	return l.ForwardPropagation(ins, outs)
}

// Backward runs one backward pass, accumulating into the input edges'
// gradient tensors and the layer's parameter gradients. The upstream
// layer's Forward already cleared this layer's output gradients before
// consumers accumulated into them.
func Backward(l Layer) error {
	b := l.base()
	if !b.initialized {
		return &ConfigError{LayerType: l.LayerType(), Reason: "backward before setup"}
	}

	ins := make([]*tensor.Tensor, len(b.inEdges))
	inGrads := make([]*tensor.Tensor, len(b.inEdges))
	for i, e := range b.inEdges {
		ins[i] = e.data
		inGrads[i] = e.grad
	}
	outs := make([]*tensor.Tensor, len(b.outEdges))
	outGrads := make([]*tensor.Tensor, len(b.outEdges))
	for i, e := range b.outEdges {
		outs[i] = e.data
		outGrads[i] = e.grad
	}

	return l.BackPropagation(ins, outs, outGrads, inGrads)
}

// Optimizer mutates weights in place from a merged, batch-scaled
// gradient. Implementations live in the optim package.
type Optimizer interface {
	Update(dW, w []float32)
}

// UpdateParameters folds the accumulated per-sample gradients into each
// trainable parameter: merge, scale by 1/batchSize, update in place,
// clear. Layers implementing PostUpdater get their hook afterwards.
func UpdateParameters(l Layer, opt Optimizer, batchSize int) error {
	if batchSize <= 0 {
		return &ConfigError{
			LayerType: l.LayerType(),
			Reason:    fmt.Sprintf("batch size %d must be positive", batchSize),
		}
	}

	b := l.base()
	scale := 1 / float32(batchSize)
	merged := tensor.New(tensor.Shape{1})

	for _, p := range b.params {
		if b.trainable && p.Trainable() {
			p.MergeGrads(merged)
			g := merged.Data()
			for i := range g {
				g[i] *= scale
			}
			opt.Update(g, p.Data().Data())
		}
		p.ClearGrads()
	}

	if pu, ok := l.(PostUpdater); ok {
		pu.PostUpdate()
	}
	return nil
}

// Traverse visits every layer reachable from root over both incoming
// and outgoing edges, breadth first, each at most once. Diamond
// topologies are visited without revisits.
func Traverse(root Layer, visit func(Layer)) {
	seen := map[Layer]bool{root: true}
	queue := []Layer{root}

	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]
		visit(l)

		b := l.base()
		for _, e := range b.inEdges {
			if e == nil || e.prev == nil || seen[e.prev] {
				continue
			}
			seen[e.prev] = true
			queue = append(queue, e.prev)
		}
		for _, e := range b.outEdges {
			if e == nil {
				continue
			}
			for _, n := range e.next {
				if seen[n] {
					continue
				}
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
}

// AssignDevice propagates a device to every reachable layer and
// registers accelerated ops on it. Registration is idempotent per
// compiled program, so revisiting a shared device is harmless.
func AssignDevice(root Layer, dev *device.Device) error {
	var firstErr error
	Traverse(root, func(l Layer) {
		l.base().dev = dev
		if op, ok := l.(device.Op); ok && op.Engine() == core.EngineAccelerated {
			if err := dev.RegisterOp(op); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// HasSameParameters reports whether two layers hold pairwise equal
// parameter values within eps.
func HasSameParameters(a, b Layer, eps float32) bool {
	pa, pb := a.base().params, b.base().params
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !pa[i].HasSameValues(pb[i], eps) {
			return false
		}
	}
	return true
}

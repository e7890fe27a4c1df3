package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/core"
)

type stubOp struct {
	layerType string
	engine    core.Engine
	opKind    core.Op
	source    string
}

func (o stubOp) LayerType() string    { return o.layerType }
func (o stubOp) Engine() core.Engine  { return o.engine }
func (o stubOp) OpKind() core.Op      { return o.opKind }
func (o stubOp) KernelSource() string { return o.source }

type stubProgram struct {
	name     string
	released bool
}

func (p *stubProgram) Name() string { return p.name }
func (p *stubProgram) Release()     { p.released = true }

type stubCompiler struct {
	compiles int
}

func (c *stubCompiler) Compile(name, source string) (Program, error) {
	c.compiles++
	return &stubProgram{name: name}, nil
}

func convOp() stubOp {
	return stubOp{
		layerType: "conv",
		engine:    core.EngineAccelerated,
		opKind:    core.OpConv2D,
		source:    ShaderConv2DForward,
	}
}

func TestRegisterOpIdempotent(t *testing.T) {
	dev := NewQualified(KindGPU, 0, 0)
	compiler := &stubCompiler{}
	dev.Registry().SetCompiler(compiler)

	require.NoError(t, dev.RegisterOp(convOp()))
	assert.Equal(t, 1, dev.Registry().NumPrograms())

	// identical op again: no second compilation
	require.NoError(t, dev.RegisterOp(convOp()))
	assert.Equal(t, 1, dev.Registry().NumPrograms())
	assert.Equal(t, 1, compiler.compiles)
}

func TestRegisterOpDistinctOps(t *testing.T) {
	dev := NewQualified(KindGPU, 0, 0)
	dev.Registry().SetCompiler(&stubCompiler{})

	require.NoError(t, dev.RegisterOp(convOp()))

	fully := stubOp{
		layerType: "fully-connected",
		engine:    core.EngineAccelerated,
		opKind:    core.OpFullyConnected,
		source:    ShaderFullyForward,
	}
	require.NoError(t, dev.RegisterOp(fully))
	assert.Equal(t, 2, dev.Registry().NumPrograms())
}

func TestRegisterOpUnqualifiedDevice(t *testing.T) {
	dev := New(KindGPU)
	err := dev.RegisterOp(convOp())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestRegisterOpNonGPUDevice(t *testing.T) {
	dev := NewQualified(KindCPU, 0, 0)
	err := dev.RegisterOp(convOp())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestRegisterOpWrongEngine(t *testing.T) {
	dev := NewQualified(KindGPU, 0, 0)
	dev.Registry().SetCompiler(&stubCompiler{})

	op := convOp()
	op.engine = core.EngineInternal
	err := dev.RegisterOp(op)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotSupported)
	assert.Equal(t, 0, dev.Registry().NumPrograms())
}

func TestRegisterOpEmptySource(t *testing.T) {
	dev := NewQualified(KindGPU, 0, 0)
	dev.Registry().SetCompiler(&stubCompiler{})

	op := convOp()
	op.source = ""
	err := dev.RegisterOp(op)
	require.Error(t, err)
}

func TestRegistryReset(t *testing.T) {
	dev := NewQualified(KindGPU, 0, 0)
	dev.Registry().SetCompiler(&stubCompiler{})

	require.NoError(t, dev.RegisterOp(convOp()))
	prog, err := dev.Registry().GetOrCompile("conv", ShaderConv2DForward)
	require.NoError(t, err)
	require.Equal(t, 1, dev.Registry().NumPrograms())

	dev.Registry().Reset()
	assert.Equal(t, 0, dev.Registry().NumPrograms())
	assert.True(t, prog.(*stubProgram).released)
}

func TestDeviceDescriptor(t *testing.T) {
	dev := NewQualified(KindGPU, 1, 2)
	assert.Equal(t, KindGPU, dev.Kind())
	assert.Equal(t, 1, dev.PlatformID())
	assert.Equal(t, 2, dev.DeviceID())
	assert.Equal(t, "gpu", KindGPU.String())
	assert.Equal(t, "cpu", KindCPU.String())
	assert.Equal(t, "none", KindNone.String())
}

package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Context wraps the live WebGPU objects backing a qualified GPU device.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// OpenContext initializes WebGPU and acquires a high-performance
// adapter. It returns an error when the native runtime is missing or no
// adapter is present.
func OpenContext() (ctx *Context, err error) {
	// The binding panics when the native library cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	dev, devErr := adapter.RequestDevice(nil)
	if devErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", devErr)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Context{instance: instance, adapter: adapter, device: dev, queue: queue}, nil
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Release frees all WebGPU objects.
func (c *Context) Release() {
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// gpuCompiler compiles WGSL source into compute pipelines on a live
// context.
type gpuCompiler struct {
	ctx *Context
}

// gpuProgram is a compiled WGSL compute pipeline.
type gpuProgram struct {
	name     string
	ctx      *Context
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

func (p *gpuProgram) Name() string { return p.name }

// Release frees the pipeline and shader module.
func (p *gpuProgram) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.shader != nil {
		p.shader.Release()
		p.shader = nil
	}
}

func (c *gpuCompiler) Compile(name, source string) (prog Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			prog = nil
			err = fmt.Errorf("webgpu: compile %q: %v", name, r)
		}
	}()

	shader := c.ctx.device.CreateShaderModuleWGSL(source)
	pipeline := c.ctx.device.CreateComputePipelineSimple(nil, shader, "main")
	return &gpuProgram{name: name, ctx: c.ctx, shader: shader, pipeline: pipeline}, nil
}

const workgroupSize = 256

// Runner is implemented by compiled programs that can be dispatched.
// Programs produced without a live GPU context do not implement it.
type Runner interface {
	Run(inputs [][]float32, out []float32, dims []uint32) error
}

// Run dispatches a compiled program over float32 storage buffers: every
// entry of inputs becomes a read-only storage binding, followed by one
// read_write output binding and a uniform binding carrying dims (packed
// as u32, padded to 16 bytes). The output buffer is read back and
// written into out.
func (p *gpuProgram) Run(inputs [][]float32, out []float32, dims []uint32) error {
	if p.pipeline == nil {
		return fmt.Errorf("webgpu: program %q already released", p.name)
	}
	dev := p.ctx.device

	entries := make([]wgpu.BindGroupEntry, 0, len(inputs)+2)
	binding := uint32(0)
	buffers := make([]*wgpu.Buffer, 0, len(inputs)+2)
	defer func() {
		for _, b := range buffers {
			b.Release()
		}
	}()

	for _, in := range inputs {
		buf := createStorageBuffer(dev, floatBytes(in))
		buffers = append(buffers, buf)
		entries = append(entries, wgpu.BufferBindingEntry(binding, buf, 0, uint64(len(in)*4)))
		binding++
	}

	outSize := uint64(len(out) * 4)
	outBuf := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  outSize,
	})
	buffers = append(buffers, outBuf)
	entries = append(entries, wgpu.BufferBindingEntry(binding, outBuf, 0, outSize))
	binding++

	params := make([]byte, (len(dims)*4+15)&^15)
	for i, d := range dims {
		binary.LittleEndian.PutUint32(params[i*4:], d)
	}
	paramBuf := createUniformBuffer(dev, params)
	buffers = append(buffers, paramBuf)
	entries = append(entries, wgpu.BufferBindingEntry(binding, paramBuf, 0, uint64(len(params))))

	bindGroup := dev.CreateBindGroupSimple(p.pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := dev.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((len(out)+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	p.ctx.queue.Submit(encoder.Finish(nil))

	data, err := p.readBuffer(outBuf, outSize)
	if err != nil {
		return err
	}
	for i := range out {
		out[i] = float32frombytes(data[i*4:])
	}
	return nil
}

func createStorageBuffer(dev *wgpu.Device, data []byte) *wgpu.Buffer {
	buf := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:             uint64(len(data)),
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, uint64(len(data)))), len(data))
	copy(mapped, data)
	buf.Unmap()
	return buf
}

func createUniformBuffer(dev *wgpu.Device, data []byte) *wgpu.Buffer {
	buf := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             uint64(len(data)),
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, uint64(len(data)))), len(data))
	copy(mapped, data)
	buf.Unmap()
	return buf
}

func (p *gpuProgram) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	dev := p.ctx.device
	staging := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	p.ctx.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(dev, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	data := make([]byte, size)
	copy(data, mapped)
	staging.Unmap()
	return data, nil
}

func floatBytes(f []float32) []byte {
	b := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func float32frombytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

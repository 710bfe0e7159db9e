//go:build !nogpu

// Package gpu dispatches the ColorCrunch Lloyd iteration as a compute
// shader, following the usual hal.Device/hal.Queue dispatch lifecycle:
// compile shader, build bind group and pipeline layouts, allocate
// per-frame buffers, encode a single compute pass, submit, and wait on a
// fence.
package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/lloyd.wgsl
var shaderLloyd string

// MaxClusters is the workgroup-local accumulator bound baked into
// lloyd.wgsl's MAX_CLUSTERS constant.
const MaxClusters = 64

const workgroupSize = 64

const fenceTimeout = 5 * time.Second

// Dispatcher owns the compiled pipeline for the Lloyd compute shader and
// the per-frame buffers for one quantization run.
type Dispatcher struct {
	device hal.Device
	queue  hal.Queue

	shaderModule   hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	initialized bool
}

// NewDispatcher wraps a device/queue pair obtained by the caller (either
// a standalone adapter, see Open, or a shared device
// handed in by a host application).
func NewDispatcher(device hal.Device, queue hal.Queue) *Dispatcher {
	return &Dispatcher{device: device, queue: queue}
}

// Init compiles the shader and builds the bind group, pipeline layout,
// and compute pipeline. Safe to call once per Dispatcher.
func (d *Dispatcher) Init() error {
	if d.initialized {
		return nil
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "colorcrunch_lloyd",
		Source: hal.ShaderSource{WGSL: shaderLloyd},
	})
	if err != nil {
		return fmt.Errorf("colorcrunch gpu: create shader module: %w", err)
	}
	d.shaderModule = module

	bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "colorcrunch_lloyd_bgl",
		Entries: lloydBindGroupLayoutEntries(),
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return fmt.Errorf("colorcrunch gpu: create bind group layout: %w", err)
	}
	d.bgLayout = bgLayout

	pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "colorcrunch_lloyd_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(bgLayout)
		d.device.DestroyShaderModule(module)
		return fmt.Errorf("colorcrunch gpu: create pipeline layout: %w", err)
	}
	d.pipelineLayout = pipelineLayout

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "colorcrunch_lloyd",
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pipelineLayout)
		d.device.DestroyBindGroupLayout(bgLayout)
		d.device.DestroyShaderModule(module)
		return fmt.Errorf("colorcrunch gpu: create compute pipeline: %w", err)
	}
	d.pipeline = pipeline

	d.initialized = true
	slogger().Info("colorcrunch gpu: lloyd pipeline initialized")
	return nil
}

// Close releases the compiled pipeline. The Dispatcher must not be used
// afterward.
func (d *Dispatcher) Close() {
	if !d.initialized {
		return
	}
	d.device.DestroyComputePipeline(d.pipeline)
	d.device.DestroyPipelineLayout(d.pipelineLayout)
	d.device.DestroyBindGroupLayout(d.bgLayout)
	d.device.DestroyShaderModule(d.shaderModule)
	d.initialized = false
}

// lloydBuffers holds the live GPU buffers for one quantization run. They
// are sized once (for the working-set pixel count and cluster count) and
// reused across iterations; only counts/sums are zero-filled before each
// dispatch, by the host.
type lloydBuffers struct {
	params      hal.Buffer
	pixels      hal.Buffer
	centers     hal.Buffer
	assignments hal.Buffer
	counts      hal.Buffer
	sums        hal.Buffer

	numPixels   int
	numClusters int
}

func lloydBindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	uniform := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	readOnly := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	readWrite := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}
	return []gputypes.BindGroupLayoutEntry{
		uniform,
		readOnly(1),  // pixels
		readWrite(2), // centers
		readWrite(3), // assignments
		readWrite(4), // counts
		readWrite(5), // sums
	}
}

func lloydBindGroupEntries(bufs *lloydBuffers) []gputypes.BindGroupEntry {
	entry := func(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle()},
		}
	}
	return []gputypes.BindGroupEntry{
		entry(0, bufs.params),
		entry(1, bufs.pixels),
		entry(2, bufs.centers),
		entry(3, bufs.assignments),
		entry(4, bufs.counts),
		entry(5, bufs.sums),
	}
}

// allocate creates and uploads the per-run buffers. pixelChannels holds
// numPixels*3 unsigned 8-bit channel values widened to u32 (the wire
// format the shader's `pixels` binding expects); initialCenters holds
// numClusters*3 float32 values.
func (d *Dispatcher) allocate(pixelChannels []uint32, initialCenters []float32, numClusters int) (*lloydBuffers, error) {
	numPixels := len(pixelChannels) / 3
	bufs := &lloydBuffers{numPixels: numPixels, numClusters: numClusters}

	paramBytes := make([]byte, 8)
	binary.LittleEndian.PutUint32(paramBytes[0:4], uint32(numPixels))
	binary.LittleEndian.PutUint32(paramBytes[4:8], uint32(numClusters))

	pixelBytes := make([]byte, len(pixelChannels)*4)
	for i, v := range pixelChannels {
		binary.LittleEndian.PutUint32(pixelBytes[i*4:i*4+4], v)
	}

	centerBytes := make([]byte, len(initialCenters)*4)
	for i, v := range initialCenters {
		binary.LittleEndian.PutUint32(centerBytes[i*4:i*4+4], math.Float32bits(v))
	}

	var err error
	bufs.params, err = d.createBuffer("colorcrunch_params", uint64(len(paramBytes)),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	d.queue.WriteBuffer(bufs.params, 0, paramBytes)

	bufs.pixels, err = d.createBuffer("colorcrunch_pixels", uint64(len(pixelBytes)),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.destroyBuffers(bufs)
		return nil, err
	}
	d.queue.WriteBuffer(bufs.pixels, 0, pixelBytes)

	bufs.centers, err = d.createBuffer("colorcrunch_centers", uint64(len(centerBytes)),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		d.destroyBuffers(bufs)
		return nil, err
	}
	d.queue.WriteBuffer(bufs.centers, 0, centerBytes)

	bufs.assignments, err = d.createBuffer("colorcrunch_assignments", uint64(numPixels*4),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.destroyBuffers(bufs)
		return nil, err
	}

	bufs.counts, err = d.createBuffer("colorcrunch_counts", uint64(numClusters*4),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		d.destroyBuffers(bufs)
		return nil, err
	}

	bufs.sums, err = d.createBuffer("colorcrunch_sums", uint64(numClusters*3*4),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		d.destroyBuffers(bufs)
		return nil, err
	}

	return bufs, nil
}

func (d *Dispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	const minSize = 4
	if size < minSize {
		size = minSize
	}
	return d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
}

func (d *Dispatcher) destroyBuffers(bufs *lloydBuffers) {
	if bufs == nil {
		return
	}
	destroy := func(b hal.Buffer) {
		if b != nil {
			d.device.DestroyBuffer(b)
		}
	}
	destroy(bufs.params)
	destroy(bufs.pixels)
	destroy(bufs.centers)
	destroy(bufs.assignments)
	destroy(bufs.counts)
	destroy(bufs.sums)
	*bufs = lloydBuffers{}
}

// zeroAccumulators clears the counts/sums buffers before a dispatch.
func (d *Dispatcher) zeroAccumulators(bufs *lloydBuffers) {
	zeroCounts := make([]byte, bufs.numClusters*4)
	d.queue.WriteBuffer(bufs.counts, 0, zeroCounts)
	zeroSums := make([]byte, bufs.numClusters*3*4)
	d.queue.WriteBuffer(bufs.sums, 0, zeroSums)
}

// dispatchOnce runs one Lloyd iteration: zero the global accumulators,
// dispatch ceil(N/W) workgroups, submit, and wait.
func (d *Dispatcher) dispatchOnce(bufs *lloydBuffers) error {
	d.zeroAccumulators(bufs)

	wgCount := uint32((bufs.numPixels + workgroupSize - 1) / workgroupSize)
	if wgCount == 0 {
		wgCount = 1
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "colorcrunch_lloyd"})
	if err != nil {
		return fmt.Errorf("colorcrunch gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("colorcrunch_lloyd"); err != nil {
		return fmt.Errorf("colorcrunch gpu: begin encoding: %w", err)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "colorcrunch_lloyd_bg",
		Layout:  d.bgLayout,
		Entries: lloydBindGroupEntries(bufs),
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("colorcrunch gpu: create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "colorcrunch_lloyd"})
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(wgCount, 1, 1)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("colorcrunch gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("colorcrunch gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("colorcrunch gpu: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("colorcrunch gpu: wait: %w", err)
	}
	if !ok {
		return fmt.Errorf("colorcrunch gpu: timeout after %v", fenceTimeout)
	}
	return nil
}

// readCenters copies bufs.centers back to the host.
func (d *Dispatcher) readCenters(bufs *lloydBuffers) ([]float32, error) {
	raw, err := d.readback(bufs.centers, uint64(bufs.numClusters*3*4))
	if err != nil {
		return nil, err
	}
	out := make([]float32, bufs.numClusters*3)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out, nil
}

// readback copies a GPU storage buffer to a staging buffer with
// MapRead|CopyDst usage and reads it back to host memory.
func (d *Dispatcher) readback(src hal.Buffer, size uint64) ([]byte, error) {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "colorcrunch_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "colorcrunch_readback"})
	if err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("colorcrunch_readback"); err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: end readback encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: create readback fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: submit readback: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: wait for readback: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("colorcrunch gpu: readback timeout after %v", fenceTimeout)
	}

	out := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("colorcrunch gpu: read staging buffer: %w", err)
	}
	return out, nil
}

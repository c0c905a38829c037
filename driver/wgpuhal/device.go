// Package wgpuhal adapts a wgpu HAL device to the driver interface.
//
// The adapter registers itself under the name "wgpu", opening the
// Vulkan backend through the HAL. Tests and embedders that already own
// a device use NewFromHAL or NewFromProvider instead.
//
// Capability notes: the HAL bakes cull mode, winding, and depth state
// into pipelines, so the corresponding dynamic setters are accepted and
// ignored. Operations this adapter does not route yet (samplers,
// texture and sampler bindings, multisample resolve, multiple
// viewports) report driver.ErrNotSupported.
package wgpuhal

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdlist/driver"
)

func init() {
	driver.Register("wgpu", func() (driver.Device, error) {
		return New()
	})
}

// Device adapts hal.Device and hal.Queue to driver.Device.
type Device struct {
	dev   hal.Device
	queue hal.Queue

	// instance is non-nil only when the adapter opened the backend
	// itself and therefore owns the teardown.
	instance hal.Instance

	mu        sync.Mutex
	nextToken driver.SubmissionToken
	inFlight  map[driver.SubmissionToken]*submission
}

// submission pairs a queue submission index with the resources that can
// be released once the queue reports the index completed.
type submission struct {
	index  uint64
	cb     hal.CommandBuffer
	groups []hal.BindGroup
}

// waitPollInterval paces completion polling inside Wait.
const waitPollInterval = 100 * time.Microsecond

var _ driver.Device = (*Device)(nil)

// New opens the Vulkan backend and adapts the first usable adapter.
func New() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("wgpuhal: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("wgpuhal: no adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpuhal: open adapter: %w", err)
	}
	d := NewFromHAL(openDev.Device, openDev.Queue)
	d.instance = instance
	return d, nil
}

// NewFromHAL adapts an already-open HAL device and queue. The caller
// keeps ownership of both.
func NewFromHAL(dev hal.Device, queue hal.Queue) *Device {
	return &Device{
		dev:      dev,
		queue:    queue,
		inFlight: make(map[driver.SubmissionToken]*submission),
	}
}

// NewFromProvider adapts a shared device exposed by a gpucontext
// provider, for embedders that already drive the window surface.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := any(provider).(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpuhal: provider does not expose HAL types")
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("wgpuhal: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpuhal: provider HalQueue is not hal.Queue")
	}
	return NewFromHAL(dev, queue), nil
}

// HAL returns the wrapped device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.dev, d.queue }

// CreateBuffer allocates a HAL buffer. Staging buffers get map access
// so the queue can write and read them directly.
func (d *Device) CreateBuffer(desc *driver.BufferDescriptor) (driver.Buffer, error) {
	usage := desc.Usage
	if desc.Staging {
		usage |= gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite
	}
	padded := (desc.Size + 3) &^ 3
	buf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  padded,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create buffer %q: %w", desc.Label, err)
	}
	return &halBuffer{buf: buf}, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(buf driver.Buffer) {
	if b, ok := buf.(*halBuffer); ok && b.buf != nil {
		d.dev.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// CreateTexture allocates either a HAL texture with a default view, or,
// for staging textures, a linear buffer large enough for every
// subresource in layer-major order.
func (d *Device) CreateTexture(desc *driver.TextureDescriptor) (driver.Texture, error) {
	mips := max1(desc.MipLevels)
	layers := max1(desc.ArrayLayers)
	if desc.Staging {
		return d.createStagingTexture(desc, mips, layers)
	}
	tex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: max1(desc.Size.DepthOrArrayLayers) * layers,
		},
		MipLevelCount: mips,
		SampleCount:   max1(desc.SampleCount),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create texture %q: %w", desc.Label, err)
	}
	view, err := d.dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		d.dev.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpuhal: create texture view %q: %w", desc.Label, err)
	}
	return &halTexture{tex: tex, view: view}, nil
}

// createStagingTexture backs a CPU-visible texture with a linear
// buffer, with subresource placement computed host-side.
func (d *Device) createStagingTexture(desc *driver.TextureDescriptor, mips, layers uint32) (driver.Texture, error) {
	info := driver.Format(desc.Format)
	layouts := make([]driver.SubresourceLayout, mips*layers)
	var offset uint64
	for layer := uint32(0); layer < layers; layer++ {
		for mip := uint32(0); mip < mips; mip++ {
			w := mipExtent(desc.Size.Width, mip)
			h := mipExtent(desc.Size.Height, mip)
			dep := max1(desc.Size.DepthOrArrayLayers)
			rowPitch := ceilDiv(w, info.BlockDim) * info.BytesPerBlock
			depthPitch := rowPitch * ceilDiv(h, info.BlockDim)
			layouts[layer*mips+mip] = driver.SubresourceLayout{
				Offset:     offset,
				RowPitch:   rowPitch,
				DepthPitch: depthPitch,
			}
			offset += uint64(depthPitch) * uint64(dep)
		}
	}
	buf, err := d.CreateBuffer(&driver.BufferDescriptor{
		Label:   desc.Label,
		Size:    offset,
		Usage:   gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		Staging: true,
	})
	if err != nil {
		return nil, err
	}
	return &halTexture{
		backing: buf,
		mips:    mips,
		layers:  layers,
		layouts: layouts,
	}, nil
}

// DestroyTexture releases a texture and its view or backing buffer.
func (d *Device) DestroyTexture(tex driver.Texture) {
	t, ok := tex.(*halTexture)
	if !ok {
		return
	}
	if t.backing != nil {
		d.DestroyBuffer(t.backing)
		t.backing = nil
		return
	}
	if t.view != nil {
		d.dev.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		d.dev.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// CreateSampler is not exposed by this adapter yet.
func (d *Device) CreateSampler(desc *driver.SamplerDescriptor) (driver.Sampler, error) {
	return nil, driver.ErrNotSupported
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(driver.Sampler) {}

// WriteBuffer uploads through the queue.
func (d *Device) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	b := buf.(*halBuffer)
	d.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

// ReadBuffer maps a host-visible buffer and copies out of it. The
// device is drained first so in-flight writes to the buffer land
// before the map.
func (d *Device) ReadBuffer(buf driver.Buffer, offset uint64, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	b := buf.(*halBuffer)
	if err := d.dev.WaitIdle(); err != nil {
		return fmt.Errorf("wgpuhal: read buffer: wait idle: %w", err)
	}
	d.retireCompleted()
	mapping, err := d.dev.MapBuffer(b.buf, offset, uint64(len(out)))
	if err != nil {
		return fmt.Errorf("wgpuhal: map buffer: %w", err)
	}
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), len(out)))
	if err := d.dev.UnmapBuffer(b.buf); err != nil {
		return fmt.Errorf("wgpuhal: unmap buffer: %w", err)
	}
	return nil
}

// BeginCommands opens a HAL command encoder.
func (d *Device) BeginCommands(label string) (driver.CommandEncoder, error) {
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpuhal: begin encoding: %w", err)
	}
	return &halEncoder{dev: d, enc: enc, label: label}, nil
}

// Submit enqueues the command buffer and returns a token for Wait. The
// queue's submission index is kept so completion can be polled.
func (d *Device) Submit(cb driver.CommandBuffer) (driver.SubmissionToken, error) {
	hcb := cb.(*halCommandBuffer)
	index, err := d.queue.Submit([]hal.CommandBuffer{hcb.cb})
	if err != nil {
		return 0, fmt.Errorf("wgpuhal: submit: %w", err)
	}
	d.mu.Lock()
	d.nextToken++
	tok := d.nextToken
	d.inFlight[tok] = &submission{index: index, cb: hcb.cb, groups: hcb.groups}
	d.mu.Unlock()
	return tok, nil
}

// FreeCommandBuffer releases a finished command buffer that was never
// submitted, along with the bind groups recorded into it.
func (d *Device) FreeCommandBuffer(cb driver.CommandBuffer) {
	hcb, ok := cb.(*halCommandBuffer)
	if !ok || hcb.cb == nil {
		return
	}
	d.dev.FreeCommandBuffer(hcb.cb)
	hcb.cb = nil
	for _, bg := range hcb.groups {
		d.dev.DestroyBindGroup(bg)
	}
	hcb.groups = nil
}

// Wait polls the queue until the given submission completes or the
// timeout elapses. A zero timeout polls once. A completed submission
// frees its command buffer and bind groups; waiting again on a token
// that already completed succeeds immediately.
func (d *Device) Wait(token driver.SubmissionToken, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	sub, ok := d.inFlight[token]
	known := token > 0 && token <= d.nextToken
	d.mu.Unlock()
	if !ok {
		if !known {
			return false, fmt.Errorf("wgpuhal: %w: token %d was never submitted", driver.ErrInvalidToken, token)
		}
		return true, nil
	}
	deadline := time.Now().Add(timeout)
	for d.queue.PollCompleted() < sub.index {
		if timeout <= 0 || !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(waitPollInterval)
	}
	d.mu.Lock()
	delete(d.inFlight, token)
	d.mu.Unlock()
	d.release(sub)
	return true, nil
}

// retireCompleted frees resources of every submission the queue
// reports completed.
func (d *Device) retireCompleted() {
	completed := d.queue.PollCompleted()
	var done []*submission
	d.mu.Lock()
	for tok, sub := range d.inFlight {
		if sub.index <= completed {
			done = append(done, sub)
			delete(d.inFlight, tok)
		}
	}
	d.mu.Unlock()
	for _, sub := range done {
		d.release(sub)
	}
}

func (d *Device) release(sub *submission) {
	d.dev.FreeCommandBuffer(sub.cb)
	for _, bg := range sub.groups {
		d.dev.DestroyBindGroup(bg)
	}
}

// Destroy drains the queue, tears down outstanding submissions and,
// when the adapter opened the backend itself, the device and instance.
func (d *Device) Destroy() {
	_ = d.dev.WaitIdle()
	d.mu.Lock()
	for tok, sub := range d.inFlight {
		d.release(sub)
		delete(d.inFlight, tok)
	}
	d.mu.Unlock()
	if d.instance != nil {
		d.dev.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func mipExtent(base, level uint32) uint32 {
	return max1(base >> level)
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

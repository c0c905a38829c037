// Package memdrv implements an in-memory reference driver.
//
// Every resource lives in host memory and copy commands execute eagerly
// at record time, so tests can read results back without a GPU. The
// device keeps an ordered trace of every command it receives, which the
// backend tests assert against.
//
// The driver registers itself under the name "mem":
//
//	dev, err := driver.Open("mem")
//
// Render and compute work is traced but not executed; memdrv has no
// rasterizer. Clears are executed, since load actions are observable
// through readback. Encoders deliberately do not implement
// driver.ComputeCapable so callers can exercise the unsupported path.
package memdrv

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/cmdlist/driver"
)

func init() {
	driver.Register("mem", func() (driver.Device, error) {
		return New(), nil
	})
}

// Device is the in-memory driver device.
type Device struct {
	mu        sync.Mutex
	trace     []string
	nextToken driver.SubmissionToken
	destroyed bool
}

var _ driver.Device = (*Device)(nil)

// New creates an in-memory device.
func New() *Device {
	return &Device{}
}

func (d *Device) tracef(format string, args ...any) {
	d.mu.Lock()
	d.trace = append(d.trace, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

// Trace returns a copy of the commands recorded so far, in order.
func (d *Device) Trace() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.trace))
	copy(out, d.trace)
	return out
}

// ResetTrace clears the recorded trace.
func (d *Device) ResetTrace() {
	d.mu.Lock()
	d.trace = d.trace[:0]
	d.mu.Unlock()
}

// TraceCount returns how many trace entries have the given prefix.
func (d *Device) TraceCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, line := range d.trace {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// CreateBuffer allocates a host-memory buffer. The allocation is padded
// to a 4-byte multiple; Size reports the padded size.
func (d *Device) CreateBuffer(desc *driver.BufferDescriptor) (driver.Buffer, error) {
	padded := (desc.Size + 3) &^ 3
	return &memBuffer{
		label:   desc.Label,
		data:    make([]byte, padded),
		staging: desc.Staging,
	}, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(buf driver.Buffer) {
	if b, ok := buf.(*memBuffer); ok {
		b.data = nil
	}
}

// CreateTexture allocates a host-memory texture with precomputed
// subresource layouts in layer-major order.
func (d *Device) CreateTexture(desc *driver.TextureDescriptor) (driver.Texture, error) {
	t := &memTexture{
		label:       desc.Label,
		size:        desc.Size,
		mipLevels:   max1(desc.MipLevels),
		arrayLayers: max1(desc.ArrayLayers),
		format:      desc.Format,
		staging:     desc.Staging,
	}
	info := driver.Format(desc.Format)

	var offset uint64
	t.layouts = make([]driver.SubresourceLayout, t.mipLevels*t.arrayLayers)
	for layer := uint32(0); layer < t.arrayLayers; layer++ {
		for mip := uint32(0); mip < t.mipLevels; mip++ {
			w := mipExtent(desc.Size.Width, mip)
			h := mipExtent(desc.Size.Height, mip)
			dep := max1(desc.Size.DepthOrArrayLayers)
			rowPitch := ceilDiv(w, info.BlockDim) * info.BytesPerBlock
			depthPitch := rowPitch * ceilDiv(h, info.BlockDim)
			t.layouts[layer*t.mipLevels+mip] = driver.SubresourceLayout{
				Offset:     offset,
				RowPitch:   rowPitch,
				DepthPitch: depthPitch,
			}
			offset += uint64(depthPitch) * uint64(dep)
		}
	}
	t.data = make([]byte, offset)
	if desc.Staging {
		t.backing = &memBuffer{label: desc.Label, data: t.data, staging: true}
	}
	return t, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(tex driver.Texture) {
	if t, ok := tex.(*memTexture); ok {
		t.data = nil
		t.backing = nil
	}
}

// CreateSampler allocates a sampler.
func (d *Device) CreateSampler(desc *driver.SamplerDescriptor) (driver.Sampler, error) {
	return &memSampler{label: desc.Label}, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(driver.Sampler) {}

// WriteBuffer copies data into a buffer at offset.
func (d *Device) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	b := buf.(*memBuffer)
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("memdrv: write of %d bytes at %d exceeds buffer size %d", len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer copies bytes out of a buffer at offset.
func (d *Device) ReadBuffer(buf driver.Buffer, offset uint64, out []byte) error {
	b := buf.(*memBuffer)
	if offset+uint64(len(out)) > uint64(len(b.data)) {
		return fmt.Errorf("memdrv: read of %d bytes at %d exceeds buffer size %d", len(out), offset, len(b.data))
	}
	copy(out, b.data[offset:])
	return nil
}

// BeginCommands starts an eager command encoder.
func (d *Device) BeginCommands(label string) (driver.CommandEncoder, error) {
	d.tracef("BeginCommands label=%q", label)
	return &memEncoder{dev: d}, nil
}

// Submit accepts a finished command buffer. The in-memory device has
// already executed everything, so submission only mints a token.
func (d *Device) Submit(cb driver.CommandBuffer) (driver.SubmissionToken, error) {
	d.mu.Lock()
	d.nextToken++
	tok := d.nextToken
	d.mu.Unlock()
	d.tracef("Submit token=%d", tok)
	return tok, nil
}

// FreeCommandBuffer releases an unsubmitted command buffer. Eager
// execution leaves nothing to reclaim; the call is traced so tests can
// observe the discard path.
func (d *Device) FreeCommandBuffer(cb driver.CommandBuffer) {
	d.tracef("FreeCommandBuffer")
}

// Wait reports completion for a submission token. Host-memory work is
// complete at submit, so Wait always succeeds.
func (d *Device) Wait(token driver.SubmissionToken, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if token > d.nextToken {
		return false, fmt.Errorf("memdrv: %w: token %d was never submitted", driver.ErrInvalidToken, token)
	}
	return true, nil
}

// Destroy releases the device.
func (d *Device) Destroy() {
	d.mu.Lock()
	d.destroyed = true
	d.mu.Unlock()
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

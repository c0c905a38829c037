package immediate

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/driver"
)

// uploadSlot tracks one pooled staging buffer and its capacity.
type uploadSlot struct {
	buf  driver.Buffer
	size uint64
}

type inFlight struct {
	token driver.SubmissionToken
	slots []uploadSlot
}

type layoutKey struct {
	tex   driver.Texture
	mip   uint32
	layer uint32
}

// Device wraps a native driver device with resource creation,
// submission tracking and a pooled upload arena. Submission bookkeeping
// holds the only lock in the system; recording itself is single
// threaded per list.
type Device struct {
	drv driver.Device

	mu        sync.Mutex
	lastToken driver.SubmissionToken
	free      []uploadSlot
	pending   []inFlight
	leased    map[driver.Buffer]uploadSlot
	layouts   map[layoutKey]driver.SubresourceLayout
}

// NewDevice wraps an already-opened driver device.
func NewDevice(drv driver.Device) *Device {
	return &Device{
		drv:     drv,
		leased:  make(map[driver.Buffer]uploadSlot),
		layouts: make(map[layoutKey]driver.SubresourceLayout),
	}
}

// Open opens a registered driver by name and wraps it.
func Open(name string) (*Device, error) {
	drv, err := driver.Open(name)
	if err != nil {
		return nil, err
	}
	return NewDevice(drv), nil
}

// Driver returns the underlying native device.
func (d *Device) Driver() driver.Device { return d.drv }

// NewList creates an immediate command list on this device.
func (d *Device) NewList(label string) *List {
	return NewList(d, label)
}

// CreateBuffer allocates a buffer and wraps it with its metadata.
func (d *Device) CreateBuffer(name string, size uint64, usage gputypes.BufferUsage, stagingMemory bool) (*cmdlist.Buffer, error) {
	h, err := d.drv.CreateBuffer(&driver.BufferDescriptor{
		Label:   name,
		Size:    size,
		Usage:   usage,
		Staging: stagingMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("immediate: create buffer %q: %w", name, err)
	}
	return &cmdlist.Buffer{Handle: h, Size: size, Usage: usage, Staging: stagingMemory, Name: name}, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(buf *cmdlist.Buffer) {
	if buf == nil {
		return
	}
	d.drv.DestroyBuffer(buf.Handle)
	buf.Handle = nil
}

// TextureConfig describes a texture allocation.
type TextureConfig struct {
	Name        string
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	SampleCount uint32
	Format      gputypes.TextureFormat
	Usage       gputypes.TextureUsage
	Staging     bool
}

// CreateTexture allocates a texture and wraps it with its metadata.
func (d *Device) CreateTexture(cfg TextureConfig) (*cmdlist.Texture, error) {
	if cfg.Depth == 0 {
		cfg.Depth = 1
	}
	if cfg.MipLevels == 0 {
		cfg.MipLevels = 1
	}
	if cfg.ArrayLayers == 0 {
		cfg.ArrayLayers = 1
	}
	if cfg.SampleCount == 0 {
		cfg.SampleCount = 1
	}
	h, err := d.drv.CreateTexture(&driver.TextureDescriptor{
		Label:       cfg.Name,
		Size:        gputypes.Extent3D{Width: cfg.Width, Height: cfg.Height, DepthOrArrayLayers: cfg.Depth},
		MipLevels:   cfg.MipLevels,
		ArrayLayers: cfg.ArrayLayers,
		SampleCount: cfg.SampleCount,
		Format:      cfg.Format,
		Usage:       cfg.Usage,
		Staging:     cfg.Staging,
	})
	if err != nil {
		return nil, fmt.Errorf("immediate: create texture %q: %w", cfg.Name, err)
	}
	return &cmdlist.Texture{
		Handle:      h,
		Format:      cfg.Format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Depth:       cfg.Depth,
		MipLevels:   cfg.MipLevels,
		ArrayLayers: cfg.ArrayLayers,
		SampleCount: cfg.SampleCount,
		Usage:       cfg.Usage,
		Staging:     cfg.Staging,
		Name:        cfg.Name,
	}, nil
}

// DestroyTexture releases a texture and forgets its cached layouts.
func (d *Device) DestroyTexture(tex *cmdlist.Texture) {
	if tex == nil {
		return
	}
	d.mu.Lock()
	for k := range d.layouts {
		if k.tex == tex.Handle {
			delete(d.layouts, k)
		}
	}
	d.mu.Unlock()
	d.drv.DestroyTexture(tex.Handle)
	tex.Handle = nil
}

// CreateSampler allocates a sampler.
func (d *Device) CreateSampler(name string) (*cmdlist.Sampler, error) {
	h, err := d.drv.CreateSampler(&driver.SamplerDescriptor{Label: name})
	if err != nil {
		return nil, fmt.Errorf("immediate: create sampler %q: %w", name, err)
	}
	return &cmdlist.Sampler{Handle: h, Name: name}, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(s *cmdlist.Sampler) {
	if s == nil {
		return
	}
	d.drv.DestroySampler(s.Handle)
	s.Handle = nil
}

// ReadBuffer reads bytes out of a staging buffer.
func (d *Device) ReadBuffer(buf *cmdlist.Buffer, offset uint64, out []byte) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	return d.drv.ReadBuffer(buf.Handle, offset, out)
}

// Submit hands a finished list's command buffer to the device queue and
// returns a token that completes when the GPU has consumed it. Upload
// buffers leased by the list stay out of circulation until then.
func (d *Device) Submit(l *List) (driver.SubmissionToken, error) {
	if l.cb == nil {
		return 0, cmdlist.ErrNotEnded
	}
	tok, err := d.drv.Submit(l.cb)
	if err != nil {
		return 0, fmt.Errorf("immediate: submit: %w", err)
	}
	l.cb = nil

	uploads := l.takeUploads()
	d.mu.Lock()
	d.lastToken = tok
	if len(uploads) > 0 {
		fl := inFlight{token: tok}
		for _, buf := range uploads {
			if slot, ok := d.leased[buf]; ok {
				fl.slots = append(fl.slots, slot)
				delete(d.leased, buf)
			}
		}
		d.pending = append(d.pending, fl)
	}
	d.mu.Unlock()
	return tok, nil
}

// Wait blocks until the submission identified by token completes or the
// timeout expires. Completed submissions release their upload buffers
// back to the pool.
func (d *Device) Wait(token driver.SubmissionToken, timeout time.Duration) (bool, error) {
	done, err := d.drv.Wait(token, timeout)
	if err != nil {
		return false, err
	}
	if done {
		d.reclaim(token)
	}
	return done, nil
}

// WaitForIdle waits for every submission made so far.
func (d *Device) WaitForIdle() error {
	d.mu.Lock()
	last := d.lastToken
	d.mu.Unlock()
	if last == 0 {
		return nil
	}
	done, err := d.Wait(last, time.Minute)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("immediate: device did not become idle")
	}
	return nil
}

// Destroy waits for outstanding work, frees pooled upload buffers and
// destroys the native device.
func (d *Device) Destroy() {
	_ = d.WaitForIdle()
	d.mu.Lock()
	for _, slot := range d.free {
		d.drv.DestroyBuffer(slot.buf)
	}
	d.free = nil
	for _, fl := range d.pending {
		for _, slot := range fl.slots {
			d.drv.DestroyBuffer(slot.buf)
		}
	}
	d.pending = nil
	d.mu.Unlock()
	d.drv.Destroy()
}

// reclaim returns upload buffers of submissions at or before token to
// the free pool.
func (d *Device) reclaim(token driver.SubmissionToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.pending[:0]
	for _, fl := range d.pending {
		if fl.token <= token {
			d.free = append(d.free, fl.slots...)
		} else {
			kept = append(kept, fl)
		}
	}
	d.pending = kept
}

// acquireUpload leases a pooled staging buffer with at least size
// bytes. New buffers are allocated when the pool has nothing large
// enough.
func (d *Device) acquireUpload(size uint64) (driver.Buffer, error) {
	d.mu.Lock()
	for i, slot := range d.free {
		if slot.size >= size {
			d.free = append(d.free[:i], d.free[i+1:]...)
			d.leased[slot.buf] = slot
			d.mu.Unlock()
			return slot.buf, nil
		}
	}
	d.mu.Unlock()

	alloc := (size + 3) &^ 3
	buf, err := d.drv.CreateBuffer(&driver.BufferDescriptor{
		Label:   "cmdlist upload",
		Size:    alloc,
		Usage:   gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite,
		Staging: true,
	})
	if err != nil {
		return nil, fmt.Errorf("immediate: upload buffer: %w", err)
	}
	slot := uploadSlot{buf: buf, size: alloc}
	d.mu.Lock()
	d.leased[buf] = slot
	d.mu.Unlock()
	return buf, nil
}

// releaseUploads returns leased buffers directly to the pool, used when
// a list is disposed without being submitted.
func (d *Device) releaseUploads(bufs []driver.Buffer) {
	if len(bufs) == 0 {
		return
	}
	d.mu.Lock()
	for _, buf := range bufs {
		if slot, ok := d.leased[buf]; ok {
			d.free = append(d.free, slot)
			delete(d.leased, buf)
		}
	}
	d.mu.Unlock()
}

// subresourceLayout memoizes driver subresource layout queries, which
// can be expensive on native drivers.
func (d *Device) subresourceLayout(tex *cmdlist.Texture, mip, layer uint32) (driver.SubresourceLayout, error) {
	key := layoutKey{tex: tex.Handle, mip: mip, layer: layer}
	d.mu.Lock()
	if sl, ok := d.layouts[key]; ok {
		d.mu.Unlock()
		return sl, nil
	}
	d.mu.Unlock()

	sl, err := tex.Handle.SubresourceLayout(mip, layer)
	if err != nil {
		return driver.SubresourceLayout{}, err
	}
	d.mu.Lock()
	d.layouts[key] = sl
	d.mu.Unlock()
	return sl, nil
}

func origin3D(x, y, z uint32) gputypes.Origin3D {
	return gputypes.Origin3D{X: x, Y: y, Z: z}
}

func extent3D(w, h, d uint32) gputypes.Extent3D {
	return gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: d}
}

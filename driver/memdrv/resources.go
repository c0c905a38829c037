package memdrv

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist/driver"
)

type memBuffer struct {
	label   string
	data    []byte
	staging bool
}

var _ driver.Buffer = (*memBuffer)(nil)

func (b *memBuffer) NativeHandle() any { return b }

// Data exposes the backing bytes for test assertions.
func (b *memBuffer) Data() []byte { return b.data }

type memTexture struct {
	label       string
	size        gputypes.Extent3D
	mipLevels   uint32
	arrayLayers uint32
	format      gputypes.TextureFormat
	staging     bool
	layouts     []driver.SubresourceLayout
	data        []byte
	backing     *memBuffer
}

var _ driver.Texture = (*memTexture)(nil)

func (t *memTexture) NativeHandle() any { return t }

// StagingBuffer returns the linear buffer backing a staging texture, or
// nil for device textures.
func (t *memTexture) StagingBuffer() driver.Buffer {
	if t.backing == nil {
		return nil
	}
	return t.backing
}

// SubresourceLayout returns the placement of one mip of one layer.
func (t *memTexture) SubresourceLayout(mip, layer uint32) (driver.SubresourceLayout, error) {
	if mip >= t.mipLevels || layer >= t.arrayLayers {
		return driver.SubresourceLayout{}, driver.ErrNotSupported
	}
	return t.layouts[layer*t.mipLevels+mip], nil
}

// subresource returns the byte range of one mip of one layer.
func (t *memTexture) subresource(mip, layer uint32) []byte {
	l := t.layouts[layer*t.mipLevels+mip]
	dep := max1(t.size.DepthOrArrayLayers)
	end := l.Offset + uint64(l.DepthPitch)*uint64(dep)
	return t.data[l.Offset:end]
}

type memSampler struct {
	label string
}

var _ driver.Sampler = (*memSampler)(nil)

func (s *memSampler) NativeHandle() any { return s }

// Pipeline is a trace-only pipeline object for tests. Drivers normally
// compile these; memdrv only needs an identity.
type Pipeline struct {
	Label string
}

var _ driver.Pipeline = (*Pipeline)(nil)

// NativeHandle returns the pipeline itself.
func (p *Pipeline) NativeHandle() any { return p }

// BufferData returns a copy of a buffer's bytes.
func BufferData(buf driver.Buffer) []byte {
	b := buf.(*memBuffer)
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// TextureData returns a copy of one subresource of a texture.
func TextureData(tex driver.Texture, mip, layer uint32) []byte {
	t := tex.(*memTexture)
	src := t.subresource(mip, layer)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

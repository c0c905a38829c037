package memdrv

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist/driver"
)

type memEncoder struct {
	dev *Device
}

var _ driver.CommandEncoder = (*memEncoder)(nil)

// BeginRenderPass opens a traced render pass. Clear load actions execute
// immediately so readback observes them.
func (e *memEncoder) BeginRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	e.dev.tracef("BeginRenderPass label=%q", desc.Label)
	for i, ca := range desc.ColorAttachments {
		e.dev.tracef("ColorTarget %d load=%s", i, loadOpName(ca.LoadOp))
		if ca.LoadOp == gputypes.LoadOpClear {
			clearColorTarget(ca.Target, ca.ClearValue)
		}
	}
	if ds := desc.DepthStencil; ds != nil {
		e.dev.tracef("DepthTarget load=%s depth=%g stencil=%d",
			loadOpName(ds.DepthLoadOp), ds.DepthClearValue, ds.StencilClearValue)
	}
	return &memRenderPass{dev: e.dev}, nil
}

// BeginCopyPass opens a traced copy pass whose copies execute eagerly.
func (e *memEncoder) BeginCopyPass(label string) (driver.CopyPass, error) {
	e.dev.tracef("BeginCopyPass label=%q", label)
	return &memCopyPass{dev: e.dev}, nil
}

// ResolveTexture copies level zero of src into dst. memdrv has no
// multisampling, so resolve degenerates to a copy.
func (e *memEncoder) ResolveTexture(src, dst driver.Texture) error {
	e.dev.tracef("ResolveTexture")
	s := src.(*memTexture)
	t := dst.(*memTexture)
	copy(t.subresource(0, 0), s.subresource(0, 0))
	return nil
}

// Finish closes the encoder.
func (e *memEncoder) Finish() (driver.CommandBuffer, error) {
	e.dev.tracef("Finish")
	return memCommandBuffer{}, nil
}

// Discard drops the encoder. Eagerly executed copies are not undone.
func (e *memEncoder) Discard() {
	e.dev.tracef("Discard")
}

type memCommandBuffer struct{}

var _ driver.CommandBuffer = memCommandBuffer{}

func (memCommandBuffer) NativeHandle() any { return nil }

func loadOpName(op gputypes.LoadOp) string {
	if op == gputypes.LoadOpClear {
		return "Clear"
	}
	return "Load"
}

// clearColorTarget fills level zero, layer zero of the target with the
// clear color. Only the 8-bit formats the format table seeds are
// converted; other formats are zero-filled.
func clearColorTarget(tex driver.Texture, c gputypes.Color) {
	t := tex.(*memTexture)
	sub := t.subresource(0, 0)

	var px [4]byte
	switch t.format {
	case gputypes.TextureFormatRGBA8Unorm:
		px = [4]byte{unormByte(float64(c.R)), unormByte(float64(c.G)), unormByte(float64(c.B)), unormByte(float64(c.A))}
	case gputypes.TextureFormatBGRA8Unorm:
		px = [4]byte{unormByte(float64(c.B)), unormByte(float64(c.G)), unormByte(float64(c.R)), unormByte(float64(c.A))}
	default:
		for i := range sub {
			sub[i] = 0
		}
		return
	}
	for i := 0; i+4 <= len(sub); i += 4 {
		copy(sub[i:], px[:])
	}
}

func unormByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// ============================================================================
// Render pass
// ============================================================================

type memRenderPass struct {
	dev *Device
}

var _ driver.RenderPass = (*memRenderPass)(nil)

func (p *memRenderPass) SetPipeline(pl driver.Pipeline) error {
	label := ""
	if mp, ok := pl.(*Pipeline); ok {
		label = mp.Label
	}
	p.dev.tracef("SetPipeline label=%q", label)
	return nil
}

func (p *memRenderPass) SetCullMode(mode gputypes.CullMode) error {
	p.dev.tracef("SetCullMode %d", mode)
	return nil
}

func (p *memRenderPass) SetFrontFace(face gputypes.FrontFace) error {
	p.dev.tracef("SetFrontFace %d", face)
	return nil
}

func (p *memRenderPass) SetDepthStencilState(state driver.DepthStencilState) error {
	p.dev.tracef("SetDepthStencilState test=%t write=%t", state.TestEnabled, state.WriteEnabled)
	return nil
}

func (p *memRenderPass) SetDepthClip(enabled bool) error {
	p.dev.tracef("SetDepthClip %t", enabled)
	return nil
}

func (p *memRenderPass) SetViewports(vps []driver.Viewport) error {
	p.dev.tracef("SetViewports count=%d", len(vps))
	return nil
}

func (p *memRenderPass) SetScissorRects(rects []driver.ScissorRect) error {
	p.dev.tracef("SetScissorRects count=%d", len(rects))
	return nil
}

func (p *memRenderPass) SetVertexBuffer(slot uint32, buf driver.Buffer, offset uint64) error {
	p.dev.tracef("SetVertexBuffer slot=%d offset=%d", slot, offset)
	return nil
}

func (p *memRenderPass) SetIndexBuffer(buf driver.Buffer, format gputypes.IndexFormat, offset uint64) error {
	p.dev.tracef("SetIndexBuffer offset=%d", offset)
	return nil
}

func (p *memRenderPass) BindBuffer(slot uint32, buf driver.Buffer, offset, size uint64) error {
	p.dev.tracef("BindBuffer slot=%d offset=%d size=%d", slot, offset, size)
	return nil
}

func (p *memRenderPass) BindTexture(slot uint32, tex driver.Texture) error {
	p.dev.tracef("BindTexture slot=%d", slot)
	return nil
}

func (p *memRenderPass) BindSampler(slot uint32, s driver.Sampler) error {
	p.dev.tracef("BindSampler slot=%d", slot)
	return nil
}

func (p *memRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	p.dev.tracef("Draw v=%d i=%d fv=%d fi=%d", vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

func (p *memRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	p.dev.tracef("DrawIndexed i=%d inst=%d fi=%d bv=%d finst=%d", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	return nil
}

func (p *memRenderPass) DrawIndirect(buf driver.Buffer, offset uint64) error {
	p.dev.tracef("DrawIndirect offset=%d", offset)
	return nil
}

func (p *memRenderPass) DrawIndexedIndirect(buf driver.Buffer, offset uint64) error {
	p.dev.tracef("DrawIndexedIndirect offset=%d", offset)
	return nil
}

func (p *memRenderPass) End() error {
	p.dev.tracef("EndRenderPass")
	return nil
}

// ============================================================================
// Copy pass
// ============================================================================

type memCopyPass struct {
	dev *Device
}

var _ driver.CopyPass = (*memCopyPass)(nil)

func (p *memCopyPass) CopyBufferToBuffer(src driver.Buffer, srcOffset uint64, dst driver.Buffer, dstOffset, size uint64) error {
	p.dev.tracef("CopyBufferToBuffer srcOff=%d dstOff=%d size=%d", srcOffset, dstOffset, size)
	s := src.(*memBuffer)
	d := dst.(*memBuffer)
	if srcOffset+size > uint64(len(s.data)) || dstOffset+size > uint64(len(d.data)) {
		return driver.Errorf("CopyBufferToBuffer", -1)
	}
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:])
	return nil
}

func (p *memCopyPass) CopyTextureToTexture(src driver.Texture, srcRegion driver.TextureRegion, dst driver.Texture, dstOrigin gputypes.Origin3D, dstMip, dstLayer uint32) error {
	p.dev.tracef("CopyTextureToTexture mip=%d layer=%d", srcRegion.MipLevel, srcRegion.ArrayLayer)
	s := src.(*memTexture)
	d := dst.(*memTexture)
	sl, err := s.SubresourceLayout(srcRegion.MipLevel, srcRegion.ArrayLayer)
	if err != nil {
		return err
	}
	dl, err := d.SubresourceLayout(dstMip, dstLayer)
	if err != nil {
		return err
	}
	info := driver.Format(s.format)
	rowBytes := ceilDiv(srcRegion.Size.Width, info.BlockDim) * info.BytesPerBlock
	rows := ceilDiv(srcRegion.Size.Height, info.BlockDim)
	for z := uint32(0); z < max1(srcRegion.Size.DepthOrArrayLayers); z++ {
		for row := uint32(0); row < rows; row++ {
			so := sl.Offset + uint64(srcRegion.Origin.Z+z)*uint64(sl.DepthPitch) +
				uint64(srcRegion.Origin.Y/info.BlockDim+row)*uint64(sl.RowPitch) +
				uint64(srcRegion.Origin.X/info.BlockDim)*uint64(info.BytesPerBlock)
			do := dl.Offset + uint64(dstOrigin.Z+z)*uint64(dl.DepthPitch) +
				uint64(dstOrigin.Y/info.BlockDim+row)*uint64(dl.RowPitch) +
				uint64(dstOrigin.X/info.BlockDim)*uint64(info.BytesPerBlock)
			copy(d.data[do:do+uint64(rowBytes)], s.data[so:])
		}
	}
	return nil
}

func (p *memCopyPass) CopyTextureToBuffer(src driver.Texture, srcRegion driver.TextureRegion, dst driver.Buffer, layout driver.BufferImageLayout) error {
	p.dev.tracef("CopyTextureToBuffer mip=%d layer=%d", srcRegion.MipLevel, srcRegion.ArrayLayer)
	s := src.(*memTexture)
	d := dst.(*memBuffer)
	sl, err := s.SubresourceLayout(srcRegion.MipLevel, srcRegion.ArrayLayer)
	if err != nil {
		return err
	}
	info := driver.Format(s.format)
	rowBytes := ceilDiv(srcRegion.Size.Width, info.BlockDim) * info.BytesPerBlock
	rows := ceilDiv(srcRegion.Size.Height, info.BlockDim)
	for z := uint32(0); z < max1(srcRegion.Size.DepthOrArrayLayers); z++ {
		for row := uint32(0); row < rows; row++ {
			so := sl.Offset + uint64(srcRegion.Origin.Z+z)*uint64(sl.DepthPitch) +
				uint64(srcRegion.Origin.Y/info.BlockDim+row)*uint64(sl.RowPitch) +
				uint64(srcRegion.Origin.X/info.BlockDim)*uint64(info.BytesPerBlock)
			do := layout.Offset + uint64(z)*uint64(layout.RowsPerImage)*uint64(layout.BytesPerRow) +
				uint64(row)*uint64(layout.BytesPerRow)
			copy(d.data[do:do+uint64(rowBytes)], s.data[so:])
		}
	}
	return nil
}

func (p *memCopyPass) CopyBufferToTexture(src driver.Buffer, layout driver.BufferImageLayout, dst driver.Texture, dstRegion driver.TextureRegion) error {
	p.dev.tracef("CopyBufferToTexture mip=%d layer=%d", dstRegion.MipLevel, dstRegion.ArrayLayer)
	s := src.(*memBuffer)
	d := dst.(*memTexture)
	dl, err := d.SubresourceLayout(dstRegion.MipLevel, dstRegion.ArrayLayer)
	if err != nil {
		return err
	}
	info := driver.Format(d.format)
	rowBytes := ceilDiv(dstRegion.Size.Width, info.BlockDim) * info.BytesPerBlock
	rows := ceilDiv(dstRegion.Size.Height, info.BlockDim)
	for z := uint32(0); z < max1(dstRegion.Size.DepthOrArrayLayers); z++ {
		for row := uint32(0); row < rows; row++ {
			so := layout.Offset + uint64(z)*uint64(layout.RowsPerImage)*uint64(layout.BytesPerRow) +
				uint64(row)*uint64(layout.BytesPerRow)
			do := dl.Offset + uint64(dstRegion.Origin.Z+z)*uint64(dl.DepthPitch) +
				uint64(dstRegion.Origin.Y/info.BlockDim+row)*uint64(dl.RowPitch) +
				uint64(dstRegion.Origin.X/info.BlockDim)*uint64(info.BytesPerBlock)
			copy(d.data[do:do+uint64(rowBytes)], s.data[so:])
		}
	}
	return nil
}

func (p *memCopyPass) End() error {
	p.dev.tracef("EndCopyPass")
	return nil
}

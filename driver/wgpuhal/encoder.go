package wgpuhal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdlist/driver"
)

// halEncoder is one HAL encoding bracket. Bind groups created while
// recording stay alive until the submission that uses them completes;
// they travel with the finished command buffer.
type halEncoder struct {
	dev    *Device
	enc    hal.CommandEncoder
	label  string
	groups []hal.BindGroup
}

var _ driver.CommandEncoder = (*halEncoder)(nil)

func (e *halEncoder) BeginRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	colors := make([]hal.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, att := range desc.ColorAttachments {
		view, err := attachmentView(att.Target)
		if err != nil {
			return nil, err
		}
		colors[i] = hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     att.LoadOp,
			StoreOp:    att.StoreOp,
			ClearValue: att.ClearValue,
		}
	}
	halDesc := &hal.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if ds := desc.DepthStencil; ds != nil {
		view, err := attachmentView(ds.Target)
		if err != nil {
			return nil, err
		}
		halDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              view,
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   ds.DepthClearValue,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: ds.StencilClearValue,
		}
	}
	rp := e.enc.BeginRenderPass(halDesc)
	return &halRenderPass{enc: e, rp: rp}, nil
}

func attachmentView(target driver.Texture) (hal.TextureView, error) {
	t, ok := target.(*halTexture)
	if !ok || t.view == nil {
		return nil, fmt.Errorf("wgpuhal: attachment target is not a renderable texture: %w", driver.ErrNotSupported)
	}
	return t.view, nil
}

func (e *halEncoder) BeginCopyPass(label string) (driver.CopyPass, error) {
	// Copies are encoder-level in the HAL; the pass is a logical
	// grouping only.
	return &halCopyPass{enc: e}, nil
}

func (e *halEncoder) ResolveTexture(src, dst driver.Texture) error {
	return driver.ErrNotSupported
}

func (e *halEncoder) Finish() (driver.CommandBuffer, error) {
	cb, err := e.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: end encoding: %w", err)
	}
	groups := e.groups
	e.groups = nil
	return &halCommandBuffer{cb: cb, groups: groups}, nil
}

func (e *halEncoder) Discard() {
	e.enc.DiscardEncoding()
	for _, bg := range e.groups {
		e.dev.dev.DestroyBindGroup(bg)
	}
	e.groups = nil
}

// =============================================================================
// Render pass
// =============================================================================

// halRenderPass translates flat-slot binds into one group 0 bind group
// on the bound pipeline's layout, built lazily before the next draw.
type halRenderPass struct {
	enc      *halEncoder
	rp       hal.RenderPassEncoder
	pipeline *halPipeline

	pending []gputypes.BindGroupEntry
	dirty   bool
}

var _ driver.RenderPass = (*halRenderPass)(nil)

func (p *halRenderPass) SetPipeline(pl driver.Pipeline) error {
	hp, ok := pl.(*halPipeline)
	if !ok {
		return fmt.Errorf("wgpuhal: pipeline was not created by WrapPipeline: %w", driver.ErrNotSupported)
	}
	p.pipeline = hp
	p.rp.SetPipeline(hp.pipeline)
	if len(p.pending) > 0 {
		p.dirty = true
	}
	return nil
}

// Fixed-function state is baked into HAL pipelines; the dynamic
// setters are accepted and ignored.
func (p *halRenderPass) SetCullMode(gputypes.CullMode) error                 { return nil }
func (p *halRenderPass) SetFrontFace(gputypes.FrontFace) error               { return nil }
func (p *halRenderPass) SetDepthStencilState(driver.DepthStencilState) error { return nil }
func (p *halRenderPass) SetDepthClip(bool) error                             { return nil }

func (p *halRenderPass) SetViewports(vps []driver.Viewport) error {
	if len(vps) != 1 {
		return driver.ErrNotSupported
	}
	v := vps[0]
	p.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	return nil
}

func (p *halRenderPass) SetScissorRects(rects []driver.ScissorRect) error {
	if len(rects) != 1 {
		return driver.ErrNotSupported
	}
	r := rects[0]
	p.rp.SetScissorRect(r.X, r.Y, r.Width, r.Height)
	return nil
}

func (p *halRenderPass) SetVertexBuffer(slot uint32, buf driver.Buffer, offset uint64) error {
	p.rp.SetVertexBuffer(slot, buf.(*halBuffer).buf, offset)
	return nil
}

func (p *halRenderPass) SetIndexBuffer(buf driver.Buffer, format gputypes.IndexFormat, offset uint64) error {
	p.rp.SetIndexBuffer(buf.(*halBuffer).buf, format, offset)
	return nil
}

func (p *halRenderPass) BindBuffer(slot uint32, buf driver.Buffer, offset, size uint64) error {
	entry := gputypes.BindGroupEntry{
		Binding: slot,
		Resource: gputypes.BufferBinding{
			Buffer: buf.(*halBuffer).buf.NativeHandle(),
			Offset: offset,
			Size:   size,
		},
	}
	for i := range p.pending {
		if p.pending[i].Binding == slot {
			p.pending[i] = entry
			p.dirty = true
			return nil
		}
	}
	p.pending = append(p.pending, entry)
	p.dirty = true
	return nil
}

func (p *halRenderPass) BindTexture(slot uint32, tex driver.Texture) error {
	return driver.ErrNotSupported
}

func (p *halRenderPass) BindSampler(slot uint32, s driver.Sampler) error {
	return driver.ErrNotSupported
}

// flushBindings materializes the accumulated entries as a bind group
// on the bound pipeline's group 0 layout.
func (p *halRenderPass) flushBindings() error {
	if !p.dirty || len(p.pending) == 0 {
		return nil
	}
	if p.pipeline == nil || p.pipeline.layout == nil {
		return fmt.Errorf("wgpuhal: bound pipeline has no bind group layout: %w", driver.ErrNotSupported)
	}
	entries := make([]gputypes.BindGroupEntry, len(p.pending))
	copy(entries, p.pending)
	bg, err := p.enc.dev.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.enc.label,
		Layout:  p.pipeline.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create bind group: %w", err)
	}
	p.enc.groups = append(p.enc.groups, bg)
	p.rp.SetBindGroup(0, bg, nil)
	p.dirty = false
	return nil
}

func (p *halRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

func (p *halRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	return nil
}

func (p *halRenderPass) DrawIndirect(buf driver.Buffer, offset uint64) error {
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.DrawIndirect(buf.(*halBuffer).buf, offset)
	return nil
}

func (p *halRenderPass) DrawIndexedIndirect(buf driver.Buffer, offset uint64) error {
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.DrawIndexedIndirect(buf.(*halBuffer).buf, offset)
	return nil
}

func (p *halRenderPass) End() error {
	p.rp.End()
	return nil
}

// =============================================================================
// Copy pass
// =============================================================================

type halCopyPass struct {
	enc *halEncoder
}

var _ driver.CopyPass = (*halCopyPass)(nil)

func (p *halCopyPass) CopyBufferToBuffer(src driver.Buffer, srcOffset uint64, dst driver.Buffer, dstOffset, size uint64) error {
	p.enc.enc.CopyBufferToBuffer(src.(*halBuffer).buf, dst.(*halBuffer).buf, []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size},
	})
	return nil
}

func (p *halCopyPass) CopyTextureToTexture(src driver.Texture, srcRegion driver.TextureRegion, dst driver.Texture, dstOrigin gputypes.Origin3D, dstMip, dstLayer uint32) error {
	st, ok := src.(*halTexture)
	if !ok || st.tex == nil {
		return driver.ErrNotSupported
	}
	dt, ok := dst.(*halTexture)
	if !ok || dt.tex == nil {
		return driver.ErrNotSupported
	}
	p.enc.enc.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: st.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		},
		{
			Texture: dt.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopyDst,
			},
		},
	})
	p.enc.enc.CopyTextureToTexture(st.tex, dt.tex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{
			Texture:  st.tex,
			MipLevel: srcRegion.MipLevel,
			Origin:   hal.Origin3D{X: srcRegion.Origin.X, Y: srcRegion.Origin.Y, Z: srcRegion.Origin.Z},
		},
		DstBase: hal.ImageCopyTexture{
			Texture:  dt.tex,
			MipLevel: dstMip,
			Origin:   hal.Origin3D{X: dstOrigin.X, Y: dstOrigin.Y, Z: dstOrigin.Z},
		},
		Size: hal.Extent3D{
			Width:              srcRegion.Size.Width,
			Height:             srcRegion.Size.Height,
			DepthOrArrayLayers: srcRegion.Size.DepthOrArrayLayers,
		},
	}})
	return nil
}

func (p *halCopyPass) CopyTextureToBuffer(src driver.Texture, srcRegion driver.TextureRegion, dst driver.Buffer, layout driver.BufferImageLayout) error {
	t, ok := src.(*halTexture)
	if !ok || t.tex == nil {
		return driver.ErrNotSupported
	}
	p.enc.enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	p.enc.enc.CopyTextureToBuffer(t.tex, dst.(*halBuffer).buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       layout.Offset,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: srcRegion.MipLevel,
			Origin:   hal.Origin3D{X: srcRegion.Origin.X, Y: srcRegion.Origin.Y, Z: srcRegion.Origin.Z},
		},
		Size: hal.Extent3D{
			Width:              srcRegion.Size.Width,
			Height:             srcRegion.Size.Height,
			DepthOrArrayLayers: srcRegion.Size.DepthOrArrayLayers,
		},
	}})
	return nil
}

func (p *halCopyPass) CopyBufferToTexture(src driver.Buffer, layout driver.BufferImageLayout, dst driver.Texture, dstRegion driver.TextureRegion) error {
	t, ok := dst.(*halTexture)
	if !ok || t.tex == nil {
		return driver.ErrNotSupported
	}
	p.enc.enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})
	p.enc.enc.CopyBufferToTexture(src.(*halBuffer).buf, t.tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       layout.Offset,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: dstRegion.MipLevel,
			Origin:   hal.Origin3D{X: dstRegion.Origin.X, Y: dstRegion.Origin.Y, Z: dstRegion.Origin.Z},
		},
		Size: hal.Extent3D{
			Width:              dstRegion.Size.Width,
			Height:             dstRegion.Size.Height,
			DepthOrArrayLayers: dstRegion.Size.DepthOrArrayLayers,
		},
	}})
	return nil
}

func (p *halCopyPass) End() error { return nil }

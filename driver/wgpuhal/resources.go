package wgpuhal

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdlist/driver"
)

// halBuffer wraps a HAL buffer.
type halBuffer struct {
	buf hal.Buffer
}

func (b *halBuffer) NativeHandle() any { return b.buf }

// halTexture wraps either a device-local HAL texture with its default
// view, or a host-visible linear buffer standing in for one.
type halTexture struct {
	tex  hal.Texture
	view hal.TextureView

	backing driver.Buffer
	mips    uint32
	layers  uint32
	layouts []driver.SubresourceLayout
}

func (t *halTexture) NativeHandle() any {
	if t.backing != nil {
		return t.backing.NativeHandle()
	}
	return t.tex
}

func (t *halTexture) StagingBuffer() driver.Buffer { return t.backing }

func (t *halTexture) SubresourceLayout(mip, layer uint32) (driver.SubresourceLayout, error) {
	if t.backing == nil {
		return driver.SubresourceLayout{}, driver.ErrNotSupported
	}
	if mip >= t.mips || layer >= t.layers {
		return driver.SubresourceLayout{}, driver.ErrNotSupported
	}
	return t.layouts[layer*t.mips+mip], nil
}

// halPipeline pairs a compiled HAL render pipeline with the bind group
// layout its group 0 was created against. Bindings recorded through
// BindBuffer are gathered into one bind group on that layout.
type halPipeline struct {
	pipeline hal.RenderPipeline
	layout   hal.BindGroupLayout
}

// WrapPipeline adapts a compiled HAL render pipeline for binding
// through this driver. layout is the bind group layout of group 0.
func WrapPipeline(pipeline hal.RenderPipeline, layout hal.BindGroupLayout) driver.Pipeline {
	return &halPipeline{pipeline: pipeline, layout: layout}
}

func (p *halPipeline) NativeHandle() any { return p.pipeline }

// halCommandBuffer wraps a finished HAL command buffer together with
// the bind groups its recording created. The groups are destroyed when
// the submission completes.
type halCommandBuffer struct {
	cb     hal.CommandBuffer
	groups []hal.BindGroup
}

func (c *halCommandBuffer) NativeHandle() any { return c.cb }

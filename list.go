package cmdlist

import (
	"github.com/gogpu/gputypes"
)

// CommandList is the recording surface shared by the immediate and
// deferred backends. All methods must be called between Begin and End
// unless noted otherwise. Implementations are not safe for concurrent
// use; a list belongs to one goroutine at a time.
type CommandList interface {
	// Begin starts recording. A list may be begun again after End.
	Begin() error

	// End finishes recording. Any state recorded but never consumed by a
	// draw (for example a pending clear) is still applied.
	End() error

	// SetPipeline selects the pipeline for subsequent draws or
	// dispatches.
	SetPipeline(p *Pipeline) error

	// SetFramebuffer selects the render targets for subsequent draws.
	// Switching framebuffers flushes any pending clears against the
	// previous one.
	SetFramebuffer(fb *Framebuffer) error

	// SetViewport sets one viewport by index. Viewports are applied
	// lazily before the next draw.
	SetViewport(index uint32, v Viewport) error

	// SetFullViewport sets viewport index to cover the whole current
	// framebuffer.
	SetFullViewport(index uint32) error

	// SetScissorRect sets one scissor rectangle by index.
	SetScissorRect(index uint32, r ScissorRect) error

	// SetFullScissorRect sets scissor index to cover the whole current
	// framebuffer.
	SetFullScissorRect(index uint32) error

	// SetVertexBuffer binds a vertex buffer to an input slot.
	SetVertexBuffer(index uint32, buf *Buffer) error

	// SetIndexBuffer binds the index buffer.
	SetIndexBuffer(buf *Buffer, format gputypes.IndexFormat) error

	// SetGraphicsResourceSet binds a resource set to a layout slot for
	// graphics use. The set is translated and activated at most once per
	// pipeline bind.
	SetGraphicsResourceSet(slot uint32, set *ResourceSet) error

	// SetComputeResourceSet binds a resource set for compute use.
	SetComputeResourceSet(slot uint32, set *ResourceSet) error

	// ClearColorTarget records a clear of one color target of the
	// current framebuffer. The clear is folded into the load action of
	// the next render pass when possible.
	ClearColorTarget(index uint32, color gputypes.Color) error

	// ClearDepthStencil records a clear of the depth-stencil target.
	ClearDepthStencil(depth float32, stencil uint8) error

	// Draw draws non-indexed primitives.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error

	// DrawIndexed draws indexed primitives.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error

	// DrawIndirect draws drawCount batches whose arguments are read from
	// buf at offset with the given stride.
	DrawIndirect(buf *Buffer, offset uint64, drawCount, stride uint32) error

	// DrawIndexedIndirect is the indexed form of DrawIndirect.
	DrawIndexedIndirect(buf *Buffer, offset uint64, drawCount, stride uint32) error

	// Dispatch launches a compute grid with the bound compute pipeline.
	Dispatch(groupsX, groupsY, groupsZ uint32) error

	// UpdateBuffer schedules a write of data into buf at offset. Offset
	// must be 4-byte aligned; len(data) must be a multiple of 4 unless
	// the write covers the whole buffer.
	UpdateBuffer(buf *Buffer, offset uint64, data []byte) error

	// UpdateTexture schedules a write of tightly packed texel data into
	// a region of one mip level of one array layer.
	UpdateTexture(tex *Texture, data []byte, x, y, z, width, height, depth, mipLevel, arrayLayer uint32) error

	// UpdateTextureCube is UpdateTexture addressing one face of a cube
	// texture.
	UpdateTextureCube(tex *Texture, data []byte, face CubeFace, x, y, width, height, mipLevel, arrayLayer uint32) error

	// CopyBuffer copies size bytes between buffers. Offsets must be
	// 4-byte aligned.
	CopyBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) error

	// CopyTexture copies a region between textures, possibly crossing
	// the device/staging boundary in either direction.
	CopyTexture(src *Texture, srcX, srcY, srcZ, srcMip, srcLayer uint32,
		dst *Texture, dstX, dstY, dstZ, dstMip, dstLayer uint32,
		width, height, depth, layerCount uint32) error

	// ResolveTexture resolves a multisampled source into a
	// single-sampled destination.
	ResolveTexture(src, dst *Texture) error

	// Dispose releases resources held by the list. The list must not be
	// used afterwards.
	Dispose()
}

// CubeFace identifies one face of a cube texture in layer order.
type CubeFace uint32

const (
	CubeFacePositiveX CubeFace = iota
	CubeFaceNegativeX
	CubeFacePositiveY
	CubeFaceNegativeY
	CubeFacePositiveZ
	CubeFaceNegativeZ
)

// cubeFaceNames maps CubeFace values to their string representation.
var cubeFaceNames = [...]string{
	CubeFacePositiveX: "+X",
	CubeFaceNegativeX: "-X",
	CubeFacePositiveY: "+Y",
	CubeFaceNegativeY: "-Y",
	CubeFacePositiveZ: "+Z",
	CubeFaceNegativeZ: "-Z",
}

// String returns the string representation of a CubeFace.
func (f CubeFace) String() string {
	if int(f) < len(cubeFaceNames) {
		return cubeFaceNames[f]
	}
	return "Unknown"
}

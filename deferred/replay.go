package deferred

import (
	"fmt"

	"github.com/gogpu/cmdlist"
)

// Replay executes the recorded entries against target, in order. It
// must be called from the goroutine that owns the target list.
//
// A failing entry does not stop the walk: the remaining entries still
// execute so the target's bracket closes and the list comes back in a
// resettable state. The first error is returned, wrapped with the
// entry's position. The list itself stays intact and may be replayed
// again or Reset.
func (l *List) Replay(target cmdlist.CommandList) error {
	var first error
	for i, e := range l.entries {
		if err := l.replayEntry(target, e); err != nil && first == nil {
			first = fmt.Errorf("deferred: replay entry %d (%s): %w", i, e.Type(), err)
		}
	}
	return first
}

func (l *List) replayEntry(target cmdlist.CommandList, e Entry) error {
	switch e := e.(type) {
	case beginEntry:
		return target.Begin()
	case endEntry:
		return target.End()
	case setPipelineEntry:
		return target.SetPipeline(e.Pipeline)
	case setFramebufferEntry:
		return target.SetFramebuffer(e.Framebuffer)
	case setViewportEntry:
		return target.SetViewport(e.Index, e.Viewport)
	case setFullViewportEntry:
		return target.SetFullViewport(e.Index)
	case setScissorRectEntry:
		return target.SetScissorRect(e.Index, e.Rect)
	case setFullScissorRectEntry:
		return target.SetFullScissorRect(e.Index)
	case setVertexBufferEntry:
		return target.SetVertexBuffer(e.Index, e.Buffer)
	case setIndexBufferEntry:
		return target.SetIndexBuffer(e.Buffer, e.Format)
	case setGraphicsResourceSetEntry:
		return target.SetGraphicsResourceSet(e.Slot, e.Set)
	case setComputeResourceSetEntry:
		return target.SetComputeResourceSet(e.Slot, e.Set)
	case clearColorTargetEntry:
		return target.ClearColorTarget(e.Index, e.Color)
	case clearDepthStencilEntry:
		return target.ClearDepthStencil(e.Depth, e.Stencil)
	case drawEntry:
		return target.Draw(e.VertexCount, e.InstanceCount, e.FirstVertex, e.FirstInstance)
	case drawIndexedEntry:
		return target.DrawIndexed(e.IndexCount, e.InstanceCount, e.FirstIndex, e.BaseVertex, e.FirstInstance)
	case drawIndirectEntry:
		return target.DrawIndirect(e.Buffer, e.Offset, e.DrawCount, e.Stride)
	case drawIndexedIndirectEntry:
		return target.DrawIndexedIndirect(e.Buffer, e.Offset, e.DrawCount, e.Stride)
	case dispatchEntry:
		return target.Dispatch(e.GroupsX, e.GroupsY, e.GroupsZ)
	case updateBufferEntry:
		return target.UpdateBuffer(e.Buffer, e.Offset, l.pool.Bytes(e.Data))
	case updateTextureEntry:
		return target.UpdateTexture(e.Texture, l.pool.Bytes(e.Data),
			e.X, e.Y, e.Z, e.Width, e.Height, e.Depth, e.Mip, e.Layer)
	case updateTextureCubeEntry:
		return target.UpdateTextureCube(e.Texture, l.pool.Bytes(e.Data), e.Face,
			e.X, e.Y, e.Width, e.Height, e.Mip, e.Layer)
	case copyBufferEntry:
		return target.CopyBuffer(e.Src, e.SrcOffset, e.Dst, e.DstOffset, e.Size)
	case copyTextureEntry:
		return target.CopyTexture(e.Src, e.SrcX, e.SrcY, e.SrcZ, e.SrcMip, e.SrcLayer,
			e.Dst, e.DstX, e.DstY, e.DstZ, e.DstMip, e.DstLayer,
			e.Width, e.Height, e.Depth, e.LayerCount)
	case resolveTextureEntry:
		return target.ResolveTexture(e.Src, e.Dst)
	default:
		panic(fmt.Sprintf("deferred: unhandled entry type %s", e.Type()))
	}
}

package deferred

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/staging"
)

// List records commands into an entry log for later replay. A List
// validates eagerly at record time, so replay only sees well-formed
// sequences. The zero List is not usable; call NewList.
//
// A List may be replayed multiple times and re-recorded after Reset.
// Entry and staging capacity is retained across Reset so steady-state
// recording does not allocate.
type List struct {
	entries  []Entry
	pool     *staging.Pool
	begun    bool
	ended    bool
	disposed bool
}

var _ cmdlist.CommandList = (*List)(nil)

// NewList creates an empty deferred list with its own staging arena.
func NewList() *List {
	return &List{pool: staging.NewPool()}
}

// Entries returns the recorded entries. The slice is owned by the list
// and valid until the next Reset.
func (l *List) Entries() []Entry { return l.entries }

// Len returns the number of recorded entries.
func (l *List) Len() int { return len(l.entries) }

// StagingPool returns the list's staging arena, exposed for memory
// accounting.
func (l *List) StagingPool() *staging.Pool { return l.pool }

// Reset discards recorded entries and staged data, keeping capacity for
// re-recording. Any Blocks handed out for the previous recording become
// invalid.
func (l *List) Reset() {
	l.entries = l.entries[:0]
	l.begun = false
	l.ended = false
	closed := l.pool.Reset()
	l.pool.Retire(closed)
}

// Dispose releases the list. The list must not be used afterwards.
func (l *List) Dispose() {
	l.Reset()
	l.disposed = true
}

func (l *List) record(e Entry) error {
	if l.disposed {
		return cmdlist.ErrNilResource
	}
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	l.entries = append(l.entries, e)
	return nil
}

// Begin starts recording. A list that was ended must be Reset before it
// can be begun again.
func (l *List) Begin() error {
	if l.begun && !l.ended {
		return cmdlist.ErrAlreadyBegun
	}
	if l.ended {
		l.Reset()
	}
	l.begun = true
	l.entries = append(l.entries, beginEntry{})
	return nil
}

// End finishes recording.
func (l *List) End() error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.ended {
		return cmdlist.ErrNotBegun
	}
	l.ended = true
	l.entries = append(l.entries, endEntry{})
	return nil
}

func (l *List) SetPipeline(p *cmdlist.Pipeline) error {
	if p == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setPipelineEntry{Pipeline: p})
}

func (l *List) SetFramebuffer(fb *cmdlist.Framebuffer) error {
	if fb == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setFramebufferEntry{Framebuffer: fb})
}

func (l *List) SetViewport(index uint32, v cmdlist.Viewport) error {
	return l.record(setViewportEntry{Index: index, Viewport: v})
}

func (l *List) SetFullViewport(index uint32) error {
	return l.record(setFullViewportEntry{Index: index})
}

func (l *List) SetScissorRect(index uint32, r cmdlist.ScissorRect) error {
	return l.record(setScissorRectEntry{Index: index, Rect: r})
}

func (l *List) SetFullScissorRect(index uint32) error {
	return l.record(setFullScissorRectEntry{Index: index})
}

func (l *List) SetVertexBuffer(index uint32, buf *cmdlist.Buffer) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setVertexBufferEntry{Index: index, Buffer: buf})
}

func (l *List) SetIndexBuffer(buf *cmdlist.Buffer, format gputypes.IndexFormat) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setIndexBufferEntry{Buffer: buf, Format: format})
}

func (l *List) SetGraphicsResourceSet(slot uint32, set *cmdlist.ResourceSet) error {
	if set == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setGraphicsResourceSetEntry{Slot: slot, Set: set})
}

func (l *List) SetComputeResourceSet(slot uint32, set *cmdlist.ResourceSet) error {
	if set == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(setComputeResourceSetEntry{Slot: slot, Set: set})
}

func (l *List) ClearColorTarget(index uint32, color gputypes.Color) error {
	return l.record(clearColorTargetEntry{Index: index, Color: color})
}

func (l *List) ClearDepthStencil(depth float32, stencil uint8) error {
	return l.record(clearDepthStencilEntry{Depth: depth, Stencil: stencil})
}

func (l *List) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	return l.record(drawEntry{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

func (l *List) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	return l.record(drawIndexedEntry{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

func (l *List) DrawIndirect(buf *cmdlist.Buffer, offset uint64, drawCount, stride uint32) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(drawIndirectEntry{Buffer: buf, Offset: offset, DrawCount: drawCount, Stride: stride})
}

func (l *List) DrawIndexedIndirect(buf *cmdlist.Buffer, offset uint64, drawCount, stride uint32) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(drawIndexedIndirectEntry{Buffer: buf, Offset: offset, DrawCount: drawCount, Stride: stride})
}

func (l *List) Dispatch(groupsX, groupsY, groupsZ uint32) error {
	return l.record(dispatchEntry{GroupsX: groupsX, GroupsY: groupsY, GroupsZ: groupsZ})
}

// UpdateBuffer copies data into the staging arena and records the
// write. The caller's slice may be reused immediately.
func (l *List) UpdateBuffer(buf *cmdlist.Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	if err := cmdlist.ValidateBufferRegion(offset, uint64(len(data)), buf.Size); err != nil {
		return fmt.Errorf("deferred: UpdateBuffer: %w", err)
	}
	block := l.pool.Stage(data)
	return l.record(updateBufferEntry{Buffer: buf, Offset: offset, Data: block})
}

func (l *List) UpdateTexture(tex *cmdlist.Texture, data []byte, x, y, z, width, height, depth, mipLevel, arrayLayer uint32) error {
	if tex == nil {
		return cmdlist.ErrNilResource
	}
	block := l.pool.Stage(data)
	return l.record(updateTextureEntry{
		Texture: tex, Data: block,
		X: x, Y: y, Z: z,
		Width: width, Height: height, Depth: depth,
		Mip: mipLevel, Layer: arrayLayer,
	})
}

func (l *List) UpdateTextureCube(tex *cmdlist.Texture, data []byte, face cmdlist.CubeFace, x, y, width, height, mipLevel, arrayLayer uint32) error {
	if tex == nil {
		return cmdlist.ErrNilResource
	}
	block := l.pool.Stage(data)
	return l.record(updateTextureCubeEntry{
		Texture: tex, Data: block, Face: face,
		X: x, Y: y,
		Width: width, Height: height,
		Mip: mipLevel, Layer: arrayLayer,
	})
}

// CopyBuffer validates at record time so a misaligned copy fails where
// it was issued rather than deep inside a later Replay.
func (l *List) CopyBuffer(src *cmdlist.Buffer, srcOffset uint64, dst *cmdlist.Buffer, dstOffset, size uint64) error {
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	if srcOffset%4 != 0 {
		return fmt.Errorf("deferred: CopyBuffer: %w", cmdlist.ErrOffsetNotAligned)
	}
	if err := cmdlist.ValidateBufferRegion(dstOffset, size, dst.Size); err != nil {
		return fmt.Errorf("deferred: CopyBuffer: %w", err)
	}
	if srcOffset+size > src.Size {
		return fmt.Errorf("deferred: CopyBuffer: %w", cmdlist.ErrRangeOutOfBounds)
	}
	return l.record(copyBufferEntry{Src: src, SrcOffset: srcOffset, Dst: dst, DstOffset: dstOffset, Size: size})
}

func (l *List) CopyTexture(src *cmdlist.Texture, srcX, srcY, srcZ, srcMip, srcLayer uint32,
	dst *cmdlist.Texture, dstX, dstY, dstZ, dstMip, dstLayer uint32,
	width, height, depth, layerCount uint32) error {
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(copyTextureEntry{
		Src: src, SrcX: srcX, SrcY: srcY, SrcZ: srcZ, SrcMip: srcMip, SrcLayer: srcLayer,
		Dst: dst, DstX: dstX, DstY: dstY, DstZ: dstZ, DstMip: dstMip, DstLayer: dstLayer,
		Width: width, Height: height, Depth: depth, LayerCount: layerCount,
	})
}

func (l *List) ResolveTexture(src, dst *cmdlist.Texture) error {
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	return l.record(resolveTextureEntry{Src: src, Dst: dst})
}

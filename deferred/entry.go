// Package deferred implements a command list that records operations
// into a compact entry log instead of executing them. The log can be
// replayed any number of times onto any other command list, typically
// an immediate one, from the goroutine that owns the target.
//
// Transient payloads such as UpdateBuffer data are copied into a
// staging arena at record time, so callers may reuse their slices as
// soon as the recording call returns.
package deferred

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/staging"
)

// EntryType identifies the kind of a recorded entry.
type EntryType uint8

const (
	EntryBegin EntryType = iota
	EntryEnd
	EntrySetPipeline
	EntrySetFramebuffer
	EntrySetViewport
	EntrySetFullViewport
	EntrySetScissorRect
	EntrySetFullScissorRect
	EntrySetVertexBuffer
	EntrySetIndexBuffer
	EntrySetGraphicsResourceSet
	EntrySetComputeResourceSet
	EntryClearColorTarget
	EntryClearDepthStencil
	EntryDraw
	EntryDrawIndexed
	EntryDrawIndirect
	EntryDrawIndexedIndirect
	EntryDispatch
	EntryUpdateBuffer
	EntryUpdateTexture
	EntryUpdateTextureCube
	EntryCopyBuffer
	EntryCopyTexture
	EntryResolveTexture
)

// entryTypeNames maps EntryType values to their string representation.
var entryTypeNames = [...]string{
	EntryBegin:                  "Begin",
	EntryEnd:                    "End",
	EntrySetPipeline:            "SetPipeline",
	EntrySetFramebuffer:         "SetFramebuffer",
	EntrySetViewport:            "SetViewport",
	EntrySetFullViewport:        "SetFullViewport",
	EntrySetScissorRect:         "SetScissorRect",
	EntrySetFullScissorRect:     "SetFullScissorRect",
	EntrySetVertexBuffer:        "SetVertexBuffer",
	EntrySetIndexBuffer:         "SetIndexBuffer",
	EntrySetGraphicsResourceSet: "SetGraphicsResourceSet",
	EntrySetComputeResourceSet:  "SetComputeResourceSet",
	EntryClearColorTarget:       "ClearColorTarget",
	EntryClearDepthStencil:      "ClearDepthStencil",
	EntryDraw:                   "Draw",
	EntryDrawIndexed:            "DrawIndexed",
	EntryDrawIndirect:           "DrawIndirect",
	EntryDrawIndexedIndirect:    "DrawIndexedIndirect",
	EntryDispatch:               "Dispatch",
	EntryUpdateBuffer:           "UpdateBuffer",
	EntryUpdateTexture:          "UpdateTexture",
	EntryUpdateTextureCube:      "UpdateTextureCube",
	EntryCopyBuffer:             "CopyBuffer",
	EntryCopyTexture:            "CopyTexture",
	EntryResolveTexture:         "ResolveTexture",
}

// String returns the string representation of an EntryType.
func (t EntryType) String() string {
	if int(t) < len(entryTypeNames) {
		return entryTypeNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Entry is the sealed interface implemented by every recorded entry
// kind. Replay switches exhaustively over the concrete types; an entry
// type it does not know is an internal-consistency failure.
type Entry interface {
	Type() EntryType
}

type beginEntry struct{}

func (beginEntry) Type() EntryType { return EntryBegin }

type endEntry struct{}

func (endEntry) Type() EntryType { return EntryEnd }

type setPipelineEntry struct {
	Pipeline *cmdlist.Pipeline
}

func (setPipelineEntry) Type() EntryType { return EntrySetPipeline }

type setFramebufferEntry struct {
	Framebuffer *cmdlist.Framebuffer
}

func (setFramebufferEntry) Type() EntryType { return EntrySetFramebuffer }

type setViewportEntry struct {
	Index    uint32
	Viewport cmdlist.Viewport
}

func (setViewportEntry) Type() EntryType { return EntrySetViewport }

type setFullViewportEntry struct {
	Index uint32
}

func (setFullViewportEntry) Type() EntryType { return EntrySetFullViewport }

type setScissorRectEntry struct {
	Index uint32
	Rect  cmdlist.ScissorRect
}

func (setScissorRectEntry) Type() EntryType { return EntrySetScissorRect }

type setFullScissorRectEntry struct {
	Index uint32
}

func (setFullScissorRectEntry) Type() EntryType { return EntrySetFullScissorRect }

type setVertexBufferEntry struct {
	Index  uint32
	Buffer *cmdlist.Buffer
}

func (setVertexBufferEntry) Type() EntryType { return EntrySetVertexBuffer }

type setIndexBufferEntry struct {
	Buffer *cmdlist.Buffer
	Format gputypes.IndexFormat
}

func (setIndexBufferEntry) Type() EntryType { return EntrySetIndexBuffer }

type setGraphicsResourceSetEntry struct {
	Slot uint32
	Set  *cmdlist.ResourceSet
}

func (setGraphicsResourceSetEntry) Type() EntryType { return EntrySetGraphicsResourceSet }

type setComputeResourceSetEntry struct {
	Slot uint32
	Set  *cmdlist.ResourceSet
}

func (setComputeResourceSetEntry) Type() EntryType { return EntrySetComputeResourceSet }

type clearColorTargetEntry struct {
	Index uint32
	Color gputypes.Color
}

func (clearColorTargetEntry) Type() EntryType { return EntryClearColorTarget }

type clearDepthStencilEntry struct {
	Depth   float32
	Stencil uint8
}

func (clearDepthStencilEntry) Type() EntryType { return EntryClearDepthStencil }

type drawEntry struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

func (drawEntry) Type() EntryType { return EntryDraw }

type drawIndexedEntry struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

func (drawIndexedEntry) Type() EntryType { return EntryDrawIndexed }

type drawIndirectEntry struct {
	Buffer    *cmdlist.Buffer
	Offset    uint64
	DrawCount uint32
	Stride    uint32
}

func (drawIndirectEntry) Type() EntryType { return EntryDrawIndirect }

type drawIndexedIndirectEntry struct {
	Buffer    *cmdlist.Buffer
	Offset    uint64
	DrawCount uint32
	Stride    uint32
}

func (drawIndexedIndirectEntry) Type() EntryType { return EntryDrawIndexedIndirect }

type dispatchEntry struct {
	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}

func (dispatchEntry) Type() EntryType { return EntryDispatch }

type updateBufferEntry struct {
	Buffer *cmdlist.Buffer
	Offset uint64
	Data   staging.Block
}

func (updateBufferEntry) Type() EntryType { return EntryUpdateBuffer }

type updateTextureEntry struct {
	Texture *cmdlist.Texture
	Data    staging.Block
	X, Y, Z uint32
	Width   uint32
	Height  uint32
	Depth   uint32
	Mip     uint32
	Layer   uint32
}

func (updateTextureEntry) Type() EntryType { return EntryUpdateTexture }

type updateTextureCubeEntry struct {
	Texture *cmdlist.Texture
	Data    staging.Block
	Face    cmdlist.CubeFace
	X, Y    uint32
	Width   uint32
	Height  uint32
	Mip     uint32
	Layer   uint32
}

func (updateTextureCubeEntry) Type() EntryType { return EntryUpdateTextureCube }

type copyBufferEntry struct {
	Src       *cmdlist.Buffer
	SrcOffset uint64
	Dst       *cmdlist.Buffer
	DstOffset uint64
	Size      uint64
}

func (copyBufferEntry) Type() EntryType { return EntryCopyBuffer }

type copyTextureEntry struct {
	Src                    *cmdlist.Texture
	SrcX, SrcY, SrcZ       uint32
	SrcMip, SrcLayer       uint32
	Dst                    *cmdlist.Texture
	DstX, DstY, DstZ       uint32
	DstMip, DstLayer       uint32
	Width, Height, Depth   uint32
	LayerCount             uint32
}

func (copyTextureEntry) Type() EntryType { return EntryCopyTexture }

type resolveTextureEntry struct {
	Src *cmdlist.Texture
	Dst *cmdlist.Texture
}

func (resolveTextureEntry) Type() EntryType { return EntryResolveTexture }

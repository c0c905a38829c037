// Package driver defines the native call surface that command recording
// backends translate into.
//
// A Driver wraps one native graphics API (or a software stand-in) behind a
// small set of interfaces: a [Device] that owns resources and accepts
// submissions, a [CommandEncoder] bracket, and pass-scoped [RenderPass] and
// [CopyPass] encoders. Recording layers above this package never talk to the
// native API directly; they emit calls here and the driver forwards them.
//
// Drivers register themselves by name following the database/sql driver
// pattern:
//
//	import _ "github.com/gogpu/cmdlist/driver/memdrv"
//
//	dev, err := driver.Open("mem")
//
// Native calls do not fail except by reporting a native error code; such
// failures surface as [*NativeError] so callers can inspect the verbatim
// code. A driver that cannot express an operation at all returns
// [ErrNotSupported] instead.
package driver

import (
	"errors"
	"time"

	"github.com/gogpu/gputypes"
)

// Driver-level errors.
var (
	// ErrNotSupported is returned when an operation cannot be expressed on
	// this device at all, as opposed to failing natively.
	ErrNotSupported = errors.New("driver: operation not supported by this device")

	// ErrNilDevice is returned when a nil device is passed where one is required.
	ErrNilDevice = errors.New("driver: device is nil")

	// ErrInvalidToken is returned when waiting on a submission token the
	// device has never issued.
	ErrInvalidToken = errors.New("driver: unknown submission token")
)

// Viewport describes one viewport transformation in framebuffer coordinates.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// ScissorRect describes one scissor rectangle in framebuffer pixels.
type ScissorRect struct {
	X, Y          uint32
	Width, Height uint32
}

// DepthStencilState carries the depth configuration a pipeline bind pushes
// when the bound framebuffer has a depth target.
type DepthStencilState struct {
	TestEnabled  bool
	WriteEnabled bool
	Compare      gputypes.CompareFunction
}

// SubresourceLayout describes the memory placement of one mip level of one
// array layer inside a host-visible (staging) texture.
type SubresourceLayout struct {
	// Offset is the byte offset of the subresource from the start of the
	// texture's backing buffer.
	Offset uint64

	// RowPitch is the byte stride between successive texel block rows.
	RowPitch uint32

	// DepthPitch is the byte stride between successive depth slices.
	DepthPitch uint32
}

// BufferImageLayout describes how texel data is laid out inside a buffer
// taking part in a buffer<->texture copy.
type BufferImageLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// TextureRegion addresses a sub-volume of one subresource of a texture.
type TextureRegion struct {
	Origin     gputypes.Origin3D
	MipLevel   uint32
	ArrayLayer uint32
	Size       gputypes.Extent3D
}

// =============================================================================
// Handles
// =============================================================================

// Buffer is an opaque handle to a device buffer.
type Buffer interface {
	// NativeHandle returns the underlying native object, for drivers that
	// wrap a foreign API. Reference drivers may return themselves.
	NativeHandle() any
}

// Texture is an opaque handle to a device texture.
//
// Host-visible (staging) textures are linear memory: they expose their
// backing buffer and answer subresource layout queries so recording layers
// can compute row and depth pitches. Device-local textures return a nil
// staging buffer and may reject layout queries.
type Texture interface {
	NativeHandle() any

	// StagingBuffer returns the backing buffer of a host-visible texture,
	// or nil for device-local textures.
	StagingBuffer() Buffer

	// SubresourceLayout reports the placement of (mip, layer) within the
	// staging buffer. Device-local textures return ErrNotSupported.
	SubresourceLayout(mip, layer uint32) (SubresourceLayout, error)
}

// Sampler is an opaque handle to a sampler state object.
type Sampler interface {
	NativeHandle() any
}

// Pipeline is an opaque handle to a compiled render pipeline. Pipeline
// compilation happens outside this module; recording layers only bind them.
type Pipeline interface {
	NativeHandle() any
}

// CommandBuffer is an opaque handle to a finished native command sequence,
// ready for submission.
type CommandBuffer interface {
	NativeHandle() any
}

// SubmissionToken identifies one queue submission for coarse completion
// tracking. Tokens are strictly increasing per device.
type SubmissionToken uint64

// =============================================================================
// Descriptors
// =============================================================================

// BufferDescriptor describes a buffer to create.
//
// Drivers pad allocations to a 4-byte multiple so that whole-resource
// updates with odd sizes can still be copied in 4-byte units.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage

	// Staging marks the buffer host-visible. Staging buffers accept
	// Device.WriteBuffer and Device.ReadBuffer directly.
	Staging bool
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label       string
	Size        gputypes.Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	SampleCount uint32
	Format      gputypes.TextureFormat
	Usage       gputypes.TextureUsage

	// Staging marks the texture as host-visible linear memory backed by a
	// buffer, addressable through SubresourceLayout.
	Staging bool
}

// SamplerDescriptor describes a sampler state object.
type SamplerDescriptor struct {
	Label string
}

// ColorAttachment configures one color target of a render pass.
type ColorAttachment struct {
	Target     Texture
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearValue gputypes.Color
}

// DepthStencilAttachment configures the depth/stencil target of a render pass.
type DepthStencilAttachment struct {
	Target            Texture
	DepthLoadOp       gputypes.LoadOp
	DepthClearValue   float32
	StencilLoadOp     gputypes.LoadOp
	StencilClearValue uint32
}

// RenderPassDescriptor describes a render pass to open. The recording layer
// resolves pending clear values into per-attachment load operations before
// the pass is opened; drivers apply them verbatim.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []ColorAttachment
	DepthStencil     *DepthStencilAttachment
}

// =============================================================================
// Device and encoders
// =============================================================================

// Device is one native graphics device plus its submission queue.
//
// Device implementations are safe for concurrent resource creation and
// submission; encoders obtained from BeginCommands are single-goroutine.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	DestroyBuffer(buf Buffer)

	CreateTexture(desc *TextureDescriptor) (Texture, error)
	DestroyTexture(tex Texture)

	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	DestroySampler(s Sampler)

	// WriteBuffer copies data into a host-visible buffer at offset. The
	// write is visible to GPU work submitted afterwards.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// ReadBuffer copies len(out) bytes out of a host-visible buffer,
	// blocking until previously submitted work that wrote it completes.
	ReadBuffer(buf Buffer, offset uint64, out []byte) error

	// BeginCommands opens a native command encoder bracket.
	BeginCommands(label string) (CommandEncoder, error)

	// Submit enqueues a finished command buffer and returns its token.
	Submit(cb CommandBuffer) (SubmissionToken, error)

	// FreeCommandBuffer releases a finished command buffer that will
	// not be submitted. Submitted command buffers are reclaimed by the
	// device once their submission completes.
	FreeCommandBuffer(cb CommandBuffer)

	// Wait blocks until the given submission completes or the timeout
	// elapses. A zero timeout polls. Returns true if the work completed.
	Wait(token SubmissionToken, timeout time.Duration) (bool, error)

	Destroy()
}

// CommandEncoder is one native recording bracket. Exactly one pass may be
// open at a time; Finish and Discard both invalidate the encoder.
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	BeginCopyPass(label string) (CopyPass, error)

	// ResolveTexture resolves a multisampled texture into a single-sample
	// destination. Must be called with no pass open.
	ResolveTexture(src, dst Texture) error

	// Finish closes the bracket and yields the command buffer.
	Finish() (CommandBuffer, error)

	// Discard abandons the bracket, releasing native state on every exit
	// path that does not reach Finish.
	Discard()
}

// RenderPass encodes draw-type commands. Binding slots are flat per resource
// kind; the vertex-stage and fragment-stage slot tables are numerically
// identical, so one bind call populates both.
type RenderPass interface {
	SetPipeline(p Pipeline) error
	SetCullMode(m gputypes.CullMode) error
	SetFrontFace(f gputypes.FrontFace) error
	SetDepthStencilState(s DepthStencilState) error
	SetDepthClip(enabled bool) error

	SetViewports(vps []Viewport) error
	SetScissorRects(rects []ScissorRect) error

	SetVertexBuffer(slot uint32, buf Buffer, offset uint64) error
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat, offset uint64) error

	BindBuffer(slot uint32, buf Buffer, offset, size uint64) error
	BindTexture(slot uint32, tex Texture) error
	BindSampler(slot uint32, s Sampler) error

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error

	// DrawIndirect issues one draw whose parameters live at offset inside
	// buf. Multi-draw unrolling happens above this interface.
	DrawIndirect(buf Buffer, offset uint64) error
	DrawIndexedIndirect(buf Buffer, offset uint64) error

	End() error
}

// CopyPass encodes transfer-type commands.
type CopyPass interface {
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64) error
	CopyTextureToTexture(src Texture, srcRegion TextureRegion, dst Texture, dstOrigin gputypes.Origin3D, dstMip, dstLayer uint32) error
	CopyTextureToBuffer(src Texture, srcRegion TextureRegion, dst Buffer, layout BufferImageLayout) error
	CopyBufferToTexture(src Buffer, layout BufferImageLayout, dst Texture, dstRegion TextureRegion) error
	End() error
}

// ComputePass encodes compute dispatches.
type ComputePass interface {
	SetPipeline(p Pipeline) error
	BindBuffer(slot uint32, buf Buffer, offset, size uint64) error
	Dispatch(x, y, z uint32) error
	End() error
}

// ComputeCapable is implemented by encoders on devices that support compute
// dispatch. Recording layers probe for it and report ErrNotSupported when
// the assertion fails.
type ComputeCapable interface {
	BeginComputePass(label string) (ComputePass, error)
}

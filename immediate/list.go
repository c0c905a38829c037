// Package immediate implements a command list that translates
// operations onto a native driver encoder as they are recorded.
//
// Translation is lazy: pipeline, framebuffer, viewport, scissor and
// resource-set changes only mark state dirty, and the accumulated state
// is flushed to the encoder right before the next draw. Pending clears
// are folded into the load action of the next render pass instead of
// being issued as separate passes.
package immediate

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/binding"
	"github.com/gogpu/cmdlist/driver"
)

type passKind uint8

const (
	passNone passKind = iota
	passRender
	passCopy
	passCompute
)

type depthClear struct {
	depth   float32
	stencil uint8
}

// List is the immediate-mode command list. It owns one native encoder
// between Begin and End and is not safe for concurrent use.
type List struct {
	dev   *Device
	drv   driver.Device
	label string

	begun bool
	enc   driver.CommandEncoder
	cb    driver.CommandBuffer

	pass passKind
	rp   driver.RenderPass
	cp   driver.CopyPass
	comp driver.ComputePass

	fb       *cmdlist.Framebuffer
	fbSkip   bool
	fbWarned bool

	pipeline      *cmdlist.Pipeline
	pipelineDirty bool
	table         *binding.Table
	tables        map[*cmdlist.Pipeline]*binding.Table

	computePipeline      *cmdlist.Pipeline
	computePipelineDirty bool

	viewports      []cmdlist.Viewport
	viewportsDirty bool
	scissors       []cmdlist.ScissorRect
	scissorsDirty  bool

	vertexBuffers  []*cmdlist.Buffer
	vertexDirty    []bool
	anyVertexDirty bool
	indexBuffer    *cmdlist.Buffer
	indexFormat    gputypes.IndexFormat
	indexDirty     bool

	graphicsSets      []*cmdlist.ResourceSet
	graphicsSetsDirty []bool
	anySetDirty       bool

	computeSets      []*cmdlist.ResourceSet
	computeSetsDirty []bool

	clearColors map[uint32]gputypes.Color
	clearDepth  *depthClear

	uploads []driver.Buffer
}

var _ cmdlist.CommandList = (*List)(nil)

// NewList creates an immediate list bound to the device.
func NewList(dev *Device, label string) *List {
	return &List{
		dev:         dev,
		drv:         dev.drv,
		label:       label,
		tables:      make(map[*cmdlist.Pipeline]*binding.Table),
		clearColors: make(map[uint32]gputypes.Color),
	}
}

// Begin opens a native encoder and resets all recording state.
func (l *List) Begin() error {
	if l.begun {
		return cmdlist.ErrAlreadyBegun
	}
	enc, err := l.drv.BeginCommands(l.label)
	if err != nil {
		return fmt.Errorf("immediate: begin: %w", err)
	}
	l.enc = enc
	l.cb = nil
	l.begun = true
	l.pass = passNone
	l.fb = nil
	l.fbSkip = false
	l.fbWarned = false
	l.pipeline = nil
	l.pipelineDirty = false
	l.computePipeline = nil
	l.computePipelineDirty = false
	l.table = nil
	l.viewports = l.viewports[:0]
	l.viewportsDirty = false
	l.scissors = l.scissors[:0]
	l.scissorsDirty = false
	l.vertexBuffers = l.vertexBuffers[:0]
	l.vertexDirty = l.vertexDirty[:0]
	l.anyVertexDirty = false
	l.indexBuffer = nil
	l.indexDirty = false
	l.graphicsSets = l.graphicsSets[:0]
	l.graphicsSetsDirty = l.graphicsSetsDirty[:0]
	l.anySetDirty = false
	l.computeSets = l.computeSets[:0]
	l.computeSetsDirty = l.computeSetsDirty[:0]
	clear(l.clearColors)
	l.clearDepth = nil
	return nil
}

// End flushes pending clears, closes any open pass and finishes the
// encoder. The finished command buffer is held until Submit.
func (l *List) End() error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if err := l.flushPendingClears(); err != nil {
		return err
	}
	if err := l.closePass(); err != nil {
		return err
	}
	cb, err := l.enc.Finish()
	if err != nil {
		return fmt.Errorf("immediate: finish: %w", err)
	}
	l.cb = cb
	l.enc = nil
	l.begun = false
	return nil
}

// Dispose discards an unfinished encoder, frees a finished but
// unsubmitted command buffer, and releases upload memory back to the
// device.
func (l *List) Dispose() {
	if l.enc != nil {
		l.enc.Discard()
		l.enc = nil
	}
	if l.cb != nil {
		l.drv.FreeCommandBuffer(l.cb)
		l.cb = nil
	}
	l.begun = false
	l.dev.releaseUploads(l.takeUploads())
}

func (l *List) takeUploads() []driver.Buffer {
	u := l.uploads
	l.uploads = nil
	return u
}

// closePass ends whichever pass is open.
func (l *List) closePass() error {
	switch l.pass {
	case passRender:
		if err := l.rp.End(); err != nil {
			return err
		}
		l.rp = nil
	case passCopy:
		if err := l.cp.End(); err != nil {
			return err
		}
		l.cp = nil
	case passCompute:
		if err := l.comp.End(); err != nil {
			return err
		}
		l.comp = nil
	}
	l.pass = passNone
	return nil
}

// flushPendingClears opens and immediately closes a render pass when
// clears were recorded but no draw consumed them. Without this a clear
// before End or a framebuffer switch would be lost.
func (l *List) flushPendingClears() error {
	if len(l.clearColors) == 0 && l.clearDepth == nil {
		return nil
	}
	if l.pass != passNone {
		if err := l.closePass(); err != nil {
			return err
		}
	}
	if l.fb == nil || l.fbSkip {
		clear(l.clearColors)
		l.clearDepth = nil
		return nil
	}
	if err := l.openRenderPass(); err != nil {
		return err
	}
	return l.closePass()
}

// openRenderPass begins a native render pass against the current
// framebuffer, folding pending clears into the attachment load actions.
// Each pending clear is consumed exactly once.
func (l *List) openRenderPass() error {
	desc := driver.RenderPassDescriptor{Label: l.label}
	for i, tex := range l.fb.ColorTargets {
		att := driver.ColorAttachment{
			Target:  tex.Handle,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if c, ok := l.clearColors[uint32(i)]; ok {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = c
			delete(l.clearColors, uint32(i))
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}
	if dt := l.fb.DepthTarget; dt != nil {
		ds := &driver.DepthStencilAttachment{
			Target:        dt.Handle,
			DepthLoadOp:   gputypes.LoadOpLoad,
			StencilLoadOp: gputypes.LoadOpLoad,
		}
		if l.clearDepth != nil {
			ds.DepthLoadOp = gputypes.LoadOpClear
			ds.DepthClearValue = l.clearDepth.depth
			ds.StencilLoadOp = gputypes.LoadOpClear
			ds.StencilClearValue = uint32(l.clearDepth.stencil)
			l.clearDepth = nil
		}
		desc.DepthStencil = ds
	}
	rp, err := l.enc.BeginRenderPass(&desc)
	if err != nil {
		return fmt.Errorf("immediate: render pass: %w", err)
	}
	l.rp = rp
	l.pass = passRender

	// A fresh native pass starts with no bound state; everything
	// recorded so far must be pushed again.
	l.pipelineDirty = l.pipeline != nil
	l.viewportsDirty = len(l.viewports) > 0
	l.scissorsDirty = len(l.scissors) > 0
	for i := range l.vertexDirty {
		if l.vertexBuffers[i] != nil {
			l.vertexDirty[i] = true
			l.anyVertexDirty = true
		}
	}
	l.indexDirty = l.indexBuffer != nil
	for i := range l.graphicsSetsDirty {
		if l.graphicsSets[i] != nil {
			l.graphicsSetsDirty[i] = true
			l.anySetDirty = true
		}
	}
	return nil
}

// ============================================================================
// State setters (lazy)
// ============================================================================

// SetPipeline marks the pipeline dirty; translation happens before the
// next draw or dispatch.
func (l *List) SetPipeline(p *cmdlist.Pipeline) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if p == nil {
		return cmdlist.ErrNilResource
	}
	if p.Compute {
		if p != l.computePipeline {
			l.computePipeline = p
			l.computePipelineDirty = true
			for i := range l.computeSetsDirty {
				l.computeSetsDirty[i] = l.computeSets[i] != nil
			}
		}
		return nil
	}
	if p != l.pipeline {
		l.pipeline = p
		l.pipelineDirty = true
		// A pipeline change invalidates activated sets: they must be
		// retranslated against the new pipeline's slot table.
		for i := range l.graphicsSetsDirty {
			l.graphicsSetsDirty[i] = l.graphicsSets[i] != nil
			if l.graphicsSetsDirty[i] {
				l.anySetDirty = true
			}
		}
	}
	return nil
}

// SetFramebuffer switches render targets. Pending clears against the
// previous framebuffer are flushed first. Viewports and scissors reset
// and must be set again for the new extents.
func (l *List) SetFramebuffer(fb *cmdlist.Framebuffer) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if fb == nil {
		return cmdlist.ErrNilResource
	}
	if err := l.flushPendingClears(); err != nil {
		return err
	}
	if err := l.closePass(); err != nil {
		return err
	}
	l.fb = fb
	l.fbSkip = !fb.Renderable()
	l.fbWarned = false
	l.viewports = l.viewports[:0]
	l.viewportsDirty = false
	l.scissors = l.scissors[:0]
	l.scissorsDirty = false
	return nil
}

// SetViewport records a viewport for one color target. The viewport
// array is sized by the bound framebuffer's color-target count.
func (l *List) SetViewport(index uint32, v cmdlist.Viewport) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.fb == nil || int(index) >= len(l.fb.ColorTargets) {
		return cmdlist.ErrIndexOutOfRange
	}
	for uint32(len(l.viewports)) <= index {
		l.viewports = append(l.viewports, cmdlist.Viewport{})
	}
	l.viewports[index] = v
	l.viewportsDirty = true
	return nil
}

func (l *List) SetFullViewport(index uint32) error {
	if l.fb == nil {
		return cmdlist.ErrNilResource
	}
	return l.SetViewport(index, cmdlist.Viewport{
		Width:    float32(l.fb.Width),
		Height:   float32(l.fb.Height),
		MaxDepth: 1,
	})
}

func (l *List) SetScissorRect(index uint32, r cmdlist.ScissorRect) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.fb == nil || int(index) >= len(l.fb.ColorTargets) {
		return cmdlist.ErrIndexOutOfRange
	}
	for uint32(len(l.scissors)) <= index {
		l.scissors = append(l.scissors, cmdlist.ScissorRect{})
	}
	l.scissors[index] = r
	l.scissorsDirty = true
	return nil
}

func (l *List) SetFullScissorRect(index uint32) error {
	if l.fb == nil {
		return cmdlist.ErrNilResource
	}
	return l.SetScissorRect(index, cmdlist.ScissorRect{
		Width:  l.fb.Width,
		Height: l.fb.Height,
	})
}

func (l *List) SetVertexBuffer(index uint32, buf *cmdlist.Buffer) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	for uint32(len(l.vertexBuffers)) <= index {
		l.vertexBuffers = append(l.vertexBuffers, nil)
		l.vertexDirty = append(l.vertexDirty, false)
	}
	if l.vertexBuffers[index] != buf {
		l.vertexBuffers[index] = buf
		l.vertexDirty[index] = true
		l.anyVertexDirty = true
	}
	return nil
}

func (l *List) SetIndexBuffer(buf *cmdlist.Buffer, format gputypes.IndexFormat) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	if l.indexBuffer != buf || l.indexFormat != format {
		l.indexBuffer = buf
		l.indexFormat = format
		l.indexDirty = true
	}
	return nil
}

func (l *List) SetGraphicsResourceSet(slot uint32, set *cmdlist.ResourceSet) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if set == nil {
		return cmdlist.ErrNilResource
	}
	for uint32(len(l.graphicsSets)) <= slot {
		l.graphicsSets = append(l.graphicsSets, nil)
		l.graphicsSetsDirty = append(l.graphicsSetsDirty, false)
	}
	if l.graphicsSets[slot] != set {
		l.graphicsSets[slot] = set
		l.graphicsSetsDirty[slot] = true
		l.anySetDirty = true
	}
	return nil
}

func (l *List) SetComputeResourceSet(slot uint32, set *cmdlist.ResourceSet) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if set == nil {
		return cmdlist.ErrNilResource
	}
	for uint32(len(l.computeSets)) <= slot {
		l.computeSets = append(l.computeSets, nil)
		l.computeSetsDirty = append(l.computeSetsDirty, false)
	}
	if l.computeSets[slot] != set {
		l.computeSets[slot] = set
		l.computeSetsDirty[slot] = true
	}
	return nil
}

// ClearColorTarget records a pending clear. Any open render pass is
// closed so the clear can fold into the next pass's load action.
func (l *List) ClearColorTarget(index uint32, color gputypes.Color) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.fb == nil || int(index) >= len(l.fb.ColorTargets) {
		return cmdlist.ErrIndexOutOfRange
	}
	if l.pass == passRender {
		if err := l.closePass(); err != nil {
			return err
		}
	}
	l.clearColors[index] = color
	return nil
}

// ClearDepthStencil records a pending depth-stencil clear.
func (l *List) ClearDepthStencil(depth float32, stencil uint8) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.fb == nil || l.fb.DepthTarget == nil {
		return cmdlist.ErrNilResource
	}
	if l.pass == passRender {
		if err := l.closePass(); err != nil {
			return err
		}
	}
	l.clearDepth = &depthClear{depth: depth, stencil: stencil}
	return nil
}

// ============================================================================
// Draws
// ============================================================================

// errSkipDraw marks a draw against a non-renderable framebuffer. The
// draw is dropped with a warning rather than failing the recording.
var errSkipDraw = fmt.Errorf("immediate: draw skipped")

// preDraw flushes all dirty state onto the native render pass.
func (l *List) preDraw() error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.fb == nil {
		return cmdlist.ErrNilResource
	}
	if l.fbSkip {
		if !l.fbWarned {
			cmdlist.Logger().Warn("draw against non-renderable framebuffer skipped",
				slog.String("framebuffer", l.fb.Name))
			l.fbWarned = true
		}
		return errSkipDraw
	}
	if l.pipeline == nil {
		return cmdlist.ErrNilResource
	}
	if l.pass != passRender {
		if err := l.closePass(); err != nil {
			return err
		}
		if err := l.openRenderPass(); err != nil {
			return err
		}
	}
	if l.pipelineDirty {
		if err := l.bindPipeline(); err != nil {
			return err
		}
	}
	if l.viewportsDirty {
		vps := make([]driver.Viewport, len(l.viewports))
		copy(vps, l.viewports)
		if err := l.rp.SetViewports(vps); err != nil {
			return err
		}
		l.viewportsDirty = false
	}
	if l.scissorsDirty {
		rects := make([]driver.ScissorRect, len(l.scissors))
		copy(rects, l.scissors)
		if err := l.rp.SetScissorRects(rects); err != nil {
			return err
		}
		l.scissorsDirty = false
	}
	if l.anyVertexDirty {
		for i, dirty := range l.vertexDirty {
			if !dirty {
				continue
			}
			if err := l.rp.SetVertexBuffer(uint32(i), l.vertexBuffers[i].Handle, 0); err != nil {
				return err
			}
			l.vertexDirty[i] = false
		}
		l.anyVertexDirty = false
	}
	if l.indexDirty {
		if err := l.rp.SetIndexBuffer(l.indexBuffer.Handle, l.indexFormat, 0); err != nil {
			return err
		}
		l.indexDirty = false
	}
	if l.anySetDirty {
		if err := l.activateGraphicsSets(); err != nil {
			return err
		}
	}
	return nil
}

// bindPipeline pushes the pipeline and its fixed-function state, and
// looks up the memoized slot table.
func (l *List) bindPipeline() error {
	p := l.pipeline
	if err := l.rp.SetPipeline(p.Handle); err != nil {
		return err
	}
	if err := l.rp.SetCullMode(p.CullMode); err != nil {
		return err
	}
	if err := l.rp.SetFrontFace(p.FrontFace); err != nil {
		return err
	}
	if l.fb.DepthTarget != nil {
		state := driver.DepthStencilState{
			TestEnabled:  p.DepthTestEnabled,
			WriteEnabled: p.DepthWriteEnabled,
			Compare:      p.DepthCompare,
		}
		if err := l.rp.SetDepthStencilState(state); err != nil {
			return err
		}
		if err := l.rp.SetDepthClip(!p.DepthClipDisabled); err != nil {
			return err
		}
	}
	tab, ok := l.tables[p]
	if !ok {
		tab = binding.ForPipeline(p)
		l.tables[p] = tab
	}
	l.table = tab
	l.pipelineDirty = false
	return nil
}

// activateGraphicsSets translates and binds every dirty set exactly
// once. A set stays bound until replaced or until a pipeline change
// invalidates the slot table.
func (l *List) activateGraphicsSets() error {
	for slot, dirty := range l.graphicsSetsDirty {
		if !dirty {
			continue
		}
		set := l.graphicsSets[slot]
		if int(slot) >= l.table.Sets() {
			return cmdlist.ErrIndexOutOfRange
		}
		if err := l.bindSet(uint32(slot), set); err != nil {
			return err
		}
		l.graphicsSetsDirty[slot] = false
	}
	l.anySetDirty = false
	return nil
}

func (l *List) bindSet(slot uint32, set *cmdlist.ResourceSet) error {
	elems := set.Layout().Elements()
	for i, res := range set.Resources() {
		flat := l.table.Slot(slot, elems[i])
		switch r := res.(type) {
		case *cmdlist.Buffer:
			if err := l.rp.BindBuffer(flat, r.Handle, 0, r.Size); err != nil {
				return err
			}
		case cmdlist.BufferRange:
			size := r.Size
			if size == 0 {
				size = r.Buffer.Size - r.Offset
			}
			if err := l.rp.BindBuffer(flat, r.Buffer.Handle, r.Offset, size); err != nil {
				return err
			}
		case *cmdlist.Texture:
			if err := l.rp.BindTexture(flat, r.Handle); err != nil {
				return err
			}
		case *cmdlist.Sampler:
			if err := l.rp.BindSampler(flat, r.Handle); err != nil {
				return err
			}
		default:
			panic(fmt.Sprintf("immediate: unhandled resource type %T", res))
		}
	}
	return nil
}

func (l *List) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := l.preDraw(); err != nil {
		if err == errSkipDraw {
			return nil
		}
		return err
	}
	return l.rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (l *List) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if err := l.preDraw(); err != nil {
		if err == errSkipDraw {
			return nil
		}
		return err
	}
	if l.indexBuffer == nil {
		return cmdlist.ErrNilResource
	}
	return l.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// DrawIndirect unrolls the batch client-side: one native indirect draw
// per argument block, stepping by stride.
func (l *List) DrawIndirect(buf *cmdlist.Buffer, offset uint64, drawCount, stride uint32) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	if err := l.preDraw(); err != nil {
		if err == errSkipDraw {
			return nil
		}
		return err
	}
	for i := uint32(0); i < drawCount; i++ {
		if err := l.rp.DrawIndirect(buf.Handle, offset+uint64(i)*uint64(stride)); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) DrawIndexedIndirect(buf *cmdlist.Buffer, offset uint64, drawCount, stride uint32) error {
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	if err := l.preDraw(); err != nil {
		if err == errSkipDraw {
			return nil
		}
		return err
	}
	if l.indexBuffer == nil {
		return cmdlist.ErrNilResource
	}
	for i := uint32(0); i < drawCount; i++ {
		if err := l.rp.DrawIndexedIndirect(buf.Handle, offset+uint64(i)*uint64(stride)); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Compute
// ============================================================================

// Dispatch launches a compute grid. Devices that cannot run compute
// report driver.ErrNotSupported.
func (l *List) Dispatch(groupsX, groupsY, groupsZ uint32) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	cc, ok := l.enc.(driver.ComputeCapable)
	if !ok {
		return driver.ErrNotSupported
	}
	if l.computePipeline == nil {
		return cmdlist.ErrNilResource
	}
	if l.pass != passCompute {
		if err := l.closePass(); err != nil {
			return err
		}
		comp, err := cc.BeginComputePass(l.label)
		if err != nil {
			return err
		}
		l.comp = comp
		l.pass = passCompute
		l.computePipelineDirty = true
	}
	if l.computePipelineDirty {
		if err := l.comp.SetPipeline(l.computePipeline.Handle); err != nil {
			return err
		}
		l.computePipelineDirty = false
		for i := range l.computeSetsDirty {
			l.computeSetsDirty[i] = l.computeSets[i] != nil
		}
	}
	tab, ok := l.tables[l.computePipeline]
	if !ok {
		tab = binding.ForPipeline(l.computePipeline)
		l.tables[l.computePipeline] = tab
	}
	for slot, dirty := range l.computeSetsDirty {
		if !dirty {
			continue
		}
		set := l.computeSets[slot]
		elems := set.Layout().Elements()
		for i, res := range set.Resources() {
			if elems[i].Kind.Class() != cmdlist.ClassBuffer {
				continue
			}
			flat := tab.Slot(uint32(slot), elems[i])
			switch r := res.(type) {
			case *cmdlist.Buffer:
				if err := l.comp.BindBuffer(flat, r.Handle, 0, r.Size); err != nil {
					return err
				}
			case cmdlist.BufferRange:
				size := r.Size
				if size == 0 {
					size = r.Buffer.Size - r.Offset
				}
				if err := l.comp.BindBuffer(flat, r.Buffer.Handle, r.Offset, size); err != nil {
					return err
				}
			}
		}
		l.computeSetsDirty[slot] = false
	}
	return l.comp.Dispatch(groupsX, groupsY, groupsZ)
}

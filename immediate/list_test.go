package immediate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/driver"
	"github.com/gogpu/cmdlist/driver/memdrv"
)

// newTestDevice opens the in-memory driver and wraps it.
func newTestDevice(t *testing.T) (*Device, *memdrv.Device) {
	t.Helper()
	drv, err := driver.Open("mem")
	if err != nil {
		t.Fatalf("driver.Open(mem) failed: %v", err)
	}
	dev := NewDevice(drv)
	t.Cleanup(dev.Destroy)
	return dev, drv.(*memdrv.Device)
}

// newColorFramebuffer creates a single renderable color target.
func newColorFramebuffer(t *testing.T, dev *Device, w, h uint32) (*cmdlist.Framebuffer, *cmdlist.Texture) {
	t.Helper()
	tex, err := dev.CreateTexture(TextureConfig{
		Name:   "color0",
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	return cmdlist.NewFramebuffer("fb", nil, tex), tex
}

func newTestPipeline(name string) *cmdlist.Pipeline {
	return &cmdlist.Pipeline{
		Handle:    &memdrv.Pipeline{Label: name},
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		CullMode:  gputypes.CullModeNone,
		Name:      name,
	}
}

func TestViewportChangesCoalesce(t *testing.T) {
	dev, mem := newTestDevice(t)
	_, tex0 := newColorFramebuffer(t, dev, 64, 64)
	_, tex1 := newColorFramebuffer(t, dev, 64, 64)
	fb := cmdlist.NewFramebuffer("fb", nil, tex0, tex1)

	l := dev.NewList("test")
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := l.SetFramebuffer(fb); err != nil {
		t.Fatalf("SetFramebuffer failed: %v", err)
	}
	if err := l.SetPipeline(newTestPipeline("p")); err != nil {
		t.Fatalf("SetPipeline failed: %v", err)
	}

	// Three viewport updates before the draw must reach the driver as a
	// single full-array push.
	if err := l.SetViewport(0, cmdlist.Viewport{Width: 32, Height: 32, MaxDepth: 1}); err != nil {
		t.Fatalf("SetViewport(0) failed: %v", err)
	}
	if err := l.SetViewport(1, cmdlist.Viewport{Width: 64, Height: 64, MaxDepth: 1}); err != nil {
		t.Fatalf("SetViewport(1) failed: %v", err)
	}
	l.SetViewport(0, cmdlist.Viewport{Width: 16, Height: 16, MaxDepth: 1})

	if err := l.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if err := l.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("second Draw failed: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if got := mem.TraceCount("SetViewports"); got != 1 {
		t.Errorf("SetViewports pushed %d times, want 1; trace: %v", got, mem.Trace())
	}
	if got := mem.TraceCount("SetViewports count=2"); got != 1 {
		t.Errorf("full-array push missing; trace: %v", mem.Trace())
	}
	if got := mem.TraceCount("Draw "); got != 2 {
		t.Errorf("Draw issued %d times, want 2", got)
	}
}

func TestViewportIndexBounds(t *testing.T) {
	dev, _ := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 64, 64)

	l := dev.NewList("test")
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer l.Dispose()

	// No framebuffer bound yet: there are no color targets to size the
	// viewport and scissor arrays against.
	if err := l.SetViewport(0, cmdlist.Viewport{Width: 64, Height: 64}); !errors.Is(err, cmdlist.ErrIndexOutOfRange) {
		t.Errorf("SetViewport without framebuffer = %v, want ErrIndexOutOfRange", err)
	}
	if err := l.SetFramebuffer(fb); err != nil {
		t.Fatalf("SetFramebuffer failed: %v", err)
	}
	if err := l.SetViewport(0, cmdlist.Viewport{Width: 64, Height: 64, MaxDepth: 1}); err != nil {
		t.Fatalf("SetViewport(0) failed: %v", err)
	}
	if err := l.SetViewport(1, cmdlist.Viewport{}); !errors.Is(err, cmdlist.ErrIndexOutOfRange) {
		t.Errorf("SetViewport(1) with one color target = %v, want ErrIndexOutOfRange", err)
	}
	if err := l.SetScissorRect(0, cmdlist.ScissorRect{Width: 64, Height: 64}); err != nil {
		t.Fatalf("SetScissorRect(0) failed: %v", err)
	}
	if err := l.SetScissorRect(1, cmdlist.ScissorRect{}); !errors.Is(err, cmdlist.ErrIndexOutOfRange) {
		t.Errorf("SetScissorRect(1) with one color target = %v, want ErrIndexOutOfRange", err)
	}
}

func TestPipelineStatePushedOncePerBind(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 64, 64)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	p := newTestPipeline("p")
	l.SetPipeline(p)
	l.Draw(3, 1, 0, 0)
	// Re-setting the same pipeline must not re-push it.
	l.SetPipeline(p)
	l.Draw(3, 1, 0, 0)
	l.End()

	if got := mem.TraceCount("SetPipeline"); got != 1 {
		t.Errorf("SetPipeline pushed %d times, want 1", got)
	}
	if got := mem.TraceCount("SetCullMode"); got != 1 {
		t.Errorf("SetCullMode pushed %d times, want 1", got)
	}
}

func TestResourceSetActivatedOncePerPipelineBind(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 64, 64)

	layout := cmdlist.NewResourceLayout(
		cmdlist.LayoutElement{Name: "Globals", Kind: cmdlist.KindUniformBuffer, Slot: 0},
	)
	buf, err := dev.CreateBuffer("globals", 64, gputypes.BufferUsageUniform, false)
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	set, err := cmdlist.NewResourceSet(layout, buf)
	if err != nil {
		t.Fatalf("NewResourceSet failed: %v", err)
	}

	p1 := newTestPipeline("p1")
	p1.Layouts = []*cmdlist.ResourceLayout{layout}
	p2 := newTestPipeline("p2")
	p2.Layouts = []*cmdlist.ResourceLayout{layout}

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(p1)
	l.SetGraphicsResourceSet(0, set)
	l.Draw(3, 1, 0, 0)
	l.Draw(3, 1, 0, 0)
	// Same set again: no retranslation.
	l.SetGraphicsResourceSet(0, set)
	l.Draw(3, 1, 0, 0)
	l.End()

	if got := mem.TraceCount("BindBuffer"); got != 1 {
		t.Errorf("BindBuffer issued %d times, want 1; trace: %v", got, mem.Trace())
	}

	// A pipeline change invalidates the translation and forces one
	// reactivation.
	mem.ResetTrace()
	l2 := dev.NewList("test2")
	l2.Begin()
	l2.SetFramebuffer(fb)
	l2.SetPipeline(p1)
	l2.SetGraphicsResourceSet(0, set)
	l2.Draw(3, 1, 0, 0)
	l2.SetPipeline(p2)
	l2.Draw(3, 1, 0, 0)
	l2.End()

	if got := mem.TraceCount("BindBuffer"); got != 2 {
		t.Errorf("BindBuffer issued %d times across pipeline change, want 2", got)
	}
}

func TestClearFoldsIntoRenderPassLoadOp(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, tex := newColorFramebuffer(t, dev, 4, 4)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(newTestPipeline("p"))
	if err := l.ClearColorTarget(0, gputypes.Color{R: 0, G: 1, B: 0, A: 1}); err != nil {
		t.Fatalf("ClearColorTarget failed: %v", err)
	}
	if err := l.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if _, err := dev.Submit(l); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// One pass, with the clear as its load action rather than an extra
	// clear-only pass.
	if got := mem.TraceCount("BeginRenderPass"); got != 1 {
		t.Errorf("BeginRenderPass issued %d times, want 1; trace: %v", got, mem.Trace())
	}
	if got := mem.TraceCount("ColorTarget 0 load=Clear"); got != 1 {
		t.Errorf("clear load action missing; trace: %v", mem.Trace())
	}

	want := []byte{0, 255, 0, 255}
	if got := memdrv.TextureData(tex.Handle, 0, 0); !bytes.Equal(got[:4], want) {
		t.Errorf("first texel = %v, want %v", got[:4], want)
	}
}

func TestClearConsumedAtMostOnce(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 4, 4)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(newTestPipeline("p"))
	l.ClearColorTarget(0, gputypes.Color{R: 1, A: 1})
	l.Draw(3, 1, 0, 0)
	// A copy forces the render pass closed; the next draw reopens it
	// and must load, not clear again.
	src, _ := dev.CreateBuffer("src", 16, 0, false)
	dst, _ := dev.CreateBuffer("dst", 16, 0, false)
	l.CopyBuffer(src, 0, dst, 0, 16)
	l.Draw(3, 1, 0, 0)
	l.End()

	if got := mem.TraceCount("ColorTarget 0 load=Clear"); got != 1 {
		t.Errorf("clear consumed %d times, want 1; trace: %v", got, mem.Trace())
	}
	if got := mem.TraceCount("ColorTarget 0 load=Load"); got != 1 {
		t.Errorf("reopened pass should load; trace: %v", mem.Trace())
	}
}

func TestClearWithoutDrawFlushedAtEnd(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, tex := newColorFramebuffer(t, dev, 4, 4)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	if err := l.ClearColorTarget(0, gputypes.Color{R: 1, G: 0, B: 0, A: 1}); err != nil {
		t.Fatalf("ClearColorTarget failed: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if got := mem.TraceCount("ColorTarget 0 load=Clear"); got != 1 {
		t.Errorf("clear not flushed at End; trace: %v", mem.Trace())
	}
	want := []byte{255, 0, 0, 255}
	if got := memdrv.TextureData(tex.Handle, 0, 0); !bytes.Equal(got[:4], want) {
		t.Errorf("first texel = %v, want %v", got[:4], want)
	}
}

func TestSetFramebufferFlushesPendingClears(t *testing.T) {
	dev, _ := newTestDevice(t)
	fb1, tex1 := newColorFramebuffer(t, dev, 4, 4)
	fb2, _ := newColorFramebuffer(t, dev, 4, 4)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb1)
	l.ClearColorTarget(0, gputypes.Color{R: 0, G: 0, B: 1, A: 1})
	if err := l.SetFramebuffer(fb2); err != nil {
		t.Fatalf("SetFramebuffer failed: %v", err)
	}
	l.End()

	want := []byte{0, 0, 255, 255}
	if got := memdrv.TextureData(tex1.Handle, 0, 0); !bytes.Equal(got[:4], want) {
		t.Errorf("first texel of previous target = %v, want %v", got[:4], want)
	}
}

func TestDrawIndirectUnrolls(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 4, 4)
	args, _ := dev.CreateBuffer("args", 256, 0, false)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(newTestPipeline("p"))
	if err := l.DrawIndirect(args, 16, 3, 32); err != nil {
		t.Fatalf("DrawIndirect failed: %v", err)
	}
	l.End()

	for _, want := range []string{"DrawIndirect offset=16", "DrawIndirect offset=48", "DrawIndirect offset=80"} {
		if got := mem.TraceCount(want); got != 1 {
			t.Errorf("missing %q; trace: %v", want, mem.Trace())
		}
	}
}

func TestNonRenderableFramebufferSkipsDraws(t *testing.T) {
	dev, mem := newTestDevice(t)
	staging, err := dev.CreateTexture(TextureConfig{
		Name:    "capture",
		Width:   4,
		Height:  4,
		Format:  gputypes.TextureFormatRGBA8Unorm,
		Staging: true,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	fb := cmdlist.NewFramebuffer("staging-fb", nil, staging)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(newTestPipeline("p"))
	if err := l.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw returned %v, want silent skip", err)
	}
	l.End()

	if got := mem.TraceCount("Draw "); got != 0 {
		t.Errorf("draw reached the driver %d times, want 0", got)
	}
	if got := mem.TraceCount("BeginRenderPass"); got != 0 {
		t.Errorf("render pass opened against non-renderable framebuffer")
	}
}

func TestDispatchWithoutComputeSupport(t *testing.T) {
	dev, _ := newTestDevice(t)

	p := newTestPipeline("comp")
	p.Compute = true

	l := dev.NewList("test")
	l.Begin()
	l.SetPipeline(p)
	if err := l.Dispatch(1, 1, 1); !errors.Is(err, driver.ErrNotSupported) {
		t.Errorf("Dispatch = %v, want ErrNotSupported", err)
	}
	l.End()
}

func TestRecordingBeforeBegin(t *testing.T) {
	dev, _ := newTestDevice(t)
	l := dev.NewList("test")

	if err := l.SetPipeline(newTestPipeline("p")); !errors.Is(err, cmdlist.ErrNotBegun) {
		t.Errorf("SetPipeline before Begin = %v, want ErrNotBegun", err)
	}
	if err := l.Draw(3, 1, 0, 0); !errors.Is(err, cmdlist.ErrNotBegun) {
		t.Errorf("Draw before Begin = %v, want ErrNotBegun", err)
	}
}

func TestDoubleBegin(t *testing.T) {
	dev, _ := newTestDevice(t)
	l := dev.NewList("test")

	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := l.Begin(); !errors.Is(err, cmdlist.ErrAlreadyBegun) {
		t.Errorf("second Begin = %v, want ErrAlreadyBegun", err)
	}
	l.Dispose()
}

func TestClearColorTargetOutOfRange(t *testing.T) {
	dev, _ := newTestDevice(t)
	fb, _ := newColorFramebuffer(t, dev, 4, 4)

	l := dev.NewList("test")
	l.Begin()
	l.SetFramebuffer(fb)
	if err := l.ClearColorTarget(1, gputypes.Color{}); !errors.Is(err, cmdlist.ErrIndexOutOfRange) {
		t.Errorf("ClearColorTarget(1) = %v, want ErrIndexOutOfRange", err)
	}
	l.Dispose()
}

package immediate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/driver/memdrv"
)

func TestUpdateBufferRoundTrip(t *testing.T) {
	dev, _ := newTestDevice(t)
	buf, err := dev.CreateBuffer("target", 64, gputypes.BufferUsageCopyDst, false)
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	l := dev.NewList("upload")
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := l.UpdateBuffer(buf, 8, data); err != nil {
		t.Fatalf("UpdateBuffer failed: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if _, err := dev.Submit(l); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	out := make([]byte, 8)
	if err := dev.ReadBuffer(buf, 8, out); err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("readback = %v, want %v", out, data)
	}
}

func TestUpdateBufferAlignment(t *testing.T) {
	dev, _ := newTestDevice(t)
	buf, _ := dev.CreateBuffer("target", 64, 0, false)
	odd, _ := dev.CreateBuffer("odd", 13, 0, false)

	l := dev.NewList("upload")
	l.Begin()
	defer l.Dispose()

	tests := []struct {
		name    string
		buf     *cmdlist.Buffer
		offset  uint64
		data    []byte
		wantErr error
	}{
		{name: "misaligned offset", buf: buf, offset: 3, data: make([]byte, 8), wantErr: cmdlist.ErrOffsetNotAligned},
		{name: "misaligned partial size", buf: buf, offset: 4, data: make([]byte, 7), wantErr: cmdlist.ErrSizeNotAligned},
		{name: "past the end", buf: buf, offset: 60, data: make([]byte, 8), wantErr: cmdlist.ErrRangeOutOfBounds},
		{name: "whole buffer odd size", buf: odd, offset: 0, data: make([]byte, 13)},
		{name: "aligned interior", buf: buf, offset: 16, data: make([]byte, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.UpdateBuffer(tt.buf, tt.offset, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateBuffer() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateBuffer() failed: %v", err)
			}
		})
	}
}

func TestUpdateBufferStagingWritesDirectly(t *testing.T) {
	dev, mem := newTestDevice(t)
	buf, _ := dev.CreateBuffer("staging", 16, gputypes.BufferUsageMapWrite, true)

	l := dev.NewList("upload")
	l.Begin()
	data := []byte{9, 8, 7, 6}
	if err := l.UpdateBuffer(buf, 0, data); err != nil {
		t.Fatalf("UpdateBuffer failed: %v", err)
	}
	l.End()

	// Direct write: no transfer commands recorded.
	if got := mem.TraceCount("CopyBufferToBuffer"); got != 0 {
		t.Errorf("staging write went through a copy pass; trace: %v", mem.Trace())
	}
	out := make([]byte, 4)
	if err := dev.ReadBuffer(buf, 0, out); err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("readback = %v, want %v", out, data)
	}
}

func TestUpdateTextureDeviceTarget(t *testing.T) {
	dev, _ := newTestDevice(t)
	tex, err := dev.CreateTexture(TextureConfig{
		Name:   "tex",
		Width:  4,
		Height: 4,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}

	data := make([]byte, 4*4*4)
	for i := range data {
		data[i] = byte(i)
	}
	l := dev.NewList("upload")
	l.Begin()
	if err := l.UpdateTexture(tex, data, 0, 0, 0, 4, 4, 1, 0, 0); err != nil {
		t.Fatalf("UpdateTexture failed: %v", err)
	}
	l.End()
	if _, err := dev.Submit(l); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got := memdrv.TextureData(tex.Handle, 0, 0); !bytes.Equal(got, data) {
		t.Error("texture data does not match upload")
	}
}

func TestUpdateTextureShortData(t *testing.T) {
	dev, _ := newTestDevice(t)
	tex, _ := dev.CreateTexture(TextureConfig{
		Name:   "tex",
		Width:  4,
		Height: 4,
		Format: gputypes.TextureFormatRGBA8Unorm,
	})

	l := dev.NewList("upload")
	l.Begin()
	defer l.Dispose()
	err := l.UpdateTexture(tex, make([]byte, 8), 0, 0, 0, 4, 4, 1, 0, 0)
	if !errors.Is(err, cmdlist.ErrRangeOutOfBounds) {
		t.Errorf("UpdateTexture with short data = %v, want ErrRangeOutOfBounds", err)
	}
}

func TestUpdateTextureStagingTarget(t *testing.T) {
	dev, _ := newTestDevice(t)
	tex, _ := dev.CreateTexture(TextureConfig{
		Name:    "capture",
		Width:   4,
		Height:  4,
		Format:  gputypes.TextureFormatRGBA8Unorm,
		Staging: true,
	})

	data := make([]byte, 4*4*4)
	for i := range data {
		data[i] = byte(255 - i)
	}
	l := dev.NewList("upload")
	l.Begin()
	if err := l.UpdateTexture(tex, data, 0, 0, 0, 4, 4, 1, 0, 0); err != nil {
		t.Fatalf("UpdateTexture failed: %v", err)
	}
	l.End()

	if got := memdrv.TextureData(tex.Handle, 0, 0); !bytes.Equal(got, data) {
		t.Error("staging texture data does not match upload")
	}
}

func TestUpdateTextureCubeFaceLayer(t *testing.T) {
	dev, _ := newTestDevice(t)
	tex, _ := dev.CreateTexture(TextureConfig{
		Name:        "cube",
		Width:       2,
		Height:      2,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		ArrayLayers: 6,
		Usage:       gputypes.TextureUsageCopyDst,
	})

	data := make([]byte, 2*2*4)
	for i := range data {
		data[i] = 0xAB
	}
	l := dev.NewList("upload")
	l.Begin()
	if err := l.UpdateTextureCube(tex, data, cmdlist.CubeFaceNegativeY, 0, 0, 2, 2, 0, 0); err != nil {
		t.Fatalf("UpdateTextureCube failed: %v", err)
	}
	l.End()
	if _, err := dev.Submit(l); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// -Y is the fourth face, layer 3.
	if got := memdrv.TextureData(tex.Handle, 0, 3); !bytes.Equal(got, data) {
		t.Error("cube face layer does not hold uploaded data")
	}
	if got := memdrv.TextureData(tex.Handle, 0, 0); bytes.Equal(got, data) {
		t.Error("upload leaked into layer 0")
	}
}

func TestCopyBufferAlignment(t *testing.T) {
	dev, _ := newTestDevice(t)
	src, _ := dev.CreateBuffer("src", 32, 0, false)
	dst, _ := dev.CreateBuffer("dst", 32, 0, false)

	l := dev.NewList("copy")
	l.Begin()
	defer l.Dispose()

	if err := l.CopyBuffer(src, 2, dst, 0, 8); !errors.Is(err, cmdlist.ErrOffsetNotAligned) {
		t.Errorf("misaligned src offset = %v, want ErrOffsetNotAligned", err)
	}
	if err := l.CopyBuffer(src, 0, dst, 2, 8); !errors.Is(err, cmdlist.ErrOffsetNotAligned) {
		t.Errorf("misaligned dst offset = %v, want ErrOffsetNotAligned", err)
	}
	if err := l.CopyBuffer(src, 0, dst, 0, 5); !errors.Is(err, cmdlist.ErrSizeNotAligned) {
		t.Errorf("odd partial size = %v, want ErrSizeNotAligned", err)
	}
	if err := l.CopyBuffer(src, 0, dst, 16, 32); !errors.Is(err, cmdlist.ErrRangeOutOfBounds) {
		t.Errorf("overlong copy = %v, want ErrRangeOutOfBounds", err)
	}
	if err := l.CopyBuffer(src, 0, dst, 0, 32); err != nil {
		t.Errorf("aligned copy failed: %v", err)
	}

	// An odd size is exempt when the copy covers the whole destination.
	odd, _ := dev.CreateBuffer("odd", 7, 0, false)
	if err := l.CopyBuffer(src, 0, odd, 0, 7); err != nil {
		t.Errorf("whole-destination odd-size copy failed: %v", err)
	}
}

func TestCopyTextureDeviceToStaging(t *testing.T) {
	dev, _ := newTestDevice(t)
	src, _ := dev.CreateTexture(TextureConfig{
		Name:   "src",
		Width:  4,
		Height: 4,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	dst, _ := dev.CreateTexture(TextureConfig{
		Name:    "capture",
		Width:   4,
		Height:  4,
		Format:  gputypes.TextureFormatRGBA8Unorm,
		Staging: true,
	})

	data := make([]byte, 4*4*4)
	for i := range data {
		data[i] = byte(i * 3)
	}
	l := dev.NewList("copy")
	l.Begin()
	if err := l.UpdateTexture(src, data, 0, 0, 0, 4, 4, 1, 0, 0); err != nil {
		t.Fatalf("UpdateTexture failed: %v", err)
	}
	if err := l.CopyTexture(src, 0, 0, 0, 0, 0, dst, 0, 0, 0, 0, 0, 4, 4, 1, 1); err != nil {
		t.Fatalf("CopyTexture failed: %v", err)
	}
	l.End()
	if _, err := dev.Submit(l); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got := memdrv.TextureData(dst.Handle, 0, 0); !bytes.Equal(got, data) {
		t.Error("staging readback does not match source texture")
	}
}

func TestCopyTextureStagingToStagingSubRegion(t *testing.T) {
	dev, _ := newTestDevice(t)
	src, _ := dev.CreateTexture(TextureConfig{
		Name: "src", Width: 4, Height: 4,
		Format: gputypes.TextureFormatRGBA8Unorm, Staging: true,
	})
	dst, _ := dev.CreateTexture(TextureConfig{
		Name: "dst", Width: 8, Height: 8,
		Format: gputypes.TextureFormatRGBA8Unorm, Staging: true,
	})

	data := make([]byte, 4*4*4)
	for i := range data {
		data[i] = byte(i + 1)
	}
	l := dev.NewList("copy")
	l.Begin()
	if err := l.UpdateTexture(src, data, 0, 0, 0, 4, 4, 1, 0, 0); err != nil {
		t.Fatalf("UpdateTexture failed: %v", err)
	}
	// Copy a 2x2 block from the source origin into (4,4) of the larger
	// destination. Pitches differ, so rows must be placed one by one.
	if err := l.CopyTexture(src, 0, 0, 0, 0, 0, dst, 4, 4, 0, 0, 0, 2, 2, 1, 1); err != nil {
		t.Fatalf("CopyTexture failed: %v", err)
	}
	l.End()

	out := memdrv.TextureData(dst.Handle, 0, 0)
	dstPitch := 8 * 4
	for row := 0; row < 2; row++ {
		wantRow := data[row*4*4 : row*4*4+2*4]
		gotRow := out[(4+row)*dstPitch+4*4 : (4+row)*dstPitch+4*4+2*4]
		if !bytes.Equal(gotRow, wantRow) {
			t.Errorf("row %d = %v, want %v", row, gotRow, wantRow)
		}
	}
}

func TestResolveTextureClosesPass(t *testing.T) {
	dev, mem := newTestDevice(t)
	fb, msaa := newColorFramebuffer(t, dev, 4, 4)
	resolved, _ := dev.CreateTexture(TextureConfig{
		Name: "resolved", Width: 4, Height: 4,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageCopyDst,
	})

	l := dev.NewList("resolve")
	l.Begin()
	l.SetFramebuffer(fb)
	l.SetPipeline(newTestPipeline("p"))
	l.Draw(3, 1, 0, 0)
	if err := l.ResolveTexture(msaa, resolved); err != nil {
		t.Fatalf("ResolveTexture failed: %v", err)
	}
	l.End()

	if got := mem.TraceCount("EndRenderPass"); got != 1 {
		t.Errorf("render pass not closed before resolve; trace: %v", mem.Trace())
	}
	if got := mem.TraceCount("ResolveTexture"); got != 1 {
		t.Errorf("resolve not issued; trace: %v", mem.Trace())
	}
}

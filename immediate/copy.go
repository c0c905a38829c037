package immediate

import (
	"fmt"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/driver"
)

// ensureCopyPass opens a copy pass, ending any other open pass first.
func (l *List) ensureCopyPass() error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if l.pass == passCopy {
		return nil
	}
	if err := l.closePass(); err != nil {
		return err
	}
	cp, err := l.enc.BeginCopyPass(l.label)
	if err != nil {
		return fmt.Errorf("immediate: copy pass: %w", err)
	}
	l.cp = cp
	l.pass = passCopy
	return nil
}

// UpdateBuffer schedules a write into buf. Staging buffers are written
// directly; device buffers go through a pooled upload buffer and a
// transfer command so the write lands in submission order.
func (l *List) UpdateBuffer(buf *cmdlist.Buffer, offset uint64, data []byte) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if buf == nil {
		return cmdlist.ErrNilResource
	}
	if err := cmdlist.ValidateBufferRegion(offset, uint64(len(data)), buf.Size); err != nil {
		return fmt.Errorf("immediate: UpdateBuffer: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if buf.Staging {
		return l.drv.WriteBuffer(buf.Handle, offset, data)
	}

	upload, err := l.acquireUpload(uint64(len(data)))
	if err != nil {
		return err
	}
	if err := l.drv.WriteBuffer(upload, 0, data); err != nil {
		return err
	}
	if err := l.ensureCopyPass(); err != nil {
		return err
	}
	// Whole-buffer writes of odd size copy into the padded native
	// allocation.
	size := (uint64(len(data)) + 3) &^ 3
	return l.cp.CopyBufferToBuffer(upload, 0, buf.Handle, offset, size)
}

// acquireUpload leases a staging buffer from the device pool for the
// duration of this recording. It returns to the pool once the
// submission that consumed it completes.
func (l *List) acquireUpload(size uint64) (driver.Buffer, error) {
	buf, err := l.dev.acquireUpload(size)
	if err != nil {
		return nil, err
	}
	l.uploads = append(l.uploads, buf)
	return buf, nil
}

// UpdateTexture schedules a write of tightly packed texel rows into one
// region of one subresource.
func (l *List) UpdateTexture(tex *cmdlist.Texture, data []byte, x, y, z, width, height, depth, mipLevel, arrayLayer uint32) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if tex == nil {
		return cmdlist.ErrNilResource
	}
	if depth == 0 {
		depth = 1
	}
	info := driver.Format(tex.Format)
	rowBytes := ceilDiv(width, info.BlockDim) * info.BytesPerBlock
	rows := ceilDiv(height, info.BlockDim)
	need := uint64(rowBytes) * uint64(rows) * uint64(depth)
	if uint64(len(data)) < need {
		return cmdlist.ErrRangeOutOfBounds
	}

	if tex.Staging {
		return l.updateStagingTexture(tex, data, x, y, z, rowBytes, rows, depth, mipLevel, arrayLayer)
	}

	upload, err := l.acquireUpload(need)
	if err != nil {
		return err
	}
	if err := l.drv.WriteBuffer(upload, 0, data[:need]); err != nil {
		return err
	}
	if err := l.ensureCopyPass(); err != nil {
		return err
	}
	layout := driver.BufferImageLayout{BytesPerRow: rowBytes, RowsPerImage: rows}
	region := driver.TextureRegion{
		Origin:     origin3D(x, y, z),
		MipLevel:   mipLevel,
		ArrayLayer: arrayLayer,
		Size:       extent3D(width, height, depth),
	}
	return l.cp.CopyBufferToTexture(upload, layout, tex.Handle, region)
}

// updateStagingTexture writes rows straight into the linear buffer
// backing a staging texture, honoring its row and depth pitches.
func (l *List) updateStagingTexture(tex *cmdlist.Texture, data []byte, x, y, z, rowBytes, rows, depth, mip, layer uint32) error {
	backing := tex.Handle.StagingBuffer()
	if backing == nil {
		return driver.ErrNotSupported
	}
	sl, err := l.dev.subresourceLayout(tex, mip, layer)
	if err != nil {
		return err
	}
	info := driver.Format(tex.Format)
	tight := uint64(rowBytes) * uint64(rows)
	for d := uint32(0); d < depth; d++ {
		for row := uint32(0); row < rows; row++ {
			dstOff := sl.Offset +
				uint64(z+d)*uint64(sl.DepthPitch) +
				uint64(y/info.BlockDim+row)*uint64(sl.RowPitch) +
				uint64(x/info.BlockDim)*uint64(info.BytesPerBlock)
			srcOff := uint64(d)*tight + uint64(row)*uint64(rowBytes)
			if err := l.drv.WriteBuffer(backing, dstOff, data[srcOff:srcOff+uint64(rowBytes)]); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateTextureCube writes one face of a cube texture. Faces are laid
// out as consecutive array layers, six per cube.
func (l *List) UpdateTextureCube(tex *cmdlist.Texture, data []byte, face cmdlist.CubeFace, x, y, width, height, mipLevel, arrayLayer uint32) error {
	layer := arrayLayer*6 + uint32(face)
	return l.UpdateTexture(tex, data, x, y, 0, width, height, 1, mipLevel, layer)
}

// CopyBuffer copies between buffers through the copy pass. The
// destination region follows the same alignment contract as
// UpdateBuffer: offset and size are 4-byte multiples unless the copy
// covers the whole destination.
func (l *List) CopyBuffer(src *cmdlist.Buffer, srcOffset uint64, dst *cmdlist.Buffer, dstOffset, size uint64) error {
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	if srcOffset%4 != 0 {
		return cmdlist.ErrOffsetNotAligned
	}
	if err := cmdlist.ValidateBufferRegion(dstOffset, size, dst.Size); err != nil {
		return err
	}
	if srcOffset+size > src.Size {
		return cmdlist.ErrRangeOutOfBounds
	}
	if err := l.ensureCopyPass(); err != nil {
		return err
	}
	return l.cp.CopyBufferToBuffer(src.Handle, srcOffset, dst.Handle, dstOffset, size)
}

// CopyTexture copies a region between textures. The strategy depends on
// which side lives in staging memory:
//
//   - device to device goes through per-layer texture copies
//   - device to staging reads into the staging texture's backing buffer
//   - staging to device uploads from the backing buffer
//   - staging to staging moves rows between backing buffers directly
func (l *List) CopyTexture(src *cmdlist.Texture, srcX, srcY, srcZ, srcMip, srcLayer uint32,
	dst *cmdlist.Texture, dstX, dstY, dstZ, dstMip, dstLayer uint32,
	width, height, depth, layerCount uint32) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	if depth == 0 {
		depth = 1
	}
	if layerCount == 0 {
		layerCount = 1
	}
	if err := l.ensureCopyPass(); err != nil {
		return err
	}

	switch {
	case !src.Staging && !dst.Staging:
		for layer := uint32(0); layer < layerCount; layer++ {
			region := driver.TextureRegion{
				Origin:     origin3D(srcX, srcY, srcZ),
				MipLevel:   srcMip,
				ArrayLayer: srcLayer + layer,
				Size:       extent3D(width, height, depth),
			}
			if err := l.cp.CopyTextureToTexture(src.Handle, region, dst.Handle, origin3D(dstX, dstY, dstZ), dstMip, dstLayer+layer); err != nil {
				return err
			}
		}
		return nil

	case !src.Staging && dst.Staging:
		backing := dst.Handle.StagingBuffer()
		if backing == nil {
			return driver.ErrNotSupported
		}
		for layer := uint32(0); layer < layerCount; layer++ {
			region := driver.TextureRegion{
				Origin:     origin3D(srcX, srcY, srcZ),
				MipLevel:   srcMip,
				ArrayLayer: srcLayer + layer,
				Size:       extent3D(width, height, depth),
			}
			layout, err := l.bufferImageLayout(dst, dstMip, dstLayer+layer, dstX, dstY, dstZ)
			if err != nil {
				return err
			}
			if err := l.cp.CopyTextureToBuffer(src.Handle, region, backing, layout); err != nil {
				return err
			}
		}
		return nil

	case src.Staging && !dst.Staging:
		backing := src.Handle.StagingBuffer()
		if backing == nil {
			return driver.ErrNotSupported
		}
		for layer := uint32(0); layer < layerCount; layer++ {
			layout, err := l.bufferImageLayout(src, srcMip, srcLayer+layer, srcX, srcY, srcZ)
			if err != nil {
				return err
			}
			region := driver.TextureRegion{
				Origin:     origin3D(dstX, dstY, dstZ),
				MipLevel:   dstMip,
				ArrayLayer: dstLayer + layer,
				Size:       extent3D(width, height, depth),
			}
			if err := l.cp.CopyBufferToTexture(backing, layout, dst.Handle, region); err != nil {
				return err
			}
		}
		return nil

	default:
		return l.copyStagingToStaging(src, srcX, srcY, srcZ, srcMip, srcLayer,
			dst, dstX, dstY, dstZ, dstMip, dstLayer,
			width, height, depth, layerCount)
	}
}

// copyStagingToStaging moves rows between two linear backing buffers.
// The source and destination pitches are independent, so the copy walks
// row by row, slice by slice.
func (l *List) copyStagingToStaging(src *cmdlist.Texture, srcX, srcY, srcZ, srcMip, srcLayer uint32,
	dst *cmdlist.Texture, dstX, dstY, dstZ, dstMip, dstLayer uint32,
	width, height, depth, layerCount uint32) error {
	srcBacking := src.Handle.StagingBuffer()
	dstBacking := dst.Handle.StagingBuffer()
	if srcBacking == nil || dstBacking == nil {
		return driver.ErrNotSupported
	}
	info := driver.Format(src.Format)
	rowBytes := ceilDiv(width, info.BlockDim) * info.BytesPerBlock
	rows := ceilDiv(height, info.BlockDim)

	for layer := uint32(0); layer < layerCount; layer++ {
		sl, err := l.dev.subresourceLayout(src, srcMip, srcLayer+layer)
		if err != nil {
			return err
		}
		dl, err := l.dev.subresourceLayout(dst, dstMip, dstLayer+layer)
		if err != nil {
			return err
		}
		for d := uint32(0); d < depth; d++ {
			for row := uint32(0); row < rows; row++ {
				so := sl.Offset +
					uint64(srcZ+d)*uint64(sl.DepthPitch) +
					uint64(srcY/info.BlockDim+row)*uint64(sl.RowPitch) +
					uint64(srcX/info.BlockDim)*uint64(info.BytesPerBlock)
				do := dl.Offset +
					uint64(dstZ+d)*uint64(dl.DepthPitch) +
					uint64(dstY/info.BlockDim+row)*uint64(dl.RowPitch) +
					uint64(dstX/info.BlockDim)*uint64(info.BytesPerBlock)
				if err := l.cp.CopyBufferToBuffer(srcBacking, so, dstBacking, do, uint64(rowBytes)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// bufferImageLayout computes the linear placement of one region inside
// a staging texture's backing buffer.
func (l *List) bufferImageLayout(tex *cmdlist.Texture, mip, layer, x, y, z uint32) (driver.BufferImageLayout, error) {
	sl, err := l.dev.subresourceLayout(tex, mip, layer)
	if err != nil {
		return driver.BufferImageLayout{}, err
	}
	info := driver.Format(tex.Format)
	off := sl.Offset +
		uint64(z)*uint64(sl.DepthPitch) +
		uint64(y/info.BlockDim)*uint64(sl.RowPitch) +
		uint64(x/info.BlockDim)*uint64(info.BytesPerBlock)
	rowsPerImage := uint32(0)
	if sl.RowPitch != 0 {
		rowsPerImage = sl.DepthPitch / sl.RowPitch
	}
	return driver.BufferImageLayout{
		Offset:       off,
		BytesPerRow:  sl.RowPitch,
		RowsPerImage: rowsPerImage,
	}, nil
}

// ResolveTexture resolves a multisampled texture outside of any pass.
func (l *List) ResolveTexture(src, dst *cmdlist.Texture) error {
	if !l.begun {
		return cmdlist.ErrNotBegun
	}
	if src == nil || dst == nil {
		return cmdlist.ErrNilResource
	}
	if err := l.closePass(); err != nil {
		return err
	}
	return l.enc.ResolveTexture(src.Handle, dst.Handle)
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

package driver

import (
	"sync"

	"github.com/gogpu/gputypes"
)

// FormatInfo describes the block geometry of a texture format. Pixel-format
// conversion itself is out of scope here; recording layers only need block
// geometry to compute row and depth pitches for copies.
type FormatInfo struct {
	// BytesPerBlock is the byte size of one texel block.
	BytesPerBlock uint32

	// BlockDim is the edge length of a block in texels: 1 for uncompressed
	// formats, 4 for block-compressed ones.
	BlockDim uint32
}

var (
	formatMu sync.RWMutex

	// formatTable seeds the formats the reference drivers handle directly.
	// Backends with richer format support extend it via RegisterFormat.
	formatTable = map[gputypes.TextureFormat]FormatInfo{
		gputypes.TextureFormatRGBA8Unorm: {BytesPerBlock: 4, BlockDim: 1},
		gputypes.TextureFormatBGRA8Unorm: {BytesPerBlock: 4, BlockDim: 1},
	}
)

// RegisterFormat records block geometry for a texture format, replacing any
// previous entry. Safe for concurrent use.
func RegisterFormat(f gputypes.TextureFormat, info FormatInfo) {
	formatMu.Lock()
	defer formatMu.Unlock()
	formatTable[f] = info
}

// Format returns the block geometry for f. Unregistered formats report
// 4 bytes per 1x1 block, which covers the common 32-bit color formats.
func Format(f gputypes.TextureFormat) FormatInfo {
	formatMu.RLock()
	defer formatMu.RUnlock()

	if info, ok := formatTable[f]; ok {
		return info
	}
	return FormatInfo{BytesPerBlock: 4, BlockDim: 1}
}

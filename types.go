package cmdlist

import (
	"errors"

	"github.com/gogpu/cmdlist/driver"
)

// Shared command list errors.
var (
	// ErrNotBegun is returned when recording operations are called outside
	// a Begin/End bracket.
	ErrNotBegun = errors.New("cmdlist: list is not in a Begin/End bracket")

	// ErrAlreadyBegun is returned when Begin is called on a list that is
	// already recording.
	ErrAlreadyBegun = errors.New("cmdlist: Begin called while already recording")

	// ErrNotEnded is returned when a list is submitted before End.
	ErrNotEnded = errors.New("cmdlist: list has not been ended")

	// ErrOffsetNotAligned is returned when a partial buffer transfer uses
	// an offset that is not 4-byte aligned.
	ErrOffsetNotAligned = errors.New("cmdlist: buffer offset must be 4-byte aligned")

	// ErrSizeNotAligned is returned when a partial buffer transfer uses a
	// size that is not 4-byte aligned.
	ErrSizeNotAligned = errors.New("cmdlist: buffer size must be 4-byte aligned")

	// ErrRangeOutOfBounds is returned when a transfer exceeds the bounds
	// of the destination resource.
	ErrRangeOutOfBounds = errors.New("cmdlist: transfer range out of bounds")

	// ErrNilResource is returned when an operation references a nil
	// buffer, texture, pipeline, or framebuffer where one is required.
	ErrNilResource = errors.New("cmdlist: resource is nil")

	// ErrIndexOutOfRange is returned when a viewport, scissor, or clear
	// index exceeds the bound framebuffer's color target count.
	ErrIndexOutOfRange = errors.New("cmdlist: target index out of range")
)

// Viewport is one viewport transformation. Alias of the driver type so the
// recording layers and native surfaces share a single definition.
type Viewport = driver.Viewport

// ScissorRect is one scissor rectangle.
type ScissorRect = driver.ScissorRect

// transferAlignment is the required alignment, in bytes, for partial buffer
// transfer offsets and sizes.
const transferAlignment = 4

// ValidateBufferRegion checks the alignment and bounds contract for a
// buffer update or copy region against a destination of dstSize bytes.
//
// Offset and size must each be 4-byte multiples, except that a transfer
// covering the entire destination (offset 0, size == dstSize) is exempt
// from the size check. Violations are reported before any native call is
// issued, leaving list state unaffected.
func ValidateBufferRegion(offset, size, dstSize uint64) error {
	if offset%transferAlignment != 0 {
		return ErrOffsetNotAligned
	}
	whole := offset == 0 && size == dstSize
	if !whole && size%transferAlignment != 0 {
		return ErrSizeNotAligned
	}
	if offset+size > dstSize {
		return ErrRangeOutOfBounds
	}
	return nil
}

package cmdlist

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist/driver"
)

// Pipeline couples a native pipeline object with the fixed-function and
// layout metadata the recording layer replays on bind. The struct is
// immutable once handed to a command list.
type Pipeline struct {
	// Handle is the native driver pipeline.
	Handle driver.Pipeline

	// Topology is the primitive topology the pipeline draws.
	Topology gputypes.PrimitiveTopology

	// CullMode selects which triangle faces are discarded.
	CullMode gputypes.CullMode

	// FrontFace selects the winding that counts as front-facing.
	FrontFace gputypes.FrontFace

	// DepthTestEnabled enables the depth test when a depth target is
	// attached.
	DepthTestEnabled bool

	// DepthWriteEnabled enables depth writes when a depth target is
	// attached.
	DepthWriteEnabled bool

	// DepthCompare is the depth comparison function.
	DepthCompare gputypes.CompareFunction

	// DepthClipDisabled disables depth clipping (depth clamp).
	DepthClipDisabled bool

	// VertexBufferCount is the number of vertex buffer slots the
	// pipeline's vertex input consumes. Resource bindings are placed
	// after these slots in the buffer table.
	VertexBufferCount uint32

	// Layouts are the resource layouts, one per set slot.
	Layouts []*ResourceLayout

	// Compute marks a compute pipeline. Compute pipelines ignore the
	// fixed-function fields above.
	Compute bool

	// Name is a debug label.
	Name string
}

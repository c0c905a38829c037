package cmdlist

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdlist/driver"
)

// Buffer is a linear GPU allocation together with the metadata the
// recording layer needs for validation and staging decisions.
type Buffer struct {
	// Handle is the native driver buffer.
	Handle driver.Buffer

	// Size is the usable size in bytes as requested at creation. The
	// native allocation may be padded up to the transfer alignment.
	Size uint64

	// Usage is the creation usage mask.
	Usage gputypes.BufferUsage

	// Staging marks the buffer as CPU-visible staging memory.
	Staging bool

	// Name is a debug label.
	Name string
}

// Texture is a (possibly mipmapped, possibly arrayed) image resource.
type Texture struct {
	// Handle is the native driver texture.
	Handle driver.Texture

	// Format is the texel format.
	Format gputypes.TextureFormat

	// Width, Height and Depth are the level-zero extents.
	Width  uint32
	Height uint32
	Depth  uint32

	// MipLevels is the number of mip levels, at least 1.
	MipLevels uint32

	// ArrayLayers is the number of array layers, at least 1.
	ArrayLayers uint32

	// SampleCount is the MSAA sample count, 1 for non-multisampled.
	SampleCount uint32

	// Usage is the creation usage mask.
	Usage gputypes.TextureUsage

	// Staging marks the texture as CPU-visible staging memory backed by
	// a linear buffer rather than a device-optimal image.
	Staging bool

	// Name is a debug label.
	Name string
}

// MipSize returns the extent of one mip level along the given level-zero
// extent, clamped to a minimum of 1.
func MipSize(base, level uint32) uint32 {
	s := base >> level
	if s == 0 {
		return 1
	}
	return s
}

// Renderable reports whether the texture can serve as a render target
// attachment.
func (t *Texture) Renderable() bool {
	return !t.Staging && t.Usage&gputypes.TextureUsageRenderAttachment != 0
}

// Sampler wraps a native sampler state.
type Sampler struct {
	// Handle is the native driver sampler.
	Handle driver.Sampler

	// Name is a debug label.
	Name string
}

// BindableResource is the sealed set of resources a ResourceSet can hold:
// *Buffer, *Texture and *Sampler.
type BindableResource interface {
	bindable()
}

func (*Buffer) bindable()  {}
func (*Texture) bindable() {}
func (*Sampler) bindable() {}

// BufferRange binds a sub-range of a buffer. A zero Size binds from
// Offset to the end of the buffer.
type BufferRange struct {
	Buffer *Buffer
	Offset uint64
	Size   uint64
}

func (BufferRange) bindable() {}

// ResourceSet pairs a layout with one concrete resource per slot, in
// layout order. Sets are immutable after construction.
type ResourceSet struct {
	layout    *ResourceLayout
	resources []BindableResource
}

// NewResourceSet validates that each resource matches the class of its
// layout slot and builds the set.
func NewResourceSet(layout *ResourceLayout, resources ...BindableResource) (*ResourceSet, error) {
	if layout == nil {
		return nil, ErrNilResource
	}
	elems := layout.Elements()
	if len(resources) != len(elems) {
		return nil, fmt.Errorf("cmdlist: resource set has %d resources, layout has %d slots", len(resources), len(elems))
	}
	for i, r := range resources {
		if r == nil {
			return nil, ErrNilResource
		}
		if err := checkResourceClass(elems[i], r); err != nil {
			return nil, err
		}
	}
	return &ResourceSet{layout: layout, resources: resources}, nil
}

func checkResourceClass(elem LayoutElement, r BindableResource) error {
	class := elem.Kind.Class()
	switch r.(type) {
	case *Buffer, BufferRange:
		if class != ClassBuffer {
			return fmt.Errorf("cmdlist: slot %q (%s) cannot bind a buffer", elem.Name, elem.Kind)
		}
	case *Texture:
		if class != ClassTexture {
			return fmt.Errorf("cmdlist: slot %q (%s) cannot bind a texture", elem.Name, elem.Kind)
		}
	case *Sampler:
		if class != ClassSampler {
			return fmt.Errorf("cmdlist: slot %q (%s) cannot bind a sampler", elem.Name, elem.Kind)
		}
	default:
		return fmt.Errorf("cmdlist: unsupported resource type %T", r)
	}
	return nil
}

// Layout returns the layout the set was built against.
func (s *ResourceSet) Layout() *ResourceLayout { return s.layout }

// Resources returns the bound resources in layout order.
func (s *ResourceSet) Resources() []BindableResource { return s.resources }

package cmdlist

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BindingKind identifies the kind of resource a layout slot expects.
// The set is closed: every switch over BindingKind must handle all kinds,
// and an unknown value is an internal-consistency failure, never a
// recoverable condition.
type BindingKind uint8

const (
	// KindUniformBuffer is a read-only uniform (constant) buffer.
	KindUniformBuffer BindingKind = iota

	// KindStructuredBufferRO is a read-only structured (storage) buffer.
	KindStructuredBufferRO

	// KindStructuredBufferRW is a read-write structured (storage) buffer.
	KindStructuredBufferRW

	// KindTextureRO is a sampled (read-only) texture.
	KindTextureRO

	// KindTextureRW is a storage (read-write) texture.
	KindTextureRW

	// KindSampler is a sampler state object.
	KindSampler
)

// bindingKindNames maps BindingKind values to their string representation.
var bindingKindNames = [...]string{
	KindUniformBuffer:      "UniformBuffer",
	KindStructuredBufferRO: "StructuredBufferRO",
	KindStructuredBufferRW: "StructuredBufferRW",
	KindTextureRO:          "TextureRO",
	KindTextureRW:          "TextureRW",
	KindSampler:            "Sampler",
}

// String returns the string representation of a BindingKind.
func (k BindingKind) String() string {
	if int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Class reports which native slot table the kind binds into.
func (k BindingKind) Class() BindingClass {
	switch k {
	case KindUniformBuffer, KindStructuredBufferRO, KindStructuredBufferRW:
		return ClassBuffer
	case KindTextureRO, KindTextureRW:
		return ClassTexture
	case KindSampler:
		return ClassSampler
	default:
		panic(fmt.Sprintf("cmdlist: unhandled binding kind %d", uint8(k)))
	}
}

// BindingClass groups binding kinds by the native slot table they occupy.
type BindingClass uint8

const (
	// ClassBuffer covers uniform and structured buffers.
	ClassBuffer BindingClass = iota
	// ClassTexture covers read-only and read-write textures.
	ClassTexture
	// ClassSampler covers sampler states.
	ClassSampler
)

// LayoutElement describes one binding slot of a resource layout.
type LayoutElement struct {
	// Name is a debug label for the slot.
	Name string

	// Kind is the resource kind the slot expects.
	Kind BindingKind

	// Slot is the element's index within its kind's slot table, relative
	// to the layout's base for that kind.
	Slot uint32

	// Stages is the shader stage visibility mask. The vertex-stage and
	// fragment-stage slot tables are numerically identical, so visibility
	// never changes slot assignment.
	Stages gputypes.ShaderStage
}

// ResourceLayout is an ordered schema of binding slots. It is immutable
// after construction; per-kind counts are computed once.
type ResourceLayout struct {
	elements []LayoutElement

	bufferCount  uint32
	textureCount uint32
	samplerCount uint32
}

// NewResourceLayout builds a layout from its elements in order.
func NewResourceLayout(elements ...LayoutElement) *ResourceLayout {
	l := &ResourceLayout{elements: elements}
	for _, e := range elements {
		switch e.Kind.Class() {
		case ClassBuffer:
			l.bufferCount++
		case ClassTexture:
			l.textureCount++
		case ClassSampler:
			l.samplerCount++
		}
	}
	return l
}

// Elements returns the ordered binding descriptors.
func (l *ResourceLayout) Elements() []LayoutElement { return l.elements }

// BufferCount returns the number of buffer-class slots in the layout.
func (l *ResourceLayout) BufferCount() uint32 { return l.bufferCount }

// TextureCount returns the number of texture-class slots in the layout.
func (l *ResourceLayout) TextureCount() uint32 { return l.textureCount }

// SamplerCount returns the number of sampler slots in the layout.
func (l *ResourceLayout) SamplerCount() uint32 { return l.samplerCount }

// Count returns the slot count for one binding class.
func (l *ResourceLayout) Count(c BindingClass) uint32 {
	switch c {
	case ClassBuffer:
		return l.bufferCount
	case ClassTexture:
		return l.textureCount
	case ClassSampler:
		return l.samplerCount
	default:
		panic(fmt.Sprintf("cmdlist: unhandled binding class %d", uint8(c)))
	}
}

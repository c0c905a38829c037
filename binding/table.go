// Package binding translates layout-relative resource slots into the
// flat per-class slot tables native drivers consume.
//
// A pipeline's buffer table is shared between vertex input and resource
// bindings: the first VertexBufferCount slots belong to vertex buffers,
// and resource-set buffers are packed after them in set order. Texture
// and sampler tables have no such reservation. Vertex-stage and
// fragment-stage tables are numerically identical, so one Table serves
// both stages.
package binding

import (
	"fmt"

	"github.com/gogpu/cmdlist"
)

// Table holds the precomputed per-set base slots for one pipeline's
// layouts. It is immutable after construction.
type Table struct {
	bufferBase  []uint32
	textureBase []uint32
	samplerBase []uint32
}

// NewTable computes base slots for each layout set. vertexBufferCount is
// the number of buffer slots reserved at the head of the buffer table
// for vertex input.
func NewTable(layouts []*cmdlist.ResourceLayout, vertexBufferCount uint32) *Table {
	t := &Table{
		bufferBase:  make([]uint32, len(layouts)),
		textureBase: make([]uint32, len(layouts)),
		samplerBase: make([]uint32, len(layouts)),
	}
	buf, tex, smp := vertexBufferCount, uint32(0), uint32(0)
	for i, l := range layouts {
		t.bufferBase[i] = buf
		t.textureBase[i] = tex
		t.samplerBase[i] = smp
		buf += l.BufferCount()
		tex += l.TextureCount()
		smp += l.SamplerCount()
	}
	return t
}

// ForPipeline builds the table for a pipeline's layouts and vertex
// input.
func ForPipeline(p *cmdlist.Pipeline) *Table {
	return NewTable(p.Layouts, p.VertexBufferCount)
}

// Sets returns the number of layout sets the table covers.
func (t *Table) Sets() int { return len(t.bufferBase) }

// BufferBase returns the first buffer-table slot of the given set. It
// accounts for the vertex buffer reservation and all prior sets.
func (t *Table) BufferBase(set uint32) uint32 {
	t.check(set)
	return t.bufferBase[set]
}

// TextureBase returns the first texture-table slot of the given set.
func (t *Table) TextureBase(set uint32) uint32 {
	t.check(set)
	return t.textureBase[set]
}

// SamplerBase returns the first sampler-table slot of the given set.
func (t *Table) SamplerBase(set uint32) uint32 {
	t.check(set)
	return t.samplerBase[set]
}

// Slot resolves one layout element of a set to its flat slot.
func (t *Table) Slot(set uint32, elem cmdlist.LayoutElement) uint32 {
	switch elem.Kind.Class() {
	case cmdlist.ClassBuffer:
		return t.BufferBase(set) + elem.Slot
	case cmdlist.ClassTexture:
		return t.TextureBase(set) + elem.Slot
	case cmdlist.ClassSampler:
		return t.SamplerBase(set) + elem.Slot
	default:
		panic(fmt.Sprintf("binding: unhandled binding class for kind %s", elem.Kind))
	}
}

func (t *Table) check(set uint32) {
	if int(set) >= len(t.bufferBase) {
		panic(fmt.Sprintf("binding: set %d out of range (table has %d sets)", set, len(t.bufferBase)))
	}
}

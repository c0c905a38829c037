// Package staging provides a reusable arena for transient upload data.
//
// Recording backends copy caller data into a Pool at record time so the
// caller's slice can be reused immediately. The arena hands out Blocks
// tagged with a generation; a generation's memory may be recycled only
// after the recorder retires it, which happens once the GPU (or a
// replay) no longer reads from it.
package staging

import (
	"sync"
)

// defaultSlabSize is the allocation granularity of the arena. Blocks
// larger than this get a dedicated slab.
const defaultSlabSize = 256 * 1024

// blockAlignment keeps every block 4-byte aligned so staged data can be
// handed to buffer transfer paths directly.
const blockAlignment = 4

// Block references staged bytes inside a Pool. Blocks are value types;
// the zero Block is empty.
type Block struct {
	slab   int
	offset uint32
	length uint32
	gen    uint64
}

// Len returns the staged byte count.
func (b Block) Len() int { return int(b.length) }

// Gen returns the generation the block was staged in.
func (b Block) Gen() uint64 { return b.gen }

type slab struct {
	data []byte
	used uint32
	gen  uint64
}

// Pool is a generation-tagged bump arena. It is safe for concurrent
// staging, though recording backends typically use one pool per list.
type Pool struct {
	mu       sync.Mutex
	slabs    []*slab
	active   int
	gen      uint64
	retired  uint64
	free     []int
	slabSize uint32
	peak     uint64
	inUse    uint64
}

// NewPool creates a pool with the default slab size.
func NewPool() *Pool {
	return NewPoolWithSlabSize(defaultSlabSize)
}

// NewPoolWithSlabSize creates a pool whose slabs hold size bytes each.
// Intended for tests; most callers want NewPool.
func NewPoolWithSlabSize(size uint32) *Pool {
	return &Pool{active: -1, gen: 1, slabSize: size}
}

// Stage copies data into the arena and returns a block referencing it.
func (p *Pool) Stage(data []byte) Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := uint32(len(data))
	aligned := (n + blockAlignment - 1) &^ (blockAlignment - 1)

	s, idx := p.activeSlab(aligned)
	b := Block{slab: idx, offset: s.used, length: n, gen: p.gen}
	copy(s.data[s.used:], data)
	s.used += aligned

	p.inUse += uint64(aligned)
	if p.inUse > p.peak {
		p.peak = p.inUse
	}
	return b
}

// activeSlab returns a slab with at least need free bytes, reusing a
// retired slab when one is available. Caller holds p.mu.
func (p *Pool) activeSlab(need uint32) (*slab, int) {
	if p.active >= 0 {
		s := p.slabs[p.active]
		if s.used+need <= uint32(len(s.data)) {
			return s, p.active
		}
	}
	size := p.slabSize
	if need > size {
		size = need
	}
	// Prefer a recycled slab big enough for the request.
	for i, fi := range p.free {
		s := p.slabs[fi]
		if uint32(len(s.data)) >= need {
			p.free = append(p.free[:i], p.free[i+1:]...)
			s.used = 0
			s.gen = p.gen
			p.active = fi
			return s, fi
		}
	}
	s := &slab{data: make([]byte, size), gen: p.gen}
	p.slabs = append(p.slabs, s)
	p.active = len(p.slabs) - 1
	return s, p.active
}

// Bytes returns the staged bytes for a block. The slice aliases arena
// memory and is valid only until the block's generation is retired.
func (p *Pool) Bytes(b Block) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.gen <= p.retired {
		panic("staging: block read after its generation was retired")
	}
	s := p.slabs[b.slab]
	return s.data[b.offset : b.offset+b.length]
}

// Reset closes the current generation and starts a new one. Blocks from
// the closed generation stay readable until Retire reclaims them.
// Returns the generation that was closed.
func (p *Pool) Reset() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	closed := p.gen
	p.gen++
	p.active = -1
	return closed
}

// Retire reclaims every slab belonging to generations up to and
// including upTo. Blocks from those generations must no longer be read.
func (p *Pool) Retire(upTo uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if upTo >= p.gen {
		// Retiring the open generation would invalidate blocks still
		// being staged.
		upTo = p.gen - 1
	}
	if upTo <= p.retired {
		return
	}
	p.retired = upTo
	for i, s := range p.slabs {
		if s.gen <= upTo && i != p.active {
			if !containsInt(p.free, i) {
				p.free = append(p.free, i)
				p.inUse -= uint64(s.used)
				s.used = 0
			}
		}
	}
}

// Gen returns the currently open generation.
func (p *Pool) Gen() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// PeakBytes returns the high-water mark of staged bytes.
func (p *Pool) PeakBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// InUseBytes returns the bytes currently held by unretired generations.
func (p *Pool) InUseBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// SlabCount returns the number of slabs the pool has allocated.
func (p *Pool) SlabCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slabs)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

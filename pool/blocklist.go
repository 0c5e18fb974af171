package pool

import (
	"unsafe"

	"github.com/joshuapare/poolkit/internal/align"
)

// Chunk and trailer geometry. A chunk must hold a link word when free, and
// both the link word and the size word in a block trailer must land on their
// natural boundaries, so everything is sized in multiples of the lcm of the
// two alignments.
var (
	ptrSize    = unsafe.Sizeof(unsafe.Pointer(nil))
	chunkAlign = align.Lcm(unsafe.Alignof(unsafe.Pointer(nil)), unsafe.Alignof(uintptr(0)))

	// blockTrailer is the reserved tail of every super-block: a next-pointer
	// slot of chunkAlign bytes followed by a next-size slot.
	blockTrailer = chunkAlign + unsafe.Sizeof(uintptr(0))
)

// memblock describes one super-block acquired from the upstream. Only the
// base address and total size are carried by value; the links of the block
// list live in the block's own trailer, so copying a memblock is safe and the
// list needs no allocation of its own.
//
// Layout of a block of total bytes:
//
//	[begin, begin+elementSize)                 chunk slots
//	[begin+elementSize, +chunkAlign)           next-pointer slot
//	[.., +sizeof(uintptr))                     next-size slot
//
// The trailer slots are reserved and never handed out as chunks.
type memblock struct {
	begin unsafe.Pointer
	total uintptr
}

func (b memblock) valid() bool {
	return b.begin != nil
}

func (b *memblock) invalidate() {
	b.begin = nil
	b.total = 0
}

// elementSize is the number of bytes available for chunk slots.
func (b memblock) elementSize() uintptr {
	return b.total - blockTrailer
}

// end is one past the last chunk byte; the trailer starts here.
func (b memblock) end() unsafe.Pointer {
	return unsafe.Add(b.begin, b.elementSize())
}

// contains reports whether ptr lies inside the block's element region.
func (b memblock) contains(ptr unsafe.Pointer) bool {
	return uintptr(b.begin) <= uintptr(ptr) && uintptr(ptr) < uintptr(b.end())
}

// next reads the successor descriptor out of the trailer.
func (b memblock) next() memblock {
	return memblock{
		begin: *(*unsafe.Pointer)(b.end()),
		total: *(*uintptr)(unsafe.Add(b.end(), chunkAlign)),
	}
}

// setNext writes the successor descriptor into the trailer.
func (b memblock) setNext(nb memblock) {
	*(*unsafe.Pointer)(b.end()) = nb.begin
	*(*uintptr)(unsafe.Add(b.end(), chunkAlign)) = nb.total
}

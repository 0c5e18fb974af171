package pool

import "unsafe"

// FreeList is a simple segregated storage: a singly-linked list threaded
// through the free chunks themselves. A free chunk's first machine word holds
// the address of the next free chunk, so the list costs no memory beyond the
// chunks it tracks.
//
// A FreeList is empty when its head is nil. It is ordered when iterating it
// yields strictly ascending chunk addresses. Order-preserving operations keep
// an ordered list ordered; Deallocate and AddBlock do not. After an unordered
// operation, ordered operations remain memory-safe but AllocateContiguous may
// fail to find runs that physically exist.
//
// Almost every method has preconditions and delegates alignment to the
// caller. This is intentional: the free list is the innermost loop of the
// pool and carries no checks of its own outside debug builds.
type FreeList struct {
	first unsafe.Pointer
}

// nextOf reads the link word stored at the start of a free chunk (or at the
// list-head slot, which is laid out identically).
func nextOf(p unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(p)
}

func setNextOf(p, next unsafe.Pointer) {
	*(*unsafe.Pointer)(p) = next
}

// Empty reports whether the free list holds no chunks.
func (f *FreeList) Empty() bool {
	return f.first == nil
}

// Segregate partitions block into chunks of partition bytes each and links
// them into a singly-linked list terminating in tail. The links are built
// backwards so the resulting chain is address-ascending over the block.
// Returns the first chunk.
//
// size need not be a multiple of partition; the trailing remainder is
// ignored. Precondition: size >= partition.
func Segregate(block unsafe.Pointer, size, partition uintptr, tail unsafe.Pointer) unsafe.Pointer {
	// Last chunk that fits entirely. The divide-multiply keeps the address
	// on a partition stride even when size is not a multiple of partition.
	shift := ((size - partition) / partition) * partition
	old := unsafe.Add(block, shift)
	setNextOf(old, tail)

	// Single-chunk block.
	if old == block {
		return block
	}

	for iter := unsafe.Add(old, -int(partition)); iter != block; old, iter = iter, unsafe.Add(iter, -int(partition)) {
		setNextOf(iter, old)
	}
	setNextOf(block, old)
	return block
}

// AddBlock segregates block and prepends the resulting chain. Not
// order-preserving across blocks.
func (f *FreeList) AddBlock(block unsafe.Pointer, size, partition uintptr) {
	f.first = Segregate(block, size, partition, f.first)
}

// AddOrderedBlock segregates block and splices the chain in at its ordered
// position. Order-preserving; O(N) in the free-list length.
func (f *FreeList) AddOrderedBlock(block unsafe.Pointer, size, partition uintptr) {
	prev := f.findPrev(block)
	if prev == nil {
		f.AddBlock(block, size, partition)
		return
	}
	setNextOf(prev, Segregate(block, size, partition, nextOf(prev)))
}

// Allocate pops the head chunk. Precondition: the list is not empty.
func (f *FreeList) Allocate() unsafe.Pointer {
	if debugPool && f.first == nil {
		panic("pool: FreeList.Allocate on empty list")
	}
	ret := f.first
	f.first = nextOf(ret)
	return ret
}

// Deallocate pushes chunk onto the head. Not order-preserving.
func (f *FreeList) Deallocate(chunk unsafe.Pointer) {
	setNextOf(chunk, f.first)
	f.first = chunk
}

// OrderedDeallocate inserts chunk at its ordered position. O(N).
func (f *FreeList) OrderedDeallocate(chunk unsafe.Pointer) {
	prev := f.findPrev(chunk)
	if prev == nil {
		f.Deallocate(chunk)
		return
	}
	setNextOf(chunk, nextOf(prev))
	setNextOf(prev, chunk)
}

// AllocateContiguous scans for n chunks that are physically contiguous at
// stride partition and also consecutive in the free list. On success the run
// is unlinked and its first chunk returned; otherwise nil. Order-preserving.
// Returns nil when n is zero. The scan only finds runs that are consecutive
// in list order, so an ordered list is strongly recommended.
func (f *FreeList) AllocateContiguous(n, partition uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}
	// The head slot doubles as a pseudo-chunk so unlinking the run needs no
	// special case at the front of the list.
	start := unsafe.Pointer(&f.first)
	var last unsafe.Pointer
	for {
		if nextOf(start) == nil {
			return nil
		}
		last = tryContiguous(&start, n, partition)
		if last != nil {
			break
		}
	}
	ret := nextOf(start)
	setNextOf(start, nextOf(last))
	return ret
}

// tryContiguous checks whether the n chunks starting at nextOf(*start) form a
// physically contiguous run. On success it returns the last chunk of the run,
// leaving *start untouched, so the run is (start, last]. On failure it
// returns nil and advances *start to the last chunk considered, positioning
// the next attempt at the following list entry.
func tryContiguous(start *unsafe.Pointer, n, partition uintptr) unsafe.Pointer {
	iter := nextOf(*start)
	for ; n > 1; n-- {
		next := nextOf(iter)
		if next != unsafe.Add(iter, partition) {
			// End of list or a gap in the run.
			*start = iter
			return nil
		}
		iter = next
	}
	return iter
}

// DeallocateContiguous re-adds n chunks starting at chunks as a raw block.
// Not order-preserving.
func (f *FreeList) DeallocateContiguous(chunks unsafe.Pointer, n, partition uintptr) {
	if n != 0 {
		f.AddBlock(chunks, n*partition, partition)
	}
}

// OrderedDeallocateContiguous re-adds n chunks at their ordered position.
func (f *FreeList) OrderedDeallocateContiguous(chunks unsafe.Pointer, n, partition uintptr) {
	if n != 0 {
		f.AddOrderedBlock(chunks, n*partition, partition)
	}
}

// findPrev returns the last chunk whose address precedes ptr, or nil when ptr
// precedes the whole list (or the list is empty). Raw-address comparison is a
// total order within one pool's blocks on all supported platforms.
func (f *FreeList) findPrev(ptr unsafe.Pointer) unsafe.Pointer {
	if f.first == nil || uintptr(f.first) > uintptr(ptr) {
		return nil
	}
	iter := f.first
	for {
		next := nextOf(iter)
		if next == nil || uintptr(next) > uintptr(ptr) {
			return iter
		}
		iter = next
	}
}

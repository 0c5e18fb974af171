package pool

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/joshuapare/poolkit/internal/align"
	"github.com/joshuapare/poolkit/upstream"
)

// Debug flag - set to true to enable misuse assertions (compile-time toggle).
const debugPool = false

// Runtime debug flag for growth logging - controlled by POOLKIT_LOG_ALLOC env var.
var logPool = os.Getenv("POOLKIT_LOG_ALLOC") != ""

// minBacktrack is the floor at or below which a failed single-chunk growth is
// not halved and retried.
const minBacktrack = 4

// Pool is a fixed-chunk memory pool. It carves upstream-acquired super-blocks
// into chunks of a fixed effective size and hands them out through a
// segregated free list.
//
// Ordered and unordered operations may be mixed, but the pool does not track
// which the caller used: ReleaseMemory and AllocateContiguous runs through
// OrderedAllocateN are only guaranteed correct while the free list has seen
// exclusively ordered operations. That discipline is the caller's obligation.
//
// When constructed with Config.ThreadSafe, every public operation runs under
// the pool's mutex and the pool is linearizable. Otherwise the guard is a
// no-op and the caller owns synchronization.
type Pool struct {
	mu locker

	store FreeList
	list  memblock // block list head, ascending begin addresses when ordered ops are used

	requested uintptr // R: configured chunk size
	partition uintptr // P: effective chunk size, >= pointer size, multiple of chunkAlign

	nextSize  uintptr
	startSize uintptr
	maxSize   uintptr

	up     upstream.Interface
	stats  Stats
	closed bool

	// Test hook: called after a growth event installs a block (nil in production).
	onGrow func(chunks uintptr)
}

// New constructs a pool from cfg. The zero values of every field except
// ChunkSize are usable defaults.
func New(cfg Config) (*Pool, error) {
	if cfg.ChunkSize == 0 {
		return nil, ErrBadChunkSize
	}
	next := cfg.NextSize
	if next == 0 {
		next = DefaultNextSize
	}
	up := cfg.Upstream
	if up == nil {
		up = upstream.Default()
	}
	p := &Pool{
		requested: cfg.ChunkSize,
		partition: allocSize(cfg.ChunkSize),
		nextSize:  next,
		startSize: next,
		maxSize:   cfg.MaxSize,
		up:        up,
	}
	if cfg.ThreadSafe {
		p.mu = &sync.Mutex{}
	} else {
		p.mu = nopLocker{}
	}
	return p, nil
}

// allocSize computes the effective chunk size for a requested size: at least
// one pointer, rounded up to the chunk alignment boundary. This guarantees a
// free chunk can hold its link word at a natural alignment.
func allocSize(requested uintptr) uintptr {
	s := requested
	if s < ptrSize {
		s = ptrSize
	}
	return align.Up(s, chunkAlign)
}

// ChunkSize returns the configured (requested) chunk size.
func (p *Pool) ChunkSize() uintptr { return p.requested }

// AllocSize returns the effective chunk size chunks are carved at.
func (p *Pool) AllocSize() uintptr { return p.partition }

// NextSize returns the chunk count the next growth event will request.
func (p *Pool) NextSize() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextSize
}

// StartSize returns the initial growth chunk count, restored by
// ReleaseMemory and PurgeMemory.
func (p *Pool) StartSize() uintptr { return p.startSize }

// MaxSize returns the growth cap in chunks; zero means uncapped.
func (p *Pool) MaxSize() uintptr { return p.maxSize }

// Stats returns a copy of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Allocate returns one chunk, growing the pool if the free list is empty.
// Not order-preserving: the new super-block is prepended to the block list
// and its chunks to the free list.
func (p *Pool) Allocate() (unsafe.Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.stats.AllocCalls++
	if !p.store.Empty() {
		return p.store.Allocate(), nil
	}
	if err := p.grow(false); err != nil {
		return nil, err
	}
	return p.store.Allocate(), nil
}

// OrderedAllocate returns one chunk like Allocate, but keeps both the free
// list and the block list address-ordered across growth.
func (p *Pool) OrderedAllocate() (unsafe.Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.stats.AllocCalls++
	if !p.store.Empty() {
		return p.store.Allocate(), nil
	}
	if err := p.grow(true); err != nil {
		return nil, err
	}
	return p.store.Allocate(), nil
}

// OrderedAllocateN returns the first of n physically contiguous chunks.
// On a free-list miss it grows by max(NextSize, n) chunks, returns the
// requested prefix of the new super-block and donates the remainder to the
// free list at its ordered position. Returns nil for n == 0.
// Requires an ordered free list to reliably find existing runs.
func (p *Pool) OrderedAllocateN(n uintptr) (unsafe.Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if n == 0 {
		return nil, nil
	}
	p.stats.AllocCalls++
	if ptr := p.store.AllocateContiguous(n, p.partition); ptr != nil {
		return ptr, nil
	}

	chunks := p.nextSize
	if chunks < n {
		chunks = n
	}
	b, err := p.acquire(chunks)
	if err != nil {
		if chunks <= n {
			return nil, ErrOutOfMemory
		}
		half := chunks / 2
		if half < n {
			half = n
		}
		chunks = half
		b, err = p.acquire(chunks)
		if err != nil {
			return nil, ErrOutOfMemory
		}
		p.stats.Backtracks++
	}

	ret := b.begin
	if chunks > n {
		// Donate the tail beyond the requested prefix.
		p.store.AddOrderedBlock(unsafe.Add(b.begin, n*p.partition),
			b.elementSize()-n*p.partition, p.partition)
	}
	p.linkOrdered(b)
	p.recordGrow(b, chunks)
	return ret, nil
}

// Deallocate pushes one chunk back onto the free list. Not order-preserving.
func (p *Pool) Deallocate(ptr unsafe.Pointer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertFrom(ptr)
	p.stats.FreeCalls++
	p.store.Deallocate(ptr)
}

// OrderedDeallocate inserts one chunk at its ordered free-list position.
func (p *Pool) OrderedDeallocate(ptr unsafe.Pointer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertFrom(ptr)
	p.stats.FreeCalls++
	p.store.OrderedDeallocate(ptr)
}

// DeallocateN re-adds n contiguous chunks starting at ptr. Not
// order-preserving.
func (p *Pool) DeallocateN(ptr unsafe.Pointer, n uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ptr == nil || n == 0 {
		return
	}
	p.assertFrom(ptr)
	p.stats.FreeCalls++
	p.store.DeallocateContiguous(ptr, n, p.partition)
}

// OrderedDeallocateN re-adds n contiguous chunks at their ordered position.
func (p *Pool) OrderedDeallocateN(ptr unsafe.Pointer, n uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ptr == nil || n == 0 {
		return
	}
	p.assertFrom(ptr)
	p.stats.FreeCalls++
	p.store.OrderedDeallocateContiguous(ptr, n, p.partition)
}

// IsFrom reports whether ptr lies in the element region of one of the pool's
// super-blocks. O(number of blocks).
func (p *Pool) IsFrom(ptr unsafe.Pointer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isFromLocked(ptr)
}

func (p *Pool) isFromLocked(ptr unsafe.Pointer) bool {
	for b := p.list; b.valid(); b = b.next() {
		if b.contains(ptr) {
			return true
		}
	}
	return false
}

// ReleaseMemory returns to the upstream every super-block whose chunks are
// all free, unlinking them from both the block list and the free list, and
// resets the growth schedule to StartSize. Returns true iff any block was
// freed.
//
// Correct only while the free list is ordered; after unordered operations the
// walk may miss fully-free blocks (it will never free a block with a live
// chunk it knows about, but an unordered list breaks the lock-step scan's
// assumptions entirely, so callers must not rely on it).
func (p *Pool) ReleaseMemory() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	freed := false
	ptr := p.list
	var prev memblock
	freeP := p.store.first
	var prevFreeP unsafe.Pointer // last free chunk preceding the current block

	for ptr.valid() {
		// No free chunks left: nothing further can be fully free.
		if freeP == nil {
			break
		}
		next := ptr.next()

		// Walk the block's chunk slots and the free list in lock-step. The
		// block is fully free iff every slot coincides with a free entry.
		allFree := true
		savedFree := freeP
		for i := ptr.begin; uintptr(i) < uintptr(ptr.end()); i = unsafe.Add(i, p.partition) {
			if i != freeP {
				allFree = false
				break
			}
			freeP = nextOf(freeP)
		}

		if allFree {
			// Excise the block's chunks from the free list and the block
			// from the block list, then hand the region back upstream.
			if prevFreeP == nil {
				p.store.first = freeP
			} else {
				setNextOf(prevFreeP, freeP)
			}
			if prev.valid() {
				prev.setNext(next)
			} else {
				p.list = next
			}
			if logPool {
				fmt.Fprintf(os.Stderr, "[pool] release: block %p (%d bytes)\n", ptr.begin, ptr.total)
			}
			p.up.Deallocate(ptr.begin, ptr.total)
			p.stats.BlocksFreed++
			freed = true
		} else {
			// Advance the free cursor past this block, remembering the last
			// in-block entry as the splice predecessor for later blocks.
			f := savedFree
			for f != nil && uintptr(f) < uintptr(ptr.end()) {
				prevFreeP = f
				f = nextOf(f)
			}
			freeP = f
			prev = ptr
		}
		ptr = next
	}

	p.nextSize = p.startSize
	return freed
}

// PurgeMemory unconditionally returns every super-block to the upstream,
// empties the free list and resets the growth schedule. Any chunk still
// handed out becomes invalid. Returns true iff the pool held any blocks.
func (p *Pool) PurgeMemory() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purgeLocked()
}

func (p *Pool) purgeLocked() bool {
	if !p.list.valid() {
		return false
	}
	for b := p.list; b.valid(); {
		next := b.next() // read the trailer before the region goes away
		p.up.Deallocate(b.begin, b.total)
		p.stats.BlocksPurged++
		b = next
	}
	p.list.invalidate()
	p.store.first = nil
	p.nextSize = p.startSize
	return true
}

// Close purges the pool and marks it unusable. Callers must quiesce first;
// Close is not safe against concurrent in-flight operations completing after
// it returns their chunks.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.purgeLocked()
	p.closed = true
	return nil
}

// grow installs one fresh super-block of nextSize chunks, halving once on
// upstream failure, and advances the growth schedule.
func (p *Pool) grow(ordered bool) error {
	chunks := p.nextSize
	b, err := p.acquire(chunks)
	if err != nil {
		if chunks <= minBacktrack {
			return ErrOutOfMemory
		}
		chunks /= 2
		b, err = p.acquire(chunks)
		if err != nil {
			return ErrOutOfMemory
		}
		p.stats.Backtracks++
	}
	if ordered {
		p.store.AddOrderedBlock(b.begin, b.elementSize(), p.partition)
		p.linkOrdered(b)
	} else {
		p.store.AddBlock(b.begin, b.elementSize(), p.partition)
		b.setNext(p.list)
		p.list = b
	}
	p.recordGrow(b, chunks)
	return nil
}

// acquire requests a super-block sized for the given chunk count plus the
// intrusive trailer. No pool state changes on failure.
func (p *Pool) acquire(chunks uintptr) (memblock, error) {
	total := chunks*p.partition + blockTrailer
	ptr, err := p.up.Allocate(total)
	if err != nil {
		if logPool {
			fmt.Fprintf(os.Stderr, "[pool] grow failed: %d chunks (%d bytes)\n", chunks, total)
		}
		return memblock{}, err
	}
	return memblock{begin: ptr, total: total}, nil
}

// linkOrdered inserts b into the block list keeping begin addresses strictly
// ascending. Linear walk; growth events are rare.
func (p *Pool) linkOrdered(b memblock) {
	if !p.list.valid() || uintptr(p.list.begin) > uintptr(b.begin) {
		b.setNext(p.list)
		p.list = b
		return
	}
	prev := p.list
	for {
		nb := prev.next()
		if !nb.valid() || uintptr(nb.begin) > uintptr(b.begin) {
			break
		}
		prev = nb
	}
	b.setNext(prev.next())
	prev.setNext(b)
}

// recordGrow updates counters, the doubling schedule and the test hook after
// a block was installed.
func (p *Pool) recordGrow(b memblock, chunks uintptr) {
	p.stats.GrowCalls++
	p.stats.GrowBytes += uint64(b.total)
	next := chunks * 2
	if p.maxSize != 0 {
		capChunks := p.maxSize * p.requested / p.partition
		if capChunks < 1 {
			capChunks = 1
		}
		if next > capChunks {
			next = capChunks
		}
	}
	p.nextSize = next
	if logPool {
		fmt.Fprintf(os.Stderr, "[pool] grow #%d: %d chunks at %p, next_size -> %d\n",
			p.stats.GrowCalls, chunks, b.begin, next)
	}
	if p.onGrow != nil {
		p.onGrow(chunks)
	}
}

// assertFrom is a debug-build misuse check: deallocating a pointer the pool
// does not own is undefined by contract.
func (p *Pool) assertFrom(ptr unsafe.Pointer) {
	if debugPool && ptr != nil && !p.isFromLocked(ptr) {
		panic("pool: deallocate of pointer not from this pool")
	}
}

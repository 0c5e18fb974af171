// Package pool provides fixed-chunk memory pool allocators built on a simple
// segregated storage free list.
//
// # Overview
//
// A Pool carves heap- or mmap-acquired "super-blocks" into chunks of one
// fixed effective size and hands them out through an intrusive free list
// threaded through the free chunks themselves. Allocation and deallocation
// are O(1) in the common case; a doubling growth schedule amortises upstream
// round-trips.
//
// # Layers
//
//   - FreeList: the segregated storage core. Partitioning, ordered and
//     unordered push/pop, and the contiguous-run scan.
//   - Pool: the engine. Growth with halve-and-retry backtracking,
//     n-contiguous allocation over an ordered free list, IsFrom membership,
//     ReleaseMemory (fully-free super-blocks only) and PurgeMemory
//     (everything, unconditionally).
//   - Shared / SharedWith: process-wide pools keyed by tag and shape, lazily
//     constructed, deliberately never destroyed.
//   - Allocator[T], FastAllocator[T], SharedAllocator[T]: typed facades for
//     generic containers, reboundable across element types.
//
// Super-blocks come from the upstream package: the Go heap by default, or
// anonymous mappings, explicit alignment, or an always-failing null upstream.
//
// # Usage Example
//
//	p, err := pool.New(pool.Config{ChunkSize: 64, ThreadSafe: true})
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	ptr, err := p.OrderedAllocate()
//	if err != nil {
//		return err
//	}
//	// ... use the 64-byte chunk at ptr ...
//	p.OrderedDeallocate(ptr)
//
//	// Hand fully-free super-blocks back to the upstream.
//	p.ReleaseMemory()
//
// Or, typed and process-wide:
//
//	type node struct{ left, right *node; key uint64 }
//	alloc := pool.NewAllocator[node]("rbtree")
//	nodes, err := alloc.Allocate(1)
//
// # Ordered vs unordered
//
// Most operations exist in an ordered and an unordered flavour; n-chunk
// allocation exists only as the ordered OrderedAllocateN. Ordered
// operations keep the free list address-ascending, which is what makes the
// contiguous-run scan and ReleaseMemory's lock-step walk reliable. Unordered
// operations are faster but break that property, and the pool does not track
// which flavour the caller used: after an unordered operation, ordered
// correctness is the caller's obligation. Pick one discipline per pool.
//
// # Chunk geometry
//
// The effective chunk size is the requested size raised to at least one
// pointer and rounded up to the alignment boundary shared by pointers and
// size words. A free chunk stores the next free chunk's address in its first
// word; an allocated chunk carries no metadata at all. Each super-block ends
// in a reserved trailer holding the block list's intrusive next-pointer and
// next-size slots.
//
// # Thread Safety
//
// A pool constructed with Config.ThreadSafe serialises every operation on an
// internal mutex; operations on one pool are linearizable. Without it the
// guard compiles down to a no-op and the caller owns synchronization.
// Singleton pools obtained through Shared with Key.ThreadSafe use
// double-checked initialisation and are safe to use from any goroutine;
// without it, initialisation uses a plain flag and the pool is unguarded.
// Either way they stay usable on process-teardown paths: they are never
// destroyed, by design.
package pool

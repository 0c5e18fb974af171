package pool

import (
	"sync/atomic"
	"unsafe"
)

// sizeOf returns the pool chunk size for element type T; zero-size types are
// raised to one byte so every element has a distinct address.
func sizeOf[T any]() uintptr {
	var zero T
	s := unsafe.Sizeof(zero)
	if s == 0 {
		s = 1
	}
	return s
}

// chunksFor converts an element count into the chunk count that covers it at
// the pool's effective chunk size.
func chunksFor(n, elemSize, partition uintptr) uintptr {
	chunks := (n*elemSize + partition - 1) / partition
	if chunks == 0 {
		chunks = 1
	}
	return chunks
}

// Allocator is a stateless, tag-keyed allocator for values of type T backed
// by the process-wide singleton pool for its parameterisation. Every
// operation is ordered, so array allocation and ReleaseMemory on the backing
// pool stay reliable. All Allocator[T] values with equal parameters are
// interchangeable and compare Equal.
//
// The backing pool is deliberately never destroyed; see Shared.
type Allocator[T any] struct {
	key Key
}

// NewAllocator returns the allocator for T under tag with default growth
// settings and a thread-safe backing pool.
func NewAllocator[T any](tag string) Allocator[T] {
	return NewAllocatorConfig[T](tag, DefaultNextSize, 0, true)
}

// NewAllocatorConfig returns the allocator for T under tag with explicit
// growth settings.
func NewAllocatorConfig[T any](tag string, nextSize, maxSize uintptr, threadSafe bool) Allocator[T] {
	return Allocator[T]{key: Key{
		Tag:        tag,
		ChunkSize:  sizeOf[T](),
		NextSize:   nextSize,
		MaxSize:    maxSize,
		ThreadSafe: threadSafe,
	}}
}

// Pool returns the backing singleton pool.
func (a Allocator[T]) Pool() *Pool {
	return Shared(a.key)
}

// Allocate returns storage for n contiguous values of T. n == 0 returns nil.
func (a Allocator[T]) Allocate(n uintptr) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	p := a.Pool()
	ptr, err := p.OrderedAllocateN(chunksFor(n, sizeOf[T](), p.AllocSize()))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(ptr), n), nil
}

// Deallocate releases storage previously returned by Allocate with the same
// length, per the container-allocator convention.
func (a Allocator[T]) Deallocate(s []T) {
	if len(s) == 0 {
		return
	}
	p := a.Pool()
	p.OrderedDeallocateN(unsafe.Pointer(&s[0]), chunksFor(uintptr(len(s)), sizeOf[T](), p.AllocSize()))
}

// Equal reports facade interchangeability; always true within one
// parameterisation.
func (a Allocator[T]) Equal(Allocator[T]) bool {
	return true
}

// Rebind derives the allocator for element type U sharing a's tag and growth
// settings. The rebound allocator draws from the singleton pool keyed by U's
// shape.
func Rebind[U, T any](a Allocator[T]) Allocator[U] {
	k := a.key
	k.ChunkSize = sizeOf[U]()
	return Allocator[U]{key: k}
}

// FastAllocator is Allocator's sibling optimised for single-value traffic:
// n == 1 takes the unordered O(1) fast path on both allocation and release.
// Mixing it with ReleaseMemory on the same backing pool forfeits the ordered
// free-list guarantee; use Allocator when reclamation matters.
type FastAllocator[T any] struct {
	key Key
}

// NewFastAllocator returns the fast allocator for T under tag.
func NewFastAllocator[T any](tag string) FastAllocator[T] {
	return FastAllocator[T]{key: Key{
		Tag:        tag,
		ChunkSize:  sizeOf[T](),
		NextSize:   DefaultNextSize,
		ThreadSafe: true,
	}}
}

// Pool returns the backing singleton pool.
func (a FastAllocator[T]) Pool() *Pool {
	return Shared(a.key)
}

// Allocate returns storage for n contiguous values of T.
func (a FastAllocator[T]) Allocate(n uintptr) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	p := a.Pool()
	var (
		ptr unsafe.Pointer
		err error
	)
	if chunks := chunksFor(n, sizeOf[T](), p.AllocSize()); chunks == 1 {
		ptr, err = p.Allocate()
	} else {
		ptr, err = p.OrderedAllocateN(chunks)
	}
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(ptr), n), nil
}

// Deallocate releases storage previously returned by Allocate with the same
// length.
func (a FastAllocator[T]) Deallocate(s []T) {
	if len(s) == 0 {
		return
	}
	p := a.Pool()
	if chunks := chunksFor(uintptr(len(s)), sizeOf[T](), p.AllocSize()); chunks == 1 {
		p.Deallocate(unsafe.Pointer(&s[0]))
	} else {
		p.DeallocateN(unsafe.Pointer(&s[0]), chunks)
	}
}

// Equal is always true within one parameterisation.
func (a FastAllocator[T]) Equal(FastAllocator[T]) bool {
	return true
}

// RebindFast derives the fast allocator for element type U under a's tag.
func RebindFast[U, T any](a FastAllocator[T]) FastAllocator[U] {
	k := a.key
	k.ChunkSize = sizeOf[U]()
	return FastAllocator[U]{key: k}
}

// sharedHandle is the refcounted pool-plus-lock pair behind SharedAllocator.
type sharedHandle struct {
	refs atomic.Int64
	pool *Pool
}

// SharedAllocator is an instance-owned allocator facade: it holds a shared
// reference to one pool, is cheap to copy and to rebind, and destroys the
// pool (via PurgeMemory) when the last reference is released. Two facades
// compare Equal iff they reference the same pool.
//
// Copying the value does not add a reference; call Retain for each
// additional owner and Release exactly once per owner. Release after the
// last reference must not race in-flight operations; callers quiesce first.
type SharedAllocator[T any] struct {
	h *sharedHandle
}

// NewSharedAllocator constructs a pool for T from cfg and returns the first
// reference. cfg.ChunkSize below T's size is raised to it.
func NewSharedAllocator[T any](cfg Config) (SharedAllocator[T], error) {
	if cfg.ChunkSize < sizeOf[T]() {
		cfg.ChunkSize = sizeOf[T]()
	}
	p, err := New(cfg)
	if err != nil {
		return SharedAllocator[T]{}, err
	}
	h := &sharedHandle{pool: p}
	h.refs.Store(1)
	return SharedAllocator[T]{h: h}, nil
}

// Retain adds an owner reference and returns the facade for chaining.
func (a SharedAllocator[T]) Retain() SharedAllocator[T] {
	a.h.refs.Add(1)
	return a
}

// Release drops an owner reference; the last release closes the pool, which
// purges every super-block.
func (a SharedAllocator[T]) Release() {
	if a.h.refs.Add(-1) == 0 {
		_ = a.h.pool.Close()
	}
}

// Pool returns the referenced pool.
func (a SharedAllocator[T]) Pool() *Pool {
	return a.h.pool
}

// Allocate returns storage for n contiguous values of T.
func (a SharedAllocator[T]) Allocate(n uintptr) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	p := a.h.pool
	ptr, err := p.OrderedAllocateN(chunksFor(n, sizeOf[T](), p.AllocSize()))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(ptr), n), nil
}

// Deallocate releases storage previously returned by Allocate with the same
// length.
func (a SharedAllocator[T]) Deallocate(s []T) {
	if len(s) == 0 {
		return
	}
	p := a.h.pool
	p.OrderedDeallocateN(unsafe.Pointer(&s[0]), chunksFor(uintptr(len(s)), sizeOf[T](), p.AllocSize()))
}

// Equal reports whether both facades reference the same pool.
func (a SharedAllocator[T]) Equal(b SharedAllocator[T]) bool {
	return a.h == b.h
}

// RebindShared derives a facade for element type U over the same pool,
// adding an owner reference. Elements of U are covered by whole chunks of
// the original pool's effective chunk size.
func RebindShared[U, T any](a SharedAllocator[T]) SharedAllocator[U] {
	a.h.refs.Add(1)
	return SharedAllocator[U]{h: a.h}
}

package pool

import (
	"unsafe"

	"github.com/joshuapare/poolkit/upstream"
)

// countingUpstream wraps a real upstream and counts traffic. Allocation
// failures can be scripted by setting failNext; each failed call decrements
// it. Not safe for concurrent use; pair it with non-thread-safe pools.
type countingUpstream struct {
	inner    upstream.Interface
	allocs   int
	frees    int
	failNext int
}

func newCountingUpstream() *countingUpstream {
	return &countingUpstream{inner: upstream.NewHeap()}
}

func (u *countingUpstream) Allocate(size uintptr) (unsafe.Pointer, error) {
	if u.failNext > 0 {
		u.failNext--
		return nil, upstream.ErrExhausted
	}
	u.allocs++
	return u.inner.Allocate(size)
}

func (u *countingUpstream) Deallocate(ptr unsafe.Pointer, size uintptr) {
	u.frees++
	u.inner.Deallocate(ptr, size)
}

// blockCount walks the pool's block list.
func blockCount(p *Pool) int {
	n := 0
	for b := p.list; b.valid(); b = b.next() {
		n++
	}
	return n
}

// blockSizes returns the chunk capacity of each block in list order.
func blockSizes(p *Pool) []uintptr {
	var out []uintptr
	for b := p.list; b.valid(); b = b.next() {
		out = append(out, b.elementSize()/p.partition)
	}
	return out
}

// freeChain returns the free-list addresses in list order.
func freeChain(f *FreeList) []uintptr {
	var out []uintptr
	for p := f.first; p != nil; p = nextOf(p) {
		out = append(out, uintptr(p))
	}
	return out
}

// ascending reports whether addrs is strictly ascending.
func ascending(addrs []uintptr) bool {
	for i := 1; i < len(addrs); i++ {
		if addrs[i] <= addrs[i-1] {
			return false
		}
	}
	return true
}

// newTestBlock returns a word-aligned region of words machine words. The
// region stays alive as long as something (a free list, a test variable)
// holds a pointer into it.
func newTestBlock(words int) unsafe.Pointer {
	buf := make([]uint64, words)
	return unsafe.Pointer(&buf[0])
}

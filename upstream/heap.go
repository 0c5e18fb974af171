package upstream

import (
	"sync"
	"unsafe"
)

// Heap allocates regions on the Go heap.
//
// Pools store raw addresses inside the regions they manage (free-list links,
// block trailers), and raw addresses do not keep Go heap memory alive. Heap
// therefore pins every outstanding region in a registry keyed by its base
// address; the region stays reachable until Deallocate removes it.
type Heap struct {
	mu     sync.Mutex
	blocks map[uintptr][]byte
}

// NewHeap returns an empty Heap upstream.
func NewHeap() *Heap {
	return &Heap{blocks: make(map[uintptr][]byte)}
}

// Allocate returns a word-aligned region of size bytes.
func (h *Heap) Allocate(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, ErrExhausted
	}
	// Round up to whole words: the runtime aligns small byte allocations only
	// to their size, so a sub-word multiple could come back misaligned.
	const word = unsafe.Sizeof(uintptr(0))
	buf := make([]byte, (size+word-1)&^(word-1))
	p := unsafe.Pointer(&buf[0])
	h.mu.Lock()
	h.blocks[uintptr(p)] = buf
	h.mu.Unlock()
	return p, nil
}

// Deallocate unpins the region so the collector may reclaim it.
func (h *Heap) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	h.mu.Lock()
	delete(h.blocks, uintptr(ptr))
	h.mu.Unlock()
}

// Reallocate moves the region to a new allocation of newSize bytes,
// preserving the first min(oldSize, newSize) bytes.
func (h *Heap) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, error) {
	np, err := h.Allocate(newSize)
	if err != nil {
		return nil, err
	}
	if ptr != nil {
		n := oldSize
		if newSize < n {
			n = newSize
		}
		copy(unsafe.Slice((*byte)(np), n), unsafe.Slice((*byte)(ptr), n))
		h.Deallocate(ptr, oldSize)
	}
	return np, nil
}

// Outstanding reports the number of regions currently pinned.
func (h *Heap) Outstanding() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}

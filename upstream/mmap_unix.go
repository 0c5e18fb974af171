//go:build linux || darwin

package upstream

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap allocates regions with anonymous private mappings. The memory lives
// outside the Go heap, so intrusive links threaded through it are invisible
// to the collector and need no pinning. Regions are page-aligned.
type Mmap struct {
	mu     sync.Mutex
	blocks map[uintptr][]byte
}

// NewMmap returns an mmap-backed upstream.
func NewMmap() *Mmap {
	return &Mmap{blocks: make(map[uintptr][]byte)}
}

// Allocate maps a fresh anonymous region of at least size bytes.
func (m *Mmap) Allocate(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, ErrExhausted
	}
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, ErrExhausted
	}
	p := unsafe.Pointer(&buf[0])
	m.mu.Lock()
	m.blocks[uintptr(p)] = buf
	m.mu.Unlock()
	return p, nil
}

// Deallocate unmaps the region.
func (m *Mmap) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	m.mu.Lock()
	buf, ok := m.blocks[uintptr(ptr)]
	delete(m.blocks, uintptr(ptr))
	m.mu.Unlock()
	if ok {
		_ = unix.Munmap(buf)
	}
}

// Outstanding reports the number of live mappings.
func (m *Mmap) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks)
}

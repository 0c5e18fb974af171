package upstream

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func Test_Heap_RoundTrip(t *testing.T) {
	h := NewHeap()

	p, err := h.Allocate(128)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, 1, h.Outstanding())

	// The region is writable end to end.
	b := unsafe.Slice((*byte)(p), 128)
	for i := range b {
		b[i] = byte(i)
	}

	h.Deallocate(p, 128)
	require.Zero(t, h.Outstanding())
}

func Test_Heap_ZeroSizeFails(t *testing.T) {
	h := NewHeap()
	_, err := h.Allocate(0)
	require.ErrorIs(t, err, ErrExhausted)
}

func Test_Heap_DeallocateNilIsNoop(t *testing.T) {
	h := NewHeap()
	h.Deallocate(nil, 64)
	require.Zero(t, h.Outstanding())
}

func Test_Heap_Reallocate_PreservesPrefix(t *testing.T) {
	h := NewHeap()

	p, err := h.Allocate(16)
	require.NoError(t, err)
	copy(unsafe.Slice((*byte)(p), 16), "0123456789abcdef")

	grown, err := h.Reallocate(p, 16, 32)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", string(unsafe.Slice((*byte)(grown), 16)))
	require.Equal(t, 1, h.Outstanding(), "old region released")

	shrunk, err := h.Reallocate(grown, 32, 4)
	require.NoError(t, err)
	require.Equal(t, "0123", string(unsafe.Slice((*byte)(shrunk), 4)))
	h.Deallocate(shrunk, 4)
	require.Zero(t, h.Outstanding())
}

func Test_Aligned_RespectsBoundary(t *testing.T) {
	const boundary = 64
	a := NewAligned(boundary)

	var ptrs []unsafe.Pointer
	for i := 0; i < 8; i++ {
		p, err := a.Allocate(100)
		require.NoError(t, err)
		require.Zero(t, uintptr(p)%boundary)
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		a.Deallocate(p, 100)
	}
}

func Test_Aligned_SubWordAlignmentRaised(t *testing.T) {
	a := NewAligned(1)
	p, err := a.Allocate(8)
	require.NoError(t, err)
	require.Zero(t, uintptr(p)%unsafe.Sizeof(uintptr(0)))
	a.Deallocate(p, 8)
}

func Test_Null_AlwaysFails(t *testing.T) {
	n := NewNull()
	_, err := n.Allocate(1)
	require.ErrorIs(t, err, ErrExhausted)
	_, err = n.Allocate(1 << 20)
	require.ErrorIs(t, err, ErrExhausted)

	n.Deallocate(nil, 0)
	require.Panics(t, func() {
		var x byte
		n.Deallocate(unsafe.Pointer(&x), 1)
	})
}

func Test_Mmap_RoundTrip(t *testing.T) {
	m := NewMmap()

	p, err := m.Allocate(4096)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Intrusive links live in the mapped region; make sure it takes writes.
	*(*uintptr)(p) = 0xDEADBEEF
	require.Equal(t, uintptr(0xDEADBEEF), *(*uintptr)(p))

	m.Deallocate(p, 4096)
}

func Test_Default_IsUsable(t *testing.T) {
	up := Default()
	p, err := up.Allocate(64)
	require.NoError(t, err)
	up.Deallocate(p, 64)
}

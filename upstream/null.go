package upstream

import "unsafe"

// Null is an upstream that never allocates. Every Allocate fails with
// ErrExhausted; Deallocate accepts only a nil pointer.
type Null struct{}

// NewNull returns the null upstream.
func NewNull() Null {
	return Null{}
}

// Allocate always fails.
func (Null) Allocate(size uintptr) (unsafe.Pointer, error) {
	return nil, ErrExhausted
}

// Deallocate is a no-op for nil; anything else is a caller error.
func (Null) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if ptr != nil {
		panic("upstream: Null.Deallocate of non-nil pointer")
	}
}

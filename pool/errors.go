package pool

import "errors"

var (
	// ErrOutOfMemory indicates the upstream allocator could not provide a new
	// super-block, even after the internal halve-and-retry backtrack.
	ErrOutOfMemory = errors.New("pool: out of memory")

	// ErrBadChunkSize indicates a pool was configured with a zero chunk size.
	ErrBadChunkSize = errors.New("pool: chunk size must be at least 1 byte")

	// ErrClosed indicates an operation on a pool after Close.
	ErrClosed = errors.New("pool: pool is closed")
)

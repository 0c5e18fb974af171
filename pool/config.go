package pool

import "github.com/joshuapare/poolkit/upstream"

// DefaultNextSize is the chunk count requested from the upstream on the first
// growth event when a configuration does not say otherwise.
const DefaultNextSize = 32

// Config describes a pool. ChunkSize is the only required field.
type Config struct {
	// Name labels the configuration in logs and benchmark output.
	Name string

	// ChunkSize is the requested size of each chunk in bytes. The effective
	// chunk size is ChunkSize raised to at least one pointer and rounded up
	// to the chunk alignment boundary.
	ChunkSize uintptr

	// NextSize is the chunk count of the first super-block. Doubles on every
	// growth event. Zero means DefaultNextSize.
	NextSize uintptr

	// MaxSize caps the growth schedule, measured in chunks of ChunkSize
	// bytes. Zero means uncapped.
	MaxSize uintptr

	// Upstream supplies super-blocks. Nil means upstream.Default().
	Upstream upstream.Interface

	// ThreadSafe guards every pool operation with a mutex. When false the
	// pool carries a no-op locker and the caller owns synchronization.
	ThreadSafe bool
}

// Predefined configurations. Set ChunkSize before use.
var (
	// ConfigDefault mirrors the zero-value behavior with a name attached.
	ConfigDefault = Config{
		Name:     "Default",
		NextSize: DefaultNextSize,
	}

	// ConfigSmallObjects batches many chunks per super-block, for workloads
	// that allocate large numbers of small nodes.
	ConfigSmallObjects = Config{
		Name:     "SmallObjects",
		NextSize: 256,
	}

	// ConfigLargeBatches starts small and caps growth, for workloads with a
	// known modest ceiling where over-reservation matters more than growth
	// amortization.
	ConfigLargeBatches = Config{
		Name:     "LargeBatches",
		NextSize: 8,
		MaxSize:  1024,
	}
)

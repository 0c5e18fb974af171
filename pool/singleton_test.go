package pool

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/poolkit/upstream"
)

func Test_Shared_SameKeySamePool(t *testing.T) {
	key := Key{Tag: "shared-same", ChunkSize: 16, ThreadSafe: true}
	p1 := Shared(key)
	p2 := Shared(key)
	require.Same(t, p1, p2)
}

func Test_Shared_DistinctKeysDistinctPools(t *testing.T) {
	base := Key{Tag: "shared-distinct", ChunkSize: 16, ThreadSafe: true}

	other := base
	other.Tag = "shared-distinct-2"
	require.NotSame(t, Shared(base), Shared(other))

	bigger := base
	bigger.ChunkSize = 32
	require.NotSame(t, Shared(base), Shared(bigger))
}

func Test_Shared_ConcurrentFirstUse(t *testing.T) {
	key := Key{Tag: "shared-race", ChunkSize: 8, ThreadSafe: true}

	const workers = 16
	pools := make([]*Pool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Shared(key)
			ptr, err := p.Allocate()
			if err == nil {
				p.Deallocate(ptr)
			}
			pools[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Same(t, pools[0], pools[i], "every goroutine must observe one pool")
	}
}

func Test_Shared_NonThreadSafeVariant(t *testing.T) {
	key := Key{Tag: "shared-plain", ChunkSize: 8}
	p := Shared(key)
	require.Same(t, p, Shared(key))

	_, ok := p.mu.(nopLocker)
	require.True(t, ok, "non-thread-safe key yields an unguarded pool")
}

func Test_SharedWith_UpstreamFixedAtFirstUse(t *testing.T) {
	key := Key{Tag: "shared-upstream", ChunkSize: 8, ThreadSafe: true}
	up := upstream.NewHeap()
	p := SharedWith(key, up)

	// Later upstreams for the same key are ignored.
	require.Same(t, p, SharedWith(key, upstream.NewNull()))
	ptr, err := p.Allocate()
	require.NoError(t, err)
	p.Deallocate(ptr)
}

func Test_Shared_ZeroChunkSizePanics(t *testing.T) {
	require.Panics(t, func() {
		Shared(Key{Tag: "shared-bad"})
	})
}

// Singleton pools are never destroyed: chunks may be freed long after every
// local reference to the pool is gone, as late as process teardown.
func Test_Shared_FreesLegalAfterHandleAbandoned(t *testing.T) {
	key := Key{Tag: "shared-leak", ChunkSize: 8, ThreadSafe: true}

	ptr, err := Shared(key).Allocate()
	require.NoError(t, err)

	// Drop the handle and give the collector every chance to misbehave.
	runtime.GC()
	runtime.GC()

	p := Shared(key)
	require.True(t, p.IsFrom(ptr))
	p.Deallocate(ptr)
}

package pool

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// Hammer one thread-safe pool from many goroutines. Each goroutine stamps a
// unique pattern into every chunk it holds and verifies it before freeing:
// double-handouts corrupt the pattern and fail the test.
func Test_Concurrent_AllocateFree(t *testing.T) {
	p, err := New(Config{ChunkSize: 16, NextSize: 8, ThreadSafe: true})
	require.NoError(t, err)
	defer p.Close()

	const (
		workers = 8
		rounds  = 200
		held    = 4
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(stamp uint64) {
			defer wg.Done()
			var chunks []unsafe.Pointer
			for r := 0; r < rounds; r++ {
				ptr, allocErr := p.Allocate()
				if allocErr != nil {
					errs <- allocErr
					return
				}
				*(*uint64)(ptr) = stamp
				*(*uint64)(unsafe.Add(ptr, 8)) = stamp
				chunks = append(chunks, ptr)
				if len(chunks) >= held {
					c := chunks[0]
					chunks = chunks[1:]
					if *(*uint64)(c) != stamp || *(*uint64)(unsafe.Add(c, 8)) != stamp {
						panic("chunk handed to two goroutines at once")
					}
					p.Deallocate(c)
				}
			}
			for _, c := range chunks {
				p.Deallocate(c)
			}
		}(uint64(w) + 0x9E3779B97F4A7C15)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		require.NoError(t, e)
	}
}

func Test_Concurrent_ObserversDoNotRace(t *testing.T) {
	p, err := New(Config{ChunkSize: 8, NextSize: 4, ThreadSafe: true})
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = p.NextSize()
				_ = p.Stats()
			}
		}
	}()

	for i := 0; i < 500; i++ {
		ptr, allocErr := p.Allocate()
		require.NoError(t, allocErr)
		p.Deallocate(ptr)
	}
	close(stop)
	wg.Wait()
}

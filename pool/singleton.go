package pool

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/poolkit/upstream"
)

// Key identifies one process-wide singleton pool. Two call sites naming the
// same key share the same pool; any field difference yields a distinct pool.
type Key struct {
	Tag        string
	ChunkSize  uintptr
	NextSize   uintptr // zero means DefaultNextSize
	MaxSize    uintptr
	ThreadSafe bool
}

// singletonEntry reserves storage for one keyed pool. The pool itself is
// constructed lazily on first use: double-checked against the atomic flag
// when the key is thread-safe, against the plain flag otherwise.
type singletonEntry struct {
	ready atomic.Bool
	plain bool
	mu    sync.Mutex
	pool  *Pool
}

var (
	singletonMu sync.Mutex
	// singletons grows for the life of the process and is never pruned.
	// Deliberate: consumers may allocate during static setup and free during
	// process teardown, so keyed pools must outlive everything.
	singletons = make(map[Key]*singletonEntry)
)

// Shared returns the process-wide pool for key, constructing it on first
// use with upstream.Default(). The pool is never destroyed: frees remain
// legal for the remaining life of the process, including teardown paths.
//
// A zero ChunkSize is a misuse and panics.
func Shared(key Key) *Pool {
	return SharedWith(key, nil)
}

// SharedWith is Shared with an explicit upstream. The upstream is consulted
// only by the call that constructs the pool; later calls for the same key
// return the existing pool regardless of the upstream they pass.
func SharedWith(key Key, up upstream.Interface) *Pool {
	e := entryFor(key)
	if key.ThreadSafe {
		// Double-checked: acquire-load guard, construct under the entry's
		// mutex, release-store publish.
		if !e.ready.Load() {
			e.mu.Lock()
			if !e.ready.Load() {
				e.pool = mustNewKeyed(key, up)
				e.ready.Store(true)
			}
			e.mu.Unlock()
		}
	} else if !e.plain {
		e.pool = mustNewKeyed(key, up)
		e.plain = true
	}
	return e.pool
}

func entryFor(key Key) *singletonEntry {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	e, ok := singletons[key]
	if !ok {
		e = &singletonEntry{}
		singletons[key] = e
	}
	return e
}

func mustNewKeyed(key Key, up upstream.Interface) *Pool {
	p, err := New(Config{
		ChunkSize:  key.ChunkSize,
		NextSize:   key.NextSize,
		MaxSize:    key.MaxSize,
		Upstream:   up,
		ThreadSafe: key.ThreadSafe,
	})
	if err != nil {
		panic(err)
	}
	return p
}

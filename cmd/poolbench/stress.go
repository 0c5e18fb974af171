package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/joshuapare/poolkit/pool"
)

var (
	stressOps     uint64
	stressWorkers int
	stressHeld    int
	stressSeed    int64
	stressOrdered bool
	stressRelease bool
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a mixed allocate/free workload against one pool",
	Long: `stress runs a randomized allocate/free workload from one or more
goroutines against a single pool and prints the engine counters. Each worker
keeps a bounded set of live chunks, freeing a randomly chosen one once the
bound is reached.

With --ordered the workload uses only order-preserving operations, which
keeps ReleaseMemory effective (see --release).`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().Uint64Var(&stressOps, "ops", 1_000_000, "Total allocations across all workers")
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 1, "Concurrent workers")
	stressCmd.Flags().IntVar(&stressHeld, "held", 64, "Live chunks held per worker")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 1, "Workload seed")
	stressCmd.Flags().BoolVar(&stressOrdered, "ordered", false, "Use order-preserving operations only")
	stressCmd.Flags().
		BoolVar(&stressRelease, "release", false, "Call ReleaseMemory periodically (implies --ordered)")
	rootCmd.AddCommand(stressCmd)
}

func runStress(cmd *cobra.Command, args []string) error {
	if stressRelease {
		stressOrdered = true
	}
	up, err := selectedUpstream()
	if err != nil {
		return err
	}
	p, err := pool.New(pool.Config{
		Name:       "stress",
		ChunkSize:  uintptr(chunkSize),
		NextSize:   uintptr(nextSize),
		MaxSize:    uintptr(maxSize),
		Upstream:   up,
		ThreadSafe: stressWorkers > 1,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	perWorker := stressOps / uint64(stressWorkers)
	printVerbose("stress: %d workers x %d ops, chunk=%d next=%d\n",
		stressWorkers, perWorker, chunkSize, nextSize)

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, stressWorkers)
	for w := 0; w < stressWorkers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			errs <- stressWorker(p, seed, perWorker)
		}(stressSeed + int64(w))
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		if e != nil {
			return e
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("stress: %d ops in %v (%.0f ops/s)\n",
		stressOps, elapsed.Round(time.Millisecond),
		float64(stressOps)/elapsed.Seconds())
	fmt.Println(p.Stats())
	return nil
}

func stressWorker(p *pool.Pool, seed int64, ops uint64) error {
	rng := rand.New(rand.NewSource(seed))
	var held []unsafe.Pointer
	for i := uint64(0); i < ops; i++ {
		var (
			ptr unsafe.Pointer
			err error
		)
		if stressOrdered {
			ptr, err = p.OrderedAllocate()
		} else {
			ptr, err = p.Allocate()
		}
		if err != nil {
			return err
		}
		held = append(held, ptr)
		if len(held) >= stressHeld {
			j := rng.Intn(len(held))
			victim := held[j]
			held[j] = held[len(held)-1]
			held = held[:len(held)-1]
			if stressOrdered {
				p.OrderedDeallocate(victim)
			} else {
				p.Deallocate(victim)
			}
		}
		if stressRelease && i%65536 == 65535 {
			p.ReleaseMemory()
		}
	}
	for _, ptr := range held {
		if stressOrdered {
			p.OrderedDeallocate(ptr)
		} else {
			p.Deallocate(ptr)
		}
	}
	return nil
}

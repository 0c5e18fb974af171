package main

import (
	"fmt"
	"math/rand"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/joshuapare/poolkit/pool"
)

var (
	contigOps    uint64
	contigMaxRun int
	contigSeed   int64
)

var contigCmd = &cobra.Command{
	Use:   "contig",
	Short: "Run a contiguous-run workload against one pool",
	Long: `contig exercises OrderedAllocateN with runs of random length,
releasing them in random order. The workload measures how well the ordered
free list keeps contiguous runs findable under churn.`,
	RunE: runContig,
}

func init() {
	contigCmd.Flags().Uint64Var(&contigOps, "ops", 100_000, "Total run allocations")
	contigCmd.Flags().IntVar(&contigMaxRun, "max-run", 8, "Largest run length in chunks")
	contigCmd.Flags().Int64Var(&contigSeed, "seed", 1, "Workload seed")
	rootCmd.AddCommand(contigCmd)
}

func runContig(cmd *cobra.Command, args []string) error {
	up, err := selectedUpstream()
	if err != nil {
		return err
	}
	p, err := pool.New(pool.Config{
		Name:      "contig",
		ChunkSize: uintptr(chunkSize),
		NextSize:  uintptr(nextSize),
		MaxSize:   uintptr(maxSize),
		Upstream:  up,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	type run struct {
		ptr unsafe.Pointer
		n   uintptr
	}
	rng := rand.New(rand.NewSource(contigSeed))
	var held []run

	start := time.Now()
	for i := uint64(0); i < contigOps; i++ {
		n := uintptr(1 + rng.Intn(contigMaxRun))
		ptr, allocErr := p.OrderedAllocateN(n)
		if allocErr != nil {
			return allocErr
		}
		held = append(held, run{ptr, n})
		if len(held) >= 128 {
			j := rng.Intn(len(held))
			victim := held[j]
			held[j] = held[len(held)-1]
			held = held[:len(held)-1]
			p.OrderedDeallocateN(victim.ptr, victim.n)
		}
	}
	for _, r := range held {
		p.OrderedDeallocateN(r.ptr, r.n)
	}
	p.ReleaseMemory()
	elapsed := time.Since(start)

	fmt.Printf("contig: %d runs in %v (%.0f runs/s)\n",
		contigOps, elapsed.Round(time.Millisecond),
		float64(contigOps)/elapsed.Seconds())
	fmt.Println(p.Stats())
	return nil
}
